// Package httpapi serves the REST, SSE and WebSocket surface of the
// service.
//
// Every /v1 route requires a bearer token. Tokens are checked by an
// [identity.Verifier]; the matching user row is created on first
// contact, so handlers always operate on a stored user. Errors map onto
// a small set of statuses: malformed input is 400, a failed or missing
// token is 401, gating without an enrolled voiceprint is 412, model
// backend failures are 502, and everything else is 500.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/earshot-ai/earshot/pkg/geocode"
	"github.com/earshot-ai/earshot/pkg/identity"
	"github.com/earshot-ai/earshot/pkg/metrics"
	"github.com/earshot-ai/earshot/pkg/rag"
	"github.com/earshot-ai/earshot/pkg/speech"
	"github.com/earshot-ai/earshot/pkg/storage"
	"github.com/earshot-ai/earshot/pkg/transcript"
	"github.com/earshot-ai/earshot/pkg/voiceprint"
)

// maxUploadBytes caps multipart audio uploads.
const maxUploadBytes = 25 << 20

// Geocoder resolves capture coordinates to a place name. Implemented by
// [geocode.Client].
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) geocode.Result
}

// Config wires the server's dependencies. Verifier, Users, Gate,
// Transcriber, Sessions, Store, Responder and Metrics are required.
type Config struct {
	Verifier    identity.Verifier
	Users       *identity.Users
	Gate        *voiceprint.Gate
	Transcriber speech.Transcriber
	Sessions    *transcript.SessionTracker
	Store       *transcript.Store
	Responder   *rag.Responder
	Metrics     *metrics.Metrics

	// Filter cleans raw transcriptions before storage. Defaults to the
	// built-in rules.
	Filter *speech.Filter

	// Geocoder resolves segment coordinates to place names. Optional;
	// nil leaves segments without a location.
	Geocoder Geocoder

	// Consent archives enrollment audio. Optional; nil skips archival.
	Consent storage.Store

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Server is the HTTP API server. Construct it with [NewServer] and
// mount [Server.Handler].
type Server struct {
	verifier    identity.Verifier
	users       *identity.Users
	gate        *voiceprint.Gate
	transcriber speech.Transcriber
	filter      *speech.Filter
	sessions    *transcript.SessionTracker
	store       *transcript.Store
	responder   *rag.Responder
	geocoder    Geocoder
	consent     storage.Store
	metrics     *metrics.Metrics
	log         *slog.Logger

	engine   *gin.Engine
	upgrader websocket.Upgrader
}

// NewServer creates the server and its routes from cfg.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Verifier == nil {
		return nil, errors.New("httpapi: Config.Verifier is required")
	}
	if cfg.Users == nil {
		return nil, errors.New("httpapi: Config.Users is required")
	}
	if cfg.Gate == nil {
		return nil, errors.New("httpapi: Config.Gate is required")
	}
	if cfg.Transcriber == nil {
		return nil, errors.New("httpapi: Config.Transcriber is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("httpapi: Config.Sessions is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("httpapi: Config.Store is required")
	}
	if cfg.Responder == nil {
		return nil, errors.New("httpapi: Config.Responder is required")
	}
	if cfg.Metrics == nil {
		return nil, errors.New("httpapi: Config.Metrics is required")
	}

	s := &Server{
		verifier:    cfg.Verifier,
		users:       cfg.Users,
		gate:        cfg.Gate,
		transcriber: cfg.Transcriber,
		filter:      cfg.Filter,
		sessions:    cfg.Sessions,
		store:       cfg.Store,
		responder:   cfg.Responder,
		geocoder:    cfg.Geocoder,
		consent:     cfg.Consent,
		metrics:     cfg.Metrics,
		log:         cfg.Logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	if s.filter == nil {
		s.filter = speech.DefaultFilter()
	}
	if s.log == nil {
		s.log = slog.Default()
	}

	engine := gin.New()
	engine.MaxMultipartMemory = maxUploadBytes
	engine.Use(s.requestID(), s.requestLogger(), s.httpMetrics(), s.recovery())

	engine.GET("/healthz", s.handleHealthz)
	engine.GET("/readyz", s.handleReadyz)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := engine.Group("/v1", s.authenticate)
	v1.POST("/enroll", s.handleEnroll)
	v1.POST("/transcribe", s.handleTranscribe)
	v1.GET("/transcripts", s.handleTranscripts)
	v1.POST("/chat", s.handleChat)
	v1.GET("/chat/ws", s.handleChatWS)

	s.engine = engine
	return s, nil
}

// Handler returns the root handler for mounting on an http.Server.
func (s *Server) Handler() http.Handler {
	return s.engine
}
