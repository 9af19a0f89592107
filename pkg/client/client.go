// Package client provides the Go client for the Earshot API.
//
// A [Client] talks to one Earshot server with one bearer token:
//
//	c := client.New("http://127.0.0.1:8080", token)
//	page, err := c.Transcripts(ctx, nil)
//
// Chat answers stream as an iterator:
//
//	for ev, err := range c.Chat(ctx, &client.ChatRequest{Message: "what did I plant?"}) {
//	    if err != nil {
//	        return err
//	    }
//	    if ev.Type == client.EventText {
//	        fmt.Print(ev.Content)
//	    }
//	}
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/earshot-ai/earshot/pkg/isotime"
)

const (
	// DefaultTimeout bounds non-streaming requests. Transcription
	// uploads can sit behind a slow ASR backend, so this is generous.
	DefaultTimeout = 2 * time.Minute

	// DefaultMaxRetries is the default retry count for idempotent
	// requests.
	DefaultMaxRetries = 2
)

// Client is the Earshot API client. Safe for concurrent use.
type Client struct {
	// http serves bounded requests; stream serves SSE responses and
	// carries no overall timeout, only the per-call context.
	http    *http.Client
	stream  *http.Client
	baseURL string
	token   string

	maxRetries int
	retryDelay time.Duration
}

// config holds the client configuration.
type config struct {
	httpClient *http.Client
	timeout    time.Duration
	maxRetries int
}

// Option configures the client.
type Option func(*config)

// WithHTTPClient sets a custom HTTP client. It is used for streaming
// requests too, so its Timeout bounds whole chat streams.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) { c.httpClient = client }
}

// WithTimeout sets the timeout for non-streaming requests.
func WithTimeout(timeout time.Duration) Option {
	return func(c *config) { c.timeout = timeout }
}

// WithRetry sets the maximum number of retries for idempotent requests
// that fail with a transient error.
func WithRetry(maxRetries int) Option {
	return func(c *config) { c.maxRetries = maxRetries }
}

// New creates a client for the server at baseURL, authenticating every
// request with the bearer token.
func New(baseURL, token string, opts ...Option) *Client {
	cfg := &config{
		timeout:    DefaultTimeout,
		maxRetries: DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		maxRetries: cfg.maxRetries,
		retryDelay: time.Second,
	}
	if cfg.httpClient != nil {
		c.http = cfg.httpClient
		c.stream = cfg.httpClient
	} else {
		c.http = &http.Client{Timeout: cfg.timeout}
		c.stream = &http.Client{}
	}
	return c
}

// Ready reports whether the server is up and its stores are reachable.
func (c *Client) Ready(ctx context.Context) error {
	return c.getJSON(ctx, "/readyz", nil)
}

// Enroll registers the caller's voiceprint from a consent recording of
// 15 to 30 seconds.
func (c *Client) Enroll(ctx context.Context, audio io.Reader, filename string) (*EnrollResult, error) {
	if audio == nil {
		return nil, errors.New("audio is required")
	}
	var out EnrollResult
	if err := c.postAudio(ctx, "/v1/enroll", audio, filename, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Transcribe submits one audio chunk to the capture pipeline. A result
// with Processed false means the chunk was filtered, not that the
// request failed.
func (c *Client) Transcribe(ctx context.Context, req *TranscribeRequest) (*TranscribeResult, error) {
	if req == nil || req.Audio == nil {
		return nil, errors.New("audio is required")
	}
	if req.Start.IsZero() || req.End.IsZero() {
		return nil, errors.New("timestamp_start and timestamp_end are required")
	}

	fields := map[string]string{
		"timestamp_start": req.Start.Format(isotime.Layout),
		"timestamp_end":   req.End.Format(isotime.Layout),
	}
	if req.Latitude != nil {
		fields["latitude"] = strconv.FormatFloat(*req.Latitude, 'f', -1, 64)
	}
	if req.Longitude != nil {
		fields["longitude"] = strconv.FormatFloat(*req.Longitude, 'f', -1, 64)
	}

	var out TranscribeResult
	if err := c.postAudio(ctx, "/v1/transcribe", req.Audio, req.Filename, fields, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Transcripts returns one page of the caller's stored transcripts,
// newest first.
func (c *Client) Transcripts(ctx context.Context, opts *TranscriptsOptions) (*TranscriptPage, error) {
	q := url.Values{}
	if opts != nil {
		if opts.SessionID != "" {
			q.Set("session_id", opts.SessionID)
		}
		if opts.Limit > 0 {
			q.Set("limit", strconv.Itoa(opts.Limit))
		}
		if opts.Offset > 0 {
			q.Set("offset", strconv.Itoa(opts.Offset))
		}
	}
	path := "/v1/transcripts"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out TranscriptPage
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Chat asks a question over the caller's transcripts and returns the
// answer as an event iterator. The connection is closed when iteration
// completes or breaks.
//
// Text events arrive first, then citations, then a done event. A
// generation failure after the stream opened surfaces as an error
// event, not an iteration error.
func (c *Client) Chat(ctx context.Context, req *ChatRequest) iter.Seq2[*Event, error] {
	return func(yield func(*Event, error) bool) {
		resp, err := c.postStream(ctx, "/v1/chat", req)
		if err != nil {
			yield(nil, err)
			return
		}

		reader := newSSEReader(resp)
		defer reader.close()

		for {
			data, done, err := reader.readEvent()
			if err != nil {
				yield(nil, fmt.Errorf("read stream: %w", err))
				return
			}
			if done {
				return
			}

			var ev Event
			if err := json.Unmarshal(data, &ev); err != nil {
				yield(nil, fmt.Errorf("decode event: %w", err))
				return
			}
			if !yield(&ev, nil) {
				return
			}
		}
	}
}
