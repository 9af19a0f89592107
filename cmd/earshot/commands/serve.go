package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/earshot-ai/earshot/pkg/config"
	"github.com/earshot-ai/earshot/pkg/embed"
	"github.com/earshot-ai/earshot/pkg/geocode"
	"github.com/earshot-ai/earshot/pkg/httpapi"
	"github.com/earshot-ai/earshot/pkg/identity"
	"github.com/earshot-ai/earshot/pkg/kv"
	"github.com/earshot-ai/earshot/pkg/llm"
	"github.com/earshot-ai/earshot/pkg/metrics"
	"github.com/earshot-ai/earshot/pkg/rag"
	"github.com/earshot-ai/earshot/pkg/speech"
	"github.com/earshot-ai/earshot/pkg/storage"
	"github.com/earshot-ai/earshot/pkg/transcript"
	"github.com/earshot-ai/earshot/pkg/voiceprint"
)

// shutdownGrace bounds how long in-flight requests get to finish.
const shutdownGrace = 15 * time.Second

var serveConfigPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server",
	Long: `Run the earshot API server.

Configuration comes from a YAML file (see --config) layered over
built-in defaults; API keys come from the environment (OPENAI_API_KEY,
GEMINI_API_KEY). A missing --config runs with defaults, which expect a
voiceprint model server on 127.0.0.1:8089 and an OpenAI key.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(serveConfigPath)
		if err != nil {
			return err
		}
		return runServer(cmd.Context(), cfg)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "path to the server config file")
	rootCmd.AddCommand(serveCmd)
}

// runServer composes the pipeline from cfg and serves until a signal.
func runServer(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := cfg.Logging.NewLogger()
	slog.SetDefault(log)
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	svc, err := buildServices(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer svc.close(log)

	server, err := httpapi.NewServer(httpapi.Config{
		Verifier:    svc.verifier,
		Users:       svc.users,
		Gate:        svc.gate,
		Transcriber: svc.transcriber,
		Filter:      svc.filter,
		Sessions:    svc.sessions,
		Store:       svc.transcripts,
		Responder:   svc.responder,
		Geocoder:    svc.geocoder,
		Consent:     svc.blobs,
		Metrics:     svc.metrics,
		Logger:      log,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    cfg.Server.Listen,
		Handler: server.Handler(),
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.Server.Listen)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// services is the composed pipeline behind one server process.
type services struct {
	engine kv.Store // the kv store, closed last

	verifier    identity.Verifier
	users       *identity.Users
	gate        *voiceprint.Gate
	transcriber speech.Transcriber
	filter      *speech.Filter
	sessions    *transcript.SessionTracker
	transcripts *transcript.Store
	responder   *rag.Responder
	geocoder    httpapi.Geocoder
	blobs       storage.Store
	metrics     *metrics.Metrics
}

// buildServices constructs every component of the pipeline from cfg.
// Nothing here is a global: each handle is owned by the returned struct
// and injected downward.
func buildServices(ctx context.Context, cfg *config.Config, log *slog.Logger) (*services, error) {
	svc := &services{}

	engine, err := openKV(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	svc.engine = engine

	blobs, err := openBlobs(ctx, cfg)
	if err != nil {
		engine.Close()
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	svc.blobs = blobs

	tokens := make(map[string]identity.Identity, len(cfg.Auth.Tokens))
	for _, t := range cfg.Auth.Tokens {
		tokens[t.Token] = identity.Identity{ID: t.ID, Email: t.Email, Name: t.Name}
	}
	svc.verifier = identity.NewStaticVerifier(tokens)
	svc.users = identity.NewUsers(engine)

	model := voiceprint.NewLazyModel(func(context.Context) (voiceprint.Model, error) {
		return voiceprint.NewRemoteModel(cfg.Voiceprint.Endpoint), nil
	})
	svc.gate = voiceprint.NewGate(model, cfg.Voiceprint.Threshold)

	svc.transcriber = speech.NewWhisper(cfg.Secrets.OpenAIKey,
		speech.WithModel(cfg.Speech.Model))
	svc.filter, err = loadFilter(cfg.Speech.RulesFile)
	if err != nil {
		svc.close(log)
		return nil, err
	}

	embedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		svc.close(log)
		return nil, err
	}

	svc.sessions = transcript.NewSessionTracker(engine, cfg.Session.GapDuration())
	svc.transcripts, err = transcript.NewStore(transcript.StoreConfig{
		KV:        engine,
		Embedder:  embedder,
		Snapshots: blobs,
		Logger:    log,
	})
	if err != nil {
		svc.close(log)
		return nil, err
	}

	generator, err := newGenerator(ctx, cfg)
	if err != nil {
		svc.close(log)
		return nil, err
	}

	builder, err := rag.NewContextBuilder(rag.BuilderConfig{
		Store:     svc.transcripts,
		Embedder:  embedder,
		Logger:    log,
		MaxTokens: cfg.Chat.MaxContextTokens,
	})
	if err != nil {
		svc.close(log)
		return nil, err
	}
	svc.responder, err = rag.NewResponder(rag.ResponderConfig{
		Builder:     builder,
		Generator:   generator,
		Logger:      log,
		MaxTokens:   cfg.Chat.MaxAnswerTokens,
		Temperature: cfg.Chat.Temperature,
	})
	if err != nil {
		svc.close(log)
		return nil, err
	}

	if cfg.Geocode.Enabled {
		svc.geocoder = geocode.NewClient(
			geocode.WithBaseURL(cfg.Geocode.BaseURL),
			geocode.WithInterval(cfg.Geocode.IntervalDuration()),
			geocode.WithLogger(log),
		)
	}

	svc.metrics = metrics.New(prometheus.DefaultRegisterer)
	return svc, nil
}

// close releases the composed services in reverse dependency order.
func (s *services) close(log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if s.transcripts != nil {
		if err := s.transcripts.Close(ctx); err != nil {
			log.Warn("close transcript store", "error", err)
		}
	}
	if s.engine != nil {
		if err := s.engine.Close(); err != nil {
			log.Warn("close kv store", "error", err)
		}
	}
}

// openKV opens the configured row store.
func openKV(cfg *config.Config) (kv.Store, error) {
	if cfg.Data.InMemory {
		return kv.NewMemory(nil), nil
	}
	return kv.NewBadger(kv.BadgerOptions{
		Dir: filepath.Join(cfg.Data.Dir, "kv"),
	})
}

// openBlobs opens the configured blob store for consent audio and index
// snapshots.
func openBlobs(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case "s3":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Storage.Region))
		if err != nil {
			return nil, fmt.Errorf("aws config: %w", err)
		}
		return storage.NewS3(s3.NewFromConfig(awsCfg), cfg.Storage.Bucket, cfg.Storage.Prefix), nil
	default:
		dir := cfg.Storage.Dir
		if dir == "" {
			dir = filepath.Join(cfg.Data.Dir, "blobs")
		}
		return storage.NewDir(dir)
	}
}

// loadFilter builds the transcript hygiene filter, from a rules file
// when one is configured.
func loadFilter(path string) (*speech.Filter, error) {
	if path == "" {
		return speech.DefaultFilter(), nil
	}
	rules, err := speech.LoadRules(path)
	if err != nil {
		return nil, fmt.Errorf("speech rules: %w", err)
	}
	return speech.NewFilter(rules)
}

// newEmbedder selects the text embedder per the embedding section.
func newEmbedder(ctx context.Context, cfg *config.Config) (embed.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "gemini":
		return embed.NewGemini(ctx, cfg.Secrets.GeminiKey,
			embed.WithModel(cfg.Embedding.Model),
			embed.WithDimension(cfg.Embedding.Dimension))
	default:
		return embed.NewOpenAI(cfg.Secrets.OpenAIKey,
			embed.WithModel(cfg.Embedding.Model),
			embed.WithDimension(cfg.Embedding.Dimension)), nil
	}
}

// newGenerator selects the answer generator per the chat section.
func newGenerator(ctx context.Context, cfg *config.Config) (llm.Generator, error) {
	switch cfg.Chat.Provider {
	case "gemini":
		return llm.NewGemini(ctx, cfg.Secrets.GeminiKey, llm.WithModel(cfg.Chat.Model))
	default:
		return llm.NewOpenAI(cfg.Secrets.OpenAIKey, llm.WithModel(cfg.Chat.Model)), nil
	}
}
