// Package config loads and validates the service configuration.
//
// Configuration comes from a YAML file layered over built-in defaults.
// Secrets are never read from the file: API keys come from the
// environment (OPENAI_API_KEY, GEMINI_API_KEY; AWS uses its default
// credential chain).
package config

import (
	"cmp"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

// Config is the complete service configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Data       DataConfig       `yaml:"data"`
	Auth       AuthConfig       `yaml:"auth"`
	Voiceprint VoiceprintConfig `yaml:"voiceprint"`
	Speech     SpeechConfig     `yaml:"speech"`
	Session    SessionConfig    `yaml:"session"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Chat       ChatConfig       `yaml:"chat"`
	Geocode    GeocodeConfig    `yaml:"geocode"`
	Storage    StorageConfig    `yaml:"storage"`
	Logging    LoggingConfig    `yaml:"logging"`

	// Secrets are populated from the environment by Load.
	Secrets Secrets `yaml:"-"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Listen string `yaml:"listen"`
	// Mode is the gin mode: debug, release or test.
	Mode string `yaml:"mode"`
}

// DataConfig controls the durable store.
type DataConfig struct {
	Dir      string `yaml:"dir"`
	InMemory bool   `yaml:"in_memory"`
}

// AuthConfig lists the bearer tokens the server accepts. Each token maps
// to one caller identity.
type AuthConfig struct {
	Tokens []TokenConfig `yaml:"tokens"`
}

// TokenConfig binds a bearer token to a caller identity.
type TokenConfig struct {
	Token string `yaml:"token"`
	ID    string `yaml:"id"`
	Email string `yaml:"email,omitempty"`
	Name  string `yaml:"name,omitempty"`
}

// VoiceprintConfig controls the speaker gate.
type VoiceprintConfig struct {
	// Endpoint is the base URL of the voiceprint sidecar.
	Endpoint  string  `yaml:"endpoint"`
	Threshold float64 `yaml:"threshold"`
	Dimension int     `yaml:"dimension"`
}

// SpeechConfig controls transcription.
type SpeechConfig struct {
	Model string `yaml:"model"`
	// RulesFile points at a YAML hygiene blocklist. Empty uses the
	// built-in rules.
	RulesFile string `yaml:"rules_file,omitempty"`
}

// SessionConfig controls session boundary inference.
type SessionConfig struct {
	// Gap is a duration string; segments starting more than this after
	// the previous segment's end open a new session.
	Gap string `yaml:"gap"`
}

// EmbeddingConfig selects the text embedder.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
}

// ChatConfig selects the answer generator.
type ChatConfig struct {
	Provider         string  `yaml:"provider"`
	Model            string  `yaml:"model"`
	MaxContextTokens int     `yaml:"max_context_tokens"`
	MaxAnswerTokens  int     `yaml:"max_answer_tokens"`
	Temperature      float32 `yaml:"temperature"`
}

// GeocodeConfig controls reverse geocoding of capture coordinates.
type GeocodeConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BaseURL  string `yaml:"base_url"`
	Interval string `yaml:"interval"`
}

// StorageConfig selects the blob store for consent audio and index
// snapshots.
type StorageConfig struct {
	// Backend is "local" or "s3".
	Backend string `yaml:"backend"`
	// Dir is the local backend root. Empty resolves to a blobs
	// directory under data.dir.
	Dir    string `yaml:"dir,omitempty"`
	Bucket string `yaml:"bucket,omitempty"`
	Prefix string `yaml:"prefix,omitempty"`
	Region string `yaml:"region,omitempty"`
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Secrets holds credentials sourced from the environment.
type Secrets struct {
	OpenAIKey string
	GeminiKey string
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Listen: ":8080",
			Mode:   "release",
		},
		Data: DataConfig{
			Dir: "data",
		},
		Voiceprint: VoiceprintConfig{
			Endpoint:  "http://127.0.0.1:8089",
			Threshold: 0.65,
			Dimension: 192,
		},
		Speech: SpeechConfig{
			Model: "whisper-1",
		},
		Session: SessionConfig{
			Gap: "5m",
		},
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			Dimension: 1536,
		},
		Chat: ChatConfig{
			Provider:         "openai",
			Model:            "gpt-4o",
			MaxContextTokens: 6000,
			MaxAnswerTokens:  1000,
			Temperature:      0.7,
		},
		Geocode: GeocodeConfig{
			Enabled:  true,
			BaseURL:  "https://nominatim.openstreetmap.org",
			Interval: "1s",
		},
		Storage: StorageConfig{
			Backend: "local",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from the YAML file at path layered over
// Default, applies environment overrides and validates the result. An
// empty path skips the file and uses defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// applyEnv layers environment overrides onto the file values.
func (c *Config) applyEnv() {
	c.Server.Listen = cmp.Or(os.Getenv("EARSHOT_LISTEN"), c.Server.Listen)
	c.Data.Dir = cmp.Or(os.Getenv("EARSHOT_DATA_DIR"), c.Data.Dir)
	c.Voiceprint.Endpoint = cmp.Or(os.Getenv("EARSHOT_VOICEPRINT_URL"), c.Voiceprint.Endpoint)

	c.Secrets.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	c.Secrets.GeminiKey = os.Getenv("GEMINI_API_KEY")
}

// Validate checks every section and the provider/secret pairing.
func (c *Config) Validate() error {
	if err := c.Server.validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Data.validate(); err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if err := c.Voiceprint.validate(); err != nil {
		return fmt.Errorf("voiceprint: %w", err)
	}
	if err := c.Speech.validate(); err != nil {
		return fmt.Errorf("speech: %w", err)
	}
	if err := c.Session.validate(); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	if err := c.Embedding.validate(); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if err := c.Chat.validate(); err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	if err := c.Geocode.validate(); err != nil {
		return fmt.Errorf("geocode: %w", err)
	}
	if err := c.Storage.validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.Logging.validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}

	for _, p := range []string{c.Embedding.Provider, c.Chat.Provider} {
		switch p {
		case "openai":
			if c.Secrets.OpenAIKey == "" {
				return fmt.Errorf("OPENAI_API_KEY is required for provider %q", p)
			}
		case "gemini":
			if c.Secrets.GeminiKey == "" {
				return fmt.Errorf("GEMINI_API_KEY is required for provider %q", p)
			}
		}
	}
	return nil
}

func (s *ServerConfig) validate() error {
	if s.Listen == "" {
		return fmt.Errorf("listen cannot be empty")
	}
	switch s.Mode {
	case "", "debug", "release", "test":
	default:
		return fmt.Errorf("mode must be one of [debug, release, test], got %q", s.Mode)
	}
	return nil
}

func (d *DataConfig) validate() error {
	if !d.InMemory && d.Dir == "" {
		return fmt.Errorf("dir cannot be empty unless in_memory is set")
	}
	return nil
}

func (v *VoiceprintConfig) validate() error {
	if v.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}
	if v.Threshold < 0 || v.Threshold > 1 {
		return fmt.Errorf("threshold must be between 0 and 1, got %v", v.Threshold)
	}
	if v.Dimension < 1 {
		return fmt.Errorf("dimension must be at least 1, got %d", v.Dimension)
	}
	return nil
}

func (s *SpeechConfig) validate() error {
	if s.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}
	return nil
}

func (s *SessionConfig) validate() error {
	d, err := time.ParseDuration(s.Gap)
	if err != nil {
		return fmt.Errorf("gap: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("gap must be positive, got %s", s.Gap)
	}
	return nil
}

func (e *EmbeddingConfig) validate() error {
	if e.Provider != "openai" && e.Provider != "gemini" {
		return fmt.Errorf("provider must be openai or gemini, got %q", e.Provider)
	}
	if e.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}
	if e.Dimension < 1 {
		return fmt.Errorf("dimension must be at least 1, got %d", e.Dimension)
	}
	return nil
}

func (ch *ChatConfig) validate() error {
	if ch.Provider != "openai" && ch.Provider != "gemini" {
		return fmt.Errorf("provider must be openai or gemini, got %q", ch.Provider)
	}
	if ch.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}
	if ch.MaxContextTokens < 1 {
		return fmt.Errorf("max_context_tokens must be at least 1, got %d", ch.MaxContextTokens)
	}
	if ch.MaxAnswerTokens < 1 {
		return fmt.Errorf("max_answer_tokens must be at least 1, got %d", ch.MaxAnswerTokens)
	}
	if ch.Temperature < 0 || ch.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %v", ch.Temperature)
	}
	return nil
}

func (g *GeocodeConfig) validate() error {
	if !g.Enabled {
		return nil
	}
	if g.BaseURL == "" {
		return fmt.Errorf("base_url cannot be empty when enabled")
	}
	d, err := time.ParseDuration(g.Interval)
	if err != nil {
		return fmt.Errorf("interval: %w", err)
	}
	if d < 0 {
		return fmt.Errorf("interval cannot be negative, got %s", g.Interval)
	}
	return nil
}

func (s *StorageConfig) validate() error {
	switch s.Backend {
	case "local":
	case "s3":
		if s.Bucket == "" {
			return fmt.Errorf("bucket cannot be empty for the s3 backend")
		}
	default:
		return fmt.Errorf("backend must be local or s3, got %q", s.Backend)
	}
	return nil
}

func (l *LoggingConfig) validate() error {
	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	if l.Format != "text" && l.Format != "json" {
		return fmt.Errorf("format must be text or json, got %q", l.Format)
	}
	return nil
}

// GapDuration returns the parsed session gap. Load validates the value,
// so a parse failure here yields zero.
func (s *SessionConfig) GapDuration() time.Duration {
	d, _ := time.ParseDuration(s.Gap)
	return d
}

// IntervalDuration returns the parsed geocode pacing interval.
func (g *GeocodeConfig) IntervalDuration() time.Duration {
	d, _ := time.ParseDuration(g.Interval)
	return d
}

// NewLogger builds a slog logger per the section. Unknown values fall
// back to info-level text, matching what validate allows through.
func (l *LoggingConfig) NewLogger() *slog.Logger {
	level := slog.LevelInfo
	switch l.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
