package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := Default()
	cfg.Secrets.OpenAIKey = "sk-test"
	return cfg
}

func TestDefaultIsValid(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("EARSHOT_LISTEN", "")

	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
server:
  listen: ":9090"
voiceprint:
  threshold: 0.5
session:
  gap: 10m
auth:
  tokens:
    - token: tok-1
      id: u-1
      email: amy@example.com
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Listen != ":9090" {
		t.Errorf("Listen = %q, want :9090", cfg.Server.Listen)
	}
	if cfg.Voiceprint.Threshold != 0.5 {
		t.Errorf("Threshold = %v, want 0.5", cfg.Voiceprint.Threshold)
	}
	if got := cfg.Session.GapDuration(); got != 10*time.Minute {
		t.Errorf("GapDuration() = %v, want 10m", got)
	}
	if len(cfg.Auth.Tokens) != 1 || cfg.Auth.Tokens[0].ID != "u-1" {
		t.Errorf("Tokens = %+v, want one entry for u-1", cfg.Auth.Tokens)
	}

	// Untouched sections keep their defaults.
	if cfg.Chat.Model != "gpt-4o" {
		t.Errorf("Chat.Model = %q, want default gpt-4o", cfg.Chat.Model)
	}
	if cfg.Voiceprint.Dimension != 192 {
		t.Errorf("Voiceprint.Dimension = %d, want default 192", cfg.Voiceprint.Dimension)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load() succeeded for a missing file")
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [not a mapping"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load() succeeded for malformed YAML")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("EARSHOT_LISTEN", ":7070")
	t.Setenv("EARSHOT_DATA_DIR", "/var/lib/earshot")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Listen != ":7070" {
		t.Errorf("Listen = %q, want :7070", cfg.Server.Listen)
	}
	if cfg.Data.Dir != "/var/lib/earshot" {
		t.Errorf("Data.Dir = %q, want /var/lib/earshot", cfg.Data.Dir)
	}
	if cfg.Secrets.OpenAIKey != "sk-test" {
		t.Errorf("OpenAIKey = %q, want sk-test", cfg.Secrets.OpenAIKey)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing openai key",
			mutate:  func(c *Config) { c.Secrets.OpenAIKey = "" },
			wantErr: "OPENAI_API_KEY",
		},
		{
			name: "missing gemini key",
			mutate: func(c *Config) {
				c.Chat.Provider = "gemini"
				c.Chat.Model = "gemini-2.0-flash"
			},
			wantErr: "GEMINI_API_KEY",
		},
		{
			name:    "threshold out of range",
			mutate:  func(c *Config) { c.Voiceprint.Threshold = 1.5 },
			wantErr: "threshold",
		},
		{
			name:    "unparseable gap",
			mutate:  func(c *Config) { c.Session.Gap = "soon" },
			wantErr: "gap",
		},
		{
			name:    "zero gap",
			mutate:  func(c *Config) { c.Session.Gap = "0s" },
			wantErr: "gap must be positive",
		},
		{
			name:    "unknown gin mode",
			mutate:  func(c *Config) { c.Server.Mode = "verbose" },
			wantErr: "mode",
		},
		{
			name:    "unknown embedding provider",
			mutate:  func(c *Config) { c.Embedding.Provider = "ollama" },
			wantErr: "provider",
		},
		{
			name:    "s3 without bucket",
			mutate:  func(c *Config) { c.Storage.Backend = "s3" },
			wantErr: "bucket",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Logging.Level = "trace" },
			wantErr: "level",
		},
		{
			name:    "temperature out of range",
			mutate:  func(c *Config) { c.Chat.Temperature = 3 },
			wantErr: "temperature",
		},
		{
			name:    "empty data dir",
			mutate:  func(c *Config) { c.Data.Dir = "" },
			wantErr: "dir",
		},
		{
			name:    "geocode interval",
			mutate:  func(c *Config) { c.Geocode.Interval = "often" },
			wantErr: "interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateAllowsDisabledGeocode(t *testing.T) {
	cfg := validConfig()
	cfg.Geocode = GeocodeConfig{Enabled: false}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestNewLogger(t *testing.T) {
	ctx := context.Background()

	debug := (&LoggingConfig{Level: "debug", Format: "json"}).NewLogger()
	if !debug.Enabled(ctx, slog.LevelDebug) {
		t.Error("debug logger does not pass debug records")
	}

	warn := (&LoggingConfig{Level: "warn", Format: "text"}).NewLogger()
	if warn.Enabled(ctx, slog.LevelInfo) {
		t.Error("warn logger passes info records")
	}
}
