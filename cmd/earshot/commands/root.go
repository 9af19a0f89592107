package commands

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/earshot-ai/earshot/pkg/cli"
	"github.com/earshot-ai/earshot/pkg/client"
)

var (
	// Global flags
	verbose     bool
	contextName string

	// CLI configuration (loaded at init time)
	cliConfig *cli.Config
)

var rootCmd = &cobra.Command{
	Use:   "earshot",
	Short: "Selective-capture transcript recorder and recall",
	Long: `earshot - record what an enrolled speaker says, recall it later.

The server side gates audio chunks on a voiceprint match, transcribes
accepted speech, groups segments into sessions, and answers questions
over the history with retrieval-augmented generation.

The client commands talk to a running server through named contexts
stored in ~/.earshot/config.yaml, similar to kubectl:

  # Point a context at a deployment
  earshot config add-context dev --server http://127.0.0.1:8080 --token dev-token
  earshot config use-context dev

  # Capture and recall
  earshot enroll consent.wav
  earshot transcribe chunk.wav --start 2026-08-26T10:00:00 --end 2026-08-26T10:00:30
  earshot transcripts --limit 20
  earshot chat "what did I discuss yesterday about the panel?"`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initCLIConfig)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&contextName, "context", "c", "", "CLI context to use (default: current context)")
}

// cliConfigErr stores the error from cli.LoadConfig for deferred
// reporting, so commands that need no context (serve, version) still
// run when the home directory is unavailable.
var cliConfigErr error

func initCLIConfig() {
	// Best-effort: secrets for serve/seed/backfill may live in a .env.
	_ = godotenv.Load()

	cfg, err := cli.LoadConfig()
	if err != nil {
		cliConfigErr = err
		return
	}
	cliConfig = cfg
}

// getCLIConfig returns the CLI configuration.
func getCLIConfig() (*cli.Config, error) {
	if cliConfig == nil {
		if cliConfigErr != nil {
			return nil, fmt.Errorf("config not available: %w", cliConfigErr)
		}
		cfg, err := cli.LoadConfig()
		if err != nil {
			return nil, fmt.Errorf("config not available: %w", err)
		}
		cliConfig = cfg
	}
	return cliConfig, nil
}

// resolveContext returns the context selected by --context, or the
// current one.
func resolveContext() (*cli.Context, error) {
	cfg, err := getCLIConfig()
	if err != nil {
		return nil, err
	}
	ctx, err := cfg.ResolveContext(contextName)
	if err != nil {
		return nil, fmt.Errorf("%w (create one with: earshot config add-context <name> --server <url> --token <token>)", err)
	}
	if ctx.Server == "" {
		return nil, fmt.Errorf("context %q has no server configured", ctx.Name)
	}
	return ctx, nil
}

// apiClient builds an API client from the selected context.
func apiClient() (*client.Client, *cli.Context, error) {
	ctx, err := resolveContext()
	if err != nil {
		return nil, nil, err
	}
	var opts []client.Option
	if ctx.Timeout > 0 {
		opts = append(opts, client.WithTimeout(timeoutSeconds(ctx.Timeout)))
	}
	if ctx.MaxRetries > 0 {
		opts = append(opts, client.WithRetry(ctx.MaxRetries))
	}
	return client.New(ctx.Server, ctx.Token, opts...), ctx, nil
}
