package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/earshot-ai/earshot/pkg/cli"
	"github.com/earshot-ai/earshot/pkg/config"
)

var (
	backfillConfigPath string
	backfillUserID     string
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Re-attempt missing segment embeddings",
	Long: `Re-attempt embeddings for segments stored without one, for example
because the embedding backend was unreachable at append time. Segments
gain semantic searchability as their embeddings attach; nothing else
about them changes.

Runs against the store configured in the server config file; do not run
it while a server is holding the same store open.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(backfillConfigPath)
		if err != nil {
			return err
		}

		log := cfg.Logging.NewLogger()
		slog.SetDefault(log)

		svc, err := buildServices(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer svc.close(log)

		n, err := svc.transcripts.BackfillEmbeddings(cmd.Context(), backfillUserID)
		if err != nil {
			return fmt.Errorf("backfill: %w", err)
		}
		cli.PrintSuccess("attached %d embeddings for user %s", n, backfillUserID)
		return nil
	},
}

func init() {
	backfillCmd.Flags().StringVar(&backfillConfigPath, "config", "", "path to the server config file")
	backfillCmd.Flags().StringVar(&backfillUserID, "user", "", "external identity id to backfill")
	_ = backfillCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(backfillCmd)
}
