package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/earshot-ai/earshot/pkg/cli"
	"github.com/earshot-ai/earshot/pkg/client"
)

var (
	transcriptsSession string
	transcriptsLimit   int
	transcriptsOffset  int
	transcriptsOutput  string
	transcriptsJQ      string
)

var transcriptsCmd = &cobra.Command{
	Use:   "transcripts",
	Short: "List stored transcripts, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := apiClient()
		if err != nil {
			return err
		}

		page, err := c.Transcripts(cmd.Context(), &client.TranscriptsOptions{
			SessionID: transcriptsSession,
			Limit:     transcriptsLimit,
			Offset:    transcriptsOffset,
		})
		if err != nil {
			return fmt.Errorf("transcripts: %w", err)
		}

		if transcriptsOutput != "" || transcriptsJQ != "" {
			return outputResult(page, transcriptsOutput, "", transcriptsJQ)
		}
		fmt.Println(cli.RenderTranscripts(cli.NewStyles(cli.DefaultTheme), page))
		return nil
	},
}

func init() {
	transcriptsCmd.Flags().StringVar(&transcriptsSession, "session", "", "restrict to one session id")
	transcriptsCmd.Flags().IntVar(&transcriptsLimit, "limit", 0, "page size, 1-100 (server default 10)")
	transcriptsCmd.Flags().IntVar(&transcriptsOffset, "offset", 0, "rows to skip, newest first")
	transcriptsCmd.Flags().StringVarP(&transcriptsOutput, "output", "o", "", "output format: yaml or json (default: rendered table)")
	transcriptsCmd.Flags().StringVar(&transcriptsJQ, "jq", "", "reshape the JSON result with a jq expression")
	rootCmd.AddCommand(transcriptsCmd)
}
