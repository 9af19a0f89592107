package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/earshot-ai/earshot/pkg/cli"
	"github.com/earshot-ai/earshot/pkg/client"
)

var chatTimezone string

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Ask a question over the transcript history",
	Long: `Ask a question over the caller's transcript history.

The answer streams as it is generated, followed by citations pointing
back at the transcripts it drew on. Time phrases in the question
("yesterday", "last week") restrict retrieval; they are resolved in the
context's timezone, or the zone given with --timezone.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, cliCtx, err := apiClient()
		if err != nil {
			return err
		}

		tz := chatTimezone
		if tz == "" {
			tz = cliCtx.Timezone
		}

		st := cli.NewStyles(cli.DefaultTheme)
		var citations []*client.Citation
		streamed := false

		for ev, err := range c.Chat(cmd.Context(), &client.ChatRequest{
			Message:  args[0],
			Timezone: tz,
		}) {
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}
			switch ev.Type {
			case client.EventText:
				streamed = true
				fmt.Print(ev.Content)
			case client.EventCitation:
				if ev.Citation != nil {
					citations = append(citations, ev.Citation)
				}
			case client.EventDone:
				if streamed {
					fmt.Println()
				}
			case client.EventError:
				if streamed {
					fmt.Println()
				}
				return fmt.Errorf("chat: %s", ev.Message)
			}
		}

		if len(citations) > 0 {
			fmt.Fprintln(os.Stdout)
			fmt.Println(st.Help.Render("sources"))
			for i, cit := range citations {
				fmt.Println(cli.RenderCitation(st, i+1, cit))
			}
		}
		return nil
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatTimezone, "timezone", "", "IANA zone for time phrases (default: context timezone)")
	rootCmd.AddCommand(chatCmd)
}
