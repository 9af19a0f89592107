package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/earshot-ai/earshot/pkg/cli"
	"github.com/earshot-ai/earshot/pkg/client"
)

var (
	transcribeStart string
	transcribeEnd   string
	transcribeLat   float64
	transcribeLon   float64
	transcribeJQ    string
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <audio.wav>",
	Short: "Submit one audio chunk to the capture pipeline",
	Long: `Submit one audio chunk (1 to 60 seconds of PCM WAV) to the capture
pipeline. The chunk is transcribed and stored only when the speaker
matches the caller's enrolled voiceprint; otherwise it is discarded and
reported as filtered.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := apiClient()
		if err != nil {
			return err
		}

		start, err := parseTimestamp("start", transcribeStart)
		if err != nil {
			return err
		}
		end, err := parseTimestamp("end", transcribeEnd)
		if err != nil {
			return err
		}

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		req := &client.TranscribeRequest{
			Audio:    f,
			Filename: filepath.Base(args[0]),
			Start:    start,
			End:      end,
		}
		if cmd.Flags().Changed("lat") != cmd.Flags().Changed("lon") {
			return fmt.Errorf("--lat and --lon must be set together")
		}
		if cmd.Flags().Changed("lat") {
			req.Latitude = &transcribeLat
			req.Longitude = &transcribeLon
		}

		res, err := c.Transcribe(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("transcribe: %w", err)
		}

		if transcribeJQ != "" {
			return outputResult(res, "json", "", transcribeJQ)
		}
		switch {
		case res.Segment != nil:
			cli.PrintSuccess("stored segment %s in session %s", res.Segment.ID, res.SessionID)
			fmt.Println(res.Segment.Text)
		case res.Filtered > 0:
			cli.PrintInfo("chunk filtered: speaker did not match the enrolled voiceprint")
		default:
			cli.PrintInfo("chunk produced no storable speech")
		}
		return nil
	},
}

func init() {
	transcribeCmd.Flags().StringVar(&transcribeStart, "start", "", "chunk start timestamp (ISO-8601)")
	transcribeCmd.Flags().StringVar(&transcribeEnd, "end", "", "chunk end timestamp (ISO-8601)")
	transcribeCmd.Flags().Float64Var(&transcribeLat, "lat", 0, "capture latitude")
	transcribeCmd.Flags().Float64Var(&transcribeLon, "lon", 0, "capture longitude")
	transcribeCmd.Flags().StringVar(&transcribeJQ, "jq", "", "reshape the JSON result with a jq expression")
	rootCmd.AddCommand(transcribeCmd)
}
