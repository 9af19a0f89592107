package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/earshot-ai/earshot/pkg/cli"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <audio.wav>",
	Short: "Register the caller's voiceprint from a consent recording",
	Long: `Register the caller's voiceprint from a consent recording.

The recording must be a PCM WAV file of 15 to 30 seconds of the
speaker's natural speech. Enrolling again overwrites the stored
voiceprint.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := apiClient()
		if err != nil {
			return err
		}

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		res, err := c.Enroll(cmd.Context(), f, filepath.Base(args[0]))
		if err != nil {
			return fmt.Errorf("enroll: %w", err)
		}
		cli.PrintSuccess("voiceprint enrolled (%d dimensions)", res.Dimension)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(enrollCmd)
}
