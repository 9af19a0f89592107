package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/earshot-ai/earshot/pkg/cli"
	"github.com/earshot-ai/earshot/pkg/config"
	"github.com/earshot-ai/earshot/pkg/identity"
	"github.com/earshot-ai/earshot/pkg/transcript"
)

var (
	seedConfigPath string
	seedUserID     string
	seedUserName   string
)

// seedScript is a few days of demo speech. Offsets are relative to
// local midnight of the day they land on; consecutive entries inside a
// run stay within the session gap.
var seedScript = []struct {
	daysAgo  int
	offset   time.Duration
	duration time.Duration
	text     string
}{
	{2, 9*time.Hour + 15*time.Minute, 25 * time.Second, "Remember to pick up the soldering iron from Dana before the weekend."},
	{2, 9*time.Hour + 16*time.Minute, 30 * time.Second, "The garden bed by the fence needs another bag of compost, maybe two."},
	{2, 14 * time.Hour, 20 * time.Second, "Called the dentist, the appointment moved to Thursday at eight thirty."},
	{1, 10*time.Hour + 30*time.Minute, 40 * time.Second, "For the solar panel install we agreed on the south roof, eight panels, and the inverter goes in the garage."},
	{1, 10*time.Hour + 32*time.Minute, 35 * time.Second, "The electrician quoted twelve hundred for the panel hookup, which is under budget."},
	{1, 19 * time.Hour, 30 * time.Second, "Dinner with the Moreaus next Friday, they are bringing dessert."},
	{0, 8*time.Hour + 45*time.Minute, 25 * time.Second, "Ship the prototype board back to the lab and ask for the revision two firmware."},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Populate a development store with demo segments",
	Long: `Populate a development store with a demo user and a few days of
segments, so transcripts and chat have something to work with before
any real audio has been captured.

Runs against the store configured in the server config file; do not run
it while a server is holding the same store open.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(seedConfigPath)
		if err != nil {
			return err
		}
		return runSeed(cmd.Context(), cfg)
	},
}

func runSeed(ctx context.Context, cfg *config.Config) error {
	log := cfg.Logging.NewLogger()
	slog.SetDefault(log)

	svc, err := buildServices(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer svc.close(log)

	user, created, err := svc.users.GetOrCreate(ctx, identity.Identity{
		ID:   seedUserID,
		Name: seedUserName,
	})
	if err != nil {
		return fmt.Errorf("seed user: %w", err)
	}
	if created {
		cli.PrintInfo("created demo user %s", user.ID)
	}

	now := time.Now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	stored, embedded := 0, 0
	for _, entry := range seedScript {
		start := midnight.AddDate(0, 0, -entry.daysAgo).Add(entry.offset)
		end := start.Add(entry.duration)

		sessionID, _, err := svc.sessions.Resolve(ctx, user.ID, start)
		if err != nil {
			return fmt.Errorf("resolve session: %w", err)
		}

		seg, embRes, err := svc.transcripts.Append(ctx, transcript.Segment{
			UserID:      user.ID,
			SessionID:   sessionID,
			Speaker:     transcript.SpeakerPrimary,
			SpeakerName: seedUserName,
			Text:        entry.text,
			Start:       start.UnixNano(),
			End:         end.UnixNano(),
		})
		if err != nil {
			return fmt.Errorf("append segment: %w", err)
		}
		stored++
		if embRes.Attached {
			embedded++
		} else if embRes.Err != nil {
			log.Warn("segment stored without embedding", "segment", seg.ID, "error", embRes.Err)
		}
	}

	cli.PrintSuccess("seeded %d segments (%d embedded) for user %s", stored, embedded, user.ID)
	if embedded < stored {
		cli.PrintInfo("run 'earshot backfill' once the embedding backend is reachable")
	}
	return nil
}

func init() {
	seedCmd.Flags().StringVar(&seedConfigPath, "config", "", "path to the server config file")
	seedCmd.Flags().StringVar(&seedUserID, "user", "demo-user", "external identity id to seed")
	seedCmd.Flags().StringVar(&seedUserName, "name", "Demo User", "display name for the seeded user")
	rootCmd.AddCommand(seedCmd)
}
