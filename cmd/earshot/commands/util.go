package commands

import (
	"fmt"
	"time"

	"github.com/earshot-ai/earshot/pkg/cli"
	"github.com/earshot-ai/earshot/pkg/isotime"
)

// timeoutSeconds converts a context timeout setting to a duration.
func timeoutSeconds(s int) time.Duration {
	return time.Duration(s) * time.Second
}

// parseTimestamp parses a CLI timestamp flag. It accepts the wire layout
// plus RFC 3339 with an offset, since timestamps pasted from device logs
// come both ways.
func parseTimestamp(flag, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("--%s is required", flag)
	}
	if t, err := isotime.Parse(value); err == nil {
		return t.Time(), nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("--%s: cannot parse %q (want e.g. 2026-08-26T10:00:00)", flag, value)
}

// outputResult renders a command result per the shared --output and --jq
// flags. When jqExpr is set the result is reshaped first and emitted as
// JSON lines, one per jq output.
func outputResult(result any, format, file, jqExpr string) error {
	jq, err := cli.ParseJQ(jqExpr)
	if err != nil {
		return err
	}
	if jq != nil {
		value, err := jq.Apply(result)
		if err != nil {
			return err
		}
		return cli.Output(value, cli.OutputOptions{Format: cli.FormatJSON, File: file})
	}
	return cli.Output(result, cli.OutputOptions{Format: cli.OutputFormat(format), File: file})
}
