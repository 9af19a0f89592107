package commands

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/earshot-ai/earshot/pkg/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI contexts",
	Long: `Manage named server contexts.

A context binds a name to a server URL, a bearer token, and optional
request settings. The current context is used by every client command
unless -c/--context overrides it.

Examples:
  earshot config add-context dev --server http://127.0.0.1:8080 --token dev-token
  earshot config use-context dev
  earshot config list-contexts
  earshot config current-context
  earshot config delete-context old-staging`,
}

var (
	addContextServer   string
	addContextToken    string
	addContextTimezone string
)

var configAddContextCmd = &cobra.Command{
	Use:   "add-context <name>",
	Short: "Add or update a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getCLIConfig()
		if err != nil {
			return err
		}
		name := args[0]

		ctx := &cli.Context{
			Name:     name,
			Server:   addContextServer,
			Token:    addContextToken,
			Timezone: addContextTimezone,
		}
		if existing, err := cfg.GetContext(name); err == nil {
			// Update keeps fields the flags did not touch.
			if ctx.Server == "" {
				ctx.Server = existing.Server
			}
			if ctx.Token == "" {
				ctx.Token = existing.Token
			}
			if ctx.Timezone == "" {
				ctx.Timezone = existing.Timezone
			}
			ctx.Timeout = existing.Timeout
			ctx.MaxRetries = existing.MaxRetries
			ctx.Extra = existing.Extra
		}
		if ctx.Server == "" {
			return fmt.Errorf("--server is required for a new context")
		}

		if err := cfg.AddContext(name, ctx); err != nil {
			return err
		}
		if cfg.CurrentContext == "" {
			if err := cfg.UseContext(name); err != nil {
				return err
			}
			cli.PrintInfo("context %q is now the current context", name)
		}
		cli.PrintSuccess("context %q saved", name)
		return nil
	},
}

var configUseContextCmd = &cobra.Command{
	Use:   "use-context <name>",
	Short: "Switch the current context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getCLIConfig()
		if err != nil {
			return err
		}
		if err := cfg.UseContext(args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("switched to context %q", args[0])
		return nil
	},
}

var configListContextsCmd = &cobra.Command{
	Use:     "list-contexts",
	Aliases: []string{"ls"},
	Short:   "List all contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getCLIConfig()
		if err != nil {
			return err
		}
		names := cfg.ListContexts()
		if len(names) == 0 {
			fmt.Println("No contexts configured.")
			fmt.Println("Create one with: earshot config add-context <name> --server <url> --token <token>")
			return nil
		}
		sort.Strings(names)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CURRENT\tNAME\tSERVER\tTOKEN")
		for _, name := range names {
			current := ""
			if name == cfg.CurrentContext {
				current = "*"
			}
			ctx, _ := cfg.GetContext(name)
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", current, name, ctx.Server, cli.MaskToken(ctx.Token))
		}
		return w.Flush()
	},
}

var configCurrentContextCmd = &cobra.Command{
	Use:   "current-context",
	Short: "Show the current context",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getCLIConfig()
		if err != nil {
			return err
		}
		ctx, err := cfg.GetCurrentContext()
		if err != nil {
			return err
		}
		fmt.Printf("%s (%s)\n", ctx.Name, ctx.Server)
		return nil
	},
}

var configDeleteContextCmd = &cobra.Command{
	Use:   "delete-context <name>",
	Short: "Delete a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getCLIConfig()
		if err != nil {
			return err
		}
		if err := cfg.DeleteContext(args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("context %q deleted", args[0])
		return nil
	},
}

func init() {
	configAddContextCmd.Flags().StringVar(&addContextServer, "server", "", "API base URL")
	configAddContextCmd.Flags().StringVar(&addContextToken, "token", "", "bearer token")
	configAddContextCmd.Flags().StringVar(&addContextTimezone, "timezone", "", "IANA zone sent with chat requests")

	configCmd.AddCommand(configAddContextCmd)
	configCmd.AddCommand(configUseContextCmd)
	configCmd.AddCommand(configListContextsCmd)
	configCmd.AddCommand(configCurrentContextCmd)
	configCmd.AddCommand(configDeleteContextCmd)
	rootCmd.AddCommand(configCmd)
}
