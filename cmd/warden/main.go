package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/warden-agent/warden/cli"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: could not load .env: %v\n", err)
	}

	opts := cli.DefaultOptions()

	root := &cobra.Command{
		Use:   "warden",
		Short: "A guarded command-line agent",
		Long: `warden runs an LLM-driven agent with a closed tool set.

Every filesystem access is validated against a trust policy, every piece
of content headed for the shell is screened for dangerous patterns, and
every decision is written to an audit trail.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&opts.Provider, "provider", "p", opts.Provider,
		"LLM provider (xai, openai, anthropic, deepseek, gemini)")
	root.PersistentFlags().IntVarP(&opts.MaxIter, "max-iter", "m", opts.MaxIter,
		"maximum agent iterations per turn (0 uses the configured default)")
	root.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false,
		"print progress and diagnostics")

	root.AddCommand(runCmd(&opts))
	root.AddCommand(chatCmd(&opts))
	root.AddCommand(toolsCmd(&opts))

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCmd(opts *cli.Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [task]",
		Short: "Run a single task and exit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reason, err := cli.Run(context.Background(), args[0], *opts)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			os.Exit(reason.ExitCode())
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "session ID to resume")
	cmd.Flags().StringVar(&opts.DBPath, "db", "", "path to the session database (default in-memory or WARDEN_DB_PATH)")
	return cmd
}

func chatCmd(opts *cli.Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Chat(context.Background(), *opts)
		},
	}
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "session ID to resume")
	cmd.Flags().StringVar(&opts.DBPath, "db", "", "path to the session database (default in-memory or WARDEN_DB_PATH)")
	return cmd
}

func toolsCmd(opts *cli.Options) *cobra.Command {
	var showParams bool
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the available tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.ListTools(showParams)
		},
	}
	cmd.Flags().BoolVarP(&showParams, "params", "V", false, "Show tool parameters")
	return cmd
}
