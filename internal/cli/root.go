// Package cli defines Cobra command definitions for the fleet CLI.
// This file contains the root command, version flag, and help output.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/skillfleet/fleet/internal/tui"
)

var (
	debug   bool
	version = "dev" // set via ldflags at build time
)

var rootCmd = &cobra.Command{
	Use:   "fleet",
	Short: "Terminal console for checkpoint-driven skill jobs",
	Long: `Fleet is a chat console for the skill service. Jobs started from
the console are polled in the background, and every checkpoint that
needs a human decision is shown inline as a prompt you answer with
the keyboard.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Without a terminal there is nothing to drive; show help instead.
		if !tui.IsTTY() {
			if err := cmd.Help(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout())
			fmt.Fprintln(cmd.OutOrStdout(), "Use 'fleet status <job-id>' to inspect a job non-interactively.")
			return nil
		}
		return runConsole("")
	},
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Write diagnostics to .fleet/debug.log")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(cleanCmd)
}
