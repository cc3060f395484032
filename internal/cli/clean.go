// clean.go implements the "fleet clean" command for pruning old conversation history.
package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/skillfleet/fleet/internal/log"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove old conversation history",
	Long: `Remove conversations, jobs and answers from .fleet/history.db.

By default, removes history older than the configured max_age_days (default 30).
Use --days to override the age. --log also clears the event log.`,
	RunE: runClean,
}

var (
	daysFlag int
	logFlag  bool
)

func init() {
	cleanCmd.Flags().IntVar(&daysFlag, "days", 0, "Remove history older than N days (0 = use config)")
	cleanCmd.Flags().BoolVar(&logFlag, "log", false, "Also clear .fleet/log.jsonl")
}

func runClean(cmd *cobra.Command, args []string) error {
	projectRoot, cfg, err := loadProject()
	if err != nil {
		return err
	}

	if logFlag {
		if err := clearEventLog(cmd.OutOrStdout(), projectRoot); err != nil {
			return err
		}
	}

	store, err := openHistory(projectRoot, cfg)
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	if store == nil {
		if logFlag {
			return nil
		}
		return errors.New("history is disabled; nothing to clean")
	}
	defer store.Close()

	maxAge := daysFlag
	if maxAge <= 0 {
		maxAge = cfg.History.MaxAgeDays
	}
	if maxAge <= 0 {
		maxAge = 30
	}

	cutoff := time.Now().AddDate(0, 0, -maxAge)
	n, err := store.Prune(cutoff)
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}

	if n == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No conversations to clean up.")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d conversation(s) older than %d days.\n", n, maxAge)
	return nil
}

// clearEventLog removes the event log of projectRoot, reporting how many
// events it held.
func clearEventLog(w io.Writer, projectRoot string) error {
	logger, err := log.NewLogger(projectRoot)
	if err != nil {
		return err
	}
	events, err := logger.ReadAll()
	if err != nil {
		// Unreadable logs are removed all the same.
		fmt.Fprintf(w, "Warning: %v\n", err)
	}
	if err := logger.Truncate(); err != nil {
		return fmt.Errorf("clearing event log: %w", err)
	}
	fmt.Fprintf(w, "Removed %d event(s) from the event log.\n", len(events))
	return nil
}
