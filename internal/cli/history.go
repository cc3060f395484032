// history.go implements the "fleet history" command listing recent conversations and jobs.
package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/skillfleet/fleet/internal/session"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent conversations and jobs",
	RunE:  runHistory,
}

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of entries to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	projectRoot, cfg, err := loadProject()
	if err != nil {
		return err
	}
	store, err := openHistory(projectRoot, cfg)
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	if store == nil {
		return errors.New("history is disabled; set history.enabled in .fleet/config.yaml")
	}
	defer store.Close()

	return printHistory(cmd.OutOrStdout(), store, historyLimit)
}

func printHistory(w io.Writer, store *session.Store, limit int) error {
	convs, err := store.ListConversations(limit)
	if err != nil {
		return fmt.Errorf("listing conversations: %w", err)
	}
	jobs, err := store.RecentJobs(limit)
	if err != nil {
		return fmt.Errorf("listing jobs: %w", err)
	}

	if len(convs) == 0 && len(jobs) == 0 {
		fmt.Fprintln(w, "No history yet.")
		return nil
	}

	fmt.Fprintln(w, "Conversations")
	for _, c := range convs {
		title := c.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Fprintf(w, "  %s  %-40s  %d jobs, %d answers", c.UpdatedAt.Local().Format(time.DateTime), title, c.Jobs, c.Answers)
		if c.LastJob != "" {
			fmt.Fprintf(w, "  last: %s (%s)", c.LastJob, c.LastState)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Jobs")
	for _, j := range jobs {
		fmt.Fprintf(w, "  %s  %-12s  %-20s  %s", j.UpdatedAt.Local().Format(time.DateTime), j.ID, j.Status, j.Command)
		if j.DraftPath != "" {
			fmt.Fprintf(w, "  %s", j.DraftPath)
		}
		fmt.Fprintln(w)
	}
	return nil
}
