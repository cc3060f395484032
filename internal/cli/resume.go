// resume.go implements the "fleet resume" command for reattaching to a running job.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skillfleet/fleet/internal/tui"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <job-id>",
	Short: "Reattach the console to a job",
	Long: `Open the console and start polling an existing job. Prompts are
kept by the service, so a checkpoint left unanswered in an earlier
session is shown again.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func runResume(cmd *cobra.Command, args []string) error {
	jobID := args[0]
	if !tui.IsTTY() {
		fmt.Fprintf(cmd.ErrOrStderr(), "Not a terminal; showing status of %s instead.\n", jobID)
		return runStatus(cmd, args)
	}
	return runConsole(jobID)
}
