// status.go implements the "fleet status" command showing a job and its pending prompt.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/skillfleet/fleet/internal/tui"
)

var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show job status",
	Long: `Print the status of a job once, including the kind of any prompt
waiting for an answer. Works without a terminal.`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadProject()
	if err != nil {
		return err
	}

	runner := tui.NewFallbackRunner(newClient(cfg), cmd.OutOrStdout())
	return runner.Run(cmd.Context(), args[0])
}
