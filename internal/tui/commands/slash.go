package commands

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/skillfleet/fleet/internal/command"
	"github.com/skillfleet/fleet/internal/tui"
)

// ExecuteCmd runs a slash command through exec.
// Returns CommandResultMsg with the result or the error.
func ExecuteCmd(ctx context.Context, exec command.Executor, cmd command.Command) tea.Cmd {
	return func() tea.Msg {
		res, err := exec.Execute(ctx, cmd)
		return tui.CommandResultMsg{Command: cmd, Result: res, Err: err}
	}
}
