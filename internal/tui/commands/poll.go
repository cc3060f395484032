// Package commands provides Bubble Tea commands for TUI operations.
package commands

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/skillfleet/fleet/internal/hitl"
	"github.com/skillfleet/fleet/internal/poller"
	"github.com/skillfleet/fleet/internal/tui"
)

// PollTickCmd schedules the next poll of the loop identified by t.
func PollTickCmd(t poller.Ticket, after time.Duration) tea.Cmd {
	return tea.Tick(after, func(time.Time) tea.Msg {
		return tui.PollTickMsg{Ticket: t}
	})
}

// PollCmd fetches the hitl state for t off the event loop.
// Returns PollResultMsg; the result is applied by the caller.
func PollCmd(p *poller.Poller, t poller.Ticket) tea.Cmd {
	return func() tea.Msg {
		return tui.PollResultMsg{Result: p.Fetch(t)}
	}
}

// SubmitCmd posts resp for the prompt reserved under t.
// Returns SubmitResultMsg with the outcome.
func SubmitCmd(p *poller.Poller, t poller.Ticket, resp hitl.Response) tea.Cmd {
	return func() tea.Msg {
		err := p.SubmitFetch(t, resp)
		return tui.SubmitResultMsg{Ticket: t, Response: resp, Err: err}
	}
}

// ActivityTickCmd schedules the next refresh of the activity indicator.
func ActivityTickCmd(every time.Duration) tea.Cmd {
	return tea.Tick(every, func(t time.Time) tea.Msg {
		return tui.ActivityTickMsg{Time: t}
	})
}
