package views

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/skillfleet/fleet/internal/activity"
	"github.com/skillfleet/fleet/internal/tui"
)

// StatusBar describes the bottom line of the console.
type StatusBar struct {
	JobID        string
	JobState     string
	Activity     activity.Summary
	Spinner      string
	Streaming    bool
	CtrlCPending bool
	Width        int
}

// View renders the status bar.
func (s StatusBar) View() string {
	left := "no job"
	if s.JobID != "" {
		left = fmt.Sprintf("job %s · %s", s.JobID, s.JobState)
	}

	indicator := tui.IdleDot
	if s.Activity.IsActive || s.Streaming {
		indicator = tui.ActiveDot
		if s.Spinner != "" {
			indicator = s.Spinner
		}
	}
	left = indicator + " " + left
	if !s.Activity.LastEventAt.IsZero() || !s.Activity.LastTokenAt.IsZero() {
		left += " · " + FormatAge(s.Activity.TimeSinceLastEvent)
	}

	right := "ctrl+c: quit"
	if s.CtrlCPending {
		right = tui.WarningStyle.Render("Press Ctrl+C again to quit")
	}

	gap := s.Width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	line := left + lipgloss.NewStyle().Width(gap).Render("") + right
	return tui.StatusBarStyle.Width(s.Width).Render(line)
}

// FormatAge renders how long ago the last event happened.
func FormatAge(d time.Duration) string {
	switch {
	case d < time.Second:
		return "just now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
}
