// Package tui implements the terminal user interface using Bubble Tea.
package tui

import (
	"time"

	"github.com/skillfleet/fleet/internal/command"
	"github.com/skillfleet/fleet/internal/hitl"
	"github.com/skillfleet/fleet/internal/poller"
	"github.com/skillfleet/fleet/internal/stream"
)

// ============================================================================
// Input Messages
// ============================================================================

// SendLineMsg is sent when the user submits a line in the chat input.
type SendLineMsg struct {
	Line string
}

// PromptSubmitMsg carries the response produced by the active prompt.
type PromptSubmitMsg struct {
	Response hitl.Response
}

// CtrlCResetMsg resets the Ctrl+C pending state after timeout.
type CtrlCResetMsg struct{}

// ============================================================================
// Poller Messages
// ============================================================================

// PollTickMsg signals that the next poll of a loop is due.
type PollTickMsg struct {
	Ticket poller.Ticket
}

// PollResultMsg carries the outcome of one poll fetch.
type PollResultMsg struct {
	Result poller.Result
}

// SubmitResultMsg carries the outcome of a hitl submission.
type SubmitResultMsg struct {
	Ticket   poller.Ticket
	Response hitl.Response
	Err      error
}

// ============================================================================
// Stream Messages
// ============================================================================

// StreamStartedMsg signals that the chat stream is open.
type StreamStartedMsg struct {
	Gen    uint64
	Events <-chan stream.Event
}

// StreamEventMsg carries one decoded stream event.
type StreamEventMsg struct {
	Gen   uint64
	Event stream.Event
}

// StreamClosedMsg signals that the event channel of a stream closed.
type StreamClosedMsg struct {
	Gen uint64
}

// ============================================================================
// Command Messages
// ============================================================================

// CommandResultMsg carries the outcome of a slash command.
type CommandResultMsg struct {
	Command command.Command
	Result  command.Result
	Err     error
}

// ============================================================================
// Utility Messages
// ============================================================================

// ActivityTickMsg is sent periodically to refresh the activity indicator.
type ActivityTickMsg struct {
	Time time.Time
}

// ErrorMsg is a generic error message.
type ErrorMsg struct {
	Err error
}
