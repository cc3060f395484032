package commands

import (
	"context"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/skillfleet/fleet/internal/stream"
	"github.com/skillfleet/fleet/internal/tui"
)

// Streamer opens chat streams.
type Streamer interface {
	StreamChat(ctx context.Context, message string) (io.ReadCloser, error)
}

// StartStreamCmd opens a chat stream for message and decodes it in a
// background goroutine until the stream ends or ctx is cancelled.
// Returns StreamStartedMsg with the event channel, or a StreamEventMsg
// carrying the error when the request fails.
func StartStreamCmd(ctx context.Context, s Streamer, gen uint64, message string, buffer int) tea.Cmd {
	return func() tea.Msg {
		body, err := s.StreamChat(ctx, message)
		if err != nil {
			return tui.StreamEventMsg{
				Gen:   gen,
				Event: stream.Event{Type: stream.EventError, Err: err},
			}
		}

		events := make(chan stream.Event, buffer)
		go func() {
			defer body.Close()
			stream.Decode(ctx, body, events)
		}()
		return tui.StreamStartedMsg{Gen: gen, Events: events}
	}
}

// ListenStreamCmd waits for the next event of a stream.
// Returns StreamEventMsg, or StreamClosedMsg when the channel closes.
func ListenStreamCmd(gen uint64, events <-chan stream.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return tui.StreamClosedMsg{Gen: gen}
		}
		return tui.StreamEventMsg{Gen: gen, Event: ev}
	}
}
