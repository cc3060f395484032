// Package stream decodes chat streams into typed events and applies them to
// the timeline.
package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// EventType tags a decoded chunk.
type EventType string

const (
	EventThinking EventType = "thinking"
	EventResponse EventType = "response"
	EventError    EventType = "error"
	EventDone     EventType = "done"
)

// Event is one decoded chunk of a chat stream.
type Event struct {
	Type    EventType
	Content string
	Err     error
}

// ErrStream wraps error frames sent by the server.
var ErrStream = errors.New("stream error")

// maxLine bounds a single frame.
const maxLine = 1 << 20

type frame struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Decode reads frames from r and sends them on out in receipt order. Frames
// are SSE "data:" lines (multi-line data joined by newlines) or bare JSON
// lines. A "[DONE]" payload, a done frame or EOF ends the stream. Decode
// always finishes with exactly one EventDone or EventError and closes out.
func Decode(ctx context.Context, r io.Reader, out chan<- Event) {
	defer close(out)

	send := func(ev Event) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)

	var data []string
	// flush dispatches buffered SSE data; it reports whether decoding continues.
	flush := func() (bool, bool) {
		if len(data) == 0 {
			return true, false
		}
		payload := strings.Join(data, "\n")
		data = data[:0]
		return dispatch(payload, send)
	}

	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")

		switch {
		case line == "":
			ok, done := flush()
			if !ok || done {
				return
			}
		case strings.HasPrefix(line, ":"):
			// comment / keep-alive
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		case strings.HasPrefix(line, "event:"), strings.HasPrefix(line, "id:"), strings.HasPrefix(line, "retry:"):
		default:
			// NDJSON framing
			ok, done := flush()
			if !ok || done {
				return
			}
			ok, done = dispatch(line, send)
			if !ok || done {
				return
			}
		}
	}

	if ok, done := flush(); !ok || done {
		return
	}
	if err := sc.Err(); err != nil {
		if ctx.Err() != nil {
			return
		}
		send(Event{Type: EventError, Err: fmt.Errorf("reading stream: %w", err)})
		return
	}
	send(Event{Type: EventDone})
}

// dispatch decodes one payload. It returns (continue sending, stream finished).
func dispatch(payload string, send func(Event) bool) (bool, bool) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return true, false
	}
	if payload == "[DONE]" {
		send(Event{Type: EventDone})
		return true, true
	}

	var f frame
	if err := json.Unmarshal([]byte(payload), &f); err != nil {
		// Untyped text is treated as response content.
		return send(Event{Type: EventResponse, Content: payload}), false
	}

	switch EventType(strings.ToLower(f.Type)) {
	case EventThinking:
		return send(Event{Type: EventThinking, Content: f.Content}), false
	case EventResponse, "":
		if f.Content == "" {
			return true, false
		}
		return send(Event{Type: EventResponse, Content: f.Content}), false
	case EventError:
		msg := f.Message
		if msg == "" {
			msg = f.Error
		}
		if msg == "" {
			msg = f.Content
		}
		send(Event{Type: EventError, Err: fmt.Errorf("%w: %s", ErrStream, msg)})
		return true, true
	case EventDone, "end", "complete":
		send(Event{Type: EventDone})
		return true, true
	default:
		return true, false
	}
}
