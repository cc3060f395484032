package stream

import (
	"strings"

	"github.com/skillfleet/fleet/internal/timeline"
)

// Turn applies the events of one chat turn to a timeline. Thinking chunks
// each become their own entry; response chunks accumulate into a single
// assistant message whose id is tracked for the rest of the turn.
type Turn struct {
	tl    *timeline.Timeline
	buf   strings.Builder
	msgID string
	done  bool
}

// NewTurn starts a turn on tl.
func NewTurn(tl *timeline.Timeline) *Turn {
	return &Turn{tl: tl}
}

// Thinking appends a new informational entry.
func (t *Turn) Thinking(content string) {
	if t.done || content == "" {
		return
	}
	t.tl.Append(timeline.Message{Role: timeline.RoleThinking, Content: content})
}

// Response appends chunk to the turn buffer and writes the whole buffer to
// the in-flight assistant message, creating it on first use.
func (t *Turn) Response(chunk string) {
	if t.done {
		return
	}
	t.buf.WriteString(chunk)
	content := t.buf.String()

	if t.msgID != "" && t.tl.Update(t.msgID, func(m *timeline.Message) {
		m.Content = content
		m.Status = timeline.StatusStreaming
	}) {
		return
	}

	if t.msgID == "" {
		var found string
		t.tl.UpdateLast(func(m timeline.Message) bool {
			return m.Role == timeline.RoleAssistant && m.Status == timeline.StatusStreaming
		}, func(m *timeline.Message) {
			m.Content = content
			found = m.ID
		})
		if found != "" {
			t.msgID = found
			return
		}
	}

	t.msgID = t.tl.Append(timeline.Message{
		Role:    timeline.RoleAssistant,
		Content: content,
		Status:  timeline.StatusStreaming,
	})
}

// Fail finalizes the turn with an assistant message carrying the error.
func (t *Turn) Fail(err error) {
	if t.done {
		return
	}
	t.Complete()
	msg := "Stream failed"
	if err != nil {
		msg = "Stream failed: " + err.Error()
	}
	t.tl.Append(timeline.Message{Role: timeline.RoleAssistant, Content: msg})
}

// Complete stops buffering and marks the assistant message done. Calling it
// again has no effect.
func (t *Turn) Complete() {
	if t.done {
		return
	}
	t.done = true
	if t.msgID != "" {
		t.tl.Update(t.msgID, func(m *timeline.Message) { m.Status = timeline.StatusDone })
	}
}

// Apply dispatches ev and reports whether the turn is still open.
func (t *Turn) Apply(ev Event) bool {
	switch ev.Type {
	case EventThinking:
		t.Thinking(ev.Content)
	case EventResponse:
		t.Response(ev.Content)
	case EventError:
		t.Fail(ev.Err)
	case EventDone:
		t.Complete()
	}
	return !t.done
}

// Done reports whether the turn has completed.
func (t *Turn) Done() bool { return t.done }

// Content returns the accumulated response text.
func (t *Turn) Content() string { return t.buf.String() }

// MessageID returns the id of the assistant message, or "" before the first response chunk.
func (t *Turn) MessageID() string { return t.msgID }
