package stream

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/skillfleet/fleet/internal/timeline"
)

func decodeAll(t *testing.T, input string) []Event {
	t.Helper()
	out := make(chan Event, 16)
	go Decode(context.Background(), strings.NewReader(input), out)

	var events []Event
	for ev := range out {
		events = append(events, ev)
	}
	return events
}

func TestDecodeSSE(t *testing.T) {
	input := ": keep-alive\n" +
		"data: {\"type\":\"thinking\",\"content\":\"hmm\"}\n\n" +
		"event: message\n" +
		"data: {\"type\":\"response\",\"content\":\"Hel\"}\n\n" +
		"data: {\"type\":\"response\",\"content\":\"lo\"}\n\n" +
		"data: [DONE]\n\n" +
		"data: {\"type\":\"response\",\"content\":\"ignored\"}\n\n"

	events := decodeAll(t, input)
	want := []Event{
		{Type: EventThinking, Content: "hmm"},
		{Type: EventResponse, Content: "Hel"},
		{Type: EventResponse, Content: "lo"},
		{Type: EventDone},
	}
	if len(events) != len(want) {
		t.Fatalf("events = %+v, want %d", events, len(want))
	}
	for i := range want {
		if events[i].Type != want[i].Type || events[i].Content != want[i].Content {
			t.Errorf("events[%d] = %+v, want %+v", i, events[i], want[i])
		}
	}
}

func TestDecodeNDJSONAndEOF(t *testing.T) {
	input := "{\"type\":\"response\",\"content\":\"a\"}\n{\"type\":\"response\",\"content\":\"b\"}\n"
	events := decodeAll(t, input)
	if len(events) != 3 {
		t.Fatalf("events = %+v, want 3", events)
	}
	if events[2].Type != EventDone {
		t.Errorf("last event = %q, want done", events[2].Type)
	}
}

func TestDecodeErrorFrame(t *testing.T) {
	events := decodeAll(t, "data: {\"type\":\"error\",\"message\":\"quota exceeded\"}\n\n")
	if len(events) != 1 {
		t.Fatalf("events = %+v, want 1", events)
	}
	if events[0].Type != EventError || !errors.Is(events[0].Err, ErrStream) {
		t.Errorf("event = %+v, want stream error", events[0])
	}
	if !strings.Contains(events[0].Err.Error(), "quota exceeded") {
		t.Errorf("error text = %q", events[0].Err)
	}
}

func TestDecodeMultilineData(t *testing.T) {
	events := decodeAll(t, "data: line one\ndata: line two\n\n")
	if len(events) != 2 || events[0].Content != "line one\nline two" {
		t.Errorf("events = %+v", events)
	}
}

func TestTurnAccumulatesResponse(t *testing.T) {
	tl := timeline.New()
	turn := NewTurn(tl)
	turn.Apply(Event{Type: EventResponse, Content: "Hel"})
	turn.Apply(Event{Type: EventResponse, Content: "lo"})
	turn.Apply(Event{Type: EventDone})

	if n := tl.Count(timeline.RoleAssistant); n != 1 {
		t.Fatalf("assistant messages = %d, want 1", n)
	}
	m, _ := tl.Get(turn.MessageID())
	if m.Content != "Hello" {
		t.Errorf("Content = %q, want Hello", m.Content)
	}
	if m.Status != timeline.StatusDone {
		t.Errorf("Status = %q, want done", m.Status)
	}
}

func TestTurnThinkingNeverMerged(t *testing.T) {
	tl := timeline.New()
	turn := NewTurn(tl)
	turn.Apply(Event{Type: EventThinking, Content: "a"})
	turn.Apply(Event{Type: EventThinking, Content: "b"})
	turn.Apply(Event{Type: EventResponse, Content: "x"})
	turn.Apply(Event{Type: EventThinking, Content: "c"})
	turn.Apply(Event{Type: EventResponse, Content: "y"})

	if n := tl.Count(timeline.RoleThinking); n != 3 {
		t.Errorf("thinking entries = %d, want 3", n)
	}
	if n := tl.Count(timeline.RoleAssistant); n != 1 {
		t.Errorf("assistant messages = %d, want 1", n)
	}
	m, _ := tl.Get(turn.MessageID())
	if m.Content != "xy" || m.Status != timeline.StatusStreaming {
		t.Errorf("assistant = %+v, want streaming xy", m)
	}
}

func TestTurnReusesStreamingPlaceholder(t *testing.T) {
	tl := timeline.New()
	placeholder := tl.Append(timeline.Message{Role: timeline.RoleAssistant, Status: timeline.StatusStreaming})

	turn := NewTurn(tl)
	turn.Apply(Event{Type: EventResponse, Content: "hi"})

	if turn.MessageID() != placeholder {
		t.Errorf("MessageID = %q, want placeholder %q", turn.MessageID(), placeholder)
	}
	if n := tl.Count(timeline.RoleAssistant); n != 1 {
		t.Errorf("assistant messages = %d, want 1", n)
	}
}

func TestTurnFail(t *testing.T) {
	tl := timeline.New()
	turn := NewTurn(tl)
	turn.Apply(Event{Type: EventResponse, Content: "partial"})
	open := turn.Apply(Event{Type: EventError, Err: errors.New("connection reset")})

	if open || !turn.Done() {
		t.Fatal("turn still open after error")
	}
	msgs := tl.Messages()
	last := msgs[len(msgs)-1]
	if last.Role != timeline.RoleAssistant || !strings.Contains(last.Content, "connection reset") {
		t.Errorf("last message = %+v, want assistant error", last)
	}
	for _, m := range msgs {
		if m.Status == timeline.StatusStreaming {
			t.Errorf("message %q still streaming", m.ID)
		}
	}

	turn.Apply(Event{Type: EventResponse, Content: "late"})
	if tl.Len() != len(msgs) {
		t.Error("chunk applied after the turn completed")
	}
}
