// Package timeline holds the ordered chat log shown by the console. It is
// the single source of truth for what is on screen, including which hitl
// message currently receives input.
package timeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/skillfleet/fleet/internal/hitl"
)

// Role identifies who produced a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleThinking  Role = "thinking" // informational, emitted by streamed thinking chunks
	RoleHitl      Role = "hitl"
)

// Status is the lifecycle of a message.
type Status string

const (
	StatusStreaming       Status = "streaming"
	StatusDone            Status = "done"
	StatusPendingResponse Status = "pending_response"
)

var (
	// ErrNotFound is returned when no message has the given id.
	ErrNotFound = errors.New("message not found")
	// ErrNotHitl is returned when a hitl-only operation targets another role.
	ErrNotHitl = errors.New("message is not a hitl message")
	// ErrAlreadyAnswered is returned when an answer is already attached.
	ErrAlreadyAnswered = errors.New("hitl message already answered")
	// ErrRetired is returned when focusing a withdrawn hitl message.
	ErrRetired = errors.New("hitl message retired")
)

// HitlData is attached to messages with RoleHitl.
type HitlData struct {
	Kind     hitl.Kind
	Prompt   hitl.Prompt
	Key      string
	Answered bool
	Answer   *hitl.Response
	Retired  bool // prompt withdrawn by the server before it was answered
}

// Message is one entry of the timeline.
type Message struct {
	ID        string
	Role      Role
	Content   string
	CreatedAt time.Time
	Status    Status
	Hitl      *HitlData
}

// Timeline is an append-mostly ordered message log. It is not safe for
// concurrent use; the event loop owns it.
type Timeline struct {
	messages   []Message
	index      map[string]int
	activeHitl string

	now   func() time.Time
	newID func() string
}

// New creates an empty Timeline.
func New() *Timeline {
	return &Timeline{
		index: make(map[string]int),
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
}

// Append adds m at the end and returns its id. A missing id, timestamp or
// status is filled in. Appending a streaming assistant message settles any
// other streaming assistant message.
func (t *Timeline) Append(m Message) string {
	if m.ID == "" {
		m.ID = t.newID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = t.now()
	}
	if m.Status == "" {
		m.Status = StatusDone
	}
	if m.Hitl != nil {
		h := *m.Hitl
		m.Hitl = &h
	}

	t.messages = append(t.messages, m)
	idx := len(t.messages) - 1
	t.index[m.ID] = idx
	t.settleStreaming(idx)
	return m.ID
}

// UpdateLast applies mut to the most recent message matching pred. It
// reports whether a message was found.
func (t *Timeline) UpdateLast(pred func(Message) bool, mut func(*Message)) bool {
	for i := len(t.messages) - 1; i >= 0; i-- {
		if pred(t.messages[i]) {
			t.apply(i, mut)
			return true
		}
	}
	return false
}

// Update applies mut to the message with the given id.
func (t *Timeline) Update(id string, mut func(*Message)) bool {
	i, ok := t.index[id]
	if !ok {
		return false
	}
	t.apply(i, mut)
	return true
}

// apply runs mut on message i while holding the message invariants: id and
// role are fixed, and an answered hitl message stays answered with its answer.
func (t *Timeline) apply(i int, mut func(*Message)) {
	before := t.messages[i]
	var prev HitlData
	if before.Hitl != nil {
		prev = *before.Hitl
	}

	m := before
	if before.Hitl != nil {
		h := *before.Hitl
		m.Hitl = &h
	}
	mut(&m)

	m.ID = before.ID
	m.Role = before.Role
	if prev.Answered {
		if m.Hitl == nil {
			h := prev
			m.Hitl = &h
		}
		m.Hitl.Answered = true
		if prev.Answer != nil {
			m.Hitl.Answer = prev.Answer
		}
	}

	t.messages[i] = m
	t.settleStreaming(i)
}

// settleStreaming keeps at most one streaming assistant message: if message
// keep is one, every other streaming assistant message becomes done.
func (t *Timeline) settleStreaming(keep int) {
	k := t.messages[keep]
	if k.Role != RoleAssistant || k.Status != StatusStreaming {
		return
	}
	for i := range t.messages {
		if i != keep && t.messages[i].Role == RoleAssistant && t.messages[i].Status == StatusStreaming {
			t.messages[i].Status = StatusDone
		}
	}
}

// MarkAnswered flips a hitl message to answered and attaches the answer.
// An answered message cannot take a second answer.
func (t *Timeline) MarkAnswered(id string, answer hitl.Response) error {
	i, ok := t.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	m := &t.messages[i]
	if m.Role != RoleHitl || m.Hitl == nil {
		return fmt.Errorf("%w: %s", ErrNotHitl, id)
	}
	if m.Hitl.Answered && m.Hitl.Answer != nil {
		return fmt.Errorf("%w: %s", ErrAlreadyAnswered, id)
	}

	h := *m.Hitl
	h.Answered = true
	a := answer
	h.Answer = &a
	m.Hitl = &h
	m.Status = StatusDone

	if t.activeHitl == id {
		t.activeHitl = ""
	}
	return nil
}

// Retire marks an unanswered hitl message as withdrawn and drops its focus.
func (t *Timeline) Retire(id string) error {
	i, ok := t.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	m := &t.messages[i]
	if m.Role != RoleHitl || m.Hitl == nil {
		return fmt.Errorf("%w: %s", ErrNotHitl, id)
	}
	if !m.Hitl.Answered {
		h := *m.Hitl
		h.Retired = true
		m.Hitl = &h
		m.Status = StatusDone
	}
	if t.activeHitl == id {
		t.activeHitl = ""
	}
	return nil
}

// SetActiveHitl gives input focus to the hitl message id. Only one hitl
// message is focused at a time; focusing one unfocuses the previous.
func (t *Timeline) SetActiveHitl(id string) error {
	i, ok := t.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	m := t.messages[i]
	if m.Role != RoleHitl || m.Hitl == nil {
		return fmt.Errorf("%w: %s", ErrNotHitl, id)
	}
	if m.Hitl.Answered {
		return fmt.Errorf("%w: %s", ErrAlreadyAnswered, id)
	}
	if m.Hitl.Retired {
		return fmt.Errorf("%w: %s", ErrRetired, id)
	}
	t.activeHitl = id
	return nil
}

// ClearActiveHitl drops hitl focus.
func (t *Timeline) ClearActiveHitl() {
	t.activeHitl = ""
}

// ActiveHitl returns the focused hitl message, if any.
func (t *Timeline) ActiveHitl() (Message, bool) {
	if t.activeHitl == "" {
		return Message{}, false
	}
	return t.Get(t.activeHitl)
}

// ActiveHitlID returns the id of the focused hitl message, or "".
func (t *Timeline) ActiveHitlID() string {
	return t.activeHitl
}

// Get returns a copy of the message with the given id.
func (t *Timeline) Get(id string) (Message, bool) {
	i, ok := t.index[id]
	if !ok {
		return Message{}, false
	}
	return copyMessage(t.messages[i]), true
}

// Messages returns a copy of the timeline in insertion order.
func (t *Timeline) Messages() []Message {
	out := make([]Message, len(t.messages))
	for i, m := range t.messages {
		out[i] = copyMessage(m)
	}
	return out
}

// Len returns the number of messages.
func (t *Timeline) Len() int {
	return len(t.messages)
}

// Count returns how many messages have the given role.
func (t *Timeline) Count(role Role) int {
	n := 0
	for _, m := range t.messages {
		if m.Role == role {
			n++
		}
	}
	return n
}

func copyMessage(m Message) Message {
	if m.Hitl != nil {
		h := *m.Hitl
		m.Hitl = &h
	}
	return m
}
