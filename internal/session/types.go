// Package session provides SQLite-backed history of fleet conversations.
package session

import "time"

// Conversation is one console session.
type Conversation struct {
	ID        string
	Project   string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is a timeline entry persisted with its conversation.
type Message struct {
	ID             int
	ConversationID string
	Role           string // user, assistant, system, hitl
	Content        string
	Timestamp      time.Time
}

// Job is a server job started from, or resumed in, a conversation.
type Job struct {
	ID             string
	ConversationID string
	Command        string
	Status         string // running, pending_user_input, completed, failed, cancelled
	DraftPath      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Answer is a submitted hitl response.
type Answer struct {
	ID        int
	JobID     string
	PromptKey string
	Kind      string
	Action    string
	Summary   string
	Timestamp time.Time
}

// Summary provides a high-level view of a conversation for listing.
type Summary struct {
	ID        string
	Title     string
	Jobs      int
	Answers   int
	LastJob   string
	LastState string
	UpdatedAt time.Time
}
