// Package log provides structured event logging.
// This file appends JSON events to log.jsonl.
package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Event type constants.
const (
	EventConversationStarted = "conversation_started"
	EventJobStarted          = "job_started"
	EventPromptReceived      = "prompt_received"
	EventPromptCleared       = "prompt_cleared"
	EventPromptMalformed     = "prompt_malformed"
	EventResponseSubmitted   = "response_submitted"
	EventResponseFailed      = "response_failed"
	EventStreamError         = "stream_error"
	EventJobCompleted        = "job_completed"
	EventJobFailed           = "job_failed"
	EventJobCancelled        = "job_cancelled"
	EventCommandExecuted     = "command_executed"
)

// LogEvent represents a single structured event written to the log.
type LogEvent struct {
	Time           time.Time              `json:"time"`
	Event          string                 `json:"event"`
	ConversationID string                 `json:"conversation,omitempty"`
	JobID          string                 `json:"job,omitempty"`
	Kind           string                 `json:"kind,omitempty"`
	PromptKey      string                 `json:"prompt_key,omitempty"`
	Action         string                 `json:"action,omitempty"`
	Summary        string                 `json:"summary,omitempty"`
	Command        string                 `json:"command,omitempty"`
	DraftPath      string                 `json:"draft_path,omitempty"`
	Error          string                 `json:"error,omitempty"`
	DurationMs     int64                  `json:"duration_ms,omitempty"`
	Data           map[string]interface{} `json:"data,omitempty"`
}

// Logger writes append-only JSONL events to a log file.
type Logger struct {
	path string
	mu   sync.Mutex
}

// NewLogger creates a Logger that writes to .fleet/log.jsonl inside dir.
// Creates the .fleet/ directory if it does not already exist.
// Does not truncate an existing log file.
func NewLogger(dir string) (*Logger, error) {
	fleetDir := filepath.Join(dir, ".fleet")
	if err := os.MkdirAll(fleetDir, 0755); err != nil {
		return nil, fmt.Errorf("create .fleet directory: %w", err)
	}

	return &Logger{
		path: filepath.Join(fleetDir, "log.jsonl"),
	}, nil
}

// Append writes a single LogEvent as one JSON line to the log file.
// If event.Time is the zero value, it is automatically set to time.Now().UTC().
// A nil Logger discards the event.
func (l *Logger) Append(event LogEvent) error {
	if l == nil {
		return nil
	}
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal log event: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write log event: %w", err)
	}

	return nil
}

// ReadAll reads and parses all events from the log file.
// Returns an empty slice (not an error) if the file does not exist.
func (l *Logger) ReadAll() ([]LogEvent, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []LogEvent{}, nil
		}
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	var events []LogEvent
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event LogEvent
		if err := json.Unmarshal(line, &event); err != nil {
			return nil, fmt.Errorf("parse log line %d: %w", lineNum, err)
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log file: %w", err)
	}

	return events, nil
}

// Path returns the log file path.
func (l *Logger) Path() string { return l.path }

// Truncate removes the log file.
func (l *Logger) Truncate() error {
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove log file: %w", err)
	}
	return nil
}
