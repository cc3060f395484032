// Package activity derives a liveness signal for the running job from the
// times of its most recent events. It only feeds presentation.
package activity

import "time"

// DefaultThreshold is how recent an event must be for the job to count as active.
const DefaultThreshold = 10 * time.Second

// Timestamps are the raw event times. A zero time means "never".
type Timestamps struct {
	LastEventAt  time.Time // last message event (prompt, command result, status message)
	LastTokenAt  time.Time // last streamed token
	LastStatusAt time.Time // last job status change
}

// Summary is the derived view of Timestamps at a given instant.
type Summary struct {
	Timestamps
	IsActive           bool
	TimeSinceLastEvent time.Duration
}

// Compute derives the summary at now: the job is active when the newer of
// LastEventAt and LastTokenAt lies less than threshold in the past. With no
// events at all the job is inactive and the age is zero.
func Compute(now time.Time, ts Timestamps, threshold time.Duration) Summary {
	s := Summary{Timestamps: ts}

	latest := ts.LastEventAt
	if ts.LastTokenAt.After(latest) {
		latest = ts.LastTokenAt
	}
	if latest.IsZero() {
		return s
	}

	age := now.Sub(latest)
	if age < 0 {
		age = 0
	}
	s.TimeSinceLastEvent = age
	s.IsActive = age < threshold
	return s
}

// Tracker records event times for the current job.
type Tracker struct {
	ts Timestamps
}

// Reset forgets every timestamp; called when a new job starts.
func (t *Tracker) Reset() {
	t.ts = Timestamps{}
}

// Event records a message event at now.
func (t *Tracker) Event(now time.Time) { t.ts.LastEventAt = now }

// Token records a streamed token at now.
func (t *Tracker) Token(now time.Time) { t.ts.LastTokenAt = now }

// Status records a job status change at now.
func (t *Tracker) Status(now time.Time) { t.ts.LastStatusAt = now }

// Timestamps returns the recorded times.
func (t *Tracker) Timestamps() Timestamps { return t.ts }

// Summary computes the summary at now.
func (t *Tracker) Summary(now time.Time, threshold time.Duration) Summary {
	return Compute(now, t.ts, threshold)
}
