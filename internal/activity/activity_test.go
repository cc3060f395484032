package activity

import (
	"testing"
	"time"
)

func TestCompute(t *testing.T) {
	now := time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC)
	threshold := 10 * time.Second

	tests := []struct {
		name       string
		ts         Timestamps
		wantActive bool
		wantAge    time.Duration
	}{
		{
			name:       "no events",
			ts:         Timestamps{},
			wantActive: false,
			wantAge:    0,
		},
		{
			name:       "recent event",
			ts:         Timestamps{LastEventAt: now.Add(-3 * time.Second)},
			wantActive: true,
			wantAge:    3 * time.Second,
		},
		{
			name:       "stale event, recent token",
			ts:         Timestamps{LastEventAt: now.Add(-time.Minute), LastTokenAt: now.Add(-time.Second)},
			wantActive: true,
			wantAge:    time.Second,
		},
		{
			name:       "exactly at threshold is inactive",
			ts:         Timestamps{LastTokenAt: now.Add(-threshold)},
			wantActive: false,
			wantAge:    threshold,
		},
		{
			name:       "status change alone does not count",
			ts:         Timestamps{LastStatusAt: now},
			wantActive: false,
			wantAge:    0,
		},
		{
			name:       "clock skew clamps to zero",
			ts:         Timestamps{LastEventAt: now.Add(2 * time.Second)},
			wantActive: true,
			wantAge:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(now, tt.ts, threshold)
			if got.IsActive != tt.wantActive {
				t.Errorf("IsActive = %v, want %v", got.IsActive, tt.wantActive)
			}
			if got.TimeSinceLastEvent != tt.wantAge {
				t.Errorf("TimeSinceLastEvent = %v, want %v", got.TimeSinceLastEvent, tt.wantAge)
			}
		})
	}
}

func TestTrackerReset(t *testing.T) {
	var tr Tracker
	now := time.Now()
	tr.Event(now)
	tr.Token(now)
	tr.Status(now)

	if !tr.Summary(now, DefaultThreshold).IsActive {
		t.Fatal("tracker should be active right after events")
	}

	tr.Reset()
	if tr.Timestamps() != (Timestamps{}) {
		t.Errorf("Timestamps after Reset = %+v, want zero", tr.Timestamps())
	}
	if tr.Summary(now, DefaultThreshold).IsActive {
		t.Error("tracker active after Reset")
	}
}
