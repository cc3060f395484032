package tui_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/skillfleet/fleet/internal/api"
	"github.com/skillfleet/fleet/internal/testutil"
	"github.com/skillfleet/fleet/internal/tui"
)

func TestFallbackRequiresJob(t *testing.T) {
	f := testutil.NewFakeAPI(t)
	var out bytes.Buffer
	r := tui.NewFallbackRunner(api.New(f.URL, "", time.Second), &out)

	if err := r.Run(context.Background(), ""); !errors.Is(err, tui.ErrJobRequired) {
		t.Errorf("err = %v, want ErrJobRequired", err)
	}
}

func TestFallbackPendingPrompt(t *testing.T) {
	f := testutil.NewFakeAPI(t)
	f.SetJob("j1", "running", "")
	f.QueueHitl("j1", testutil.ConfirmPromptJSON)

	var out bytes.Buffer
	r := tui.NewFallbackRunner(api.New(f.URL, "", time.Second), &out)
	if err := r.Run(context.Background(), "j1"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := out.String()
	for _, want := range []string{"Job j1: running", "Pending prompt [confirm]", "fleet resume j1"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestFallbackTerminalJob(t *testing.T) {
	f := testutil.NewFakeAPI(t)
	f.SetJob("j1", "completed", "drafts/\x1b[31mskill.md")

	var out bytes.Buffer
	r := tui.NewFallbackRunner(api.New(f.URL, "", time.Second), &out)
	if err := r.Run(context.Background(), "j1"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "Draft: drafts/skill.md") {
		t.Errorf("output = %q, want sanitized draft path", got)
	}
	if f.HitlGets("j1") != 0 {
		t.Error("terminal job should not fetch the prompt")
	}
}

func TestFallbackMissingJob(t *testing.T) {
	f := testutil.NewFakeAPI(t)
	var out bytes.Buffer
	r := tui.NewFallbackRunner(api.New(f.URL, "", time.Second), &out)

	if err := r.Run(context.Background(), "nope"); err == nil {
		t.Error("expected an error for an unknown job")
	}
}

func TestFallbackMalformedPrompt(t *testing.T) {
	f := testutil.NewFakeAPI(t)
	f.SetJob("j1", "running", "")
	f.QueueHitl("j1", `{"kind":"mystery","id":"m1"}`)

	var out bytes.Buffer
	r := tui.NewFallbackRunner(api.New(f.URL, "", time.Second), &out)
	if err := r.Run(context.Background(), "j1"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := out.String(); !strings.Contains(got, "mystery:m1 cannot be displayed") {
		t.Errorf("output = %q", got)
	}
}
