// Package tui implements the terminal user interface using Bubble Tea.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/skillfleet/fleet/internal/api"
	"github.com/skillfleet/fleet/internal/hitl"
)

// ErrJobRequired is returned when a job id is required but not provided.
var ErrJobRequired = errors.New("job id required in non-interactive mode")

// StatusSource is the part of the API client the fallback runner reads.
type StatusSource interface {
	GetJob(ctx context.Context, id string) (*api.Job, error)
	GetHitl(ctx context.Context, jobID string) (*api.HitlState, error)
}

// FallbackRunner prints job state once, for non-TTY use.
type FallbackRunner struct {
	client StatusSource
	out    io.Writer
}

// NewFallbackRunner creates a new FallbackRunner.
func NewFallbackRunner(client StatusSource, out io.Writer) *FallbackRunner {
	return &FallbackRunner{
		client: client,
		out:    out,
	}
}

// Run prints the status of jobID and its pending prompt, if any.
func (f *FallbackRunner) Run(ctx context.Context, jobID string) error {
	if jobID == "" {
		return ErrJobRequired
	}

	job, err := f.client.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("fetching job %s: %w", jobID, err)
	}

	fmt.Fprintf(f.out, "Job %s: %s\n", jobID, job.Status)
	if job.DraftPath != "" {
		fmt.Fprintf(f.out, "Draft: %s\n", hitl.Sanitize(job.DraftPath))
	}
	if job.Error != "" {
		fmt.Fprintf(f.out, "Error: %s\n", hitl.Sanitize(job.Error))
	}
	if job.Status.Terminal() {
		return nil
	}

	state, err := f.client.GetHitl(ctx, jobID)
	if err != nil {
		return fmt.Errorf("fetching prompt for %s: %w", jobID, err)
	}
	if state.PromptErr != nil {
		fmt.Fprintf(f.out, "Pending prompt %s cannot be displayed: %s\n", hitl.Sanitize(state.PromptErr.Key), hitl.Sanitize(state.PromptErr.Error()))
		return nil
	}
	if state.Prompt == nil {
		fmt.Fprintln(f.out, "No pending prompt.")
		return nil
	}

	fmt.Fprintf(f.out, "Pending prompt [%s]: %s\n", state.Prompt.Prompt.Kind(), hitl.Title(state.Prompt.Prompt))
	fmt.Fprintf(f.out, "Run 'fleet resume %s' in a terminal to answer it.\n", jobID)
	return nil
}
