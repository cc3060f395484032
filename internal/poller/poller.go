// Package poller drives the hitl lifecycle of a job: it polls the job's
// checkpoint state, raises edge-triggered callbacks when a prompt appears or
// disappears or the job finishes, and submits answers.
//
// The poller does no scheduling of its own. A caller obtains a Ticket from
// StartPolling, runs Fetch off the event loop, and hands the Result back to
// Apply on the event loop. Results carrying a superseded Ticket are dropped.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/skillfleet/fleet/internal/api"
	"github.com/skillfleet/fleet/internal/hitl"
)

// Default intervals.
const (
	DefaultInterval       = 1500 * time.Millisecond
	DefaultReviewInterval = 100 * time.Millisecond
)

// fastPickupPolls is how many polls after a submission use the review interval.
const fastPickupPolls = 20

// Fetcher is the subset of the API client the poller needs.
type Fetcher interface {
	GetHitl(ctx context.Context, jobID string) (*api.HitlState, error)
	GetJob(ctx context.Context, id string) (*api.Job, error)
	SubmitHitl(ctx context.Context, jobID string, resp hitl.Response) error
}

// State is the lifecycle state of the polled job.
type State string

const (
	StateIdle      State = "idle"
	StatePolling   State = "polling"
	StatePrompting State = "prompting"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Terminal reports whether polling has stopped for good.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Options tune the poller.
type Options struct {
	Interval         time.Duration
	ReviewInterval   time.Duration
	MaxFetchFailures int // 0 means never give up
}

// Handlers are invoked synchronously from Apply and ApplySubmit. Any may be nil.
type Handlers struct {
	OnPrompt          func(env hitl.Envelope)
	OnPromptCleared   func()
	OnMalformedPrompt func(err *hitl.DecodeError)
	OnSubmitted       func(key string, resp hitl.Response)
	OnComplete        func(job api.Job)
	OnError           func(err error)
	OnFetchError      func(err error, streak int)
}

// Ticket identifies one poll loop. It is invalidated by the next
// StartPolling or Stop. Tickets from BeginSubmit also carry the key of the
// prompt being answered.
type Ticket struct {
	JobID string
	Gen   uint64
	Key   string
	ctx   context.Context
}

// Context is cancelled when the ticket is superseded.
func (t Ticket) Context() context.Context {
	if t.ctx == nil {
		return context.Background()
	}
	return t.ctx
}

// Result is the outcome of one Fetch.
type Result struct {
	Ticket Ticket
	State  *api.HitlState
	Job    *api.Job // set when the job reached a terminal status
	Err    error
}

// ErrJobFailed is passed to OnError when the server reports a failed job.
var ErrJobFailed = errors.New("job failed")

// Poller tracks one job at a time. It is not safe for concurrent use except
// for Fetch and SubmitFetch, which only touch the network.
type Poller struct {
	f    Fetcher
	opts Options
	h    Handlers

	jobID  string
	gen    uint64
	ctx    context.Context
	cancel context.CancelFunc

	state      State
	lastKey    string
	active     *hitl.Envelope
	streak     int
	finished   bool
	submitting bool
	fast       int
}

// New creates a Poller. Zero intervals fall back to the defaults.
func New(f Fetcher, opts Options, h Handlers) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.ReviewInterval <= 0 {
		opts.ReviewInterval = DefaultReviewInterval
	}
	return &Poller{f: f, opts: opts, h: h, state: StateIdle}
}

// StartPolling cancels any previous loop and starts tracking jobID.
func (p *Poller) StartPolling(jobID string) Ticket {
	if p.cancel != nil {
		p.cancel()
	}
	p.gen++
	p.ctx, p.cancel = context.WithCancel(context.Background())

	p.jobID = jobID
	p.state = StatePolling
	p.lastKey = ""
	p.active = nil
	p.streak = 0
	p.finished = false
	p.submitting = false
	p.fast = 0

	return p.Ticket()
}

// Stop cancels the current loop and any in-flight request. Results still
// in flight are discarded when they arrive.
func (p *Poller) Stop() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.gen++
	if !p.state.Terminal() {
		p.state = StateIdle
	}
	p.active = nil
	p.submitting = false
}

// Ticket returns the ticket of the current loop.
func (p *Poller) Ticket() Ticket {
	return Ticket{JobID: p.jobID, Gen: p.gen, ctx: p.ctx}
}

// Current reports whether t belongs to the live loop.
func (p *Poller) Current(t Ticket) bool {
	return t.Gen == p.gen && t.JobID == p.jobID && !p.finished && p.cancel != nil
}

// Fetch performs the network part of one poll. It does not touch poller state.
func (p *Poller) Fetch(t Ticket) Result {
	ctx := t.Context()
	if err := ctx.Err(); err != nil {
		return Result{Ticket: t, Err: err}
	}

	state, err := p.f.GetHitl(ctx, t.JobID)
	if err != nil {
		return Result{Ticket: t, Err: err}
	}

	res := Result{Ticket: t, State: state}
	if state.Status.Terminal() {
		job, err := p.f.GetJob(ctx, t.JobID)
		if err != nil || job == nil {
			job = &api.Job{ID: t.JobID, Status: state.Status}
		}
		if !job.Status.Terminal() {
			job.Status = state.Status
		}
		res.Job = job
	}
	return res
}

// Apply folds a Result into the poller and fires callbacks. It reports
// whether the loop should schedule another poll for this ticket.
func (p *Poller) Apply(r Result) bool {
	if !p.Current(r.Ticket) {
		return false
	}

	if r.Err != nil {
		if errors.Is(r.Err, context.Canceled) {
			return false
		}
		p.streak++
		if p.h.OnFetchError != nil {
			p.h.OnFetchError(r.Err, p.streak)
		}
		if p.opts.MaxFetchFailures > 0 && p.streak >= p.opts.MaxFetchFailures {
			p.fail(fmt.Errorf("giving up after %d failed polls: %w", p.streak, r.Err))
			return false
		}
		return true
	}
	p.streak = 0

	if r.State == nil {
		return true
	}

	if r.State.Status.Terminal() {
		job := api.Job{ID: p.jobID, Status: r.State.Status}
		if r.Job != nil {
			job = *r.Job
		}
		p.finish(job)
		return false
	}

	// A prompt that cannot be decoded is reported once per key. The job
	// keeps polling so the server can replace or withdraw it.
	if bad := r.State.PromptErr; bad != nil {
		if bad.Key == p.lastKey {
			return true
		}
		p.lastKey = bad.Key
		if p.state == StatePrompting {
			p.state = StatePolling
			p.active = nil
		}
		if p.h.OnMalformedPrompt != nil {
			p.h.OnMalformedPrompt(bad)
		}
		return true
	}

	env := r.State.Prompt
	if env == nil {
		if p.state == StatePrompting && !p.submitting {
			p.state = StatePolling
			p.active = nil
			if p.h.OnPromptCleared != nil {
				p.h.OnPromptCleared()
			}
		}
		if !p.submitting {
			p.lastKey = ""
		}
		return true
	}

	if env.Key == p.lastKey {
		return true
	}

	p.lastKey = env.Key
	e := *env
	p.active = &e
	p.state = StatePrompting
	p.fast = 0
	if p.h.OnPrompt != nil {
		p.h.OnPrompt(e)
	}
	return true
}

// BeginSubmit reserves the active prompt for a submission. It fails when no
// prompt is active or a submission is already in flight.
func (p *Poller) BeginSubmit() (Ticket, bool) {
	if p.finished || p.active == nil || p.submitting || p.cancel == nil {
		return Ticket{}, false
	}
	p.submitting = true
	t := p.Ticket()
	t.Key = p.active.Key
	return t, true
}

// SubmitFetch performs the network part of a submission.
func (p *Poller) SubmitFetch(t Ticket, resp hitl.Response) error {
	return p.f.SubmitHitl(t.Context(), t.JobID, resp)
}

// ApplySubmit folds the outcome of a submission into the poller. On
// failure the state is left exactly as it was so the caller can retry.
// A prompt that arrived while the answer was in flight stays active.
func (p *Poller) ApplySubmit(t Ticket, resp hitl.Response, err error) bool {
	if t.Gen != p.gen || t.JobID != p.jobID {
		return false
	}
	p.submitting = false
	if err != nil {
		return false
	}

	if !p.finished {
		if p.active != nil && p.active.Key == t.Key {
			p.active = nil
			p.state = StatePolling
		}
		p.fast = fastPickupPolls
	}
	if p.h.OnSubmitted != nil {
		p.h.OnSubmitted(t.Key, resp)
	}
	return true
}

// SubmitResponse posts resp for the active prompt and applies the outcome.
// It blocks for the duration of the request.
func (p *Poller) SubmitResponse(ctx context.Context, resp hitl.Response) bool {
	t, ok := p.BeginSubmit()
	if !ok {
		return false
	}
	err := p.f.SubmitHitl(ctx, t.JobID, resp)
	return p.ApplySubmit(t, resp, err)
}

// Interval returns the delay before the next poll.
func (p *Poller) Interval() time.Duration {
	if p.fast > 0 {
		p.fast--
		return p.opts.ReviewInterval
	}
	return p.opts.Interval
}

// State returns the lifecycle state.
func (p *Poller) State() State { return p.state }

// JobID returns the tracked job id.
func (p *Poller) JobID() string { return p.jobID }

// ActivePrompt returns the prompt awaiting an answer, if any.
func (p *Poller) ActivePrompt() (hitl.Envelope, bool) {
	if p.active == nil {
		return hitl.Envelope{}, false
	}
	return *p.active, true
}

// Submitting reports whether a submission is in flight.
func (p *Poller) Submitting() bool { return p.submitting }

func (p *Poller) finish(job api.Job) {
	p.finished = true
	p.active = nil
	if p.cancel != nil {
		p.cancel()
	}

	switch job.Status {
	case api.JobFailed:
		p.state = StateFailed
		err := ErrJobFailed
		if job.Error != "" {
			err = fmt.Errorf("%w: %s", ErrJobFailed, job.Error)
		}
		if p.h.OnError != nil {
			p.h.OnError(err)
		}
	case api.JobCancelled:
		p.state = StateCancelled
		if p.h.OnComplete != nil {
			p.h.OnComplete(job)
		}
	default:
		p.state = StateCompleted
		if p.h.OnComplete != nil {
			p.h.OnComplete(job)
		}
	}
}

func (p *Poller) fail(err error) {
	p.finished = true
	p.active = nil
	p.state = StateFailed
	if p.cancel != nil {
		p.cancel()
	}
	if p.h.OnError != nil {
		p.h.OnError(err)
	}
}
