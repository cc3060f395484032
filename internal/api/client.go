// Package api is the HTTP client for the skill service: job status, hitl
// checkpoints, chat streaming and console commands.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/skillfleet/fleet/internal/hitl"
)

var (
	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New("api: not found")
	// ErrRejected is returned when the server refuses a hitl submission.
	ErrRejected = errors.New("api: response rejected")
)

// StatusError is returned for any other non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("api: unexpected status %d", e.Code)
	}
	return fmt.Sprintf("api: unexpected status %d: %s", e.Code, e.Body)
}

// JobStatus is the server-side lifecycle of a job.
type JobStatus string

const (
	JobRunning          JobStatus = "running"
	JobPendingUserInput JobStatus = "pending_user_input"
	JobCompleted        JobStatus = "completed"
	JobFailed           JobStatus = "failed"
	JobCancelled        JobStatus = "cancelled"
)

// Terminal reports whether the job will never change status again.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	}
	return false
}

// Job is the status record of a job.
type Job struct {
	ID        string    `json:"id"`
	Status    JobStatus `json:"status"`
	DraftPath string    `json:"draft_path,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// HitlState is the pending checkpoint of a job. Prompt is nil when the job
// is not waiting on the user, or when the prompt could not be decoded; in
// that case PromptErr holds the failure and its checkpoint key.
type HitlState struct {
	Status    JobStatus
	Prompt    *hitl.Envelope
	PromptErr *hitl.DecodeError
}

// CommandResult is the outcome of a console command.
type CommandResult struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
	JobID   string          `json:"job_id,omitempty"`
}

// Client talks to the skill service.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	stream  *http.Client
}

// New creates a Client. The timeout applies to every request except chat
// streams, which stay open until the server finishes or ctx is cancelled.
func New(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
		stream:  &http.Client{},
	}
}

// GetJob fetches the status of a job.
func (c *Client) GetJob(ctx context.Context, id string) (*Job, error) {
	var job Job
	if err := c.do(ctx, http.MethodGet, "/jobs/"+url.PathEscape(id), nil, &job); err != nil {
		return nil, fmt.Errorf("getting job %s: %w", id, err)
	}
	if job.ID == "" {
		job.ID = id
	}
	return &job, nil
}

type hitlStateWire struct {
	Status JobStatus       `json:"status"`
	Prompt json.RawMessage `json:"prompt"`
}

// GetHitl fetches the pending checkpoint of a job. A missing or null prompt
// yields a state with a nil Prompt. A prompt that fails to decode is not an
// error of the request; it is reported through PromptErr.
func (c *Client) GetHitl(ctx context.Context, jobID string) (*HitlState, error) {
	var wire hitlStateWire
	if err := c.do(ctx, http.MethodGet, "/hitl/"+url.PathEscape(jobID), nil, &wire); err != nil {
		return nil, fmt.Errorf("getting hitl state for %s: %w", jobID, err)
	}

	state := &HitlState{Status: wire.Status}
	raw := bytes.TrimSpace(wire.Prompt)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return state, nil
	}
	env, err := hitl.DecodePrompt(raw)
	if err != nil {
		var de *hitl.DecodeError
		if !errors.As(err, &de) {
			return nil, fmt.Errorf("decoding hitl prompt for %s: %w", jobID, err)
		}
		state.PromptErr = de
		return state, nil
	}
	state.Prompt = env
	return state, nil
}

type submitResult struct {
	Accepted bool   `json:"accepted"`
	Message  string `json:"message"`
}

// SubmitHitl posts the response for the pending checkpoint of a job.
func (c *Client) SubmitHitl(ctx context.Context, jobID string, resp hitl.Response) error {
	var res submitResult
	if err := c.do(ctx, http.MethodPost, "/hitl/"+url.PathEscape(jobID), resp, &res); err != nil {
		return fmt.Errorf("submitting hitl response for %s: %w", jobID, err)
	}
	if !res.Accepted {
		if res.Message != "" {
			return fmt.Errorf("%w: %s", ErrRejected, res.Message)
		}
		return ErrRejected
	}
	return nil
}

// StreamChat opens a chat stream for message. The caller owns the returned
// body and must close it.
func (c *Client) StreamChat(ctx context.Context, message string) (io.ReadCloser, error) {
	body, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		return nil, fmt.Errorf("encoding chat request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/chat/stream", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, fmt.Errorf("opening chat stream: %w", err)
	}
	if err := checkStatus(resp); err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("opening chat stream: %w", err)
	}
	return resp.Body, nil
}

// RunCommand executes a console command on the server.
func (c *Client) RunCommand(ctx context.Context, name string, args []string) (*CommandResult, error) {
	payload := struct {
		Command string   `json:"command"`
		Args    []string `json:"args"`
	}{Command: name, Args: args}
	if payload.Args == nil {
		payload.Args = []string{}
	}

	var res CommandResult
	if err := c.do(ctx, http.MethodPost, "/commands", payload, &res); err != nil {
		return nil, fmt.Errorf("running command %s: %w", name, err)
	}
	return &res, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// do sends a JSON request and decodes a JSON response into out.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
}
