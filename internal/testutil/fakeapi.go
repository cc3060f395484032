package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

// FakeAPI is an in-process skill service for tests. Responses are scripted
// per job; every handler is safe for concurrent use.
type FakeAPI struct {
	URL string

	mu          sync.Mutex
	jobs        map[string]fakeJob
	hitl        map[string][]string
	hitlGets    map[string]int
	submissions map[string][]json.RawMessage
	rejectWith  string
	failStatus  map[string]int
	stream      []string
	commands    map[string]string
	token       string
}

type fakeJob struct {
	Status    string `json:"status"`
	DraftPath string `json:"draft_path,omitempty"`
	Error     string `json:"error,omitempty"`
}

// NewFakeAPI starts a FakeAPI that is shut down when the test finishes.
func NewFakeAPI(t *testing.T) *FakeAPI {
	t.Helper()

	f := &FakeAPI{
		jobs:        make(map[string]fakeJob),
		hitl:        make(map[string][]string),
		hitlGets:    make(map[string]int),
		submissions: make(map[string][]json.RawMessage),
		failStatus:  make(map[string]int),
		commands:    make(map[string]string),
	}

	r := chi.NewRouter()
	r.Use(f.failures)
	r.Use(f.auth)
	r.Get("/jobs/{id}", f.handleJob)
	r.Get("/hitl/{id}", f.handleGetHitl)
	r.Post("/hitl/{id}", f.handleSubmitHitl)
	r.Post("/chat/stream", f.handleStream)
	r.Post("/commands", f.handleCommand)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	f.URL = srv.URL
	return f
}

// RequireToken makes every request without "Bearer token" fail with 401.
func (f *FakeAPI) RequireToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = token
}

// SetJob sets the status returned for a job.
func (f *FakeAPI) SetJob(id, status, draftPath string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[id] = fakeJob{Status: status, DraftPath: draftPath}
}

// SetJobError sets a failed status with an error message.
func (f *FakeAPI) SetJobError(id, msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[id] = fakeJob{Status: "failed", Error: msg}
}

// QueueHitl scripts the prompts returned by successive GET /hitl/{id}
// calls. An empty string is a null prompt. The last entry repeats.
func (f *FakeAPI) QueueHitl(jobID string, prompts ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hitl[jobID] = append(f.hitl[jobID], prompts...)
}

// HitlGets returns how many times the hitl state of a job was fetched.
func (f *FakeAPI) HitlGets(jobID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hitlGets[jobID]
}

// Submissions returns the raw response bodies posted for a job.
func (f *FakeAPI) Submissions(jobID string) []json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]json.RawMessage(nil), f.submissions[jobID]...)
}

// RejectSubmissions makes hitl submissions answer accepted=false.
func (f *FakeAPI) RejectSubmissions(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejectWith = msg
}

// FailPath makes every request whose path starts with prefix return code.
// A zero code clears the failure.
func (f *FakeAPI) FailPath(prefix string, code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if code == 0 {
		delete(f.failStatus, prefix)
		return
	}
	f.failStatus[prefix] = code
}

// SetStream sets the raw lines written by /chat/stream.
func (f *FakeAPI) SetStream(lines ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stream = lines
}

// SetCommand sets the JSON body returned for a command.
func (f *FakeAPI) SetCommand(name, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands[name] = body
}

func (f *FakeAPI) failures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		code := 0
		for prefix, c := range f.failStatus {
			if strings.HasPrefix(r.URL.Path, prefix) {
				code = c
			}
		}
		f.mu.Unlock()

		if code != 0 {
			http.Error(w, "scripted failure", code)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *FakeAPI) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		token := f.token
		f.mu.Unlock()

		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *FakeAPI) handleJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	f.mu.Lock()
	job, ok := f.jobs[id]
	f.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, map[string]any{
		"id":         id,
		"status":     job.Status,
		"draft_path": job.DraftPath,
		"error":      job.Error,
	})
}

func (f *FakeAPI) handleGetHitl(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	f.mu.Lock()
	f.hitlGets[id]++
	queue := f.hitl[id]
	prompt := ""
	if len(queue) > 0 {
		prompt = queue[0]
		if len(queue) > 1 {
			f.hitl[id] = queue[1:]
		}
	}
	status := "running"
	if job, ok := f.jobs[id]; ok {
		status = job.Status
	}
	f.mu.Unlock()

	raw := json.RawMessage("null")
	if prompt != "" {
		raw = json.RawMessage(prompt)
		if status == "running" {
			status = "pending_user_input"
		}
	}
	writeJSON(w, map[string]any{"status": status, "prompt": raw})
}

func (f *FakeAPI) handleSubmitHitl(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	reject := f.rejectWith
	if reject == "" {
		f.submissions[id] = append(f.submissions[id], json.RawMessage(body))
	}
	f.mu.Unlock()

	if reject != "" {
		writeJSON(w, map[string]any{"accepted": false, "message": reject})
		return
	}
	writeJSON(w, map[string]any{"accepted": true})
}

func (f *FakeAPI) handleStream(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	lines := append([]string(nil), f.stream...)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "text/event-stream")
	flusher, _ := w.(http.Flusher)
	for _, line := range lines {
		fmt.Fprintf(w, "%s\n", line)
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func (f *FakeAPI) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Command string   `json:"command"`
		Args    []string `json:"args"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	body, ok := f.commands[req.Command]
	f.mu.Unlock()

	if !ok {
		writeJSON(w, map[string]any{"success": false, "message": "unknown command: " + req.Command})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, body)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, fmt.Sprintf("encoding response: %v", err), http.StatusInternalServerError)
	}
}
