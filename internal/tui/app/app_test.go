package app

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/skillfleet/fleet/internal/api"
	"github.com/skillfleet/fleet/internal/command"
	"github.com/skillfleet/fleet/internal/config"
	"github.com/skillfleet/fleet/internal/poller"
	"github.com/skillfleet/fleet/internal/session"
	"github.com/skillfleet/fleet/internal/stream"
	"github.com/skillfleet/fleet/internal/testutil"
	"github.com/skillfleet/fleet/internal/timeline"
	"github.com/skillfleet/fleet/internal/tui"
)

func newTestApp(t *testing.T, f *testutil.FakeAPI, store *session.Store) *App {
	t.Helper()
	client := api.New(f.URL, "", 5*time.Second)
	a := New(config.DefaultConfig(), t.TempDir(), Deps{
		Client:   client,
		Executor: command.NewAPIExecutor(client),
		Store:    store,
	})
	t.Cleanup(a.Close)
	return a
}

func newTestStore(t *testing.T) *session.Store {
	t.Helper()
	store, err := session.NewStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func update(a *App, msg tea.Msg) tea.Cmd {
	_, cmd := a.Update(msg)
	return cmd
}

// run executes cmd and feeds its message back, returning the follow-up command.
func run(t *testing.T, a *App, cmd tea.Cmd) tea.Cmd {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	return update(a, cmd())
}

func enter() tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyEnter} }

func lastSystem(a *App) string {
	msgs := a.model.Timeline.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == timeline.RoleSystem {
			return msgs[i].Content
		}
	}
	return ""
}

func hitlMessages(a *App) []timeline.Message {
	var out []timeline.Message
	for _, m := range a.model.Timeline.Messages() {
		if m.Role == timeline.RoleHitl {
			out = append(out, m)
		}
	}
	return out
}

// startJob runs a command that starts jobID and applies the first poll.
func startJob(t *testing.T, a *App, f *testutil.FakeAPI, jobID string) {
	t.Helper()
	f.SetCommand("optimize", `{"success":true,"message":"started","job_id":"`+jobID+`"}`)

	cmd := update(a, tui.SendLineMsg{Line: "/optimize my-skill"})
	cmd = run(t, a, cmd) // command result -> first poll
	run(t, a, cmd)       // poll result
}

func TestChatStreamTurn(t *testing.T) {
	f := testutil.NewFakeAPI(t)
	f.SetStream(
		`data: {"type":"thinking","content":"hmm"}`, "",
		`data: {"type":"response","content":"Hel"}`, "",
		`data: {"type":"response","content":"lo"}`, "",
		"data: [DONE]", "",
	)
	a := newTestApp(t, f, nil)

	cmd := update(a, tui.SendLineMsg{Line: "hi"})
	if !a.model.Streaming {
		t.Fatal("expected streaming after sending a line")
	}
	for i := 0; cmd != nil; i++ {
		if i > 20 {
			t.Fatal("stream did not finish")
		}
		cmd = run(t, a, cmd)
	}

	if a.model.Streaming {
		t.Error("streaming flag still set")
	}
	if got := a.model.Timeline.Count(timeline.RoleThinking); got != 1 {
		t.Errorf("thinking messages = %d, want 1", got)
	}
	msgs := a.model.Timeline.Messages()
	last := msgs[len(msgs)-1]
	if last.Role != timeline.RoleAssistant || last.Content != "Hello" {
		t.Errorf("last message = %+v, want assistant Hello", last)
	}
	if last.Status != timeline.StatusDone {
		t.Errorf("assistant status = %q, want done", last.Status)
	}
}

func TestStaleStreamEventIgnored(t *testing.T) {
	f := testutil.NewFakeAPI(t)
	a := newTestApp(t, f, nil)

	cmd := update(a, tui.StreamEventMsg{Gen: 42, Event: stream.Event{Type: stream.EventResponse, Content: "late"}})
	if cmd != nil {
		t.Error("stale event should not schedule a listen")
	}
	if got := a.model.Timeline.Count(timeline.RoleAssistant); got != 0 {
		t.Errorf("assistant messages = %d, want 0", got)
	}
}

func TestUnknownCommand(t *testing.T) {
	f := testutil.NewFakeAPI(t)
	a := newTestApp(t, f, nil)

	if cmd := update(a, tui.SendLineMsg{Line: "/bogus"}); cmd != nil {
		t.Error("unknown command should not execute")
	}
	if got := lastSystem(a); !strings.Contains(got, "/help") {
		t.Errorf("system message = %q, want a /help hint", got)
	}
}

func TestClarifyAnsweredThroughKeys(t *testing.T) {
	f := testutil.NewFakeAPI(t)
	f.QueueHitl("j1", testutil.ClarifyPromptJSON)
	store := newTestStore(t)
	a := newTestApp(t, f, store)

	startJob(t, a, f, "j1")

	if !a.prompting {
		t.Fatal("expected the prompt to open")
	}
	if a.poller.State() != poller.StatePrompting {
		t.Errorf("poller state = %q, want prompting", a.poller.State())
	}
	active, ok := a.model.Timeline.ActiveHitl()
	if !ok || active.Status != timeline.StatusPendingResponse {
		t.Fatalf("active hitl = %+v, %v", active, ok)
	}

	// select A, select A, submit
	if cmd := update(a, enter()); cmd != nil {
		t.Fatal("first answer should not submit")
	}
	if cmd := update(a, enter()); cmd != nil {
		t.Fatal("second answer should not submit")
	}
	cmd := update(a, enter())
	cmd = run(t, a, cmd) // PromptSubmitMsg -> SubmitCmd
	if cmd = run(t, a, cmd); cmd != nil {
		t.Error("submit result should not schedule anything")
	}

	if got := len(f.Submissions("j1")); got != 1 {
		t.Fatalf("submissions = %d, want 1", got)
	}
	if a.prompting {
		t.Error("prompt still open after submit")
	}
	if a.poller.State() != poller.StatePolling {
		t.Errorf("poller state = %q, want polling", a.poller.State())
	}

	answered, ok := a.model.Timeline.Get(active.ID)
	if !ok || answered.Hitl == nil || !answered.Hitl.Answered {
		t.Fatalf("hitl message = %+v, want answered", answered)
	}
	if answered.Status != timeline.StatusDone {
		t.Errorf("hitl status = %q, want done", answered.Status)
	}
	if _, ok := a.model.Timeline.ActiveHitl(); ok {
		t.Error("active hitl not cleared")
	}

	answers, err := store.GetAnswers("j1")
	if err != nil {
		t.Fatalf("GetAnswers: %v", err)
	}
	if len(answers) != 1 || answers[0].Kind != "clarify" {
		t.Errorf("answers = %+v", answers)
	}
	if _, err := store.GetJob("j1"); err != nil {
		t.Errorf("job not recorded: %v", err)
	}
}

func TestSubmitFailureKeepsAnswer(t *testing.T) {
	f := testutil.NewFakeAPI(t)
	f.QueueHitl("j1", testutil.ConfirmPromptJSON)
	f.RejectSubmissions("busy")
	a := newTestApp(t, f, nil)

	startJob(t, a, f, "j1")
	if !a.prompting {
		t.Fatal("expected the prompt to open")
	}

	cmd := update(a, enter())
	cmd = run(t, a, cmd)
	run(t, a, cmd)

	if !a.prompting {
		t.Fatal("prompt closed after a failed submit")
	}
	if _, ok := a.prompt.Pending(); !ok {
		t.Error("pending answer lost")
	}
	if got := lastSystem(a); !strings.Contains(got, "Press Enter to retry") {
		t.Errorf("system message = %q", got)
	}
	if h := hitlMessages(a); len(h) != 1 || h[0].Hitl.Answered {
		t.Errorf("hitl messages = %+v, want one unanswered", h)
	}

	f.RejectSubmissions("")
	cmd = update(a, enter())
	cmd = run(t, a, cmd)
	run(t, a, cmd)

	if got := len(f.Submissions("j1")); got != 1 {
		t.Fatalf("submissions = %d, want 1", got)
	}
	if a.prompting {
		t.Error("prompt still open after retry")
	}
	if h := hitlMessages(a); len(h) != 1 || !h[0].Hitl.Answered {
		t.Errorf("hitl messages = %+v, want one answered", h)
	}
}

func TestPromptArrivingDuringSubmit(t *testing.T) {
	f := testutil.NewFakeAPI(t)
	f.QueueHitl("j1", testutil.ConfirmPromptJSON, testutil.SecondConfirmPromptJSON)
	store := newTestStore(t)
	a := newTestApp(t, f, store)

	startJob(t, a, f, "j1")
	if !a.prompting {
		t.Fatal("expected the first prompt to open")
	}

	submit := run(t, a, update(a, enter())) // SubmitCmd for cp-1, held back

	// cp-2 is polled before the answer to cp-1 lands.
	run(t, a, update(a, tui.PollTickMsg{Ticket: a.poller.Ticket()}))
	run(t, a, submit)

	h := hitlMessages(a)
	if len(h) != 2 {
		t.Fatalf("hitl messages = %d, want 2", len(h))
	}
	if !h[0].Hitl.Answered || h[0].Hitl.Retired {
		t.Errorf("first hitl = %+v, want answered", h[0].Hitl)
	}
	if h[1].Hitl.Answered || h[1].Hitl.Retired {
		t.Errorf("second hitl = %+v, want pending", h[1].Hitl)
	}
	if !a.prompting {
		t.Fatal("second prompt closed by the first answer")
	}
	if active, ok := a.model.Timeline.ActiveHitl(); !ok || active.ID != h[1].ID {
		t.Errorf("active hitl = %+v, %v, want the second prompt", active, ok)
	}
	if env, ok := a.poller.ActivePrompt(); !ok || env.Key != "confirm:cp-2" {
		t.Errorf("poller prompt = %+v, %v, want confirm:cp-2", env, ok)
	}

	cmd := run(t, a, update(a, enter()))
	run(t, a, cmd)

	if got := len(f.Submissions("j1")); got != 2 {
		t.Fatalf("submissions = %d, want 2", got)
	}
	if h := hitlMessages(a); !h[1].Hitl.Answered {
		t.Errorf("second hitl = %+v, want answered", h[1].Hitl)
	}
	answers, err := store.GetAnswers("j1")
	if err != nil {
		t.Fatalf("GetAnswers: %v", err)
	}
	if len(answers) != 2 || answers[0].PromptKey != "confirm:cp-1" || answers[1].PromptKey != "confirm:cp-2" {
		t.Errorf("answers = %+v", answers)
	}
}

func TestMalformedPromptKeepsJobAlive(t *testing.T) {
	f := testutil.NewFakeAPI(t)
	f.QueueHitl("j1", testutil.MalformedClarifyJSON)
	a := newTestApp(t, f, nil)

	startJob(t, a, f, "j1")
	for i := 0; i < 12; i++ {
		run(t, a, update(a, tui.PollTickMsg{Ticket: a.poller.Ticket()}))
	}

	if a.poller.State() != poller.StatePolling || a.model.JobState == string(api.JobFailed) {
		t.Fatalf("poller state = %q, job state = %q, want polling", a.poller.State(), a.model.JobState)
	}
	reported := 0
	for _, m := range a.model.Timeline.Messages() {
		if m.Role != timeline.RoleSystem {
			continue
		}
		if strings.Contains(m.Content, "Could not reach") {
			t.Errorf("decode failure reported as a network error: %q", m.Content)
		}
		if strings.Contains(m.Content, "cannot display") {
			reported++
		}
	}
	if reported != 1 {
		t.Errorf("malformed prompt reported %d times, want 1", reported)
	}

	// The server replaces it with a prompt that decodes.
	f.QueueHitl("j1", testutil.ConfirmPromptJSON)
	run(t, a, update(a, tui.PollTickMsg{Ticket: a.poller.Ticket()}))
	run(t, a, update(a, tui.PollTickMsg{Ticket: a.poller.Ticket()}))
	if !a.prompting {
		t.Error("replacement prompt did not open")
	}
}

func TestTitleKeepsWholeRunes(t *testing.T) {
	f := testutil.NewFakeAPI(t)
	store := newTestStore(t)
	a := newTestApp(t, f, store)

	line := strings.Repeat("é", 79) + "日本語"
	update(a, tui.SendLineMsg{Line: line})

	conv, err := store.GetConversation(a.model.ConversationID)
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if !utf8.ValidString(conv.Title) {
		t.Fatalf("title is not valid UTF-8: %q", conv.Title)
	}
	if !strings.HasPrefix(line, conv.Title) || ansi.StringWidth(conv.Title) > maxTitleLen {
		t.Errorf("title = %q, want a prefix of at most %d cells", conv.Title, maxTitleLen)
	}
	if utf8.RuneCountInString(conv.Title) < 70 {
		t.Errorf("title cut too short: %d runes", utf8.RuneCountInString(conv.Title))
	}
}

func TestPromptClearedIsRetired(t *testing.T) {
	f := testutil.NewFakeAPI(t)
	f.QueueHitl("j1", testutil.ConfirmPromptJSON, "")
	a := newTestApp(t, f, nil)

	startJob(t, a, f, "j1")
	if !a.prompting {
		t.Fatal("expected the prompt to open")
	}

	cmd := update(a, tui.PollTickMsg{Ticket: a.poller.Ticket()})
	run(t, a, cmd)

	if a.prompting {
		t.Error("prompt still open after the server cleared it")
	}
	h := hitlMessages(a)
	if len(h) != 1 || !h[0].Hitl.Retired {
		t.Errorf("hitl messages = %+v, want one retired", h)
	}
}

func TestJobCompletion(t *testing.T) {
	f := testutil.NewFakeAPI(t)
	f.SetJob("j2", "completed", "drafts/skill.md")
	a := newTestApp(t, f, nil)

	f.SetCommand("optimize", `{"success":true,"job_id":"j2"}`)
	cmd := update(a, tui.SendLineMsg{Line: "/optimize my-skill"})
	cmd = run(t, a, cmd)
	if cmd = run(t, a, cmd); cmd != nil {
		t.Error("terminal job should stop polling")
	}

	if a.model.JobState != "completed" {
		t.Errorf("job state = %q, want completed", a.model.JobState)
	}
	if got := lastSystem(a); !strings.Contains(got, "drafts/skill.md") {
		t.Errorf("system message = %q, want the draft path", got)
	}
}

func TestJobFailure(t *testing.T) {
	f := testutil.NewFakeAPI(t)
	f.SetJobError("j3", "boom")
	a := newTestApp(t, f, nil)

	startJob(t, a, f, "j3")

	if a.model.JobState != string(api.JobFailed) {
		t.Errorf("job state = %q, want failed", a.model.JobState)
	}
	if got := lastSystem(a); !strings.Contains(got, "boom") {
		t.Errorf("system message = %q, want the job error", got)
	}
}

func TestStaleTickIgnored(t *testing.T) {
	f := testutil.NewFakeAPI(t)
	a := newTestApp(t, f, nil)

	startJob(t, a, f, "j1")
	old := a.poller.Ticket()
	startJob(t, a, f, "j2")

	if cmd := update(a, tui.PollTickMsg{Ticket: old}); cmd != nil {
		t.Error("tick for a replaced job should be dropped")
	}
}

func TestDoubleCtrlCQuits(t *testing.T) {
	f := testutil.NewFakeAPI(t)
	a := newTestApp(t, f, nil)

	ctrlC := tea.KeyMsg{Type: tea.KeyCtrlC}
	if cmd := update(a, ctrlC); cmd == nil || !a.model.CtrlCPending {
		t.Fatal("first ctrl+c should arm the quit")
	}
	cmd := update(a, ctrlC)
	if cmd == nil {
		t.Fatal("second ctrl+c returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("second ctrl+c should quit")
	}
}

func TestCtrlCReset(t *testing.T) {
	f := testutil.NewFakeAPI(t)
	a := newTestApp(t, f, nil)

	update(a, tea.KeyMsg{Type: tea.KeyCtrlC})
	update(a, tui.CtrlCResetMsg{})
	if a.model.CtrlCPending {
		t.Error("pending quit not reset")
	}
}

func TestViewShowsPrompt(t *testing.T) {
	f := testutil.NewFakeAPI(t)
	f.QueueHitl("j1", testutil.ClarifyPromptJSON)
	a := newTestApp(t, f, nil)
	update(a, tea.WindowSizeMsg{Width: 100, Height: 40})

	startJob(t, a, f, "j1")

	out := a.View()
	for _, want := range []string{"Clarification needed (2 questions)", "Which runtime?", "job j1"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q", want)
		}
	}
}
