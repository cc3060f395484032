// Package app provides the conversation controller: the root Bubble Tea
// model that wires the timeline, the job poller, the chat stream and the
// prompt views together.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/skillfleet/fleet/internal/api"
	"github.com/skillfleet/fleet/internal/command"
	"github.com/skillfleet/fleet/internal/config"
	"github.com/skillfleet/fleet/internal/hitl"
	"github.com/skillfleet/fleet/internal/log"
	"github.com/skillfleet/fleet/internal/poller"
	"github.com/skillfleet/fleet/internal/session"
	"github.com/skillfleet/fleet/internal/stream"
	"github.com/skillfleet/fleet/internal/timeline"
	"github.com/skillfleet/fleet/internal/tui"
	"github.com/skillfleet/fleet/internal/tui/commands"
	"github.com/skillfleet/fleet/internal/tui/views"
)

const (
	ctrlCTimeout = time.Second
	maxTitleLen  = 80
)

// Client is the part of the API client the console uses.
type Client interface {
	poller.Fetcher
	commands.Streamer
}

// Deps are the collaborators of the console.
type Deps struct {
	Client   Client
	Executor command.Executor
	Logger   *log.Logger    // nil discards events
	Debug    *logrus.Logger // nil discards diagnostics
	Store    *session.Store // nil disables history
}

// App is the conversation controller. It owns the job lifecycle and is the
// only writer of the timeline; every mutation happens on the event loop.
type App struct {
	model *tui.Model
	deps  Deps

	// Conversation scope, cancelled on teardown.
	ctx    context.Context
	cancel context.CancelFunc

	// Job
	poller    *poller.Poller
	resumeJob string

	// Views
	chat      views.ChatModel
	prompt    views.PromptModel
	prompting bool
	hitlMsgID string
	promptEnv hitl.Envelope
	promptAt  time.Time
	inflight  *submission

	// Chat stream
	turn         *stream.Turn
	streamGen    uint64
	streamCancel context.CancelFunc
	streamEvents <-chan stream.Event

	titled bool
}

// submission is an answer being posted. Its hitl message may no longer be
// the one on screen when the result arrives.
type submission struct {
	ticket  poller.Ticket
	msgID   string
	env     hitl.Envelope
	shownAt time.Time
}

// New creates the console for projectRoot.
func New(cfg *config.Config, projectRoot string, deps Deps) *App {
	if deps.Debug == nil {
		deps.Debug = logrus.New()
		deps.Debug.SetOutput(io.Discard)
	}

	model := tui.NewModel(cfg, projectRoot)
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		model:  model,
		deps:   deps,
		ctx:    ctx,
		cancel: cancel,
		chat:   views.NewChatModel(model.Width, model.Height-2),
	}
	a.poller = poller.New(deps.Client, poller.Options{
		Interval:         cfg.JobInterval(),
		ReviewInterval:   cfg.ReviewInterval(),
		MaxFetchFailures: cfg.Polling.MaxFetchFailures,
	}, poller.Handlers{
		OnPrompt:          a.onPrompt,
		OnPromptCleared:   a.onPromptCleared,
		OnMalformedPrompt: a.onMalformedPrompt,
		OnSubmitted:       a.onSubmitted,
		OnComplete:        a.onComplete,
		OnError:           a.onError,
		OnFetchError:      a.onFetchError,
	})

	a.startConversation()
	a.system("Type a message to chat, or /help for commands.")
	a.refresh()
	return a
}

// Resume makes the console attach to jobID when it starts.
func (a *App) Resume(jobID string) {
	a.resumeJob = jobID
}

// Init returns the initial command for the TUI.
func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{
		textarea.Blink,
		a.model.Spinner.Tick,
		commands.ActivityTickCmd(a.model.Cfg.ActivityTick()),
	}
	if a.resumeJob != "" {
		cmds = append(cmds, a.startJob(a.resumeJob, ""))
		a.refresh()
	}
	return tea.Batch(cmds...)
}

// Update handles messages and updates the application state.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// Spinner frames change nothing but the status bar.
	if msg, ok := msg.(spinner.TickMsg); ok {
		var cmd tea.Cmd
		a.model.Spinner, cmd = a.model.Spinner.Update(msg)
		return a, cmd
	}

	cmd := a.update(msg)
	a.refresh()
	return a, cmd
}

func (a *App) update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.model.Width = msg.Width
		a.model.Height = msg.Height
		a.chat.SetSize(msg.Width, msg.Height-2)
		if a.prompting {
			a.prompt.SetWidth(msg.Width)
		}
		return nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case tui.CtrlCResetMsg:
		a.model.CtrlCPending = false
		return nil

	case tui.ActivityTickMsg:
		a.model.Now = msg.Time
		return commands.ActivityTickCmd(a.model.Cfg.ActivityTick())

	case tui.SendLineMsg:
		return a.handleLine(msg.Line)

	case tui.CommandResultMsg:
		return a.handleCommandResult(msg)

	case tui.PollTickMsg:
		if !a.poller.Current(msg.Ticket) {
			return nil
		}
		return commands.PollCmd(a.poller, msg.Ticket)

	case tui.PollResultMsg:
		return a.handlePollResult(msg.Result)

	case tui.PromptSubmitMsg:
		return a.handlePromptSubmit(msg.Response)

	case tui.SubmitResultMsg:
		a.handleSubmitResult(msg)
		return nil

	case tui.StreamStartedMsg:
		if msg.Gen != a.streamGen {
			return nil
		}
		a.streamEvents = msg.Events
		return commands.ListenStreamCmd(msg.Gen, msg.Events)

	case tui.StreamEventMsg:
		return a.handleStreamEvent(msg)

	case tui.StreamClosedMsg:
		if msg.Gen == a.streamGen && a.turn != nil && !a.turn.Done() {
			a.turn.Complete()
			a.finishStream()
		}
		return nil

	case tui.ErrorMsg:
		a.system("Error: " + msg.Err.Error())
		return nil
	}

	// Remaining messages (cursor blinks) belong to whichever input is live.
	var cmd tea.Cmd
	if a.prompting {
		a.prompt, cmd = a.prompt.Update(msg)
	} else {
		a.chat, cmd = a.chat.Update(msg)
	}
	return cmd
}

// ============================================================================
// Input
// ============================================================================

func (a *App) handleKey(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, tui.DefaultKeyMap.CtrlC) {
		if a.model.CtrlCPending {
			// Second press within timeout - exit
			a.Close()
			return tea.Quit
		}
		// First press - set pending and start timeout
		a.model.CtrlCPending = true
		return tea.Tick(ctrlCTimeout, func(time.Time) tea.Msg {
			return tui.CtrlCResetMsg{}
		})
	}

	var cmd tea.Cmd
	switch {
	case key.Matches(msg, tui.DefaultKeyMap.PageUp, tui.DefaultKeyMap.PageDown):
		a.chat, cmd = a.chat.Update(msg)
	case a.prompting:
		// While a prompt is open it receives all other input.
		a.prompt, cmd = a.prompt.Update(msg)
	default:
		a.chat, cmd = a.chat.Update(msg)
	}
	return cmd
}

// handleLine routes a submitted input line to the command executor or the
// chat stream.
func (a *App) handleLine(line string) tea.Cmd {
	a.model.Timeline.Append(timeline.Message{Role: timeline.RoleUser, Content: line})
	a.persist(timeline.RoleUser, line)
	a.setTitle(line)
	a.model.Activity.Event(time.Now())

	if !command.IsCommand(line) {
		return a.startStream(line)
	}

	cmd, err := command.Parse(line)
	if err != nil {
		a.system(fmt.Sprintf("%v. Type /help for the list of commands.", err))
		return nil
	}
	return commands.ExecuteCmd(a.ctx, a.deps.Executor, cmd)
}

func (a *App) handleCommandResult(msg tui.CommandResultMsg) tea.Cmd {
	name := msg.Command.Name
	if msg.Err != nil {
		a.system(fmt.Sprintf("/%s failed: %v", name, msg.Err))
		a.logEvent(log.LogEvent{Event: log.EventCommandExecuted, Command: name, Error: msg.Err.Error()})
		return nil
	}

	res := msg.Result
	a.logEvent(log.LogEvent{
		Event:   log.EventCommandExecuted,
		Command: name,
		JobID:   res.JobID,
		Data:    map[string]interface{}{"success": res.Success},
	})

	text := res.Message
	switch {
	case text == "" && res.Success:
		text = fmt.Sprintf("/%s done.", name)
	case text == "":
		text = fmt.Sprintf("/%s failed.", name)
	case !res.Success:
		text = "Error: " + text
	}
	a.system(text)
	a.model.Activity.Event(time.Now())

	if res.JobID == "" {
		return nil
	}
	return a.startJob(res.JobID, name)
}

// ============================================================================
// Job lifecycle
// ============================================================================

// startJob points the poller at jobID, replacing any previous loop, and
// issues the first poll immediately.
func (a *App) startJob(jobID, command string) tea.Cmd {
	a.dropPrompt()
	t := a.poller.StartPolling(jobID)

	now := time.Now()
	a.model.JobID = jobID
	a.model.JobState = string(a.poller.State())
	a.model.Activity.Reset()
	a.model.Activity.Status(now)

	if command == "" {
		a.system(fmt.Sprintf("Resumed job %s.", jobID))
	} else {
		a.system(fmt.Sprintf("Job %s started.", jobID))
	}
	a.recordJob(jobID, command)
	a.logEvent(log.LogEvent{Event: log.EventJobStarted, JobID: jobID, Command: command})

	return commands.PollCmd(a.poller, t)
}

func (a *App) handlePollResult(r poller.Result) tea.Cmd {
	before := a.poller.State()
	again := a.poller.Apply(r)
	if s := a.poller.State(); s != before {
		a.model.JobState = string(s)
		a.model.Activity.Status(time.Now())
		a.deps.Debug.WithFields(logrus.Fields{"job": a.poller.JobID(), "from": before, "to": s}).Debug("job state changed")
	}
	if !again {
		return nil
	}
	return commands.PollTickCmd(r.Ticket, a.poller.Interval())
}

func (a *App) onPrompt(env hitl.Envelope) {
	a.dropPrompt()

	now := time.Now()
	a.model.Activity.Event(now)
	title := hitl.Title(env.Prompt)
	id := a.model.Timeline.Append(timeline.Message{
		Role:    timeline.RoleHitl,
		Content: title,
		Status:  timeline.StatusPendingResponse,
		Hitl: &timeline.HitlData{
			Kind:   env.Prompt.Kind(),
			Prompt: env.Prompt,
			Key:    env.Key,
		},
	})
	a.persist(timeline.RoleHitl, title)
	a.logEvent(log.LogEvent{
		Event:     log.EventPromptReceived,
		JobID:     a.poller.JobID(),
		Kind:      string(env.Prompt.Kind()),
		PromptKey: env.Key,
	})

	pm, err := views.NewPromptModel(env.Prompt, a.model.Width)
	if err != nil {
		_ = a.model.Timeline.Retire(id)
		a.system(fmt.Sprintf("Cannot display this prompt: %v", err))
		return
	}
	if err := a.model.Timeline.SetActiveHitl(id); err != nil {
		a.deps.Debug.WithError(err).Warn("focus hitl message")
	}

	a.prompt = pm
	a.prompting = true
	a.hitlMsgID = id
	a.promptEnv = env
	a.promptAt = now
	a.chat.Blur()
}

func (a *App) onPromptCleared() {
	a.logEvent(log.LogEvent{
		Event:     log.EventPromptCleared,
		JobID:     a.poller.JobID(),
		PromptKey: a.promptEnv.Key,
	})
	a.dropPrompt()
	a.system("The prompt was withdrawn by the server.")
}

// onMalformedPrompt reports a checkpoint that cannot be rendered. The job
// keeps polling; the server may replace or withdraw it.
func (a *App) onMalformedPrompt(err *hitl.DecodeError) {
	a.dropPrompt()
	a.model.Activity.Event(time.Now())

	jobID := a.poller.JobID()
	a.deps.Debug.WithFields(logrus.Fields{"job": jobID, "key": err.Key}).WithError(err).Warn("undisplayable prompt")
	a.logEvent(log.LogEvent{
		Event:     log.EventPromptMalformed,
		JobID:     jobID,
		Kind:      string(err.Kind),
		PromptKey: err.Key,
		Error:     err.Error(),
	})
	a.system(fmt.Sprintf("Job %s is waiting on a prompt this console cannot display (%v). Still watching the job.", jobID, err))
}

func (a *App) onSubmitted(key string, resp hitl.Response) {
	s := a.inflight
	a.inflight = nil
	if s == nil || s.env.Key != key {
		a.deps.Debug.WithField("key", key).Warn("submission result without a pending answer")
		return
	}

	now := time.Now()
	a.model.Activity.Event(now)

	if err := a.model.Timeline.MarkAnswered(s.msgID, resp); err != nil {
		a.deps.Debug.WithError(err).Warn("mark hitl message answered")
	}

	kind := ""
	if s.env.Prompt != nil {
		kind = string(s.env.Prompt.Kind())
	}
	a.logEvent(log.LogEvent{
		Event:      log.EventResponseSubmitted,
		JobID:      a.poller.JobID(),
		Kind:       kind,
		PromptKey:  s.env.Key,
		Action:     string(resp.Action),
		Summary:    resp.Summary,
		DurationMs: now.Sub(s.shownAt).Milliseconds(),
	})
	if a.deps.Store != nil {
		if err := a.deps.Store.AddAnswer(a.poller.JobID(), s.env.Key, kind, string(resp.Action), resp.Summary); err != nil {
			a.deps.Debug.WithError(err).Warn("record answer")
		}
	}

	// A newer prompt may already be on screen.
	if a.hitlMsgID == s.msgID {
		a.hitlMsgID = ""
		a.dropPrompt()
	}
}

func (a *App) onComplete(job api.Job) {
	a.dropPrompt()
	jobID := a.poller.JobID()
	a.model.JobState = string(job.Status)
	a.model.Activity.Status(time.Now())

	event := log.EventJobCompleted
	text := fmt.Sprintf("Job %s completed.", jobID)
	if job.Status == api.JobCancelled {
		event = log.EventJobCancelled
		text = fmt.Sprintf("Job %s was cancelled.", jobID)
	} else if job.DraftPath != "" {
		text += " Draft saved to " + job.DraftPath
	}
	a.system(text)

	a.logEvent(log.LogEvent{Event: event, JobID: jobID, DraftPath: job.DraftPath})
	a.updateJob(jobID, string(job.Status), job.DraftPath)
}

func (a *App) onError(err error) {
	a.dropPrompt()
	jobID := a.poller.JobID()
	a.model.JobState = string(api.JobFailed)
	a.model.Activity.Status(time.Now())

	a.system(fmt.Sprintf("Job %s: %v", jobID, err))
	a.logEvent(log.LogEvent{Event: log.EventJobFailed, JobID: jobID, Error: err.Error()})
	a.updateJob(jobID, string(api.JobFailed), "")
}

// onFetchError reports the first failure of a streak; the rest only go to
// the debug log.
func (a *App) onFetchError(err error, streak int) {
	a.deps.Debug.WithFields(logrus.Fields{"job": a.poller.JobID(), "streak": streak}).WithError(err).Warn("poll failed")
	if streak == 1 {
		a.system(fmt.Sprintf("Could not reach the server for job %s: %v. Retrying...", a.poller.JobID(), err))
	}
}

// ============================================================================
// Prompt submission
// ============================================================================

func (a *App) handlePromptSubmit(resp hitl.Response) tea.Cmd {
	if !a.prompting {
		return nil
	}
	t, ok := a.poller.BeginSubmit()
	if !ok {
		if a.poller.Submitting() {
			a.system("Your previous answer is still being sent. Press Enter to retry.")
		}
		return nil
	}
	a.inflight = &submission{ticket: t, msgID: a.hitlMsgID, env: a.promptEnv, shownAt: a.promptAt}
	a.prompt.SetSubmitting(true)
	return commands.SubmitCmd(a.poller, t, resp)
}

func (a *App) handleSubmitResult(msg tui.SubmitResultMsg) {
	a.poller.ApplySubmit(msg.Ticket, msg.Response, msg.Err)

	// Anything still pending under this ticket failed or belongs to a
	// replaced job.
	s := a.inflight
	if s == nil || s.ticket.Gen != msg.Ticket.Gen || s.ticket.Key != msg.Ticket.Key {
		return
	}
	a.inflight = nil

	if msg.Err == nil {
		if err := a.model.Timeline.MarkAnswered(s.msgID, msg.Response); err != nil {
			a.deps.Debug.WithError(err).Warn("mark hitl message answered")
		}
		return
	}

	a.logEvent(log.LogEvent{
		Event:     log.EventResponseFailed,
		JobID:     msg.Ticket.JobID,
		PromptKey: s.env.Key,
		Error:     msg.Err.Error(),
	})

	if a.prompting && a.hitlMsgID == s.msgID {
		// The answer is kept; enter on the prompt retries.
		a.prompt.SetSubmitting(false)
		a.system(fmt.Sprintf("Could not submit your answer: %v. Press Enter to retry.", msg.Err))
		return
	}

	// The prompt was replaced while its answer was in flight.
	if err := a.model.Timeline.Retire(s.msgID); err != nil {
		a.deps.Debug.WithError(err).Warn("retire hitl message")
	}
	if !errors.Is(msg.Err, context.Canceled) {
		a.system(fmt.Sprintf("Could not submit your answer to an earlier prompt: %v.", msg.Err))
	}
}

// dropPrompt closes the prompt view. An unanswered hitl message is retired
// unless its answer is still being posted.
func (a *App) dropPrompt() {
	if a.hitlMsgID != "" && (a.inflight == nil || a.inflight.msgID != a.hitlMsgID) {
		if err := a.model.Timeline.Retire(a.hitlMsgID); err != nil {
			a.deps.Debug.WithError(err).Warn("retire hitl message")
		}
	}
	a.model.Timeline.ClearActiveHitl()
	a.prompting = false
	a.hitlMsgID = ""
	a.chat.Focus()
}

// ============================================================================
// Chat stream
// ============================================================================

// startStream opens a new chat turn. A turn still in flight is cancelled
// first; at most one stream is live per conversation.
func (a *App) startStream(line string) tea.Cmd {
	a.stopStream()
	a.streamGen++

	ctx, cancel := context.WithCancel(a.ctx)
	a.streamCancel = cancel
	a.turn = stream.NewTurn(a.model.Timeline)
	a.model.Streaming = true

	return commands.StartStreamCmd(ctx, a.deps.Client, a.streamGen, line, a.model.Cfg.Stream.Buffer)
}

func (a *App) handleStreamEvent(msg tui.StreamEventMsg) tea.Cmd {
	if msg.Gen != a.streamGen || a.turn == nil {
		return nil
	}

	ev := msg.Event
	switch ev.Type {
	case stream.EventThinking, stream.EventResponse:
		a.model.Activity.Token(time.Now())
	case stream.EventError:
		a.deps.Debug.WithError(ev.Err).Warn("chat stream failed")
		errText := ""
		if ev.Err != nil {
			errText = ev.Err.Error()
		}
		a.logEvent(log.LogEvent{Event: log.EventStreamError, Error: errText})
	}

	if a.turn.Apply(ev) && a.streamEvents != nil {
		return commands.ListenStreamCmd(msg.Gen, a.streamEvents)
	}
	a.finishStream()
	return nil
}

// finishStream releases the finished turn and records its reply.
func (a *App) finishStream() {
	if a.turn != nil && a.turn.Content() != "" {
		a.persist(timeline.RoleAssistant, a.turn.Content())
	}
	if a.streamCancel != nil {
		a.streamCancel()
		a.streamCancel = nil
	}
	a.streamEvents = nil
	a.model.Streaming = false
}

func (a *App) stopStream() {
	if a.streamCancel != nil {
		a.streamCancel()
		a.streamCancel = nil
	}
	if a.turn != nil {
		a.turn.Complete()
	}
	a.streamEvents = nil
	a.model.Streaming = false
}

// Close stops the poll loop and aborts every in-flight request.
func (a *App) Close() {
	a.poller.Stop()
	a.stopStream()
	a.cancel()
}

// ============================================================================
// History and logging
// ============================================================================

func (a *App) startConversation() {
	if a.deps.Store == nil {
		a.model.ConversationID = uuid.New().String()
	} else {
		conv, err := a.deps.Store.CreateConversation(a.model.ProjectRoot, "")
		if err != nil {
			a.deps.Debug.WithError(err).Warn("create conversation")
			a.model.ConversationID = uuid.New().String()
		} else {
			a.model.ConversationID = conv.ID
		}
	}
	a.logEvent(log.LogEvent{Event: log.EventConversationStarted})
}

func (a *App) setTitle(line string) {
	if a.titled || a.deps.Store == nil {
		return
	}
	a.titled = true
	title := ansi.Truncate(strings.TrimSpace(line), maxTitleLen, "")
	if err := a.deps.Store.SetTitle(a.model.ConversationID, title); err != nil {
		a.deps.Debug.WithError(err).Warn("set conversation title")
	}
}

func (a *App) persist(role timeline.Role, content string) {
	if a.deps.Store == nil {
		return
	}
	if err := a.deps.Store.AddMessage(a.model.ConversationID, string(role), content); err != nil {
		a.deps.Debug.WithError(err).Warn("persist message")
	}
}

func (a *App) recordJob(jobID, command string) {
	if a.deps.Store == nil {
		return
	}
	if err := a.deps.Store.RecordJob(a.model.ConversationID, jobID, command, string(api.JobRunning)); err != nil {
		a.deps.Debug.WithError(err).Warn("record job")
	}
}

func (a *App) updateJob(jobID, status, draftPath string) {
	if a.deps.Store == nil {
		return
	}
	if err := a.deps.Store.UpdateJobStatus(jobID, status, draftPath); err != nil {
		a.deps.Debug.WithError(err).Warn("update job")
	}
}

// logEvent appends to the event log. Failures never interrupt the conversation.
func (a *App) logEvent(ev log.LogEvent) {
	ev.ConversationID = a.model.ConversationID
	if err := a.deps.Logger.Append(ev); err != nil {
		a.deps.Debug.WithError(err).Warn("append event log")
	}
}

func (a *App) system(text string) {
	a.model.Timeline.Append(timeline.Message{Role: timeline.RoleSystem, Content: text})
	a.persist(timeline.RoleSystem, text)
}

// ============================================================================
// Rendering
// ============================================================================

// refresh syncs the views with the timeline and sizes the timeline around
// the input area.
func (a *App) refresh() {
	a.chat.SetViewportHeight(a.model.Height - 2 - lipgloss.Height(a.bottomView()))
	a.chat.SetMessages(a.model.Timeline.Messages())
}

func (a *App) bottomView() string {
	if a.prompting {
		return a.prompt.View()
	}
	return a.chat.InputView()
}

// View renders the console.
func (a *App) View() string {
	header := tui.TitleStyle.Render("fleet") + " " + tui.DimStyle.Render(a.model.ProjectRoot)

	status := views.StatusBar{
		JobID:        a.model.JobID,
		JobState:     a.model.JobState,
		Activity:     a.model.ActivitySummary(),
		Spinner:      a.model.Spinner.View(),
		Streaming:    a.model.Streaming,
		CtrlCPending: a.model.CtrlCPending,
		Width:        a.model.Width,
	}

	return strings.Join([]string{
		header,
		a.chat.TimelineView(),
		a.bottomView(),
		status.View(),
	}, "\n")
}
