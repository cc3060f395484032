package views

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/skillfleet/fleet/internal/hitl"
	"github.com/skillfleet/fleet/internal/prompt"
	"github.com/skillfleet/fleet/internal/tui"
)

// maxPromptWidth is the maximum width for the prompt box.
const maxPromptWidth = 90

// ============================================================================
// PromptModel
// ============================================================================

// PromptModel renders the active hitl prompt and maps keys to engine
// actions. Text regions are edited through a single textinput whose value
// is kept in sync with the engine draft.
type PromptModel struct {
	prompt     hitl.Prompt
	engine     prompt.Engine
	input      textinput.Model
	pending    *hitl.Response
	submitting bool
	width      int
}

// NewPromptModel creates the view for p.
func NewPromptModel(p hitl.Prompt, width int) (PromptModel, error) {
	engine, err := prompt.New(p)
	if err != nil {
		return PromptModel{}, err
	}

	ti := textinput.New()
	ti.Placeholder = "Type here..."
	ti.CharLimit = 2000
	ti.Prompt = "› "

	m := PromptModel{
		prompt: p,
		engine: engine,
		input:  ti,
	}
	m.SetWidth(width)
	m.syncInput()
	return m, nil
}

// SetWidth sets the terminal width.
func (m *PromptModel) SetWidth(width int) {
	m.width = width
	m.input.Width = m.boxWidth() - 8
}

// Engine returns the state machine behind the view.
func (m PromptModel) Engine() prompt.Engine { return m.engine }

// Pending returns the response awaiting submission, if any.
func (m PromptModel) Pending() (hitl.Response, bool) {
	if m.pending == nil {
		return hitl.Response{}, false
	}
	return *m.pending, true
}

// SetSubmitting marks whether the pending response is being posted.
func (m *PromptModel) SetSubmitting(v bool) { m.submitting = v }

// Update maps keys onto engine actions.
func (m PromptModel) Update(msg tea.Msg) (PromptModel, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		// cursor blink and similar
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	// The engine finished; enter retries a failed submission.
	if m.engine.Done() {
		if m.pending != nil && !m.submitting && key.Matches(keyMsg, tui.DefaultKeyMap.Confirm) {
			return m, m.submit(*m.pending)
		}
		return m, nil
	}

	var action prompt.Action
	switch {
	case key.Matches(keyMsg, tui.DefaultKeyMap.Next):
		action = prompt.ActionNext
	case key.Matches(keyMsg, tui.DefaultKeyMap.Confirm):
		action = prompt.ActionConfirm
	case key.Matches(keyMsg, tui.DefaultKeyMap.Back):
		action = prompt.ActionBack
	case keyMsg.String() == tui.KeyUp || (!m.engine.Editing() && key.Matches(keyMsg, tui.DefaultKeyMap.Up)):
		action = prompt.ActionUp
	case keyMsg.String() == tui.KeyDown || (!m.engine.Editing() && key.Matches(keyMsg, tui.DefaultKeyMap.Down)):
		action = prompt.ActionDown
	default:
		if !m.engine.Editing() {
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		m.engine.SetText(m.input.Value())
		return m, cmd
	}

	resp := m.engine.Handle(action)
	m.syncInput()
	if resp == nil {
		return m, nil
	}
	m.pending = resp
	return m, m.submit(*resp)
}

func (m PromptModel) submit(resp hitl.Response) tea.Cmd {
	return func() tea.Msg {
		return tui.PromptSubmitMsg{Response: resp}
	}
}

// syncInput loads the engine draft of the focused text region.
func (m *PromptModel) syncInput() {
	if !m.engine.Editing() {
		m.input.Blur()
		m.input.SetValue("")
		return
	}
	m.input.SetValue(m.engine.Text())
	m.input.CursorEnd()
	m.input.Focus()
}

func (m PromptModel) boxWidth() int {
	w := maxPromptWidth
	if m.width-4 < w {
		w = m.width - 4
	}
	if w < 30 {
		w = 30
	}
	return w
}

// View renders the prompt box.
func (m PromptModel) View() string {
	var b strings.Builder

	b.WriteString(tui.TitleStyle.Render(hitl.Title(m.prompt)))
	b.WriteString("\n\n")
	b.WriteString(m.renderBody())
	b.WriteString("\n\n")

	switch {
	case m.submitting:
		b.WriteString(tui.DimStyle.Render("Submitting..."))
	case m.engine.Done() && m.pending != nil:
		b.WriteString(tui.WarningStyle.Render("Not submitted. Press Enter to retry."))
	default:
		b.WriteString(tui.DimStyle.Render(m.footer()))
	}

	return tui.BoxStyle.
		Width(m.boxWidth()).
		Render(b.String())
}

func (m PromptModel) footer() string {
	if m.engine.Editing() {
		return "Enter: confirm · Tab: next · Esc: back"
	}
	return "Enter: select · ↑↓: move · Tab: next · Esc: back"
}
