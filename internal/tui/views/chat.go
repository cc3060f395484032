// Package views provides TUI view components for the fleet console.
package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/skillfleet/fleet/internal/hitl"
	"github.com/skillfleet/fleet/internal/timeline"
	"github.com/skillfleet/fleet/internal/tui"
)

// inputHeight is the number of text rows of the chat input.
const inputHeight = 3

// ============================================================================
// ChatModel
// ============================================================================

// ChatModel renders the conversation timeline and the chat input.
type ChatModel struct {
	messages []timeline.Message
	textarea textarea.Model
	viewport viewport.Model
	width    int
	height   int
}

// NewChatModel creates a new ChatModel sized for the terminal.
func NewChatModel(width, height int) ChatModel {
	ta := textarea.New()
	ta.Placeholder = "Message, or /help for commands"
	ta.CharLimit = 5000
	ta.SetHeight(inputHeight)
	ta.ShowLineNumbers = false

	// Enter sends; only ctrl+j inserts a newline.
	keyMap := ta.KeyMap
	keyMap.InsertNewline = tui.DefaultKeyMap.NewLine
	ta.KeyMap = keyMap
	ta.Focus()

	m := ChatModel{
		textarea: ta,
		viewport: viewport.New(width, 10),
	}
	m.SetSize(width, height)
	return m
}

// SetSize sets the area available to the timeline and input.
func (m *ChatModel) SetSize(width, height int) {
	m.width = width
	m.height = height

	vpWidth := width - 2
	if vpWidth < 20 {
		vpWidth = 20
	}
	vpHeight := height - inputHeight - 2
	if vpHeight < 3 {
		vpHeight = 3
	}

	m.viewport.Width = vpWidth
	m.viewport.Height = vpHeight
	m.textarea.SetWidth(vpWidth)
	m.viewport.SetContent(FormatMessages(m.messages, vpWidth))
}

// SetViewportHeight resizes only the timeline, leaving the input untouched.
func (m *ChatModel) SetViewportHeight(h int) {
	if h < 3 {
		h = 3
	}
	m.viewport.Height = h
}

// SetMessages replaces the rendered timeline. The view follows new output
// when it was scrolled to the bottom.
func (m *ChatModel) SetMessages(messages []timeline.Message) {
	follow := m.viewport.AtBottom() || len(m.messages) == 0
	m.messages = messages
	m.viewport.SetContent(FormatMessages(messages, m.viewport.Width))
	if follow {
		m.viewport.GotoBottom()
	}
}

// Focus gives the chat input keyboard focus.
func (m *ChatModel) Focus() tea.Cmd {
	return m.textarea.Focus()
}

// Blur removes keyboard focus from the chat input.
func (m *ChatModel) Blur() {
	m.textarea.Blur()
}

// Value returns the current input draft.
func (m ChatModel) Value() string {
	return m.textarea.Value()
}

// Update handles messages for the chat view.
func (m ChatModel) Update(msg tea.Msg) (ChatModel, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, tui.DefaultKeyMap.Send):
			line := strings.TrimSpace(m.textarea.Value())
			if line == "" {
				return m, nil
			}
			m.textarea.Reset()
			return m, func() tea.Msg {
				return tui.SendLineMsg{Line: line}
			}

		case key.Matches(msg, tui.DefaultKeyMap.PageUp, tui.DefaultKeyMap.PageDown):
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case tea.MouseMsg:
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	m.textarea, cmd = m.textarea.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// TimelineView renders only the scrollable timeline.
func (m ChatModel) TimelineView() string {
	return m.viewport.View()
}

// InputView renders the chat input.
func (m ChatModel) InputView() string {
	return m.textarea.View()
}

// ============================================================================
// Timeline rendering
// ============================================================================

// FormatMessages renders the timeline for display. All message text is
// sanitized here, at the render boundary.
func FormatMessages(messages []timeline.Message, width int) string {
	if len(messages) == 0 {
		return tui.DimStyle.Render("No messages yet. Type a message or /help.")
	}

	wrap := lipgloss.NewStyle().Width(width)

	var b strings.Builder
	for i, msg := range messages {
		b.WriteString(wrap.Render(formatMessage(msg)))

		// Add spacing between messages (except after the last one)
		if i < len(messages)-1 {
			b.WriteString("\n\n")
		}
	}
	return b.String()
}

func formatMessage(msg timeline.Message) string {
	content := hitl.Sanitize(msg.Content)

	switch msg.Role {
	case timeline.RoleUser:
		return tui.UserStyle.Render("You: ") + content
	case timeline.RoleAssistant:
		text := tui.AssistantStyle.Render("Assistant: ") + content
		if msg.Status == timeline.StatusStreaming {
			text += tui.DimStyle.Render(" ▍")
		}
		return text
	case timeline.RoleThinking:
		return tui.ThinkingStyle.Render("Thinking: " + content)
	case timeline.RoleHitl:
		return formatHitl(msg, content)
	default:
		return tui.DimStyle.Render("System: " + content)
	}
}

// formatHitl renders a checkpoint entry. Once answered only the response
// summary is shown.
func formatHitl(msg timeline.Message, content string) string {
	h := msg.Hitl
	if h == nil {
		return tui.HitlStyle.Render("? ") + content
	}

	switch {
	case h.Answered && h.Answer != nil:
		return fmt.Sprintf("%s %s\n%s",
			tui.CheckMark,
			tui.DimStyle.Render(content),
			hitl.Sanitize(h.Answer.Summary),
		)
	case h.Retired:
		return tui.DimStyle.Render(content + " (withdrawn)")
	default:
		return tui.HitlStyle.Render("? "+content) + "\n" + tui.DimStyle.Render("Answer below.")
	}
}
