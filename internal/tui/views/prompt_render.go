package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/skillfleet/fleet/internal/hitl"
	"github.com/skillfleet/fleet/internal/prompt"
	"github.com/skillfleet/fleet/internal/tui"
)

// renderBody renders the kind-specific part of the prompt. Prompt fields
// were sanitized when decoded; user drafts are sanitized here.
func (m PromptModel) renderBody() string {
	var b strings.Builder

	switch p := m.prompt.(type) {
	case *hitl.ConfirmPrompt:
		renderDetails(&b, p.ConfirmDetails)
	case *hitl.DeepUnderstandingPrompt:
		renderDetails(&b, p.ConfirmDetails)
	case *hitl.StructureFixPrompt:
		renderList(&b, "Issues", p.StructureIssues, tui.ErrorStyle)
		renderList(&b, "Warnings", p.StructureWarnings, tui.WarningStyle)
	case *hitl.TDDRedPrompt:
		if p.TestRequirements != "" {
			b.WriteString(p.TestRequirements + "\n\n")
		}
		renderList(&b, "Acceptance criteria", p.AcceptanceCriteria, tui.NormalStyle)
		renderList(&b, "Checklist", p.ChecklistItems, tui.NormalStyle)
		renderList(&b, "Rationalizations identified", p.RationalizationsIdentified, tui.WarningStyle)
	case *hitl.TDDGreenPrompt:
		renderField(&b, "Failing test", p.FailingTest)
		renderField(&b, "Location", p.TestLocation)
		renderField(&b, "Hint", p.MinimalImplementationHint)
	case *hitl.TDDRefactorPrompt:
		renderList(&b, "Opportunities", p.RefactorOpportunities, tui.NormalStyle)
		renderList(&b, "Code smells", p.CodeSmells, tui.WarningStyle)
		renderField(&b, "Coverage", p.CoverageReport)
	}

	switch e := m.engine.(type) {
	case *prompt.Clarify:
		b.WriteString(m.renderClarify(e))
	case *prompt.Decision:
		b.WriteString(m.renderDecision(e))
	case *prompt.StructureFix:
		b.WriteString(m.renderStructure(e))
	}

	return strings.TrimRight(b.String(), "\n")
}

func renderDetails(b *strings.Builder, d hitl.ConfirmDetails) {
	if d.Summary != "" {
		b.WriteString(d.Summary + "\n\n")
	}
	if d.Question != "" && d.Question != d.Summary {
		b.WriteString(d.Question + "\n\n")
	}
	renderField(b, "Path", d.Path)
	renderList(b, "Key assumptions", d.KeyAssumptions, tui.NormalStyle)
}

func renderField(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	b.WriteString(tui.DimStyle.Render(label+": ") + value + "\n")
}

func renderList(b *strings.Builder, title string, items []string, style lipgloss.Style) {
	if len(items) == 0 {
		return
	}
	b.WriteString(tui.DimStyle.Render(title+":") + "\n")
	for _, item := range items {
		b.WriteString("  • " + style.Render(item) + "\n")
	}
	b.WriteString("\n")
}

// cursorLine renders one selectable line.
func cursorLine(label string, selected bool) string {
	if selected {
		return "❯ " + tui.SelectedStyle.Render(label)
	}
	return "  " + tui.NormalStyle.Render(label)
}

func (m PromptModel) renderClarify(c *prompt.Clarify) string {
	if c.Empty() {
		return tui.WarningStyle.Render("The server sent no questions. Waiting for the job to continue or be cancelled.")
	}

	var b strings.Builder
	q, _ := c.Question()
	focus := c.Region()

	fmt.Fprintf(&b, "%s\n", tui.DimStyle.Render(fmt.Sprintf("Question %d of %d", c.Index()+1, c.Len())))
	b.WriteString(tui.SelectedStyle.Render(q.Text) + "\n")
	if q.Rationale != "" {
		b.WriteString(tui.DimStyle.Render(q.Rationale) + "\n")
	}
	b.WriteString("\n")

	answer, _ := c.Answer(c.Index())
	multi := q.Mode() == hitl.ModeMulti
	for i, opt := range q.Options {
		mark := ""
		switch {
		case multi && answer.Has(opt.ID):
			mark = "[x] "
		case multi:
			mark = "[ ] "
		case answer.Has(opt.ID):
			mark = "(•) "
		}
		b.WriteString(cursorLine(mark+opt.Label, focus == prompt.FocusOptions && i == c.Cursor()) + "\n")
		if opt.Description != "" && focus == prompt.FocusOptions && i == c.Cursor() {
			b.WriteString("     " + tui.DimStyle.Render(opt.Description) + "\n")
		}
	}

	if q.AllowsOther && q.Mode() != hitl.ModeText {
		if focus == prompt.FocusOther {
			b.WriteString("❯ Other: " + m.input.View() + "\n")
		} else {
			b.WriteString(cursorLine("Other: "+hitl.Sanitize(answer.OtherText), false) + "\n")
		}
	}
	if q.Mode() == hitl.ModeText {
		if focus == prompt.FocusFreeText {
			b.WriteString("❯ " + m.input.View() + "\n")
		} else {
			b.WriteString(cursorLine(hitl.Sanitize(answer.FreeText), false) + "\n")
		}
	}

	label := "Next question"
	if c.Index() == c.Len()-1 {
		label = "Submit answers"
	}
	b.WriteString("\n" + cursorLine("["+label+"]", focus == prompt.FocusSubmit))
	return b.String()
}

func (m PromptModel) renderDecision(d *prompt.Decision) string {
	var b strings.Builder
	focus := d.Region()

	if d.CollectsDetails() {
		b.WriteString(m.renderText("Problem", d.Field(prompt.FocusProblem), focus == prompt.FocusProblem))
		b.WriteString(m.renderText("Goals (comma separated)", d.Field(prompt.FocusGoals), focus == prompt.FocusGoals))
		b.WriteString("\n")
	}

	for i, a := range d.Actions() {
		b.WriteString(cursorLine(actionLabel(a), focus == prompt.FocusActions && i == d.Cursor()) + "\n")
	}

	if focus == prompt.FocusFeedback {
		b.WriteString("\n" + m.renderText("What should change?", d.Field(prompt.FocusFeedback), true))
	}
	return b.String()
}

func (m PromptModel) renderStructure(s *prompt.StructureFix) string {
	var b strings.Builder
	focus := s.Region()

	choice := "Yes, apply the suggested fixes"
	if !s.Accept() {
		choice = "No, keep my structure"
	}
	b.WriteString(tui.DimStyle.Render("Accept suggestions (↑↓ to toggle):") + "\n")
	b.WriteString(cursorLine(choice, focus == prompt.FocusAccept) + "\n\n")

	if s.Accept() {
		renderField(&b, "Name", s.Name())
		renderField(&b, "Description", s.Description())
	} else {
		b.WriteString(m.renderText("Name", s.Name(), focus == prompt.FocusName))
		b.WriteString(m.renderText("Description", s.Description(), focus == prompt.FocusDescription))
	}

	b.WriteString("\n" + cursorLine("[Submit]", focus == prompt.FocusSubmitFix))
	return b.String()
}

// renderText renders a labelled text region, showing the live input when focused.
func (m PromptModel) renderText(label, value string, focused bool) string {
	if focused {
		return tui.SelectedStyle.Render(label+":") + " " + m.input.View() + "\n"
	}
	return tui.DimStyle.Render(label+":") + " " + hitl.Sanitize(value) + "\n"
}

func actionLabel(a hitl.Action) string {
	switch a {
	case hitl.ActionProceed:
		return "Proceed"
	case hitl.ActionRevise:
		return "Revise"
	case hitl.ActionCancel:
		return "Cancel"
	case hitl.ActionSkip:
		return "Skip"
	}
	return string(a)
}
