package prompt

import (
	"strings"

	"github.com/skillfleet/fleet/internal/hitl"
)

// DecisionFocus is the focused region of a decision prompt.
type DecisionFocus string

const (
	FocusActions  DecisionFocus = "actions"
	FocusFeedback DecisionFocus = "feedback"
	FocusProblem  DecisionFocus = "problem"
	FocusGoals    DecisionFocus = "goals"
)

// Decision drives the proceed / revise / cancel prompts: confirm,
// deep_understanding and the three TDD reviews. deep_understanding also
// collects a problem statement and goals; deep_understanding and
// tdd_refactor offer skip.
type Decision struct {
	kind     hitl.Kind
	actions  []hitl.Action
	cursor   int
	focus    DecisionFocus
	feedback string
	problem  string
	goals    string
	done     bool
}

func newDecision(kind hitl.Kind) *Decision {
	d := &Decision{
		kind:    kind,
		actions: []hitl.Action{hitl.ActionProceed, hitl.ActionRevise, hitl.ActionCancel},
		focus:   FocusActions,
	}
	if kind == hitl.KindDeepUnderstanding || kind == hitl.KindTDDRefactor {
		d.actions = append(d.actions, hitl.ActionSkip)
	}
	return d
}

// NewDecision creates a decision engine for one of the decision kinds.
func NewDecision(kind hitl.Kind) *Decision { return newDecision(kind) }

func (d *Decision) Kind() hitl.Kind { return d.kind }
func (d *Decision) Focus() string   { return string(d.focus) }
func (d *Decision) Done() bool      { return d.done }

// Region returns the focus as its typed value.
func (d *Decision) Region() DecisionFocus { return d.focus }

// Actions returns the selectable actions in display order.
func (d *Decision) Actions() []hitl.Action { return d.actions }

// Cursor returns the index of the highlighted action.
func (d *Decision) Cursor() int { return d.cursor }

// CollectsDetails reports whether the prompt has problem and goals fields.
func (d *Decision) CollectsDetails() bool { return d.kind == hitl.KindDeepUnderstanding }

// Field returns the draft of a text region.
func (d *Decision) Field(f DecisionFocus) string {
	switch f {
	case FocusFeedback:
		return d.feedback
	case FocusProblem:
		return d.problem
	case FocusGoals:
		return d.goals
	}
	return ""
}

func (d *Decision) Editing() bool { return d.focus != FocusActions }

func (d *Decision) Text() string { return d.Field(d.focus) }

func (d *Decision) SetText(s string) {
	if d.done {
		return
	}
	switch d.focus {
	case FocusFeedback:
		d.feedback = s
	case FocusProblem:
		d.problem = s
	case FocusGoals:
		d.goals = s
	}
}

// Handle applies a navigation action.
func (d *Decision) Handle(a Action) *hitl.Response {
	if d.done {
		return nil
	}

	switch a {
	case ActionUp:
		if d.focus == FocusActions && d.cursor > 0 {
			d.cursor--
		}
	case ActionDown:
		if d.focus == FocusActions && d.cursor < len(d.actions)-1 {
			d.cursor++
		}
	case ActionBack:
		d.focus = FocusActions
	case ActionNext:
		d.focus = d.nextFocus()
	case ActionConfirm:
		return d.confirm()
	}
	return nil
}

// nextFocus cycles actions, problem and goals for deep_understanding.
// Feedback is only reachable through revise.
func (d *Decision) nextFocus() DecisionFocus {
	if !d.CollectsDetails() {
		return FocusActions
	}
	switch d.focus {
	case FocusActions:
		return FocusProblem
	case FocusProblem:
		return FocusGoals
	}
	return FocusActions
}

func (d *Decision) confirm() *hitl.Response {
	switch d.focus {
	case FocusFeedback:
		fb := strings.TrimSpace(d.feedback)
		if fb == "" {
			return nil
		}
		return d.finish(&hitl.Response{
			Action:   hitl.ActionRevise,
			Summary:  "Revise: " + fb,
			Feedback: fb,
		})
	case FocusProblem, FocusGoals:
		d.focus = d.nextFocus()
		return nil
	}

	switch d.actions[d.cursor] {
	case hitl.ActionProceed:
		return d.finish(d.proceed("Proceed"))
	case hitl.ActionRevise:
		d.focus = FocusFeedback
		return nil
	case hitl.ActionCancel:
		return d.finish(&hitl.Response{Action: hitl.ActionCancel, Summary: "Cancelled"})
	case hitl.ActionSkip:
		if d.kind == hitl.KindTDDRefactor {
			// skip is presentation only for refactor reviews
			return d.finish(&hitl.Response{Action: hitl.ActionProceed, Summary: "Skipped refactoring"})
		}
		return d.finish(&hitl.Response{Action: hitl.ActionSkip, Summary: "Skipped deep understanding"})
	}
	return nil
}

// proceed builds a proceed response, carrying problem and goals for
// deep_understanding.
func (d *Decision) proceed(summary string) *hitl.Response {
	resp := &hitl.Response{Action: hitl.ActionProceed, Summary: summary}
	if !d.CollectsDetails() {
		return resp
	}

	resp.Problem = strings.TrimSpace(d.problem)
	resp.Goals = hitl.ParseGoals(d.goals)
	var b strings.Builder
	b.WriteString(summary)
	if resp.Problem != "" {
		b.WriteString("\nProblem: " + resp.Problem)
	}
	if len(resp.Goals) > 0 {
		b.WriteString("\nGoals: " + strings.Join(resp.Goals, ", "))
	}
	resp.Summary = b.String()
	return resp
}

func (d *Decision) finish(resp *hitl.Response) *hitl.Response {
	d.done = true
	d.focus = FocusActions
	return resp
}
