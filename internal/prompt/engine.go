// Package prompt implements the answer-collection state machines for hitl
// checkpoints, one per prompt kind. Engines are pure: they consume
// navigation actions and text edits and produce a normalized response when
// the user completes the prompt. Rendering and key mapping live in the TUI.
package prompt

import (
	"fmt"

	"github.com/skillfleet/fleet/internal/hitl"
)

// Action is a uniform navigation input.
type Action int

const (
	ActionNext    Action = iota // advance focus (tab)
	ActionConfirm               // commit or submit the focused region (enter)
	ActionBack                  // previous question / leave a text field
	ActionUp
	ActionDown
)

func (a Action) String() string {
	switch a {
	case ActionNext:
		return "next"
	case ActionConfirm:
		return "confirm"
	case ActionBack:
		return "back"
	case ActionUp:
		return "up"
	case ActionDown:
		return "down"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Engine is the state machine behind one hitl prompt.
type Engine interface {
	Kind() hitl.Kind
	// Focus names the focused region.
	Focus() string
	// Handle applies a navigation action. It returns the response when the
	// action completes the prompt, nil otherwise.
	Handle(a Action) *hitl.Response
	// Editing reports whether the focused region takes free text.
	Editing() bool
	// Text returns the draft of the focused text region.
	Text() string
	// SetText replaces the draft of the focused text region. It is a no-op
	// when Editing is false.
	SetText(s string)
	// Done reports whether the prompt produced its response.
	Done() bool
}

// New returns the engine for p.
func New(p hitl.Prompt) (Engine, error) {
	switch p := p.(type) {
	case *hitl.ClarifyPrompt:
		return NewClarify(p.Questions), nil
	case *hitl.ConfirmPrompt:
		return newDecision(hitl.KindConfirm), nil
	case *hitl.DeepUnderstandingPrompt:
		return newDecision(hitl.KindDeepUnderstanding), nil
	case *hitl.TDDRedPrompt:
		return newDecision(hitl.KindTDDRed), nil
	case *hitl.TDDGreenPrompt:
		return newDecision(hitl.KindTDDGreen), nil
	case *hitl.TDDRefactorPrompt:
		return newDecision(hitl.KindTDDRefactor), nil
	case *hitl.StructureFixPrompt:
		return NewStructureFix(p.CurrentSkillName, p.CurrentDescription), nil
	case nil:
		return nil, fmt.Errorf("%w: nil prompt", hitl.ErrUnknownKind)
	default:
		return nil, fmt.Errorf("%w: %T", hitl.ErrUnknownKind, p)
	}
}
