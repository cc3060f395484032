package prompt

import (
	"strings"

	"github.com/skillfleet/fleet/internal/hitl"
)

// StructureFocus is the focused region of a structure_fix prompt.
type StructureFocus string

const (
	FocusAccept      StructureFocus = "accept"
	FocusName        StructureFocus = "name"
	FocusDescription StructureFocus = "description"
	FocusSubmitFix   StructureFocus = "submit"
)

// StructureFix asks whether to accept the suggested structure fixes. When
// the suggestions are declined the name and description can be edited.
type StructureFix struct {
	accept      bool
	name        string
	description string
	focus       StructureFocus
	done        bool
}

// NewStructureFix creates the engine with the skill's current values.
func NewStructureFix(name, description string) *StructureFix {
	return &StructureFix{
		accept:      true,
		name:        name,
		description: description,
		focus:       FocusAccept,
	}
}

func (s *StructureFix) Kind() hitl.Kind { return hitl.KindStructureFix }
func (s *StructureFix) Focus() string   { return string(s.focus) }
func (s *StructureFix) Done() bool      { return s.done }

// Region returns the focus as its typed value.
func (s *StructureFix) Region() StructureFocus { return s.focus }

// Accept reports whether the suggestions are accepted.
func (s *StructureFix) Accept() bool { return s.accept }

// Name returns the displayed skill name.
func (s *StructureFix) Name() string { return s.name }

// Description returns the displayed description.
func (s *StructureFix) Description() string { return s.description }

func (s *StructureFix) Editing() bool {
	return !s.accept && (s.focus == FocusName || s.focus == FocusDescription)
}

func (s *StructureFix) Text() string {
	switch {
	case !s.Editing():
		return ""
	case s.focus == FocusName:
		return s.name
	default:
		return s.description
	}
}

func (s *StructureFix) SetText(v string) {
	if s.done || !s.Editing() {
		return
	}
	if s.focus == FocusName {
		s.name = v
	} else {
		s.description = v
	}
}

// Handle applies a navigation action.
func (s *StructureFix) Handle(a Action) *hitl.Response {
	if s.done {
		return nil
	}

	switch a {
	case ActionUp, ActionDown:
		if s.focus == FocusAccept {
			s.accept = !s.accept
		}
	case ActionNext:
		s.focus = s.nextFocus()
	case ActionBack:
		s.focus = FocusAccept
	case ActionConfirm:
		if s.focus == FocusSubmitFix {
			s.done = true
			return s.response()
		}
		s.focus = s.nextFocus()
	}
	return nil
}

// nextFocus walks accept, name, description, submit. Name and description
// are skipped while the suggestions are accepted.
func (s *StructureFix) nextFocus() StructureFocus {
	switch s.focus {
	case FocusAccept:
		if s.accept {
			return FocusSubmitFix
		}
		return FocusName
	case FocusName:
		return FocusDescription
	case FocusDescription:
		return FocusSubmitFix
	}
	return FocusAccept
}

func (s *StructureFix) response() *hitl.Response {
	accept := s.accept
	name := strings.TrimSpace(s.name)
	desc := strings.TrimSpace(s.description)

	summary := "Accepted suggested structure fixes"
	if !accept {
		summary = "Kept structure with edits"
		if name != "" {
			summary += "\nName: " + name
		}
		if desc != "" {
			summary += "\nDescription: " + desc
		}
	}

	return &hitl.Response{
		Action:            hitl.ActionProceed,
		Summary:           summary,
		AcceptSuggestions: &accept,
		SkillName:         name,
		Description:       desc,
	}
}
