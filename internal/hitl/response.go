package hitl

import "strings"

// Action is the decision a response carries back to the job.
type Action string

const (
	ActionProceed Action = "proceed"
	ActionRevise  Action = "revise"
	ActionCancel  Action = "cancel"
	ActionSkip    Action = "skip"
)

// Response is the normalized payload posted for a checkpoint. Summary is
// always set: it is the only field the timeline renders once answered.
type Response struct {
	Action   Action `json:"action,omitempty"`
	Summary  string `json:"summary"`
	Feedback string `json:"feedback,omitempty"`

	// clarify
	Answers map[int]ClarifyAnswer `json:"answers,omitempty"`

	// deep_understanding
	Problem string   `json:"problem,omitempty"`
	Goals   []string `json:"goals,omitempty"`

	// structure_fix
	AcceptSuggestions *bool  `json:"accept_suggestions,omitempty"`
	SkillName         string `json:"skill_name,omitempty"`
	Description       string `json:"description,omitempty"`
}

// ParseGoals splits a comma-separated list into trimmed, non-empty goals.
func ParseGoals(s string) []string {
	var goals []string
	for _, part := range strings.Split(s, ",") {
		if g := strings.TrimSpace(part); g != "" {
			goals = append(goals, g)
		}
	}
	return goals
}
