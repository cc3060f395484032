package hitl

import "strings"

// Mode is how a question collects its answer.
type Mode string

const (
	ModeSingle Mode = "single"
	ModeMulti  Mode = "multi"
	ModeText   Mode = "text"
)

// Option is one selectable choice of a StructuredQuestion.
type Option struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// StructuredQuestion is a single question of a clarify prompt.
type StructuredQuestion struct {
	Text           string   `json:"text"`
	QuestionType   string   `json:"question_type,omitempty"`
	Options        []Option `json:"options,omitempty"`
	AllowsMultiple bool     `json:"allows_multiple,omitempty"`
	AllowsOther    bool     `json:"allows_other,omitempty"`
	Rationale      string   `json:"rationale,omitempty"`
}

// multiTypes are the question_type spellings that mean multi-select.
var multiTypes = map[string]bool{
	"multi":           true,
	"multiple_select": true,
	"multi_select":    true,
	"checkbox":        true,
}

// NormalizeQuestionType lowercases the type and folds dashes and spaces to underscores.
func NormalizeQuestionType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	return strings.NewReplacer("-", "_", " ", "_").Replace(t)
}

// Mode derives the answer mode. Questions without options are free text;
// allows_multiple or a multi alias makes the question multi-select.
func (q StructuredQuestion) Mode() Mode {
	if len(q.Options) == 0 {
		return ModeText
	}
	if q.AllowsMultiple || multiTypes[NormalizeQuestionType(q.QuestionType)] {
		return ModeMulti
	}
	return ModeSingle
}

// OptionLabel returns the label of the option with the given id, or the id
// itself when no option matches.
func (q StructuredQuestion) OptionLabel(id string) string {
	for _, o := range q.Options {
		if o.ID == id {
			return o.Label
		}
	}
	return id
}

func (q *StructuredQuestion) sanitize() {
	q.Text = Sanitize(q.Text)
	q.Rationale = Sanitize(q.Rationale)
	for i := range q.Options {
		q.Options[i].Label = Sanitize(q.Options[i].Label)
		q.Options[i].Description = Sanitize(q.Options[i].Description)
	}
}

// ClarifyAnswer is the recorded answer to one question. Unanswered questions
// have no entry in the answer map at all.
type ClarifyAnswer struct {
	SelectedOptionIDs []string `json:"selected_option_ids,omitempty"`
	OtherText         string   `json:"other_text,omitempty"`
	FreeText          string   `json:"free_text,omitempty"`
}

// Empty reports whether the answer carries nothing.
func (a ClarifyAnswer) Empty() bool {
	return len(a.SelectedOptionIDs) == 0 && a.OtherText == "" && a.FreeText == ""
}

// Has reports whether id is among the selected options.
func (a ClarifyAnswer) Has(id string) bool {
	for _, s := range a.SelectedOptionIDs {
		if s == id {
			return true
		}
	}
	return false
}

// Toggle adds id to the selection, or removes it when already selected.
// Order of first selection is preserved.
func (a ClarifyAnswer) Toggle(id string) ClarifyAnswer {
	out := make([]string, 0, len(a.SelectedOptionIDs)+1)
	found := false
	for _, s := range a.SelectedOptionIDs {
		if s == id {
			found = true
			continue
		}
		out = append(out, s)
	}
	if !found {
		out = append(out, id)
	}
	a.SelectedOptionIDs = out
	return a
}
