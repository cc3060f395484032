package prompt

import (
	"fmt"
	"strings"

	"github.com/skillfleet/fleet/internal/hitl"
)

// ClarifyFocus is the focused region of a clarify prompt.
type ClarifyFocus string

const (
	FocusOptions  ClarifyFocus = "options"
	FocusSubmit   ClarifyFocus = "submit"
	FocusOther    ClarifyFocus = "other"
	FocusFreeText ClarifyFocus = "free_text"
	FocusNone     ClarifyFocus = "none" // no questions to answer
)

// Clarify walks the user through the questions of a clarify prompt one at a
// time. Answers survive navigating back and forth.
type Clarify struct {
	questions []hitl.StructuredQuestion
	index     int
	answers   map[int]hitl.ClarifyAnswer
	focus     ClarifyFocus
	cursor    int
	draft     string
	done      bool
}

// NewClarify creates a clarify engine over questions.
func NewClarify(questions []hitl.StructuredQuestion) *Clarify {
	c := &Clarify{
		questions: questions,
		answers:   make(map[int]hitl.ClarifyAnswer),
	}
	if len(questions) == 0 {
		c.focus = FocusNone
		return c
	}
	c.enterQuestion(0)
	return c
}

func (c *Clarify) Kind() hitl.Kind { return hitl.KindClarify }
func (c *Clarify) Focus() string   { return string(c.focus) }
func (c *Clarify) Done() bool      { return c.done }

// Region returns the focus as its typed value.
func (c *Clarify) Region() ClarifyFocus { return c.focus }

// Empty reports whether the prompt has no questions. Such a prompt never
// submits; it waits for the job to withdraw or cancel it.
func (c *Clarify) Empty() bool { return len(c.questions) == 0 }

// Index returns the position of the current question.
func (c *Clarify) Index() int { return c.index }

// Len returns the number of questions.
func (c *Clarify) Len() int { return len(c.questions) }

// Question returns the current question.
func (c *Clarify) Question() (hitl.StructuredQuestion, bool) {
	if c.index < 0 || c.index >= len(c.questions) {
		return hitl.StructuredQuestion{}, false
	}
	return c.questions[c.index], true
}

// Cursor returns the highlighted option of the current question.
func (c *Clarify) Cursor() int { return c.cursor }

// Answer returns the recorded answer for question i.
func (c *Clarify) Answer(i int) (hitl.ClarifyAnswer, bool) {
	a, ok := c.answers[i]
	return a, ok
}

func (c *Clarify) Editing() bool {
	return c.focus == FocusOther || c.focus == FocusFreeText
}

func (c *Clarify) Text() string {
	if !c.Editing() {
		return ""
	}
	return c.draft
}

func (c *Clarify) SetText(s string) {
	if c.Editing() && !c.done {
		c.draft = s
	}
}

// Handle applies a to the current question.
func (c *Clarify) Handle(a Action) *hitl.Response {
	if c.done || len(c.questions) == 0 {
		return nil
	}

	switch a {
	case ActionNext:
		c.setFocus(c.nextFocus())
	case ActionBack:
		if c.index > 0 {
			c.enterQuestion(c.index - 1)
		}
	case ActionUp:
		if c.focus == FocusOptions && c.cursor > 0 {
			c.cursor--
		}
	case ActionDown:
		if q, _ := c.Question(); c.focus == FocusOptions && c.cursor < len(q.Options)-1 {
			c.cursor++
		}
	case ActionConfirm:
		return c.confirm()
	}
	return nil
}

func (c *Clarify) confirm() *hitl.Response {
	q := c.questions[c.index]

	switch c.focus {
	case FocusOptions:
		if c.cursor < 0 || c.cursor >= len(q.Options) {
			return nil
		}
		id := q.Options[c.cursor].ID
		if q.Mode() == hitl.ModeMulti {
			c.setAnswer(c.index, c.answers[c.index].Toggle(id))
			return nil
		}
		c.setAnswer(c.index, hitl.ClarifyAnswer{SelectedOptionIDs: []string{id}})
		c.advance()

	case FocusOther:
		text := strings.TrimSpace(c.draft)
		if text == "" {
			return nil
		}
		ans := hitl.ClarifyAnswer{OtherText: text}
		if q.Mode() == hitl.ModeMulti {
			ans.SelectedOptionIDs = c.answers[c.index].SelectedOptionIDs
		}
		c.setAnswer(c.index, ans)
		c.advance()

	case FocusFreeText:
		text := strings.TrimSpace(c.draft)
		if text == "" {
			return nil
		}
		c.setAnswer(c.index, hitl.ClarifyAnswer{FreeText: text})
		c.advance()

	case FocusSubmit:
		if _, ok := c.answers[c.index]; !ok {
			return nil
		}
		if c.index < len(c.questions)-1 {
			c.enterQuestion(c.index + 1)
			return nil
		}
		c.done = true
		return c.response()
	}
	return nil
}

// advance moves to the next question, or to submit on the last one.
func (c *Clarify) advance() {
	if c.index < len(c.questions)-1 {
		c.enterQuestion(c.index + 1)
		return
	}
	c.setFocus(FocusSubmit)
}

func (c *Clarify) setAnswer(i int, a hitl.ClarifyAnswer) {
	if a.Empty() {
		delete(c.answers, i)
		return
	}
	c.answers[i] = a
}

// enterQuestion makes question i current with its initial focus.
func (c *Clarify) enterQuestion(i int) {
	c.index = i
	c.cursor = 0
	q := c.questions[i]
	if a, ok := c.answers[i]; ok && len(a.SelectedOptionIDs) > 0 {
		for j, o := range q.Options {
			if o.ID == a.SelectedOptionIDs[0] {
				c.cursor = j
				break
			}
		}
	}
	if q.Mode() == hitl.ModeText {
		c.setFocus(FocusFreeText)
	} else {
		c.setFocus(FocusOptions)
	}
}

// setFocus changes focus and loads the draft of a text region.
func (c *Clarify) setFocus(f ClarifyFocus) {
	c.focus = f
	a := c.answers[c.index]
	switch f {
	case FocusOther:
		c.draft = a.OtherText
	case FocusFreeText:
		c.draft = a.FreeText
	default:
		c.draft = ""
	}
}

// nextFocus cycles options, submit, other and free text, skipping regions
// the current question does not have.
func (c *Clarify) nextFocus() ClarifyFocus {
	q := c.questions[c.index]
	mode := q.Mode()

	var cycle []ClarifyFocus
	if mode != hitl.ModeText {
		cycle = append(cycle, FocusOptions)
	}
	cycle = append(cycle, FocusSubmit)
	if q.AllowsOther && mode != hitl.ModeText {
		cycle = append(cycle, FocusOther)
	}
	if mode == hitl.ModeText {
		cycle = append(cycle, FocusFreeText)
	}

	for i, f := range cycle {
		if f == c.focus {
			return cycle[(i+1)%len(cycle)]
		}
	}
	return cycle[0]
}

func (c *Clarify) response() *hitl.Response {
	answers := make(map[int]hitl.ClarifyAnswer, len(c.answers))
	for i, a := range c.answers {
		answers[i] = a
	}
	return &hitl.Response{
		Action:  hitl.ActionProceed,
		Summary: c.Summary(),
		Answers: answers,
	}
}

// Summary renders every question with its answer, one block per question
// separated by blank lines.
func (c *Clarify) Summary() string {
	blocks := make([]string, 0, len(c.questions))
	for i, q := range c.questions {
		var b strings.Builder
		fmt.Fprintf(&b, "Q%d: %s", i+1, q.Text)

		a, ok := c.answers[i]
		if !ok {
			b.WriteString("\n- No answer")
			blocks = append(blocks, b.String())
			continue
		}
		for _, id := range a.SelectedOptionIDs {
			fmt.Fprintf(&b, "\n- Selected: %s", q.OptionLabel(id))
		}
		if a.OtherText != "" {
			fmt.Fprintf(&b, "\n- Other: %s", a.OtherText)
		}
		if a.FreeText != "" {
			fmt.Fprintf(&b, "\n- Answer: %s", a.FreeText)
		}
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n")
}
