package prompt

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/skillfleet/fleet/internal/hitl"
)

var abOptions = []hitl.Option{{ID: "a", Label: "A"}, {ID: "b", Label: "B"}}

func singleQuestion(text string) hitl.StructuredQuestion {
	return hitl.StructuredQuestion{Text: text, QuestionType: "single", Options: abOptions}
}

func TestClarifyTwoSingleQuestions(t *testing.T) {
	c := NewClarify([]hitl.StructuredQuestion{singleQuestion("Runtime?"), singleQuestion("Style?")})

	if c.Handle(ActionConfirm) != nil {
		t.Fatal("selecting an option must not submit")
	}
	if c.Index() != 1 {
		t.Fatalf("Index = %d, want auto-advance to 1", c.Index())
	}
	c.Handle(ActionDown)
	if c.Handle(ActionConfirm) != nil {
		t.Fatal("selecting on the last question must not submit")
	}
	if c.Region() != FocusSubmit {
		t.Fatalf("focus = %q, want submit", c.Region())
	}

	resp := c.Handle(ActionConfirm)
	if resp == nil {
		t.Fatal("submit returned nil")
	}
	want := "Q1: Runtime?\n- Selected: A\n\nQ2: Style?\n- Selected: B"
	if resp.Summary != want {
		t.Errorf("Summary = %q, want %q", resp.Summary, want)
	}
	if resp.Action != hitl.ActionProceed {
		t.Errorf("Action = %q, want proceed", resp.Action)
	}
	if got := resp.Answers[1].SelectedOptionIDs; len(got) != 1 || got[0] != "b" {
		t.Errorf("Answers[1] = %v, want [b]", got)
	}
	if !c.Done() || c.Handle(ActionConfirm) != nil {
		t.Error("engine accepted input after submission")
	}
}

func TestClarifySummaryBlocks(t *testing.T) {
	for n := 1; n <= 5; n++ {
		t.Run(fmt.Sprintf("%d questions", n), func(t *testing.T) {
			qs := make([]hitl.StructuredQuestion, n)
			for i := range qs {
				qs[i] = singleQuestion(fmt.Sprintf("question %d", i+1))
			}
			c := NewClarify(qs)
			for i := 0; i < n; i++ {
				c.Handle(ActionConfirm)
			}
			resp := c.Handle(ActionConfirm)
			if resp == nil {
				t.Fatal("no response")
			}

			blocks := strings.Split(resp.Summary, "\n\n")
			if len(blocks) != n {
				t.Fatalf("blocks = %d, want %d", len(blocks), n)
			}
			for i, b := range blocks {
				if !strings.HasPrefix(b, fmt.Sprintf("Q%d: ", i+1)) {
					t.Errorf("block %d = %q", i, b)
				}
			}
		})
	}
}

func TestClarifyBackKeepsAnswers(t *testing.T) {
	c := NewClarify([]hitl.StructuredQuestion{singleQuestion("one"), singleQuestion("two")})
	c.Handle(ActionDown)
	c.Handle(ActionConfirm)

	c.Handle(ActionBack)
	if c.Index() != 0 {
		t.Fatalf("Index = %d, want 0", c.Index())
	}
	if a, ok := c.Answer(0); !ok || !a.Has("b") {
		t.Errorf("answer 0 lost after back: %+v", a)
	}
	if c.Cursor() != 1 {
		t.Errorf("Cursor = %d, want cursor on the recorded option", c.Cursor())
	}

	c.Handle(ActionBack)
	if c.Index() != 0 {
		t.Errorf("Index = %d, back must floor at 0", c.Index())
	}
}

func TestClarifyMultiToggle(t *testing.T) {
	q := hitl.StructuredQuestion{Text: "Pick", Options: []hitl.Option{{ID: "x", Label: "X"}, {ID: "y", Label: "Y"}}, AllowsMultiple: true}
	c := NewClarify([]hitl.StructuredQuestion{q})

	c.Handle(ActionConfirm)
	c.Handle(ActionDown)
	c.Handle(ActionConfirm)
	c.Handle(ActionUp)
	c.Handle(ActionConfirm)

	if c.Index() != 0 || c.Region() != FocusOptions {
		t.Fatalf("multi select must not advance: index %d focus %q", c.Index(), c.Region())
	}
	a, _ := c.Answer(0)
	if len(a.SelectedOptionIDs) != 1 || a.SelectedOptionIDs[0] != "y" {
		t.Fatalf("selection = %v, want [y]", a.SelectedOptionIDs)
	}

	c.Handle(ActionNext)
	resp := c.Handle(ActionConfirm)
	if resp == nil || resp.Summary != "Q1: Pick\n- Selected: Y" {
		t.Errorf("response = %+v", resp)
	}
}

func TestClarifySubmitBlockedWithoutAnswer(t *testing.T) {
	c := NewClarify([]hitl.StructuredQuestion{singleQuestion("one")})
	c.Handle(ActionNext)
	if c.Region() != FocusSubmit {
		t.Fatalf("focus = %q, want submit", c.Region())
	}
	if c.Handle(ActionConfirm) != nil {
		t.Error("submitted an unanswered question")
	}
}

func TestClarifyFreeText(t *testing.T) {
	c := NewClarify([]hitl.StructuredQuestion{{Text: "Why?"}})
	if c.Region() != FocusFreeText || !c.Editing() {
		t.Fatalf("focus = %q, want free_text", c.Region())
	}

	c.SetText("   ")
	if c.Handle(ActionConfirm) != nil || c.Region() != FocusFreeText {
		t.Fatal("blank free text was committed")
	}

	c.SetText(" because ")
	c.Handle(ActionConfirm)
	resp := c.Handle(ActionConfirm)
	if resp == nil {
		t.Fatal("no response")
	}
	if resp.Summary != "Q1: Why?\n- Answer: because" {
		t.Errorf("Summary = %q", resp.Summary)
	}
}

func TestClarifyOther(t *testing.T) {
	q := singleQuestion("Runtime?")
	q.AllowsOther = true
	c := NewClarify([]hitl.StructuredQuestion{q})

	c.Handle(ActionConfirm)
	c.Handle(ActionNext)
	if c.Region() != FocusOther {
		t.Fatalf("focus = %q, want other", c.Region())
	}
	c.SetText("Zig")
	c.Handle(ActionConfirm)

	a, _ := c.Answer(0)
	if a.OtherText != "Zig" || len(a.SelectedOptionIDs) != 0 {
		t.Errorf("answer = %+v, want other text replacing the single selection", a)
	}
	resp := c.Handle(ActionConfirm)
	if resp == nil || resp.Summary != "Q1: Runtime?\n- Other: Zig" {
		t.Errorf("response = %+v", resp)
	}
}

func TestClarifyFocusCycle(t *testing.T) {
	q := singleQuestion("q")
	q.AllowsOther = true
	c := NewClarify([]hitl.StructuredQuestion{q})

	want := []ClarifyFocus{FocusSubmit, FocusOther, FocusOptions, FocusSubmit}
	for i, f := range want {
		c.Handle(ActionNext)
		if c.Region() != f {
			t.Errorf("step %d: focus = %q, want %q", i, c.Region(), f)
		}
	}
}

func TestClarifyNoQuestions(t *testing.T) {
	c := NewClarify(nil)
	if !c.Empty() || c.Region() != FocusNone {
		t.Fatalf("focus = %q, want none", c.Region())
	}
	for _, a := range []Action{ActionConfirm, ActionNext, ActionBack, ActionUp, ActionDown, ActionConfirm} {
		if resp := c.Handle(a); resp != nil {
			t.Fatalf("Handle(%s) = %+v, want nil", a, resp)
		}
	}
	if c.Done() {
		t.Error("empty clarify prompt marked done")
	}
}

func TestDecisionProceedAndCancel(t *testing.T) {
	for _, kind := range []hitl.Kind{hitl.KindConfirm, hitl.KindTDDRed, hitl.KindTDDGreen} {
		t.Run(string(kind), func(t *testing.T) {
			d := NewDecision(kind)
			resp := d.Handle(ActionConfirm)
			if resp == nil || resp.Action != hitl.ActionProceed || resp.Feedback != "" || resp.Summary != "Proceed" {
				t.Errorf("proceed = %+v", resp)
			}

			d = NewDecision(kind)
			d.Handle(ActionDown)
			d.Handle(ActionDown)
			resp = d.Handle(ActionConfirm)
			if resp == nil || resp.Action != hitl.ActionCancel || resp.Summary == "" {
				t.Errorf("cancel = %+v", resp)
			}
		})
	}
}

func TestDecisionRevise(t *testing.T) {
	d := NewDecision(hitl.KindConfirm)
	d.Handle(ActionDown)
	if d.Handle(ActionConfirm) != nil {
		t.Fatal("revise submitted without feedback")
	}
	if d.Region() != FocusFeedback || !d.Editing() {
		t.Fatalf("focus = %q, want feedback", d.Region())
	}
	if d.Handle(ActionConfirm) != nil {
		t.Fatal("empty feedback submitted")
	}

	d.SetText("add error handling")
	resp := d.Handle(ActionConfirm)
	if resp == nil {
		t.Fatal("no response")
	}
	if resp.Action != hitl.ActionRevise || resp.Feedback != "add error handling" {
		t.Errorf("response = %+v", resp)
	}
	if resp.Summary != "Revise: add error handling" {
		t.Errorf("Summary = %q", resp.Summary)
	}
}

func TestDeepUnderstanding(t *testing.T) {
	d := NewDecision(hitl.KindDeepUnderstanding)
	d.Handle(ActionNext)
	d.SetText("builds are slow")
	d.Handle(ActionNext)
	d.SetText(" caching, , parallel tests ")
	d.Handle(ActionBack)

	resp := d.Handle(ActionConfirm)
	if resp == nil {
		t.Fatal("no response")
	}
	if resp.Problem != "builds are slow" {
		t.Errorf("Problem = %q", resp.Problem)
	}
	if len(resp.Goals) != 2 || resp.Goals[0] != "caching" || resp.Goals[1] != "parallel tests" {
		t.Errorf("Goals = %q", resp.Goals)
	}
	if !strings.HasPrefix(resp.Summary, "Proceed") || !strings.Contains(resp.Summary, "Goals: caching, parallel tests") {
		t.Errorf("Summary = %q", resp.Summary)
	}
}

func TestSkipPolicies(t *testing.T) {
	deep := NewDecision(hitl.KindDeepUnderstanding)
	refactor := NewDecision(hitl.KindTDDRefactor)
	for _, d := range []*Decision{deep, refactor} {
		for i := 0; i < 3; i++ {
			d.Handle(ActionDown)
		}
	}

	dr := deep.Handle(ActionConfirm)
	if dr == nil || dr.Action != hitl.ActionSkip || dr.Summary != "Skipped deep understanding" {
		t.Errorf("deep skip = %+v", dr)
	}
	rr := refactor.Handle(ActionConfirm)
	if rr == nil || rr.Action != hitl.ActionProceed || rr.Summary != "Skipped refactoring" {
		t.Errorf("refactor skip = %+v", rr)
	}

	if n := len(NewDecision(hitl.KindConfirm).Actions()); n != 3 {
		t.Errorf("confirm offers %d actions, want 3", n)
	}
}

func TestStructureFixAccept(t *testing.T) {
	s := NewStructureFix("my-skill", "does things")
	if s.Editing() {
		t.Fatal("editing while accepting suggestions")
	}
	s.Handle(ActionNext)
	if s.Region() != FocusSubmitFix {
		t.Fatalf("focus = %q, want submit (fields skipped)", s.Region())
	}
	resp := s.Handle(ActionConfirm)
	if resp == nil || resp.AcceptSuggestions == nil || !*resp.AcceptSuggestions {
		t.Fatalf("response = %+v", resp)
	}
	if resp.SkillName != "my-skill" || resp.Description != "does things" {
		t.Errorf("displayed values not included: %+v", resp)
	}
}

func TestStructureFixEdit(t *testing.T) {
	s := NewStructureFix("old", "old desc")
	s.Handle(ActionDown)
	if s.Accept() {
		t.Fatal("toggle did not decline suggestions")
	}
	s.Handle(ActionNext)
	if !s.Editing() || s.Text() != "old" {
		t.Fatalf("name field: editing %v text %q", s.Editing(), s.Text())
	}
	s.SetText("new-name")
	s.Handle(ActionConfirm)
	s.SetText("new desc")
	s.Handle(ActionConfirm)

	resp := s.Handle(ActionConfirm)
	if resp == nil {
		t.Fatal("no response")
	}
	if *resp.AcceptSuggestions || resp.SkillName != "new-name" || resp.Description != "new desc" {
		t.Errorf("response = %+v", resp)
	}
	if resp.Summary == "" {
		t.Error("empty summary")
	}
}

func TestNewDispatch(t *testing.T) {
	tests := []struct {
		p    hitl.Prompt
		want hitl.Kind
	}{
		{&hitl.ClarifyPrompt{}, hitl.KindClarify},
		{&hitl.ConfirmPrompt{}, hitl.KindConfirm},
		{&hitl.DeepUnderstandingPrompt{}, hitl.KindDeepUnderstanding},
		{&hitl.StructureFixPrompt{CurrentSkillName: "n"}, hitl.KindStructureFix},
		{&hitl.TDDRedPrompt{}, hitl.KindTDDRed},
		{&hitl.TDDGreenPrompt{}, hitl.KindTDDGreen},
		{&hitl.TDDRefactorPrompt{}, hitl.KindTDDRefactor},
	}
	for _, tt := range tests {
		e, err := New(tt.p)
		if err != nil {
			t.Fatalf("New(%T): %v", tt.p, err)
		}
		if e.Kind() != tt.want {
			t.Errorf("New(%T).Kind() = %q, want %q", tt.p, e.Kind(), tt.want)
		}
	}

	if _, err := New(nil); !errors.Is(err, hitl.ErrUnknownKind) {
		t.Errorf("New(nil) err = %v", err)
	}
}
