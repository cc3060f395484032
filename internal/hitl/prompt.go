// Package hitl defines the human-in-the-loop checkpoint model: the prompt
// kinds a job can raise, the questions they carry, and the normalized
// response submitted back to the job.
package hitl

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Kind discriminates which prompt variant a checkpoint carries.
type Kind string

const (
	KindClarify           Kind = "clarify"
	KindConfirm           Kind = "confirm"
	KindDeepUnderstanding Kind = "deep_understanding"
	KindStructureFix      Kind = "structure_fix"
	KindTDDRed            Kind = "tdd_red"
	KindTDDGreen          Kind = "tdd_green"
	KindTDDRefactor       Kind = "tdd_refactor"
)

// ErrUnknownKind is returned when a prompt carries a kind this client does not render.
var ErrUnknownKind = errors.New("unknown prompt kind")

// Prompt is the closed set of checkpoint variants. The unexported method
// keeps implementations inside this package.
type Prompt interface {
	Kind() Kind
	sanitize()
}

// ClarifyPrompt asks one or more structured questions.
type ClarifyPrompt struct {
	Questions []StructuredQuestion `json:"questions"`
}

// ConfirmDetails is shared by confirm and deep_understanding prompts.
type ConfirmDetails struct {
	Summary        string   `json:"summary,omitempty"`
	Question       string   `json:"question,omitempty"`
	Path           string   `json:"path,omitempty"`
	KeyAssumptions []string `json:"key_assumptions,omitempty"`
}

// Headline returns the summary, falling back to the question.
func (d ConfirmDetails) Headline() string {
	if d.Summary != "" {
		return d.Summary
	}
	return d.Question
}

// ConfirmPrompt asks the user to approve, revise or cancel a result.
type ConfirmPrompt struct {
	ConfirmDetails
}

// DeepUnderstandingPrompt is a confirm prompt that also collects the
// problem statement and goals.
type DeepUnderstandingPrompt struct {
	ConfirmDetails
}

// StructureFixPrompt reports structural problems with a skill and offers
// suggested replacements for its name and description.
type StructureFixPrompt struct {
	StructureIssues    []string `json:"structure_issues,omitempty"`
	StructureWarnings  []string `json:"structure_warnings,omitempty"`
	CurrentSkillName   string   `json:"current_skill_name,omitempty"`
	CurrentDescription string   `json:"current_description,omitempty"`
}

// TDDRedPrompt reviews failing-test requirements before implementation.
type TDDRedPrompt struct {
	TestRequirements           string   `json:"test_requirements"`
	AcceptanceCriteria         []string `json:"acceptance_criteria,omitempty"`
	ChecklistItems             []string `json:"checklist_items,omitempty"`
	RationalizationsIdentified []string `json:"rationalizations_identified,omitempty"`
}

// TDDGreenPrompt reviews the minimal implementation step.
type TDDGreenPrompt struct {
	FailingTest               string `json:"failing_test,omitempty"`
	TestLocation              string `json:"test_location,omitempty"`
	MinimalImplementationHint string `json:"minimal_implementation_hint,omitempty"`
}

// TDDRefactorPrompt reviews refactoring opportunities.
type TDDRefactorPrompt struct {
	RefactorOpportunities []string `json:"refactor_opportunities,omitempty"`
	CodeSmells            []string `json:"code_smells,omitempty"`
	CoverageReport        string   `json:"coverage_report,omitempty"`
}

func (*ClarifyPrompt) Kind() Kind           { return KindClarify }
func (*ConfirmPrompt) Kind() Kind           { return KindConfirm }
func (*DeepUnderstandingPrompt) Kind() Kind { return KindDeepUnderstanding }
func (*StructureFixPrompt) Kind() Kind      { return KindStructureFix }
func (*TDDRedPrompt) Kind() Kind            { return KindTDDRed }
func (*TDDGreenPrompt) Kind() Kind          { return KindTDDGreen }
func (*TDDRefactorPrompt) Kind() Kind       { return KindTDDRefactor }

func (p *ClarifyPrompt) sanitize() {
	for i := range p.Questions {
		p.Questions[i].sanitize()
	}
}

func (p *ConfirmPrompt) sanitize()           { p.ConfirmDetails.sanitize() }
func (p *DeepUnderstandingPrompt) sanitize() { p.ConfirmDetails.sanitize() }

func (d *ConfirmDetails) sanitize() {
	d.Summary = Sanitize(d.Summary)
	d.Question = Sanitize(d.Question)
	d.Path = Sanitize(d.Path)
	SanitizeAll(d.KeyAssumptions)
}

func (p *StructureFixPrompt) sanitize() {
	SanitizeAll(p.StructureIssues)
	SanitizeAll(p.StructureWarnings)
	p.CurrentSkillName = Sanitize(p.CurrentSkillName)
	p.CurrentDescription = Sanitize(p.CurrentDescription)
}

func (p *TDDRedPrompt) sanitize() {
	p.TestRequirements = Sanitize(p.TestRequirements)
	SanitizeAll(p.AcceptanceCriteria)
	SanitizeAll(p.ChecklistItems)
	SanitizeAll(p.RationalizationsIdentified)
}

func (p *TDDGreenPrompt) sanitize() {
	p.FailingTest = Sanitize(p.FailingTest)
	p.TestLocation = Sanitize(p.TestLocation)
	p.MinimalImplementationHint = Sanitize(p.MinimalImplementationHint)
}

func (p *TDDRefactorPrompt) sanitize() {
	SanitizeAll(p.RefactorOpportunities)
	SanitizeAll(p.CodeSmells)
	p.CoverageReport = Sanitize(p.CoverageReport)
}

// Envelope pairs a decoded prompt with the key used to tell checkpoints apart.
type Envelope struct {
	Key    string
	Prompt Prompt
}

// promptHeader carries the discriminator. Some servers send "type" instead of "kind".
type promptHeader struct {
	Kind         string `json:"kind"`
	Type         string `json:"type"`
	ID           string `json:"id"`
	CheckpointID string `json:"checkpoint_id"`
}

// DecodeError is returned by DecodePrompt for a prompt that cannot be
// rendered. Key still identifies the checkpoint so callers can report it
// once.
type DecodeError struct {
	Key  string
	Kind Kind
	Err  error
}

func (e *DecodeError) Error() string { return e.Err.Error() }

func (e *DecodeError) Unwrap() error { return e.Err }

// DecodePrompt parses a raw prompt object into its variant. Every text field
// is sanitized before the prompt is returned. Failures are *DecodeError.
func DecodePrompt(data []byte) (*Envelope, error) {
	var hdr promptHeader
	if err := json.Unmarshal(data, &hdr); err != nil {
		return nil, &DecodeError{
			Key: promptKey("malformed", promptHeader{}, data),
			Err: fmt.Errorf("parsing prompt header: %w", err),
		}
	}

	kind := Kind(strings.ToLower(strings.TrimSpace(hdr.Kind)))
	if kind == "" {
		kind = Kind(strings.ToLower(strings.TrimSpace(hdr.Type)))
	}
	key := promptKey(kind, hdr, data)

	var p Prompt
	switch kind {
	case KindClarify:
		p = &ClarifyPrompt{}
	case KindConfirm:
		p = &ConfirmPrompt{}
	case KindDeepUnderstanding:
		p = &DeepUnderstandingPrompt{}
	case KindStructureFix:
		p = &StructureFixPrompt{}
	case KindTDDRed:
		p = &TDDRedPrompt{}
	case KindTDDGreen:
		p = &TDDGreenPrompt{}
	case KindTDDRefactor:
		p = &TDDRefactorPrompt{}
	default:
		return nil, &DecodeError{Key: key, Kind: kind, Err: fmt.Errorf("%w: %q", ErrUnknownKind, kind)}
	}

	if err := json.Unmarshal(data, p); err != nil {
		return nil, &DecodeError{Key: key, Kind: kind, Err: fmt.Errorf("parsing %s prompt: %w", kind, err)}
	}
	p.sanitize()

	return &Envelope{Key: key, Prompt: p}, nil
}

// promptKey identifies a checkpoint by kind plus the server id when one is
// present, or a content hash otherwise.
func promptKey(kind Kind, hdr promptHeader, data []byte) string {
	id := hdr.ID
	if id == "" {
		id = hdr.CheckpointID
	}
	if id != "" {
		return string(kind) + ":" + id
	}
	sum := sha256.Sum256(data)
	return string(kind) + ":" + hex.EncodeToString(sum[:8])
}

// Title returns a short heading for a prompt, used for the timeline entry
// and the non-interactive status output.
func Title(p Prompt) string {
	switch p := p.(type) {
	case *ClarifyPrompt:
		n := len(p.Questions)
		if n == 1 {
			return "Clarification needed (1 question)"
		}
		return fmt.Sprintf("Clarification needed (%d questions)", n)
	case *ConfirmPrompt:
		return "Confirm: " + p.Headline()
	case *DeepUnderstandingPrompt:
		return "Check understanding: " + p.Headline()
	case *StructureFixPrompt:
		return "Structure fixes suggested"
	case *TDDRedPrompt:
		return "Review failing tests"
	case *TDDGreenPrompt:
		return "Review minimal implementation"
	case *TDDRefactorPrompt:
		return "Review refactoring"
	}
	return "Input needed"
}
