package inspection

import "github.com/pkg/errors"

// Outcome is the assessed result of one checklist item.
type Outcome string

const (
	OutcomeUnset         Outcome = ""
	OutcomeSatisfactory  Outcome = "satisfactory"
	OutcomeC1            Outcome = "C1" // danger present
	OutcomeC2            Outcome = "C2" // potentially dangerous
	OutcomeC3            Outcome = "C3" // improvement recommended
	OutcomeNotApplicable Outcome = "not-applicable"
	OutcomeNotVerified   Outcome = "not-verified"
	OutcomeLimitation    Outcome = "limitation"
)

// Outcomes lists every assessed outcome, OutcomeUnset excluded.
var Outcomes = []Outcome{
	OutcomeSatisfactory,
	OutcomeC1,
	OutcomeC2,
	OutcomeC3,
	OutcomeNotApplicable,
	OutcomeNotVerified,
	OutcomeLimitation,
}

var ErrInvalidOutcome = errors.New("invalid outcome")

// ParseOutcome returns the Outcome matching s; the empty string is OutcomeUnset.
func ParseOutcome(s string) (Outcome, error) {
	o := Outcome(s)
	if !o.Valid() {
		return OutcomeUnset, errors.Wrapf(ErrInvalidOutcome, "%q", s)
	}
	return o, nil
}

func (o Outcome) Valid() bool {
	if o == OutcomeUnset {
		return true
	}
	for _, known := range Outcomes {
		if o == known {
			return true
		}
	}
	return false
}

func (o Outcome) IsSet() bool { return o != OutcomeUnset }

// IsCritical reports whether o classifies a defect (C1, C2 or C3).
func (o Outcome) IsCritical() bool {
	return o == OutcomeC1 || o == OutcomeC2 || o == OutcomeC3
}

// Inspected reports whether an item with this outcome counts as inspected:
// any assessed outcome except not-applicable.
func (o Outcome) Inspected() bool {
	return o != OutcomeUnset && o != OutcomeNotApplicable
}

// BulkAction replaces the outcome of every item in a section.
type BulkAction string

const (
	BulkMarkSatisfactory  BulkAction = "mark-satisfactory"
	BulkMarkNotApplicable BulkAction = "mark-not-applicable"
	BulkClear             BulkAction = "clear"
)

var BulkActions = []BulkAction{BulkMarkSatisfactory, BulkMarkNotApplicable, BulkClear}

// Outcome returns the outcome the action sets. ok is false for unknown actions.
func (a BulkAction) Outcome() (o Outcome, ok bool) {
	switch a {
	case BulkMarkSatisfactory:
		return OutcomeSatisfactory, true
	case BulkMarkNotApplicable:
		return OutcomeNotApplicable, true
	case BulkClear:
		return OutcomeUnset, true
	default:
		return OutcomeUnset, false
	}
}

// Assessment is the overall condition of an installation.
type Assessment string

const (
	AssessmentPending        Assessment = ""
	AssessmentSatisfactory   Assessment = "satisfactory"
	AssessmentUnsatisfactory Assessment = "unsatisfactory"
)
