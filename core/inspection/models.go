package inspection

import (
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/eicr/core"
)

// Inspection is one EICR inspection of an installation.
type Inspection struct {
	ID                string     `json:"id"`
	Reference         string     `json:"reference"`
	ClientName        string     `json:"client_name"`
	Address           string     `json:"address"`
	InspectorID       string     `json:"inspector_id"`
	CatalogueVersion  string     `json:"catalogue_version"`
	Records           Records    `json:"records,omitempty"`
	OverallAssessment Assessment `json:"overall_assessment"`
	CreatedAt         time.Time  `json:"created_at"`   // UTC
	UpdatedAt         time.Time  `json:"updated_at"`   // UTC
	CompletedAt       time.Time  `json:"completed_at"` // UTC
}

func (insp *Inspection) IsCompleted() bool {
	return !insp.CompletedAt.IsZero()
}

// NewInspection contains information needed to create a new Inspection.
type NewInspection struct {
	Reference  string `json:"reference" validate:"required,max=64"`
	ClientName string `json:"client_name" validate:"max=255"`
	Address    string `json:"address" validate:"required,notblank"`
}

func (ni *NewInspection) Validate(validate *validator.Validate) error {
	ni.Reference = core.CleanString(ni.Reference)
	ni.ClientName = core.CleanString(ni.ClientName)
	ni.Address = core.CleanString(ni.Address)
	return validate.Struct(ni)
}

// OutcomeChange is the payload of an outcome change; an empty outcome clears the item.
type OutcomeChange struct {
	Outcome string `json:"outcome" validate:"outcome"`
}

func (oc *OutcomeChange) Validate(validate *validator.Validate) error {
	oc.Outcome = core.CleanString(oc.Outcome)
	return validate.Struct(oc)
}

type NotesChange struct {
	Notes string `json:"notes" validate:"max=2000"`
}

func (nc *NotesChange) Validate(validate *validator.Validate) error {
	return validate.Struct(nc)
}

type SectionAction struct {
	Action string `json:"action" validate:"required,bulkaction"`
}

func (sa *SectionAction) Validate(validate *validator.Validate) error {
	sa.Action = core.CleanString(sa.Action, true /* lower */)
	return validate.Struct(sa)
}

// Completion closes an inspection. An empty assessment uses the suggested one.
type Completion struct {
	Assessment string `json:"assessment" validate:"omitempty,assessment"`
}

func (c *Completion) Validate(validate *validator.Validate) error {
	c.Assessment = core.CleanString(c.Assessment, true /* lower */)
	return validate.Struct(c)
}

type QueryFilter struct {
	Search      string `query:"search"`
	InspectorID string `query:"inspector"`
	Completed   *bool  `query:"completed"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.InspectorID == "" && qf.Completed == nil
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.InspectorID = core.CleanString(qf.InspectorID)
}

// OrderingFields maps the `ordering` query fields to their columns.
var OrderingFields = map[string]string{
	"reference":    "reference",
	"client_name":  "client_name",
	"created_at":   "created_at",
	"updated_at":   "updated_at",
	"completed_at": "completed_at",
}

var (
	outcomeTag  = "outcome"
	outcomeText = "invalid outcome"

	bulkActionTag  = "bulkaction"
	bulkActionText = "invalid action"

	assessmentTag  = "assessment"
	assessmentText = "assessment must be satisfactory or unsatisfactory"
)

// InitValidators registers the inspection validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(outcomeTag, outcomeValidation)
	core.RegisterCustomTranslation(validate, translator, outcomeTag, outcomeText)

	_ = validate.RegisterValidation(bulkActionTag, bulkActionValidation)
	core.RegisterCustomTranslation(validate, translator, bulkActionTag, bulkActionText)

	_ = validate.RegisterValidation(assessmentTag, assessmentValidation)
	core.RegisterCustomTranslation(validate, translator, assessmentTag, assessmentText)
}

func outcomeValidation(fl validator.FieldLevel) bool {
	return Outcome(fl.Field().String()).Valid()
}

func bulkActionValidation(fl validator.FieldLevel) bool {
	_, ok := BulkAction(fl.Field().String()).Outcome()
	return ok
}

func assessmentValidation(fl validator.FieldLevel) bool {
	a := Assessment(fl.Field().String())
	return a == AssessmentSatisfactory || a == AssessmentUnsatisfactory
}
