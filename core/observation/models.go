package observation

import (
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/eicr/core"
	"github.com/trezcool/eicr/core/checklist"
	"github.com/trezcool/eicr/core/inspection"
)

// Code classifies an observation.
type Code string

const (
	CodeC1 Code = "C1" // danger present, immediate remedial action required
	CodeC2 Code = "C2" // potentially dangerous, urgent remedial action required
	CodeC3 Code = "C3" // improvement recommended
	CodeFI Code = "FI" // further investigation required without delay
)

var Codes = []Code{CodeC1, CodeC2, CodeC3, CodeFI}

func (c Code) Valid() bool {
	for _, known := range Codes {
		if c == known {
			return true
		}
	}
	return false
}

// Observation describes a defect found during an inspection.
type Observation struct {
	ID             string    `json:"id"`
	InspectionID   string    `json:"inspection_id"`
	ItemID         string    `json:"item_id"` // empty for observations not tied to a checklist item
	Item           string    `json:"item"`
	Code           Code      `json:"code"`
	Description    string    `json:"description"`
	Recommendation string    `json:"recommendation"`
	Regulation     string    `json:"regulation"`
	Rectified      bool      `json:"rectified"`
	CreatedAt      time.Time `json:"created_at"` // UTC
	UpdatedAt      time.Time `json:"updated_at"` // UTC
}

// FromRecord seeds an observation from a critical checklist record.
func FromRecord(inspectionID string, r inspection.Record, def checklist.ItemDefinition) Observation {
	return Observation{
		InspectionID: inspectionID,
		ItemID:       r.ID,
		Item:         def.Item,
		Code:         Code(r.Outcome),
		Description:  r.Notes,
		Regulation:   def.Clause,
	}
}

// NewObservation contains information needed to record an observation manually.
type NewObservation struct {
	ItemID         string `json:"item_id"`
	Item           string `json:"item"`
	Code           string `json:"code" validate:"required,obscode"`
	Description    string `json:"description" validate:"required,notblank"`
	Recommendation string `json:"recommendation"`
	Regulation     string `json:"regulation" validate:"max=64"`
}

func (no *NewObservation) Validate(validate *validator.Validate) error {
	no.ItemID = core.CleanString(no.ItemID)
	no.Item = core.CleanString(no.Item)
	no.Code = core.CleanString(no.Code)
	no.Description = core.CleanString(no.Description)
	no.Recommendation = core.CleanString(no.Recommendation)
	no.Regulation = core.CleanString(no.Regulation)
	return validate.Struct(no)
}

// UpdateObservation defines what may be changed on an Observation. Empty fields are left untouched.
type UpdateObservation struct {
	Code           string `json:"code" validate:"omitempty,obscode"`
	Description    string `json:"description"`
	Recommendation string `json:"recommendation"`
	Regulation     string `json:"regulation" validate:"max=64"`
	Rectified      *bool  `json:"rectified"`
}

func (uo *UpdateObservation) Validate(validate *validator.Validate) error {
	uo.Code = core.CleanString(uo.Code)
	uo.Description = core.CleanString(uo.Description)
	uo.Recommendation = core.CleanString(uo.Recommendation)
	uo.Regulation = core.CleanString(uo.Regulation)
	return validate.Struct(uo)
}

type QueryFilter struct {
	InspectionID string `query:"-"`
	ItemID       string `query:"item"`
	Code         string `query:"code"`
	Rectified    *bool  `query:"rectified"`
}

func (qf *QueryFilter) Clean() {
	qf.ItemID = core.CleanString(qf.ItemID)
	qf.Code = core.CleanString(qf.Code)
}

var (
	obsCodeTag  = "obscode"
	obsCodeText = "code must be one of C1, C2, C3 or FI"
)

// InitValidators registers the observation validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(obsCodeTag, obsCodeValidation)
	core.RegisterCustomTranslation(validate, translator, obsCodeTag, obsCodeText)
}

func obsCodeValidation(fl validator.FieldLevel) bool {
	return Code(fl.Field().String()).Valid()
}
