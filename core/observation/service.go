package observation

import (
	"context"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/eicr/core"
	"github.com/trezcool/eicr/core/checklist"
	"github.com/trezcool/eicr/core/inspection"
	"github.com/trezcool/eicr/core/user"
)

var (
	// errors
	ErrNotFound     = errors.New("observation not found")
	ErrNotCritical  = errors.New("record outcome is not C1, C2 or C3")
	ErrUnknownItem  = errors.New("unknown checklist item")
	ErrNoRecipients = errors.New("no supervisor to alert")
)

type (
	Repository interface {
		CreateObservation(ctx context.Context, obs Observation) (Observation, error)
		// QueryObservations applies AND operation on available QueryFilter fields, oldest first.
		QueryObservations(ctx context.Context, filter QueryFilter) ([]Observation, error)
		GetObservation(ctx context.Context, id string) (Observation, error)
		UpdateObservation(ctx context.Context, obs Observation) (Observation, error)
		DeleteObservationsByID(ctx context.Context, ids ...string) error
	}

	// SupervisorLister lists the recipients of danger alerts.
	SupervisorLister interface {
		Supervisors(ctx context.Context) ([]user.User, error)
	}

	ServiceInterface interface {
		inspection.ObservationRecorder
		Create(ctx context.Context, inspectionID string, no NewObservation) (Observation, error)
		Query(ctx context.Context, filter QueryFilter) ([]Observation, error)
		Get(ctx context.Context, inspectionID, id string) (Observation, error)
		Update(ctx context.Context, obs Observation, uo UpdateObservation) (Observation, error)
		Delete(ctx context.Context, ids ...string) error
	}

	Service struct {
		cat     *checklist.Catalogue
		repo    Repository
		users   SupervisorLister
		mailSvc core.EmailService
		logger  core.Logger
		conf    *core.Config
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(
	cat *checklist.Catalogue,
	repo Repository,
	users SupervisorLister,
	mailSvc core.EmailService,
	logger core.Logger,
	conf *core.Config,
) *Service {
	return &Service{
		cat:     cat,
		repo:    repo,
		users:   users,
		mailSvc: mailSvc,
		logger:  logger,
		conf:    conf,
	}
}

// RecordCritical records the observation of a record moved to C1, C2 or C3.
// An item has at most one open observation: an existing one gets its code refreshed,
// and its description filled from the record notes when blank.
func (svc *Service) RecordCritical(ctx context.Context, inspectionID string, r inspection.Record) error {
	if !r.Outcome.IsCritical() {
		return errors.Wrapf(ErrNotCritical, "%q: %q", r.ID, r.Outcome)
	}
	def, ok := svc.cat.Item(r.ID)
	if !ok {
		return errors.Wrapf(ErrUnknownItem, "%q", r.ID)
	}

	open := false
	existing, err := svc.repo.QueryObservations(ctx, QueryFilter{InspectionID: inspectionID, ItemID: r.ID, Rectified: &open})
	if err != nil {
		return errors.Wrap(err, "querying item observations")
	}

	var obs Observation
	if len(existing) > 0 {
		obs = existing[0]
		prevCode, prevDesc := obs.Code, obs.Description
		obs.Code = Code(r.Outcome)
		if obs.Description == "" {
			obs.Description = r.Notes
		}
		if obs.Code == prevCode && obs.Description == prevDesc {
			return nil
		}
		obs.UpdatedAt = time.Now().UTC()
		if obs, err = svc.repo.UpdateObservation(ctx, obs); err != nil {
			return errors.Wrap(err, "updating observation")
		}
		if obs.Code == prevCode {
			return nil // no escalation to alert about
		}
	} else {
		now := time.Now().UTC()
		obs = FromRecord(inspectionID, r, def)
		obs.ID = uuid.NewString()
		obs.CreatedAt = now
		obs.UpdatedAt = now
		if obs, err = svc.repo.CreateObservation(ctx, obs); err != nil {
			return errors.Wrap(err, "creating observation")
		}
	}

	if obs.Code == CodeC1 {
		svc.alertSupervisors(ctx, obs)
	}
	return nil
}

// HasFurtherInvestigation reports whether the inspection has an open FI observation.
func (svc *Service) HasFurtherInvestigation(ctx context.Context, inspectionID string) (bool, error) {
	open := false
	obs, err := svc.repo.QueryObservations(ctx, QueryFilter{InspectionID: inspectionID, Code: string(CodeFI), Rectified: &open})
	if err != nil {
		return false, errors.Wrap(err, "querying FI observations")
	}
	return len(obs) > 0, nil
}

func (svc *Service) Create(ctx context.Context, inspectionID string, no NewObservation) (Observation, error) {
	if no.ItemID != "" {
		def, ok := svc.cat.Item(no.ItemID)
		if !ok {
			return Observation{}, core.NewValidationError(nil, core.FieldError{Field: "item_id", Error: ErrUnknownItem.Error()})
		}
		if no.Item == "" {
			no.Item = def.Item
		}
		if no.Regulation == "" {
			no.Regulation = def.Clause
		}
	}

	now := time.Now().UTC()
	obs, err := svc.repo.CreateObservation(ctx, Observation{
		ID:             uuid.NewString(),
		InspectionID:   inspectionID,
		ItemID:         no.ItemID,
		Item:           no.Item,
		Code:           Code(no.Code),
		Description:    no.Description,
		Recommendation: no.Recommendation,
		Regulation:     no.Regulation,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return Observation{}, errors.Wrap(err, "creating observation")
	}
	if obs.Code == CodeC1 {
		svc.alertSupervisors(ctx, obs)
	}
	return obs, nil
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Observation, error) {
	return svc.repo.QueryObservations(ctx, filter)
}

// Get returns the observation if it belongs to the inspection.
func (svc *Service) Get(ctx context.Context, inspectionID, id string) (Observation, error) {
	obs, err := svc.repo.GetObservation(ctx, id)
	if err != nil {
		return Observation{}, err
	}
	if obs.InspectionID != inspectionID {
		return Observation{}, ErrNotFound
	}
	return obs, nil
}

func (svc *Service) Update(ctx context.Context, obs Observation, uo UpdateObservation) (Observation, error) {
	prevCode := obs.Code
	if uo.Code != "" {
		obs.Code = Code(uo.Code)
	}
	if uo.Description != "" {
		obs.Description = uo.Description
	}
	if uo.Recommendation != "" {
		obs.Recommendation = uo.Recommendation
	}
	if uo.Regulation != "" {
		obs.Regulation = uo.Regulation
	}
	if uo.Rectified != nil {
		obs.Rectified = *uo.Rectified
	}
	obs.UpdatedAt = time.Now().UTC()

	obs, err := svc.repo.UpdateObservation(ctx, obs)
	if err != nil {
		return Observation{}, errors.Wrap(err, "updating observation")
	}
	if obs.Code == CodeC1 && prevCode != CodeC1 {
		svc.alertSupervisors(ctx, obs)
	}
	return obs, nil
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteObservationsByID(ctx, ids...)
}

// alertSupervisors mails the "danger present" alert. Failures are logged only.
func (svc *Service) alertSupervisors(ctx context.Context, obs Observation) {
	if !svc.conf.SupervisorAlerts || svc.users == nil || svc.mailSvc == nil {
		return
	}

	supervisors, err := svc.users.Supervisors(ctx)
	if err != nil {
		svc.logger.Error("observation: listing supervisors", err, map[string]interface{}{"observation": obs.ID})
		return
	}
	to := make([]mail.Address, 0, len(supervisors))
	for _, usr := range supervisors {
		if usr.Email != "" {
			to = append(to, mail.Address{Name: usr.Name, Address: usr.Email})
		}
	}
	if len(to) == 0 {
		svc.logger.Warn("observation: danger alert not sent", ErrNoRecipients, map[string]interface{}{"observation": obs.ID})
		return
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           to,
		Subject:      "C1 danger present: " + obs.Item,
		TemplateName: "danger_present",
		TemplateData: map[string]interface{}{
			"InspectionID": obs.InspectionID,
			"Item":         obs.Item,
			"Regulation":   obs.Regulation,
			"Description":  obs.Description,
		},
	})
}
