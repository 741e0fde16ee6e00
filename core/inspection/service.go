package inspection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/eicr/core"
	"github.com/trezcool/eicr/core/checklist"
)

var (
	// errors
	ErrNotFound        = errors.New("inspection not found")
	ErrItemNotFound    = errors.New("checklist item not found")
	ErrSectionNotFound = errors.New("checklist section not found")
	ErrCompleted       = errors.New("inspection is already completed")
	ErrNotApplied      = errors.New("change could not be applied")
)

type (
	Repository interface {
		CreateInspection(ctx context.Context, insp Inspection) (Inspection, error)
		// QueryInspections applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of reference, client name or address.
		// Records are not loaded.
		QueryInspections(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Inspection, error)
		GetInspection(ctx context.Context, id string) (Inspection, error)
		SaveRecords(ctx context.Context, id string, records Records, updatedAt time.Time) error
		// UpdateInspection saves everything but the records.
		UpdateInspection(ctx context.Context, insp Inspection) (Inspection, error)
		DeleteInspectionsByID(ctx context.Context, ids ...string) error
	}

	// ObservationRecorder is the part of the observation service inspections depend on.
	ObservationRecorder interface {
		RecordCritical(ctx context.Context, inspectionID string, r Record) error
		HasFurtherInvestigation(ctx context.Context, inspectionID string) (bool, error)
	}

	ServiceInterface interface {
		Catalogue() *checklist.Catalogue
		Create(ctx context.Context, ni NewInspection, inspectorID string) (Inspection, error)
		Get(ctx context.Context, id string) (Inspection, error)
		Query(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Inspection, error)
		Stats(ctx context.Context, id string) (Stats, error)
		SuggestedAssessment(ctx context.Context, id string) (Assessment, error)
		ChangeOutcome(ctx context.Context, id, itemID string, outcome Outcome) (Record, error)
		BulkAction(ctx context.Context, id, sectionID string, action BulkAction) (Records, error)
		UpdateNotes(ctx context.Context, id, itemID, notes string) (Record, error)
		ViewObservations(ctx context.Context, id, itemID string) (bool, error)
		Complete(ctx context.Context, id string, assessment Assessment) (Inspection, error)
		Delete(ctx context.Context, ids ...string) error
		Close()
	}

	// Service runs checklist edits against live inspection sessions.
	// Edits of one inspection are serialised; the last one to take the lock wins.
	Service struct {
		cat    *checklist.Catalogue
		repo   Repository
		obs    ObservationRecorder
		logger core.Logger
		conf   *core.Config

		notes *debouncer

		mu       sync.Mutex
		sessions map[string]*session
		closing  bool
	}

	session struct {
		mu    sync.Mutex
		insp  Inspection
		dirty bool // live notes not saved yet
	}
)

var _ ServiceInterface = (*Service)(nil)

// NewService returns an inspection Service. obs may be nil, in which case no observation is recorded.
func NewService(
	cat *checklist.Catalogue,
	repo Repository,
	obs ObservationRecorder,
	logger core.Logger,
	conf *core.Config,
) *Service {
	return &Service{
		cat:      cat,
		repo:     repo,
		obs:      obs,
		logger:   logger,
		conf:     conf,
		notes:    newDebouncer(conf.NotesDebounce),
		sessions: make(map[string]*session),
	}
}

func (svc *Service) Catalogue() *checklist.Catalogue { return svc.cat }

func (svc *Service) Create(ctx context.Context, ni NewInspection, inspectorID string) (Inspection, error) {
	now := time.Now().UTC()
	insp := Inspection{
		ID:               uuid.NewString(),
		Reference:        ni.Reference,
		ClientName:       ni.ClientName,
		Address:          ni.Address,
		InspectorID:      inspectorID,
		CatalogueVersion: svc.cat.Version(),
		Records:          NewRecords(svc.cat),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	return svc.repo.CreateInspection(ctx, insp)
}

// Get returns the inspection, from its live session if it has one.
func (svc *Service) Get(ctx context.Context, id string) (Inspection, error) {
	svc.mu.Lock()
	sess, ok := svc.sessions[id]
	svc.mu.Unlock()

	if ok {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		insp := sess.insp
		insp.Records = insp.Records.Clone()
		return insp, nil
	}
	insp, err := svc.repo.GetInspection(ctx, id)
	if err != nil {
		return Inspection{}, err
	}
	insp.Records = insp.Records.Normalized()
	return insp, nil
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Inspection, error) {
	return svc.repo.QueryInspections(ctx, filter, ordering...)
}

func (svc *Service) Stats(ctx context.Context, id string) (Stats, error) {
	insp, err := svc.Get(ctx, id)
	if err != nil {
		return Stats{}, err
	}
	return ComputeStats(svc.cat, insp.Records), nil
}

func (svc *Service) SuggestedAssessment(ctx context.Context, id string) (Assessment, error) {
	insp, err := svc.Get(ctx, id)
	if err != nil {
		return AssessmentPending, err
	}
	return svc.suggest(ctx, insp)
}

func (svc *Service) suggest(ctx context.Context, insp Inspection) (Assessment, error) {
	var fi bool
	if svc.obs != nil {
		var err error
		if fi, err = svc.obs.HasFurtherInvestigation(ctx, insp.ID); err != nil {
			return AssessmentPending, errors.Wrap(err, "checking further investigation observations")
		}
	}
	return SuggestAssessment(svc.cat, insp.Records, fi), nil
}

// ChangeOutcome toggles the outcome of one item and persists the records.
// C1, C2 and C3 outcomes record an observation for the item.
func (svc *Service) ChangeOutcome(ctx context.Context, id, itemID string, outcome Outcome) (Record, error) {
	if !outcome.Valid() {
		return Record{}, core.NewValidationError(nil, core.FieldError{Field: "outcome", Error: outcomeText})
	}
	var updated Record
	err := svc.edit(ctx, id, func(sess *session, editor func(Handlers) *Checklist, commitErr *error) error {
		handlers := svc.handlers(ctx, sess, commitErr)
		handlers.AutoCreateObservation = func(r Record) {
			if svc.obs == nil {
				return
			}
			if err := svc.obs.RecordCritical(ctx, id, r); err != nil {
				svc.logger.Error("inspection: recording observation", err, map[string]interface{}{"inspection": id, "item": r.ID})
			}
		}
		cl := editor(handlers)
		if !cl.ChangeOutcome(itemID, outcome) {
			return svc.notApplied(sess, itemID, *commitErr)
		}
		updated, _ = cl.records.Get(itemID)
		return nil
	})
	return updated, err
}

// BulkAction applies action to a whole section and persists the records.
func (svc *Service) BulkAction(ctx context.Context, id, sectionID string, action BulkAction) (Records, error) {
	if _, ok := action.Outcome(); !ok {
		return nil, core.NewValidationError(nil, core.FieldError{Field: "action", Error: bulkActionText})
	}
	var records Records
	err := svc.edit(ctx, id, func(sess *session, editor func(Handlers) *Checklist, commitErr *error) error {
		if _, ok := svc.cat.Section(sectionID); !ok {
			return errors.Wrapf(ErrSectionNotFound, "%q", sectionID)
		}
		cl := editor(svc.handlers(ctx, sess, commitErr))
		if !cl.BulkAction(sectionID, action) {
			if *commitErr != nil {
				return *commitErr
			}
			return ErrNotApplied
		}
		records = cl.Records()
		return nil
	})
	return records, err
}

// UpdateNotes sets the notes of one item. The live state changes immediately;
// persistence waits until no new edit came in for the configured debounce delay.
func (svc *Service) UpdateNotes(ctx context.Context, id, itemID, notes string) (Record, error) {
	var updated Record
	err := svc.edit(ctx, id, func(sess *session, editor func(Handlers) *Checklist, commitErr *error) error {
		cl := editor(svc.handlers(ctx, sess, commitErr))
		if !cl.SetNotes(itemID, notes) {
			return svc.notApplied(sess, itemID, *commitErr)
		}
		updated, _ = cl.records.Get(itemID)
		return nil
	})
	return updated, err
}

// ViewObservations reports whether the item has observations to navigate to.
func (svc *Service) ViewObservations(ctx context.Context, id, itemID string) (bool, error) {
	sess, err := svc.session(ctx, id)
	if err != nil {
		return false, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if _, ok := sess.insp.Records.Get(itemID); !ok {
		return false, errors.Wrapf(ErrItemNotFound, "%q", itemID)
	}
	var navigate bool
	cl := NewChecklist(svc.cat, sess.insp.Records, Handlers{NavigateToObservations: func() { navigate = true }}, svc.logger)
	cl.ViewObservations(itemID)
	return navigate, nil
}

// Complete closes the inspection with the given assessment, or the suggested one when empty.
func (svc *Service) Complete(ctx context.Context, id string, assessment Assessment) (Inspection, error) {
	sess, err := svc.session(ctx, id)
	if err != nil {
		return Inspection{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.insp.IsCompleted() {
		return Inspection{}, core.NewValidationError(ErrCompleted)
	}
	stats := ComputeStats(svc.cat, sess.insp.Records)
	if unset := stats.TotalItems - stats.CompletedItems; unset > 0 {
		return Inspection{}, core.NewValidationError(nil, core.FieldError{
			Field: "records",
			Error: fmt.Sprintf("%d item(s) have no outcome yet", unset),
		})
	}

	suggested, err := svc.suggest(ctx, sess.insp)
	if err != nil {
		return Inspection{}, err
	}
	switch {
	case assessment == AssessmentPending:
		assessment = suggested
	case assessment == AssessmentSatisfactory && suggested == AssessmentUnsatisfactory:
		return Inspection{}, core.NewValidationError(nil, core.FieldError{
			Field: "assessment",
			Error: "installation has C1, C2 or FI findings",
		})
	}

	now := time.Now().UTC()
	if err = svc.repo.SaveRecords(ctx, id, sess.insp.Records, now); err != nil {
		return Inspection{}, errors.Wrap(err, "saving records")
	}
	svc.notes.Cancel(id)
	sess.dirty = false

	insp := sess.insp
	insp.OverallAssessment = assessment
	insp.CompletedAt = now
	insp.UpdatedAt = now
	saved, err := svc.repo.UpdateInspection(ctx, insp)
	if err != nil {
		return Inspection{}, errors.Wrap(err, "updating inspection")
	}
	saved.Records = sess.insp.Records.Clone()
	sess.insp = saved

	// completed inspections are read-only: no need to keep them live
	svc.mu.Lock()
	delete(svc.sessions, id)
	svc.mu.Unlock()
	return saved, nil
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	svc.mu.Lock()
	for _, id := range ids {
		delete(svc.sessions, id)
		svc.notes.Cancel(id)
	}
	svc.mu.Unlock()
	return svc.repo.DeleteInspectionsByID(ctx, ids...)
}

// Close saves every pending note edit. Notes that still fail to save are logged.
func (svc *Service) Close() {
	svc.mu.Lock()
	svc.closing = true
	svc.mu.Unlock()

	svc.notes.Flush()

	svc.mu.Lock()
	sessions := make([]*session, 0, len(svc.sessions))
	for _, sess := range svc.sessions {
		sessions = append(sessions, sess)
	}
	svc.mu.Unlock()

	for _, sess := range sessions {
		sess.mu.Lock()
		if sess.dirty {
			svc.logger.Error("inspection: notes not saved", map[string]interface{}{"inspection": sess.insp.ID})
		}
		sess.mu.Unlock()
	}
}

// session returns the live session of the inspection, loading it on first use.
// Completed inspections are not kept live.
func (svc *Service) session(ctx context.Context, id string) (*session, error) {
	svc.mu.Lock()
	sess, ok := svc.sessions[id]
	svc.mu.Unlock()
	if ok {
		return sess, nil
	}

	insp, err := svc.repo.GetInspection(ctx, id)
	if err != nil {
		return nil, err
	}
	insp.Records = insp.Records.Normalized()
	if insp.IsCompleted() {
		return &session{insp: insp}, nil
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	if loaded, ok := svc.sessions[id]; ok { // loaded concurrently
		return loaded, nil
	}
	sess = &session{insp: insp}
	svc.sessions[id] = sess
	return sess, nil
}

type editFunc func(sess *session, editor func(Handlers) *Checklist, commitErr *error) error

// edit runs fn under the inspection's session lock.
func (svc *Service) edit(ctx context.Context, id string, fn editFunc) error {
	sess, err := svc.session(ctx, id)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.insp.IsCompleted() {
		return core.NewValidationError(ErrCompleted)
	}
	var commitErr error
	editor := func(h Handlers) *Checklist {
		return NewChecklist(svc.cat, sess.insp.Records, h, svc.logger)
	}
	return fn(sess, editor, &commitErr)
}

// handlers commit to the live session: whole collections are saved at once, note edits are debounced.
func (svc *Service) handlers(ctx context.Context, sess *session, commitErr *error) Handlers {
	id := sess.insp.ID
	return Handlers{
		UpdateItem: func(u Update) error {
			next, err := sess.insp.Records.Apply(u)
			if err != nil {
				*commitErr = err
				return err
			}
			now := time.Now().UTC()

			switch u.(type) {
			case BulkReplace:
				if err = svc.repo.SaveRecords(ctx, id, next, now); err != nil {
					*commitErr = errors.Wrap(err, "saving records")
					return *commitErr
				}
				// the full save included pending notes
				svc.notes.Cancel(id)
				sess.dirty = false
			case FieldUpdate:
				if svc.conf.NotesDebounce <= 0 {
					if err = svc.repo.SaveRecords(ctx, id, next, now); err != nil {
						*commitErr = errors.Wrap(err, "saving notes")
						return *commitErr
					}
					sess.dirty = false
				} else {
					sess.dirty = true
					svc.notes.Schedule(id, func() { svc.saveNotes(id) })
				}
			}
			sess.insp.Records = next
			sess.insp.UpdatedAt = now
			return nil
		},
	}
}

// saveNotes persists the live records of an inspection once its note edits settled.
// A failed save is retried after another debounce delay, until the service closes.
func (svc *Service) saveNotes(id string) {
	svc.mu.Lock()
	sess, ok := svc.sessions[id]
	closing := svc.closing
	svc.mu.Unlock()
	if !ok {
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if !sess.dirty {
		return
	}
	if err := svc.repo.SaveRecords(context.Background(), id, sess.insp.Records, sess.insp.UpdatedAt); err != nil {
		svc.logger.Error("inspection: saving notes", err, map[string]interface{}{"inspection": id})
		if !closing {
			svc.notes.Schedule(id, func() { svc.saveNotes(id) })
		}
		return
	}
	sess.dirty = false
}

func (svc *Service) notApplied(sess *session, itemID string, commitErr error) error {
	if commitErr != nil {
		return commitErr
	}
	if _, ok := sess.insp.Records.Get(itemID); !ok {
		return errors.Wrapf(ErrItemNotFound, "%q", itemID)
	}
	return ErrNotApplied
}
