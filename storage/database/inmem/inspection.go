package inmemdb

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/eicr/core"
	"github.com/trezcool/eicr/core/inspection"
)

type inspectionRepository struct {
	db *inspectionTable
}

var _ inspection.Repository = (*inspectionRepository)(nil) // interface compliance check

func NewInspectionRepository(db *DB) *inspectionRepository {
	return &inspectionRepository{db: db.inspection}
}

func copyInspection(insp inspection.Inspection, withRecords bool) inspection.Inspection {
	if withRecords {
		insp.Records = insp.Records.Clone()
	} else {
		insp.Records = nil
	}
	return insp
}

func (repo *inspectionRepository) CreateInspection(_ context.Context, insp inspection.Inspection) (inspection.Inspection, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if insp.ID == "" {
		insp.ID = uuid.NewString()
	}
	stored := copyInspection(insp, true)
	repo.db.table[insp.ID] = &stored
	return copyInspection(stored, true), nil
}

func (repo *inspectionRepository) QueryInspections(_ context.Context, filter inspection.QueryFilter, ordering ...core.DBOrdering) ([]inspection.Inspection, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	insps := make([]inspection.Inspection, 0)
	for _, stored := range repo.db.table {
		insp := copyInspection(*stored, false)
		if filter.Search != "" &&
			!containsFold(insp.Reference, filter.Search) &&
			!containsFold(insp.ClientName, filter.Search) &&
			!containsFold(insp.Address, filter.Search) {
			continue
		}
		if filter.InspectorID != "" && insp.InspectorID != filter.InspectorID {
			continue
		}
		if filter.Completed != nil && insp.IsCompleted() != *filter.Completed {
			continue
		}
		insps = append(insps, insp)
	}

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	sortByOrdering(len(insps), func(i, j int) { insps[i], insps[j] = insps[j], insps[i] }, ordering, func(col string) compareFunc {
		switch col {
		case "reference":
			return func(i, j int) int { return compareStrings(insps[i].Reference, insps[j].Reference) }
		case "client_name":
			return func(i, j int) int { return compareStrings(insps[i].ClientName, insps[j].ClientName) }
		case "created_at":
			return func(i, j int) int { return compareTimes(insps[i].CreatedAt, insps[j].CreatedAt) }
		case "updated_at":
			return func(i, j int) int { return compareTimes(insps[i].UpdatedAt, insps[j].UpdatedAt) }
		case "completed_at":
			return func(i, j int) int { return compareTimes(insps[i].CompletedAt, insps[j].CompletedAt) }
		}
		return nil
	})
	return insps, nil
}

func (repo *inspectionRepository) GetInspection(_ context.Context, id string) (inspection.Inspection, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if insp, ok := repo.db.table[id]; ok {
		return copyInspection(*insp, true), nil
	}
	return inspection.Inspection{}, inspection.ErrNotFound
}

func (repo *inspectionRepository) SaveRecords(_ context.Context, id string, records inspection.Records, updatedAt time.Time) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	insp, ok := repo.db.table[id]
	if !ok {
		return inspection.ErrNotFound
	}
	insp.Records = records.Clone()
	insp.UpdatedAt = updatedAt
	return nil
}

func (repo *inspectionRepository) UpdateInspection(_ context.Context, insp inspection.Inspection) (inspection.Inspection, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.table[insp.ID]
	if !ok {
		return inspection.Inspection{}, inspection.ErrNotFound
	}
	stored := copyInspection(insp, false)
	stored.Records = orig.Records
	repo.db.table[insp.ID] = &stored
	return copyInspection(stored, true), nil
}

func (repo *inspectionRepository) DeleteInspectionsByID(_ context.Context, ids ...string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}
