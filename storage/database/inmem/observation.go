package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/eicr/core/observation"
)

type observationRepository struct {
	db *observationTable
}

var _ observation.Repository = (*observationRepository)(nil) // interface compliance check

func NewObservationRepository(db *DB) *observationRepository {
	return &observationRepository{db: db.observation}
}

func (repo *observationRepository) CreateObservation(_ context.Context, obs observation.Observation) (observation.Observation, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if obs.ID == "" {
		obs.ID = uuid.NewString()
	}
	stored := obs
	repo.db.table[obs.ID] = &stored
	return obs, nil
}

func (repo *observationRepository) QueryObservations(_ context.Context, filter observation.QueryFilter) ([]observation.Observation, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	observations := make([]observation.Observation, 0)
	for _, obs := range repo.db.table {
		if filter.InspectionID != "" && obs.InspectionID != filter.InspectionID {
			continue
		}
		if filter.ItemID != "" && obs.ItemID != filter.ItemID {
			continue
		}
		if filter.Code != "" && string(obs.Code) != filter.Code {
			continue
		}
		if filter.Rectified != nil && obs.Rectified != *filter.Rectified {
			continue
		}
		observations = append(observations, *obs)
	}

	sort.Slice(observations, func(i, j int) bool {
		if c := compareTimes(observations[i].CreatedAt, observations[j].CreatedAt); c != 0 {
			return c < 0
		}
		return observations[i].ID < observations[j].ID
	})
	return observations, nil
}

func (repo *observationRepository) GetObservation(_ context.Context, id string) (observation.Observation, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if obs, ok := repo.db.table[id]; ok {
		return *obs, nil
	}
	return observation.Observation{}, observation.ErrNotFound
}

func (repo *observationRepository) UpdateObservation(_ context.Context, obs observation.Observation) (observation.Observation, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[obs.ID]; !ok {
		return observation.Observation{}, observation.ErrNotFound
	}
	stored := obs
	repo.db.table[obs.ID] = &stored
	return obs, nil
}

func (repo *observationRepository) DeleteObservationsByID(_ context.Context, ids ...string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}
