package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/eicr/core/observation"
)

const observationColumns = "id, inspection_id, item_id, item, code, description, recommendation, regulation, rectified, created_at, updated_at"

type observationRow struct {
	ID             string      `db:"id"`
	InspectionID   string      `db:"inspection_id"`
	ItemID         null.String `db:"item_id"`
	Item           string      `db:"item"`
	Code           string      `db:"code"`
	Description    string      `db:"description"`
	Recommendation string      `db:"recommendation"`
	Regulation     string      `db:"regulation"`
	Rectified      bool        `db:"rectified"`
	CreatedAt      time.Time   `db:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at"`
}

type observationRepository struct {
	db *sqlx.DB
}

var _ observation.Repository = (*observationRepository)(nil) // interface compliance check

func NewObservationRepository(db *sqlx.DB) *observationRepository {
	return &observationRepository{db: db}
}

func (repo observationRepository) toRow(obs observation.Observation) observationRow {
	return observationRow{
		ID:             obs.ID,
		InspectionID:   obs.InspectionID,
		ItemID:         null.NewString(obs.ItemID, obs.ItemID != ""),
		Item:           obs.Item,
		Code:           string(obs.Code),
		Description:    obs.Description,
		Recommendation: obs.Recommendation,
		Regulation:     obs.Regulation,
		Rectified:      obs.Rectified,
		CreatedAt:      dbTime(obs.CreatedAt),
		UpdatedAt:      dbTime(obs.UpdatedAt),
	}
}

func (repo observationRepository) fromRow(row observationRow) observation.Observation {
	return observation.Observation{
		ID:             row.ID,
		InspectionID:   row.InspectionID,
		ItemID:         row.ItemID.String,
		Item:           row.Item,
		Code:           observation.Code(row.Code),
		Description:    row.Description,
		Recommendation: row.Recommendation,
		Regulation:     row.Regulation,
		Rectified:      row.Rectified,
		CreatedAt:      row.CreatedAt.UTC(),
		UpdatedAt:      row.UpdatedAt.UTC(),
	}
}

// trapNoRowsErr maps "no rows" err to observation.ErrNotFound
func (repo observationRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return observation.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo observationRepository) CreateObservation(ctx context.Context, obs observation.Observation) (observation.Observation, error) {
	if obs.ID == "" {
		obs.ID = uuid.NewString()
	}
	row := repo.toRow(obs)
	q := `INSERT INTO observations (` + observationColumns + `)
		VALUES (:id, :inspection_id, :item_id, :item, :code, :description, :recommendation, :regulation, :rectified,
			:created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return observation.Observation{}, errors.Wrap(err, "inserting observation")
	}
	return repo.fromRow(row), nil
}

func (repo observationRepository) QueryObservations(ctx context.Context, filter observation.QueryFilter) ([]observation.Observation, error) {
	var (
		conds []string
		args  []interface{}
	)

	if filter.InspectionID != "" {
		conds = append(conds, "inspection_id = ?")
		args = append(args, filter.InspectionID)
	}
	if filter.ItemID != "" {
		conds = append(conds, "item_id = ?")
		args = append(args, filter.ItemID)
	}
	if filter.Code != "" {
		conds = append(conds, "code = ?")
		args = append(args, filter.Code)
	}
	if filter.Rectified != nil {
		conds = append(conds, "rectified = ?")
		args = append(args, *filter.Rectified)
	}

	q := "SELECT " + observationColumns + " FROM observations" + where(conds) + " ORDER BY created_at, id"
	var rows []observationRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying observations")
	}
	observations := make([]observation.Observation, 0, len(rows))
	for _, row := range rows {
		observations = append(observations, repo.fromRow(row))
	}
	return observations, nil
}

func (repo observationRepository) GetObservation(ctx context.Context, id string) (observation.Observation, error) {
	if _, err := uuid.Parse(id); err != nil {
		return observation.Observation{}, observation.ErrNotFound
	}
	var row observationRow
	q := "SELECT " + observationColumns + " FROM observations WHERE id = ?"
	if err := repo.db.GetContext(ctx, &row, repo.db.Rebind(q), id); err != nil {
		return observation.Observation{}, repo.trapNoRowsErr(err, "finding observation")
	}
	return repo.fromRow(row), nil
}

func (repo observationRepository) UpdateObservation(ctx context.Context, obs observation.Observation) (observation.Observation, error) {
	row := repo.toRow(obs)
	q := `UPDATE observations SET item_id = :item_id, item = :item, code = :code, description = :description,
		recommendation = :recommendation, regulation = :regulation, rectified = :rectified, updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, row)
	if err != nil {
		return observation.Observation{}, errors.Wrap(err, "updating observation")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return observation.Observation{}, observation.ErrNotFound
	}
	return repo.GetObservation(ctx, obs.ID)
}

func (repo observationRepository) DeleteObservationsByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In("DELETE FROM observations WHERE id IN (?)", ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "deleting observations")
	}
	return nil
}
