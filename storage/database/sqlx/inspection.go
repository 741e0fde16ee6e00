package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/eicr/core"
	"github.com/trezcool/eicr/core/inspection"
)

const inspectionColumns = "id, reference, client_name, address, inspector_id, catalogue_version, overall_assessment, created_at, updated_at, completed_at"

type inspectionRow struct {
	ID                string      `db:"id"`
	Reference         string      `db:"reference"`
	ClientName        string      `db:"client_name"`
	Address           string      `db:"address"`
	InspectorID       null.String `db:"inspector_id"`
	CatalogueVersion  string      `db:"catalogue_version"`
	OverallAssessment string      `db:"overall_assessment"`
	CreatedAt         time.Time   `db:"created_at"`
	UpdatedAt         time.Time   `db:"updated_at"`
	CompletedAt       null.Time   `db:"completed_at"`
}

type itemRow struct {
	InspectionID string      `db:"inspection_id"`
	Position     int         `db:"position"`
	ItemID       string      `db:"item_id"`
	SectionID    string      `db:"section_id"`
	Outcome      string      `db:"outcome"`
	Inspected    bool        `db:"inspected"`
	Notes        null.String `db:"notes"`
}

type inspectionRepository struct {
	db *sqlx.DB
}

var _ inspection.Repository = (*inspectionRepository)(nil) // interface compliance check

func NewInspectionRepository(db *sqlx.DB) *inspectionRepository {
	return &inspectionRepository{db: db}
}

func (repo inspectionRepository) toRow(insp inspection.Inspection) inspectionRow {
	return inspectionRow{
		ID:                insp.ID,
		Reference:         insp.Reference,
		ClientName:        insp.ClientName,
		Address:           insp.Address,
		InspectorID:       null.NewString(insp.InspectorID, insp.InspectorID != ""),
		CatalogueVersion:  insp.CatalogueVersion,
		OverallAssessment: string(insp.OverallAssessment),
		CreatedAt:         dbTime(insp.CreatedAt),
		UpdatedAt:         dbTime(insp.UpdatedAt),
		CompletedAt:       null.NewTime(dbTime(insp.CompletedAt), !insp.CompletedAt.IsZero()),
	}
}

func (repo inspectionRepository) fromRow(row inspectionRow) inspection.Inspection {
	return inspection.Inspection{
		ID:                row.ID,
		Reference:         row.Reference,
		ClientName:        row.ClientName,
		Address:           row.Address,
		InspectorID:       row.InspectorID.String,
		CatalogueVersion:  row.CatalogueVersion,
		OverallAssessment: inspection.Assessment(row.OverallAssessment),
		CreatedAt:         row.CreatedAt.UTC(),
		UpdatedAt:         row.UpdatedAt.UTC(),
		CompletedAt:       timeOrZero(row.CompletedAt),
	}
}

// Inspected is stored for reporting queries; it is always recomputed from the outcome on load.
func (repo inspectionRepository) fromItemRows(rows []itemRow) inspection.Records {
	records := make(inspection.Records, 0, len(rows))
	for _, row := range rows {
		records = append(records, inspection.NewRecord(row.ItemID, row.SectionID, inspection.Outcome(row.Outcome), row.Notes.String))
	}
	return records
}

// trapNoRowsErr maps "no rows" err to inspection.ErrNotFound
func (repo inspectionRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return inspection.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo inspectionRepository) CreateInspection(ctx context.Context, insp inspection.Inspection) (inspection.Inspection, error) {
	if insp.ID == "" {
		insp.ID = uuid.NewString()
	}
	row := repo.toRow(insp)

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return inspection.Inspection{}, errors.Wrap(err, "starting transaction")
	}
	defer func() { _ = tx.Rollback() }()

	q := `INSERT INTO inspections (` + inspectionColumns + `)
		VALUES (:id, :reference, :client_name, :address, :inspector_id, :catalogue_version, :overall_assessment,
			:created_at, :updated_at, :completed_at)`
	if _, err = tx.NamedExecContext(ctx, q, row); err != nil {
		return inspection.Inspection{}, errors.Wrap(err, "inserting inspection")
	}
	if err = repo.insertRecords(ctx, tx, insp.ID, insp.Records); err != nil {
		return inspection.Inspection{}, err
	}
	if err = tx.Commit(); err != nil {
		return inspection.Inspection{}, errors.Wrap(err, "committing inspection")
	}

	created := repo.fromRow(row)
	created.Records = insp.Records.Clone()
	return created, nil
}

func (repo inspectionRepository) QueryInspections(ctx context.Context, filter inspection.QueryFilter, ordering ...core.DBOrdering) ([]inspection.Inspection, error) {
	var (
		conds []string
		args  []interface{}
	)

	if filter.Search != "" {
		val := likeArg(filter.Search)
		conds = append(conds, "(LOWER(reference) LIKE ?"+likeEscape+" OR LOWER(client_name) LIKE ?"+likeEscape+" OR LOWER(address) LIKE ?"+likeEscape+")")
		args = append(args, val, val, val)
	}
	if filter.InspectorID != "" {
		conds = append(conds, "inspector_id = ?")
		args = append(args, filter.InspectorID)
	}
	if filter.Completed != nil {
		if *filter.Completed {
			conds = append(conds, "completed_at IS NOT NULL")
		} else {
			conds = append(conds, "completed_at IS NULL")
		}
	}

	q := "SELECT " + inspectionColumns + " FROM inspections" + where(conds) + orderBy(ordering, "created_at DESC")
	var rows []inspectionRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying inspections")
	}
	insps := make([]inspection.Inspection, 0, len(rows))
	for _, row := range rows {
		insps = append(insps, repo.fromRow(row))
	}
	return insps, nil
}

func (repo inspectionRepository) GetInspection(ctx context.Context, id string) (inspection.Inspection, error) {
	if _, err := uuid.Parse(id); err != nil {
		return inspection.Inspection{}, inspection.ErrNotFound
	}

	var row inspectionRow
	q := "SELECT " + inspectionColumns + " FROM inspections WHERE id = ?"
	if err := repo.db.GetContext(ctx, &row, repo.db.Rebind(q), id); err != nil {
		return inspection.Inspection{}, repo.trapNoRowsErr(err, "finding inspection")
	}

	var items []itemRow
	q = "SELECT inspection_id, position, item_id, section_id, outcome, inspected, notes FROM inspection_items WHERE inspection_id = ? ORDER BY position"
	if err := repo.db.SelectContext(ctx, &items, repo.db.Rebind(q), id); err != nil {
		return inspection.Inspection{}, errors.Wrap(err, "loading inspection records")
	}

	insp := repo.fromRow(row)
	insp.Records = repo.fromItemRows(items)
	return insp, nil
}

// SaveRecords replaces the stored records of an inspection in one transaction.
func (repo inspectionRepository) SaveRecords(ctx context.Context, id string, records inspection.Records, updatedAt time.Time) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "starting transaction")
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, tx.Rebind("UPDATE inspections SET updated_at = ? WHERE id = ?"), dbTime(updatedAt), id)
	if err != nil {
		return errors.Wrap(err, "touching inspection")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return inspection.ErrNotFound
	}
	if _, err = tx.ExecContext(ctx, tx.Rebind("DELETE FROM inspection_items WHERE inspection_id = ?"), id); err != nil {
		return errors.Wrap(err, "clearing inspection records")
	}
	if err = repo.insertRecords(ctx, tx, id, records); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "committing inspection records")
}

func (repo inspectionRepository) insertRecords(ctx context.Context, tx *sqlx.Tx, id string, records inspection.Records) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]itemRow, 0, len(records))
	for pos, r := range records {
		rows = append(rows, itemRow{
			InspectionID: id,
			Position:     pos,
			ItemID:       r.ID,
			SectionID:    r.Section,
			Outcome:      string(r.Outcome),
			Inspected:    r.Outcome.Inspected(),
			Notes:        null.NewString(r.Notes, r.Notes != ""),
		})
	}
	q := `INSERT INTO inspection_items (inspection_id, position, item_id, section_id, outcome, inspected, notes)
		VALUES (:inspection_id, :position, :item_id, :section_id, :outcome, :inspected, :notes)`
	if _, err := tx.NamedExecContext(ctx, q, rows); err != nil {
		return errors.Wrap(err, "inserting inspection records")
	}
	return nil
}

func (repo inspectionRepository) UpdateInspection(ctx context.Context, insp inspection.Inspection) (inspection.Inspection, error) {
	row := repo.toRow(insp)
	q := `UPDATE inspections SET reference = :reference, client_name = :client_name, address = :address,
		inspector_id = :inspector_id, catalogue_version = :catalogue_version, overall_assessment = :overall_assessment,
		updated_at = :updated_at, completed_at = :completed_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, row)
	if err != nil {
		return inspection.Inspection{}, errors.Wrap(err, "updating inspection")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return inspection.Inspection{}, inspection.ErrNotFound
	}
	return repo.GetInspection(ctx, insp.ID)
}

func (repo inspectionRepository) DeleteInspectionsByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In("DELETE FROM inspections WHERE id IN (?)", ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "deleting inspections")
	}
	return nil
}
