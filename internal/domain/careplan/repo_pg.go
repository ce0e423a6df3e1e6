package careplan

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stanleysince1993/MedicAI/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type revisionRepoPG struct{ pool *pgxpool.Pool }

func NewRevisionRepoPG(pool *pgxpool.Pool) RevisionRepository {
	return &revisionRepoPG{pool: pool}
}

func (r *revisionRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const revCols = `id, patient_id, version, status, order_id, field_path, value, revised_from, created_by, created_at`

func (r *revisionRepoPG) scanRevision(row pgx.Row) (*Revision, error) {
	var rev Revision
	err := row.Scan(&rev.ID, &rev.PatientID, &rev.Version, &rev.Status, &rev.OrderID,
		&rev.FieldPath, &rev.Value, &rev.RevisedFrom, &rev.CreatedBy, &rev.CreatedAt)
	return &rev, err
}

func (r *revisionRepoPG) Create(ctx context.Context, rev *Revision) error {
	rev.ID = uuid.New()
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO care_plan_revision (id, patient_id, version, status, order_id, field_path, value, revised_from, created_by)
		VALUES ($1, $2,
			(SELECT COALESCE(MAX(version), 0) + 1 FROM care_plan_revision WHERE patient_id = $2),
			$3, $4, $5, $6, $7, $8)
		RETURNING version, created_at`,
		rev.ID, rev.PatientID, rev.Status, rev.OrderID, rev.FieldPath, rev.Value, rev.RevisedFrom, rev.CreatedBy)
	if err := row.Scan(&rev.Version, &rev.CreatedAt); err != nil {
		return fmt.Errorf("insert care plan revision: %w", err)
	}
	return nil
}

func (r *revisionRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Revision, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM care_plan_revision WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := `SELECT ` + revCols + ` FROM care_plan_revision WHERE patient_id = $1 ORDER BY version DESC OFFSET $2`
	args := []interface{}{patientID, offset}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Revision
	for rows.Next() {
		rev, err := r.scanRevision(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rev)
	}
	return items, total, rows.Err()
}

func (r *revisionRepoPG) HasAnyRevision(ctx context.Context, patientID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM care_plan_revision WHERE patient_id = $1)`, patientID).Scan(&exists)
	return exists, err
}

func (r *revisionRepoPG) ListPatientIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT DISTINCT patient_id FROM care_plan_revision ORDER BY patient_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
