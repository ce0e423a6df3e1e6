package careplan

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stanleysince1993/MedicAI/internal/platform/db"
)

type sqlQueryable interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type revisionRepoSQLite struct {
	db  *sql.DB
	now func() time.Time
}

func NewRevisionRepoSQLite(sqlDB *sql.DB) RevisionRepository {
	return &revisionRepoSQLite{db: sqlDB, now: time.Now}
}

func (r *revisionRepoSQLite) conn(ctx context.Context) sqlQueryable {
	if tx := db.SQLTxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db
}

func nullableID(id *uuid.UUID) interface{} {
	if id == nil {
		return nil
	}
	return id.String()
}

func (r *revisionRepoSQLite) Create(ctx context.Context, rev *Revision) error {
	rev.ID = uuid.New()
	rev.CreatedAt = r.now().UTC()
	err := r.conn(ctx).QueryRowContext(ctx, `
		INSERT INTO care_plan_revision (id, patient_id, version, status, order_id, field_path, value, revised_from, created_by, created_at)
		VALUES (?, ?, (SELECT COALESCE(MAX(version), 0) + 1 FROM care_plan_revision WHERE patient_id = ?), ?, ?, ?, ?, ?, ?, ?)
		RETURNING version`,
		rev.ID.String(), rev.PatientID.String(), rev.PatientID.String(), rev.Status, nullableID(rev.OrderID),
		rev.FieldPath, rev.Value, nullableID(rev.RevisedFrom), rev.CreatedBy, rev.CreatedAt).Scan(&rev.Version)
	if err != nil {
		return fmt.Errorf("insert care plan revision: %w", err)
	}
	return nil
}

func (r *revisionRepoSQLite) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Revision, int, error) {
	var total int
	if err := r.conn(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM care_plan_revision WHERE patient_id = ?`, patientID.String()).Scan(&total); err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.conn(ctx).QueryContext(ctx, `SELECT `+revCols+` FROM care_plan_revision
		WHERE patient_id = ? ORDER BY version DESC LIMIT ? OFFSET ?`, patientID.String(), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Revision
	for rows.Next() {
		var rev Revision
		var id, pid string
		var orderID, revisedFrom sql.NullString
		if err := rows.Scan(&id, &pid, &rev.Version, &rev.Status, &orderID,
			&rev.FieldPath, &rev.Value, &revisedFrom, &rev.CreatedBy, &rev.CreatedAt); err != nil {
			return nil, 0, err
		}
		if rev.ID, err = uuid.Parse(id); err != nil {
			return nil, 0, fmt.Errorf("parse revision id %q: %w", id, err)
		}
		if rev.PatientID, err = uuid.Parse(pid); err != nil {
			return nil, 0, fmt.Errorf("parse patient id %q: %w", pid, err)
		}
		rev.OrderID = parseNullableID(orderID)
		rev.RevisedFrom = parseNullableID(revisedFrom)
		items = append(items, &rev)
	}
	return items, total, rows.Err()
}

func parseNullableID(s sql.NullString) *uuid.UUID {
	if !s.Valid {
		return nil
	}
	id, err := uuid.Parse(s.String)
	if err != nil {
		return nil
	}
	return &id
}

func (r *revisionRepoSQLite) HasAnyRevision(ctx context.Context, patientID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM care_plan_revision WHERE patient_id = ?)`, patientID.String()).Scan(&exists)
	return exists, err
}

func (r *revisionRepoSQLite) ListPatientIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.conn(ctx).QueryContext(ctx, `SELECT DISTINCT patient_id FROM care_plan_revision ORDER BY patient_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("parse patient id %q: %w", s, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
