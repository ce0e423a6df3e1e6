package observation

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

type observationRepoSQLite struct{ db *sql.DB }

func NewRepoSQLite(sqlDB *sql.DB) Repository {
	return &observationRepoSQLite{db: sqlDB}
}

func (r *observationRepoSQLite) conn(ctx context.Context) sqlQueryable {
	if tx := db.SQLTxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db
}

func (r *observationRepoSQLite) Append(ctx context.Context, obs []*Observation) error {
	for i, o := range obs {
		_, err := r.conn(ctx).ExecContext(ctx, `
			INSERT INTO observations (`+obsCols+`)
			VALUES (?,?,?,?,?,?,?,?,?)`,
			o.ID.String(), o.PatientID.String(), o.Code, o.ValueText, o.ValueNumeric,
			o.Unit, o.EffectiveAt.UTC(), o.Source, o.CreatedAt.UTC())
		if err != nil {
			return fmt.Errorf("insert observation %d: %w", i, err)
		}
	}
	return nil
}

func (r *observationRepoSQLite) ListByPatient(ctx context.Context, patientID uuid.UUID, code string, limit, offset int) ([]*Observation, int, error) {
	where := ` WHERE patient_id = ? AND (? = '' OR code = ?)`
	var total int
	if err := r.conn(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM observations`+where, patientID.String(), code, code).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count observations: %w", err)
	}
	if limit <= 0 {
		limit = -1
	}
	items, err := r.query(ctx, `SELECT `+obsCols+` FROM observations`+where+`
		ORDER BY effective_at DESC, created_at DESC LIMIT ? OFFSET ?`,
		patientID.String(), code, code, limit, offset)
	return items, total, err
}

func (r *observationRepoSQLite) RecentWithinMinutes(ctx context.Context, patientID uuid.UUID, code string, asOf time.Time, minutes int) ([]*Observation, error) {
	since := asOf.Add(-time.Duration(minutes) * time.Minute)
	return r.query(ctx, `SELECT `+obsCols+` FROM observations
		WHERE patient_id = ? AND code = ? AND effective_at >= ? AND effective_at <= ?
		ORDER BY effective_at DESC, created_at DESC`,
		patientID.String(), code, since.UTC(), asOf.UTC())
}

func (r *observationRepoSQLite) query(ctx context.Context, query string, args ...interface{}) ([]*Observation, error) {
	rows, err := r.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()
	var items []*Observation
	for rows.Next() {
		var o Observation
		var id, patientID string
		var numeric sql.NullFloat64
		if err := rows.Scan(&id, &patientID, &o.Code, &o.ValueText, &numeric,
			&o.Unit, &o.EffectiveAt, &o.Source, &o.CreatedAt); err != nil {
			return nil, err
		}
		if o.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse observation id %q: %w", id, err)
		}
		if o.PatientID, err = uuid.Parse(patientID); err != nil {
			return nil, fmt.Errorf("parse patient id %q: %w", patientID, err)
		}
		if numeric.Valid {
			v := numeric.Float64
			o.ValueNumeric = &v
		}
		items = append(items, &o)
	}
	return items, rows.Err()
}
