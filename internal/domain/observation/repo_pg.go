package observation

import (
	"context"
	"fmt"
	"time"

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
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type observationRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &observationRepoPG{pool: pool}
}

func (r *observationRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const obsCols = `id, patient_id, code, value_text, value_numeric, unit, effective_at, source, created_at`

func scanObservation(row pgx.Row) (*Observation, error) {
	var o Observation
	err := row.Scan(&o.ID, &o.PatientID, &o.Code, &o.ValueText, &o.ValueNumeric,
		&o.Unit, &o.EffectiveAt, &o.Source, &o.CreatedAt)
	return &o, err
}

func (r *observationRepoPG) Append(ctx context.Context, obs []*Observation) error {
	if len(obs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, o := range obs {
		batch.Queue(`
			INSERT INTO observations (`+obsCols+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			o.ID, o.PatientID, o.Code, o.ValueText, o.ValueNumeric,
			o.Unit, o.EffectiveAt, o.Source, o.CreatedAt)
	}
	results := r.conn(ctx).SendBatch(ctx, batch)
	defer results.Close()
	for i := range obs {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert observation %d: %w", i, err)
		}
	}
	return nil
}

func (r *observationRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, code string, limit, offset int) ([]*Observation, int, error) {
	where := ` WHERE patient_id = $1 AND ($2 = '' OR code = $2)`
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM observations`+where, patientID, code).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count observations: %w", err)
	}

	query := `SELECT ` + obsCols + ` FROM observations` + where + ` ORDER BY effective_at DESC, created_at DESC OFFSET $3`
	args := []interface{}{patientID, code, offset}
	if limit > 0 {
		query += ` LIMIT $4`
		args = append(args, limit)
	}
	items, err := r.query(ctx, query, args...)
	return items, total, err
}

func (r *observationRepoPG) RecentWithinMinutes(ctx context.Context, patientID uuid.UUID, code string, asOf time.Time, minutes int) ([]*Observation, error) {
	since := asOf.Add(-time.Duration(minutes) * time.Minute)
	return r.query(ctx, `SELECT `+obsCols+` FROM observations
		WHERE patient_id = $1 AND code = $2 AND effective_at BETWEEN $3 AND $4
		ORDER BY effective_at DESC, created_at DESC`, patientID, code, since, asOf)
}

func (r *observationRepoPG) query(ctx context.Context, sql string, args ...interface{}) ([]*Observation, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()
	var items []*Observation
	for rows.Next() {
		o, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}
