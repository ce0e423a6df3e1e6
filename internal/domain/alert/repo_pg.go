package alert

import (
	"context"
	"errors"
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

type beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// activeAlertIndex is the partial unique index on (patient_id, rule_id)
// over open and acknowledged alerts.
const activeAlertIndex = "alerts_one_active_per_rule"

type alertRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &alertRepoPG{pool: pool}
}

func (r *alertRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const alertCols = `id, patient_id, rule_id, code, value_numeric, value_text, unit, observed_at,
	severity, status, context, created_at, updated_at,
	acknowledged_at, acknowledged_by, resolved_at, resolved_by, closed_at, closed_by`

const timelineCols = `id, alert_id, status, actor_id, notes, created_at`

func scanAlert(row pgx.Row) (*Alert, error) {
	var a Alert
	var numeric *float64
	var text string
	err := row.Scan(&a.ID, &a.PatientID, &a.RuleID, &a.Code, &numeric, &text, &a.Unit, &a.ObservedAt,
		&a.Severity, &a.Status, &a.Context, &a.CreatedAt, &a.UpdatedAt,
		&a.AcknowledgedAt, &a.AcknowledgedBy, &a.ResolvedAt, &a.ResolvedBy, &a.ClosedAt, &a.ClosedBy)
	if err != nil {
		return nil, err
	}
	a.setValue(numeric, text)
	return &a, nil
}

// Save runs inside a savepoint when a transaction is already open, so a
// duplicate active alert does not abort the caller's transaction.
func (r *alertRepoPG) Save(ctx context.Context, a *Alert, entry *TimelineEntry) error {
	var b beginner = r.pool
	if tx := db.TxFromContext(ctx); tx != nil {
		b = tx
	}
	tx, err := b.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save alert: %w", err)
	}
	defer tx.Rollback(ctx)

	numeric, text := a.numericValue()
	_, err = tx.Exec(ctx, `
		INSERT INTO alerts (`+alertCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status, severity = EXCLUDED.severity, context = EXCLUDED.context,
			updated_at = EXCLUDED.updated_at,
			acknowledged_at = EXCLUDED.acknowledged_at, acknowledged_by = EXCLUDED.acknowledged_by,
			resolved_at = EXCLUDED.resolved_at, resolved_by = EXCLUDED.resolved_by,
			closed_at = EXCLUDED.closed_at, closed_by = EXCLUDED.closed_by`,
		a.ID, a.PatientID, a.RuleID, a.Code, numeric, text, a.Unit, a.ObservedAt,
		a.Severity, a.Status, a.Context, a.CreatedAt, a.UpdatedAt,
		a.AcknowledgedAt, a.AcknowledgedBy, a.ResolvedAt, a.ResolvedBy, a.ClosedAt, a.ClosedBy)
	if err != nil {
		if isActiveAlertConflict(err) {
			return ErrActiveAlertExists
		}
		return fmt.Errorf("save alert: %w", err)
	}

	if entry != nil {
		_, err = tx.Exec(ctx, `INSERT INTO alert_timeline (`+timelineCols+`) VALUES ($1,$2,$3,$4,$5,$6)`,
			entry.ID, entry.AlertID, entry.Status, entry.ActorID, entry.Notes, entry.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert timeline entry: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit save alert: %w", err)
	}
	return nil
}

func isActiveAlertConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == activeAlertIndex
}

func (r *alertRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Alert, error) {
	a, err := scanAlert(r.conn(ctx).QueryRow(ctx, `SELECT `+alertCols+` FROM alerts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{ID: id}
		}
		return nil, fmt.Errorf("get alert: %w", err)
	}
	if a.Timeline, err = r.ListTimeline(ctx, id); err != nil {
		return nil, err
	}
	return a, nil
}

func (r *alertRepoPG) ListActiveByPatient(ctx context.Context, patientID uuid.UUID) ([]*Alert, error) {
	return r.query(ctx, `SELECT `+alertCols+` FROM alerts
		WHERE patient_id = $1 AND status IN ('open', 'acknowledged')
		ORDER BY created_at DESC`, patientID)
}

func (r *alertRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, includeClosed bool) ([]*Alert, error) {
	return r.query(ctx, `SELECT `+alertCols+` FROM alerts
		WHERE patient_id = $1 AND ($2 OR status <> 'closed')
		ORDER BY created_at DESC`, patientID, includeClosed)
}

func (r *alertRepoPG) query(ctx context.Context, sql string, args ...interface{}) ([]*Alert, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()
	var items []*Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *alertRepoPG) ListTimeline(ctx context.Context, alertID uuid.UUID) ([]*TimelineEntry, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+timelineCols+` FROM alert_timeline
		WHERE alert_id = $1 ORDER BY created_at, seq`, alertID)
	if err != nil {
		return nil, fmt.Errorf("query alert timeline: %w", err)
	}
	defer rows.Close()
	var items []*TimelineEntry
	for rows.Next() {
		var e TimelineEntry
		if err := rows.Scan(&e.ID, &e.AlertID, &e.Status, &e.ActorID, &e.Notes, &e.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &e)
	}
	return items, rows.Err()
}
