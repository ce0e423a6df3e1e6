package alert

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/stanleysince1993/MedicAI/internal/platform/db"
)

type sqlQueryable interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type alertRepoSQLite struct{ db *sql.DB }

func NewRepoSQLite(sqlDB *sql.DB) Repository {
	return &alertRepoSQLite{db: sqlDB}
}

func (r *alertRepoSQLite) conn(ctx context.Context) sqlQueryable {
	if tx := db.SQLTxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullableString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

// Save wraps the alert row and its timeline entry in one transaction unless
// the caller already opened one.
func (r *alertRepoSQLite) Save(ctx context.Context, a *Alert, entry *TimelineEntry) error {
	if db.SQLTxFromContext(ctx) == nil {
		return db.NewSQLTxRunner(r.db).WithinTx(ctx, func(ctx context.Context) error {
			return r.Save(ctx, a, entry)
		})
	}

	ctxJSON, err := json.Marshal(a.Context)
	if err != nil {
		return fmt.Errorf("marshal alert context: %w", err)
	}
	numeric, text := a.numericValue()
	_, err = r.conn(ctx).ExecContext(ctx, `
		INSERT INTO alerts (`+alertCols+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status, severity = excluded.severity, context = excluded.context,
			updated_at = excluded.updated_at,
			acknowledged_at = excluded.acknowledged_at, acknowledged_by = excluded.acknowledged_by,
			resolved_at = excluded.resolved_at, resolved_by = excluded.resolved_by,
			closed_at = excluded.closed_at, closed_by = excluded.closed_by`,
		a.ID.String(), a.PatientID.String(), a.RuleID, a.Code, numeric, text, a.Unit, a.ObservedAt.UTC(),
		string(a.Severity), string(a.Status), string(ctxJSON), a.CreatedAt.UTC(), a.UpdatedAt.UTC(),
		nullableTime(a.AcknowledgedAt), nullableString(a.AcknowledgedBy),
		nullableTime(a.ResolvedAt), nullableString(a.ResolvedBy),
		nullableTime(a.ClosedAt), nullableString(a.ClosedBy))
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return ErrActiveAlertExists
		}
		return fmt.Errorf("save alert: %w", err)
	}

	if entry != nil {
		_, err = r.conn(ctx).ExecContext(ctx, `INSERT INTO alert_timeline (`+timelineCols+`) VALUES (?,?,?,?,?,?)`,
			entry.ID.String(), entry.AlertID.String(), string(entry.Status),
			nullableString(entry.ActorID), nullableString(entry.Notes), entry.CreatedAt.UTC())
		if err != nil {
			return fmt.Errorf("insert timeline entry: %w", err)
		}
	}
	return nil
}

func (r *alertRepoSQLite) GetByID(ctx context.Context, id uuid.UUID) (*Alert, error) {
	items, err := r.query(ctx, `SELECT `+alertCols+` FROM alerts WHERE id = ?`, id.String())
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, &NotFoundError{ID: id}
	}
	a := items[0]
	if a.Timeline, err = r.ListTimeline(ctx, id); err != nil {
		return nil, err
	}
	return a, nil
}

func (r *alertRepoSQLite) ListActiveByPatient(ctx context.Context, patientID uuid.UUID) ([]*Alert, error) {
	return r.query(ctx, `SELECT `+alertCols+` FROM alerts
		WHERE patient_id = ? AND status IN ('open', 'acknowledged')
		ORDER BY created_at DESC`, patientID.String())
}

func (r *alertRepoSQLite) ListByPatient(ctx context.Context, patientID uuid.UUID, includeClosed bool) ([]*Alert, error) {
	return r.query(ctx, `SELECT `+alertCols+` FROM alerts
		WHERE patient_id = ? AND (? OR status <> 'closed')
		ORDER BY created_at DESC`, patientID.String(), includeClosed)
}

func (r *alertRepoSQLite) query(ctx context.Context, query string, args ...interface{}) ([]*Alert, error) {
	rows, err := r.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()
	var items []*Alert
	for rows.Next() {
		var a Alert
		var id, pid, severity, status, ctxJSON string
		var numeric sql.NullFloat64
		var text string
		var ackAt, resAt, closeAt sql.NullTime
		var ackBy, resBy, closeBy sql.NullString
		if err := rows.Scan(&id, &pid, &a.RuleID, &a.Code, &numeric, &text, &a.Unit, &a.ObservedAt,
			&severity, &status, &ctxJSON, &a.CreatedAt, &a.UpdatedAt,
			&ackAt, &ackBy, &resAt, &resBy, &closeAt, &closeBy); err != nil {
			return nil, err
		}
		if a.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse alert id %q: %w", id, err)
		}
		if a.PatientID, err = uuid.Parse(pid); err != nil {
			return nil, fmt.Errorf("parse patient id %q: %w", pid, err)
		}
		if err := json.Unmarshal([]byte(ctxJSON), &a.Context); err != nil {
			return nil, fmt.Errorf("decode alert context: %w", err)
		}
		a.Severity, a.Status = Severity(severity), Status(status)
		if numeric.Valid {
			v := numeric.Float64
			a.setValue(&v, "")
		} else {
			a.setValue(nil, text)
		}
		a.AcknowledgedAt, a.AcknowledgedBy = timePtr(ackAt), stringPtr(ackBy)
		a.ResolvedAt, a.ResolvedBy = timePtr(resAt), stringPtr(resBy)
		a.ClosedAt, a.ClosedBy = timePtr(closeAt), stringPtr(closeBy)
		items = append(items, &a)
	}
	return items, rows.Err()
}

func (r *alertRepoSQLite) ListTimeline(ctx context.Context, alertID uuid.UUID) ([]*TimelineEntry, error) {
	rows, err := r.conn(ctx).QueryContext(ctx, `SELECT `+timelineCols+` FROM alert_timeline
		WHERE alert_id = ? ORDER BY created_at, rowid`, alertID.String())
	if err != nil {
		return nil, fmt.Errorf("query alert timeline: %w", err)
	}
	defer rows.Close()
	var items []*TimelineEntry
	for rows.Next() {
		var e TimelineEntry
		var id, aid, status string
		var actor, notes sql.NullString
		if err := rows.Scan(&id, &aid, &status, &actor, &notes, &e.CreatedAt); err != nil {
			return nil, err
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse timeline id %q: %w", id, err)
		}
		if e.AlertID, err = uuid.Parse(aid); err != nil {
			return nil, fmt.Errorf("parse alert id %q: %w", aid, err)
		}
		e.Status = Status(status)
		e.ActorID, e.Notes = stringPtr(actor), stringPtr(notes)
		items = append(items, &e)
	}
	return items, rows.Err()
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
