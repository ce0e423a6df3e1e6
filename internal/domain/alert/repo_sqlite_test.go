package alert

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var alertColumns = []string{"id", "patient_id", "rule_id", "code", "value_numeric", "value_text", "unit", "observed_at",
	"severity", "status", "context", "created_at", "updated_at",
	"acknowledged_at", "acknowledged_by", "resolved_at", "resolved_by", "closed_at", "closed_by"}

func TestSQLiteRepo_SaveOpensTransaction(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	a := newOpenAlert(Lifecycle{})
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO alerts")).
		WithArgs(a.ID.String(), a.PatientID.String(), RuleLowSpO2, "spo2", 85.0, "", "%", sqlmock.AnyArg(),
			"critical", "open", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			nil, nil, nil, nil, nil, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO alert_timeline")).
		WithArgs(a.Timeline[0].ID.String(), a.ID.String(), "open", nil, "SpO2 below 88%", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, NewRepoSQLite(sqlDB).Save(context.Background(), a, a.Timeline[0]))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteRepo_SaveUniqueViolation(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO alerts")).
		WillReturnError(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique})
	mock.ExpectRollback()

	a := newOpenAlert(Lifecycle{})
	err = NewRepoSQLite(sqlDB).Save(context.Background(), a, a.Timeline[0])
	assert.True(t, errors.Is(err, ErrActiveAlertExists), "got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteRepo_GetByID(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	id, pid, entryID := uuid.New(), uuid.New(), uuid.New()
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	ctxJSON, _ := json.Marshal(map[string]interface{}{"rule": RuleLowSpO2, "message": "SpO2 below 88%", "time_to_ack_seconds": 30})

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, patient_id, rule_id")).
		WithArgs(id.String()).
		WillReturnRows(sqlmock.NewRows(alertColumns).AddRow(
			id.String(), pid.String(), RuleLowSpO2, "spo2", 85.0, "85", "%", at,
			"critical", "acknowledged", string(ctxJSON), at, at.Add(30*time.Second),
			at.Add(30*time.Second), "nurse-1", nil, nil, nil, nil))
	mock.ExpectQuery(regexp.QuoteMeta("FROM alert_timeline")).
		WithArgs(id.String()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "alert_id", "status", "actor_id", "notes", "created_at"}).
			AddRow(entryID.String(), id.String(), "open", nil, "SpO2 below 88%", at))

	a, err := NewRepoSQLite(sqlDB).GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StatusAcknowledged, a.Status)
	assert.Equal(t, 85.0, a.Value)
	assert.Equal(t, "SpO2 below 88%", a.Message())
	require.NotNil(t, a.AcknowledgedBy)
	assert.Equal(t, "nurse-1", *a.AcknowledgedBy)
	assert.Nil(t, a.ResolvedAt)
	require.Len(t, a.Timeline, 1)
	assert.Nil(t, a.Timeline[0].ActorID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteRepo_GetByID_NotFound(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	id := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, patient_id, rule_id")).
		WithArgs(id.String()).
		WillReturnRows(sqlmock.NewRows(alertColumns))

	_, err = NewRepoSQLite(sqlDB).GetByID(context.Background(), id)
	var nf *NotFoundError
	assert.True(t, errors.As(err, &nf), "got %v", err)
}

func TestSQLiteRepo_ListByPatient(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	pid := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta("status <> 'closed'")).
		WithArgs(pid.String(), false).
		WillReturnRows(sqlmock.NewRows(alertColumns).AddRow(
			uuid.New().String(), pid.String(), RuleMissingData, "missing-data", nil, "", "", time.Now(),
			"info", "resolved", `{"rule":"missing_data"}`, time.Now(), time.Now(),
			nil, nil, time.Now(), "system", nil, nil))

	items, err := NewRepoSQLite(sqlDB).ListByPatient(context.Background(), pid, false)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "", items[0].Value)
	assert.Equal(t, StatusResolved, items[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
