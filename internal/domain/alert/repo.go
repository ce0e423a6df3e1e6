package alert

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists alerts and their timelines. Save upserts by id and
// appends entry when non-nil; inserting a second active alert for the same
// (patient, rule) fails with ErrActiveAlertExists. GetByID returns a
// *NotFoundError for unknown ids.
type Repository interface {
	Save(ctx context.Context, a *Alert, entry *TimelineEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*Alert, error)
	ListActiveByPatient(ctx context.Context, patientID uuid.UUID) ([]*Alert, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, includeClosed bool) ([]*Alert, error)
	ListTimeline(ctx context.Context, alertID uuid.UUID) ([]*TimelineEntry, error)
}
