package observation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Append(ctx context.Context, obs []*Observation) error
	// ListByPatient returns observations sorted by effective_at descending.
	// An empty code matches every code; limit <= 0 returns everything.
	ListByPatient(ctx context.Context, patientID uuid.UUID, code string, limit, offset int) ([]*Observation, int, error)
	// RecentWithinMinutes returns observations of code with effective_at in
	// [asOf-minutes, asOf], newest first.
	RecentWithinMinutes(ctx context.Context, patientID uuid.UUID, code string, asOf time.Time, minutes int) ([]*Observation, error)
}
