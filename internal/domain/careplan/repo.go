package careplan

import (
	"context"

	"github.com/google/uuid"
)

type RevisionRepository interface {
	// Create assigns ID and the next per-patient Version.
	Create(ctx context.Context, r *Revision) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Revision, int, error)
	HasAnyRevision(ctx context.Context, patientID uuid.UUID) (bool, error)
	ListPatientIDs(ctx context.Context) ([]uuid.UUID, error)
}
