package careplan

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type Service struct {
	revisions RevisionRepository
}

func NewService(revisions RevisionRepository) *Service {
	return &Service{revisions: revisions}
}

var validRevisionStatuses = map[string]bool{
	"draft": true, "active": true, "on-hold": true, "completed": true, "revoked": true,
}

func (s *Service) CreateRevision(ctx context.Context, r *Revision) error {
	if r.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	r.FieldPath = strings.TrimSpace(r.FieldPath)
	if r.FieldPath == "" {
		return fmt.Errorf("field_path is required")
	}
	if r.Status == "" {
		r.Status = "active"
	}
	if !validRevisionStatuses[r.Status] {
		return fmt.Errorf("invalid status: %s", r.Status)
	}
	return s.revisions.Create(ctx, r)
}

func (s *Service) ListRevisions(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Revision, int, error) {
	return s.revisions.ListByPatient(ctx, patientID, limit, offset)
}

// HasAnyRevision reports whether the patient is under care-plan management.
func (s *Service) HasAnyRevision(ctx context.Context, patientID uuid.UUID) (bool, error) {
	return s.revisions.HasAnyRevision(ctx, patientID)
}

// PatientsUnderCare lists every patient with at least one revision.
func (s *Service) PatientsUnderCare(ctx context.Context) ([]uuid.UUID, error) {
	return s.revisions.ListPatientIDs(ctx)
}
