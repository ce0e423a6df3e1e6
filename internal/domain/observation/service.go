package observation

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, code string, limit, offset int) ([]*Observation, int, error) {
	if patientID == uuid.Nil {
		return nil, 0, fmt.Errorf("patient_id is required")
	}
	return s.repo.ListByPatient(ctx, patientID, strings.ToLower(strings.TrimSpace(code)), limit, offset)
}

// History returns every stored observation for the patient, newest first.
func (s *Service) History(ctx context.Context, patientID uuid.UUID) ([]*Observation, error) {
	items, _, err := s.repo.ListByPatient(ctx, patientID, "", 0, 0)
	return items, err
}
