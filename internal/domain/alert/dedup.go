package alert

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Deduplicator enforces at most one active alert per (patient, rule).
// Callers must hold the patient lock between ShouldRaise and Save.
type Deduplicator struct {
	alerts Repository
}

func NewDeduplicator(alerts Repository) *Deduplicator {
	return &Deduplicator{alerts: alerts}
}

func (d *Deduplicator) ShouldRaise(ctx context.Context, patientID uuid.UUID, ruleID string) (bool, error) {
	active, err := d.alerts.ListActiveByPatient(ctx, patientID)
	if err != nil {
		return false, fmt.Errorf("list active alerts: %w", err)
	}
	return findActive(active, ruleID) == nil, nil
}

func findActive(alerts []*Alert, ruleID string) *Alert {
	for _, a := range alerts {
		if a.IsActive() && a.RuleID == ruleID {
			return a
		}
	}
	return nil
}
