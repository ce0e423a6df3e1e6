package alert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stanleysince1993/MedicAI/internal/domain/observation"
)

// DefaultStalenessWindow is how long a patient under care may go without
// observations before a missing_data alert is raised.
const DefaultStalenessWindow = 12 * time.Hour

const missingDataCode = "missing-data"

// CarePlanChecker tells the watchdog whether a patient is under active management.
type CarePlanChecker interface {
	HasAnyRevision(ctx context.Context, patientID uuid.UUID) (bool, error)
}

// PatientLister enumerates the patients a scheduled sweep should visit.
type PatientLister interface {
	PatientsUnderCare(ctx context.Context) ([]uuid.UUID, error)
}

// Change describes one applied lifecycle transition.
type Change struct {
	AlertID   uuid.UUID `json:"alert_id"`
	PatientID uuid.UUID `json:"patient_id"`
	RuleID    string    `json:"rule_id"`
	From      Status    `json:"from"`
	To        Status    `json:"to"`
	ActorID   *string   `json:"actor_id"`
	Forced    bool      `json:"forced"`
	At        time.Time `json:"at"`

	elapsed float64
}

// newChange builds the transition record for the step that produced entry.
func newChange(a *Alert, from Status, entry *TimelineEntry, forced bool) Change {
	elapsed, _ := a.Context[milestoneKeys[entry.Status]].(float64)
	return Change{
		AlertID:   a.ID,
		PatientID: a.PatientID,
		RuleID:    a.RuleID,
		From:      from,
		To:        entry.Status,
		ActorID:   entry.ActorID,
		Forced:    forced,
		At:        entry.CreatedAt,
		elapsed:   elapsed,
	}
}

// Watchdog raises and retires missing_data alerts. Both methods expect the
// caller to hold the patient lock.
type Watchdog struct {
	observations observation.Repository
	alerts       Repository
	careplans    CarePlanChecker
	dedup        *Deduplicator
	lifecycle    Lifecycle
	window       time.Duration
	logger       zerolog.Logger
}

func (w *Watchdog) message() string {
	if w.window%time.Hour == 0 {
		return fmt.Sprintf("No observations received in the last %d hours", int(w.window/time.Hour))
	}
	return fmt.Sprintf("No observations received in the last %s", w.window)
}

// Evaluate returns the new alert, or nil when any precondition fails.
func (w *Watchdog) Evaluate(ctx context.Context, patientID uuid.UUID, now time.Time) (*Alert, error) {
	underCare, err := w.careplans.HasAnyRevision(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("check care plan: %w", err)
	}
	if !underCare {
		return nil, nil
	}

	latest, _, err := w.observations.ListByPatient(ctx, patientID, "", 1, 0)
	if err != nil {
		return nil, fmt.Errorf("latest observation: %w", err)
	}
	if len(latest) == 0 {
		return nil, nil
	}
	last := latest[0].EffectiveAt.UTC()
	if now.Sub(last) <= w.window {
		return nil, nil
	}

	ok, err := w.dedup.ShouldRaise(ctx, patientID, RuleMissingData)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	a, entry := w.lifecycle.Open(
		Origin{PatientID: patientID, Code: missingDataCode, Value: float64(0), ObservedAt: last},
		Candidate{
			RuleID:   RuleMissingData,
			Severity: SeverityInfo,
			Message:  w.message(),
			Extras:   map[string]interface{}{"last_observation_at": last.Format(time.RFC3339)},
		},
	)
	if err := w.alerts.Save(ctx, a, entry); err != nil {
		if errors.Is(err, ErrActiveAlertExists) {
			return nil, nil
		}
		return nil, fmt.Errorf("save missing data alert: %w", err)
	}
	return a, nil
}

var autoCloseSteps = []struct {
	to    Status
	notes string
}{
	{StatusAcknowledged, "Data resumed"},
	{StatusResolved, "Automatic resolution"},
	{StatusClosed, "Automatic closure"},
}

// Resolve walks every active missing_data alert of the patient to closed,
// skipping steps the alert already passed. Illegal steps are logged and
// skipped, never returned.
func (w *Watchdog) Resolve(ctx context.Context, patientID uuid.UUID) ([]Change, error) {
	active, err := w.alerts.ListActiveByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list active alerts: %w", err)
	}

	var changes []Change
	for _, a := range active {
		if a.RuleID != RuleMissingData {
			continue
		}
		for _, step := range autoCloseSteps {
			if statusRank[a.Status] >= statusRank[step.to] {
				continue
			}
			from := a.Status
			actor, notes := SystemActor, step.notes
			entry, err := w.lifecycle.ForceTransition(a, step.to, &actor, &notes)
			if err != nil {
				w.logger.Warn().Err(err).Str("alert_id", a.ID.String()).Msg("skipping automatic missing data step")
				break
			}
			if err := w.alerts.Save(ctx, a, entry); err != nil {
				return changes, fmt.Errorf("save missing data alert: %w", err)
			}
			changes = append(changes, newChange(a, from, entry, true))
		}
	}
	return changes, nil
}
