package alert

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stanleysince1993/MedicAI/internal/domain/observation"
	"github.com/stanleysince1993/MedicAI/internal/platform/db"
	"github.com/stanleysince1993/MedicAI/internal/platform/events"
	"github.com/stanleysince1993/MedicAI/internal/platform/lock"
	"github.com/stanleysince1993/MedicAI/internal/platform/metrics"
)

// Engine turns observation batches into alerts and drives their lifecycle.
// Every alert-creating or alert-mutating call runs under the patient lock and
// inside one storage transaction. Events are published after commit.
type Engine struct {
	observations observation.Repository
	alerts       Repository
	careplans    CarePlanChecker

	catalog   Catalog
	dedup     *Deduplicator
	lifecycle Lifecycle
	watchdog  *Watchdog

	tx        db.TxRunner
	locker    lock.Locker
	publisher events.Publisher
	logger    zerolog.Logger
	now       func() time.Time
	window    time.Duration
}

type Option func(*Engine)

func WithTxRunner(tx db.TxRunner) Option {
	return func(e *Engine) {
		e.tx = tx
	}
}

func WithLocker(l lock.Locker) Option {
	return func(e *Engine) {
		e.locker = l
	}
}

func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) {
		e.publisher = p
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func WithCatalog(c Catalog) Option {
	return func(e *Engine) {
		e.catalog = c
	}
}

func WithStalenessWindow(d time.Duration) Option {
	return func(e *Engine) {
		e.window = d
	}
}

func NewEngine(observations observation.Repository, alerts Repository, careplans CarePlanChecker, opts ...Option) *Engine {
	e := &Engine{
		observations: observations,
		alerts:       alerts,
		careplans:    careplans,
		catalog:      DefaultCatalog,
		tx:           db.NoTx{},
		locker:       lock.NewKeyedMutex(),
		publisher:    events.Nop{},
		logger:       zerolog.Nop(),
		now:          time.Now,
		window:       DefaultStalenessWindow,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With().Str("component", "alert-engine").Logger()
	e.lifecycle = Lifecycle{Now: e.now}
	e.dedup = NewDeduplicator(alerts)
	e.watchdog = &Watchdog{
		observations: observations,
		alerts:       alerts,
		careplans:    careplans,
		dedup:        e.dedup,
		lifecycle:    e.lifecycle,
		window:       e.window,
		logger:       e.logger,
	}
	return e
}

func (e *Engine) lockPatient(ctx context.Context, patientID uuid.UUID) (func(), error) {
	release, err := e.locker.Lock(ctx, "patient:"+patientID.String())
	if err != nil {
		return nil, fmt.Errorf("lock patient %s: %w", patientID, err)
	}
	return func() {
		if err := release(); err != nil {
			e.logger.Warn().Err(err).Str("patient_id", patientID.String()).Msg("release patient lock")
		}
	}, nil
}

// ProcessBatch validates the whole batch before writing anything, then
// persists it, raises deduplicated alerts and retires any missing_data
// alert. It returns only the alerts created by this batch. An empty batch
// is a no-op.
func (e *Engine) ProcessBatch(ctx context.Context, patientID uuid.UUID, inputs []observation.Input) ([]*Alert, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	start := time.Now()
	obs, err := observation.NormalizeBatch(patientID, inputs, e.now().UTC())
	if err != nil {
		return nil, err
	}

	unlock, err := e.lockPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var created []*Alert
	var changes []Change
	err = e.tx.WithinTx(ctx, func(ctx context.Context) error {
		created, changes = nil, nil
		if err := e.observations.Append(ctx, obs); err != nil {
			return fmt.Errorf("append observations: %w", err)
		}
		for _, o := range obs {
			candidates, err := e.evaluate(ctx, o)
			if err != nil {
				return err
			}
			for _, c := range candidates {
				a, err := e.raise(ctx, o, c)
				if err != nil {
					return err
				}
				if a != nil {
					created = append(created, a)
				}
			}
		}
		changes, err = e.watchdog.Resolve(ctx, patientID)
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, o := range obs {
		metrics.ObservationsIngested.WithLabelValues(o.Code).Inc()
	}
	metrics.BatchDuration.Observe(time.Since(start).Seconds())
	for _, a := range created {
		metrics.AlertsRaised.WithLabelValues(a.RuleID, string(a.Severity)).Inc()
		e.logger.Info().
			Str("alert_id", a.ID.String()).
			Str("patient_id", patientID.String()).
			Str("rule", a.RuleID).
			Str("severity", string(a.Severity)).
			Msg("alert raised")
		e.publish(ctx, events.AlertRaised, patientID, a)
	}
	for _, ch := range changes {
		observeChange(ch)
		e.publish(ctx, events.AlertTransitioned, patientID, ch)
	}
	return created, nil
}

func (e *Engine) evaluate(ctx context.Context, o *observation.Observation) ([]Candidate, error) {
	candidates := e.catalog.EvaluateThresholds(o)
	for _, r := range e.catalog.DeltaRules(o.Code) {
		history, err := e.observations.RecentWithinMinutes(ctx, o.PatientID, o.Code, o.EffectiveAt, int(r.Window/time.Minute))
		if err != nil {
			return nil, fmt.Errorf("recent observations: %w", err)
		}
		if c := EvaluateDelta(r, o, history); c != nil {
			candidates = append(candidates, *c)
		}
	}
	return candidates, nil
}

func (e *Engine) raise(ctx context.Context, o *observation.Observation, c Candidate) (*Alert, error) {
	ok, err := e.dedup.ShouldRaise(ctx, o.PatientID, c.RuleID)
	if err != nil {
		return nil, err
	}
	if !ok {
		e.suppressed(o.PatientID, c.RuleID)
		return nil, nil
	}
	a, entry := e.lifecycle.Open(Origin{
		PatientID:  o.PatientID,
		Code:       o.Code,
		Value:      o.Value(),
		Unit:       o.Unit,
		ObservedAt: o.EffectiveAt,
	}, c)
	if err := e.alerts.Save(ctx, a, entry); err != nil {
		if errors.Is(err, ErrActiveAlertExists) {
			e.suppressed(o.PatientID, c.RuleID)
			return nil, nil
		}
		return nil, fmt.Errorf("save alert: %w", err)
	}
	return a, nil
}

func (e *Engine) suppressed(patientID uuid.UUID, ruleID string) {
	metrics.AlertsSuppressed.WithLabelValues(ruleID).Inc()
	e.logger.Debug().Str("patient_id", patientID.String()).Str("rule", ruleID).Msg("duplicate alert suppressed")
}

// Transition applies a caller-requested lifecycle step. An empty actor is
// recorded as null.
func (e *Engine) Transition(ctx context.Context, alertID uuid.UUID, to Status, actor string, notes *string) (*Alert, error) {
	current, err := e.alerts.GetByID(ctx, alertID)
	if err != nil {
		return nil, err
	}
	unlock, err := e.lockPatient(ctx, current.PatientID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var actorID *string
	if actor != "" {
		actorID = &actor
	}

	var updated *Alert
	var change Change
	err = e.tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := e.alerts.GetByID(ctx, alertID)
		if err != nil {
			return err
		}
		from := a.Status
		entry, err := e.lifecycle.Transition(a, to, actorID, notes)
		if err != nil {
			return err
		}
		if err := e.alerts.Save(ctx, a, entry); err != nil {
			return fmt.Errorf("save alert: %w", err)
		}
		updated = a
		change = newChange(a, from, entry, false)
		return nil
	})
	if err != nil {
		return nil, err
	}

	observeChange(change)
	e.logger.Info().
		Str("alert_id", alertID.String()).
		Str("from", string(change.From)).
		Str("to", string(to)).
		Msg("alert transitioned")
	e.publish(ctx, events.AlertTransitioned, updated.PatientID, change)
	return updated, nil
}

// EvaluateMissingData runs the watchdog for one patient and returns the
// alert it raised, if any.
func (e *Engine) EvaluateMissingData(ctx context.Context, patientID uuid.UUID) (*Alert, error) {
	unlock, err := e.lockPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var raised *Alert
	err = e.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		raised, err = e.watchdog.Evaluate(ctx, patientID, e.now().UTC())
		return err
	})
	if err != nil {
		return nil, err
	}
	if raised != nil {
		metrics.AlertsRaised.WithLabelValues(raised.RuleID, string(raised.Severity)).Inc()
		e.logger.Info().
			Str("alert_id", raised.ID.String()).
			Str("patient_id", patientID.String()).
			Str("rule", raised.RuleID).
			Msg("missing data alert raised")
		e.publish(ctx, events.AlertRaised, patientID, raised)
	}
	return raised, nil
}

// SweepMissingData runs the watchdog for every patient under care. A
// failure for one patient does not stop the sweep.
func (e *Engine) SweepMissingData(ctx context.Context, patients PatientLister) (int, error) {
	ids, err := patients.PatientsUnderCare(ctx)
	if err != nil {
		metrics.WatchdogSweeps.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("list patients under care: %w", err)
	}
	var raised int
	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		a, err := e.EvaluateMissingData(ctx, id)
		if err != nil {
			e.logger.Error().Err(err).Str("patient_id", id.String()).Msg("missing data check failed")
			errs = append(errs, err)
			continue
		}
		if a != nil {
			raised++
		}
	}
	outcome := "ok"
	if len(errs) > 0 {
		outcome = "error"
	}
	metrics.WatchdogSweeps.WithLabelValues(outcome).Inc()
	return raised, errors.Join(errs...)
}

// observeChange records a committed transition.
func observeChange(ch Change) {
	metrics.AlertTransitions.WithLabelValues(string(ch.From), string(ch.To), strconv.FormatBool(ch.Forced)).Inc()
	if _, ok := milestoneKeys[ch.To]; ok {
		metrics.AlertMilestoneSeconds.WithLabelValues(string(ch.To)).Observe(ch.elapsed)
	}
}

func (e *Engine) GetAlert(ctx context.Context, id uuid.UUID) (*Alert, error) {
	return e.alerts.GetByID(ctx, id)
}

func (e *Engine) Timeline(ctx context.Context, id uuid.UUID) ([]*TimelineEntry, error) {
	a, err := e.alerts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return a.Timeline, nil
}

func (e *Engine) ListAlerts(ctx context.Context, patientID uuid.UUID, includeClosed bool) ([]*Alert, error) {
	return e.alerts.ListByPatient(ctx, patientID, includeClosed)
}

func (e *Engine) ListActiveAlerts(ctx context.Context, patientID uuid.UUID) ([]*Alert, error) {
	return e.alerts.ListActiveByPatient(ctx, patientID)
}

func (e *Engine) publish(ctx context.Context, eventType string, patientID uuid.UUID, payload interface{}) {
	ev := events.Event{
		Type:       eventType,
		Key:        patientID.String(),
		OccurredAt: e.now().UTC(),
		Payload:    payload,
	}
	if err := e.publisher.Publish(ctx, ev); err != nil {
		metrics.EventPublishFailures.WithLabelValues(eventType).Inc()
		e.logger.Warn().Err(err).Str("type", eventType).Str("patient_id", patientID.String()).Msg("publish event")
	}
}
