package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stanleysince1993/MedicAI/internal/domain/alert"
	"github.com/stanleysince1993/MedicAI/internal/domain/observation"
)

// seriesPoints caps each code's time series.
const seriesPoints = 10

type AlertSource interface {
	EvaluateMissingData(ctx context.Context, patientID uuid.UUID) (*alert.Alert, error)
	ListAlerts(ctx context.Context, patientID uuid.UUID, includeClosed bool) ([]*alert.Alert, error)
	ListActiveAlerts(ctx context.Context, patientID uuid.UUID) ([]*alert.Alert, error)
}

type ObservationSource interface {
	History(ctx context.Context, patientID uuid.UUID) ([]*observation.Observation, error)
}

type CarePlanSource interface {
	HasAnyRevision(ctx context.Context, patientID uuid.UUID) (bool, error)
}

type Summary struct {
	PatientID      uuid.UUID        `json:"patient_id"`
	CarePlanActive bool             `json:"careplan_active"`
	ActiveAlerts   int              `json:"active_alerts"`
	Alerts         []AlertSummary   `json:"alerts"`
	LastVitals     map[string]Vital `json:"last_vitals"`
	Timeseries     []Series         `json:"timeseries"`
	AdherenceRate  *float64         `json:"adherence_rate"`
}

type AlertSummary struct {
	ID             uuid.UUID      `json:"id"`
	Code           string         `json:"code"`
	Severity       alert.Severity `json:"severity"`
	Status         alert.Status   `json:"status"`
	ObservedAt     time.Time      `json:"observed_at"`
	Message        string         `json:"message"`
	AcknowledgedAt *time.Time     `json:"acknowledged_at"`
	ResolvedAt     *time.Time     `json:"resolved_at"`
	ClosedAt       *time.Time     `json:"closed_at"`
}

type Vital struct {
	Value     interface{} `json:"value"`
	Unit      string      `json:"unit"`
	Timestamp time.Time   `json:"timestamp"`
}

type Series struct {
	Code   string  `json:"code"`
	Points []Point `json:"points"`
}

type Point struct {
	T time.Time   `json:"t"`
	V interface{} `json:"v"`
}

type Service struct {
	alerts       AlertSource
	observations ObservationSource
	careplans    CarePlanSource
}

func NewService(alerts AlertSource, observations ObservationSource, careplans CarePlanSource) *Service {
	return &Service{alerts: alerts, observations: observations, careplans: careplans}
}

// Summary runs the missing-data watchdog first so the view reflects it.
func (s *Service) Summary(ctx context.Context, patientID uuid.UUID) (*Summary, error) {
	if _, err := s.alerts.EvaluateMissingData(ctx, patientID); err != nil {
		return nil, fmt.Errorf("evaluate missing data: %w", err)
	}

	history, err := s.observations.History(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("load observations: %w", err)
	}
	active, err := s.alerts.ListActiveAlerts(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("load active alerts: %w", err)
	}
	open, err := s.alerts.ListAlerts(ctx, patientID, false)
	if err != nil {
		return nil, fmt.Errorf("load alerts: %w", err)
	}
	underCare, err := s.careplans.HasAnyRevision(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("check care plan: %w", err)
	}

	out := &Summary{
		PatientID:      patientID,
		CarePlanActive: underCare,
		ActiveAlerts:   len(active),
		Alerts:         make([]AlertSummary, 0, len(open)),
		LastVitals:     map[string]Vital{},
		Timeseries:     []Series{},
	}
	for _, a := range open {
		out.Alerts = append(out.Alerts, AlertSummary{
			ID: a.ID, Code: a.Code, Severity: a.Severity, Status: a.Status,
			ObservedAt: a.ObservedAt, Message: a.Message(),
			AcknowledgedAt: a.AcknowledgedAt, ResolvedAt: a.ResolvedAt, ClosedAt: a.ClosedAt,
		})
	}

	// history is newest first; keep code order by first appearance.
	byCode := map[string][]*observation.Observation{}
	var codes []string
	for _, o := range history {
		if _, seen := byCode[o.Code]; !seen {
			codes = append(codes, o.Code)
			out.LastVitals[o.Code] = Vital{Value: o.Value(), Unit: o.Unit, Timestamp: o.EffectiveAt}
		}
		byCode[o.Code] = append(byCode[o.Code], o)
	}
	for _, code := range codes {
		recent := byCode[code]
		if len(recent) > seriesPoints {
			recent = recent[:seriesPoints]
		}
		points := make([]Point, len(recent))
		for i, o := range recent {
			points[len(recent)-1-i] = Point{T: o.EffectiveAt, V: o.Value()}
		}
		out.Timeseries = append(out.Timeseries, Series{Code: code, Points: points})
	}
	return out, nil
}
