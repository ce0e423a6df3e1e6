package alert

import (
	"time"

	"github.com/google/uuid"

	"github.com/stanleysince1993/MedicAI/internal/platform/fhir"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

type Status string

const (
	StatusOpen         Status = "open"
	StatusAcknowledged Status = "acknowledged"
	StatusResolved     Status = "resolved"
	StatusClosed       Status = "closed"
)

// Alert maps to the alerts table. RuleID duplicates context["rule"] so the
// store can index active alerts per (patient, rule).
type Alert struct {
	ID             uuid.UUID              `db:"id" json:"id"`
	PatientID      uuid.UUID              `db:"patient_id" json:"patient_id"`
	RuleID         string                 `db:"rule_id" json:"rule_id"`
	Code           string                 `db:"code" json:"code"`
	Value          interface{}            `db:"-" json:"value"`
	Unit           string                 `db:"unit" json:"unit"`
	ObservedAt     time.Time              `db:"observed_at" json:"observed_at"`
	Severity       Severity               `db:"severity" json:"severity"`
	Status         Status                 `db:"status" json:"status"`
	CreatedAt      time.Time              `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time              `db:"updated_at" json:"updated_at"`
	AcknowledgedAt *time.Time             `db:"acknowledged_at" json:"acknowledged_at,omitempty"`
	AcknowledgedBy *string                `db:"acknowledged_by" json:"acknowledged_by,omitempty"`
	ResolvedAt     *time.Time             `db:"resolved_at" json:"resolved_at,omitempty"`
	ResolvedBy     *string                `db:"resolved_by" json:"resolved_by,omitempty"`
	ClosedAt       *time.Time             `db:"closed_at" json:"closed_at,omitempty"`
	ClosedBy       *string                `db:"closed_by" json:"closed_by,omitempty"`
	Context        map[string]interface{} `db:"context" json:"context"`
	Timeline       []*TimelineEntry       `db:"-" json:"timeline,omitempty"`
}

// TimelineEntry maps to the alert_timeline table. Rows are append-only.
type TimelineEntry struct {
	ID        uuid.UUID `db:"id" json:"id"`
	AlertID   uuid.UUID `db:"alert_id" json:"alert_id"`
	Status    Status    `db:"status" json:"status"`
	ActorID   *string   `db:"actor_id" json:"actor_id"`
	Notes     *string   `db:"notes" json:"notes"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// IsActive reports whether the alert still counts against the one-per-rule limit.
func (a *Alert) IsActive() bool {
	return a.Status == StatusOpen || a.Status == StatusAcknowledged
}

// Message returns the human-readable message stored in the context.
func (a *Alert) Message() string {
	m, _ := a.Context["message"].(string)
	return m
}

// numericValue splits Value into its storage columns.
func (a *Alert) numericValue() (*float64, string) {
	switch v := a.Value.(type) {
	case float64:
		return &v, ""
	case nil:
		return nil, ""
	case string:
		return nil, v
	default:
		if f, ok := toFloat(v); ok {
			return &f, ""
		}
		return nil, ""
	}
}

func (a *Alert) setValue(numeric *float64, text string) {
	if numeric != nil {
		a.Value = *numeric
		return
	}
	a.Value = text
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func (a *Alert) clone() *Alert {
	cp := *a
	cp.Context = make(map[string]interface{}, len(a.Context))
	for k, v := range a.Context {
		cp.Context[k] = v
	}
	cp.Timeline = make([]*TimelineEntry, len(a.Timeline))
	for i, e := range a.Timeline {
		ec := *e
		cp.Timeline[i] = &ec
	}
	return &cp
}

// ToFHIR renders the alert as a FHIR Flag.
func (a *Alert) ToFHIR() map[string]interface{} {
	status := "inactive"
	if a.IsActive() {
		status = "active"
	}
	created := a.CreatedAt
	period := fhir.Period{Start: &created}
	if a.ClosedAt != nil {
		period.End = a.ClosedAt
	} else if a.ResolvedAt != nil {
		period.End = a.ResolvedAt
	}
	return map[string]interface{}{
		"resourceType": "Flag",
		"id":           a.ID.String(),
		"status":       status,
		"category": []fhir.CodeableConcept{{
			Coding: []fhir.Coding{{
				System:  "http://terminology.hl7.org/CodeSystem/flag-category",
				Code:    "clinical",
				Display: "Clinical",
			}},
		}},
		"code": fhir.CodeableConcept{
			Coding: []fhir.Coding{{System: "urn:medicai:alert-rule", Code: a.RuleID}},
			Text:   a.Message(),
		},
		"subject": fhir.Reference{Reference: fhir.FormatReference("Patient", a.PatientID.String())},
		"period":  period,
		"extension": []fhir.Extension{
			{URL: "urn:medicai:alert-severity", ValueCode: string(a.Severity)},
			{URL: "urn:medicai:alert-lifecycle-status", ValueCode: string(a.Status)},
		},
		"meta": fhir.Meta{LastUpdated: a.UpdatedAt},
	}
}
