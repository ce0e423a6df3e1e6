package alert

import (
	"fmt"
	"time"

	"github.com/stanleysince1993/MedicAI/internal/domain/observation"
)

type RuleKind string

const (
	KindThresholdLT RuleKind = "threshold-lt"
	KindThresholdGT RuleKind = "threshold-gt"
	KindDelta       RuleKind = "delta"
)

const (
	RuleLowSpO2      = "low_spo2"
	RuleLowGlucose   = "low_glucose"
	RuleHighGlucose  = "high_glucose"
	RuleHRDeltaSpike = "hr_delta_spike"
	RuleMissingData  = "missing_data"
)

// Rule is one catalog entry. For delta rules Threshold is the minimum
// increase and Window bounds how old the baseline may be. Message is a
// format string only for delta rules, where it receives the delta.
type Rule struct {
	ID        string
	Codes     []string
	Kind      RuleKind
	Threshold float64
	Window    time.Duration
	Severity  Severity
	Message   string
}

func (r Rule) appliesTo(code string) bool {
	for _, c := range r.Codes {
		if c == code {
			return true
		}
	}
	return false
}

type Catalog []Rule

var DefaultCatalog = Catalog{
	{ID: RuleLowSpO2, Codes: []string{"spo2", "oxygen_saturation"}, Kind: KindThresholdLT, Threshold: 88, Severity: SeverityCritical, Message: "SpO2 below 88%"},
	{ID: RuleLowGlucose, Codes: []string{"glucose"}, Kind: KindThresholdLT, Threshold: 54, Severity: SeverityCritical, Message: "Glucose below 54 mg/dL"},
	{ID: RuleHighGlucose, Codes: []string{"glucose"}, Kind: KindThresholdGT, Threshold: 400, Severity: SeverityWarning, Message: "Glucose above 400 mg/dL"},
	{ID: RuleHRDeltaSpike, Codes: []string{"heart_rate", "hr"}, Kind: KindDelta, Threshold: 40, Window: 10 * time.Minute, Severity: SeverityWarning, Message: "Increase of %.1f bpm in under 10 minutes"},
}

// Candidate is a rule match that has not yet passed deduplication.
type Candidate struct {
	RuleID   string
	Severity Severity
	Message  string
	Extras   map[string]interface{}
}

// EvaluateThresholds checks every threshold rule registered for the
// observation's code. Non-numeric values match nothing.
func (c Catalog) EvaluateThresholds(o *observation.Observation) []Candidate {
	if o.ValueNumeric == nil {
		return nil
	}
	v := *o.ValueNumeric
	var out []Candidate
	for _, r := range c {
		if !r.appliesTo(o.Code) {
			continue
		}
		var hit bool
		switch r.Kind {
		case KindThresholdLT:
			hit = v < r.Threshold
		case KindThresholdGT:
			hit = v > r.Threshold
		default:
			continue
		}
		if hit {
			out = append(out, Candidate{
				RuleID:   r.ID,
				Severity: r.Severity,
				Message:  r.Message,
				Extras:   map[string]interface{}{"threshold": r.Threshold},
			})
		}
	}
	return out
}

// DeltaRules returns the delta rules registered for code.
func (c Catalog) DeltaRules(code string) []Rule {
	var out []Rule
	for _, r := range c {
		if r.Kind == KindDelta && r.appliesTo(code) {
			out = append(out, r)
		}
	}
	return out
}

// EvaluateDelta compares o with the most recent observation in history that
// is strictly older than o and no older than the rule window. Only increases
// above the threshold produce a candidate.
func EvaluateDelta(r Rule, o *observation.Observation, history []*observation.Observation) *Candidate {
	if r.Kind != KindDelta || o.ValueNumeric == nil {
		return nil
	}
	since := o.EffectiveAt.Add(-r.Window)

	var prev *observation.Observation
	for _, h := range history {
		if h.ID == o.ID || h.Code != o.Code {
			continue
		}
		if !h.EffectiveAt.Before(o.EffectiveAt) || h.EffectiveAt.Before(since) {
			continue
		}
		if prev == nil || h.EffectiveAt.After(prev.EffectiveAt) {
			prev = h
		}
	}
	if prev == nil || prev.ValueNumeric == nil {
		return nil
	}

	delta := *o.ValueNumeric - *prev.ValueNumeric
	if delta <= r.Threshold {
		return nil
	}
	return &Candidate{
		RuleID:   r.ID,
		Severity: r.Severity,
		Message:  fmt.Sprintf(r.Message, delta),
		Extras: map[string]interface{}{
			"delta":       delta,
			"baseline":    *prev.ValueNumeric,
			"baseline_at": prev.EffectiveAt.UTC().Format(time.RFC3339),
		},
	}
}
