package observation

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Codes are compared after trimming and lower-casing.
var allowedUnits = map[string][]string{
	"spo2":              {"%"},
	"oxygen_saturation": {"%"},
	"heart_rate":        {"bpm"},
	"hr":                {"bpm"},
	"glucose":           {"mg/dl", "mmol/l"},
	"weight":            {"kg", "lb"},
	"temperature":       {"c", "f"},
}

type bounds struct {
	Min *float64
	Max *float64
}

func bound(v float64) *float64 { return &v }

var valueLimits = map[string]bounds{
	"spo2":              {Min: bound(0), Max: bound(100)},
	"oxygen_saturation": {Min: bound(0), Max: bound(100)},
	"heart_rate":        {Min: bound(20), Max: bound(260)},
	"hr":                {Min: bound(20), Max: bound(260)},
	"glucose":           {Min: bound(20), Max: bound(800)},
	"temperature":       {Min: bound(30), Max: bound(45)},
	"weight":            {Min: bound(1), Max: bound(500)},
}

// ValidationError rejects a single observation. Index is its position in the
// submitted batch, or -1 outside a batch.
type ValidationError struct {
	Index  int
	Code   string
	Unit   string
	Value  interface{}
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("observation %d: %s", e.Index, e.Reason)
	}
	return e.Reason
}

// Normalize canonicalizes code and checks unit and value against the
// registered tables. The numeric value is nil when raw is not a finite number
// and the code has no registered range.
func Normalize(code, unit string, raw interface{}) (string, *float64, error) {
	canonical := strings.ToLower(strings.TrimSpace(code))
	fail := func(format string, args ...interface{}) (string, *float64, error) {
		return "", nil, &ValidationError{Index: -1, Code: canonical, Unit: unit, Value: raw, Reason: fmt.Sprintf(format, args...)}
	}
	if canonical == "" {
		return fail("observation code is required")
	}

	if allowed, ok := allowedUnits[canonical]; ok {
		if u := strings.ToLower(strings.TrimSpace(unit)); u != "" && !contains(allowed, u) {
			return fail("unit %q is not allowed for %s (allowed: %s)", unit, canonical, strings.Join(allowed, ", "))
		}
	}

	num, numeric := toFloat(raw)
	limits, ranged := valueLimits[canonical]
	if !ranged {
		if !numeric {
			return canonical, nil, nil
		}
		return canonical, &num, nil
	}

	if !numeric {
		return fail("value %v for %s is not numeric", raw, canonical)
	}
	if limits.Min != nil && num < *limits.Min {
		return fail("value %g below minimum %g for %s", num, *limits.Min, canonical)
	}
	if limits.Max != nil && num > *limits.Max {
		return fail("value %g above maximum %g for %s", num, *limits.Max, canonical)
	}
	return canonical, &num, nil
}

// NormalizeBatch builds observation records for every input or fails on the
// first invalid one, in which case nothing is returned.
func NormalizeBatch(patientID uuid.UUID, inputs []Input, now time.Time) ([]*Observation, error) {
	out := make([]*Observation, 0, len(inputs))
	for i, in := range inputs {
		code, num, err := Normalize(in.Code, in.Unit, in.Value)
		if err != nil {
			verr := err.(*ValidationError)
			verr.Index = i
			return nil, verr
		}
		effective := now
		if in.EffectiveAt != nil && !in.EffectiveAt.IsZero() {
			effective = *in.EffectiveAt
		}
		out = append(out, &Observation{
			ID:           uuid.New(),
			PatientID:    patientID,
			Code:         code,
			ValueText:    valueText(in.Value),
			ValueNumeric: num,
			Unit:         strings.TrimSpace(in.Unit),
			EffectiveAt:  effective.UTC(),
			Source:       strings.TrimSpace(in.Source),
			CreatedAt:    now.UTC(),
		})
	}
	return out, nil
}

func toFloat(raw interface{}) (float64, bool) {
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func valueText(raw interface{}) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func contains(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
