package observation

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNormalize_Valid(t *testing.T) {
	tests := []struct {
		code, unit string
		raw        interface{}
		wantCode   string
		want       float64
	}{
		{" SpO2 ", "%", 95.0, "spo2", 95},
		{"heart_rate", "BPM", "72", "heart_rate", 72},
		{"HR", "", 80, "hr", 80},
		{"glucose", "mg/dL", json.Number("120.5"), "glucose", 120.5},
		{"glucose", "MMOL/L", " 54 ", "glucose", 54},
		{"temperature", "C", 37.2, "temperature", 37.2},
		{"weight", "lb", int64(180), "weight", 180},
		{"spo2", "%", 0.0, "spo2", 0},
		{"spo2", "%", 100.0, "spo2", 100},
		{"respiratory_rate", "breaths/min", 16.0, "respiratory_rate", 16},
	}
	for _, tt := range tests {
		code, num, err := Normalize(tt.code, tt.unit, tt.raw)
		if err != nil {
			t.Errorf("Normalize(%q, %q, %v) unexpected error: %v", tt.code, tt.unit, tt.raw, err)
			continue
		}
		if code != tt.wantCode {
			t.Errorf("Normalize(%q) code = %q, want %q", tt.code, code, tt.wantCode)
		}
		if num == nil || *num != tt.want {
			t.Errorf("Normalize(%q, %v) value = %v, want %v", tt.code, tt.raw, num, tt.want)
		}
	}
}

func TestNormalize_Invalid(t *testing.T) {
	tests := []struct {
		name       string
		code, unit string
		raw        interface{}
		reason     string
	}{
		{"empty code", "  ", "%", 90.0, "code is required"},
		{"wrong unit", "spo2", "bpm", 90.0, "not allowed"},
		{"glucose above max", "glucose", "mg/dl", 900.0, "above maximum 800"},
		{"glucose below min", "glucose", "mg/dl", 10.0, "below minimum 20"},
		{"heart rate above max", "heart_rate", "bpm", 300.0, "above maximum 260"},
		{"spo2 non numeric", "spo2", "%", "low", "not numeric"},
		{"spo2 nil value", "spo2", "%", nil, "not numeric"},
		{"spo2 nan", "spo2", "%", "NaN", "not numeric"},
		{"temperature fahrenheit scale", "temperature", "f", 98.6, "above maximum 45"},
		{"weight zero", "weight", "kg", 0.0, "below minimum 1"},
	}
	for _, tt := range tests {
		_, _, err := Normalize(tt.code, tt.unit, tt.raw)
		if err == nil {
			t.Errorf("%s: expected error", tt.name)
			continue
		}
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("%s: expected *ValidationError, got %T", tt.name, err)
			continue
		}
		if !strings.Contains(verr.Reason, tt.reason) {
			t.Errorf("%s: reason %q does not mention %q", tt.name, verr.Reason, tt.reason)
		}
		if verr.Index != -1 {
			t.Errorf("%s: expected index -1 outside a batch, got %d", tt.name, verr.Index)
		}
	}
}

func TestNormalize_TextValueWithoutRange(t *testing.T) {
	code, num, err := Normalize("Mood", "", "anxious")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != "mood" || num != nil {
		t.Errorf("expected (mood, nil), got (%s, %v)", code, num)
	}

	_, num, err = Normalize("steps", "", math.Inf(1))
	if err != nil || num != nil {
		t.Errorf("expected infinite value to be kept as text only, got %v, %v", num, err)
	}
}

func TestNormalizeBatch(t *testing.T) {
	pid := uuid.New()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	at := now.Add(-time.Minute)
	obs, err := NormalizeBatch(pid, []Input{
		{Code: "SPO2", Unit: "%", Value: 97.0, EffectiveAt: &at, Source: " pulse-ox "},
		{Code: "heart_rate", Unit: "bpm", Value: "81"},
	}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(obs) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(obs))
	}
	if obs[0].Code != "spo2" || obs[0].ValueText != "97" || !obs[0].EffectiveAt.Equal(at) || obs[0].Source != "pulse-ox" {
		t.Errorf("unexpected first observation %+v", obs[0])
	}
	if !obs[1].EffectiveAt.Equal(now) {
		t.Errorf("expected missing effective_at to default to now, got %s", obs[1].EffectiveAt)
	}
	if obs[0].PatientID != pid || obs[0].ID == uuid.Nil || obs[0].ID == obs[1].ID {
		t.Errorf("expected distinct ids for patient %s", pid)
	}
}

func TestNormalizeBatch_ReportsIndex(t *testing.T) {
	obs, err := NormalizeBatch(uuid.New(), []Input{
		{Code: "spo2", Unit: "%", Value: 95.0},
		{Code: "glucose", Unit: "mg/dl", Value: 900.0},
		{Code: "hr", Unit: "bpm", Value: 70.0},
	}, time.Now())
	if obs != nil {
		t.Errorf("expected no observations on failure, got %d", len(obs))
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if verr.Index != 1 || verr.Code != "glucose" {
		t.Errorf("expected index 1 glucose, got %d %s", verr.Index, verr.Code)
	}
	if !strings.HasPrefix(verr.Error(), "observation 1:") {
		t.Errorf("unexpected message %q", verr.Error())
	}
}
