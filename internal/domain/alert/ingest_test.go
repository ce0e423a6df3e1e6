package alert

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/stanleysince1993/MedicAI/internal/domain/observation"
)

func TestHandleDeviceMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	topic := "medicai/observations/" + f.pid.String()
	if err := f.eng.HandleDeviceMessage(ctx, topic, []byte(`{"observations":[{"code":"spo2","value":85,"unit":"%","source":"oximeter"}]}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	active, _ := f.alerts.ListActiveByPatient(ctx, f.pid)
	if len(active) != 1 || active[0].RuleID != RuleLowSpO2 {
		t.Errorf("expected low_spo2 alert, got %+v", active)
	}
}

func TestHandleDeviceMessage_Rejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	good := "medicai/observations/" + uuid.New().String()

	if err := f.eng.HandleDeviceMessage(ctx, "medicai/observations/nope", []byte(`{}`)); err == nil {
		t.Error("expected bad topic error")
	}
	if err := f.eng.HandleDeviceMessage(ctx, good, []byte(`not json`)); err == nil {
		t.Error("expected decode error")
	}

	err := f.eng.HandleDeviceMessage(ctx, good, []byte(`{"observations":[{"code":"glucose","value":900}]}`))
	var verr *observation.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("expected ValidationError, got %v", err)
	}

	if err := f.eng.HandleDeviceMessage(ctx, good, []byte(`{"observations":[]}`)); err != nil {
		t.Errorf("empty batch should be ignored, got %v", err)
	}
}
