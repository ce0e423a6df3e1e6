package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestAlertsRaisedCounter(t *testing.T) {
	before := testutil.ToFloat64(AlertsRaised.WithLabelValues("low_spo2", "critical"))
	AlertsRaised.WithLabelValues("low_spo2", "critical").Inc()
	after := testutil.ToFloat64(AlertsRaised.WithLabelValues("low_spo2", "critical"))
	if after != before+1 {
		t.Errorf("expected counter to increase by 1, got %v -> %v", before, after)
	}
}

func TestHandler_ExposesMetrics(t *testing.T) {
	ObservationsIngested.WithLabelValues("spo2").Inc()

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/metrics", nil), rec)
	if err := Handler()(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "medicai_observations_ingested_total") {
		t.Error("expected observation counter in exposition")
	}
}
