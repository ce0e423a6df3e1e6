package observation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func newTestHandler(t *testing.T) (*Handler, *echo.Echo, uuid.UUID) {
	t.Helper()
	repo := NewMemoryRepo()
	pid := uuid.New()
	seed(t, repo, pid, time.Now(), "hr", 1, 2, 3)
	return NewHandler(NewService(repo)), echo.New(), pid
}

func TestHandler_ListObservations(t *testing.T) {
	h, e, pid := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/?code=HR&limit=2", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("patientId"); c.SetParamValues(pid.String())
	if err := h.ListObservations(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Data    []Observation `json:"data"`
		Total   int           `json:"total"`
		HasMore bool          `json:"has_more"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if len(body.Data) != 2 || body.Total != 3 || !body.HasMore {
		t.Errorf("unexpected page %+v", body)
	}
}

func TestHandler_ListObservations_BadPatient(t *testing.T) {
	h, e, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("patientId"); c.SetParamValues("nope")
	err := h.ListObservations(c)
	if he, ok := err.(*echo.HTTPError); !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_SearchObservationsFHIR(t *testing.T) {
	h, e, pid := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/fhir/Observation?patient="+pid.String(), nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := h.SearchObservationsFHIR(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var bundle map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &bundle)
	if bundle["resourceType"] != "Bundle" {
		t.Errorf("expected Bundle, got %v", bundle["resourceType"])
	}
	if entries, _ := bundle["entry"].([]interface{}); len(entries) != 3 {
		t.Errorf("expected 3 entries, got %d", len(entries))
	}
}

func TestHandler_SearchObservationsFHIR_MissingPatient(t *testing.T) {
	h, e, _ := newTestHandler(t)
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/fhir/Observation", nil), rec)
	if err := h.SearchObservationsFHIR(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestService_ListByPatient_RequiresPatient(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	if _, _, err := svc.ListByPatient(context.Background(), uuid.Nil, "", 10, 0); err == nil {
		t.Error("expected error")
	}
}
