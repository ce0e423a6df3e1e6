package alert

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/stanleysince1993/MedicAI/internal/domain/observation"
	"github.com/stanleysince1993/MedicAI/internal/platform/auth"
	"github.com/stanleysince1993/MedicAI/internal/platform/fhir"
	"github.com/stanleysince1993/MedicAI/internal/platform/metrics"
)

type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

func (h *Handler) RegisterRoutes(api *echo.Group, fhirGroup *echo.Group) {
	ingest := api.Group("", auth.RequireRole("physician", "nurse", "device"))
	ingest.POST("/observations/batch", h.IngestBatch)

	read := api.Group("", auth.RequireRole("physician", "nurse"))
	read.GET("/alerts/:id", h.GetAlert)
	read.GET("/alerts/:id/timeline", h.GetTimeline)
	read.GET("/patients/:patientId/alerts", h.ListAlerts)
	read.POST("/alerts/:id/status", h.UpdateStatus)

	fhirRead := fhirGroup.Group("", auth.RequireRole("physician", "nurse"))
	fhirRead.GET("/Flag/:id", h.GetFlagFHIR)
}

type batchRequest struct {
	PatientID    string              `json:"patient_id"`
	Observations []observation.Input `json:"observations"`
}

type batchResponse struct {
	Ingested        int      `json:"ingested"`
	GeneratedAlerts []*Alert `json:"generated_alerts"`
}

func (h *Handler) IngestBatch(c echo.Context) error {
	var req batchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	pid, err := uuid.Parse(req.PatientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
	}
	if len(req.Observations) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "observations must not be empty")
	}
	created, err := h.engine.ProcessBatch(c.Request().Context(), pid, req.Observations)
	if err != nil {
		var verr *observation.ValidationError
		if errors.As(err, &verr) {
			metrics.BatchesRejected.WithLabelValues("http").Inc()
		}
		return errorResponse(c, err)
	}
	if created == nil {
		created = []*Alert{}
	}
	return c.JSON(http.StatusCreated, batchResponse{Ingested: len(req.Observations), GeneratedAlerts: created})
}

type statusRequest struct {
	Status string  `json:"status"`
	Notes  *string `json:"notes"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	to, err := ParseStatus(req.Status)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.UserIDFromContext(c.Request().Context())
	a, err := h.engine.Transition(c.Request().Context(), id, to, actor, req.Notes)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) GetAlert(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.engine.GetAlert(c.Request().Context(), id)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) GetTimeline(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	entries, err := h.engine.Timeline(c.Request().Context(), id)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"alert_id": id, "timeline": entries})
}

func (h *Handler) ListAlerts(c echo.Context) error {
	pid, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patientId")
	}
	includeClosed := false
	if v := c.QueryParam("include_closed"); v != "" {
		if includeClosed, err = strconv.ParseBool(v); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "include_closed must be a boolean")
		}
	}
	items, err := h.engine.ListAlerts(c.Request().Context(), pid, includeClosed)
	if err != nil {
		return errorResponse(c, err)
	}
	if items == nil {
		items = []*Alert{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"alerts": items})
}

func (h *Handler) GetFlagFHIR(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, fhir.InvalidOutcome("invalid id", "id"))
	}
	a, err := h.engine.GetAlert(c.Request().Context(), id)
	if err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			return c.JSON(http.StatusNotFound, fhir.NotFoundOutcome("Flag", c.Param("id")))
		}
		return c.JSON(http.StatusInternalServerError, fhir.ErrorOutcome(err.Error()))
	}
	return c.JSON(http.StatusOK, a.ToFHIR())
}

// errorResponse maps engine errors onto HTTP statuses.
func errorResponse(c echo.Context, err error) error {
	var verr *observation.ValidationError
	var terr *InvalidTransitionError
	var nf *NotFoundError
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusUnprocessableEntity, ValidationOutcome(verr))
	case errors.As(err, &terr):
		return echo.NewHTTPError(http.StatusBadRequest, terr.Error())
	case errors.As(err, &nf):
		return echo.NewHTTPError(http.StatusNotFound, nf.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

// ValidationOutcome describes a rejected observation, pointing at it by its
// index in the batch.
func ValidationOutcome(verr *observation.ValidationError) *fhir.OperationOutcome {
	expr := "observations"
	if verr.Index >= 0 {
		expr = fmt.Sprintf("observations[%d]", verr.Index)
	}
	o := fhir.InvalidOutcome(verr.Error(), expr+".value")
	o.Issue[0].Details = &fhir.CodeableConcept{
		Coding: []fhir.Coding{
			{System: "urn:medicai:observation-code", Code: verr.Code},
			{System: "http://unitsofmeasure.org", Code: verr.Unit},
		},
		Text: fmt.Sprintf("code=%s unit=%s value=%v", verr.Code, verr.Unit, verr.Value),
	}
	return o
}
