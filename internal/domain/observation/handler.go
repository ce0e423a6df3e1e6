package observation

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/stanleysince1993/MedicAI/internal/platform/auth"
	"github.com/stanleysince1993/MedicAI/internal/platform/fhir"
	"github.com/stanleysince1993/MedicAI/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group, fhirGroup *echo.Group) {
	role := auth.RequireRole("physician", "nurse", "device")

	read := api.Group("", role)
	read.GET("/patients/:patientId/observations", h.ListObservations)

	fhirRead := fhirGroup.Group("", role)
	fhirRead.GET("/Observation", h.SearchObservationsFHIR)
}

func (h *Handler) ListObservations(c echo.Context) error {
	pid, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patientId")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), pid, c.QueryParam("code"), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) SearchObservationsFHIR(c echo.Context) error {
	pid, err := uuid.Parse(c.QueryParam("patient"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, fhir.InvalidOutcome("patient search parameter must be a patient id", "patient"))
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), pid, c.QueryParam("code"), pg.Limit, pg.Offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, fhir.ErrorOutcome(err.Error()))
	}
	resources := make([]map[string]interface{}, len(items))
	for i, o := range items {
		resources[i] = o.ToFHIR()
	}
	bundle, err := fhir.NewSearchBundle(resources, total, c.Request().URL.String())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, fhir.ErrorOutcome(err.Error()))
	}
	return c.JSON(http.StatusOK, bundle)
}
