package careplan

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
	read := api.Group("", auth.RequireRole("physician", "nurse"))
	read.GET("/patients/:patientId/care-plan-revisions", h.ListRevisions)

	write := api.Group("", auth.RequireRole("physician"))
	write.POST("/patients/:patientId/care-plan-revisions", h.CreateRevision)

	fhirRead := fhirGroup.Group("", auth.RequireRole("physician", "nurse"))
	fhirRead.GET("/CarePlan", h.SearchCarePlansFHIR)
}

func (h *Handler) CreateRevision(c echo.Context) error {
	pid, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patientId")
	}
	var rev Revision
	if err := c.Bind(&rev); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rev.PatientID = pid
	if uid := auth.UserIDFromContext(c.Request().Context()); uid != "" {
		rev.CreatedBy = uid
	}
	if err := h.svc.CreateRevision(c.Request().Context(), &rev); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, rev)
}

func (h *Handler) ListRevisions(c echo.Context) error {
	pid, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patientId")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListRevisions(c.Request().Context(), pid, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) SearchCarePlansFHIR(c echo.Context) error {
	pid, err := uuid.Parse(c.QueryParam("patient"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, fhir.InvalidOutcome("patient search parameter must be a patient id", "patient"))
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListRevisions(c.Request().Context(), pid, pg.Limit, pg.Offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, fhir.ErrorOutcome(err.Error()))
	}
	resources := make([]map[string]interface{}, len(items))
	for i, r := range items {
		resources[i] = r.ToFHIR()
	}
	bundle, err := fhir.NewSearchBundle(resources, total, c.Request().URL.String())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, fhir.ErrorOutcome(err.Error()))
	}
	return c.JSON(http.StatusOK, bundle)
}
