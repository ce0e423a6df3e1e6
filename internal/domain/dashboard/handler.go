package dashboard

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/stanleysince1993/MedicAI/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole("physician", "nurse", "patient"))
	read.GET("/dashboard/:patientId", h.GetDashboard)
}

// onlyPatient reports whether the caller's sole clinical role is patient,
// which limits them to their own dashboard.
func onlyPatient(roles []string) bool {
	patient := false
	for _, r := range roles {
		switch r {
		case "patient":
			patient = true
		case "physician", "nurse", "admin":
			return false
		}
	}
	return patient
}

func (h *Handler) GetDashboard(c echo.Context) error {
	pid, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patientId")
	}
	ctx := c.Request().Context()
	if onlyPatient(auth.RolesFromContext(ctx)) && auth.UserIDFromContext(ctx) != pid.String() {
		return echo.NewHTTPError(http.StatusForbidden, "patients can only view their own dashboard")
	}
	summary, err := h.svc.Summary(ctx, pid)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, summary)
}
