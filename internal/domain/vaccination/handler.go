package vaccination

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/vaxcheck/vaxcheck/internal/platform/fhir"
	"github.com/vaxcheck/vaxcheck/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/verifications", h.Verify)
	if h.svc.EventsEnabled() {
		api.GET("/verifications", h.ListEvents)
	}
}

// VerifyRequest is the body of POST /verifications.
type VerifyRequest struct {
	Credential string `json:"credential"`
}

func (h *Handler) Verify(c echo.Context) error {
	var req VerifyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, fhir.ValidationOutcome("credential", "request body must be JSON"))
	}
	if strings.TrimSpace(req.Credential) == "" {
		return c.JSON(http.StatusBadRequest, fhir.ValidationOutcome("credential", "is required"))
	}

	report, err := h.svc.Verify(c.Request().Context(), req.Credential)
	if err != nil {
		return verifyError(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

func verifyError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, ErrDecodeFailure):
		return c.JSON(http.StatusUnprocessableEntity, fhir.StructureOutcome(err.Error()))
	case errors.Is(err, ErrInvalidRootShape):
		return c.JSON(http.StatusUnprocessableEntity, fhir.StructureOutcome(err.Error()))
	case IsValidationError(err):
		return c.JSON(http.StatusUnprocessableEntity, fhir.BusinessRuleOutcome(err.Error()))
	default:
		return c.JSON(http.StatusInternalServerError, fhir.InternalErrorOutcome(err.Error()))
	}
}

func (h *Handler) ListEvents(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListEvents(c.Request().Context(), pg.Limit, pg.Offset)
	if errors.Is(err, ErrEventsDisabled) {
		return c.JSON(http.StatusNotFound, fhir.NewOperationOutcome(fhir.IssueSeverityError, fhir.IssueTypeNotFound, err.Error()))
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	resp := pagination.NewResponse(items, total, pg)
	resp.Links = pg.Links(c.Request().URL.Path, total)
	return c.JSON(http.StatusOK, resp)
}
