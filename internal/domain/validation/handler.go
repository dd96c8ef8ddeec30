package validation

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dermview/dermview/internal/platform/auth"
	"github.com/dermview/dermview/pkg/pagination"
)

// Handler exposes the review lifecycle over HTTP. Reads double as the
// reconcile path for clients that missed a push while disconnected.
type Handler struct {
	svc *Service
}

// NewHandler creates a Handler over the service.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers the validation endpoints on the API group.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/validations", h.SubmitForReview)
	api.GET("/validations/:id", h.GetValidation)
	api.GET("/validations", h.ListValidations)

	review := api.Group("", auth.RequireRole("reviewer"))
	review.POST("/validations/:id/review", h.Review)
}

type submitRequest struct {
	SubjectID string          `json:"subject_id"`
	OwnerID   string          `json:"owner_id"`
	AIResult  json.RawMessage `json:"ai_result"`
}

// SubmitForReview handles POST /validations.
func (h *Handler) SubmitForReview(c echo.Context) error {
	var req submitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.svc.SubmitForReview(c.Request().Context(), req.SubjectID, req.OwnerID, req.AIResult)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, rec)
}

type reviewRequest struct {
	Decision     Status          `json:"decision"`
	ExpertResult json.RawMessage `json:"expert_result"`
	Comments     *string         `json:"comments"`
}

// Review handles POST /validations/:id/review. The reviewer identity comes
// from auth, never from the body.
func (h *Handler) Review(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req reviewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	reviewerID := auth.UserIDFromContext(c.Request().Context())

	rec, err := h.svc.Review(c.Request().Context(), id, reviewerID, req.Decision, req.ExpertResult, req.Comments)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

// GetValidation handles GET /validations/:id.
func (h *Handler) GetValidation(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rec, err := h.svc.GetValidation(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

// ListValidations handles GET /validations. status=pending serves reviewer
// work queues; owner_id=X serves owner refresh.
func (h *Handler) ListValidations(c echo.Context) error {
	pg := pagination.FromContext(c)

	if ownerID := c.QueryParam("owner_id"); ownerID != "" {
		items, total, err := h.svc.ListByOwner(c.Request().Context(), ownerID, pg.Limit, pg.Offset)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
	}

	if c.QueryParam("status") == string(StatusPending) {
		items, total, err := h.svc.ListPending(c.Request().Context(), pg.Limit, pg.Offset)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
	}

	return echo.NewHTTPError(http.StatusBadRequest, "owner_id or status=pending is required")
}

// toHTTPError maps the domain error taxonomy onto distinct status codes so
// callers can tell a lost review race from a missing record.
func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrMissingExpertResult):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
