package settings

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/portal/internal/platform/auth"
	"github.com/ehr/portal/internal/platform/form"
	"github.com/ehr/portal/internal/platform/result"
)

type Handler struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	owner := auth.SelfOrRole("user_id", auth.RoleAdmin)
	api.GET("/settings/:user_id", h.GetSettings, owner)
	api.PUT("/settings/:user_id", h.UpdateSettings, owner)
}

// role picks the role used to provision a missing row: the caller's own for
// self requests, otherwise the role query parameter.
func role(c echo.Context) string {
	s, _ := auth.SessionFromContext(c.Request().Context())
	if s.UserID == c.Param("user_id") {
		return s.Role
	}
	return c.QueryParam("role")
}

func (h *Handler) GetSettings(c echo.Context) error {
	userID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		return result.BadRequest(c, "invalid user_id")
	}
	return result.Respond(c, http.StatusOK, h.svc.FetchSettings(c.Request().Context(), userID, role(c)))
}

// UpdateSettings loads (or provisions) the stored settings into the modal
// and applies the fields present in the body.
func (h *Handler) UpdateSettings(c echo.Context) error {
	userID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		return result.BadRequest(c, "invalid user_id")
	}
	values, err := form.Decode(c)
	if err != nil {
		return result.BadRequest(c, "invalid request body")
	}

	ctx := c.Request().Context()
	current := h.svc.FetchSettings(ctx, userID, role(c))
	if !current.Success() {
		return result.Respond(c, http.StatusOK, current)
	}

	m := NewModal(h.svc, nil, h.logger)
	m.OpenEdit(userID.String(), current.Data().Values())
	m.Form().Fill(values)
	sub, err := m.Submit(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return form.Respond(c, http.StatusOK, sub)
}
