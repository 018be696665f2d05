package notification

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/portal/internal/platform/auth"
	"github.com/ehr/portal/internal/platform/result"
	"github.com/ehr/portal/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/notifications", auth.RequireSession())
	g.GET("", h.ListNotifications)
	g.POST("", h.CreateNotification, auth.RequireRole(auth.RoleDoctor, auth.RoleNurse))
	g.GET("/unread-count", h.UnreadCount)
	g.PUT("/read-all", h.MarkAllRead)
	g.PUT("/:id/read", h.MarkRead)
	g.DELETE("/:id", h.DeleteNotification)
}

// recipient resolves whose inbox a request addresses: the caller's own, or
// for admins the recipient_id query parameter when present.
func recipient(c echo.Context) (uuid.UUID, error) {
	s, _ := auth.SessionFromContext(c.Request().Context())
	if raw := c.QueryParam("recipient_id"); raw != "" && s.Role == auth.RoleAdmin {
		return uuid.Parse(raw)
	}
	return uuid.Parse(s.UserID)
}

func (h *Handler) ListNotifications(c echo.Context) error {
	id, err := recipient(c)
	if err != nil {
		return result.BadRequest(c, "invalid recipient")
	}
	p := pagination.FromContext(c)
	res := h.svc.ListNotifications(c.Request().Context(), id, p.Limit, p.Offset)
	if res.Success() {
		p.SetLinkHeader(c, c.Request().URL.Path, res.Data().Total)
	}
	return result.Respond(c, http.StatusOK, res)
}

func (h *Handler) CreateNotification(c echo.Context) error {
	var n Notification
	if err := c.Bind(&n); err != nil {
		return result.BadRequest(c, "invalid request body")
	}
	return result.Respond(c, http.StatusCreated, h.svc.CreateNotification(c.Request().Context(), &n))
}

func (h *Handler) UnreadCount(c echo.Context) error {
	id, err := recipient(c)
	if err != nil {
		return result.BadRequest(c, "invalid recipient")
	}
	return result.Respond(c, http.StatusOK, h.svc.UnreadCount(c.Request().Context(), id))
}

func (h *Handler) MarkAllRead(c echo.Context) error {
	id, err := recipient(c)
	if err != nil {
		return result.BadRequest(c, "invalid recipient")
	}
	return result.Respond(c, http.StatusOK, h.svc.MarkAllRead(c.Request().Context(), id))
}

func (h *Handler) MarkRead(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return result.BadRequest(c, "invalid id")
	}
	ctx := c.Request().Context()
	current := h.svc.FetchNotification(ctx, id)
	if !current.Success() {
		return result.Respond(c, http.StatusOK, current)
	}
	if !mayTouch(c, current.Data()) {
		return forbidden()
	}
	return result.Respond(c, http.StatusOK, h.svc.MarkRead(ctx, id))
}

func (h *Handler) DeleteNotification(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return result.BadRequest(c, "invalid id")
	}
	ctx := c.Request().Context()
	current := h.svc.FetchNotification(ctx, id)
	if !current.Success() {
		return result.Respond(c, http.StatusOK, current)
	}
	if !mayTouch(c, current.Data()) {
		return forbidden()
	}
	return result.Respond(c, http.StatusOK, h.svc.DeleteNotification(ctx, id))
}

func forbidden() error {
	return echo.NewHTTPError(http.StatusForbidden, "access to another user's notifications is not allowed")
}

// mayTouch reports whether the caller is the recipient of n or an admin.
func mayTouch(c echo.Context, n *Notification) bool {
	s, _ := auth.SessionFromContext(c.Request().Context())
	return s.Role == auth.RoleAdmin || n.RecipientID.String() == s.UserID
}
