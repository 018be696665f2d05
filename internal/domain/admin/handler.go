package admin

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/portal/internal/platform/auth"
	"github.com/ehr/portal/internal/platform/form"
	"github.com/ehr/portal/internal/platform/media"
	"github.com/ehr/portal/internal/platform/result"
	"github.com/ehr/portal/pkg/pagination"
)

type Handler struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// RegisterRoutes mounts the admin profile routes. Every route is admin only.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/admins", auth.RequireRole(auth.RoleAdmin))
	g.GET("", h.ListAdmins)
	g.POST("", h.CreateAdmin)
	g.GET("/:id", h.GetAdmin)
	g.PUT("/:id", h.UpdateAdmin)
	g.POST("/:id/image", h.UploadImage)
}

func (h *Handler) ListAdmins(c echo.Context) error {
	p := pagination.FromContext(c)
	res := h.svc.ListAdmins(c.Request().Context(), p.Limit, p.Offset)
	if res.Success() {
		p.SetLinkHeader(c, c.Request().URL.Path, res.Data().Total)
	}
	return result.Respond(c, http.StatusOK, res)
}

func (h *Handler) GetAdmin(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return result.BadRequest(c, "invalid id")
	}
	return result.Respond(c, http.StatusOK, h.svc.FetchAdmin(c.Request().Context(), id))
}

func (h *Handler) CreateAdmin(c echo.Context) error {
	values, err := form.Decode(c)
	if err != nil {
		return result.BadRequest(c, "invalid request body")
	}

	m := NewModal(h.svc, nil, h.logger)
	m.OpenCreate()
	m.Form().Fill(values)
	sub, err := m.Submit(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return form.Respond(c, http.StatusCreated, sub)
}

func (h *Handler) UpdateAdmin(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return result.BadRequest(c, "invalid id")
	}
	values, err := form.Decode(c)
	if err != nil {
		return result.BadRequest(c, "invalid request body")
	}

	ctx := c.Request().Context()
	current := h.svc.FetchAdmin(ctx, id)
	if !current.Success() {
		return result.Respond(c, http.StatusOK, current)
	}

	m := NewModal(h.svc, nil, h.logger)
	m.OpenEdit(id.String(), current.Data().Values())
	m.Form().Fill(values)
	sub, err := m.Submit(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return form.Respond(c, http.StatusOK, sub)
}

func (h *Handler) UploadImage(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return result.BadRequest(c, "invalid id")
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return result.BadRequest(c, media.ErrEmptyImage.Error())
	}
	img, err := media.FromMultipart(fh)
	if err != nil {
		return result.BadRequest(c, err.Error())
	}

	res := h.svc.UploadAdminImage(c.Request().Context(), id, img)
	if errors.Is(res.Err(), media.ErrImageTooLarge) {
		return c.JSON(http.StatusRequestEntityTooLarge, res.Envelope())
	}
	return result.Respond(c, http.StatusOK, res)
}
