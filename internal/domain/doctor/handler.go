package doctor

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

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireSession())
	read.GET("/doctors", h.ListDoctors)
	read.GET("/doctors/:id", h.GetDoctor)

	api.POST("/doctors", h.CreateDoctor, auth.RequireRole(auth.RoleAdmin))
	api.PUT("/doctors/:id", h.UpdateDoctor, auth.SelfOrRole("id", auth.RoleAdmin))
	api.DELETE("/doctors/:id", h.DeleteDoctor, auth.RequireRole(auth.RoleAdmin))
	api.POST("/doctors/:id/image", h.UploadImage, auth.SelfOrRole("id", auth.RoleAdmin))
}

func (h *Handler) ListDoctors(c echo.Context) error {
	p := pagination.FromContext(c)
	res := h.svc.ListDoctors(c.Request().Context(), c.QueryParam("role"), p.Limit, p.Offset)
	if res.Success() {
		p.SetLinkHeader(c, c.Request().URL.Path, res.Data().Total)
	}
	return result.Respond(c, http.StatusOK, res)
}

func (h *Handler) GetDoctor(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return result.BadRequest(c, "invalid id")
	}
	return result.Respond(c, http.StatusOK, h.svc.FetchDoctor(c.Request().Context(), id))
}

// CreateDoctor runs the staff modal over the request body.
func (h *Handler) CreateDoctor(c echo.Context) error {
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

// UpdateDoctor opens the modal on the stored record and applies the fields
// present in the body.
func (h *Handler) UpdateDoctor(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return result.BadRequest(c, "invalid id")
	}
	values, err := form.Decode(c)
	if err != nil {
		return result.BadRequest(c, "invalid request body")
	}

	ctx := c.Request().Context()
	current := h.svc.FetchDoctor(ctx, id)
	if !current.Success() {
		return result.Respond(c, http.StatusOK, current)
	}
	if s, _ := auth.SessionFromContext(ctx); s.Role != auth.RoleAdmin {
		// staff may edit their own profile but not their role
		delete(values, "role")
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

func (h *Handler) DeleteDoctor(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return result.BadRequest(c, "invalid id")
	}
	return result.Respond(c, http.StatusOK, h.svc.DeleteDoctor(c.Request().Context(), id))
}

// UploadImage accepts a multipart "file" field.
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

	res := h.svc.UploadDoctorImage(c.Request().Context(), id, img)
	if errors.Is(res.Err(), media.ErrImageTooLarge) {
		return c.JSON(http.StatusRequestEntityTooLarge, res.Envelope())
	}
	return result.Respond(c, http.StatusOK, res)
}
