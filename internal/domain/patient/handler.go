package patient

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
	staff := auth.RequireRole(auth.RoleDoctor, auth.RoleNurse)
	selfOrStaff := auth.SelfOrRole("id", auth.RoleDoctor, auth.RoleNurse)

	api.GET("/patients", h.ListPatients, staff)
	api.GET("/patients/:id", h.GetPatient, selfOrStaff)
	api.POST("/patients", h.CreatePatient, staff)
	api.PUT("/patients/:id", h.UpdatePatient, selfOrStaff)
	api.DELETE("/patients/:id", h.DeletePatient, auth.RequireRole(auth.RoleDoctor))
	api.POST("/patients/:id/image", h.UploadImage, selfOrStaff)
}

// ListPatients defaults a doctor to their own patients.
func (h *Handler) ListPatients(c echo.Context) error {
	p := pagination.FromContext(c)
	doctorID := uuid.Nil
	if raw := c.QueryParam("doctor_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return result.BadRequest(c, "invalid doctor_id")
		}
		doctorID = id
	} else if s, _ := auth.SessionFromContext(c.Request().Context()); s.Role == auth.RoleDoctor {
		doctorID, _ = uuid.Parse(s.UserID)
	}

	res := h.svc.ListPatients(c.Request().Context(), doctorID, p.Limit, p.Offset)
	if res.Success() {
		p.SetLinkHeader(c, c.Request().URL.Path, res.Data().Total)
	}
	return result.Respond(c, http.StatusOK, res)
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return result.BadRequest(c, "invalid id")
	}
	return result.Respond(c, http.StatusOK, h.svc.FetchPatient(c.Request().Context(), id))
}

// CreatePatient runs the patient modal over the request body. A doctor
// creating a patient without naming a doctor becomes the assigned doctor.
func (h *Handler) CreatePatient(c echo.Context) error {
	values, err := form.Decode(c)
	if err != nil {
		return result.BadRequest(c, "invalid request body")
	}
	if s, _ := auth.SessionFromContext(c.Request().Context()); s.Role == auth.RoleDoctor && values["doctor_id"] == "" {
		values["doctor_id"] = s.UserID
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

func (h *Handler) UpdatePatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return result.BadRequest(c, "invalid id")
	}
	values, err := form.Decode(c)
	if err != nil {
		return result.BadRequest(c, "invalid request body")
	}

	ctx := c.Request().Context()
	current := h.svc.FetchPatient(ctx, id)
	if !current.Success() {
		return result.Respond(c, http.StatusOK, current)
	}
	if s, _ := auth.SessionFromContext(ctx); s.Role == auth.RolePatient {
		delete(values, "doctor_id")
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

func (h *Handler) DeletePatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return result.BadRequest(c, "invalid id")
	}
	return result.Respond(c, http.StatusOK, h.svc.DeletePatient(c.Request().Context(), id))
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

	res := h.svc.UploadPatientImage(c.Request().Context(), id, img)
	if errors.Is(res.Err(), media.ErrImageTooLarge) {
		return c.JSON(http.StatusRequestEntityTooLarge, res.Envelope())
	}
	return result.Respond(c, http.StatusOK, res)
}
