package auth

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/portal/internal/platform/result"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/auth/token", h.SignIn)
	api.GET("/auth/session", h.CurrentSession, RequireSession())
	api.PUT("/auth/password", h.UpdatePassword, RequireSession())
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type passwordRequest struct {
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (h *Handler) SignIn(c echo.Context) error {
	var req signInRequest
	if err := c.Bind(&req); err != nil {
		return result.BadRequest(c, "invalid request body")
	}
	res := h.svc.SignIn(c.Request().Context(), req.Email, req.Password)
	if !res.Success() && errors.Is(res.Err(), ErrInvalidCredentials) {
		return c.JSON(http.StatusUnauthorized, res.Envelope())
	}
	return result.Respond(c, http.StatusOK, res)
}

func (h *Handler) CurrentSession(c echo.Context) error {
	s, _ := SessionFromContext(c.Request().Context())
	return c.JSON(http.StatusOK, result.Ok(s).Envelope())
}

func (h *Handler) UpdatePassword(c echo.Context) error {
	var req passwordRequest
	if err := c.Bind(&req); err != nil {
		return result.BadRequest(c, "invalid request body")
	}
	s, _ := SessionFromContext(c.Request().Context())
	res := h.svc.UpdatePassword(c.Request().Context(), s, req.Password, req.ConfirmPassword)
	return result.Respond(c, http.StatusOK, res)
}
