package result

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/portal/internal/platform/validation"
)

// Respond writes r as an envelope. Field errors map to 422, not found to
// 404 and other failures to 400.
func Respond[T any](c echo.Context, okStatus int, r Result[T]) error {
	if r.Success() {
		return c.JSON(okStatus, r.Envelope())
	}

	env := r.Envelope()
	var fields validation.Errors
	switch {
	case errors.As(r.Err(), &fields):
		env.Code = "validation_failed"
		env.Fields = fields
		return c.JSON(http.StatusUnprocessableEntity, env)
	case r.NotFound():
		return c.JSON(http.StatusNotFound, env)
	default:
		return c.JSON(http.StatusBadRequest, env)
	}
}

// BadRequest writes a failure envelope for a malformed request.
func BadRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, Envelope{Error: msg})
}
