package form

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ehr/portal/internal/platform/result"
	"github.com/ehr/portal/internal/platform/validation"
)

// Decode reads a JSON object body into form values. Numbers and booleans
// are rendered the way a user would type them; null becomes "".
func Decode(c echo.Context) (map[string]string, error) {
	raw := map[string]interface{}{}
	if err := json.NewDecoder(c.Request().Body).Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode form body: %w", err)
	}

	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch t := v.(type) {
		case nil:
			out[k] = ""
		case string:
			out[k] = t
		case float64:
			out[k] = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(t)
		default:
			return nil, fmt.Errorf("field %s: unsupported value", k)
		}
	}
	return out, nil
}

// Respond writes a submission as an envelope. Field errors from the form
// are reported like payload validation failures.
func Respond[T any](c echo.Context, okStatus int, sub Submission[T]) error {
	if len(sub.Fields) > 0 {
		return result.Respond(c, okStatus, result.Fail[T](validation.Errors(sub.Fields)))
	}
	return result.Respond(c, okStatus, sub.Result)
}
