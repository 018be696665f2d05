package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// APIKeyHeader carries the project's anonymous key.
const APIKeyHeader = "apikey"

// APIKeyMiddleware requires the anonymous project key on every request not
// matched by skipper. The key may come in the apikey or X-API-Key header, or
// in the apikey query parameter for WebSocket upgrades. An empty key disables
// the check.
func APIKeyMiddleware(key string, skipper middleware.Skipper) echo.MiddlewareFunc {
	if skipper == nil {
		skipper = middleware.DefaultSkipper
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if key == "" || skipper(c) {
				return next(c)
			}

			got := c.Request().Header.Get(APIKeyHeader)
			if got == "" {
				got = c.Request().Header.Get("X-API-Key")
			}
			if got == "" {
				got = c.QueryParam(APIKeyHeader)
			}
			if got == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing api key")
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid api key")
			}
			return next(c)
		}
	}
}

// PathPrefixSkipper skips requests whose path starts with any prefix.
func PathPrefixSkipper(prefixes ...string) middleware.Skipper {
	return func(c echo.Context) bool {
		path := c.Request().URL.Path
		for _, p := range prefixes {
			if len(path) >= len(p) && path[:len(p)] == p {
				return true
			}
		}
		return false
	}
}
