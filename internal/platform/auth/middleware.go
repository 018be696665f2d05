package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// SessionMiddleware resolves a bearer token, when present, into a Session on
// the request context. Requests without a token pass through anonymous; an
// invalid token is rejected. Browsers cannot set headers on WebSocket
// upgrades, so the token is also read from the access_token query parameter.
func SessionMiddleware(tokens *TokenIssuer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, err := bearerToken(c)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
			}
			if raw == "" {
				return next(c)
			}

			s, err := tokens.Parse(raw)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			c.SetRequest(c.Request().WithContext(WithSession(c.Request().Context(), s)))
			return next(c)
		}
	}
}

var errInvalidAuthFormat = errors.New("invalid authorization format")

func bearerToken(c echo.Context) (string, error) {
	header := c.Request().Header.Get("Authorization")
	if header == "" {
		return c.QueryParam("access_token"), nil
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", errInvalidAuthFormat
	}
	return strings.TrimSpace(parts[1]), nil
}

// RequireSession rejects anonymous requests.
func RequireSession() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := SessionFromContext(c.Request().Context()); !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}
			return next(c)
		}
	}
}

// DevSession signs every anonymous request in as role. It is only mounted
// when ENV=development.
func DevSession(userID, role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := SessionFromContext(c.Request().Context()); !ok {
				s := Session{UserID: userID, Role: role}
				c.SetRequest(c.Request().WithContext(WithSession(c.Request().Context(), s)))
			}
			return next(c)
		}
	}
}
