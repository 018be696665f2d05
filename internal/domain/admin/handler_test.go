package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/portal/internal/platform/auth"
)

type envelope struct {
	Success bool              `json:"success"`
	Data    json.RawMessage   `json:"data"`
	URL     string            `json:"url"`
	Error   string            `json:"error"`
	Fields  map[string]string `json:"fields"`
}

func newTestServer(svc *Service, role string) *echo.Echo {
	e := echo.New()
	session := auth.Session{UserID: uuid.New().String(), Role: role}
	api := e.Group("/api/v1", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.SetRequest(c.Request().WithContext(auth.WithSession(c.Request().Context(), session)))
			return next(c)
		}
	})
	NewHandler(svc, zerolog.Nop()).RegisterRoutes(api)
	return e
}

func doJSON(e *echo.Echo, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var env envelope
	json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func TestHandler_AdminOnly(t *testing.T) {
	svc, _, _ := newTestService()
	e := newTestServer(svc, auth.RoleDoctor)
	rec, _ := doJSON(e, http.MethodGet, "/api/v1/admins", "")
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}

func TestHandler_CreateAndUpdate(t *testing.T) {
	svc, _, _ := newTestService()
	e := newTestServer(svc, auth.RoleAdmin)

	rec, env := doJSON(e, http.MethodPost, "/api/v1/admins", `{"full_name":"Grace Hopper","email":"grace@clinic.org"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var a Admin
	json.Unmarshal(env.Data, &a)

	rec, env = doJSON(e, http.MethodPut, "/api/v1/admins/"+a.ID.String(), `{"phone":"12"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	json.Unmarshal(env.Data, &a)
	if a.Phone != "12" || a.Email != "grace@clinic.org" {
		t.Errorf("unexpected admin %+v", a)
	}

	rec, env = doJSON(e, http.MethodPut, "/api/v1/admins/"+a.ID.String(), `{"phone":"abc"}`)
	if rec.Code != http.StatusUnprocessableEntity || env.Fields["phone"] == "" {
		t.Errorf("expected 422 phone error, got %d %v", rec.Code, env.Fields)
	}

	rec, _ = doJSON(e, http.MethodPut, "/api/v1/admins/"+uuid.New().String(), `{"phone":"12"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHandler_UploadImage(t *testing.T) {
	svc, _, _ := newTestService()
	a := svc.AddAdmin(context.Background(), validAdmin()).Data()
	e := newTestServer(svc, auth.RoleAdmin)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, _ := w.CreateFormFile("file", "me.webp")
	part.Write([]byte("RIFF\x00\x00\x00\x00WEBPVP8 "))
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admins/"+a.ID.String()+"/image", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var env envelope
	json.Unmarshal(rec.Body.Bytes(), &env)
	if !strings.HasSuffix(env.URL, ".webp") {
		t.Errorf("unexpected url %q", env.URL)
	}
}
