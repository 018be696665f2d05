package doctor

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
	Code    string            `json:"code"`
	Fields  map[string]string `json:"fields"`
}

func newTestServer(session auth.Session) (*echo.Echo, *Service, *mockRepo) {
	svc, repo, _ := newTestService()
	e := echo.New()
	api := e.Group("/api/v1", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.SetRequest(c.Request().WithContext(auth.WithSession(c.Request().Context(), session)))
			return next(c)
		}
	})
	NewHandler(svc, zerolog.Nop()).RegisterRoutes(api)
	return e, svc, repo
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

var adminSession = auth.Session{UserID: uuid.New().String(), Role: auth.RoleAdmin}

func TestHandler_CreateDoctor(t *testing.T) {
	e, _, _ := newTestServer(adminSession)

	rec, env := doJSON(e, http.MethodPost, "/api/v1/doctors",
		`{"full_name":"bob","email":"bob@clinic.org","role":"doctor","phone":"555 123 4567"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var d Doctor
	json.Unmarshal(env.Data, &d)
	if d.FullName != "Dr. bob" {
		t.Errorf("expected 'Dr. bob', got %q", d.FullName)
	}
}

func TestHandler_CreateDoctor_FieldErrors(t *testing.T) {
	e, _, repo := newTestServer(adminSession)

	rec, env := doJSON(e, http.MethodPost, "/api/v1/doctors", `{"full_name":"b","email":"bob@"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if env.Success || env.Code != "validation_failed" {
		t.Errorf("unexpected envelope %+v", env)
	}
	if env.Fields["email"] == "" || env.Fields["full_name"] == "" {
		t.Errorf("unexpected fields %v", env.Fields)
	}
	if repo.calls != 0 {
		t.Error("store must not be called")
	}
}

func TestHandler_CreateDoctor_Forbidden(t *testing.T) {
	e, _, _ := newTestServer(auth.Session{UserID: uuid.New().String(), Role: auth.RolePatient})
	rec, _ := doJSON(e, http.MethodPost, "/api/v1/doctors", `{"full_name":"bob","email":"bob@clinic.org"}`)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}

func TestHandler_GetDoctor(t *testing.T) {
	e, svc, _ := newTestServer(adminSession)
	d := svc.AddDoctor(context.Background(), validDoctor()).Data()

	rec, env := doJSON(e, http.MethodGet, "/api/v1/doctors/"+d.ID.String(), "")
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec, env = doJSON(e, http.MethodGet, "/api/v1/doctors/"+uuid.New().String(), "")
	if rec.Code != http.StatusNotFound || env.Success || env.Code != "not_found" {
		t.Errorf("expected 404 failure, got %d %+v", rec.Code, env)
	}

	rec, _ = doJSON(e, http.MethodGet, "/api/v1/doctors/not-a-uuid", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHandler_UpdateDoctor_PartialBody(t *testing.T) {
	e, svc, _ := newTestServer(adminSession)
	d := svc.AddDoctor(context.Background(), validDoctor()).Data()

	rec, env := doJSON(e, http.MethodPut, "/api/v1/doctors/"+d.ID.String(), `{"specialization":"Neonatology"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var got Doctor
	json.Unmarshal(env.Data, &got)
	if got.Specialization != "Neonatology" || got.Email != d.Email || got.FullName != d.FullName {
		t.Errorf("unexpected update %+v", got)
	}
}

func TestHandler_UpdateDoctor_SelfCannotChangeRole(t *testing.T) {
	svc, repo, _ := newTestService()
	d := svc.AddDoctor(context.Background(), validDoctor()).Data()

	e := echo.New()
	self := auth.Session{UserID: d.ID.String(), Role: auth.RoleDoctor}
	api := e.Group("/api/v1", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.SetRequest(c.Request().WithContext(auth.WithSession(c.Request().Context(), self)))
			return next(c)
		}
	})
	NewHandler(svc, zerolog.Nop()).RegisterRoutes(api)

	rec, _ := doJSON(e, http.MethodPut, "/api/v1/doctors/"+d.ID.String(), `{"role":"nurse","phone":"+441234567"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	stored := repo.store[d.ID]
	if stored.Role != RoleDoctor || stored.Phone != "+441234567" {
		t.Errorf("unexpected stored record %+v", stored)
	}

	rec, _ = doJSON(e, http.MethodPut, "/api/v1/doctors/"+uuid.New().String(), `{"phone":"+441234567"}`)
	if rec.Code != http.StatusForbidden {
		t.Errorf("editing someone else: expected 403, got %d", rec.Code)
	}
}

func TestHandler_ListDoctors(t *testing.T) {
	e, svc, _ := newTestServer(adminSession)
	svc.AddDoctor(context.Background(), validDoctor())

	rec, env := doJSON(e, http.MethodGet, "/api/v1/doctors?role=doctor&limit=5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var page struct {
		Items []Doctor `json:"items"`
		Total int      `json:"total"`
		Limit int      `json:"limit"`
	}
	json.Unmarshal(env.Data, &page)
	if page.Total != 1 || len(page.Items) != 1 || page.Limit != 5 {
		t.Errorf("unexpected page %+v", page)
	}

	rec, _ = doJSON(e, http.MethodGet, "/api/v1/doctors?role=janitor", "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for unknown role, got %d", rec.Code)
	}
}

func TestHandler_DeleteDoctor(t *testing.T) {
	e, svc, _ := newTestServer(adminSession)
	d := svc.AddDoctor(context.Background(), validDoctor()).Data()

	rec, _ := doJSON(e, http.MethodDelete, "/api/v1/doctors/"+d.ID.String(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rec, _ = doJSON(e, http.MethodDelete, "/api/v1/doctors/"+d.ID.String(), "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete: expected 404, got %d", rec.Code)
	}
}

func multipartImage(t *testing.T, name string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(data)
	w.Close()
	return &buf, w.FormDataContentType()
}

func TestHandler_UploadImage(t *testing.T) {
	e, svc, _ := newTestServer(adminSession)
	d := svc.AddDoctor(context.Background(), validDoctor()).Data()

	body, ct := multipartImage(t, "face.png", []byte("\x89PNG\r\n\x1a\nfake"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/doctors/"+d.ID.String()+"/image", body)
	req.Header.Set(echo.HeaderContentType, ct)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var env envelope
	json.Unmarshal(rec.Body.Bytes(), &env)
	if !env.Success || !strings.Contains(env.URL, "/storage/v1/object/public/avatars/doctors/") {
		t.Errorf("unexpected envelope %+v", env)
	}

	big, ct := multipartImage(t, "huge.png", bytes.Repeat([]byte{1}, 6*1024*1024))
	req = httptest.NewRequest(http.MethodPost, "/api/v1/doctors/"+d.ID.String()+"/image", big)
	req.Header.Set(echo.HeaderContentType, ct)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Image size must be less than 5MB") {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}
