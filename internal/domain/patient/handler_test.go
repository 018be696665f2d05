package patient

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

func newTestServer(svc *Service, session auth.Session) *echo.Echo {
	e := echo.New()
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

func TestHandler_CreatePatient_DoctorAssignsSelf(t *testing.T) {
	svc, _ := newTestService()
	doc := uuid.New()
	e := newTestServer(svc, auth.Session{UserID: doc.String(), Role: auth.RoleDoctor})

	rec, env := doJSON(e, http.MethodPost, "/api/v1/patients",
		`{"full_name":"Jane Roe","email":"jane@example.com","age":28}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var p Patient
	json.Unmarshal(env.Data, &p)
	if p.Age != 28 || p.DoctorID == nil || *p.DoctorID != doc {
		t.Errorf("unexpected patient %+v", p)
	}
}

func TestHandler_CreatePatient_FieldErrors(t *testing.T) {
	svc, repo := newTestService()
	e := newTestServer(svc, auth.Session{UserID: uuid.New().String(), Role: auth.RoleNurse})

	rec, env := doJSON(e, http.MethodPost, "/api/v1/patients", `{"full_name":"Jane Roe","email":"jane@","age":"old"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if env.Fields["email"] == "" || env.Fields["age"] == "" {
		t.Errorf("unexpected fields %v", env.Fields)
	}
	if repo.calls != 0 {
		t.Error("store must not be called")
	}
}

func TestHandler_CreatePatient_PatientForbidden(t *testing.T) {
	svc, _ := newTestService()
	e := newTestServer(svc, auth.Session{UserID: uuid.New().String(), Role: auth.RolePatient})
	rec, _ := doJSON(e, http.MethodPost, "/api/v1/patients", `{"full_name":"Jane Roe","email":"jane@example.com"}`)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}

func TestHandler_GetPatient_SelfAndOthers(t *testing.T) {
	svc, _ := newTestService()
	p := svc.AddPatient(context.Background(), validPatient()).Data()
	other := svc.AddPatient(context.Background(), &Patient{FullName: "Ann Other", Email: "ann@example.com"}).Data()

	e := newTestServer(svc, auth.Session{UserID: p.ID.String(), Role: auth.RolePatient})
	rec, env := doJSON(e, http.MethodGet, "/api/v1/patients/"+p.ID.String(), "")
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rec, _ = doJSON(e, http.MethodGet, "/api/v1/patients/"+other.ID.String(), "")
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}

func TestHandler_GetPatient_NotFound(t *testing.T) {
	svc, _ := newTestService()
	e := newTestServer(svc, auth.Session{UserID: uuid.New().String(), Role: auth.RoleNurse})
	rec, env := doJSON(e, http.MethodGet, "/api/v1/patients/"+uuid.New().String(), "")
	if rec.Code != http.StatusNotFound || env.Code != "not_found" {
		t.Errorf("expected 404, got %d %+v", rec.Code, env)
	}
}

func TestHandler_ListPatients(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	doc := uuid.New()
	mine := validPatient()
	mine.DoctorID = &doc
	svc.AddPatient(ctx, mine)
	svc.AddPatient(ctx, &Patient{FullName: "Ann Other", Email: "ann@example.com"})

	type page struct {
		Items []Patient `json:"items"`
		Total int       `json:"total"`
	}

	e := newTestServer(svc, auth.Session{UserID: doc.String(), Role: auth.RoleDoctor})
	rec, env := doJSON(e, http.MethodGet, "/api/v1/patients", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got page
	json.Unmarshal(env.Data, &got)
	if got.Total != 1 {
		t.Errorf("doctor default: expected 1 patient, got %d", got.Total)
	}

	admin := newTestServer(svc, auth.Session{UserID: uuid.New().String(), Role: auth.RoleAdmin})
	_, env = doJSON(admin, http.MethodGet, "/api/v1/patients", "")
	json.Unmarshal(env.Data, &got)
	if got.Total != 2 {
		t.Errorf("admin: expected 2 patients, got %d", got.Total)
	}

	_, env = doJSON(admin, http.MethodGet, "/api/v1/patients?doctor_id="+doc.String(), "")
	json.Unmarshal(env.Data, &got)
	if got.Total != 1 {
		t.Errorf("filtered: expected 1 patient, got %d", got.Total)
	}

	rec, _ = doJSON(admin, http.MethodGet, "/api/v1/patients?doctor_id=bad", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHandler_UpdatePatient_SelfKeepsDoctor(t *testing.T) {
	svc, repo := newTestService()
	doc := uuid.New()
	p := validPatient()
	p.DoctorID = &doc
	created := svc.AddPatient(context.Background(), p).Data()

	e := newTestServer(svc, auth.Session{UserID: created.ID.String(), Role: auth.RolePatient})
	rec, _ := doJSON(e, http.MethodPut, "/api/v1/patients/"+created.ID.String(),
		`{"doctor_id":"`+uuid.New().String()+`","address":"9 New Lane"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	stored := repo.store[created.ID]
	if stored.Address != "9 New Lane" || stored.DoctorID == nil || *stored.DoctorID != doc {
		t.Errorf("unexpected stored record %+v", stored)
	}
}

func TestHandler_DeletePatient(t *testing.T) {
	svc, _ := newTestService()
	p := svc.AddPatient(context.Background(), validPatient()).Data()

	nurse := newTestServer(svc, auth.Session{UserID: uuid.New().String(), Role: auth.RoleNurse})
	if rec, _ := doJSON(nurse, http.MethodDelete, "/api/v1/patients/"+p.ID.String(), ""); rec.Code != http.StatusForbidden {
		t.Errorf("nurse: expected 403, got %d", rec.Code)
	}

	doctor := newTestServer(svc, auth.Session{UserID: uuid.New().String(), Role: auth.RoleDoctor})
	if rec, _ := doJSON(doctor, http.MethodDelete, "/api/v1/patients/"+p.ID.String(), ""); rec.Code != http.StatusOK {
		t.Errorf("doctor: expected 200, got %d", rec.Code)
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

func TestHandler_UploadImage_Inline(t *testing.T) {
	svc, _ := newTestService()
	p := svc.AddPatient(context.Background(), validPatient()).Data()
	e := newTestServer(svc, auth.Session{UserID: p.ID.String(), Role: auth.RolePatient})

	body, ct := multipartImage(t, "face.png", []byte("\x89PNG\r\n\x1a\nfake"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/patients/"+p.ID.String()+"/image", body)
	req.Header.Set(echo.HeaderContentType, ct)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var env envelope
	json.Unmarshal(rec.Body.Bytes(), &env)
	if !strings.HasPrefix(env.URL, "data:image/png;base64,") {
		t.Errorf("unexpected url %q", env.URL)
	}

	big, ct := multipartImage(t, "huge.png", bytes.Repeat([]byte{1}, 6*1024*1024))
	req = httptest.NewRequest(http.MethodPost, "/api/v1/patients/"+p.ID.String()+"/image", big)
	req.Header.Set(echo.HeaderContentType, ct)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", rec.Code)
	}
}
