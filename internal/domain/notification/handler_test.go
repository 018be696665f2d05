package notification

import (
	"context"
	"encoding/json"
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
	Error   string            `json:"error"`
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
	NewHandler(svc).RegisterRoutes(api)
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

func TestHandler_CreateNotification(t *testing.T) {
	svc := NewService(newMockRepo(), zerolog.Nop())
	patient := uuid.New()
	e := newTestServer(svc, auth.Session{UserID: uuid.New().String(), Role: auth.RoleNurse})

	body := `{"recipient_id":"` + patient.String() + `","recipient_role":"patient","title":"Lab results","message":"Your results are ready","type":"alert"}`
	rec, env := doJSON(e, http.MethodPost, "/api/v1/notifications", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var n Notification
	json.Unmarshal(env.Data, &n)
	if n.RecipientID != patient || n.Type != TypeAlert {
		t.Errorf("unexpected notification %+v", n)
	}

	rec, env = doJSON(e, http.MethodPost, "/api/v1/notifications", `{"recipient_role":"patient"}`)
	if rec.Code != http.StatusUnprocessableEntity || env.Fields["title"] == "" {
		t.Errorf("expected 422 with title error, got %d %v", rec.Code, env.Fields)
	}
}

func TestHandler_CreateNotification_PatientForbidden(t *testing.T) {
	svc := NewService(newMockRepo(), zerolog.Nop())
	e := newTestServer(svc, auth.Session{UserID: uuid.New().String(), Role: auth.RolePatient})
	rec, _ := doJSON(e, http.MethodPost, "/api/v1/notifications", `{}`)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}

func TestHandler_Inbox(t *testing.T) {
	svc := NewService(newMockRepo(), zerolog.Nop())
	ctx := context.Background()
	me := uuid.New()
	mine := svc.CreateNotification(ctx, newNotification(me, "Mine")).Data()
	theirs := svc.CreateNotification(ctx, newNotification(uuid.New(), "Theirs")).Data()
	e := newTestServer(svc, auth.Session{UserID: me.String(), Role: auth.RolePatient})

	rec, env := doJSON(e, http.MethodGet, "/api/v1/notifications", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var page struct {
		Items []Notification `json:"items"`
		Total int            `json:"total"`
	}
	json.Unmarshal(env.Data, &page)
	if page.Total != 1 || page.Items[0].ID != mine.ID {
		t.Errorf("unexpected page %+v", page)
	}

	_, env = doJSON(e, http.MethodGet, "/api/v1/notifications/unread-count", "")
	if string(env.Data) != "1" {
		t.Errorf("expected unread count 1, got %s", env.Data)
	}

	rec, _ = doJSON(e, http.MethodPut, "/api/v1/notifications/"+theirs.ID.String()+"/read", "")
	if rec.Code != http.StatusForbidden {
		t.Errorf("foreign mark read: expected 403, got %d", rec.Code)
	}
	rec, _ = doJSON(e, http.MethodPut, "/api/v1/notifications/"+mine.ID.String()+"/read", "")
	if rec.Code != http.StatusOK {
		t.Errorf("mark read: expected 200, got %d", rec.Code)
	}

	_, env = doJSON(e, http.MethodPut, "/api/v1/notifications/read-all", "")
	if string(env.Data) != "0" {
		t.Errorf("expected nothing left to mark, got %s", env.Data)
	}

	rec, _ = doJSON(e, http.MethodDelete, "/api/v1/notifications/"+theirs.ID.String(), "")
	if rec.Code != http.StatusForbidden {
		t.Errorf("foreign delete: expected 403, got %d", rec.Code)
	}
	rec, _ = doJSON(e, http.MethodDelete, "/api/v1/notifications/"+mine.ID.String(), "")
	if rec.Code != http.StatusOK {
		t.Errorf("delete: expected 200, got %d", rec.Code)
	}
	rec, _ = doJSON(e, http.MethodDelete, "/api/v1/notifications/"+mine.ID.String(), "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete: expected 404, got %d", rec.Code)
	}
}

func TestHandler_AdminReadsAnyInbox(t *testing.T) {
	svc := NewService(newMockRepo(), zerolog.Nop())
	other := uuid.New()
	svc.CreateNotification(context.Background(), newNotification(other, "Hello"))
	e := newTestServer(svc, auth.Session{UserID: uuid.New().String(), Role: auth.RoleAdmin})

	_, env := doJSON(e, http.MethodGet, "/api/v1/notifications/unread-count?recipient_id="+other.String(), "")
	if string(env.Data) != "1" {
		t.Errorf("expected 1, got %s", env.Data)
	}
}
