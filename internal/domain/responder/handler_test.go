package responder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/ers/dispatch/internal/platform/auth"
	"github.com/ers/dispatch/pkg/pagination"
)

func newTestHandler() (*Handler, *echo.Echo) {
	svc, _, _ := newTestService()
	return NewHandler(svc), echo.New()
}

func withRole(req *http.Request, role string, responderID int64) *http.Request {
	ctx := context.WithValue(req.Context(), auth.UserRolesKey, []string{role})
	if responderID > 0 {
		ctx = context.WithValue(ctx, auth.ResponderIDKey, responderID)
	}
	return req.WithContext(ctx)
}

func httpCode(t *testing.T, err error) int {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T (%v)", err, err)
	}
	return he.Code
}

func TestHandler_List(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/api/responders?limit=2", nil)
	rec := httptest.NewRecorder()

	if err := h.List(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		pagination.Response
		Data []Responder `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Total != 3 || len(body.Data) != 2 || !body.HasMore {
		t.Errorf("unexpected page: total=%d len=%d has_more=%v", body.Total, len(body.Data), body.HasMore)
	}
}

func TestHandler_List_BadStatus(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/api/responders?status=lost", nil)
	err := h.List(e.NewContext(req, httptest.NewRecorder()))
	if code := httpCode(t, err); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHandler_Get(t *testing.T) {
	tests := []struct {
		id   string
		want int
	}{
		{"2", http.StatusOK},
		{"99", http.StatusNotFound},
		{"abc", http.StatusBadRequest},
		{"0", http.StatusBadRequest},
	}
	for _, tt := range tests {
		h, e := newTestHandler()
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		c.SetParamNames("id")
		c.SetParamValues(tt.id)

		err := h.Get(c)
		got := rec.Code
		if err != nil {
			got = httpCode(t, err)
		}
		if got != tt.want {
			t.Errorf("GET /responders/%s: expected %d, got %d", tt.id, tt.want, got)
		}
	}
}

func putStatus(t *testing.T, h *Handler, e *echo.Echo, id, body, role string, own int64) (*httptest.ResponseRecorder, error) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = withRole(req, role, own)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(id)
	return rec, h.UpdateStatus(c)
}

func TestHandler_UpdateStatus_Self(t *testing.T) {
	h, e := newTestHandler()
	rec, err := putStatus(t, h, e, "1", `{"status":"On Duty"}`, auth.RoleResponder, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var r Responder
	json.Unmarshal(rec.Body.Bytes(), &r)
	if r.Status != StatusOnDuty {
		t.Errorf("expected On Duty, got %q", r.Status)
	}
}

func TestHandler_UpdateStatus_OtherResponderForbidden(t *testing.T) {
	h, e := newTestHandler()
	_, err := putStatus(t, h, e, "2", `{"status":"Offline"}`, auth.RoleResponder, 1)
	if code := httpCode(t, err); code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", code)
	}
}

func TestHandler_UpdateStatus_DispatcherInvalid(t *testing.T) {
	h, e := newTestHandler()
	_, err := putStatus(t, h, e, "2", `{"status":"lunch"}`, auth.RoleDispatcher, 0)
	if code := httpCode(t, err); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHandler_RegisterRoutes(t *testing.T) {
	h, e := newTestHandler()
	h.RegisterRoutes(e.Group("/api"))

	want := map[string]bool{
		"GET /api/responders":            false,
		"GET /api/responders/:id":        false,
		"PUT /api/responders/:id/status": false,
	}
	for _, r := range e.Routes() {
		key := r.Method + " " + r.Path
		if _, ok := want[key]; ok {
			want[key] = true
		}
	}
	for route, found := range want {
		if !found {
			t.Errorf("route %s not registered", route)
		}
	}
}
