package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func ctxWith(roles []string, responderID int64) context.Context {
	ctx := context.WithValue(context.Background(), UserRolesKey, roles)
	if responderID > 0 {
		ctx = context.WithValue(ctx, ResponderIDKey, responderID)
	}
	return ctx
}

func runRole(t *testing.T, roles []string, required ...string) error {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/alerts", nil)
	req = req.WithContext(ctxWith(roles, 0))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	return RequireRole(required...)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})(c)
}

func TestRequireRole_Allowed(t *testing.T) {
	if err := runRole(t, []string{RoleDispatcher}, RoleDispatcher); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequireRole_AnyOf(t *testing.T) {
	if err := runRole(t, []string{RoleResponder}, RoleResponder, RoleDispatcher); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequireRole_AdminPasses(t *testing.T) {
	if err := runRole(t, []string{RoleAdmin}, RoleDispatcher); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequireRole_Forbidden(t *testing.T) {
	err := runRole(t, []string{RoleResponder}, RoleDispatcher)
	expectStatus(t, err, http.StatusForbidden)
}

func TestRequireRole_NoRoles(t *testing.T) {
	err := runRole(t, nil, RoleDispatcher)
	expectStatus(t, err, http.StatusForbidden)
}

func TestActingForResponder(t *testing.T) {
	tests := []struct {
		name        string
		ctx         context.Context
		responderID int64
		want        bool
	}{
		{"dispatcher for anyone", ctxWith([]string{RoleDispatcher}, 0), 5, true},
		{"admin for anyone", ctxWith([]string{RoleAdmin}, 0), 5, true},
		{"responder for self", ctxWith([]string{RoleResponder}, 5), 5, true},
		{"responder for other", ctxWith([]string{RoleResponder}, 5), 6, false},
		{"responder without profile", ctxWith([]string{RoleResponder}, 0), 5, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ActingForResponder(tt.ctx, tt.responderID); got != tt.want {
				t.Errorf("ActingForResponder() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidRole(t *testing.T) {
	for _, r := range []string{RoleAdmin, RoleDispatcher, RoleResponder} {
		if !ValidRole(r) {
			t.Errorf("expected %q to be valid", r)
		}
	}
	if ValidRole("physician") {
		t.Error("expected physician to be rejected")
	}
}
