package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leaveflow/internal/domain/auth"
)

func TestAuthMiddlewareSetsUser(t *testing.T) {
	secret := "test-secret"
	token, err := auth.GenerateToken(secret, auth.Claims{UserID: "u1", TenantID: "t1", RoleName: "hr"}, time.Hour)
	require.NoError(t, err)

	called := false
	handler := Auth(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		user, ok := GetUser(r.Context())
		require.True(t, ok, "expected user in context")
		assert.Equal(t, "u1", user.UserID)
		assert.Equal(t, "t1", user.TenantID)
		assert.Equal(t, auth.RoleHR, user.RoleName)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.True(t, called)
}

func TestAuthMiddlewareMissingToken(t *testing.T) {
	handler := Auth("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := GetUser(r.Context())
		assert.False(t, ok, "did not expect user in context")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)
}

func TestAuthMiddlewareIgnoresForeignSignature(t *testing.T) {
	token, err := auth.GenerateToken("other-secret", auth.Claims{UserID: "u1", TenantID: "t1", RoleName: auth.RoleHR}, time.Hour)
	require.NoError(t, err)

	handler := Auth("secret")(RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without a valid token")
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequirePermission(t *testing.T) {
	guarded := RequirePermission(auth.PermEscalationRun, auth.StaticPermissions{})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name string
		role string
		want int
	}{
		{name: "hr may sweep", role: auth.RoleHR, want: http.StatusNoContent},
		{name: "manager may not sweep", role: auth.RoleManager, want: http.StatusForbidden},
		{name: "employee may not sweep", role: auth.RoleEmployee, want: http.StatusForbidden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx := WithUser(httptest.NewRequest(http.MethodPost, "/", nil).Context(), auth.UserContext{UserID: "u1", TenantID: "t1", RoleName: tc.role})
			req := httptest.NewRequest(http.MethodPost, "/api/v1/escalation/sweep", nil).WithContext(ctx)
			rec := httptest.NewRecorder()
			guarded.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}

	rec := httptest.NewRecorder()
	guarded.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/escalation/sweep", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

type failingPerms struct{}

func (failingPerms) HasPermission(context.Context, string, string) (bool, error) {
	return false, assert.AnError
}

func TestRequirePermissionStoreError(t *testing.T) {
	guarded := RequirePermission(auth.PermAuditRead, failingPerms{})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	ctx := WithUser(context.Background(), auth.UserContext{UserID: "u1", TenantID: "t1", RoleName: auth.RoleHR})
	rec := httptest.NewRecorder()
	guarded.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/audit/events", nil).WithContext(ctx))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCan(t *testing.T) {
	perms := auth.StaticPermissions{}
	as := func(role string) *http.Request {
		ctx := WithUser(context.Background(), auth.UserContext{UserID: "u1", TenantID: "t1", RoleName: role})
		return httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
	}

	assert.True(t, Can(as(auth.RoleHR), perms, auth.PermApprovalsProxy))
	assert.False(t, Can(as(auth.RoleAdmin), perms, auth.PermApprovalsProxy))
	assert.True(t, Can(as(auth.RoleAdmin), perms, auth.PermDirectoryManage))
	assert.False(t, Can(as(auth.RoleManager), perms, auth.PermDirectoryManage))
	assert.False(t, Can(as(auth.RoleHR), failingPerms{}, auth.PermDirectoryManage))
	assert.False(t, Can(httptest.NewRequest(http.MethodGet, "/", nil), perms, auth.PermApprovalsReadAll))
}
