package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"leaveflow/internal/transport/http/api"
)

type PermissionStore interface {
	HasPermission(ctx context.Context, roleName, permission string) (bool, error)
}

// RequirePermission rejects callers whose role lacks permission: 401
// without a user, 403 without the grant.
func RequirePermission(permission string, store PermissionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())
			if _, ok := GetUser(r.Context()); !ok {
				api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
				return
			}
			allowed, err := check(r, store, permission)
			switch {
			case err != nil:
				api.Fail(w, http.StatusInternalServerError, "permission_error", "permission check failed", requestID)
			case !allowed:
				api.Fail(w, http.StatusForbidden, "forbidden", "insufficient permissions", requestID)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// Can answers an in-handler permission question, such as whether the
// caller may act on someone else's records. Errors count as no.
func Can(r *http.Request, store PermissionStore, permission string) bool {
	allowed, err := check(r, store, permission)
	return err == nil && allowed
}

func check(r *http.Request, store PermissionStore, permission string) (bool, error) {
	user, ok := GetUser(r.Context())
	if !ok || store == nil {
		return false, nil
	}
	allowed, err := store.HasPermission(r.Context(), user.RoleName, permission)
	if err != nil {
		slog.Error("permission check failed", "role", user.RoleName, "permission", permission, "err", err)
		return false, err
	}
	if !allowed {
		slog.Debug("permission denied", "tenantId", user.TenantID, "userId", user.UserID, "role", user.RoleName, "permission", permission)
	}
	return allowed, nil
}
