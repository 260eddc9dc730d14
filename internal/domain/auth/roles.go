package auth

const (
	RoleEmployee = "EMPLOYEE"
	RoleManager  = "MANAGER"
	RoleHR       = "HR"
	RoleAdmin    = "ADMIN"
)

// UserContext is the authenticated caller attached to a request context.
type UserContext struct {
	UserID   string
	TenantID string
	RoleName string
}
