package auth

import (
	"context"
	"strings"
)

const (
	PermWorkflowRead      = "workflow.read"
	PermWorkflowWrite     = "workflow.write"
	PermEscalationRead    = "escalation.read"
	PermEscalationWrite   = "escalation.write"
	PermEscalationRun     = "escalation.run"
	PermApprovalsSubmit   = "approvals.submit"
	PermApprovalsRead     = "approvals.read"
	PermApprovalsDecide   = "approvals.decide"
	PermApprovalsReadAll  = "approvals.read_all"
	PermApprovalsProxy    = "approvals.submit_for_others"
	PermDirectoryRead     = "directory.read"
	PermDirectoryWrite    = "directory.write"
	PermDirectoryManage   = "directory.manage"
	PermNotificationsRead = "notifications.read"
	PermNotificationsSet  = "notifications.settings"
	PermAuditRead         = "audit.read"
)

var RolePermissions = map[string][]string{
	RoleEmployee: {
		PermApprovalsSubmit,
		PermApprovalsRead,
		PermNotificationsRead,
	},
	RoleManager: {
		PermWorkflowRead,
		PermApprovalsSubmit,
		PermApprovalsRead,
		PermApprovalsDecide,
		PermDirectoryRead,
		PermDirectoryWrite,
		PermNotificationsRead,
	},
	RoleHR: {
		PermWorkflowRead,
		PermWorkflowWrite,
		PermEscalationRead,
		PermEscalationWrite,
		PermEscalationRun,
		PermApprovalsSubmit,
		PermApprovalsRead,
		PermApprovalsDecide,
		PermApprovalsReadAll,
		PermApprovalsProxy,
		PermDirectoryRead,
		PermDirectoryWrite,
		PermDirectoryManage,
		PermNotificationsRead,
		PermNotificationsSet,
		PermAuditRead,
	},
	RoleAdmin: {
		PermWorkflowRead,
		PermWorkflowWrite,
		PermEscalationRead,
		PermEscalationWrite,
		PermEscalationRun,
		PermApprovalsRead,
		PermApprovalsReadAll,
		PermDirectoryRead,
		PermDirectoryWrite,
		PermDirectoryManage,
		PermNotificationsRead,
		PermNotificationsSet,
		PermAuditRead,
	},
}

// StaticPermissions resolves permissions from RolePermissions. Role names
// come from the identity provider and are compared case-insensitively.
type StaticPermissions struct{}

func (StaticPermissions) HasPermission(_ context.Context, roleName, permission string) (bool, error) {
	return RoleHas(roleName, permission), nil
}

// RoleHas reports whether the built-in grants give roleName permission.
func RoleHas(roleName, permission string) bool {
	for _, perm := range RolePermissions[strings.ToUpper(strings.TrimSpace(roleName))] {
		if perm == permission {
			return true
		}
	}
	return false
}
