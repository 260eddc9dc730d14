package directory

import (
	"context"
	"time"
)

type StoreAPI interface {
	ListApprovers(ctx context.Context, tenantID string) ([]Approver, error)
	UpsertApprover(ctx context.Context, tenantID string, approver Approver) (Approver, error)
	DeleteApprover(ctx context.Context, tenantID, userID, role string) error
	// ApproversForRole returns active approvers for role whose department is
	// department or empty, exact department matches first.
	ApproversForRole(ctx context.Context, tenantID, role, department string) ([]Approver, error)
	ApproverEmail(ctx context.Context, tenantID, userID string) (string, error)

	ListDelegations(ctx context.Context, tenantID string) ([]Delegation, error)
	CreateDelegation(ctx context.Context, tenantID string, d Delegation) (Delegation, error)
	RevokeDelegation(ctx context.Context, tenantID, delegationID string, at time.Time) error
	// ActiveDelegations returns delegations from delegatorID covering at,
	// most recently started first.
	ActiveDelegations(ctx context.Context, tenantID, delegatorID string, at time.Time) ([]Delegation, error)

	ListAbsences(ctx context.Context, tenantID string) ([]Absence, error)
	CreateAbsence(ctx context.Context, tenantID string, a Absence) (Absence, error)
	DeleteAbsence(ctx context.Context, tenantID, absenceID string) error
	IsAbsent(ctx context.Context, tenantID, userID string, at time.Time) (bool, error)
}
