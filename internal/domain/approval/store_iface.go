package approval

import "context"

type StoreAPI interface {
	// Create inserts a new approval together with its submission events.
	// It returns ErrDuplicateRequest when the request already has one.
	Create(ctx context.Context, a Approval, events []Event) (Approval, error)
	Get(ctx context.Context, tenantID, approvalID string) (Approval, error)
	GetByRequest(ctx context.Context, tenantID, requestID string) (Approval, error)
	List(ctx context.Context, tenantID string, filter ListFilter) (ListResult, error)
	// ListPending returns PENDING approvals, oldest level entry first.
	ListPending(ctx context.Context, tenantID string) ([]Approval, error)
	// Transition stores next and appends events only while the row is still
	// at expectedVersion; otherwise it returns ErrConflict. The stored
	// version becomes expectedVersion+1.
	Transition(ctx context.Context, next Approval, expectedVersion int, events []Event) (Approval, error)
	// RecordFailure sets lastError without bumping the version.
	RecordFailure(ctx context.Context, tenantID, approvalID, message string) error
	Events(ctx context.Context, tenantID, approvalID string) ([]Event, error)
	CountOpenByRule(ctx context.Context, tenantID, ruleID string) (int, error)
	TenantsWithPending(ctx context.Context) ([]string, error)
}
