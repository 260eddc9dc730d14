package workflow

import "context"

// StoreAPI persists rules. ListRules returns rules in creation order.
type StoreAPI interface {
	ListRules(ctx context.Context, tenantID string) ([]Rule, error)
	GetRule(ctx context.Context, tenantID, ruleID string) (Rule, error)
	CreateRule(ctx context.Context, tenantID string, rule Rule) (Rule, error)
	UpdateRule(ctx context.Context, tenantID string, rule Rule) (Rule, error)
	SetActive(ctx context.Context, tenantID, ruleID string, active bool) (Rule, error)
	DeleteRule(ctx context.Context, tenantID, ruleID string) error
}

// OpenApprovalCounter reports how many PENDING or ESCALATED approvals
// reference a rule.
type OpenApprovalCounter interface {
	CountOpenByRule(ctx context.Context, tenantID, ruleID string) (int, error)
}
