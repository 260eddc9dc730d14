package workflow

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type ApprovalLevel struct {
	Role     string `json:"role"`
	Required bool   `json:"required"`
}

// ApprovalChain is the ordered list of levels a request must pass.
type ApprovalChain []ApprovalLevel

// ChainFromRoles builds a chain in which every level is required.
func ChainFromRoles(roles []string) ApprovalChain {
	chain := make(ApprovalChain, 0, len(roles))
	for _, role := range roles {
		role = normalizeRole(role)
		if role == "" {
			continue
		}
		chain = append(chain, ApprovalLevel{Role: role, Required: true})
	}
	return chain
}

func (c ApprovalChain) Clone() ApprovalChain {
	if c == nil {
		return nil
	}
	out := make(ApprovalChain, len(c))
	copy(out, c)
	return out
}

type Conditions struct {
	Roles           []string         `json:"roles,omitempty"`
	LeaveTypes      []string         `json:"leaveTypes,omitempty"`
	Departments     []string         `json:"departments,omitempty"`
	DaysGreaterThan *decimal.Decimal `json:"daysGreaterThan,omitempty"`
	DaysLessThan    *decimal.Decimal `json:"daysLessThan,omitempty"`
}

type Rule struct {
	ID                      string        `json:"id"`
	TenantID                string        `json:"tenantId"`
	Name                    string        `json:"name"`
	Description             string        `json:"description,omitempty"`
	Conditions              Conditions    `json:"conditions"`
	ApprovalLevels          ApprovalChain `json:"approvalLevels"`
	Priority                int           `json:"priority"`
	IsActive                bool          `json:"isActive"`
	SkipDuplicateSignatures bool          `json:"skipDuplicateSignatures"`
	CreatedAt               time.Time     `json:"createdAt"`
	UpdatedAt               time.Time     `json:"updatedAt"`
}

// RequestAttributes are the facts about a leave request that rules match on.
type RequestAttributes struct {
	Role          string          `json:"role"`
	LeaveTypeCode string          `json:"leaveTypeCode"`
	DayCount      decimal.Decimal `json:"dayCount"`
	Department    string          `json:"department"`
}

type RulePatch struct {
	Name                    *string        `json:"name"`
	Description             *string        `json:"description"`
	Conditions              *Conditions    `json:"conditions"`
	ApprovalLevels          *ApprovalChain `json:"approvalLevels"`
	Priority                *int           `json:"priority"`
	IsActive                *bool          `json:"isActive"`
	SkipDuplicateSignatures *bool          `json:"skipDuplicateSignatures"`
}

// NewRule builds a rule from a create payload. Rules start active unless the
// payload says otherwise.
func NewRule(p RulePatch) Rule {
	return p.Apply(Rule{IsActive: true})
}

func (p RulePatch) Apply(rule Rule) Rule {
	if p.Name != nil {
		rule.Name = *p.Name
	}
	if p.Description != nil {
		rule.Description = *p.Description
	}
	if p.Conditions != nil {
		rule.Conditions = *p.Conditions
	}
	if p.ApprovalLevels != nil {
		rule.ApprovalLevels = p.ApprovalLevels.Clone()
	}
	if p.Priority != nil {
		rule.Priority = *p.Priority
	}
	if p.IsActive != nil {
		rule.IsActive = *p.IsActive
	}
	if p.SkipDuplicateSignatures != nil {
		rule.SkipDuplicateSignatures = *p.SkipDuplicateSignatures
	}
	return rule
}

// Resolution is the chain chosen for one request.
type Resolution struct {
	RuleID                  string        `json:"ruleId,omitempty"`
	RuleName                string        `json:"ruleName,omitempty"`
	Chain                   ApprovalChain `json:"chain"`
	SkipDuplicateSignatures bool          `json:"skipDuplicateSignatures"`
	Fallback                bool          `json:"fallback"`
}

func normalizeRole(role string) string {
	return strings.ToUpper(strings.TrimSpace(role))
}
