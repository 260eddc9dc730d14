package approval

import (
	"time"

	"github.com/shopspring/decimal"

	"leaveflow/internal/domain/workflow"
)

const (
	StatusPending      = "PENDING"
	StatusEscalated    = "ESCALATED"
	StatusApproved     = "APPROVED"
	StatusRejected     = "REJECTED"
	StatusAutoApproved = "AUTO_APPROVED"
)

const (
	EventSubmitted      = "submitted"
	EventApproved       = "approved"
	EventAutoSigned     = "auto_signed"
	EventRejected       = "rejected"
	EventReminded       = "reminded"
	EventReassigned     = "reassigned"
	EventEscalated      = "escalated"
	EventEscalationHeld = "escalation_held"
	EventAutoApproved   = "auto_approved"
)

// SystemActor is recorded as the actor of sweep-driven transitions.
const SystemActor = "system"

// Approval tracks one leave request through its approval chain. Chain is a
// snapshot taken at submission, so later rule edits do not move it.
type Approval struct {
	ID                      string                 `json:"id"`
	TenantID                string                 `json:"tenantId"`
	RequestID               string                 `json:"requestId"`
	RequesterID             string                 `json:"requesterId"`
	RequesterRole           string                 `json:"requesterRole"`
	LeaveTypeCode           string                 `json:"leaveTypeCode"`
	Department              string                 `json:"department"`
	DayCount                decimal.Decimal        `json:"dayCount"`
	RuleID                  string                 `json:"ruleId,omitempty"`
	Chain                   workflow.ApprovalChain `json:"chain"`
	SkipDuplicateSignatures bool                   `json:"skipDuplicateSignatures"`
	CurrentLevelIndex       int                    `json:"currentLevelIndex"`
	EscalationCount         int                    `json:"escalationCount"`
	AssignedApproverID      string                 `json:"assignedApproverId"`
	LevelReassigned         bool                   `json:"levelReassigned"`
	EnteredAt               time.Time              `json:"enteredAt"`
	RemindedAt              *time.Time             `json:"remindedAt,omitempty"`
	Status                  string                 `json:"status"`
	DecidedBy               string                 `json:"decidedBy,omitempty"`
	DecidedAt               *time.Time             `json:"decidedAt,omitempty"`
	LastError               string                 `json:"lastError,omitempty"`
	Version                 int                    `json:"version"`
	CreatedAt               time.Time              `json:"createdAt"`
	UpdatedAt               time.Time              `json:"updatedAt"`
}

// Open reports whether a human or the sweep may still act on the approval.
func (a Approval) Open() bool {
	return a.Status == StatusPending || a.Status == StatusEscalated
}

func (a Approval) CurrentLevel() (workflow.ApprovalLevel, bool) {
	if a.CurrentLevelIndex < 0 || a.CurrentLevelIndex >= len(a.Chain) {
		return workflow.ApprovalLevel{}, false
	}
	return a.Chain[a.CurrentLevelIndex], true
}

func (a Approval) Attributes() workflow.RequestAttributes {
	return workflow.RequestAttributes{
		Role:          a.RequesterRole,
		LeaveTypeCode: a.LeaveTypeCode,
		DayCount:      a.DayCount,
		Department:    a.Department,
	}
}

type Event struct {
	ID           string    `json:"id"`
	ApprovalID   string    `json:"approvalId"`
	Type         string    `json:"type"`
	ActorID      string    `json:"actorId"`
	LevelIndex   int       `json:"levelIndex"`
	Role         string    `json:"role,omitempty"`
	FromApprover string    `json:"fromApprover,omitempty"`
	ToApprover   string    `json:"toApprover,omitempty"`
	Note         string    `json:"note,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

type ListFilter struct {
	Status      string
	AssigneeID  string
	RequesterID string
	Limit       int
	Offset      int
}

type ListResult struct {
	Items []Approval `json:"items"`
	Total int        `json:"total"`
}

type Actor struct {
	UserID string
	Role   string
}

type SubmitInput struct {
	RequestID     string           `json:"requestId"`
	RequesterID   string           `json:"requesterId"`
	RequesterRole string           `json:"requesterRole"`
	LeaveTypeCode string           `json:"leaveTypeCode"`
	Department    string           `json:"department"`
	DayCount      *decimal.Decimal `json:"dayCount"`
	StartDate     time.Time        `json:"startDate"`
	EndDate       time.Time        `json:"endDate"`
	StartHalf     bool             `json:"startHalf"`
	EndHalf       bool             `json:"endHalf"`
}
