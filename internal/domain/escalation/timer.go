package escalation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leaveflow/internal/domain/approval"
	"leaveflow/internal/domain/workflow"
)

type Action string

const (
	ActionNone        Action = "none"
	ActionRemind      Action = "remind"
	ActionReassign    Action = "reassign"
	ActionEscalate    Action = "escalate"
	ActionAutoApprove Action = "auto_approve"
	ActionHold        Action = "hold"
)

var ErrNoChain = errors.New("approval has no chain")

// Decision is what the timer wants done with one approval. Chain is set
// only when the stored snapshot was empty and had to be rebuilt from the rule.
type Decision struct {
	Action       Action                 `json:"action"`
	LevelIndex   int                    `json:"levelIndex"`
	ApproverID   string                 `json:"approverId,omitempty"`
	Reason       string                 `json:"reason,omitempty"`
	Skipped      []int                  `json:"skipped,omitempty"`
	DueAt        time.Time              `json:"dueAt"`
	ElapsedHours float64                `json:"elapsedHours"`
	Chain        workflow.ApprovalChain `json:"-"`
}

type RuleLookup interface {
	GetRule(ctx context.Context, tenantID, ruleID string) (workflow.Rule, error)
}

type Timer struct {
	Directory approval.Directory
	Rules     RuleLookup
}

// Evaluate decides the next step for a PENDING approval at now. It only
// reads; the sweeper applies the decision.
func (t Timer) Evaluate(ctx context.Context, a approval.Approval, cfg Config, now time.Time) (Decision, error) {
	due := a.EnteredAt.Add(cfg.Timeout())
	elapsed := now.Sub(a.EnteredAt)
	dec := Decision{Action: ActionNone, LevelIndex: a.CurrentLevelIndex, DueAt: due, ElapsedHours: elapsed.Hours()}

	if a.Status != approval.StatusPending {
		dec.Reason = "status " + a.Status
		return dec, nil
	}

	if elapsed < cfg.Timeout() {
		if cfg.ReminderHours > 0 && a.RemindedAt == nil && elapsed >= cfg.Timeout()-cfg.ReminderLead() {
			dec.Action = ActionRemind
			dec.ApproverID = a.AssignedApproverID
		}
		return dec, nil
	}

	if len(a.Chain) == 0 {
		chain, err := t.rebuildChain(ctx, a)
		if err != nil {
			return Decision{}, err
		}
		a.Chain = chain
		dec.Chain = chain
	}
	level, ok := a.CurrentLevel()
	if !ok {
		return Decision{}, fmt.Errorf("level %d outside chain of %d: %w", a.CurrentLevelIndex, len(a.Chain), ErrNoChain)
	}

	if !a.LevelReassigned && a.AssignedApproverID != "" {
		sub, ok, err := t.Directory.Substitute(ctx, a.TenantID, a.AssignedApproverID, level.Role, a.Department,
			cfg.Policy(), []string{a.RequesterID}, now)
		if err != nil {
			return Decision{}, fmt.Errorf("substitute for %s: %w", a.AssignedApproverID, err)
		}
		if ok && sub.ApproverID != a.AssignedApproverID {
			dec.Action = ActionReassign
			dec.ApproverID = sub.ApproverID
			dec.Reason = sub.Reason
			return dec, nil
		}
	}

	if a.EscalationCount >= cfg.MaxEscalationLevels {
		return t.exhausted(dec, cfg, "escalation limit reached"), nil
	}
	asg, found, err := approval.NextAssignment(ctx, t.Directory, a, a.CurrentLevelIndex+1, cfg.Policy(), now)
	if err != nil {
		return Decision{}, err
	}
	if !found {
		dec.Skipped = asg.Skipped
		return t.exhausted(dec, cfg, "approval chain exhausted"), nil
	}
	dec.Action = ActionEscalate
	dec.LevelIndex = asg.LevelIndex
	dec.ApproverID = asg.ApproverID
	dec.Skipped = asg.Skipped
	if asg.Substitution != nil {
		dec.Reason = asg.Substitution.Reason
	}
	return dec, nil
}

func (t Timer) exhausted(dec Decision, cfg Config, reason string) Decision {
	dec.Reason = reason
	if cfg.AutoApproveAfterMax {
		dec.Action = ActionAutoApprove
	} else {
		dec.Action = ActionHold
	}
	return dec
}

func (t Timer) rebuildChain(ctx context.Context, a approval.Approval) (workflow.ApprovalChain, error) {
	if a.RuleID == "" || t.Rules == nil {
		return nil, ErrNoChain
	}
	rule, err := t.Rules.GetRule(ctx, a.TenantID, a.RuleID)
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", a.RuleID, err)
	}
	if len(rule.ApprovalLevels) == 0 {
		return nil, ErrNoChain
	}
	return rule.ApprovalLevels.Clone(), nil
}
