package escalation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"leaveflow/internal/domain/approval"
	"leaveflow/internal/domain/notifications"
	"leaveflow/internal/platform/lock"
	"leaveflow/internal/platform/metrics"
)

type SettingsSource interface {
	Settings(ctx context.Context, tenantID string) (Config, error)
}

type ItemFailure struct {
	ApprovalID string `json:"approvalId"`
	RequestID  string `json:"requestId"`
	Error      string `json:"error"`
}

type SweepSummary struct {
	TenantID     string        `json:"tenantId"`
	StartedAt    time.Time     `json:"startedAt"`
	FinishedAt   time.Time     `json:"finishedAt"`
	Skipped      bool          `json:"skipped"`
	SkipReason   string        `json:"skipReason,omitempty"`
	Examined     int           `json:"examined"`
	Reminded     int           `json:"reminded"`
	Reassigned   int           `json:"reassigned"`
	Escalated    int           `json:"escalated"`
	AutoApproved int           `json:"autoApproved"`
	Held         int           `json:"held"`
	Conflicts    int           `json:"conflicts"`
	Failures     []ItemFailure `json:"failures"`
}

type Sweeper struct {
	Approvals approval.StoreAPI
	Settings  SettingsSource
	Timer     Timer
	Locker    lock.Locker
	LockTTL   time.Duration
	Notifier  approval.Notifier
	Metrics   *metrics.Collector
	Now       func() time.Time
}

func lockKey(tenantID string) string {
	return "escalation-sweep:" + tenantID
}

func (s *Sweeper) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Sweep evaluates every PENDING approval of one tenant under the tenant's
// sweep lock. It returns lock.ErrNotAcquired while another sweep runs.
// Failures of single approvals are reported in the summary, not returned.
func (s *Sweeper) Sweep(ctx context.Context, tenantID string) (SweepSummary, error) {
	summary := SweepSummary{TenantID: tenantID, StartedAt: s.now(), Failures: []ItemFailure{}}

	ttl := s.LockTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	unlock, err := s.Locker.TryLock(ctx, lockKey(tenantID), ttl)
	if err != nil {
		return summary, err
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("sweep lock release failed", "tenantId", tenantID, "err", err)
		}
	}()

	cfg, err := s.Settings.Settings(ctx, tenantID)
	if err != nil {
		return summary, fmt.Errorf("load escalation settings: %w", err)
	}
	if !cfg.Enabled {
		summary.Skipped = true
		summary.SkipReason = "escalation disabled"
		summary.FinishedAt = s.now()
		return summary, nil
	}

	pending, err := s.Approvals.ListPending(ctx, tenantID)
	if err != nil {
		return summary, fmt.Errorf("list pending approvals: %w", err)
	}

	for _, a := range pending {
		if err := ctx.Err(); err != nil {
			summary.FinishedAt = s.now()
			return summary, err
		}
		summary.Examined++
		now := s.now()
		dec, err := s.Timer.Evaluate(ctx, a, cfg, now)
		if err != nil {
			s.fail(ctx, &summary, a, err)
			continue
		}
		if err := s.apply(ctx, a, dec, now, &summary); err != nil {
			if errors.Is(err, approval.ErrConflict) {
				summary.Conflicts++
				summary.Failures = append(summary.Failures, ItemFailure{ApprovalID: a.ID, RequestID: a.RequestID, Error: err.Error()})
				slog.Info("sweep skipped approval changed concurrently", "tenantId", tenantID, "approvalId", a.ID)
				continue
			}
			s.fail(ctx, &summary, a, err)
		}
	}

	summary.FinishedAt = s.now()
	if s.Metrics != nil {
		s.Metrics.RecordSweep(metrics.SweepCounts{
			Reminded:     summary.Reminded,
			Reassigned:   summary.Reassigned,
			Escalated:    summary.Escalated,
			AutoApproved: summary.AutoApproved,
			Held:         summary.Held,
			Failed:       len(summary.Failures),
		})
	}
	slog.Info("escalation sweep finished",
		"tenantId", tenantID,
		"examined", summary.Examined,
		"escalated", summary.Escalated,
		"autoApproved", summary.AutoApproved,
		"failures", len(summary.Failures))
	return summary, nil
}

// SweepAll sweeps every tenant with pending approvals. A tenant whose lock
// is held elsewhere is reported as skipped.
func (s *Sweeper) SweepAll(ctx context.Context) ([]SweepSummary, error) {
	tenants, err := s.Approvals.TenantsWithPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	out := make([]SweepSummary, 0, len(tenants))
	for _, tenantID := range tenants {
		summary, err := s.Sweep(ctx, tenantID)
		switch {
		case errors.Is(err, lock.ErrNotAcquired):
			summary.Skipped = true
			summary.SkipReason = "sweep already running"
		case err != nil:
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			slog.Warn("tenant sweep failed", "tenantId", tenantID, "err", err)
			summary.Skipped = true
			summary.SkipReason = err.Error()
		}
		out = append(out, summary)
	}
	return out, nil
}

// Preview evaluates one approval without applying the decision.
func (s *Sweeper) Preview(ctx context.Context, tenantID, approvalID string, at time.Time) (Decision, error) {
	a, err := s.Approvals.Get(ctx, tenantID, approvalID)
	if err != nil {
		return Decision{}, err
	}
	cfg, err := s.Settings.Settings(ctx, tenantID)
	if err != nil {
		return Decision{}, err
	}
	return s.Timer.Evaluate(ctx, a, cfg, at)
}

func (s *Sweeper) fail(ctx context.Context, summary *SweepSummary, a approval.Approval, err error) {
	slog.Warn("escalation failed for approval", "tenantId", a.TenantID, "approvalId", a.ID, "err", err)
	if recErr := s.Approvals.RecordFailure(ctx, a.TenantID, a.ID, err.Error()); recErr != nil {
		slog.Warn("record approval failure failed", "approvalId", a.ID, "err", recErr)
	}
	summary.Failures = append(summary.Failures, ItemFailure{ApprovalID: a.ID, RequestID: a.RequestID, Error: err.Error()})
}

func (s *Sweeper) apply(ctx context.Context, a approval.Approval, dec Decision, now time.Time, summary *SweepSummary) error {
	if dec.Action == ActionNone {
		return nil
	}
	next := a
	next.LastError = ""
	if dec.Chain != nil {
		next.Chain = dec.Chain
	}
	ev := approval.Event{
		ActorID:      approval.SystemActor,
		LevelIndex:   a.CurrentLevelIndex,
		Role:         roleAt(next, a.CurrentLevelIndex),
		FromApprover: a.AssignedApproverID,
		Note:         dec.Reason,
	}

	var recipient, ntype, title, body string
	switch dec.Action {
	case ActionRemind:
		next.RemindedAt = &now
		ev.Type = approval.EventReminded
		ev.ToApprover = a.AssignedApproverID
		recipient, ntype = a.AssignedApproverID, notifications.TypeApprovalReminder
		title = "Reminder: leave request awaiting approval"
		body = fmt.Sprintf("Request %s escalates at %s.", a.RequestID, dec.DueAt.UTC().Format(time.RFC3339))
	case ActionReassign:
		next.AssignedApproverID = dec.ApproverID
		next.LevelReassigned = true
		next.EnteredAt = now
		next.RemindedAt = nil
		ev.Type = approval.EventReassigned
		ev.ToApprover = dec.ApproverID
		recipient, ntype = dec.ApproverID, notifications.TypeApprovalReassigned
		title = "Leave request reassigned to you"
		body = fmt.Sprintf("Request %s was reassigned to you (%s).", a.RequestID, dec.Reason)
	case ActionEscalate:
		next.CurrentLevelIndex = dec.LevelIndex
		next.AssignedApproverID = dec.ApproverID
		next.EscalationCount++
		next.LevelReassigned = false
		next.EnteredAt = now
		next.RemindedAt = nil
		ev.Type = approval.EventEscalated
		ev.LevelIndex = dec.LevelIndex
		ev.Role = roleAt(next, dec.LevelIndex)
		ev.ToApprover = dec.ApproverID
		if len(dec.Skipped) > 0 {
			ev.Note = "skipped optional levels " + joinInts(dec.Skipped)
		}
		recipient, ntype = dec.ApproverID, notifications.TypeApprovalEscalated
		title = "Leave request escalated to you"
		body = fmt.Sprintf("Request %s was not decided in time and now needs your approval.", a.RequestID)
	case ActionAutoApprove:
		next.Status = approval.StatusAutoApproved
		next.AssignedApproverID = ""
		next.DecidedBy = approval.SystemActor
		next.DecidedAt = &now
		ev.Type = approval.EventAutoApproved
		recipient, ntype = a.RequesterID, notifications.TypeApprovalAutoApproved
		title = "Leave request approved"
		body = fmt.Sprintf("Request %s was approved automatically after escalation.", a.RequestID)
	case ActionHold:
		next.Status = approval.StatusEscalated
		ev.Type = approval.EventEscalationHeld
		recipient, ntype = a.AssignedApproverID, notifications.TypeApprovalHeld
		title = "Leave request needs manual decision"
		body = fmt.Sprintf("Request %s exhausted its escalations and awaits a manual decision.", a.RequestID)
	default:
		return fmt.Errorf("unknown escalation action %q", dec.Action)
	}

	updated, err := s.Approvals.Transition(ctx, next, a.Version, []approval.Event{ev})
	if err != nil {
		return err
	}

	switch dec.Action {
	case ActionRemind:
		summary.Reminded++
	case ActionReassign:
		summary.Reassigned++
	case ActionEscalate:
		summary.Escalated++
	case ActionAutoApprove:
		summary.AutoApproved++
	case ActionHold:
		summary.Held++
	}

	if s.Notifier != nil {
		if err := s.Notifier.Notify(ctx, notifications.Event{
			TenantID:    updated.TenantID,
			RecipientID: recipient,
			Type:        ntype,
			Title:       title,
			Body:        body,
			ApprovalID:  updated.ID,
			RequestID:   updated.RequestID,
		}); err != nil {
			slog.Warn("escalation notification failed", "tenantId", updated.TenantID, "approvalId", updated.ID, "type", ntype, "err", err)
		}
	}
	return nil
}

func roleAt(a approval.Approval, index int) string {
	if index < 0 || index >= len(a.Chain) {
		return ""
	}
	return a.Chain[index].Role
}

func joinInts(values []int) string {
	out := ""
	for i, v := range values {
		if i > 0 {
			out += ","
		}
		out += strconv.Itoa(v + 1)
	}
	return out
}
