package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"leaveflow/internal/domain/auth"
	"leaveflow/internal/domain/directory"
	"leaveflow/internal/domain/leave"
	"leaveflow/internal/domain/notifications"
	"leaveflow/internal/domain/workflow"
)

type RuleResolver interface {
	Resolve(ctx context.Context, tenantID string, req workflow.RequestAttributes) (workflow.Resolution, error)
}

// PolicySource supplies the tenant's substitution settings.
type PolicySource interface {
	SubstitutionPolicy(ctx context.Context, tenantID string) (directory.Policy, error)
}

type Notifier interface {
	Notify(ctx context.Context, ev notifications.Event) error
}

type Service struct {
	store     StoreAPI
	rules     RuleResolver
	directory Directory
	policies  PolicySource
	notifier  Notifier
	now       func() time.Time
}

func NewService(store StoreAPI, rules RuleResolver, dir Directory, policies PolicySource, notifier Notifier) *Service {
	return &Service{store: store, rules: rules, directory: dir, policies: policies, notifier: notifier, now: time.Now}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Submit starts the approval for a leave request. Submitting the same
// requestId again returns the existing approval with created=false.
func (s *Service) Submit(ctx context.Context, tenantID string, in SubmitInput) (Approval, bool, error) {
	in.RequestID = strings.TrimSpace(in.RequestID)
	in.RequesterID = strings.TrimSpace(in.RequesterID)
	if in.RequestID == "" || in.RequesterID == "" {
		return Approval{}, false, fmt.Errorf("%w: requestId and requesterId are required", ErrInvalidInput)
	}
	days, err := requestDays(in)
	if err != nil {
		return Approval{}, false, err
	}

	if existing, err := s.store.GetByRequest(ctx, tenantID, in.RequestID); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return Approval{}, false, err
	}

	a := Approval{
		TenantID:      tenantID,
		RequestID:     in.RequestID,
		RequesterID:   in.RequesterID,
		RequesterRole: strings.ToUpper(strings.TrimSpace(in.RequesterRole)),
		LeaveTypeCode: strings.TrimSpace(in.LeaveTypeCode),
		Department:    strings.TrimSpace(in.Department),
		DayCount:      days,
		Status:        StatusPending,
	}
	res, err := s.rules.Resolve(ctx, tenantID, a.Attributes())
	if err != nil {
		return Approval{}, false, err
	}
	if len(res.Chain) == 0 {
		return Approval{}, false, fmt.Errorf("%w: no approval chain configured", ErrInvalidInput)
	}
	a.RuleID = res.RuleID
	a.Chain = res.Chain
	a.SkipDuplicateSignatures = res.SkipDuplicateSignatures

	policy, err := s.policies.SubstitutionPolicy(ctx, tenantID)
	if err != nil {
		return Approval{}, false, err
	}
	now := s.now()
	a.EnteredAt = now

	note := "default chain"
	if !res.Fallback {
		note = "rule " + res.RuleName
	}
	events := []Event{{Type: EventSubmitted, ActorID: in.RequesterID, Note: note}}

	asg, found, err := NextAssignment(ctx, s.directory, a, 0, policy, now)
	if err != nil {
		return Approval{}, false, err
	}
	if found {
		a.CurrentLevelIndex = asg.LevelIndex
		a.AssignedApproverID = asg.ApproverID
	} else {
		a.Status = StatusAutoApproved
		a.CurrentLevelIndex = len(a.Chain) - 1
		a.DecidedBy = SystemActor
		a.DecidedAt = &now
		events = append(events, Event{Type: EventAutoApproved, ActorID: SystemActor, LevelIndex: a.CurrentLevelIndex, Note: "no level has an approver"})
	}

	created, err := s.store.Create(ctx, a, events)
	if errors.Is(err, ErrDuplicateRequest) {
		existing, getErr := s.store.GetByRequest(ctx, tenantID, in.RequestID)
		if getErr != nil {
			return Approval{}, false, getErr
		}
		return existing, false, nil
	}
	if err != nil {
		return Approval{}, false, err
	}

	if found {
		s.notify(ctx, created, created.AssignedApproverID, notifications.TypeApprovalRequested,
			"Leave request awaiting approval",
			fmt.Sprintf("Request %s (%s days) needs your approval.", created.RequestID, created.DayCount))
	} else {
		s.notify(ctx, created, created.RequesterID, notifications.TypeApprovalAutoApproved,
			"Leave request approved",
			fmt.Sprintf("Request %s was approved automatically.", created.RequestID))
	}
	return created, true, nil
}

func requestDays(in SubmitInput) (decimal.Decimal, error) {
	if in.DayCount != nil {
		if !in.DayCount.IsPositive() {
			return decimal.Zero, fmt.Errorf("%w: dayCount must be positive", ErrInvalidInput)
		}
		return *in.DayCount, nil
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return decimal.Zero, fmt.Errorf("%w: dayCount or startDate and endDate are required", ErrInvalidInput)
	}
	days, err := leave.CalculateRequestDays(in.StartDate, in.EndDate, in.StartHalf, in.EndHalf)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return days, nil
}

func (s *Service) Get(ctx context.Context, tenantID, approvalID string) (Approval, error) {
	if _, err := uuid.Parse(approvalID); err != nil {
		return Approval{}, ErrNotFound
	}
	return s.store.Get(ctx, tenantID, approvalID)
}

func (s *Service) List(ctx context.Context, tenantID string, filter ListFilter) (ListResult, error) {
	return s.store.List(ctx, tenantID, filter)
}

func (s *Service) History(ctx context.Context, tenantID, approvalID string) ([]Event, error) {
	if _, err := s.Get(ctx, tenantID, approvalID); err != nil {
		return nil, err
	}
	return s.store.Events(ctx, tenantID, approvalID)
}

// Visible reports whether actor may read a.
func (s *Service) Visible(ctx context.Context, a Approval, actor Actor) (bool, error) {
	if auth.RoleHas(actor.Role, auth.PermApprovalsReadAll) {
		return true, nil
	}
	if actor.UserID == a.RequesterID || actor.UserID == a.AssignedApproverID {
		return true, nil
	}
	if a.AssignedApproverID == "" {
		return false, nil
	}
	return s.directory.CanActFor(ctx, a.TenantID, actor.UserID, a.AssignedApproverID, s.now())
}

// Approve signs the current level and moves to the next one.
func (s *Service) Approve(ctx context.Context, tenantID, approvalID string, actor Actor, note string) (Approval, error) {
	a, err := s.Get(ctx, tenantID, approvalID)
	if err != nil {
		return Approval{}, err
	}
	if !a.Open() {
		return Approval{}, ErrInvalidState
	}
	now := s.now()
	if err := s.authorize(ctx, a, actor, now); err != nil {
		return Approval{}, err
	}
	policy, err := s.policies.SubstitutionPolicy(ctx, tenantID)
	if err != nil {
		return Approval{}, err
	}
	signers, err := s.signers(ctx, a)
	if err != nil {
		return Approval{}, err
	}
	signers[actor.UserID] = true

	events := []Event{{
		Type:         EventApproved,
		ActorID:      actor.UserID,
		LevelIndex:   a.CurrentLevelIndex,
		Role:         roleAt(a, a.CurrentLevelIndex),
		FromApprover: a.AssignedApproverID,
		Note:         note,
	}}
	next := a
	next.LastError = ""
	from := a.CurrentLevelIndex + 1
	for {
		asg, found, err := NextAssignment(ctx, s.directory, next, from, policy, now)
		if err != nil {
			next.Status = StatusEscalated
			next.CurrentLevelIndex = asg.LevelIndex
			next.AssignedApproverID = ""
			next.EnteredAt = now
			next.RemindedAt = nil
			next.LevelReassigned = false
			next.LastError = err.Error()
			events = append(events, Event{Type: EventEscalationHeld, ActorID: SystemActor, LevelIndex: asg.LevelIndex, Role: roleAt(next, asg.LevelIndex), Note: err.Error()})
			break
		}
		if !found {
			next.Status = StatusApproved
			next.AssignedApproverID = ""
			next.DecidedBy = actor.UserID
			next.DecidedAt = &now
			break
		}
		if next.SkipDuplicateSignatures && signers[asg.ApproverID] {
			events = append(events, Event{
				Type:       EventAutoSigned,
				ActorID:    asg.ApproverID,
				LevelIndex: asg.LevelIndex,
				Role:       roleAt(next, asg.LevelIndex),
				Note:       "approver already signed an earlier level",
			})
			next.CurrentLevelIndex = asg.LevelIndex
			from = asg.LevelIndex + 1
			continue
		}
		next.Status = StatusPending
		next.CurrentLevelIndex = asg.LevelIndex
		next.AssignedApproverID = asg.ApproverID
		next.EnteredAt = now
		next.RemindedAt = nil
		next.LevelReassigned = false
		break
	}

	updated, err := s.store.Transition(ctx, next, a.Version, events)
	if err != nil {
		return Approval{}, err
	}

	switch updated.Status {
	case StatusApproved:
		s.notify(ctx, updated, updated.RequesterID, notifications.TypeApprovalApproved,
			"Leave request approved", fmt.Sprintf("Request %s was approved.", updated.RequestID))
	case StatusPending:
		s.notify(ctx, updated, updated.AssignedApproverID, notifications.TypeApprovalRequested,
			"Leave request awaiting approval", fmt.Sprintf("Request %s needs your approval.", updated.RequestID))
	case StatusEscalated:
		s.notify(ctx, updated, "", notifications.TypeApprovalHeld,
			"Leave request needs attention", fmt.Sprintf("Request %s has no approver for its next level.", updated.RequestID))
	}
	return updated, nil
}

func (s *Service) Reject(ctx context.Context, tenantID, approvalID string, actor Actor, note string) (Approval, error) {
	a, err := s.Get(ctx, tenantID, approvalID)
	if err != nil {
		return Approval{}, err
	}
	if !a.Open() {
		return Approval{}, ErrInvalidState
	}
	now := s.now()
	if err := s.authorize(ctx, a, actor, now); err != nil {
		return Approval{}, err
	}

	next := a
	next.Status = StatusRejected
	next.AssignedApproverID = ""
	next.DecidedBy = actor.UserID
	next.DecidedAt = &now
	next.LastError = ""
	updated, err := s.store.Transition(ctx, next, a.Version, []Event{{
		Type:         EventRejected,
		ActorID:      actor.UserID,
		LevelIndex:   a.CurrentLevelIndex,
		Role:         roleAt(a, a.CurrentLevelIndex),
		FromApprover: a.AssignedApproverID,
		Note:         note,
	}})
	if err != nil {
		return Approval{}, err
	}
	s.notify(ctx, updated, updated.RequesterID, notifications.TypeApprovalRejected,
		"Leave request rejected", fmt.Sprintf("Request %s was rejected.", updated.RequestID))
	return updated, nil
}

// authorize lets HR act on anything open, and otherwise only the assigned
// approver or their active delegate. Requesters never decide their own.
func (s *Service) authorize(ctx context.Context, a Approval, actor Actor, at time.Time) error {
	if actor.UserID == "" || actor.UserID == a.RequesterID {
		return ErrForbidden
	}
	if strings.EqualFold(actor.Role, auth.RoleHR) {
		return nil
	}
	if a.AssignedApproverID == "" {
		return ErrForbidden
	}
	ok, err := s.directory.CanActFor(ctx, a.TenantID, actor.UserID, a.AssignedApproverID, at)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

func (s *Service) signers(ctx context.Context, a Approval) (map[string]bool, error) {
	events, err := s.store.Events(ctx, a.TenantID, a.ID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool)
	for _, ev := range events {
		if ev.Type == EventApproved || ev.Type == EventAutoSigned {
			out[ev.ActorID] = true
		}
	}
	return out, nil
}

func (s *Service) notify(ctx context.Context, a Approval, recipient, ntype, title, body string) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.Notify(ctx, notifications.Event{
		TenantID:    a.TenantID,
		RecipientID: recipient,
		Type:        ntype,
		Title:       title,
		Body:        body,
		ApprovalID:  a.ID,
		RequestID:   a.RequestID,
	})
	if err != nil {
		slog.Warn("approval notification failed", "tenantId", a.TenantID, "approvalId", a.ID, "type", ntype, "err", err)
	}
}

func roleAt(a Approval, index int) string {
	if index < 0 || index >= len(a.Chain) {
		return ""
	}
	return a.Chain[index].Role
}
