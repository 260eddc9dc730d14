package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	store StoreAPI
	now   func() time.Time
}

func NewService(store StoreAPI) *Service {
	return &Service{store: store, now: time.Now}
}

func (s *Service) ListApprovers(ctx context.Context, tenantID string) ([]Approver, error) {
	return s.store.ListApprovers(ctx, tenantID)
}

func (s *Service) SaveApprover(ctx context.Context, tenantID string, a Approver) (Approver, error) {
	a.UserID = strings.TrimSpace(a.UserID)
	a.Role = strings.ToUpper(strings.TrimSpace(a.Role))
	a.Department = strings.TrimSpace(a.Department)
	a.Email = strings.TrimSpace(a.Email)
	if a.UserID == "" || a.Role == "" {
		return Approver{}, fmt.Errorf("%w: userId and role are required", ErrInvalid)
	}
	return s.store.UpsertApprover(ctx, tenantID, a)
}

func (s *Service) DeleteApprover(ctx context.Context, tenantID, userID, role string) error {
	return s.store.DeleteApprover(ctx, tenantID, userID, strings.ToUpper(strings.TrimSpace(role)))
}

func (s *Service) ListDelegations(ctx context.Context, tenantID string) ([]Delegation, error) {
	return s.store.ListDelegations(ctx, tenantID)
}

func (s *Service) CreateDelegation(ctx context.Context, tenantID string, d Delegation) (Delegation, error) {
	d.DelegatorID = strings.TrimSpace(d.DelegatorID)
	d.DelegateID = strings.TrimSpace(d.DelegateID)
	switch {
	case d.DelegatorID == "" || d.DelegateID == "":
		return Delegation{}, fmt.Errorf("%w: delegatorId and delegateId are required", ErrInvalid)
	case d.DelegatorID == d.DelegateID:
		return Delegation{}, fmt.Errorf("%w: a user cannot delegate to themselves", ErrInvalid)
	case !d.EndsAt.After(d.StartsAt):
		return Delegation{}, fmt.Errorf("%w: endsAt must be after startsAt", ErrInvalid)
	}
	return s.store.CreateDelegation(ctx, tenantID, d)
}

func (s *Service) RevokeDelegation(ctx context.Context, tenantID, delegationID string) error {
	if _, err := uuid.Parse(delegationID); err != nil {
		return ErrNotFound
	}
	return s.store.RevokeDelegation(ctx, tenantID, delegationID, s.now())
}

func (s *Service) ListAbsences(ctx context.Context, tenantID string) ([]Absence, error) {
	return s.store.ListAbsences(ctx, tenantID)
}

func (s *Service) CreateAbsence(ctx context.Context, tenantID string, a Absence) (Absence, error) {
	a.UserID = strings.TrimSpace(a.UserID)
	if a.UserID == "" {
		return Absence{}, fmt.Errorf("%w: userId is required", ErrInvalid)
	}
	if !a.EndsAt.After(a.StartsAt) {
		return Absence{}, fmt.Errorf("%w: endsAt must be after startsAt", ErrInvalid)
	}
	return s.store.CreateAbsence(ctx, tenantID, a)
}

func (s *Service) DeleteAbsence(ctx context.Context, tenantID, absenceID string) error {
	if _, err := uuid.Parse(absenceID); err != nil {
		return ErrNotFound
	}
	return s.store.DeleteAbsence(ctx, tenantID, absenceID)
}

func (s *Service) ApproverEmail(ctx context.Context, tenantID, userID string) (string, error) {
	return s.store.ApproverEmail(ctx, tenantID, userID)
}

// ResolveApprover returns the first active, present approver for role who
// is not in exclude. ErrNoApprover is returned when nobody qualifies.
func (s *Service) ResolveApprover(ctx context.Context, tenantID, role, department string, exclude []string, at time.Time) (string, error) {
	candidates, err := s.store.ApproversForRole(ctx, tenantID, role, department)
	if err != nil {
		return "", fmt.Errorf("approvers for %s: %w", role, err)
	}
	for _, c := range candidates {
		if contains(exclude, c.UserID) {
			continue
		}
		absent, err := s.store.IsAbsent(ctx, tenantID, c.UserID, at)
		if err != nil {
			return "", err
		}
		if !absent {
			return c.UserID, nil
		}
	}
	return "", fmt.Errorf("%w for role %s", ErrNoApprover, role)
}

// ActiveDelegate returns the user currently acting for approverID.
func (s *Service) ActiveDelegate(ctx context.Context, tenantID, approverID string, at time.Time) (string, bool, error) {
	delegations, err := s.store.ActiveDelegations(ctx, tenantID, approverID, at)
	if err != nil {
		return "", false, fmt.Errorf("active delegations for %s: %w", approverID, err)
	}
	for _, d := range delegations {
		if d.ActiveAt(at) && d.DelegateID != approverID {
			return d.DelegateID, true, nil
		}
	}
	return "", false, nil
}

// Substitute finds who should act instead of approverID under policy. It
// reports false when approverID should keep the item. exclude lists users
// who may never be chosen, such as the requester.
func (s *Service) Substitute(ctx context.Context, tenantID, approverID, role, department string, policy Policy, exclude []string, at time.Time) (Substitution, bool, error) {
	if approverID == "" {
		return Substitution{}, false, nil
	}
	if policy.SkipIfDelegated {
		delegate, ok, err := s.ActiveDelegate(ctx, tenantID, approverID, at)
		if err != nil {
			return Substitution{}, false, err
		}
		if ok && !contains(exclude, delegate) {
			return Substitution{ApproverID: delegate, Reason: ReasonDelegated}, true, nil
		}
	}
	if !policy.SkipAbsent {
		return Substitution{}, false, nil
	}
	absent, err := s.store.IsAbsent(ctx, tenantID, approverID, at)
	if err != nil {
		return Substitution{}, false, fmt.Errorf("absence of %s: %w", approverID, err)
	}
	if !absent {
		return Substitution{}, false, nil
	}
	if delegate, ok, err := s.ActiveDelegate(ctx, tenantID, approverID, at); err != nil {
		return Substitution{}, false, err
	} else if ok && !contains(exclude, delegate) {
		if away, err := s.store.IsAbsent(ctx, tenantID, delegate, at); err == nil && !away {
			return Substitution{ApproverID: delegate, Reason: ReasonAbsent}, true, nil
		}
	}
	alternate, err := s.ResolveApprover(ctx, tenantID, role, department, append([]string{approverID}, exclude...), at)
	if err != nil {
		if errors.Is(err, ErrNoApprover) {
			return Substitution{}, false, nil
		}
		return Substitution{}, false, err
	}
	return Substitution{ApproverID: alternate, Reason: ReasonAbsent}, true, nil
}

// CanActFor reports whether actorID may decide an item assigned to
// approverID, either directly or as an active delegate.
func (s *Service) CanActFor(ctx context.Context, tenantID, actorID, approverID string, at time.Time) (bool, error) {
	if actorID == "" {
		return false, nil
	}
	if actorID == approverID {
		return true, nil
	}
	delegations, err := s.store.ActiveDelegations(ctx, tenantID, approverID, at)
	if err != nil {
		return false, err
	}
	for _, d := range delegations {
		if d.ActiveAt(at) && d.DelegateID == actorID {
			return true, nil
		}
	}
	return false, nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
