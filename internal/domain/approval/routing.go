package approval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leaveflow/internal/domain/directory"
)

// Directory resolves who acts on a chain level.
type Directory interface {
	ResolveApprover(ctx context.Context, tenantID, role, department string, exclude []string, at time.Time) (string, error)
	Substitute(ctx context.Context, tenantID, approverID, role, department string, policy directory.Policy, exclude []string, at time.Time) (directory.Substitution, bool, error)
	CanActFor(ctx context.Context, tenantID, actorID, approverID string, at time.Time) (bool, error)
}

// Assignment is the next chain level that has someone to act on it.
type Assignment struct {
	LevelIndex   int
	ApproverID   string
	Skipped      []int
	Substitution *directory.Substitution
}

// NextAssignment walks the chain from level from and returns the first level
// with a resolvable approver. Optional levels nobody can take are skipped; a
// required one fails with directory.ErrNoApprover. found is false when the
// chain is exhausted.
func NextAssignment(ctx context.Context, dir Directory, a Approval, from int, policy directory.Policy, at time.Time) (Assignment, bool, error) {
	exclude := []string{a.RequesterID}
	var skipped []int
	for i := from; i < len(a.Chain); i++ {
		level := a.Chain[i]
		approverID, err := dir.ResolveApprover(ctx, a.TenantID, level.Role, a.Department, exclude, at)
		if err != nil {
			if errors.Is(err, directory.ErrNoApprover) && !level.Required {
				skipped = append(skipped, i)
				continue
			}
			return Assignment{LevelIndex: i, Skipped: skipped}, false, fmt.Errorf("level %d (%s): %w", i, level.Role, err)
		}
		asg := Assignment{LevelIndex: i, ApproverID: approverID, Skipped: skipped}
		sub, ok, err := dir.Substitute(ctx, a.TenantID, approverID, level.Role, a.Department, policy, exclude, at)
		if err != nil {
			return Assignment{LevelIndex: i, Skipped: skipped}, false, fmt.Errorf("level %d substitute: %w", i, err)
		}
		if ok {
			asg.ApproverID = sub.ApproverID
			asg.Substitution = &sub
		}
		return asg, true, nil
	}
	return Assignment{LevelIndex: len(a.Chain), Skipped: skipped}, false, nil
}
