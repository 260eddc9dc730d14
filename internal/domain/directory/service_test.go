package directory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leaveflow/internal/domain/directory"
	"leaveflow/internal/store/sqlite"
)

const tenant = "tenant-1"

var now = time.Date(2026, 4, 6, 10, 0, 0, 0, time.UTC)

func newService(t *testing.T) *directory.Service {
	t.Helper()
	db, err := sqlite.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return directory.NewService(sqlite.NewDirectoryStore(db))
}

func addApprover(t *testing.T, svc *directory.Service, userID, role, dept string) {
	t.Helper()
	_, err := svc.SaveApprover(context.Background(), tenant, directory.Approver{UserID: userID, Role: role, Department: dept, Active: true})
	require.NoError(t, err)
}

func TestSaveApproverNormalizesRole(t *testing.T) {
	svc := newService(t)
	saved, err := svc.SaveApprover(context.Background(), tenant, directory.Approver{UserID: " mgr-1 ", Role: " manager", Active: true})
	require.NoError(t, err)
	assert.Equal(t, "mgr-1", saved.UserID)
	assert.Equal(t, "MANAGER", saved.Role)

	_, err = svc.SaveApprover(context.Background(), tenant, directory.Approver{UserID: "x"})
	assert.ErrorIs(t, err, directory.ErrInvalid)
}

func TestResolveApproverSkipsExcludedAndAbsent(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	addApprover(t, svc, "mgr-1", "MANAGER", "")
	addApprover(t, svc, "mgr-2", "MANAGER", "")
	addApprover(t, svc, "mgr-3", "MANAGER", "")

	_, err := svc.CreateAbsence(ctx, tenant, directory.Absence{UserID: "mgr-2", StartsAt: now.Add(-time.Hour), EndsAt: now.Add(time.Hour)})
	require.NoError(t, err)

	got, err := svc.ResolveApprover(ctx, tenant, "MANAGER", "", []string{"mgr-1"}, now)
	require.NoError(t, err)
	assert.Equal(t, "mgr-3", got)

	_, err = svc.ResolveApprover(ctx, tenant, "DIRECTOR", "", nil, now)
	assert.ErrorIs(t, err, directory.ErrNoApprover)
}

func TestResolveApproverPrefersDepartment(t *testing.T) {
	svc := newService(t)
	addApprover(t, svc, "mgr-any", "MANAGER", "")
	addApprover(t, svc, "mgr-eng", "MANAGER", "Engineering")

	got, err := svc.ResolveApprover(context.Background(), tenant, "MANAGER", "Engineering", nil, now)
	require.NoError(t, err)
	assert.Equal(t, "mgr-eng", got)

	got, err = svc.ResolveApprover(context.Background(), tenant, "MANAGER", "Sales", nil, now)
	require.NoError(t, err)
	assert.Equal(t, "mgr-any", got)
}

func TestCreateDelegationValidation(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.CreateDelegation(ctx, tenant, directory.Delegation{DelegatorID: "a", DelegateID: "a", StartsAt: now, EndsAt: now.Add(time.Hour)})
	assert.ErrorIs(t, err, directory.ErrInvalid)
	_, err = svc.CreateDelegation(ctx, tenant, directory.Delegation{DelegatorID: "a", DelegateID: "b", StartsAt: now, EndsAt: now})
	assert.ErrorIs(t, err, directory.ErrInvalid)
	assert.ErrorIs(t, svc.RevokeDelegation(ctx, tenant, "not-a-uuid"), directory.ErrNotFound)
}

func TestSubstitute(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	addApprover(t, svc, "mgr-1", "MANAGER", "")
	addApprover(t, svc, "mgr-2", "MANAGER", "")

	_, err := svc.CreateDelegation(ctx, tenant, directory.Delegation{DelegatorID: "mgr-1", DelegateID: "deputy", StartsAt: now.Add(-time.Hour), EndsAt: now.Add(time.Hour)})
	require.NoError(t, err)

	t.Run("delegation wins when enabled", func(t *testing.T) {
		sub, ok, err := svc.Substitute(ctx, tenant, "mgr-1", "MANAGER", "", directory.Policy{SkipIfDelegated: true}, nil, now)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, directory.Substitution{ApproverID: "deputy", Reason: directory.ReasonDelegated}, sub)
	})

	t.Run("delegate excluded", func(t *testing.T) {
		_, ok, err := svc.Substitute(ctx, tenant, "mgr-1", "MANAGER", "", directory.Policy{SkipIfDelegated: true}, []string{"deputy"}, now)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("present approver keeps the item", func(t *testing.T) {
		_, ok, err := svc.Substitute(ctx, tenant, "mgr-2", "MANAGER", "", directory.Policy{SkipIfDelegated: true, SkipAbsent: true}, nil, now)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	_, err = svc.CreateAbsence(ctx, tenant, directory.Absence{UserID: "mgr-2", StartsAt: now.Add(-time.Hour), EndsAt: now.Add(time.Hour)})
	require.NoError(t, err)

	t.Run("absent approver falls back to alternate", func(t *testing.T) {
		sub, ok, err := svc.Substitute(ctx, tenant, "mgr-2", "MANAGER", "", directory.Policy{SkipAbsent: true}, nil, now)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, directory.Substitution{ApproverID: "mgr-1", Reason: directory.ReasonAbsent}, sub)
	})

	t.Run("absence ignored when disabled", func(t *testing.T) {
		_, ok, err := svc.Substitute(ctx, tenant, "mgr-2", "MANAGER", "", directory.Policy{}, nil, now)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestCanActFor(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	_, err := svc.CreateDelegation(ctx, tenant, directory.Delegation{DelegatorID: "mgr-1", DelegateID: "deputy", StartsAt: now.Add(-time.Hour), EndsAt: now.Add(time.Hour)})
	require.NoError(t, err)

	ok, err := svc.CanActFor(ctx, tenant, "mgr-1", "mgr-1", now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.CanActFor(ctx, tenant, "deputy", "mgr-1", now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.CanActFor(ctx, tenant, "deputy", "mgr-1", now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.CanActFor(ctx, tenant, "", "", now)
	require.NoError(t, err)
	assert.False(t, ok)
}
