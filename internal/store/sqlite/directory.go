package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"leaveflow/internal/domain/directory"
)

// DirectoryStore implements directory.StoreAPI.
type DirectoryStore struct {
	db *sql.DB
}

func NewDirectoryStore(db *sql.DB) *DirectoryStore {
	return &DirectoryStore{db: db}
}

func scanApprovers(rows *sql.Rows) ([]directory.Approver, error) {
	var out []directory.Approver
	for rows.Next() {
		var a directory.Approver
		if err := rows.Scan(&a.UserID, &a.Role, &a.Department, &a.Email, &a.Active, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *DirectoryStore) ListApprovers(ctx context.Context, tenantID string) ([]directory.Approver, error) {
	rows, err := s.db.QueryContext(ctx, `
    SELECT user_id, role, department, email, active, created_at
    FROM approvers WHERE tenant_id = ? ORDER BY role, user_id`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanApprovers(rows)
}

func (s *DirectoryStore) UpsertApprover(ctx context.Context, tenantID string, a directory.Approver) (directory.Approver, error) {
	_, err := s.db.ExecContext(ctx, `
    INSERT INTO approvers (tenant_id, user_id, role, department, email, active, created_at)
    VALUES (?,?,?,?,?,?,?)
    ON CONFLICT (tenant_id, user_id, role) DO UPDATE
      SET department = excluded.department, email = excluded.email, active = excluded.active`,
		tenantID, a.UserID, a.Role, a.Department, a.Email, a.Active, utcNow())
	if err != nil {
		return directory.Approver{}, err
	}
	err = s.db.QueryRowContext(ctx,
		"SELECT created_at FROM approvers WHERE tenant_id = ? AND user_id = ? AND role = ?",
		tenantID, a.UserID, a.Role).Scan(&a.CreatedAt)
	return a, err
}

func (s *DirectoryStore) DeleteApprover(ctx context.Context, tenantID, userID, role string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM approvers WHERE tenant_id = ? AND user_id = ? AND role = ?", tenantID, userID, role)
	return affected(res, err, directory.ErrNotFound)
}

func (s *DirectoryStore) ApproversForRole(ctx context.Context, tenantID, role, department string) ([]directory.Approver, error) {
	rows, err := s.db.QueryContext(ctx, `
    SELECT user_id, role, department, email, active, created_at
    FROM approvers
    WHERE tenant_id = ? AND role = ? AND active
      AND (department = '' OR lower(department) = lower(?))
    ORDER BY CASE WHEN department = '' THEN 1 ELSE 0 END, created_at, user_id`,
		tenantID, role, department)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanApprovers(rows)
}

func (s *DirectoryStore) ApproverEmail(ctx context.Context, tenantID, userID string) (string, error) {
	var email string
	err := s.db.QueryRowContext(ctx, `
    SELECT email FROM approvers
    WHERE tenant_id = ? AND user_id = ? AND email <> ''
    ORDER BY created_at LIMIT 1`, tenantID, userID).Scan(&email)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return email, err
}

const delegationColumns = `id, delegator_id, delegate_id, starts_at, ends_at, reason, revoked_at, created_at`

func scanDelegations(rows *sql.Rows) ([]directory.Delegation, error) {
	var out []directory.Delegation
	for rows.Next() {
		var d directory.Delegation
		var revokedAt sql.NullTime
		if err := rows.Scan(&d.ID, &d.DelegatorID, &d.DelegateID, &d.StartsAt, &d.EndsAt, &d.Reason, &revokedAt, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.RevokedAt = nullTime(revokedAt)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *DirectoryStore) ListDelegations(ctx context.Context, tenantID string) ([]directory.Delegation, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+delegationColumns+" FROM delegations WHERE tenant_id = ? ORDER BY starts_at DESC", tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDelegations(rows)
}

func (s *DirectoryStore) CreateDelegation(ctx context.Context, tenantID string, d directory.Delegation) (directory.Delegation, error) {
	d.ID = newID()
	d.CreatedAt = utcNow()
	d.StartsAt, d.EndsAt = utc(d.StartsAt), utc(d.EndsAt)
	_, err := s.db.ExecContext(ctx, `
    INSERT INTO delegations (id, tenant_id, delegator_id, delegate_id, starts_at, ends_at, reason, created_at)
    VALUES (?,?,?,?,?,?,?,?)`,
		d.ID, tenantID, d.DelegatorID, d.DelegateID, d.StartsAt, d.EndsAt, d.Reason, d.CreatedAt)
	return d, err
}

func (s *DirectoryStore) RevokeDelegation(ctx context.Context, tenantID, delegationID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE delegations SET revoked_at = ? WHERE tenant_id = ? AND id = ? AND revoked_at IS NULL",
		utc(at), tenantID, delegationID)
	return affected(res, err, directory.ErrNotFound)
}

func (s *DirectoryStore) ActiveDelegations(ctx context.Context, tenantID, delegatorID string, at time.Time) ([]directory.Delegation, error) {
	at = utc(at)
	rows, err := s.db.QueryContext(ctx, `
    SELECT `+delegationColumns+`
    FROM delegations
    WHERE tenant_id = ? AND delegator_id = ?
      AND starts_at <= ? AND ends_at > ?
      AND (revoked_at IS NULL OR revoked_at > ?)
    ORDER BY starts_at DESC, created_at DESC`,
		tenantID, delegatorID, at, at, at)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDelegations(rows)
}

func (s *DirectoryStore) ListAbsences(ctx context.Context, tenantID string) ([]directory.Absence, error) {
	rows, err := s.db.QueryContext(ctx, `
    SELECT id, user_id, starts_at, ends_at, reason, created_at
    FROM absences WHERE tenant_id = ? ORDER BY starts_at DESC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []directory.Absence
	for rows.Next() {
		var a directory.Absence
		if err := rows.Scan(&a.ID, &a.UserID, &a.StartsAt, &a.EndsAt, &a.Reason, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *DirectoryStore) CreateAbsence(ctx context.Context, tenantID string, a directory.Absence) (directory.Absence, error) {
	a.ID = newID()
	a.CreatedAt = utcNow()
	a.StartsAt, a.EndsAt = utc(a.StartsAt), utc(a.EndsAt)
	_, err := s.db.ExecContext(ctx, `
    INSERT INTO absences (id, tenant_id, user_id, starts_at, ends_at, reason, created_at)
    VALUES (?,?,?,?,?,?,?)`,
		a.ID, tenantID, a.UserID, a.StartsAt, a.EndsAt, a.Reason, a.CreatedAt)
	return a, err
}

func (s *DirectoryStore) DeleteAbsence(ctx context.Context, tenantID, absenceID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM absences WHERE tenant_id = ? AND id = ?", tenantID, absenceID)
	return affected(res, err, directory.ErrNotFound)
}

func (s *DirectoryStore) IsAbsent(ctx context.Context, tenantID, userID string, at time.Time) (bool, error) {
	at = utc(at)
	var n int
	err := s.db.QueryRowContext(ctx, `
    SELECT COUNT(1) FROM absences
    WHERE tenant_id = ? AND user_id = ? AND starts_at <= ? AND ends_at > ?`,
		tenantID, userID, at, at).Scan(&n)
	return n > 0, err
}
