package directory

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"leaveflow/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

func (s *Store) ListApprovers(ctx context.Context, tenantID string) ([]Approver, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT user_id, role, department, email, active, created_at
    FROM approvers
    WHERE tenant_id = $1
    ORDER BY role, user_id
  `, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanApprovers(rows)
}

func scanApprovers(rows pgx.Rows) ([]Approver, error) {
	var out []Approver
	for rows.Next() {
		var a Approver
		if err := rows.Scan(&a.UserID, &a.Role, &a.Department, &a.Email, &a.Active, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) UpsertApprover(ctx context.Context, tenantID string, a Approver) (Approver, error) {
	err := s.DB.QueryRow(ctx, `
    INSERT INTO approvers (tenant_id, user_id, role, department, email, active)
    VALUES ($1,$2,$3,$4,$5,$6)
    ON CONFLICT (tenant_id, user_id, role) DO UPDATE
      SET department = EXCLUDED.department, email = EXCLUDED.email, active = EXCLUDED.active
    RETURNING created_at
  `, tenantID, a.UserID, a.Role, a.Department, a.Email, a.Active).Scan(&a.CreatedAt)
	return a, err
}

func (s *Store) DeleteApprover(ctx context.Context, tenantID, userID, role string) error {
	tag, err := s.DB.Exec(ctx, `DELETE FROM approvers WHERE tenant_id = $1 AND user_id = $2 AND role = $3`, tenantID, userID, role)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ApproversForRole(ctx context.Context, tenantID, role, department string) ([]Approver, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT user_id, role, department, email, active, created_at
    FROM approvers
    WHERE tenant_id = $1 AND role = $2 AND active
      AND (department = '' OR lower(department) = lower($3))
    ORDER BY CASE WHEN department = '' THEN 1 ELSE 0 END, created_at, user_id
  `, tenantID, role, department)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanApprovers(rows)
}

func (s *Store) ApproverEmail(ctx context.Context, tenantID, userID string) (string, error) {
	var email string
	err := s.DB.QueryRow(ctx, `
    SELECT email FROM approvers
    WHERE tenant_id = $1 AND user_id = $2 AND email <> ''
    ORDER BY created_at
    LIMIT 1
  `, tenantID, userID).Scan(&email)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return email, err
}

const delegationColumns = `id, delegator_id, delegate_id, starts_at, ends_at, reason, revoked_at, created_at`

func scanDelegations(rows pgx.Rows) ([]Delegation, error) {
	var out []Delegation
	for rows.Next() {
		var d Delegation
		if err := rows.Scan(&d.ID, &d.DelegatorID, &d.DelegateID, &d.StartsAt, &d.EndsAt, &d.Reason, &d.RevokedAt, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) ListDelegations(ctx context.Context, tenantID string) ([]Delegation, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+delegationColumns+`
    FROM delegations
    WHERE tenant_id = $1
    ORDER BY starts_at DESC
  `, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDelegations(rows)
}

func (s *Store) CreateDelegation(ctx context.Context, tenantID string, d Delegation) (Delegation, error) {
	err := s.DB.QueryRow(ctx, `
    INSERT INTO delegations (tenant_id, delegator_id, delegate_id, starts_at, ends_at, reason)
    VALUES ($1,$2,$3,$4,$5,$6)
    RETURNING id, created_at
  `, tenantID, d.DelegatorID, d.DelegateID, d.StartsAt, d.EndsAt, d.Reason).Scan(&d.ID, &d.CreatedAt)
	return d, err
}

func (s *Store) RevokeDelegation(ctx context.Context, tenantID, delegationID string, at time.Time) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE delegations SET revoked_at = $3
    WHERE tenant_id = $1 AND id = $2 AND revoked_at IS NULL
  `, tenantID, delegationID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ActiveDelegations(ctx context.Context, tenantID, delegatorID string, at time.Time) ([]Delegation, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+delegationColumns+`
    FROM delegations
    WHERE tenant_id = $1 AND delegator_id = $2
      AND starts_at <= $3 AND ends_at > $3
      AND (revoked_at IS NULL OR revoked_at > $3)
    ORDER BY starts_at DESC, created_at DESC
  `, tenantID, delegatorID, at)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDelegations(rows)
}

func (s *Store) ListAbsences(ctx context.Context, tenantID string) ([]Absence, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, user_id, starts_at, ends_at, reason, created_at
    FROM absences
    WHERE tenant_id = $1
    ORDER BY starts_at DESC
  `, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Absence
	for rows.Next() {
		var a Absence
		if err := rows.Scan(&a.ID, &a.UserID, &a.StartsAt, &a.EndsAt, &a.Reason, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) CreateAbsence(ctx context.Context, tenantID string, a Absence) (Absence, error) {
	err := s.DB.QueryRow(ctx, `
    INSERT INTO absences (tenant_id, user_id, starts_at, ends_at, reason)
    VALUES ($1,$2,$3,$4,$5)
    RETURNING id, created_at
  `, tenantID, a.UserID, a.StartsAt, a.EndsAt, a.Reason).Scan(&a.ID, &a.CreatedAt)
	return a, err
}

func (s *Store) DeleteAbsence(ctx context.Context, tenantID, absenceID string) error {
	tag, err := s.DB.Exec(ctx, `DELETE FROM absences WHERE tenant_id = $1 AND id = $2`, tenantID, absenceID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) IsAbsent(ctx context.Context, tenantID, userID string, at time.Time) (bool, error) {
	var absent bool
	err := s.DB.QueryRow(ctx, `
    SELECT EXISTS (
      SELECT 1 FROM absences
      WHERE tenant_id = $1 AND user_id = $2 AND starts_at <= $3 AND ends_at > $3
    )
  `, tenantID, userID, at).Scan(&absent)
	return absent, err
}
