package approval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"leaveflow/internal/platform/querier"
)

type Store struct {
	DB querier.TxBeginner
}

func NewStore(db querier.TxBeginner) *Store {
	return &Store{DB: db}
}

const approvalColumns = `id, tenant_id, request_id, requester_id, requester_role, leave_type_code, department,
    day_count::text, rule_id, chain_json, skip_duplicate_signatures, current_level_index, escalation_count,
    assigned_approver_id, level_reassigned, entered_at, reminded_at, status, decided_by, decided_at,
    last_error, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApproval(row rowScanner) (Approval, error) {
	var a Approval
	var dayCount string
	var chainJSON []byte
	if err := row.Scan(
		&a.ID, &a.TenantID, &a.RequestID, &a.RequesterID, &a.RequesterRole, &a.LeaveTypeCode, &a.Department,
		&dayCount, &a.RuleID, &chainJSON, &a.SkipDuplicateSignatures, &a.CurrentLevelIndex, &a.EscalationCount,
		&a.AssignedApproverID, &a.LevelReassigned, &a.EnteredAt, &a.RemindedAt, &a.Status, &a.DecidedBy, &a.DecidedAt,
		&a.LastError, &a.Version, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return Approval{}, err
	}
	if err := DecodeColumns(&a, dayCount, chainJSON); err != nil {
		return Approval{}, err
	}
	return a, nil
}

// DecodeColumns fills the fields stored as text or JSON.
func DecodeColumns(a *Approval, dayCount string, chainJSON []byte) error {
	days, err := decimal.NewFromString(dayCount)
	if err != nil {
		return fmt.Errorf("decode day count for approval %s: %w", a.ID, err)
	}
	a.DayCount = days
	if len(chainJSON) > 0 {
		if err := json.Unmarshal(chainJSON, &a.Chain); err != nil {
			return fmt.Errorf("decode chain for approval %s: %w", a.ID, err)
		}
	}
	return nil
}

func (s *Store) Create(ctx context.Context, a Approval, events []Event) (Approval, error) {
	chainJSON, err := json.Marshal(a.Chain)
	if err != nil {
		return Approval{}, err
	}
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return Approval{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	created, err := scanApproval(tx.QueryRow(ctx, `
    INSERT INTO approvals (tenant_id, request_id, requester_id, requester_role, leave_type_code, department,
      day_count, rule_id, chain_json, skip_duplicate_signatures, current_level_index, escalation_count,
      assigned_approver_id, level_reassigned, entered_at, status, decided_by, decided_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7::numeric,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
    RETURNING `+approvalColumns,
		a.TenantID, a.RequestID, a.RequesterID, a.RequesterRole, a.LeaveTypeCode, a.Department,
		a.DayCount.String(), a.RuleID, chainJSON, a.SkipDuplicateSignatures, a.CurrentLevelIndex, a.EscalationCount,
		a.AssignedApproverID, a.LevelReassigned, a.EnteredAt, a.Status, a.DecidedBy, a.DecidedAt))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Approval{}, ErrDuplicateRequest
		}
		return Approval{}, err
	}
	if err := insertEvents(ctx, tx, created, events); err != nil {
		return Approval{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Approval{}, err
	}
	return created, nil
}

func insertEvents(ctx context.Context, tx pgx.Tx, a Approval, events []Event) error {
	for _, ev := range events {
		if _, err := tx.Exec(ctx, `
      INSERT INTO approval_events (tenant_id, approval_id, type, actor_id, level_index, role, from_approver, to_approver, note)
      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
    `, a.TenantID, a.ID, ev.Type, ev.ActorID, ev.LevelIndex, ev.Role, ev.FromApprover, ev.ToApprover, ev.Note); err != nil {
			return fmt.Errorf("insert %s event: %w", ev.Type, err)
		}
	}
	return nil
}

func (s *Store) Get(ctx context.Context, tenantID, approvalID string) (Approval, error) {
	a, err := scanApproval(s.DB.QueryRow(ctx, `
    SELECT `+approvalColumns+`
    FROM approvals
    WHERE tenant_id = $1 AND id = $2
  `, tenantID, approvalID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Approval{}, ErrNotFound
	}
	return a, err
}

func (s *Store) GetByRequest(ctx context.Context, tenantID, requestID string) (Approval, error) {
	a, err := scanApproval(s.DB.QueryRow(ctx, `
    SELECT `+approvalColumns+`
    FROM approvals
    WHERE tenant_id = $1 AND request_id = $2
  `, tenantID, requestID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Approval{}, ErrNotFound
	}
	return a, err
}

func (s *Store) List(ctx context.Context, tenantID string, filter ListFilter) (ListResult, error) {
	where := " FROM approvals WHERE tenant_id = $1"
	args := []any{tenantID}
	if filter.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, filter.Status)
	}
	if filter.AssigneeID != "" {
		where += fmt.Sprintf(" AND assigned_approver_id = $%d", len(args)+1)
		args = append(args, filter.AssigneeID)
	}
	if filter.RequesterID != "" {
		where += fmt.Sprintf(" AND requester_id = $%d", len(args)+1)
		args = append(args, filter.RequesterID)
	}

	var result ListResult
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1)"+where, args...).Scan(&result.Total); err != nil {
		return ListResult{}, err
	}
	query := "SELECT " + approvalColumns + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	rows, err := s.DB.Query(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return ListResult{}, err
	}
	defer rows.Close()
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return ListResult{}, err
		}
		result.Items = append(result.Items, a)
	}
	return result, rows.Err()
}

func (s *Store) ListPending(ctx context.Context, tenantID string) ([]Approval, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+approvalColumns+`
    FROM approvals
    WHERE tenant_id = $1 AND status = $2
    ORDER BY entered_at, id
  `, tenantID, StatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Approval
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) Transition(ctx context.Context, next Approval, expectedVersion int, events []Event) (Approval, error) {
	chainJSON, err := json.Marshal(next.Chain)
	if err != nil {
		return Approval{}, err
	}
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return Approval{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	updated, err := scanApproval(tx.QueryRow(ctx, `
    UPDATE approvals
    SET chain_json = $4, current_level_index = $5, escalation_count = $6, assigned_approver_id = $7,
        level_reassigned = $8, entered_at = $9, reminded_at = $10, status = $11, decided_by = $12,
        decided_at = $13, last_error = $14, version = version + 1, updated_at = now()
    WHERE tenant_id = $1 AND id = $2 AND version = $3
    RETURNING `+approvalColumns,
		next.TenantID, next.ID, expectedVersion, chainJSON, next.CurrentLevelIndex, next.EscalationCount,
		next.AssignedApproverID, next.LevelReassigned, next.EnteredAt, next.RemindedAt, next.Status,
		next.DecidedBy, next.DecidedAt, next.LastError))
	if errors.Is(err, pgx.ErrNoRows) {
		return Approval{}, ErrConflict
	}
	if err != nil {
		return Approval{}, err
	}
	if err := insertEvents(ctx, tx, updated, events); err != nil {
		return Approval{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Approval{}, err
	}
	return updated, nil
}

func (s *Store) RecordFailure(ctx context.Context, tenantID, approvalID, message string) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE approvals SET last_error = $3, updated_at = now()
    WHERE tenant_id = $1 AND id = $2
  `, tenantID, approvalID, message)
	return err
}

func (s *Store) Events(ctx context.Context, tenantID, approvalID string) ([]Event, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, approval_id, type, actor_id, level_index, role, from_approver, to_approver, note, created_at
    FROM approval_events
    WHERE tenant_id = $1 AND approval_id = $2
    ORDER BY seq
  `, tenantID, approvalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.ID, &ev.ApprovalID, &ev.Type, &ev.ActorID, &ev.LevelIndex, &ev.Role, &ev.FromApprover, &ev.ToApprover, &ev.Note, &ev.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *Store) CountOpenByRule(ctx context.Context, tenantID, ruleID string) (int, error) {
	var total int
	err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1) FROM approvals
    WHERE tenant_id = $1 AND rule_id = $2 AND status IN ($3, $4)
  `, tenantID, ruleID, StatusPending, StatusEscalated).Scan(&total)
	return total, err
}

func (s *Store) TenantsWithPending(ctx context.Context) ([]string, error) {
	rows, err := s.DB.Query(ctx, `SELECT DISTINCT tenant_id FROM approvals WHERE status = $1 ORDER BY tenant_id`, StatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
