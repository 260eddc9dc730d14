package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"leaveflow/internal/domain/approval"
)

// ApprovalStore implements approval.StoreAPI.
type ApprovalStore struct {
	db *sql.DB
}

func NewApprovalStore(db *sql.DB) *ApprovalStore {
	return &ApprovalStore{db: db}
}

const approvalColumns = `id, tenant_id, request_id, requester_id, requester_role, leave_type_code, department,
  day_count, rule_id, chain_json, skip_duplicate_signatures, current_level_index, escalation_count,
  assigned_approver_id, level_reassigned, entered_at, reminded_at, status, decided_by, decided_at,
  last_error, version, created_at, updated_at`

func scanApproval(row rowScanner) (approval.Approval, error) {
	var a approval.Approval
	var dayCount, chainJSON string
	var remindedAt, decidedAt sql.NullTime
	if err := row.Scan(
		&a.ID, &a.TenantID, &a.RequestID, &a.RequesterID, &a.RequesterRole, &a.LeaveTypeCode, &a.Department,
		&dayCount, &a.RuleID, &chainJSON, &a.SkipDuplicateSignatures, &a.CurrentLevelIndex, &a.EscalationCount,
		&a.AssignedApproverID, &a.LevelReassigned, &a.EnteredAt, &remindedAt, &a.Status, &a.DecidedBy, &decidedAt,
		&a.LastError, &a.Version, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return approval.Approval{}, err
	}
	a.RemindedAt = nullTime(remindedAt)
	a.DecidedAt = nullTime(decidedAt)
	if err := approval.DecodeColumns(&a, dayCount, []byte(chainJSON)); err != nil {
		return approval.Approval{}, err
	}
	return a, nil
}

func encodeChain(a approval.Approval) (string, error) {
	chain := a.Chain
	if chain == nil {
		return "[]", nil
	}
	raw, err := json.Marshal(chain)
	if err != nil {
		return "", fmt.Errorf("encode chain: %w", err)
	}
	return string(raw), nil
}

func (s *ApprovalStore) Create(ctx context.Context, a approval.Approval, events []approval.Event) (approval.Approval, error) {
	chainJSON, err := encodeChain(a)
	if err != nil {
		return approval.Approval{}, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return approval.Approval{}, err
	}
	defer func() { _ = tx.Rollback() }()

	now := utcNow()
	a.ID = newID()
	_, err = tx.ExecContext(ctx, `
    INSERT INTO approvals (id, tenant_id, request_id, requester_id, requester_role, leave_type_code, department,
      day_count, rule_id, chain_json, skip_duplicate_signatures, current_level_index, escalation_count,
      assigned_approver_id, level_reassigned, entered_at, reminded_at, status, decided_by, decided_at,
      last_error, version, created_at, updated_at)
    VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,1,?,?)`,
		a.ID, a.TenantID, a.RequestID, a.RequesterID, a.RequesterRole, a.LeaveTypeCode, a.Department,
		a.DayCount.String(), a.RuleID, chainJSON, a.SkipDuplicateSignatures, a.CurrentLevelIndex, a.EscalationCount,
		a.AssignedApproverID, a.LevelReassigned, utc(a.EnteredAt), utcPtr(a.RemindedAt), a.Status, a.DecidedBy, utcPtr(a.DecidedAt),
		a.LastError, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return approval.Approval{}, approval.ErrDuplicateRequest
		}
		return approval.Approval{}, err
	}
	if err := insertEvents(ctx, tx, a, events); err != nil {
		return approval.Approval{}, err
	}
	created, err := scanApproval(tx.QueryRowContext(ctx,
		"SELECT "+approvalColumns+" FROM approvals WHERE id = ?", a.ID))
	if err != nil {
		return approval.Approval{}, err
	}
	if err := tx.Commit(); err != nil {
		return approval.Approval{}, err
	}
	return created, nil
}

func insertEvents(ctx context.Context, tx *sql.Tx, a approval.Approval, events []approval.Event) error {
	for _, ev := range events {
		if _, err := tx.ExecContext(ctx, `
      INSERT INTO approval_events (id, tenant_id, approval_id, type, actor_id, level_index, role,
        from_approver, to_approver, note, created_at)
      VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
			newID(), a.TenantID, a.ID, ev.Type, ev.ActorID, ev.LevelIndex, ev.Role,
			ev.FromApprover, ev.ToApprover, ev.Note, utcNow()); err != nil {
			return fmt.Errorf("insert %s event: %w", ev.Type, err)
		}
	}
	return nil
}

func (s *ApprovalStore) Get(ctx context.Context, tenantID, approvalID string) (approval.Approval, error) {
	a, err := scanApproval(s.db.QueryRowContext(ctx,
		"SELECT "+approvalColumns+" FROM approvals WHERE tenant_id = ? AND id = ?", tenantID, approvalID))
	if errors.Is(err, sql.ErrNoRows) {
		return approval.Approval{}, approval.ErrNotFound
	}
	return a, err
}

func (s *ApprovalStore) GetByRequest(ctx context.Context, tenantID, requestID string) (approval.Approval, error) {
	a, err := scanApproval(s.db.QueryRowContext(ctx,
		"SELECT "+approvalColumns+" FROM approvals WHERE tenant_id = ? AND request_id = ?", tenantID, requestID))
	if errors.Is(err, sql.ErrNoRows) {
		return approval.Approval{}, approval.ErrNotFound
	}
	return a, err
}

func (s *ApprovalStore) List(ctx context.Context, tenantID string, filter approval.ListFilter) (approval.ListResult, error) {
	where := " FROM approvals WHERE tenant_id = ?"
	args := []any{tenantID}
	if filter.Status != "" {
		where += " AND status = ?"
		args = append(args, filter.Status)
	}
	if filter.AssigneeID != "" {
		where += " AND assigned_approver_id = ?"
		args = append(args, filter.AssigneeID)
	}
	if filter.RequesterID != "" {
		where += " AND requester_id = ?"
		args = append(args, filter.RequesterID)
	}

	result := approval.ListResult{Items: []approval.Approval{}}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1)"+where, args...).Scan(&result.Total); err != nil {
		return approval.ListResult{}, err
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+approvalColumns+where+" ORDER BY created_at DESC, id LIMIT ? OFFSET ?",
		append(args, limit, filter.Offset)...)
	if err != nil {
		return approval.ListResult{}, err
	}
	defer rows.Close()
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return approval.ListResult{}, err
		}
		result.Items = append(result.Items, a)
	}
	return result, rows.Err()
}

func (s *ApprovalStore) ListPending(ctx context.Context, tenantID string) ([]approval.Approval, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+approvalColumns+" FROM approvals WHERE tenant_id = ? AND status = ? ORDER BY entered_at, id",
		tenantID, approval.StatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []approval.Approval
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *ApprovalStore) Transition(ctx context.Context, next approval.Approval, expectedVersion int, events []approval.Event) (approval.Approval, error) {
	chainJSON, err := encodeChain(next)
	if err != nil {
		return approval.Approval{}, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return approval.Approval{}, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
    UPDATE approvals
    SET chain_json = ?, current_level_index = ?, escalation_count = ?, assigned_approver_id = ?,
        level_reassigned = ?, entered_at = ?, reminded_at = ?, status = ?, decided_by = ?,
        decided_at = ?, last_error = ?, version = version + 1, updated_at = ?
    WHERE tenant_id = ? AND id = ? AND version = ?`,
		chainJSON, next.CurrentLevelIndex, next.EscalationCount, next.AssignedApproverID,
		next.LevelReassigned, utc(next.EnteredAt), utcPtr(next.RemindedAt), next.Status, next.DecidedBy,
		utcPtr(next.DecidedAt), next.LastError, utcNow(), next.TenantID, next.ID, expectedVersion)
	if err := affected(res, err, approval.ErrConflict); err != nil {
		return approval.Approval{}, err
	}
	if err := insertEvents(ctx, tx, next, events); err != nil {
		return approval.Approval{}, err
	}
	updated, err := scanApproval(tx.QueryRowContext(ctx,
		"SELECT "+approvalColumns+" FROM approvals WHERE id = ?", next.ID))
	if err != nil {
		return approval.Approval{}, err
	}
	if err := tx.Commit(); err != nil {
		return approval.Approval{}, err
	}
	return updated, nil
}

func (s *ApprovalStore) RecordFailure(ctx context.Context, tenantID, approvalID, message string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE approvals SET last_error = ?, updated_at = ? WHERE tenant_id = ? AND id = ?",
		message, utcNow(), tenantID, approvalID)
	return err
}

func (s *ApprovalStore) Events(ctx context.Context, tenantID, approvalID string) ([]approval.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
    SELECT id, approval_id, type, actor_id, level_index, role, from_approver, to_approver, note, created_at
    FROM approval_events
    WHERE tenant_id = ? AND approval_id = ?
    ORDER BY seq`, tenantID, approvalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []approval.Event
	for rows.Next() {
		var ev approval.Event
		if err := rows.Scan(&ev.ID, &ev.ApprovalID, &ev.Type, &ev.ActorID, &ev.LevelIndex, &ev.Role,
			&ev.FromApprover, &ev.ToApprover, &ev.Note, &ev.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *ApprovalStore) CountOpenByRule(ctx context.Context, tenantID, ruleID string) (int, error) {
	var total int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM approvals WHERE tenant_id = ? AND rule_id = ? AND status IN (?, ?)",
		tenantID, ruleID, approval.StatusPending, approval.StatusEscalated).Scan(&total)
	return total, err
}

func (s *ApprovalStore) TenantsWithPending(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT tenant_id FROM approvals WHERE status = ? ORDER BY tenant_id", approval.StatusPending)
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
