package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"leaveflow/internal/domain/workflow"
)

// WorkflowStore implements workflow.StoreAPI.
type WorkflowStore struct {
	db *sql.DB
}

func NewWorkflowStore(db *sql.DB) *WorkflowStore {
	return &WorkflowStore{db: db}
}

const ruleColumns = `id, tenant_id, name, description, conditions_json, approval_levels_json,
  priority, is_active, skip_duplicate_signatures, created_at, updated_at`

func scanRule(row rowScanner) (workflow.Rule, error) {
	var rule workflow.Rule
	var conditionsJSON, levelsJSON string
	if err := row.Scan(
		&rule.ID, &rule.TenantID, &rule.Name, &rule.Description, &conditionsJSON, &levelsJSON,
		&rule.Priority, &rule.IsActive, &rule.SkipDuplicateSignatures, &rule.CreatedAt, &rule.UpdatedAt,
	); err != nil {
		return workflow.Rule{}, err
	}
	if err := workflow.DecodeRuleJSON(&rule, []byte(conditionsJSON), []byte(levelsJSON)); err != nil {
		return workflow.Rule{}, err
	}
	return rule, nil
}

func (s *WorkflowStore) ListRules(ctx context.Context, tenantID string) ([]workflow.Rule, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+ruleColumns+" FROM workflow_rules WHERE tenant_id = ? ORDER BY created_at, seq", tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []workflow.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (s *WorkflowStore) GetRule(ctx context.Context, tenantID, ruleID string) (workflow.Rule, error) {
	rule, err := scanRule(s.db.QueryRowContext(ctx,
		"SELECT "+ruleColumns+" FROM workflow_rules WHERE tenant_id = ? AND id = ?", tenantID, ruleID))
	if errors.Is(err, sql.ErrNoRows) {
		return workflow.Rule{}, workflow.ErrNotFound
	}
	return rule, err
}

func (s *WorkflowStore) CreateRule(ctx context.Context, tenantID string, rule workflow.Rule) (workflow.Rule, error) {
	conditionsJSON, levelsJSON, err := workflow.EncodeRuleJSON(rule)
	if err != nil {
		return workflow.Rule{}, err
	}
	rule.ID = newID()
	rule.TenantID = tenantID
	now := utcNow()
	rule.CreatedAt, rule.UpdatedAt = now, now
	_, err = s.db.ExecContext(ctx, `
    INSERT INTO workflow_rules (id, tenant_id, name, description, conditions_json, approval_levels_json,
      priority, is_active, skip_duplicate_signatures, created_at, updated_at)
    VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		rule.ID, tenantID, rule.Name, rule.Description, string(conditionsJSON), string(levelsJSON),
		rule.Priority, rule.IsActive, rule.SkipDuplicateSignatures, now, now)
	if err != nil {
		return workflow.Rule{}, err
	}
	return rule, nil
}

func (s *WorkflowStore) UpdateRule(ctx context.Context, tenantID string, rule workflow.Rule) (workflow.Rule, error) {
	conditionsJSON, levelsJSON, err := workflow.EncodeRuleJSON(rule)
	if err != nil {
		return workflow.Rule{}, err
	}
	res, err := s.db.ExecContext(ctx, `
    UPDATE workflow_rules
    SET name = ?, description = ?, conditions_json = ?, approval_levels_json = ?,
        priority = ?, is_active = ?, skip_duplicate_signatures = ?, updated_at = ?
    WHERE tenant_id = ? AND id = ?`,
		rule.Name, rule.Description, string(conditionsJSON), string(levelsJSON),
		rule.Priority, rule.IsActive, rule.SkipDuplicateSignatures, utcNow(), tenantID, rule.ID)
	if err := affected(res, err, workflow.ErrNotFound); err != nil {
		return workflow.Rule{}, err
	}
	return s.GetRule(ctx, tenantID, rule.ID)
}

func (s *WorkflowStore) SetActive(ctx context.Context, tenantID, ruleID string, active bool) (workflow.Rule, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE workflow_rules SET is_active = ?, updated_at = ? WHERE tenant_id = ? AND id = ?",
		active, utcNow(), tenantID, ruleID)
	if err := affected(res, err, workflow.ErrNotFound); err != nil {
		return workflow.Rule{}, err
	}
	return s.GetRule(ctx, tenantID, ruleID)
}

func (s *WorkflowStore) DeleteRule(ctx context.Context, tenantID, ruleID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM workflow_rules WHERE tenant_id = ? AND id = ?", tenantID, ruleID)
	return affected(res, err, workflow.ErrNotFound)
}

// affected turns a zero-row write into notFound.
func affected(res sql.Result, err error, notFound error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
