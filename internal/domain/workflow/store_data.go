package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"leaveflow/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

const ruleColumns = `id, tenant_id, name, description, conditions_json, approval_levels_json,
    priority, is_active, skip_duplicate_signatures, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (Rule, error) {
	var rule Rule
	var conditionsJSON, levelsJSON []byte
	if err := row.Scan(
		&rule.ID, &rule.TenantID, &rule.Name, &rule.Description, &conditionsJSON, &levelsJSON,
		&rule.Priority, &rule.IsActive, &rule.SkipDuplicateSignatures, &rule.CreatedAt, &rule.UpdatedAt,
	); err != nil {
		return Rule{}, err
	}
	if err := DecodeRuleJSON(&rule, conditionsJSON, levelsJSON); err != nil {
		return Rule{}, err
	}
	return rule, nil
}

// EncodeRuleJSON serializes the JSON columns shared by every store.
func EncodeRuleJSON(rule Rule) ([]byte, []byte, error) {
	conditionsJSON, err := json.Marshal(rule.Conditions)
	if err != nil {
		return nil, nil, fmt.Errorf("encode conditions: %w", err)
	}
	levels := rule.ApprovalLevels
	if levels == nil {
		levels = ApprovalChain{}
	}
	levelsJSON, err := json.Marshal(levels)
	if err != nil {
		return nil, nil, fmt.Errorf("encode approval levels: %w", err)
	}
	return conditionsJSON, levelsJSON, nil
}

func DecodeRuleJSON(rule *Rule, conditionsJSON, levelsJSON []byte) error {
	if len(conditionsJSON) > 0 {
		if err := json.Unmarshal(conditionsJSON, &rule.Conditions); err != nil {
			return fmt.Errorf("decode conditions for rule %s: %w", rule.ID, err)
		}
	}
	if len(levelsJSON) > 0 {
		if err := json.Unmarshal(levelsJSON, &rule.ApprovalLevels); err != nil {
			return fmt.Errorf("decode approval levels for rule %s: %w", rule.ID, err)
		}
	}
	return nil
}

func (s *Store) ListRules(ctx context.Context, tenantID string) ([]Rule, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+ruleColumns+`
    FROM workflow_rules
    WHERE tenant_id = $1
    ORDER BY created_at, seq
  `, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (s *Store) GetRule(ctx context.Context, tenantID, ruleID string) (Rule, error) {
	rule, err := scanRule(s.DB.QueryRow(ctx, `
    SELECT `+ruleColumns+`
    FROM workflow_rules
    WHERE tenant_id = $1 AND id = $2
  `, tenantID, ruleID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Rule{}, ErrNotFound
	}
	return rule, err
}

func (s *Store) CreateRule(ctx context.Context, tenantID string, rule Rule) (Rule, error) {
	conditionsJSON, levelsJSON, err := EncodeRuleJSON(rule)
	if err != nil {
		return Rule{}, err
	}
	return scanRule(s.DB.QueryRow(ctx, `
    INSERT INTO workflow_rules (tenant_id, name, description, conditions_json, approval_levels_json,
      priority, is_active, skip_duplicate_signatures)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
    RETURNING `+ruleColumns,
		tenantID, rule.Name, rule.Description, conditionsJSON, levelsJSON,
		rule.Priority, rule.IsActive, rule.SkipDuplicateSignatures))
}

func (s *Store) UpdateRule(ctx context.Context, tenantID string, rule Rule) (Rule, error) {
	conditionsJSON, levelsJSON, err := EncodeRuleJSON(rule)
	if err != nil {
		return Rule{}, err
	}
	updated, err := scanRule(s.DB.QueryRow(ctx, `
    UPDATE workflow_rules
    SET name = $3, description = $4, conditions_json = $5, approval_levels_json = $6,
        priority = $7, is_active = $8, skip_duplicate_signatures = $9, updated_at = now()
    WHERE tenant_id = $1 AND id = $2
    RETURNING `+ruleColumns,
		tenantID, rule.ID, rule.Name, rule.Description, conditionsJSON, levelsJSON,
		rule.Priority, rule.IsActive, rule.SkipDuplicateSignatures))
	if errors.Is(err, pgx.ErrNoRows) {
		return Rule{}, ErrNotFound
	}
	return updated, err
}

func (s *Store) SetActive(ctx context.Context, tenantID, ruleID string, active bool) (Rule, error) {
	rule, err := scanRule(s.DB.QueryRow(ctx, `
    UPDATE workflow_rules
    SET is_active = $3, updated_at = now()
    WHERE tenant_id = $1 AND id = $2
    RETURNING `+ruleColumns, tenantID, ruleID, active))
	if errors.Is(err, pgx.ErrNoRows) {
		return Rule{}, ErrNotFound
	}
	return rule, err
}

func (s *Store) DeleteRule(ctx context.Context, tenantID, ruleID string) error {
	tag, err := s.DB.Exec(ctx, `DELETE FROM workflow_rules WHERE tenant_id = $1 AND id = $2`, tenantID, ruleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
