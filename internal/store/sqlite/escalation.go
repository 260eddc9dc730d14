package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"leaveflow/internal/domain/escalation"
)

// EscalationStore implements escalation.ConfigStore.
type EscalationStore struct {
	db *sql.DB
}

func NewEscalationStore(db *sql.DB) *EscalationStore {
	return &EscalationStore{db: db}
}

func (s *EscalationStore) GetConfig(ctx context.Context, tenantID string) (escalation.Config, bool, error) {
	var cfg escalation.Config
	var updatedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
    SELECT enabled, escalation_timeout_hours, max_escalation_levels, auto_approve_after_max,
           reminder_hours, skip_absent_approvers, skip_if_delegated, updated_at
    FROM escalation_settings WHERE tenant_id = ?`, tenantID).Scan(
		&cfg.Enabled, &cfg.EscalationTimeoutHours, &cfg.MaxEscalationLevels, &cfg.AutoApproveAfterMax,
		&cfg.ReminderHours, &cfg.SkipAbsentApprovers, &cfg.SkipIfDelegated, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return escalation.Config{}, false, nil
	}
	if err != nil {
		return escalation.Config{}, false, err
	}
	cfg.UpdatedAt = nullTime(updatedAt)
	return cfg, true, nil
}

func (s *EscalationStore) SaveConfig(ctx context.Context, tenantID string, cfg escalation.Config) (escalation.Config, error) {
	now := utcNow()
	_, err := s.db.ExecContext(ctx, `
    INSERT INTO escalation_settings (tenant_id, enabled, escalation_timeout_hours, max_escalation_levels,
      auto_approve_after_max, reminder_hours, skip_absent_approvers, skip_if_delegated, updated_at)
    VALUES (?,?,?,?,?,?,?,?,?)
    ON CONFLICT (tenant_id) DO UPDATE
      SET enabled = excluded.enabled,
          escalation_timeout_hours = excluded.escalation_timeout_hours,
          max_escalation_levels = excluded.max_escalation_levels,
          auto_approve_after_max = excluded.auto_approve_after_max,
          reminder_hours = excluded.reminder_hours,
          skip_absent_approvers = excluded.skip_absent_approvers,
          skip_if_delegated = excluded.skip_if_delegated,
          updated_at = excluded.updated_at`,
		tenantID, cfg.Enabled, cfg.EscalationTimeoutHours, cfg.MaxEscalationLevels, cfg.AutoApproveAfterMax,
		cfg.ReminderHours, cfg.SkipAbsentApprovers, cfg.SkipIfDelegated, now)
	if err != nil {
		return escalation.Config{}, err
	}
	cfg.UpdatedAt = &now
	return cfg, nil
}
