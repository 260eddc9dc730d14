package escalation

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"leaveflow/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

func (s *Store) GetConfig(ctx context.Context, tenantID string) (Config, bool, error) {
	var cfg Config
	err := s.DB.QueryRow(ctx, `
    SELECT enabled, escalation_timeout_hours, max_escalation_levels, auto_approve_after_max,
           reminder_hours, skip_absent_approvers, skip_if_delegated, updated_at
    FROM escalation_settings
    WHERE tenant_id = $1
  `, tenantID).Scan(&cfg.Enabled, &cfg.EscalationTimeoutHours, &cfg.MaxEscalationLevels, &cfg.AutoApproveAfterMax,
		&cfg.ReminderHours, &cfg.SkipAbsentApprovers, &cfg.SkipIfDelegated, &cfg.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Config{}, false, nil
	}
	if err != nil {
		return Config{}, false, err
	}
	return cfg, true, nil
}

func (s *Store) SaveConfig(ctx context.Context, tenantID string, cfg Config) (Config, error) {
	err := s.DB.QueryRow(ctx, `
    INSERT INTO escalation_settings (tenant_id, enabled, escalation_timeout_hours, max_escalation_levels,
      auto_approve_after_max, reminder_hours, skip_absent_approvers, skip_if_delegated)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
    ON CONFLICT (tenant_id) DO UPDATE
      SET enabled = EXCLUDED.enabled,
          escalation_timeout_hours = EXCLUDED.escalation_timeout_hours,
          max_escalation_levels = EXCLUDED.max_escalation_levels,
          auto_approve_after_max = EXCLUDED.auto_approve_after_max,
          reminder_hours = EXCLUDED.reminder_hours,
          skip_absent_approvers = EXCLUDED.skip_absent_approvers,
          skip_if_delegated = EXCLUDED.skip_if_delegated,
          updated_at = now()
    RETURNING updated_at
  `, tenantID, cfg.Enabled, cfg.EscalationTimeoutHours, cfg.MaxEscalationLevels, cfg.AutoApproveAfterMax,
		cfg.ReminderHours, cfg.SkipAbsentApprovers, cfg.SkipIfDelegated).Scan(&cfg.UpdatedAt)
	return cfg, err
}
