package escalation

import (
	"context"

	"leaveflow/internal/domain/directory"
)

// Service reads and writes tenant settings.
type Service struct {
	store ConfigStore
}

func NewService(store ConfigStore) *Service {
	return &Service{store: store}
}

// Settings returns the tenant's settings, or DefaultConfig when none were saved.
func (s *Service) Settings(ctx context.Context, tenantID string) (Config, error) {
	cfg, found, err := s.store.GetConfig(ctx, tenantID)
	if err != nil {
		return Config{}, err
	}
	if !found {
		return DefaultConfig(), nil
	}
	return cfg, nil
}

func (s *Service) UpdateSettings(ctx context.Context, tenantID string, patch ConfigPatch) (Config, error) {
	current, err := s.Settings(ctx, tenantID)
	if err != nil {
		return Config{}, err
	}
	next := patch.Apply(current)
	if err := next.Validate(); err != nil {
		return Config{}, err
	}
	return s.store.SaveConfig(ctx, tenantID, next)
}

func (s *Service) SubstitutionPolicy(ctx context.Context, tenantID string) (directory.Policy, error) {
	cfg, err := s.Settings(ctx, tenantID)
	if err != nil {
		return directory.Policy{}, err
	}
	return cfg.Policy(), nil
}
