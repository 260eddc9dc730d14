package escalation

import "context"

// ConfigStore persists one settings row per tenant. found is false when the
// tenant never saved settings.
type ConfigStore interface {
	GetConfig(ctx context.Context, tenantID string) (cfg Config, found bool, err error)
	SaveConfig(ctx context.Context, tenantID string, cfg Config) (Config, error)
}
