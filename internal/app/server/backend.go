package server

import (
	"context"
	"fmt"
	"log/slog"

	"leaveflow/internal/domain/approval"
	"leaveflow/internal/domain/audit"
	"leaveflow/internal/domain/directory"
	"leaveflow/internal/domain/escalation"
	"leaveflow/internal/domain/notifications"
	"leaveflow/internal/domain/workflow"
	"leaveflow/internal/platform/config"
	"leaveflow/internal/platform/db"
	"leaveflow/internal/platform/jobs"
	"leaveflow/internal/store/sqlite"
)

// backend is one storage driver's implementation of every store.
type backend struct {
	workflow      workflow.StoreAPI
	approvals     approval.StoreAPI
	escalation    escalation.ConfigStore
	directory     directory.StoreAPI
	notifications notifications.StoreAPI
	audit         audit.StoreAPI
	jobs          jobs.Recorder
	ping          func(ctx context.Context) error
	close         func()
}

func openBackend(ctx context.Context, cfg config.Config) (backend, error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		handle, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return backend{}, err
		}
		stores := sqlite.NewStores(handle)
		slog.Info("using sqlite store", "path", cfg.SQLitePath)
		return backend{
			workflow:      stores.Workflow,
			approvals:     stores.Approvals,
			escalation:    stores.Escalation,
			directory:     stores.Directory,
			notifications: stores.Notifications,
			audit:         stores.Audit,
			jobs:          stores.Jobs,
			ping:          handle.PingContext,
			close: func() {
				if err := handle.Close(); err != nil {
					slog.Warn("sqlite close failed", "err", err)
				}
			},
		}, nil
	case config.DriverPostgres:
		pool, err := db.Connect(ctx, cfg)
		if err != nil {
			return backend{}, fmt.Errorf("db connect failed: %w", err)
		}
		if cfg.RunMigrations {
			if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
				pool.Close()
				return backend{}, fmt.Errorf("migrations failed: %w", err)
			}
		}
		slog.Info("using postgres store")
		return backend{
			workflow:      workflow.NewStore(pool),
			approvals:     approval.NewStore(pool),
			escalation:    escalation.NewStore(pool),
			directory:     directory.NewStore(pool),
			notifications: notifications.NewStore(pool),
			audit:         audit.NewStore(pool),
			jobs:          jobs.PGRecorder{DB: pool},
			ping:          pool.Ping,
			close:         pool.Close,
		}, nil
	default:
		return backend{}, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
