package cli

import (
	"context"
	"log/slog"
	"os"

	"leaveflow/internal/app/server"
	"leaveflow/internal/platform/config"
	"leaveflow/internal/platform/logging"
)

// withServices loads config from the environment, wires the domain layer and
// hands it to fn. Logs go to stderr so command output stays clean.
func withServices(ctx context.Context, fn func(*server.Services) error) error {
	cfg := config.Load()
	slog.SetDefault(logging.New(os.Stderr, cfg.LogLevel))
	if err := cfg.Validate(); err != nil {
		return err
	}
	svc, err := server.Wire(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()
	return fn(svc)
}
