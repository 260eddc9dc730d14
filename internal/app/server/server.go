package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"leaveflow/internal/domain/auth"
	"leaveflow/internal/platform/config"
	"leaveflow/internal/platform/logging"
	"leaveflow/internal/transport/http/api"
	approvalshandler "leaveflow/internal/transport/http/handlers/approvals"
	audithandler "leaveflow/internal/transport/http/handlers/audit"
	directoryhandler "leaveflow/internal/transport/http/handlers/directory"
	escalationhandler "leaveflow/internal/transport/http/handlers/escalation"
	notificationshandler "leaveflow/internal/transport/http/handlers/notifications"
	workflowhandler "leaveflow/internal/transport/http/handlers/workflow"
	"leaveflow/internal/transport/http/middleware"
)

// devJWTSecret signs tokens outside production when JWT_SECRET is unset.
const devJWTSecret = "leaveflow-dev-secret"

type App struct {
	Config   config.Config
	Services *Services
	Router   http.Handler
}

// exposedHeaders are the response headers browser clients may read.
var exposedHeaders = []string{
	"X-Request-ID",
	"X-Total-Count",
	"X-Unread-Count",
	"X-Export-Truncated",
	"X-RateLimit-Limit",
	"X-RateLimit-Remaining",
	"X-RateLimit-Reset",
	"Retry-After",
	"Content-Disposition",
}

// New wires the services and the HTTP router. It does not start the
// scheduler; Run does.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	if cfg.JWTSecret == "" {
		slog.Warn("JWT_SECRET not set, using development secret")
		cfg.JWTSecret = devJWTSecret
	}
	services, err := Wire(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &App{Config: cfg, Services: services, Router: newRouter(cfg, services)}, nil
}

func (a *App) Close() {
	a.Services.Close()
}

func newRouter(cfg config.Config, s *Services) http.Handler {
	perms := auth.StaticPermissions{}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(s.Metrics))
	router.Use(chimw.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	if len(cfg.CORSAllowedOrigins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   exposedHeaders,
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			api.Success(w, s.Metrics.Snapshot(), middleware.GetRequestID(r.Context()))
		})
	}

	router.Route("/api/v1", func(r chi.Router) {
		// Anonymous callers are counted by client IP before being refused.
		r.Use(middleware.RateLimit(s.RateCounter, cfg.RateLimitPerMinute, time.Minute))
		r.Use(middleware.RequireAuth)
		r.Use(middleware.DecisionRateLimit(s.RateCounter, cfg.RateLimitPerMinute, time.Minute))

		workflowhandler.NewHandler(s.Workflow, perms, s.Audit).RegisterRoutes(r)
		escalationhandler.NewHandler(s.Escalation, s.Sweeper, perms, s.Audit, s.Jobs).RegisterRoutes(r)
		approvalshandler.NewHandler(s.Approvals, perms, s.Audit).RegisterRoutes(r)
		directoryhandler.NewHandler(s.Directory, perms, s.Audit).RegisterRoutes(r)
		notificationshandler.NewHandler(s.Notifications, perms, s.Audit).RegisterRoutes(r)
		audithandler.NewHandler(s.Audit, perms).RegisterRoutes(r)
	})

	return router
}

// Run serves until SIGINT or SIGTERM, then drains in-flight requests.
func Run() error {
	cfg := config.Load()
	slog.SetDefault(logging.New(os.Stdout, cfg.LogLevel))
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()
	app.Services.StartScheduler(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("leaveflow server listening", "addr", cfg.Addr, "store", cfg.StoreDriver)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
