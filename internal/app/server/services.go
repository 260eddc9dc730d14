package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"leaveflow/internal/domain/approval"
	"leaveflow/internal/domain/audit"
	"leaveflow/internal/domain/directory"
	"leaveflow/internal/domain/escalation"
	"leaveflow/internal/domain/notifications"
	"leaveflow/internal/domain/workflow"
	"leaveflow/internal/platform/config"
	"leaveflow/internal/platform/email"
	"leaveflow/internal/platform/events"
	"leaveflow/internal/platform/jobs"
	"leaveflow/internal/platform/lock"
	"leaveflow/internal/platform/metrics"
	"leaveflow/internal/platform/ratelimit"
)

// Services is the wired domain layer shared by the HTTP server and leavectl.
type Services struct {
	Config        config.Config
	Workflow      *workflow.Service
	Directory     *directory.Service
	Escalation    *escalation.Service
	Approvals     *approval.Service
	Notifications *notifications.Service
	Audit         *audit.Service
	Sweeper       *escalation.Sweeper
	Jobs          *jobs.Service
	Metrics       *metrics.Collector
	RateCounter   ratelimit.Counter

	approvalStore approval.StoreAPI
	publisher     events.Publisher
	redis         *redis.Client
	backend       backend
}

// Wire opens the configured store, lock and event bus and builds every
// service on top of them. Close releases them.
func Wire(ctx context.Context, cfg config.Config) (*Services, error) {
	be, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s := &Services{Config: cfg, backend: be, approvalStore: be.approvals, Metrics: metrics.New()}

	publisher, err := events.Connect(cfg.NATSURL, cfg.NATSSubjectPrefix)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.publisher = publisher

	var locker lock.Locker = lock.NewLocal()
	s.RateCounter = ratelimit.NewMemory()
	if cfg.RedisURL != "" {
		client, err := lock.Dial(ctx, cfg.RedisURL)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.redis = client
		locker = lock.NewRedis(client, "leaveflow:lock:")
		s.RateCounter = ratelimit.NewRedis(client, "leaveflow:rate:")
	}

	s.Directory = directory.NewService(be.directory)
	s.Escalation = escalation.NewService(be.escalation)
	s.Workflow = workflow.NewService(be.workflow, be.approvals, workflow.ChainFromRoles(cfg.DefaultChain))
	s.Audit = audit.New(be.audit)
	s.Notifications = notifications.New(be.notifications, email.New(cfg), s.Directory, publisher)
	s.Notifications.DefaultFrom = cfg.EmailFrom
	s.Approvals = approval.NewService(be.approvals, s.Workflow, s.Directory, s.Escalation, s.Notifications)
	s.Sweeper = &escalation.Sweeper{
		Approvals: be.approvals,
		Settings:  s.Escalation,
		Timer:     escalation.Timer{Directory: s.Directory, Rules: s.Workflow},
		Locker:    locker,
		LockTTL:   cfg.SweepLockTTL,
		Notifier:  s.Notifications,
		Metrics:   s.Metrics,
	}
	s.Jobs = jobs.New(be.jobs)
	return s, nil
}

// StartScheduler runs queued jobs and the periodic sweep until ctx ends.
func (s *Services) StartScheduler(ctx context.Context) {
	s.Jobs.Start(ctx)
	if s.Config.EscalationSweepInterval <= 0 {
		slog.Info("escalation scheduler disabled")
		return
	}
	s.Jobs.Every(ctx, s.Config.EscalationSweepInterval, jobs.JobEscalationSweep, s.approvalStore.TenantsWithPending,
		func(ctx context.Context, tenantID string) (any, error) {
			summary, err := s.Sweeper.Sweep(ctx, tenantID)
			if errors.Is(err, lock.ErrNotAcquired) {
				summary.Skipped = true
				summary.SkipReason = "sweep already running"
				return summary, nil
			}
			return summary, err
		})
	slog.Info("escalation scheduler started", "interval", s.Config.EscalationSweepInterval.String())
}

func (s *Services) Ping(ctx context.Context) error {
	if s.backend.ping == nil {
		return fmt.Errorf("store not configured")
	}
	return s.backend.ping(ctx)
}

func (s *Services) Close() {
	if s.publisher != nil {
		s.publisher.Close()
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			slog.Warn("redis close failed", "err", err)
		}
	}
	if s.backend.close != nil {
		s.backend.close()
	}
}
