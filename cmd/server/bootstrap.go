package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/smartsupply/agent/internal/api"
	"github.com/smartsupply/agent/internal/app"
	"github.com/smartsupply/agent/internal/app/maintenance"
	"github.com/smartsupply/agent/internal/auth"
	"github.com/smartsupply/agent/internal/cache"
	"github.com/smartsupply/agent/internal/customersync"
	"github.com/smartsupply/agent/internal/monitoring"
	"github.com/smartsupply/agent/internal/monitoring/checks"
	"github.com/smartsupply/agent/internal/realtime"
	"github.com/smartsupply/agent/internal/remote"
	"github.com/smartsupply/agent/internal/search"
)

const realtimeFailureWindow = 5 * time.Minute

// runtimeStack bundles long-lived components used by the HTTP server.
type runtimeStack struct {
	Monitoring *monitoring.Module
	Store      *cache.CustomerStore
	Client     *remote.Client
	Scheduler  *customersync.CronScheduler
	Syncer     *customersync.Orchestrator
	Searcher   *search.Searcher
	Sessions   *auth.SessionManager
	Streams    *realtime.Hub
	Cleaner    *maintenance.Cleaner
	Router     *gin.Engine
}

// bootstrapRuntime opens the cache and wires sync, search, sessions and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			_ = stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mode
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.Monitoring, err = monitoring.NewModule(monitoring.Options{})
	if err != nil {
		return nil, fmt.Errorf("initialise monitoring: %w", err)
	}
	monitoring.SetModule(stack.Monitoring)

	stack.Store = cache.NewCustomerStore(cfg.Database.ConnectionConfig(),
		cache.WithPhoneRegion(cfg.Phone.DefaultRegion),
	)
	// The agent keeps serving without a cache; operations retry the open.
	if err := stack.Store.Initialize(ctx); err != nil {
		log.Warn("local cache unavailable at startup", zap.Error(err))
	}

	stack.Client, err = remote.NewClient(cfg.Remote.ClientConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise remote client: %w", err)
	}

	stack.Scheduler = customersync.NewCronScheduler(nil)
	stack.Syncer = customersync.NewOrchestrator(stack.Store, stack.Client,
		append(cfg.Sync.OrchestratorOptions(), customersync.WithScheduler(stack.Scheduler))...)

	stack.Searcher = search.NewSearcher(stack.Store, stack.Client, cfg.Search.SearcherOptions()...)

	stack.Sessions = auth.NewSessionManager(stack.Client, stack.Syncer, stack.Store, cfg.Sync.SessionManagerConfig())

	stack.Streams = realtime.NewHub(stack.Searcher, stack.Store, cfg.Server.AllowedOrigins)

	registerHealthChecks(cfg, stack)

	stack.Cleaner = maintenance.NewCleaner(stack.Sessions, stack.Store)
	if err := stack.Cleaner.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}

	stack.Router, err = api.NewRouter(api.Dependencies{
		Config:     cfg,
		Store:      stack.Store,
		Syncer:     stack.Syncer,
		Searcher:   stack.Searcher,
		Sessions:   stack.Sessions,
		Streams:    stack.Streams,
		Monitoring: stack.Monitoring,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

func registerHealthChecks(cfg *app.Config, stack *runtimeStack) {
	if !cfg.Monitoring.Health.Enabled {
		return
	}
	health := stack.Monitoring.Health()
	health.SetProbeTimeout(cfg.Monitoring.Health.ProbeTimeout)
	health.RegisterLiveness(checks.Realtime(realtimeFailureWindow))
	health.RegisterReadiness(checks.Cache(stack.Store))
	health.RegisterReadiness(checks.Sync(cfg.Monitoring.Health.SyncMaxAge))
}

// Shutdown stops background work and releases resources. Errors are
// collected rather than stopping the sequence.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) error {
	if s == nil {
		return nil
	}

	var errs error

	if s.Cleaner != nil {
		select {
		case <-s.Cleaner.Stop().Done():
		case <-ctx.Done():
			errs = multierr.Append(errs, fmt.Errorf("stop maintenance: %w", ctx.Err()))
		}
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown run failed", zap.Error(err))
		}
	}

	if s.Streams != nil {
		s.Streams.Close()
	}

	if s.Sessions != nil {
		s.Sessions.Close()
	}

	if s.Syncer != nil {
		if err := s.Syncer.Shutdown(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("stop customer sync: %w", err))
		}
	}

	if s.Scheduler != nil {
		select {
		case <-s.Scheduler.Stop().Done():
		case <-ctx.Done():
			errs = multierr.Append(errs, fmt.Errorf("stop scheduler: %w", ctx.Err()))
		}
	}

	if s.Store != nil {
		if err := s.Store.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close cache: %w", err))
		}
	}

	if errs != nil {
		log.Warn("shutdown finished with errors", zap.Error(errs))
	}
	return errs
}
