// Command server runs the dadcircles matching service: the admin HTTP API,
// the interval scheduler, and the stores behind them. Subsystems with no
// configured backend fall back to in-memory implementations so a dev
// instance runs with zero infrastructure.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"dadcircles/internal/audit"
	"dadcircles/internal/group"
	groupmetrics "dadcircles/internal/group/metrics"
	groupservice "dadcircles/internal/group/service"
	groupstore "dadcircles/internal/group/store"
	"dadcircles/internal/matching"
	matchinghandler "dadcircles/internal/matching/handler"
	"dadcircles/internal/matching/lease"
	matchingmetrics "dadcircles/internal/matching/metrics"
	"dadcircles/internal/matching/runs"
	"dadcircles/internal/notify"
	"dadcircles/internal/platform/config"
	"dadcircles/internal/platform/httpserver"
	"dadcircles/internal/platform/logger"
	"dadcircles/internal/platform/metrics"
	"dadcircles/internal/platform/postgres"
	"dadcircles/internal/platform/redis"
	"dadcircles/internal/profile"
	httptransport "dadcircles/internal/transport/http"
	"dadcircles/pkg/platform/tx"
)

const (
	matchingLeaseKey = "dadcircles:matching:lease"
	shutdownTimeout  = 10 * time.Second
)

func main() {
	addr := flag.String("addr", "", "listen address, overrides DADCIRCLES_ADDR")
	flag.Parse()

	cfg := config.FromEnv()
	if *addr != "" {
		cfg.Addr = *addr
	}
	log := logger.New(cfg.LogLevel, cfg.Env)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := buildDependencies(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.close()

	matchCfg, err := matchingConfig(cfg.Matching)
	if err != nil {
		return err
	}

	publisher := audit.NewPublisher(deps.audits, audit.WithLogger(log))
	defer publisher.Close()

	matchSvc := matching.New(deps.profiles, deps.groups, deps.leases, deps.txRunner, matchCfg,
		matching.WithLogger(log),
		matching.WithAuditPublisher(publisher),
		matching.WithMetrics(matchingmetrics.New()),
		matching.WithRunStore(deps.runs),
	)
	groupSvc := group.NewService(deps.groups, deps.profiles, deps.dispatcher, deps.txRunner,
		groupservice.WithLogger(log),
		groupservice.WithAuditPublisher(publisher),
		groupservice.WithMetrics(groupmetrics.New()),
		groupservice.WithDispatchTimeout(cfg.Matching.DispatchTimeout),
	)

	router := httptransport.New(httptransport.Config{
		Logger:     log,
		AdminToken: cfg.AdminToken,
		Metrics:    metrics.New(),
		Checks:     deps.checks,
		Registrars: []httptransport.Registrar{
			group.NewHandler(groupSvc, log),
			matchinghandler.New(matchSvc, deps.runs, log),
		},
	})

	scheduler := matching.NewScheduler(matchSvc, cfg.Matching.Interval, cfg.Matching.LeaseTTL, log)
	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("scheduler stopped", "error", err)
		}
	}()

	srv := httpserver.New(cfg.Addr, router)
	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	log.Info("dadcircles server started",
		"addr", cfg.Addr,
		"env", cfg.Env,
		"match_interval", cfg.Matching.Interval.String(),
	)

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	<-schedulerDone
	return nil
}

// profileStore is everything matching and the group lifecycle need from
// profiles.
type profileStore interface {
	matching.ProfileStore
	groupservice.MemberStore
}

// groupStore is the union of the matching-side and lifecycle-side group
// store surfaces.
type groupStore interface {
	matching.GroupStore
	groupservice.Store
}

// runStore records finished runs and serves their history.
type runStore interface {
	matching.RunStore
	matchinghandler.RunHistory
}

// dependencies bundles every process-lifetime resource. close tears them
// down in reverse construction order.
type dependencies struct {
	profiles   profileStore
	groups     groupStore
	leases     matching.Lease
	runs       runStore
	audits     audit.Store
	txRunner   matching.TxRunner
	dispatcher groupservice.Dispatcher

	checks  map[string]httptransport.Check
	closers []func()
}

func (d *dependencies) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

// buildDependencies picks a backend per subsystem: postgres, redis and kafka
// when configured, in-memory and log-based stand-ins otherwise.
func buildDependencies(ctx context.Context, cfg config.Server, log *slog.Logger) (*dependencies, error) {
	deps := &dependencies{checks: map[string]httptransport.Check{}}

	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		return nil, err
	}
	if db != nil {
		deps.closers = append(deps.closers, func() { _ = db.Close() })
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			deps.close()
			return nil, err
		}

		pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
		if err != nil {
			deps.close()
			return nil, fmt.Errorf("open pgx pool: %w", err)
		}
		deps.closers = append(deps.closers, pool.Close)

		deps.profiles = profile.NewPostgresStore(db)
		deps.groups = groupstore.NewPostgres(db)
		deps.audits = audit.NewPostgresStore(db)
		deps.runs = runs.NewPostgresStore(pool)
		deps.txRunner = postgres.NewTxRunner(db)
		deps.checks["postgres"] = db.PingContext
	} else {
		log.Warn("postgres not configured, using in-memory stores")
		memProfiles := profile.NewInMemoryStore()
		if created := profile.SeedDemoPool(ctx, memProfiles, time.Now()); created > 0 {
			log.Info("demo pool seeded", "profiles", created)
		}
		deps.profiles = memProfiles
		deps.groups = groupstore.NewInMemory()
		deps.audits = audit.NewInMemoryStore()
		deps.runs = runs.NewInMemoryStore()
		deps.txRunner = tx.Direct{}
	}

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		deps.close()
		return nil, err
	}
	if rc != nil {
		deps.closers = append(deps.closers, func() { _ = rc.Close() })
		deps.leases = lease.NewRedis(rc.Client, matchingLeaseKey, cfg.Matching.LeaseTTL)
		deps.checks["redis"] = rc.Health
	} else {
		log.Warn("redis not configured, matching lease is process-local")
		deps.leases = lease.NewMemory()
	}

	if len(cfg.Kafka.Brokers) > 0 {
		dispatcher, err := notify.NewKafkaDispatcher(cfg.Kafka.Brokers, cfg.Kafka.Topic,
			notify.WithKafkaLogger(log))
		if err != nil {
			deps.close()
			return nil, err
		}
		deps.closers = append(deps.closers, dispatcher.Close)
		deps.dispatcher = dispatcher
		deps.checks["kafka"] = dispatcher.Health
	} else {
		log.Warn("kafka not configured, introductions go to the log")
		deps.dispatcher = notify.NewLogDispatcher(log)
	}

	return deps, nil
}

// matchingConfig applies environment overrides onto the matching defaults.
func matchingConfig(mc config.MatchingConfig) (matching.Config, error) {
	cfg := matching.DefaultConfig()
	if mc.MinGroupSize > 0 {
		cfg.MinGroupSize = mc.MinGroupSize
	}
	if mc.MaxGroupSize > 0 {
		cfg.MaxGroupSize = mc.MaxGroupSize
	}
	if mc.Concurrency > 0 {
		cfg.Concurrency = mc.Concurrency
	}
	if err := cfg.Validate(); err != nil {
		return matching.Config{}, fmt.Errorf("matching config: %w", err)
	}
	return cfg, nil
}
