// Package server builds the application's dependencies and runs the HTTP
// server and worker pool until shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/leadscan/internal/api"
	"github.com/JakeFAU/leadscan/internal/clock/system"
	"github.com/JakeFAU/leadscan/internal/config"
	"github.com/JakeFAU/leadscan/internal/dispatcher"
	"github.com/JakeFAU/leadscan/internal/enrich"
	"github.com/JakeFAU/leadscan/internal/id/uuid"
	"github.com/JakeFAU/leadscan/internal/lead"
	"github.com/JakeFAU/leadscan/internal/logging"
	"github.com/JakeFAU/leadscan/internal/metrics"
	"github.com/JakeFAU/leadscan/internal/places"
	"github.com/JakeFAU/leadscan/internal/policy/ratelimit"
	"github.com/JakeFAU/leadscan/internal/probe"
	memorypublisher "github.com/JakeFAU/leadscan/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/leadscan/internal/publisher/pubsub"
	queueMemory "github.com/JakeFAU/leadscan/internal/queue/memory"
	memoryStorage "github.com/JakeFAU/leadscan/internal/storage/memory"
	pgstore "github.com/JakeFAU/leadscan/internal/storage/postgres"
	"github.com/JakeFAU/leadscan/internal/telemetry"
	"github.com/JakeFAU/leadscan/internal/worker"
)

const shutdownTimeout = 10 * time.Second

// App contains the application's dependencies.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	apiServer *api.Server
	dispatch  *dispatcher.Dispatcher
	queue     *queueMemory.Queue
	pool      *pgxpool.Pool
	publisher *gcppublisher.Publisher
	tracer    *sdktrace.TracerProvider
}

// stores groups the persistence backends selected at startup.
type stores struct {
	leads lead.Store
	quota lead.QuotaStore
	jobs  lead.JobStore
}

// Build creates the application's dependencies. Postgres is used when a DSN
// is configured and Pub/Sub when a project id is; otherwise in-memory
// implementations stand in.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	app := &App{cfg: cfg, logger: logger}
	logger.Info("building application dependencies", zap.Int("server_port", cfg.Server.Port))

	tp, err := telemetry.InitTracerProvider(ctx, "leadscan")
	if err != nil {
		return nil, fmt.Errorf("tracer init failed: %w", err)
	}
	app.tracer = tp

	clock := system.New()
	st, err := app.setupStores(ctx, clock)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	publisher, err := app.setupPublisher(ctx)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(ratelimit.Config{
			DefaultRPS:   cfg.RateLimit.DefaultRPS,
			DefaultBurst: cfg.RateLimit.DefaultBurst,
		})
		logger.Info("provider rate limiter enabled",
			zap.Float64("default_rps", cfg.RateLimit.DefaultRPS),
			zap.Int("default_burst", cfg.RateLimit.DefaultBurst),
		)
	}
	placesClient := places.New(places.Config{
		APIKey:         cfg.Places.APIKey,
		BaseURL:        cfg.Places.BaseURL,
		OmniCategories: places.ParseCategories(cfg.Places.OmniCategories),
		PageDelay:      cfg.PageDelay(),
		EventBuffer:    cfg.Places.EventBuffer,
		Timeout:        time.Duration(cfg.Places.TimeoutSeconds) * time.Second,
	}, st.quota, logger, places.WithLimiter(limiter))
	if cfg.Places.APIKey == "" {
		logger.Warn("no places API key configured; discovery and detail lookups are disabled")
	}

	var probeOpts []probe.Option
	if cfg.Probe.PerHostRPS > 0 {
		probeOpts = append(probeOpts, probe.WithLimiter(ratelimit.New(ratelimit.Config{
			DefaultRPS:   cfg.Probe.PerHostRPS,
			DefaultBurst: 1,
		})))
	}
	prober := probe.New(probe.Config{
		UserAgent:  cfg.Probe.UserAgent,
		Timeout:    cfg.ProbeTimeout(),
		TLSTimeout: time.Duration(cfg.Probe.TLSTimeoutSeconds) * time.Second,
	}, logger, probeOpts...)

	enricher := enrich.New(st.leads, placesClient, prober, publisher, clock, enrich.Config{
		Concurrency: cfg.Enrich.Concurrency,
		Topic:       cfg.Enrich.Topic,
	}, logger.Named("enrich"))

	app.queue = queueMemory.NewQueue(cfg.Queue.Depth)
	workers := make([]*worker.Worker, 0, cfg.Queue.Workers)
	for i := 0; i < cfg.Queue.Workers; i++ {
		workers = append(workers, worker.New(
			app.queue,
			st.jobs,
			enricher,
			logger.Named("worker").With(zap.Int("index", i)),
		))
	}
	app.dispatch = dispatcher.New(app.queue, st.jobs, uuid.New(), clock, workers)
	logger.Info("worker pool configured",
		zap.Int("workers", cfg.Queue.Workers),
		zap.Int("queue_depth", cfg.Queue.Depth),
		zap.Int("enrich_concurrency", cfg.Enrich.Concurrency),
	)

	var opts []api.Option
	if app.pool != nil {
		pool := app.pool
		opts = append(opts, api.WithReadinessCheck(func(ctx context.Context) error {
			if err := pool.Ping(ctx); err != nil {
				return fmt.Errorf("ping postgres: %w", err)
			}
			return nil
		}))
	}
	app.apiServer = api.NewServer(
		st.leads,
		st.quota,
		st.jobs,
		placesClient,
		enricher,
		app.dispatch,
		clock,
		cfg,
		logger.Named("api"),
		opts...,
	)
	return app, nil
}

func (a *App) setupStores(ctx context.Context, clock lead.Clock) (stores, error) {
	if a.cfg.Database.DSN == "" {
		a.logger.Warn("no database DSN configured, using in-memory stores")
		return stores{
			leads: memoryStorage.NewLeadStore(),
			quota: memoryStorage.NewQuotaStore(clock),
			jobs:  memoryStorage.NewJobStore(clock),
		}, nil
	}
	pool, err := pgstore.Open(ctx, pgstore.Config{
		DSN:             a.cfg.Database.DSN,
		MaxConns:        a.cfg.Database.MaxConns,
		MinConns:        a.cfg.Database.MinConns,
		MaxConnLifetime: a.cfg.Database.MaxConnLifetime,
	})
	if err != nil {
		return stores{}, fmt.Errorf("postgres init failed: %w", err)
	}
	if err := pgstore.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return stores{}, fmt.Errorf("postgres schema init failed: %w", err)
	}
	a.pool = pool
	a.logger.Info("postgres stores initialized", zap.Int32("max_conns", a.cfg.Database.MaxConns))
	return stores{
		leads: pgstore.NewLeadStore(pool),
		quota: pgstore.NewQuotaStore(pool, clock),
		jobs:  pgstore.NewJobStore(pool, clock),
	}, nil
}

func (a *App) setupPublisher(ctx context.Context) (lead.Publisher, error) {
	if a.cfg.PubSub.ProjectID == "" {
		a.logger.Warn("no Pub/Sub project configured, using in-memory publisher")
		return memorypublisher.New(), nil
	}
	topic := a.cfg.PubSub.TopicName
	if topic == "" {
		topic = a.cfg.Enrich.Topic
	}
	pub, err := gcppublisher.Dial(ctx, a.cfg.PubSub.ProjectID, topic)
	if err != nil {
		return nil, fmt.Errorf("pubsub publisher init failed: %w", err)
	}
	a.publisher = pub
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", topic),
	)
	return pub, nil
}

// Handler exposes the API router, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run starts the workers and the HTTP server and blocks until ctx is
// canceled or SIGINT/SIGTERM arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		a.logger.Info("dispatcher started")
		a.dispatch.Run(ctx)
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	<-dispatchDone
	a.Close()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}

// Close releases queues and external clients.
func (a *App) Close() {
	if a.queue != nil {
		a.queue.Close()
	}
	a.closeInfrastructure()
	a.logger.Info("shutdown complete")
}

func (a *App) closeInfrastructure() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("pubsub publisher close failed", zap.Error(err))
		}
		a.publisher = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	if a.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
		a.tracer = nil
	}
}

// NewLogger builds the process logger and installs it as zap's global.
func NewLogger(cfg config.Config) (*zap.Logger, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}
