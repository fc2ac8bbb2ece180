package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/utafrali/catalogue/internal/config"
	"github.com/utafrali/catalogue/internal/domain"
	"github.com/utafrali/catalogue/internal/engine"
	esengine "github.com/utafrali/catalogue/internal/engine/elasticsearch"
	"github.com/utafrali/catalogue/internal/engine/memory"
	"github.com/utafrali/catalogue/internal/event"
	handler "github.com/utafrali/catalogue/internal/handler/http"
	"github.com/utafrali/catalogue/internal/repository"
	memrepo "github.com/utafrali/catalogue/internal/repository/memory"
	"github.com/utafrali/catalogue/internal/repository/postgres"
	redisrepo "github.com/utafrali/catalogue/internal/repository/redis"
	"github.com/utafrali/catalogue/internal/service"
	"github.com/utafrali/catalogue/internal/worker"
	"github.com/utafrali/catalogue/migrations"
	"github.com/utafrali/catalogue/pkg/database"
	"github.com/utafrali/catalogue/pkg/health"
	pkgkafka "github.com/utafrali/catalogue/pkg/kafka"
	"github.com/utafrali/catalogue/pkg/middleware"
	"github.com/utafrali/catalogue/pkg/tracing"
)

// App wires together all dependencies and runs the catalogue service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *goredis.Client
	producer       *pkgkafka.Producer
	dlq            *pkgkafka.DLQProducer
	indexer        *pkgkafka.Consumer
	workers        *worker.Pool
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing())
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	// Initialize PostgreSQL connection pool.
	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		_ = a.closeAll()
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, config.ServiceName); err != nil {
		logger.Warn("failed to register pool metrics", slog.String("error", err.Error()))
	}

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		_ = a.closeAll()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	// Configure slow query logging.
	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(cfg.SlowQueryThreshold(), logger)
	}

	// Task status store.
	tasks, err := a.newTaskStore(ctx)
	if err != nil {
		_ = a.closeAll()
		return nil, err
	}

	// Search indexes, one per entity type.
	indexes, err := newIndexes(ctx, cfg, logger)
	if err != nil {
		_ = a.closeAll()
		return nil, err
	}

	// Kafka producer. A nil publisher disables change and reindex events.
	var (
		changes       service.ChangePublisher
		reindexEvents service.ReindexPublisher
	)
	if cfg.KafkaEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		if err := pingKafkaWithRetry(ctx, a.producer, logger); err != nil {
			logger.Warn("kafka producer ping failed after retries, continuing in degraded mode",
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
		}
		eventProducer := event.NewProducer(a.producer, logger)
		changes = eventProducer
		reindexEvents = eventProducer
	}

	// Build the dependency graph.
	productRepo := postgres.NewProductRepository(pool)
	categoryRepo := postgres.NewCategoryRepository(pool)

	a.workers = worker.New(cfg.ReindexWorkers, cfg.ReindexQueueSize, logger)
	ledger := service.NewLedger(tasks, cfg.DateTimeFormat, logger)
	orchestrator := service.NewOrchestrator(ledger, a.workers, reindexEvents, logger)
	orchestrator.Register(domain.EntityProduct, service.SourceOf[domain.Product](productRepo), indexes[domain.EntityProduct])
	orchestrator.Register(domain.EntityCategory, service.SourceOf[domain.Category](categoryRepo), indexes[domain.EntityCategory])

	services := handler.Services{
		Products:   service.NewProductService(productRepo, changes, logger),
		Categories: service.NewCategoryService(categoryRepo, changes, logger),
		Search:     service.NewSearchService(indexes, logger),
		Reindex:    orchestrator,
		Ledger:     ledger,
	}

	// Kafka consumer keeping the indexes in step with catalogue writes.
	if cfg.KafkaEnabled {
		a.indexer = a.newIndexConsumer(indexes)
	}

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	if a.redis != nil {
		healthHandler.RegisterCritical("redis", func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		})
	}
	if cfg.SearchEngine == config.EngineElasticsearch {
		healthHandler.RegisterCritical("elasticsearch", indexes[domain.EntityProduct].Ping)
	}
	if a.producer != nil {
		healthHandler.RegisterNonCritical("kafka", a.producer.Ping)
	}

	// HTTP router.
	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins
	router := handler.NewRouter(services, handler.RouterConfig{
		ServiceName:          config.ServiceName,
		APIKey:               cfg.APIKey,
		ReindexRatePerMinute: cfg.ReindexRatePerMinute,
		ReindexRateBurst:     cfg.ReindexRateBurst,
		SearchCacheSeconds:   cfg.SearchCacheSeconds,
		PprofAllowedCIDRs:    cfg.PprofAllowedCIDRs,
		CORS:                 cors,
	}, healthHandler, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// newTaskStore opens the configured task status store.
func (a *App) newTaskStore(ctx context.Context) (repository.TaskStatusStore, error) {
	if a.cfg.TaskStore == config.StoreMemory {
		a.logger.Warn("task status records are kept in memory and lost on restart")
		return memrepo.NewTaskStatusStore(), nil
	}

	client, err := database.NewRedisClient(ctx, a.cfg.Redis(), a.logger)
	if err != nil {
		return nil, err
	}
	a.redis = client
	a.logger.Info("connected to Redis", slog.String("addr", a.cfg.Redis().Addr()))
	return redisrepo.NewTaskStatusStore(client), nil
}

// newIndexes builds the product and category index managers. Elasticsearch
// indexes are created up front; a failure there is logged and retried by
// the first reindex.
func newIndexes(ctx context.Context, cfg *config.Config, logger *slog.Logger) (map[domain.EntityType]engine.IndexManager, error) {
	defs := map[domain.EntityType]engine.Definition{
		domain.EntityProduct:  engine.ProductIndex(cfg.ProductIndex),
		domain.EntityCategory: engine.CategoryIndex(cfg.CategoryIndex),
	}
	indexes := make(map[domain.EntityType]engine.IndexManager, len(defs))

	if cfg.SearchEngine == config.EngineMemory {
		for t, def := range defs {
			indexes[t] = memory.New(def, cfg.BulkBatchSize)
		}
		logger.Info("in-memory search engine initialized")
		return indexes, nil
	}

	client, err := esengine.NewClient(cfg.Elasticsearch(), logger)
	if err != nil {
		return nil, fmt.Errorf("init elasticsearch engine: %w", err)
	}
	opts := esengine.Options{BatchSize: cfg.BulkBatchSize, SearchSize: cfg.SearchMaxResults}
	for t, def := range defs {
		idx := esengine.New(client, def, opts, logger)
		if err := idx.EnsureIndex(ctx); err != nil {
			logger.Warn("failed to ensure index at startup",
				slog.String("index", def.Name),
				slog.String("error", err.Error()),
			)
		}
		indexes[t] = idx
	}
	logger.Info("elasticsearch search engine initialized",
		slog.Any("addresses", cfg.ElasticsearchURLs),
		slog.String("product_index", cfg.ProductIndex),
		slog.String("category_index", cfg.CategoryIndex),
	)
	return indexes, nil
}

// newIndexConsumer subscribes to every catalogue change topic. Processed
// event IDs are remembered in Redis when it is available.
func (a *App) newIndexConsumer(indexes map[domain.EntityType]engine.IndexManager) *pkgkafka.Consumer {
	ttl := time.Duration(a.cfg.KafkaDedupTTLHours) * time.Hour
	var dedup pkgkafka.IdempotencyStore = pkgkafka.NewMemoryIdempotencyStore(ttl)
	if a.redis != nil {
		dedup = redisrepo.NewEventDedupStore(a.redis, ttl)
	}

	a.dlq = pkgkafka.NewDLQProducer(a.cfg.KafkaBrokers, a.logger)
	eventConsumer := event.NewConsumer(indexes, a.logger)
	topics := event.ChangeTopics()

	c := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers:  a.cfg.KafkaBrokers,
		GroupID:  a.cfg.KafkaConsumerGroup,
		Topics:   topics,
		MinBytes: 1,
		MaxBytes: 10e6, // 10 MB
	}, pkgkafka.IdempotentHandler(dedup, eventConsumer.Handle, a.logger), a.logger, pkgkafka.WithDLQ(a.dlq))

	a.logger.Info("kafka index consumer initialized",
		slog.Any("brokers", a.cfg.KafkaBrokers),
		slog.String("group", a.cfg.KafkaConsumerGroup),
		slog.Int("topic_count", len(topics)),
	)
	return c
}

// Run starts the HTTP server and the index consumer, then blocks until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	// Start HTTP server.
	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if a.indexer != nil {
		go func() {
			if err := a.indexer.Start(ctx); err != nil {
				errCh <- fmt.Errorf("index consumer: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-errCh:
	}

	return errors.Join(runErr, a.Shutdown())
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (no new reindex requests)
// 2. Reindex workers (running jobs write their final status)
// 3. Kafka consumer, DLQ and producer
// 4. Redis and PostgreSQL
// 5. Tracer (flush pending spans)
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout())
	defer cancel()

	// 1. Drain in-flight HTTP requests.
	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 2. Wait for queued and running reindex jobs.
	if a.workers != nil {
		if err := a.workers.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("reindex workers shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	errs = append(errs, a.closeAll())

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// closeAll releases connections and flushes traces. Components that were
// never opened are skipped, so it also cleans up after a failed NewApp.
func (a *App) closeAll() error {
	var errs []error

	if a.indexer != nil {
		if err := a.indexer.Close(); err != nil {
			a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.dlq != nil {
		if err := a.dlq.Close(); err != nil {
			a.logger.Error("kafka dlq producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// pingKafkaWithRetry attempts to ping the Kafka producer with exponential
// backoff (3 attempts, 1s/2s/4s with ±25% jitter).
func pingKafkaWithRetry(ctx context.Context, producer *pkgkafka.Producer, logger *slog.Logger) error {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if lastErr = producer.Ping(ctx); lastErr == nil {
			return nil
		}
		if attempt < 2 {
			base := time.Duration(1<<uint(attempt)) * time.Second
			jitter := time.Duration(float64(base) * 0.25 * (2*rand.Float64() - 1)) // #nosec G404 -- non-cryptographic jitter for retry backoff
			wait := base + jitter
			logger.Warn("kafka producer ping failed, retrying",
				slog.Int("attempt", attempt+1),
				slog.Int("max_attempts", 3),
				slog.Duration("backoff", wait),
				slog.String("error", lastErr.Error()),
			)
			select {
			case <-ctx.Done():
				return fmt.Errorf("kafka ping: context canceled during retry: %w", ctx.Err())
			case <-time.After(wait):
			}
		}
	}
	return fmt.Errorf("kafka ping: %d attempts failed: %w", 3, lastErr)
}
