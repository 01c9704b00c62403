// Command server starts the AI code grader HTTP service.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/ai-code-grader/internal/adapter/cache"
	"github.com/fairyhunter13/ai-code-grader/internal/adapter/gitclone"
	"github.com/fairyhunter13/ai-code-grader/internal/adapter/httpserver"
	"github.com/fairyhunter13/ai-code-grader/internal/adapter/llm"
	"github.com/fairyhunter13/ai-code-grader/internal/adapter/llm/tokencount"
	"github.com/fairyhunter13/ai-code-grader/internal/adapter/observability"
	"github.com/fairyhunter13/ai-code-grader/internal/adapter/publish/kafka"
	"github.com/fairyhunter13/ai-code-grader/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/ai-code-grader/internal/app"
	"github.com/fairyhunter13/ai-code-grader/internal/config"
	"github.com/fairyhunter13/ai-code-grader/internal/corpus"
	"github.com/fairyhunter13/ai-code-grader/internal/domain"
	jobmetrics "github.com/fairyhunter13/ai-code-grader/internal/observability"
	"github.com/fairyhunter13/ai-code-grader/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	// Register all Prometheus metrics once per process so that /metrics
	// exposes HTTP and job instrumentation.
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx := context.Background()

	// LLM client. A missing provider is not fatal: reviews still run their
	// static checkers, and grade jobs fail with a provider error.
	var modelClient domain.ModelClient
	if observed, err := llm.FromConfig(cfg); err != nil {
		slog.Warn("no LLM provider configured", slog.Any("error", err))
	} else {
		observed.OnUsage = func(u tokencount.Usage) {
			jobmetrics.RecordTokenUsage(u.Provider, u.Model, u.PromptTokens, u.CompletionTokens)
		}
		modelClient = observed
		slog.Info("llm client initialized", slog.String("provider", observed.Provider()))
	}

	cloner := gitclone.New().WithSizeLimit(cfg.MaxRepoSizeMB)
	reader := corpus.NewReader()

	// Usecases
	grades := usecase.NewGradeService(cloner, reader, modelClient, cfg.GradeTTL())
	reviews := usecase.NewReviewService(cloner, reader, modelClient, cfg.ReviewTTL())
	reviews.MaxConcurrentChecks = cfg.MaxConcurrentChecks

	// Infra: DB pool (optional)
	var pool *pgxpool.Pool
	if cfg.PersistenceEnabled() {
		pool, err = postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("db connect failed", slog.Any("error", err))
			os.Exit(1)
		}
		defer pool.Close()
		grades.Repo = postgres.NewGradeRepo(pool)
		prometheus.MustRegister(postgres.NewPoolStatsCollector(pool))

		if cfg.RetentionDays > 0 {
			cleanupSvc := postgres.NewCleanupService(pool, cfg.RetentionDays)
			go cleanupSvc.RunPeriodic(ctx, cfg.CleanupInterval)
			slog.Info("cleanup service started",
				slog.Int("retention_days", cfg.RetentionDays),
				slog.Duration("interval", cfg.CleanupInterval))
		}
	}

	// Review result cache (optional)
	var rdb *redis.Client
	if cfg.CacheEnabled() {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = rdb.Close() }()
		reviews.Cache = cache.NewReviewCache(rdb, cfg.ReviewTTL())
	}

	// Report publisher (optional)
	var publisher *kafka.Publisher
	if cfg.PublishEnabled() {
		publisher, err = kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			slog.Error("kafka publisher connect failed", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = publisher.Close() }()
		grades.Publisher = publisher
	}

	// Evict finished jobs after their TTL.
	grades.StartReaper(ctx)
	reviews.StartReaper(ctx)

	// Readiness checks cover only the configured adapters.
	var poolPinger, brokerPinger app.Pinger
	if pool != nil {
		poolPinger = pool
	}
	if publisher != nil {
		brokerPinger = publisher
	}
	dbCheck, redisCheck, kafkaCheck := app.BuildReadinessChecks(poolPinger, rdb, brokerPinger)

	// HTTP server
	srv := httpserver.NewServer(cfg, grades, reviews, dbCheck, redisCheck, kafkaCheck)
	handler := app.BuildRouter(cfg, srv)

	srvHTTP := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.String("addr", cfg.Addr()))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}
