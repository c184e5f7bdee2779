// Package main is the entry point for the Teacher Evaluation Hub worker.
//
// The worker owns the consistency sweep: it periodically re-verifies stored
// evaluation summaries against their item sets and repairs any drift. The
// database is the source of truth for derived values; the sweep exists so a
// crashed process or a missed cache invalidation can never leave a wrong
// summary in place indefinitely.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sekolah-hub/teacher-evaluation-hub/config"
	"github.com/sekolah-hub/teacher-evaluation-hub/internal/application/command"
	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/evaluation"
	"github.com/sekolah-hub/teacher-evaluation-hub/internal/infrastructure/persistence/postgres"
	"github.com/sekolah-hub/teacher-evaluation-hub/internal/infrastructure/persistence/redis"
	"github.com/sekolah-hub/teacher-evaluation-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		AddCaller: cfg.App.Debug,
	}).With(logger.Component("worker"))

	log.Info("starting worker",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.String("timezone", cfg.App.Timezone))

	// ─────────────────────────────────────────────────────────────────────────
	// 3. DATABASE
	// ─────────────────────────────────────────────────────────────────────────
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbConn.Close()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	log.Info("database connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. MIGRATIONS
	// The worker runs migrations too so it never sweeps against a stale schema.
	// ─────────────────────────────────────────────────────────────────────────
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database schema is up to date")

	// ─────────────────────────────────────────────────────────────────────────
	// 5. REDIS (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var summaryCache evaluation.SummaryCache = noopSummaryCache{}

	if !cfg.Redis.Disabled {
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		redisCache, cacheErr := redis.NewCache(redisCfg)
		if cacheErr != nil {
			// The sweep works without Redis, only invalidation is lost.
			log.Warn("failed to connect to Redis, cache invalidation disabled",
				logger.Err(cacheErr))
		} else {
			defer redisCache.Close()
			summaryCache = redis.NewSummaryCache(redisCache)
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	evalRepo := postgres.NewEvaluationRepository(dbConn)
	recompute := command.NewRecomputeSummaryHandler(evalRepo, summaryCache, gradeScale(cfg), log)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. SWEEP LOOP
	// ─────────────────────────────────────────────────────────────────────────
	if !cfg.Worker.Enabled || !cfg.Features.IsEnabled(config.FeatureEvaluationDriftRepair, nil) {
		log.Info("consistency sweep disabled, waiting for shutdown signal")
		<-ctx.Done()
		return nil
	}

	sweeper := &sweeper{
		evalRepo:      evalRepo,
		recompute:     recompute,
		batchSize:     cfg.Worker.SweepBatchSize,
		staleAfter:    cfg.Worker.SweepInterval,
		maxConcurrent: cfg.Worker.MaxConcurrentJobs,
		jobTimeout:    cfg.Worker.JobTimeout,
		log:           log,
	}

	log.Info("worker is running",
		logger.Duration("sweep_interval", cfg.Worker.SweepInterval),
		logger.Int("batch_size", cfg.Worker.SweepBatchSize))

	ticker := time.NewTicker(cfg.Worker.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("received shutdown signal, stopping sweep loop")
			return nil
		case <-ticker.C:
			sweeper.run(ctx)
		}
	}
}

// gradeScale resolves the configured grading scale. Item scores are 1-4, so
// the percentage variant normalizes against a maximum average of 4.
func gradeScale(cfg *config.Config) evaluation.GradeScale {
	if cfg.Evaluation.Scale == config.ScalePercentage {
		return evaluation.PercentageScale(4)
	}
	return evaluation.DefaultLetterScale()
}

// ══════════════════════════════════════════════════════════════════════════════
// CONSISTENCY SWEEP
// ══════════════════════════════════════════════════════════════════════════════

// sweeper re-verifies one batch of stale summaries per pass.
type sweeper struct {
	evalRepo      evaluation.Repository
	recompute     *command.RecomputeSummaryHandler
	batchSize     int
	staleAfter    time.Duration
	maxConcurrent int
	jobTimeout    time.Duration
	log           *logger.Logger
}

func (s *sweeper) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.jobTimeout)
	defer cancel()

	start := time.Now()
	cutoff := start.UTC().Add(-s.staleAfter)

	stale, err := s.evalRepo.ListStaleSummaries(ctx, cutoff, s.batchSize)
	if err != nil {
		s.log.Error("consistency sweep failed to list stale summaries", logger.Err(err))
		return
	}
	if len(stale) == 0 {
		s.log.Debug("consistency sweep found nothing stale")
		return
	}

	var (
		mu      sync.Mutex
		drifted int
		failed  int
		wg      sync.WaitGroup
		sem     = make(chan struct{}, s.maxConcurrent)
	)

	for _, parent := range stale {
		select {
		case <-ctx.Done():
		case sem <- struct{}{}:
		}
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		go func(key evaluation.ParentKey) {
			defer wg.Done()
			defer func() { <-sem }()

			res, err := s.recompute.Handle(ctx, command.RecomputeSummaryCommand{Key: key})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				failed++
				s.log.Error("consistency sweep recompute failed",
					logger.TeacherID(key.TeacherID),
					logger.PeriodID(key.PeriodID),
					logger.Err(err))
			case res.Drifted:
				drifted++
			}
		}(evaluation.ParentKey{
			TeacherID:   parent.TeacherID,
			PeriodID:    parent.PeriodID,
			EvaluatorID: parent.EvaluatorID,
		})
	}
	wg.Wait()

	s.log.Info("consistency sweep finished",
		logger.Int("checked", len(stale)),
		logger.Int("drifted", drifted),
		logger.Int("failed", failed),
		logger.Latency(time.Since(start)))
}

// noopSummaryCache satisfies evaluation.SummaryCache when Redis is absent.
type noopSummaryCache struct{}

func (noopSummaryCache) Get(context.Context, evaluation.ParentKey) (*evaluation.TeacherEvaluation, error) {
	return nil, nil
}

func (noopSummaryCache) Set(context.Context, *evaluation.TeacherEvaluation, time.Duration) error {
	return nil
}

func (noopSummaryCache) Invalidate(context.Context, evaluation.ParentKey) error {
	return nil
}

func (noopSummaryCache) InvalidateTeacher(context.Context, string) error {
	return nil
}
