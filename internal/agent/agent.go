// Package agent wires together the vantage agent's components into one
// value with a single Start/Stop lifecycle, the way the teacher's
// orchestrator package assembles its own subsystems in orchestrator.New.
package agent

import (
	"context"
	"fmt"
	"log/slog"

	"vantage/internal/catalog"
	"vantage/internal/clock"
	"vantage/internal/config"
	"vantage/internal/logging"
	"vantage/internal/result"
	"vantage/internal/schedule"
	"vantage/internal/script"
	"vantage/internal/worker"
)

// Agent owns every long-lived component: the script store, the job index,
// the worker pool, the result pipeline, the scheduler, and the catalog
// sync loop. It is constructed once in main and Start/Stop'd together.
type Agent struct {
	cfg *config.Config

	scripts *script.Set
	store   *script.Store
	index   *schedule.Index

	pipeline  *result.Pipeline
	pool      *worker.Pool
	scheduler *schedule.Scheduler

	catalogClient *catalog.Client
	catalogLoop   *catalog.Loop

	logger *slog.Logger
}

// New assembles an Agent from cfg. cfg must already have passed
// Validate. clk is injected for testability (clock.System in production,
// clock.Fake in tests).
func New(cfg *config.Config, clk clock.Clock, logger *slog.Logger) (*Agent, error) {
	logger = logging.Default(logger).With("component", "agent")

	scripts := script.NewSet()
	store := script.NewStore(cfg.ScriptsDirectory, logger)
	if err := store.EnsureDir(); err != nil {
		return nil, err
	}

	index := schedule.NewIndex(cfg.BucketCount, clk)

	a := &Agent{
		cfg:     cfg,
		scripts: scripts,
		store:   store,
		index:   index,
		logger:  logger,
	}

	filter := schedule.Filter{Include: cfg.IncludeTags, Exclude: cfg.ExcludeTags}

	a.catalogClient = catalog.NewClient(catalog.Config{
		CoordinatorAddress: cfg.CoordinatorAddress,
		Scripts:            scripts,
		Store:              store,
		Index:              index,
		Filter:             filter,
		Logger:             logger,
	})

	a.pipeline = result.NewPipeline(a.catalogClient, cfg.ResultBatchSize, cfg.SendCooldown, clk, logger)

	a.pool = worker.NewPool(worker.Config{
		InterpreterPath:  cfg.InterpreterPath,
		ScriptsDirectory: cfg.ScriptsDirectory,
		Hostname:         cfg.Hostname,
		IPAddress:        cfg.IPAddress,
		ThreadCount:      cfg.ThreadCount,
		ExecutionTimeout: cfg.ExecutionTimeout,
		Clock:            clk,
		Pipeline:         a.pipeline,
		Logger:           logger,
	})

	scheduler, err := schedule.NewScheduler(index, a.pool, clk, cfg.SchedulerTick, logger)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	a.scheduler = scheduler

	catalogLoop, err := catalog.NewLoop(a.catalogClient, cfg.PollInterval)
	if err != nil {
		return nil, fmt.Errorf("create catalog loop: %w", err)
	}
	a.catalogLoop = catalogLoop

	return a, nil
}

// Start brings the agent fully up: an initial synchronous sync cycle so
// the index and script set are populated before the scheduler's first
// tick can find anything due, then the batch sender, scheduler, and
// catalog loop are started as independent goroutines/background jobs.
func (a *Agent) Start(ctx context.Context) error {
	if err := a.catalogClient.Sync(ctx); err != nil {
		a.logger.Warn("initial sync cycle failed, continuing with empty catalog", "error", err)
	}

	go a.pipeline.Run(ctx)

	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	if err := a.catalogLoop.Start(ctx); err != nil {
		return fmt.Errorf("start catalog loop: %w", err)
	}

	a.logger.Info("agent started",
		"bucket_count", a.cfg.BucketCount,
		"thread_count", a.cfg.ThreadCount,
		"coordinator", a.cfg.CoordinatorAddress,
	)
	return nil
}

// Stop shuts the scheduler and catalog loop down, then drains the worker
// pool so no script invocation is abandoned mid-flight. The result
// pipeline and batch sender stop when ctx (passed to Start) is cancelled;
// callers should cancel ctx before calling Stop so pipeline.Run exits.
func (a *Agent) Stop() error {
	if err := a.scheduler.Stop(); err != nil {
		a.logger.Warn("scheduler shutdown error", "error", err)
	}
	if err := a.catalogLoop.Stop(); err != nil {
		a.logger.Warn("catalog loop shutdown error", "error", err)
	}
	a.pool.Wait()
	a.logger.Info("agent stopped")
	return nil
}
