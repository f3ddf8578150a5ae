package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"vantage/internal/clock"
	"vantage/internal/logging"
)

// Dispatcher runs a due Job. Submit may block — a saturated worker pool is
// intentional backpressure (spec.md §4.2 "Dispatch semantics"): the
// scheduler tick is thereby throttled by worker capacity, and no jobs are
// dropped.
type Dispatcher interface {
	Submit(job Job)
}

// Scheduler runs the tick loop described in spec.md §4.2: each tick reads
// the index once, drains due handles from every bucket, advances and
// re-enqueues each, and dispatches a copy of the popped handle to the
// worker pool.
type Scheduler struct {
	index      *Index
	dispatcher Dispatcher
	clock      clock.Clock
	tick       time.Duration
	logger     *slog.Logger

	gocron gocron.Scheduler
}

// NewScheduler builds a Scheduler over index, dispatching due jobs to
// dispatcher every tick.
func NewScheduler(index *Index, dispatcher Dispatcher, c clock.Clock, tick time.Duration, logger *slog.Logger) (*Scheduler, error) {
	if tick <= 0 {
		tick = 5 * time.Second
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	return &Scheduler{
		index:      index,
		dispatcher: dispatcher,
		clock:      c,
		tick:       tick,
		logger:     logging.Default(logger).With("component", "scheduler"),
		gocron:     s,
	}, nil
}

// Start registers the tick job and begins running it, following the
// teacher's convention of driving periodic background work through a
// named gocron job rather than a bare time.Sleep loop
// (orchestrator.cronRotationManager).
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.gocron.NewJob(
		gocron.DurationJob(s.tick),
		gocron.NewTask(func() { s.Tick(ctx) }),
		gocron.WithName("scheduler-tick"),
	)
	if err != nil {
		return fmt.Errorf("register scheduler tick: %w", err)
	}
	s.gocron.Start()
	s.logger.Info("scheduler started", "tick", s.tick)
	return nil
}

// Stop shuts the scheduler down, waiting for the in-flight tick (if any)
// to finish.
func (s *Scheduler) Stop() error {
	if err := s.gocron.Shutdown(); err != nil {
		return fmt.Errorf("shutdown scheduler: %w", err)
	}
	return nil
}

// Tick is one scheduler pass. A paused agent (e.g. a clock jump, or a
// gocron run that was delayed behind a long-running previous tick) may
// find many handles due at once; each is still fired exactly once per
// pass and re-armed one interval after its old deadline (Reinsert) —
// spec.md §4.2's "Missed deadlines" rule: a pass never fires a burst of
// one execution per missed interval. A re-armed deadline that is still
// not after now is due again on the next pass.
//
// Every drained handle is reinserted even once ctx is cancelled; only
// the dispatch to the worker pool is skipped.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.clock.NowSeconds()
	due := s.index.DrainDue(now)

	for _, d := range due {
		job := d.Handle.Job
		s.index.Reinsert(d.Bucket, d.Handle)

		select {
		case <-ctx.Done():
			continue
		default:
		}
		s.dispatcher.Submit(job)
	}

	if len(due) > 0 {
		s.logger.Debug("tick dispatched jobs", "count", len(due), "now", now)
	}
}
