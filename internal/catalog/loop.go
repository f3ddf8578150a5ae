package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
)

// Loop drives repeated catalog sync cycles every pollInterval, following
// the teacher's convention of wrapping periodic background work in a
// named gocron job (orchestrator.Scheduler). Each cycle is tagged with a
// fresh correlation ID (google/uuid, also a teacher dependency) so its
// log lines can be grouped even though cycles share no other state.
type Loop struct {
	client       *Client
	pollInterval time.Duration
	gocron       gocron.Scheduler
}

// NewLoop builds a Loop around client, running a sync cycle every
// pollInterval (spec.md §4.5 "Every P seconds").
func NewLoop(client *Client, pollInterval time.Duration) (*Loop, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create catalog scheduler: %w", err)
	}
	return &Loop{client: client, pollInterval: pollInterval, gocron: s}, nil
}

// Start registers and begins the sync cycle job.
func (l *Loop) Start(ctx context.Context) error {
	_, err := l.gocron.NewJob(
		gocron.DurationJob(l.pollInterval),
		gocron.NewTask(func() { l.runCycle(ctx) }),
		gocron.WithName("catalog-sync"),
	)
	if err != nil {
		return fmt.Errorf("register catalog sync job: %w", err)
	}
	l.gocron.Start()
	return nil
}

// Stop shuts the loop down, waiting for an in-flight cycle to finish.
func (l *Loop) Stop() error {
	if err := l.gocron.Shutdown(); err != nil {
		return fmt.Errorf("shutdown catalog scheduler: %w", err)
	}
	return nil
}

// runCycle performs one sync cycle, logging (not propagating) any error —
// spec.md §7: a failed cycle is transient, the next one retries from
// scratch.
func (l *Loop) runCycle(ctx context.Context) {
	cycleID := uuid.New()
	if err := l.client.Sync(ctx); err != nil {
		l.client.logger.Warn("sync cycle failed", "cycle_id", cycleID, "error", err)
		return
	}
	l.client.logger.Debug("sync cycle completed", "cycle_id", cycleID)
}
