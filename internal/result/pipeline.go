package result

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"vantage/internal/clock"
	"vantage/internal/logging"
)

// Sender delivers a batch of Records to the coordinator in one RPC call
// (spec.md §4.4 step 2). Implemented by catalog.Client in production.
type Sender interface {
	SendResults(ctx context.Context, records []Record) error
}

// Pipeline is the multi-producer, single-consumer, in-memory queue of
// Records described in spec.md §4.4: workers are producers, the batch
// sender goroutine is the sole consumer.
//
// The queue itself is an unbounded, mutex-guarded slice rather than a Go
// channel (spec.md §4.4, §9 "Both the MPSC channel and the result buffer
// are unbounded"): a channel always has a fixed capacity, so even a
// large buffered channel would eventually make Send block once the
// coordinator link stalls, propagating backpressure into the worker pool
// and the scheduler tick — exactly what §5 says must not happen. signal
// only wakes Run; it is never the thing records flow through.
type Pipeline struct {
	mu     sync.Mutex
	queued []Record
	signal chan struct{}

	batchSize int
	cooldown  time.Duration
	clock     clock.Clock
	sender    Sender
	logger    *slog.Logger
}

// NewPipeline creates a Pipeline that flushes to sender once batchSize
// records have accumulated, retrying a failed send only after cooldown
// has elapsed (spec.md §4.4). clk is injected so cooldown timing is
// deterministic under test (spec.md §9 "inject all collaborators").
func NewPipeline(sender Sender, batchSize int, cooldown time.Duration, clk clock.Clock, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		signal:    make(chan struct{}, 1),
		batchSize: batchSize,
		cooldown:  cooldown,
		clock:     clk,
		sender:    sender,
		logger:    logging.Default(logger).With("component", "result_pipeline"),
	}
}

// Send enqueues a Record without ever blocking the caller, however far
// behind the batch sender is (spec.md §4.4's unbounded buffer). Workers
// call this directly from their own goroutine.
func (p *Pipeline) Send(r Record) {
	p.mu.Lock()
	p.queued = append(p.queued, r)
	p.mu.Unlock()

	select {
	case p.signal <- struct{}{}:
	default:
	}
}

// Run is the batch sender loop (spec.md §4.4): wait for newly queued
// records, buffer them, and once the buffer reaches batchSize and the
// cooldown has elapsed, attempt one send. On success the buffer is
// cleared; on failure it is left intact and a new cooldown begins, so
// records keep accumulating during the cooldown window. Run returns when
// ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) {
	var buffer []Record
	var retryAllowedAfter int64

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.signal:
		}

		p.mu.Lock()
		if len(p.queued) > 0 {
			buffer = append(buffer, p.queued...)
			p.queued = nil
		}
		p.mu.Unlock()

		if len(buffer) < p.batchSize {
			continue
		}
		if p.clock.NowSeconds() < retryAllowedAfter {
			continue
		}

		if err := p.sender.SendResults(ctx, buffer); err != nil {
			p.logger.Warn("send results failed, entering cooldown",
				"error", err, "buffered", len(buffer), "cooldown", p.cooldown)
			retryAllowedAfter = p.clock.NowSeconds() + int64(p.cooldown.Seconds())
			continue
		}

		p.logger.Debug("sent results", "count", len(buffer))
		buffer = nil
		retryAllowedAfter = 0
	}
}
