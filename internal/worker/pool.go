// Package worker implements the bounded pool that runs script
// invocations and emits Result records (spec.md §4.3).
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"vantage/internal/clock"
	"vantage/internal/logging"
	"vantage/internal/result"
	"vantage/internal/schedule"
)

// Pool is a fixed-size pool of goroutines executing one Job each (spec.md
// §4.3). Concurrency is bounded with golang.org/x/sync/errgroup's
// SetLimit, the same dependency the teacher uses to bound concurrent
// work in internal/index/build.go's BuildHelper.
type Pool struct {
	interpreterPath  string
	scriptsDirectory string
	hostname         string
	ipAddress        string
	executionTimeout time.Duration

	clock    clock.Clock
	pipeline *result.Pipeline
	group    errgroup.Group
	logger   *slog.Logger
}

// Config bundles Pool's construction-time dependencies.
type Config struct {
	InterpreterPath  string
	ScriptsDirectory string
	Hostname         string
	IPAddress        string
	ThreadCount      int
	ExecutionTimeout time.Duration // 0 disables the timeout (spec.md §4.3 default)

	Clock    clock.Clock
	Pipeline *result.Pipeline
	Logger   *slog.Logger
}

// NewPool builds a Pool bounded to cfg.ThreadCount concurrent executions.
func NewPool(cfg Config) *Pool {
	p := &Pool{
		interpreterPath:  cfg.InterpreterPath,
		scriptsDirectory: cfg.ScriptsDirectory,
		hostname:         cfg.Hostname,
		ipAddress:        cfg.IPAddress,
		executionTimeout: cfg.ExecutionTimeout,
		clock:            cfg.Clock,
		pipeline:         cfg.Pipeline,
		logger:           logging.Default(cfg.Logger).With("component", "worker_pool"),
	}
	p.group.SetLimit(cfg.ThreadCount)
	return p
}

// Submit runs job on the pool. It blocks if every worker slot is busy —
// spec.md §4.3's intentional backpressure — and returns once a slot has
// been claimed for job, not once job has finished executing.
func (p *Pool) Submit(job schedule.Job) {
	p.group.Go(func() error {
		p.execute(job)
		return nil
	})
}

// Wait blocks until every in-flight execution completes. Used at shutdown
// only; the pool accepts no new work once the caller stops calling Submit.
func (p *Pool) Wait() {
	_ = p.group.Wait()
}

// execute runs one Job end to end and always emits exactly one Record
// (spec.md §4.3 steps 1–5).
func (p *Pool) execute(job schedule.Job) {
	scriptPath := filepath.Join(p.scriptsDirectory, filepath.FromSlash(job.ScriptName))

	rec := result.Record{
		Timestamp:  p.clock.NowSeconds(),
		Hostname:   p.hostname,
		IPAddress:  p.ipAddress,
		ScriptName: job.ScriptName,
		Domain:     job.Domain,
	}

	output, err := p.run(scriptPath, job.Domain)
	if err != nil {
		rec.Error = true
		rec.ErrorMessage = err.Error()
		p.logger.Warn("script execution failed", "script", job.ScriptName, "domain", job.Domain, "error", err)
	} else {
		rec.Output = output
	}

	p.pipeline.Send(rec)
}

// run spawns the interpreter against scriptPath and domain, and returns
// stdout (spec.md §4.3 step 2-3, §6 "Subprocess invocation"). stderr and
// exit status are not inspected in the success path: a non-zero exit with
// captured stdout is still treated as success.
func (p *Pool) run(scriptPath, domain string) ([]byte, error) {
	ctx := context.Background()
	var cancel context.CancelFunc
	if p.executionTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, p.executionTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, p.interpreterPath, scriptPath, domain)
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("execution timed out after %s", p.executionTimeout)
		}
		if _, exited := err.(*exec.ExitError); !exited || len(out) == 0 {
			return nil, fmt.Errorf("run %s %s: %w", scriptPath, domain, err)
		}
	}
	// Capture stdout as UTF-8, lossy (spec.md §6): invalid byte sequences
	// are replaced rather than rejected.
	return []byte(strings.ToValidUTF8(string(out), "�")), nil
}
