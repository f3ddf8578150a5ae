// Package config defines the vantage agent's startup configuration and the
// validation that turns a bag of CLI flags into a value every other
// component can trust without re-checking.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the agent's top-level configuration, constructed once at
// startup and passed by reference to every component that needs it. It is
// never mutated after Validate succeeds.
type Config struct {
	// Hostname is embedded in every Result record.
	Hostname string
	// IPAddress is embedded in every Result record.
	IPAddress string

	// ScriptsDirectory is the on-disk directory holding measurement
	// executables, keyed by script name.
	ScriptsDirectory string
	// InterpreterPath is the executable used to run scripts, e.g.
	// "/usr/bin/python3". Invoked as <interpreter> <script_path> <domain>.
	InterpreterPath string

	// BucketCount is the fixed number of job buckets (B) for the life of
	// the process.
	BucketCount uint64
	// ThreadCount is the worker pool size (T).
	ThreadCount int

	// CoordinatorAddress is "host:port" of the coordinator.
	CoordinatorAddress string
	// PollInterval is the catalog sync cycle period (P).
	PollInterval time.Duration

	// ResultBatchSize is the number of buffered results that triggers a
	// send to the coordinator.
	ResultBatchSize int

	// IncludeTags and ExcludeTags are applied to every incoming Job during
	// sync (spec.md §4.1's tag filter).
	IncludeTags []string
	ExcludeTags []string

	// SchedulerTick is the scheduler loop's wakeup period. Defaults to 5s
	// (spec.md §4.2) when zero.
	SchedulerTick time.Duration
	// SendCooldown is how long the result sender waits after a failed send
	// before retrying. Defaults to 10 minutes (spec.md §4.4) when zero.
	SendCooldown time.Duration
	// ExecutionTimeout, if non-zero, kills a script subprocess that runs
	// longer than this and reports it as an execution error. Zero disables
	// the timeout entirely, matching spec.md's core behavior (SPEC_FULL.md
	// §4.3 supplement).
	ExecutionTimeout time.Duration
}

// Default tick and cooldown values, applied by Validate when the
// corresponding field is left at its zero value.
const (
	DefaultSchedulerTick = 5 * time.Second
	DefaultSendCooldown  = 10 * time.Minute
)

// Validate checks required fields and fills in defaults for optional
// duration fields. Configuration errors are fatal at startup (spec.md §7):
// callers should treat a non-nil error as cause to exit, not retry.
func (c *Config) Validate() error {
	var missing []string
	if c.Hostname == "" {
		missing = append(missing, "hostname")
	}
	if c.IPAddress == "" {
		missing = append(missing, "ip-address")
	}
	if c.ScriptsDirectory == "" {
		missing = append(missing, "scripts-directory")
	}
	if c.InterpreterPath == "" {
		missing = append(missing, "interpreter")
	}
	if c.CoordinatorAddress == "" {
		missing = append(missing, "coordinator-address")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if c.BucketCount == 0 {
		return fmt.Errorf("bucket-count must be positive")
	}
	if c.ThreadCount <= 0 {
		return fmt.Errorf("thread-count must be positive")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll-interval must be positive")
	}
	if c.ResultBatchSize <= 0 {
		return fmt.Errorf("result-batch-size must be positive")
	}
	if c.ExecutionTimeout < 0 {
		return fmt.Errorf("execution-timeout must not be negative")
	}

	if c.SchedulerTick <= 0 {
		c.SchedulerTick = DefaultSchedulerTick
	}
	if c.SendCooldown <= 0 {
		c.SendCooldown = DefaultSendCooldown
	}

	return nil
}
