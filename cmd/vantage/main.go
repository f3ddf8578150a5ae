// Command vantage runs the distributed measurement agent.
//
// Logging:
//   - Base logger is created here with output format and level
//   - Logger is passed to all components via dependency injection
//   - No global slog configuration (no slog.SetDefault)
//   - Components scope loggers with their own attributes
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"vantage/internal/agent"
	"vantage/internal/clock"
	"vantage/internal/config"
	"vantage/internal/logging"
)

var version = "dev"

func main() {
	// Base logger wrapped in a ComponentFilterHandler so individual
	// components' log levels can be raised independently of the global
	// default (matches gastrolog's logging convention).
	baseHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	filterHandler := logging.NewComponentFilterHandler(baseHandler, slog.LevelInfo)
	logger := slog.New(filterHandler)

	rootCmd := &cobra.Command{
		Use:   "vantage",
		Short: "Distributed measurement agent",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Start the agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromFlags(cmd)
			if err != nil {
				return err
			}

			debugComponents, _ := cmd.Flags().GetStringSlice("debug-component")
			for _, component := range trimAll(debugComponents) {
				filterHandler.SetLevel(component, slog.LevelDebug)
				logger.Info("component debug logging enabled", "component", component, "level", filterHandler.Level(component))
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			return run(ctx, logger, cfg)
		},
	}
	addRunFlags(runCmd)
	runCmd.Flags().StringSlice("debug-component", nil, "enable debug logging for these components only (e.g. catalog,scheduler)")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}

	rootCmd.AddCommand(runCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().String("hostname", "", "hostname embedded in result records (default: os.Hostname())")
	cmd.Flags().String("ip-address", "", "IP address embedded in result records")
	cmd.Flags().String("scripts-directory", "", "directory holding measurement executables")
	cmd.Flags().String("interpreter", "", "interpreter executable used to invoke scripts")
	cmd.Flags().Uint64("bucket-count", 64, "number of job buckets")
	cmd.Flags().Int("thread-count", 4, "worker pool size")
	cmd.Flags().String("coordinator-address", "", "coordinator host:port")
	cmd.Flags().Duration("poll-interval", 30*time.Second, "catalog sync cycle period")
	cmd.Flags().Int("result-batch-size", 50, "number of buffered results that triggers a send")
	cmd.Flags().Duration("scheduler-tick", config.DefaultSchedulerTick, "scheduler wakeup period")
	cmd.Flags().Duration("send-cooldown", config.DefaultSendCooldown, "retry delay after a failed result send")
	cmd.Flags().Duration("execution-timeout", 0, "kill a script subprocess after this long (0 disables)")
	cmd.Flags().StringSlice("include-tags", nil, "only schedule jobs carrying one of these tags")
	cmd.Flags().StringSlice("exclude-tags", nil, "never schedule jobs carrying one of these tags")
}

func configFromFlags(cmd *cobra.Command) (*config.Config, error) {
	hostname, _ := cmd.Flags().GetString("hostname")
	if hostname == "" {
		h, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("resolve hostname: %w", err)
		}
		hostname = h
	}

	ipAddress, _ := cmd.Flags().GetString("ip-address")
	scriptsDirectory, _ := cmd.Flags().GetString("scripts-directory")
	interpreter, _ := cmd.Flags().GetString("interpreter")
	bucketCount, _ := cmd.Flags().GetUint64("bucket-count")
	threadCount, _ := cmd.Flags().GetInt("thread-count")
	coordinatorAddress, _ := cmd.Flags().GetString("coordinator-address")
	pollInterval, _ := cmd.Flags().GetDuration("poll-interval")
	resultBatchSize, _ := cmd.Flags().GetInt("result-batch-size")
	schedulerTick, _ := cmd.Flags().GetDuration("scheduler-tick")
	sendCooldown, _ := cmd.Flags().GetDuration("send-cooldown")
	executionTimeout, _ := cmd.Flags().GetDuration("execution-timeout")
	includeTags, _ := cmd.Flags().GetStringSlice("include-tags")
	excludeTags, _ := cmd.Flags().GetStringSlice("exclude-tags")

	cfg := &config.Config{
		Hostname:           hostname,
		IPAddress:          ipAddress,
		ScriptsDirectory:   scriptsDirectory,
		InterpreterPath:    interpreter,
		BucketCount:        bucketCount,
		ThreadCount:        threadCount,
		CoordinatorAddress: coordinatorAddress,
		PollInterval:       pollInterval,
		ResultBatchSize:    resultBatchSize,
		IncludeTags:        trimAll(includeTags),
		ExcludeTags:        trimAll(excludeTags),
		SchedulerTick:      schedulerTick,
		SendCooldown:       sendCooldown,
		ExecutionTimeout:   executionTimeout,
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func trimAll(ss []string) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func run(ctx context.Context, logger *slog.Logger, cfg *config.Config) error {
	a, err := agent.New(cfg, clock.System{}, logger)
	if err != nil {
		return fmt.Errorf("build agent: %w", err)
	}

	if err := a.Start(ctx); err != nil {
		return fmt.Errorf("start agent: %w", err)
	}

	<-ctx.Done()

	logger.Info("shutting down agent")
	if err := a.Stop(); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
