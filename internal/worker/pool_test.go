package worker

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"vantage/internal/clock"
	"vantage/internal/result"
	"vantage/internal/schedule"
)

type recordingSender struct {
	mu   sync.Mutex
	sent [][]result.Record
}

func (s *recordingSender) SendResults(_ context.Context, records []result.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]result.Record, len(records))
	copy(cp, records)
	s.sent = append(s.sent, cp)
	return nil
}

// newTestPipeline returns a Pipeline with batch size 1 so Send flushes
// immediately, plus the goroutine running it (stopped via ctx cancel).
func newTestPipeline(t *testing.T) (*result.Pipeline, *recordingSender, func()) {
	t.Helper()
	sender := &recordingSender{}
	p := result.NewPipeline(sender, 1, time.Minute, clock.System{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	return p, sender, func() {
		cancel()
		<-done
	}
}

func writeScript(t *testing.T, dir, name, body string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatalf("write script %s: %v", name, err)
	}
}

func TestPoolExecuteSuccessProducesOutputRecord(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "ok.sh", "#!/bin/sh\necho -n '{\"value\":1}'\n")

	pipeline, sender, stop := newTestPipeline(t)
	defer stop()

	pool := NewPool(Config{
		InterpreterPath:  "/bin/sh",
		ScriptsDirectory: dir,
		Hostname:         "host-a",
		IPAddress:        "10.0.0.1",
		ThreadCount:      2,
		Clock:            clock.NewFake(42),
		Pipeline:         pipeline,
	})

	pool.Submit(schedule.Job{ScriptName: "ok.sh", Domain: "example.com"})
	pool.Wait()
	waitForSent(t, sender, 1)

	rec := sender.sent[0][0]
	if rec.Error {
		t.Fatalf("expected success, got error record: %s", rec.ErrorMessage)
	}
	if rec.Timestamp != 42 || rec.Hostname != "host-a" || rec.ScriptName != "ok.sh" || rec.Domain != "example.com" {
		t.Errorf("unexpected record fields: %+v", rec)
	}
}

func TestPoolExecuteFailureProducesErrorRecord(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "fail.sh", "#!/bin/sh\nexit 1\n")

	pipeline, sender, stop := newTestPipeline(t)
	defer stop()

	pool := NewPool(Config{
		InterpreterPath:  "/bin/sh",
		ScriptsDirectory: dir,
		Clock:            clock.NewFake(0),
		Pipeline:         pipeline,
	})

	pool.Submit(schedule.Job{ScriptName: "fail.sh", Domain: "example.com"})
	pool.Wait()
	waitForSent(t, sender, 1)

	rec := sender.sent[0][0]
	if !rec.Error || rec.ErrorMessage == "" {
		t.Fatalf("expected an error record, got %+v", rec)
	}
}

func TestPoolExecuteTimeoutReportsDeadlineExceeded(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "slow.sh", "#!/bin/sh\nsleep 5\n")

	pipeline, sender, stop := newTestPipeline(t)
	defer stop()

	pool := NewPool(Config{
		InterpreterPath:  "/bin/sh",
		ScriptsDirectory: dir,
		Clock:            clock.NewFake(0),
		Pipeline:         pipeline,
		ExecutionTimeout: 50 * time.Millisecond,
	})

	pool.Submit(schedule.Job{ScriptName: "slow.sh", Domain: "example.com"})
	pool.Wait()
	waitForSent(t, sender, 1)

	rec := sender.sent[0][0]
	if !rec.Error {
		t.Fatal("expected a timed-out execution to produce an error record")
	}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "quick.sh", "#!/bin/sh\necho -n '{}'\n")

	pipeline, sender, stop := newTestPipeline(t)
	defer stop()

	pool := NewPool(Config{
		InterpreterPath:  "/bin/sh",
		ScriptsDirectory: dir,
		Clock:            clock.NewFake(0),
		Pipeline:         pipeline,
		ThreadCount:      1,
	})

	for i := 0; i < 5; i++ {
		pool.Submit(schedule.Job{ScriptName: "quick.sh", Domain: "example.com"})
	}
	pool.Wait()
	waitForSent(t, sender, 5)
}

func waitForSent(t *testing.T, sender *recordingSender, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		sender.mu.Lock()
		got := len(sender.sent)
		sender.mu.Unlock()
		if got >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d sent batches", n)
}
