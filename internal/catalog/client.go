// Package catalog implements the agent's catalog-synchronization
// protocol (spec.md §4.5): reconciling the local script set and job index
// against the coordinator using per-bucket content hashes, and relaying
// batched results back.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"vantage/internal/logging"
	"vantage/internal/result"
	"vantage/internal/rpc"
	"vantage/internal/schedule"
	"vantage/internal/script"
)

// Client performs one sync cycle per call to Sync, and implements
// result.Sender for the batch sender (spec.md §4.4 step 2, §4.5).
type Client struct {
	coordinatorAddr string
	scripts         *script.Set
	store           *script.Store
	index           *schedule.Index
	filter          schedule.Filter
	logger          *slog.Logger
}

// Config bundles Client's construction-time dependencies.
type Config struct {
	CoordinatorAddress string
	Scripts            *script.Set
	Store              *script.Store
	Index              *schedule.Index
	Filter             schedule.Filter
	Logger             *slog.Logger
}

// NewClient builds a catalog Client.
func NewClient(cfg Config) *Client {
	return &Client{
		coordinatorAddr: cfg.CoordinatorAddress,
		scripts:         cfg.Scripts,
		store:           cfg.Store,
		index:           cfg.Index,
		filter:          cfg.Filter,
		logger:          logging.Default(cfg.Logger).With("component", "catalog"),
	}
}

// Sync performs one full reconciliation cycle: scripts, then jobs, on one
// connection (spec.md §4.5). A failure of either phase aborts the cycle;
// the next cycle retries from scratch. Writes already applied before the
// failure (scripts installed or deleted, buckets replaced) are kept, not
// rolled back; they are idempotent, so the next cycle reconciles them.
func (c *Client) Sync(ctx context.Context) error {
	session, err := rpc.Dial(ctx, c.coordinatorAddr)
	if err != nil {
		return fmt.Errorf("dial coordinator: %w", err)
	}
	defer func() { _ = session.Close() }()

	added, err := c.reconcileScripts(session)
	if err != nil {
		return fmt.Errorf("reconcile scripts: %w", err)
	}
	if added > 0 {
		c.logger.Info("added scripts", "count", added)
	}

	added, err = c.reconcileJobs(session)
	if err != nil {
		return fmt.Errorf("reconcile jobs: %w", err)
	}
	if added > 0 {
		c.logger.Info("added jobs", "count", added)
	}

	return nil
}

// reconcileScripts implements spec.md §4.5 step 1.
func (c *Client) reconcileScripts(session *rpc.Session) (int, error) {
	req := rpc.GetScriptsRequest{Scripts: toScriptQueries(c.scripts.Snapshot())}

	resp, err := session.GetScripts(req)
	if err != nil {
		return 0, err
	}

	added := 0
	for _, delta := range resp.Scripts {
		if err := c.applyScriptDelta(delta); err != nil {
			return added, fmt.Errorf("apply delta for %s: %w", delta.Name, err)
		}
		if delta.Version != 0 {
			added++
		}
	}
	return added, nil
}

// applyScriptDelta installs or deletes one script (spec.md §4.5 step 1,
// §3 "version=0 is a sentinel meaning deleted").
func (c *Client) applyScriptDelta(delta rpc.ScriptDelta) error {
	if delta.Version == 0 {
		if err := c.store.Delete(delta.Name); err != nil {
			return err
		}
		c.scripts.Remove(delta.Name)
		return nil
	}

	if err := c.store.Write(delta.Name, delta.Content); err != nil {
		return err
	}

	sc := script.Script{
		Name:         delta.Name,
		Version:      delta.Version,
		Timestamp:    delta.Timestamp,
		HasTimestamp: delta.HasTimestamp,
		Dependencies: delta.Dependencies,
	}
	if len(sc.Dependencies) > 0 {
		c.logger.Debug("script dependencies", "name", sc.Name, "dependencies", sc.Dependencies)
	}
	c.scripts.Put(sc)
	return nil
}

// reconcileJobs implements spec.md §4.5 step 2.
func (c *Client) reconcileJobs(session *rpc.Session) (int, error) {
	req := rpc.GetJobsRequest{BucketHashes: toWireHashes(c.index.SnapshotHashes())}

	resp, err := session.GetJobs(req)
	if err != nil {
		return 0, err
	}

	added := 0
	for _, bucket := range resp.Buckets {
		jobs := toJobs(bucket.Jobs)
		if err := c.index.ReplaceBucket(bucket.Bucket, jobs, c.filter); err != nil {
			c.logger.Warn("dropping bucket from coordinator response", "bucket", bucket.Bucket, "error", err)
			continue
		}
		added += len(jobs)
	}
	return added, nil
}

// SendResults implements result.Sender: it opens its own session (sync
// cycles and result sends are independent RPC round trips) and delivers
// records as pre-rendered JSON documents (spec.md §6 method 3).
func (c *Client) SendResults(ctx context.Context, records []result.Record) error {
	session, err := rpc.Dial(ctx, c.coordinatorAddr)
	if err != nil {
		return fmt.Errorf("dial coordinator: %w", err)
	}
	defer func() { _ = session.Close() }()

	payloads := make([]string, len(records))
	for i, r := range records {
		b, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal result %d: %w", i, err)
		}
		payloads[i] = string(b)
	}

	ack, err := session.SendResults(rpc.SendResultsRequest{Results: payloads})
	if err != nil {
		return err
	}
	if !ack.OK {
		return fmt.Errorf("coordinator did not acknowledge results")
	}
	return nil
}
