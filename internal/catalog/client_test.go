package catalog

import (
	"context"
	"os"
	"testing"
	"time"

	"vantage/internal/clock"
	"vantage/internal/result"
	"vantage/internal/rpc"
	"vantage/internal/schedule"
	"vantage/internal/script"
)

func readFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func newTestClient(t *testing.T, handlers rpc.FakeHandlers) (*Client, *rpc.FakeServer, *script.Set, *script.Store, *schedule.Index) {
	t.Helper()

	srv, err := rpc.StartFakeServer(handlers)
	if err != nil {
		t.Fatalf("StartFakeServer: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })

	scripts := script.NewSet()
	store := script.NewStore(t.TempDir(), nil)
	index := schedule.NewIndex(2, clock.NewFake(0))

	c := NewClient(Config{
		CoordinatorAddress: srv.Addr(),
		Scripts:            scripts,
		Store:              store,
		Index:              index,
		Filter:             schedule.Filter{},
		Logger:             nil,
	})
	return c, srv, scripts, store, index
}

func TestSyncInstallsNewScript(t *testing.T) {
	c, _, scripts, store, _ := newTestClient(t, rpc.FakeHandlers{
		GetScripts: func(req rpc.GetScriptsRequest) rpc.GetScriptsResponse {
			return rpc.GetScriptsResponse{
				Scripts: []rpc.ScriptDelta{{Name: "disk-usage.py", Version: 1, Content: []byte("print(1)")}},
			}
		},
		GetJobs: func(req rpc.GetJobsRequest) rpc.GetJobsResponse {
			return rpc.GetJobsResponse{}
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Sync(ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	sc, ok := scripts.Get("disk-usage.py")
	if !ok || sc.Version != 1 {
		t.Fatalf("expected disk-usage.py at version 1 in the set, got %+v ok=%v", sc, ok)
	}
	if _, err := readFile(store.Path("disk-usage.py")); err != nil {
		t.Fatalf("expected script content on disk: %v", err)
	}
}

func TestSyncDeletesScriptOnVersionZero(t *testing.T) {
	c, _, scripts, store, _ := newTestClient(t, rpc.FakeHandlers{
		GetScripts: func(req rpc.GetScriptsRequest) rpc.GetScriptsResponse {
			return rpc.GetScriptsResponse{
				Scripts: []rpc.ScriptDelta{{Name: "disk-usage.py", Version: 0}},
			}
		},
		GetJobs: func(req rpc.GetJobsRequest) rpc.GetJobsResponse {
			return rpc.GetJobsResponse{}
		},
	})

	if err := store.Write("disk-usage.py", []byte("print(1)")); err != nil {
		t.Fatalf("seed Write: %v", err)
	}
	scripts.Put(script.Script{Name: "disk-usage.py", Version: 1})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Sync(ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if _, ok := scripts.Get("disk-usage.py"); ok {
		t.Fatal("expected disk-usage.py to be removed from the set")
	}
}

func TestSyncReplacesBucketOnHashMismatch(t *testing.T) {
	c, _, _, _, index := newTestClient(t, rpc.FakeHandlers{
		GetScripts: func(req rpc.GetScriptsRequest) rpc.GetScriptsResponse {
			return rpc.GetScriptsResponse{}
		},
		GetJobs: func(req rpc.GetJobsRequest) rpc.GetJobsResponse {
			return rpc.GetJobsResponse{
				Buckets: []rpc.JobBucket{{
					Bucket: 0,
					Jobs: []rpc.JobWire{
						{ScriptName: "disk-usage", Domain: "example.com", Interval: 60, Tags: []string{"storage"}},
					},
				}},
			}
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Sync(ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	jobs := index.BucketJobs(0)
	if len(jobs) != 1 || jobs[0].ScriptName != "disk-usage" {
		t.Fatalf("expected bucket 0 to contain disk-usage, got %+v", jobs)
	}
}

// TestSyncBucketHashIgnoresLocalFilter confirms that two agents syncing the
// same coordinator-delivered bucket end up with identical hashes even when
// one of them filters jobs out locally (spec.md §4.5, §8 property 2): the
// hash must reflect what the coordinator sent, not what survives locally,
// or the coordinator would never see its hash echoed back and would
// re-send the bucket every cycle.
func TestSyncBucketHashIgnoresLocalFilter(t *testing.T) {
	handlers := rpc.FakeHandlers{
		GetScripts: func(req rpc.GetScriptsRequest) rpc.GetScriptsResponse {
			return rpc.GetScriptsResponse{}
		},
		GetJobs: func(req rpc.GetJobsRequest) rpc.GetJobsResponse {
			return rpc.GetJobsResponse{
				Buckets: []rpc.JobBucket{{
					Bucket: 0,
					Jobs: []rpc.JobWire{
						{ScriptName: "tagged", Domain: "example.com", Interval: 60, Tags: []string{"storage"}},
						{ScriptName: "untagged", Domain: "example.com", Interval: 60},
					},
				}},
			}
		},
	}

	unfilteredClient, _, _, _, unfilteredIndex := newTestClient(t, handlers)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := unfilteredClient.Sync(ctx); err != nil {
		t.Fatalf("Sync (unfiltered): %v", err)
	}

	filteredIndex := schedule.NewIndex(2, clock.NewFake(0))
	srv, err := rpc.StartFakeServer(handlers)
	if err != nil {
		t.Fatalf("StartFakeServer: %v", err)
	}
	defer func() { _ = srv.Close() }()
	filteredClient := NewClient(Config{
		CoordinatorAddress: srv.Addr(),
		Scripts:            script.NewSet(),
		Store:              script.NewStore(t.TempDir(), nil),
		Index:              filteredIndex,
		Filter:             schedule.Filter{Include: []string{"storage"}},
	})
	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	if err := filteredClient.Sync(ctx2); err != nil {
		t.Fatalf("Sync (filtered): %v", err)
	}

	unfilteredHash := unfilteredIndex.SnapshotHashes()[0].Hash
	filteredHash := filteredIndex.SnapshotHashes()[0].Hash
	if unfilteredHash != filteredHash {
		t.Errorf("bucket hash must not depend on the local filter: unfiltered=%d filtered=%d", unfilteredHash, filteredHash)
	}

	if jobs := filteredIndex.BucketJobs(0); len(jobs) != 1 || jobs[0].ScriptName != "tagged" {
		t.Fatalf("expected the filtered index to still only queue the tagged job, got %+v", jobs)
	}
}

// TestSyncIgnoresOutOfRangeBucketFromCoordinator confirms a coordinator
// response carrying a bucket number beyond this agent's bucket_count is
// dropped with a warning rather than crashing the sync cycle.
func TestSyncIgnoresOutOfRangeBucketFromCoordinator(t *testing.T) {
	c, _, _, _, index := newTestClient(t, rpc.FakeHandlers{
		GetScripts: func(req rpc.GetScriptsRequest) rpc.GetScriptsResponse {
			return rpc.GetScriptsResponse{}
		},
		GetJobs: func(req rpc.GetJobsRequest) rpc.GetJobsResponse {
			return rpc.GetJobsResponse{
				Buckets: []rpc.JobBucket{
					{
						Bucket: 99, // newTestClient's index only has 2 buckets
						Jobs: []rpc.JobWire{
							{ScriptName: "out-of-range", Domain: "example.com", Interval: 60, Tags: []string{"storage"}},
						},
					},
					{
						Bucket: 0,
						Jobs: []rpc.JobWire{
							{ScriptName: "in-range", Domain: "example.com", Interval: 60, Tags: []string{"storage"}},
						},
					},
				},
			}
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Sync(ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	jobs := index.BucketJobs(0)
	if len(jobs) != 1 || jobs[0].ScriptName != "in-range" {
		t.Fatalf("expected the in-range bucket to still be applied, got %+v", jobs)
	}
}

func TestSendResultsDeliversPayloadsAndChecksAck(t *testing.T) {
	c, srv, _, _, _ := newTestClient(t, rpc.FakeHandlers{
		SendResults: func(req rpc.SendResultsRequest) rpc.Ack {
			return rpc.Ack{OK: true}
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	records := []result.Record{{ScriptName: "disk-usage", Domain: "example.com"}}
	if err := c.SendResults(ctx, records); err != nil {
		t.Fatalf("SendResults: %v", err)
	}

	received := srv.ReceivedResults()
	if len(received) != 1 || len(received[0].Results) != 1 {
		t.Fatalf("expected one delivered result, got %+v", received)
	}
}

func TestSendResultsReturnsErrorOnNack(t *testing.T) {
	c, _, _, _, _ := newTestClient(t, rpc.FakeHandlers{
		SendResults: func(req rpc.SendResultsRequest) rpc.Ack {
			return rpc.Ack{OK: false}
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := c.SendResults(ctx, []result.Record{{ScriptName: "disk-usage"}})
	if err == nil {
		t.Fatal("expected an error when the coordinator nacks the send")
	}
}
