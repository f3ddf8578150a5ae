package schedule

import (
	"fmt"
	"sync"

	"vantage/internal/clock"
)

// bucketState holds one bucket's queue and content hash.
type bucketState struct {
	queue *queue
	hash  uint64
}

// Index is the bucketed job index: a fixed number of buckets, each holding
// a min-heap of Handles and a rolling content hash (spec.md §3 "Bucket
// index", §4.1). It is safe for concurrent use: one sync.RWMutex guards
// every bucket, matching spec.md §5's "single reader-writer lock" rule.
type Index struct {
	mu      sync.RWMutex
	buckets []bucketState
	clock   clock.Clock
}

// NewIndex creates an Index with bucketCount empty buckets.
func NewIndex(bucketCount uint64, c clock.Clock) *Index {
	buckets := make([]bucketState, bucketCount)
	for i := range buckets {
		buckets[i] = bucketState{queue: newQueue()}
	}
	return &Index{buckets: buckets, clock: c}
}

// BucketCount returns the fixed number of buckets.
func (idx *Index) BucketCount() uint64 {
	return uint64(len(idx.buckets))
}

// nextAlignedDeadline rounds now up to the next interval-aligned epoch
// second strictly in the future, per spec.md §3's Job-handle invariant:
// "next_deadline is always strictly in the future... except when first
// created, where it is rounded up to the next interval-aligned epoch
// second."
func nextAlignedDeadline(now, interval int64) int64 {
	if interval <= 0 {
		interval = 1
	}
	return now - (now % interval) + interval
}

// ReplaceBucket atomically swaps bucket b's contents with jobs filtered by
// filt, assigns each surviving Job a fresh next-interval-aligned deadline,
// and recomputes the bucket's content hash over the full jobs slice in the
// order supplied, before filtering (spec.md §4.1 "replace_bucket", §4.5).
//
// The hash must cover every delivered Job, not just the ones this vantage's
// local include_tags/exclude_tags happen to keep: the coordinator stores one
// authoritative per-bucket hash with no knowledge of this agent's filter
// config, and computes it over the full set it sent. Hashing only the
// survivors would make a filtered agent's hash permanently diverge from the
// coordinator's, defeating the "only re-send changed buckets" optimization.
//
// jobs must already belong to bucket b (the catalog sync client is
// responsible for only calling this with the coordinator's per-bucket
// payload); ReplaceBucket does not re-validate job-to-bucket assignment.
//
// ReplaceBucket does validate that b itself is in range: the bucket number
// comes straight off the wire from the coordinator (spec.md §6), and a
// coordinator configured with a different bucket_count than this agent, or
// simply a malformed response, must not be able to crash the agent with an
// out-of-range index.
func (idx *Index) ReplaceBucket(b uint64, jobs []Job, filt Filter) error {
	if b >= uint64(len(idx.buckets)) {
		return fmt.Errorf("bucket %d out of range (bucket_count=%d)", b, len(idx.buckets))
	}

	now := idx.clock.NowSeconds()

	q := newQueue()
	for _, j := range jobs {
		if !filt.Eligible(j) {
			continue
		}
		q.push(&Handle{
			Job:          j,
			NextDeadline: nextAlignedDeadline(now, j.IntervalSeconds),
		})
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.buckets[b] = bucketState{queue: q, hash: hashJobs(jobs)}
	return nil
}

// Due is one Handle that DrainDue removed from its queue because its
// NextDeadline was <= now (spec.md §4.2 step 2), together with the bucket
// it came from. The caller must Reinsert each one once it has been
// dispatched.
type Due struct {
	Bucket uint64
	Handle *Handle
}

// DrainDue pops every due handle from every bucket under a single write
// lock, matching spec.md §4.2's "acquire exclusive access... for each
// bucket" tick body.
func (idx *Index) DrainDue(now int64) []Due {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var due []Due
	for b := range idx.buckets {
		q := idx.buckets[b].queue
		for {
			h, ok := q.peek()
			if !ok || h.NextDeadline > now {
				break
			}
			q.pop()
			due = append(due, Due{Bucket: uint64(b), Handle: h})
		}
	}
	return due
}

// Reinsert advances handle's NextDeadline by its Job's interval and pushes
// it back onto bucket b's queue (spec.md §4.2: "advance next_deadline +=
// interval, push back").
func (idx *Index) Reinsert(b uint64, handle *Handle) {
	handle.NextDeadline += handle.Job.IntervalSeconds

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.buckets[b].queue.push(handle)
}

// BucketHash is a (bucket, hash) pair, used both to build the sync
// request and to report the coordinator's authoritative view back.
type BucketHash struct {
	Bucket uint64
	Hash   uint64
}

// SnapshotHashes returns every bucket's current content hash, the
// read-only view the catalog sync client sends to the coordinator
// (spec.md §4.1 "snapshot_hashes").
func (idx *Index) SnapshotHashes() []BucketHash {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]BucketHash, len(idx.buckets))
	for b, bs := range idx.buckets {
		out[b] = BucketHash{Bucket: uint64(b), Hash: bs.hash}
	}
	return out
}

// BucketJobs returns a snapshot of the Jobs currently queued in bucket b,
// for diagnostics and tests. Order is not meaningful.
func (idx *Index) BucketJobs(b uint64) []Job {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	handles := idx.buckets[b].queue.all()
	out := make([]Job, len(handles))
	for i, h := range handles {
		out[i] = h.Job
	}
	return out
}
