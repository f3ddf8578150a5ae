package schedule

import (
	"encoding/binary"
	"hash/fnv"
)

// Bucket assigns a script name to one of bucketCount buckets by splitting
// the 64-bit FNV-1a hash space into bucketCount equal contiguous ranges
// (spec.md §3 "Bucket index"). This mirrors the teacher's own use of
// hash/fnv's 64-bit FNV-1a for change detection (gastrolog's
// internal/server/job.go WatchJobs).
func Bucket(scriptName string, bucketCount uint64) uint64 {
	if bucketCount == 0 {
		panic("schedule: bucketCount must be positive")
	}
	h := hashString(scriptName)
	width := ^uint64(0) / bucketCount
	b := h / width
	if b >= bucketCount {
		b = bucketCount - 1
	}
	return b
}

func hashString(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

// hashJobs computes the bucket content_hash: the finalization of a 64-bit
// FNV-1a digest fed the serialized Jobs in the exact order supplied
// (spec.md §4.1 "Hashing rule"). Callers must pass jobs in the order the
// coordinator delivered them inside the bucket payload — this function
// does not sort.
func hashJobs(jobs []Job) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	for _, j := range jobs {
		_, _ = h.Write([]byte(j.ScriptName))
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(j.Domain))
		_, _ = h.Write([]byte{0})
		binary.BigEndian.PutUint64(buf[:], uint64(j.IntervalSeconds))
		_, _ = h.Write(buf[:])
		for _, t := range j.Tags {
			_, _ = h.Write([]byte(t))
			_, _ = h.Write([]byte{0})
		}
		_, _ = h.Write([]byte{0xFF}) // job separator
	}
	return h.Sum64()
}
