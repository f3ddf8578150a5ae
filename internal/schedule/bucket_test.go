package schedule

import "testing"

func TestBucketIsStableAndInRange(t *testing.T) {
	const bucketCount = 16
	names := []string{"disk-usage", "cpu-load", "network-latency", "ping-check"}

	for _, name := range names {
		b1 := Bucket(name, bucketCount)
		b2 := Bucket(name, bucketCount)
		if b1 != b2 {
			t.Errorf("Bucket(%q) not stable: %d != %d", name, b1, b2)
		}
		if b1 >= bucketCount {
			t.Errorf("Bucket(%q) = %d, want < %d", name, b1, bucketCount)
		}
	}
}

func TestBucketPanicsOnZeroCount(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected Bucket to panic with bucketCount 0")
		}
	}()
	Bucket("disk-usage", 0)
}

func TestHashJobsOrderSensitive(t *testing.T) {
	a := Job{ScriptName: "disk-usage", Domain: "example.com", IntervalSeconds: 60, Tags: []string{"storage"}}
	b := Job{ScriptName: "cpu-load", Domain: "example.com", IntervalSeconds: 30, Tags: []string{"compute"}}

	h1 := hashJobs([]Job{a, b})
	h2 := hashJobs([]Job{b, a})

	if h1 == h2 {
		t.Error("expected hashJobs to be sensitive to job order")
	}
}

func TestHashJobsDeterministic(t *testing.T) {
	jobs := []Job{
		{ScriptName: "disk-usage", Domain: "example.com", IntervalSeconds: 60, Tags: []string{"storage"}},
		{ScriptName: "cpu-load", Domain: "example.com", IntervalSeconds: 30},
	}

	h1 := hashJobs(jobs)
	h2 := hashJobs(jobs)
	if h1 != h2 {
		t.Error("expected hashJobs to be deterministic for identical input")
	}
}

func TestHashJobsEmpty(t *testing.T) {
	if hashJobs(nil) != hashJobs([]Job{}) {
		t.Error("expected hashJobs(nil) to equal hashJobs of an empty slice")
	}
}
