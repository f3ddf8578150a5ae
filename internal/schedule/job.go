// Package schedule implements the agent's bucketed job index and
// scheduler loop (spec.md §3 "Job"/"Job handle"/"Bucket index", §4.1,
// §4.2).
package schedule

// Job is a recurring measurement execution unit (spec.md §3).
type Job struct {
	ScriptName string
	Domain     string
	// IntervalSeconds is the positive number of seconds between
	// executions.
	IntervalSeconds int64
	// Tags is the optional set of strings used for include/exclude
	// filtering (Filter in filter.go). A nil or empty Tags makes the job
	// ineligible on every vantage, per spec.md §4.1 and §9.
	Tags []string
}

// Handle is the scheduler's per-job record: the Job plus its next
// scheduled deadline.
type Handle struct {
	Job          Job
	NextDeadline int64 // epoch-seconds
}

// hasTags reports whether j declares any tags at all.
func (j Job) hasTags() bool {
	return len(j.Tags) > 0
}

// tagSet returns j.Tags as a lookup set.
func (j Job) tagSet() map[string]struct{} {
	set := make(map[string]struct{}, len(j.Tags))
	for _, t := range j.Tags {
		set[t] = struct{}{}
	}
	return set
}
