package schedule

// Filter decides whether a Job is eligible on this vantage (spec.md §4.1).
//
// A Job is eligible iff its tag set intersects Include (or Include is
// empty) AND does not intersect Exclude. A Job with no tags at all is
// always ineligible — there is no "untagged matches all" rule. This
// follows the upstream proddle source's behavior (SPEC_FULL.md §9) and is
// an explicit, resolved answer to spec.md §9's open question.
type Filter struct {
	Include []string
	Exclude []string
}

// Eligible reports whether j passes the filter.
func (f Filter) Eligible(j Job) bool {
	if !j.hasTags() {
		return false
	}

	tags := j.tagSet()

	if len(f.Include) > 0 && !intersects(tags, f.Include) {
		return false
	}
	if intersects(tags, f.Exclude) {
		return false
	}
	return true
}

func intersects(tags map[string]struct{}, candidates []string) bool {
	for _, c := range candidates {
		if _, ok := tags[c]; ok {
			return true
		}
	}
	return false
}
