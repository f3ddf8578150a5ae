package catalog

import (
	"vantage/internal/rpc"
	"vantage/internal/schedule"
	"vantage/internal/script"
)

func toScriptQueries(scripts []script.Script) []rpc.ScriptQuery {
	out := make([]rpc.ScriptQuery, len(scripts))
	for i, sc := range scripts {
		out[i] = rpc.ScriptQuery{
			Name:         sc.Name,
			Version:      sc.Version,
			Timestamp:    sc.Timestamp,
			HasTimestamp: sc.HasTimestamp,
		}
	}
	return out
}

func toWireHashes(hashes []schedule.BucketHash) []rpc.BucketHash {
	out := make([]rpc.BucketHash, len(hashes))
	for i, h := range hashes {
		out[i] = rpc.BucketHash{Bucket: h.Bucket, Hash: h.Hash}
	}
	return out
}

func toJobs(wire []rpc.JobWire) []schedule.Job {
	out := make([]schedule.Job, len(wire))
	for i, w := range wire {
		out[i] = schedule.Job{
			ScriptName:      w.ScriptName,
			Domain:          w.Domain,
			IntervalSeconds: w.Interval,
			Tags:            w.Tags,
		}
	}
	return out
}
