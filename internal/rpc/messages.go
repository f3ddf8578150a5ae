// Package rpc implements the vantage agent's RPC session to the
// coordinator (spec.md §4.6, §6 "Wire protocol"): TCP session bringup and
// a length-delimited, msgpack-encoded request/response framing — the
// concrete choice behind spec.md's "any length-delimited schema-based
// encoding suffices" (see SPEC_FULL.md §4.6).
package rpc

// ScriptQuery is one entry of the get_scripts request: the agent's
// currently-known {name, version, timestamp} for a script (spec.md §6).
type ScriptQuery struct {
	Name         string `msgpack:"name"`
	Version      uint16 `msgpack:"version"`
	Timestamp    uint64 `msgpack:"timestamp"`
	HasTimestamp bool   `msgpack:"has_timestamp"`
}

// ScriptDelta is one entry of the get_scripts response. Version 0 means
// "delete" (spec.md §3, §4.5 step 1).
type ScriptDelta struct {
	Name         string   `msgpack:"name"`
	Version      uint16   `msgpack:"version"`
	Timestamp    uint64   `msgpack:"timestamp"`
	HasTimestamp bool     `msgpack:"has_timestamp"`
	Content      []byte   `msgpack:"content"`
	Dependencies []string `msgpack:"dependencies"`
}

// GetScriptsRequest/Response frame the get_scripts RPC (spec.md §6 method 1).
type GetScriptsRequest struct {
	Scripts []ScriptQuery `msgpack:"scripts"`
}

type GetScriptsResponse struct {
	Scripts []ScriptDelta `msgpack:"scripts"`
}

// BucketHash is one entry of the get_jobs request: a bucket index and the
// agent's current content hash for it (spec.md §6).
type BucketHash struct {
	Bucket uint64 `msgpack:"bucket"`
	Hash   uint64 `msgpack:"hash"`
}

// JobWire is one Job as carried over the wire (spec.md §6).
type JobWire struct {
	ScriptName string   `msgpack:"script_name"`
	Domain     string   `msgpack:"domain"`
	Interval   int64    `msgpack:"interval"`
	Tags       []string `msgpack:"tags"`
}

// JobBucket is one entry of the get_jobs response: the full replacement
// list of Jobs for a bucket whose hash differs from the coordinator's
// (spec.md §4.5 step 2, §6 method 2).
type JobBucket struct {
	Bucket uint64    `msgpack:"bucket"`
	Jobs   []JobWire `msgpack:"jobs"`
}

// GetJobsRequest/Response frame the get_jobs RPC (spec.md §6 method 2).
type GetJobsRequest struct {
	BucketHashes []BucketHash `msgpack:"bucket_hashes"`
}

type GetJobsResponse struct {
	Buckets []JobBucket `msgpack:"buckets"`
}

// SendResultsRequest frames the send_results RPC (spec.md §6 method 3):
// each result is a pre-rendered JSON document string.
type SendResultsRequest struct {
	Results []string `msgpack:"results"`
}

// Ack is the send_results response.
type Ack struct {
	OK bool `msgpack:"ok"`
}

// HelloRequest/HelloResponse are the session-bringup handshake
// (SPEC_FULL.md §4.6) standing in for capnp's bootstrap-capability
// exchange in the original source.
type HelloRequest struct {
	ProtocolVersion uint32 `msgpack:"protocol_version"`
}

type HelloResponse struct {
	OK bool `msgpack:"ok"`
}

// ProtocolVersion is the only version this agent speaks.
const ProtocolVersion = 1

// method tags identify what a frame carries: the hello handshake or one of
// the three server methods.
type method uint8

const (
	methodHello       method = 0
	methodGetScripts  method = 1
	methodGetJobs     method = 2
	methodSendResults method = 3
)
