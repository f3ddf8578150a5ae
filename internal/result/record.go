// Package result defines the agent's Result record and the pipeline that
// carries records from workers to a batching sender (spec.md §3 "Result
// record", §4.4).
package result

import "encoding/json"

// Record is produced per job execution (spec.md §3). Exactly one of
// (Error=false, Output) or (Error=true, ErrorMessage) is populated.
type Record struct {
	Timestamp  int64
	Hostname   string
	IPAddress  string
	ScriptName string
	Domain     string

	Error        bool
	Output       json.RawMessage // parsed from script stdout, embedded as-is
	ErrorMessage string
}

// wireRecord is Record's JSON wire shape (spec.md §6 "Result payload
// format"): PascalCase field names, and Output/ErrorMessage are mutually
// exclusive depending on Error.
type wireRecord struct {
	Timestamp    int64           `json:"Timestamp"`
	Hostname     string          `json:"Hostname"`
	IPAddress    string          `json:"IpAddress"`
	Script       string          `json:"Script"`
	Domain       string          `json:"Domain"`
	Error        bool            `json:"Error"`
	Result       json.RawMessage `json:"Result,omitempty"`
	ErrorMessage string          `json:"ErrorMessage,omitempty"`
}

// MarshalJSON renders r in spec.md §6's exact wire shape.
func (r Record) MarshalJSON() ([]byte, error) {
	w := wireRecord{
		Timestamp: r.Timestamp,
		Hostname:  r.Hostname,
		IPAddress: r.IPAddress,
		Script:    r.ScriptName,
		Domain:    r.Domain,
		Error:     r.Error,
	}
	if r.Error {
		w.ErrorMessage = r.ErrorMessage
	} else {
		w.Result = r.Output
	}
	return json.Marshal(w)
}
