// Package telemetry implements the asynchronous access-record
// pipeline: a bounded drop-oldest queue fed by request handlers and a
// single delivery worker that ships records to an indexing backend.
package telemetry

import "time"

// Record is one structured access record, produced per completed (or
// failed) request attempt and consumed exactly once by the emitter.
type Record struct {
	Timestamp     time.Time `json:"timestamp"`
	RequestID     string    `json:"request_id,omitempty"`
	ClientAddr    string    `json:"client_addr"`
	Method        string    `json:"method"`
	Path          string    `json:"path"`
	Query         string    `json:"query,omitempty"`
	Route         string    `json:"route,omitempty"`
	RewrittenPath string    `json:"rewritten_path,omitempty"`
	Upstream      string    `json:"upstream,omitempty"`
	Status        int       `json:"status"`
	BytesOut      int64     `json:"bytes_out"`
	LatencyMillis float64   `json:"latency_ms"`
	Retried       bool      `json:"retried,omitempty"`
	Error         string    `json:"error,omitempty"`
}
