// Package upstream provides backend endpoint pools with round-robin
// selection and per-endpoint availability state.
package upstream

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Status represents the availability of an endpoint.
type Status int32

const (
	// StatusAvailable indicates the endpoint is eligible for selection.
	StatusAvailable Status = iota
	// StatusUnavailable indicates the endpoint failed a connection
	// attempt and is excluded from selection.
	StatusUnavailable
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusAvailable:
		return "available"
	case StatusUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Endpoint represents a single backend address within a pool.
// Availability is flipped by the forwarder on connection failure, not
// by active health checking; it is advisory state, stored atomically
// so concurrent requests observe it without locking.
type Endpoint struct {
	Host string
	Port int

	status    atomic.Int32
	downSince atomic.Int64
	requests  atomic.Int64
}

// NewEndpoint creates a new available endpoint.
func NewEndpoint(host string, port int) *Endpoint {
	e := &Endpoint{
		Host: host,
		Port: port,
	}
	e.status.Store(int32(StatusAvailable))
	return e
}

// Address returns the host:port form of the endpoint.
func (e *Endpoint) Address() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

// URL returns the endpoint base URL (HTTP).
func (e *Endpoint) URL() string {
	return fmt.Sprintf("http://%s:%d", e.Host, e.Port)
}

// Status returns the endpoint status.
func (e *Endpoint) Status() Status {
	return Status(e.status.Load())
}

// Available reports whether the endpoint is eligible for selection.
func (e *Endpoint) Available() bool {
	return e.Status() == StatusAvailable
}

// MarkUnavailable excludes the endpoint from selection and records
// when it went down.
func (e *Endpoint) MarkUnavailable() {
	e.downSince.Store(time.Now().UnixNano())
	e.status.Store(int32(StatusUnavailable))
}

// MarkAvailable makes the endpoint eligible for selection again.
func (e *Endpoint) MarkAvailable() {
	e.status.Store(int32(StatusAvailable))
}

// DownSince returns when the endpoint was last marked unavailable.
func (e *Endpoint) DownSince() time.Time {
	return time.Unix(0, e.downSince.Load())
}

// IncrementRequests increments the in-flight request count.
func (e *Endpoint) IncrementRequests() {
	e.requests.Add(1)
}

// DecrementRequests decrements the in-flight request count.
func (e *Endpoint) DecrementRequests() {
	e.requests.Add(-1)
}

// Requests returns the in-flight request count.
func (e *Endpoint) Requests() int64 {
	return e.requests.Load()
}
