package upstream

import (
	"sync/atomic"
	"time"

	"github.com/avolkhin/revgate/internal/util"
)

// Pool is a named, ordered set of endpoints with a round-robin
// selection cursor. The endpoint list is fixed at construction; only
// per-endpoint availability and the cursor mutate afterwards, both via
// atomics, so selection never takes a lock on the request path.
type Pool struct {
	name             string
	endpoints        []*Endpoint
	cursor           atomic.Uint64
	recoveryInterval time.Duration
}

// PoolOption is a functional option for configuring a pool.
type PoolOption func(*Pool)

// WithRecoveryInterval re-admits endpoints that have been unavailable
// for at least the given duration, giving them another chance without
// active health checking. Zero disables recovery; endpoints then stay
// down until marked available externally.
func WithRecoveryInterval(d time.Duration) PoolOption {
	return func(p *Pool) {
		p.recoveryInterval = d
	}
}

// NewPool creates a pool over the given endpoints.
func NewPool(name string, endpoints []*Endpoint, opts ...PoolOption) *Pool {
	p := &Pool{
		name:      name,
		endpoints: endpoints,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Name returns the pool name.
func (p *Pool) Name() string {
	return p.name
}

// Endpoints returns the pool's endpoints in declaration order.
func (p *Pool) Endpoints() []*Endpoint {
	endpoints := make([]*Endpoint, len(p.endpoints))
	copy(endpoints, p.endpoints)
	return endpoints
}

// Select returns the next available endpoint in round-robin order.
// The cursor advances exactly once per call; unavailable endpoints are
// filtered out before the cursor is applied, so K consecutive calls
// over K available endpoints visit each exactly once and an endpoint
// marked unavailable is never returned. A pool with no available
// endpoint returns an UpstreamUnavailableError immediately.
func (p *Pool) Select() (*Endpoint, error) {
	available := p.availableEndpoints()
	if len(available) == 0 {
		return nil, util.NewUpstreamUnavailableError(p.name)
	}

	idx := p.cursor.Add(1) - 1
	return available[idx%uint64(len(available))], nil
}

// availableEndpoints returns the endpoints currently eligible for
// selection, re-admitting recovered ones when a recovery interval is
// configured.
func (p *Pool) availableEndpoints() []*Endpoint {
	available := make([]*Endpoint, 0, len(p.endpoints))
	for _, e := range p.endpoints {
		if !e.Available() && p.recoveryInterval > 0 &&
			time.Since(e.DownSince()) >= p.recoveryInterval {
			e.MarkAvailable()
		}
		if e.Available() {
			available = append(available, e)
		}
	}
	return available
}

// AvailableCount returns the number of currently available endpoints.
func (p *Pool) AvailableCount() int {
	return len(p.availableEndpoints())
}
