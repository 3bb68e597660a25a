package upstream

import (
	"fmt"

	"github.com/avolkhin/revgate/internal/config"
	"github.com/avolkhin/revgate/internal/util"
)

// Registry holds the upstream pools of one configuration snapshot.
// Like the route table, a Registry is built once per (re)load and
// never mutated; only the endpoint state inside its pools changes.
type Registry struct {
	pools map[string]*Pool
}

// NewRegistry builds pools from upstream configurations.
func NewRegistry(upstreams []config.UpstreamConfig) (*Registry, error) {
	r := &Registry{
		pools: make(map[string]*Pool, len(upstreams)),
	}

	for _, uc := range upstreams {
		if _, exists := r.pools[uc.Name]; exists {
			return nil, util.NewConfigError("upstreams",
				fmt.Sprintf("duplicate upstream name %q", uc.Name))
		}

		endpoints := make([]*Endpoint, 0, len(uc.Endpoints))
		for _, ec := range uc.Endpoints {
			endpoints = append(endpoints, NewEndpoint(ec.Host, ec.Port))
		}

		var opts []PoolOption
		if uc.RecoveryInterval > 0 {
			opts = append(opts, WithRecoveryInterval(uc.RecoveryInterval.Duration()))
		}

		r.pools[uc.Name] = NewPool(uc.Name, endpoints, opts...)
	}

	return r, nil
}

// Get returns the pool with the given name.
func (r *Registry) Get(name string) (*Pool, bool) {
	pool, ok := r.pools[name]
	return pool, ok
}

// Pools returns all pools keyed by name.
func (r *Registry) Pools() map[string]*Pool {
	pools := make(map[string]*Pool, len(r.pools))
	for name, pool := range r.pools {
		pools[name] = pool
	}
	return pools
}
