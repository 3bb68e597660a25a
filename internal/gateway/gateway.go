// Package gateway wires the route table, upstream pools, forwarder,
// and telemetry emitter into the per-request pipeline.
package gateway

import (
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/avolkhin/revgate/internal/config"
	"github.com/avolkhin/revgate/internal/observability"
	"github.com/avolkhin/revgate/internal/proxy"
	"github.com/avolkhin/revgate/internal/rewrite"
	"github.com/avolkhin/revgate/internal/router"
	"github.com/avolkhin/revgate/internal/telemetry"
	"github.com/avolkhin/revgate/internal/upstream"
	"github.com/avolkhin/revgate/internal/util"
)

// snapshot bundles the route table and upstream registry built from
// one configuration. Requests resolve both through a single atomic
// load, so a reload can never expose a table from one config with
// pools from another.
type snapshot struct {
	table     *router.Table
	upstreams *upstream.Registry
}

// Gateway is the request pipeline: Match, Rewrite, Select, Forward,
// Emit. It implements http.Handler.
type Gateway struct {
	snap      atomic.Pointer[snapshot]
	forwarder *proxy.Forwarder
	emitter   *telemetry.Emitter
	logger    observability.Logger
}

// Option is a functional option for configuring the gateway.
type Option func(*Gateway)

// WithLogger sets the logger for the gateway.
func WithLogger(logger observability.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithEmitter sets the telemetry emitter. Without one, access records
// are not produced.
func WithEmitter(e *telemetry.Emitter) Option {
	return func(g *Gateway) {
		g.emitter = e
	}
}

// New creates a gateway serving the given configuration.
func New(cfg *config.GatewayConfig, forwarder *proxy.Forwarder, opts ...Option) (*Gateway, error) {
	g := &Gateway{
		forwarder: forwarder,
		logger:    observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(g)
	}

	snap, err := buildSnapshot(cfg)
	if err != nil {
		return nil, err
	}
	g.snap.Store(snap)

	return g, nil
}

// buildSnapshot compiles a configuration into a routing snapshot.
func buildSnapshot(cfg *config.GatewayConfig) (*snapshot, error) {
	table, err := router.NewTable(cfg.Routes)
	if err != nil {
		return nil, err
	}

	registry, err := upstream.NewRegistry(cfg.Upstreams)
	if err != nil {
		return nil, err
	}

	return &snapshot{table: table, upstreams: registry}, nil
}

// Reload builds a new snapshot from the configuration and swaps it in
// atomically. In-flight requests finish against the snapshot they
// started with; only new requests observe the new one. A failed build
// leaves the current snapshot serving.
func (g *Gateway) Reload(cfg *config.GatewayConfig) error {
	snap, err := buildSnapshot(cfg)
	if err != nil {
		return err
	}

	g.snap.Store(snap)
	g.logger.Info("route table swapped",
		observability.Int("routes", snap.table.Len()),
	)

	return nil
}

// Table returns the current route table.
func (g *Gateway) Table() *router.Table {
	return g.snap.Load().table
}

// Upstreams returns the current upstream registry.
func (g *Gateway) Upstreams() *upstream.Registry {
	return g.snap.Load().upstreams
}

// ServeHTTP runs one request through the pipeline. Telemetry emission
// happens after the client-visible response is finalized and never
// gates it.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Prefer the chain entry time stamped by the logging middleware so
	// access-record latency covers the whole middleware stack.
	start := time.Now()
	if t, ok := util.StartTimeFromContext(r.Context()); ok {
		start = t
	}
	snap := g.snap.Load()

	sw := util.NewStatusCapturingResponseWriter(w)

	route, err := snap.table.Match(r.Method, r.URL.Path)
	if err != nil {
		// No route: respond 404 without consuming an upstream
		// selection, and still record the attempt.
		util.WriteJSONError(sw, r, http.StatusNotFound, "not found", "no matching route")
		g.emit(r, start, "", "", proxy.Result{
			Status:   sw.StatusCode,
			BytesOut: sw.BytesWritten,
		})
		return
	}

	ctx := util.ContextWithRouteName(r.Context(), route.Name)
	r = r.WithContext(ctx)

	rewritten := rewrite.Apply(route, r.URL.Path)

	pool, ok := snap.upstreams.Get(route.Upstream)
	if !ok {
		// Unreachable with a validated config.
		util.WriteJSONError(sw, r, http.StatusBadGateway, "bad gateway", "upstream pool missing")
		g.emit(r, start, route.Name, rewritten, proxy.Result{
			Status:   sw.StatusCode,
			BytesOut: sw.BytesWritten,
		})
		return
	}

	res := g.forwarder.Forward(sw, r, rewritten, pool, route.Name, route.Timeout)

	if res.Err != nil && !res.HeaderWritten {
		g.writeForwardError(sw, r, res.Err)
		res.Status = sw.StatusCode
	}

	if res.Err != nil {
		g.logger.WithContext(r.Context()).Warn("forwarding failed",
			observability.String("upstream", res.Endpoint),
			observability.Bool("retried", res.Retried),
			observability.Error(res.Err),
		)
	}

	g.emit(r, start, route.Name, rewritten, res)
}

// writeForwardError maps a forwarding failure to a gateway error
// response. Only called when no response bytes have been sent.
func (g *Gateway) writeForwardError(sw *util.StatusCapturingResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, util.ErrUpstreamUnavailable):
		util.WriteJSONError(sw, r, http.StatusServiceUnavailable,
			"service unavailable", "no upstream available")
	default:
		util.WriteJSONError(sw, r, http.StatusBadGateway,
			"bad gateway", "upstream request failed")
	}
}

// emit assembles and enqueues the access record for one request.
func (g *Gateway) emit(r *http.Request, start time.Time, routeName, rewritten string, res proxy.Result) {
	if g.emitter == nil {
		return
	}

	rec := &telemetry.Record{
		Timestamp:     start,
		RequestID:     util.RequestIDFromContext(r.Context()),
		ClientAddr:    r.RemoteAddr,
		Method:        r.Method,
		Path:          r.URL.Path,
		Query:         r.URL.RawQuery,
		Route:         routeName,
		RewrittenPath: rewritten,
		Upstream:      res.Endpoint,
		Status:        res.Status,
		BytesOut:      res.BytesOut,
		LatencyMillis: float64(time.Since(start).Microseconds()) / 1000.0,
		Retried:       res.Retried,
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}

	g.emitter.Emit(rec)
}
