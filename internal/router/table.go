package router

import (
	"sort"
	"strings"
	"time"

	"github.com/avolkhin/revgate/internal/config"
	"github.com/avolkhin/revgate/internal/util"
)

// Route priority constants for calculating route matching order.
// Higher priority routes are matched first.
const (
	// priorityExactMatch is the base priority for exact path matches.
	// Exact routes always rank above prefix routes regardless of
	// prefix length or declaration order.
	priorityExactMatch = 1000

	// priorityPrefixMatch is the base priority for prefix path matches.
	// Longer prefixes receive additional priority based on their length.
	priorityPrefixMatch = 500
)

// Route is a pre-compiled route for efficient matching. Routes are
// built once by NewTable and immutable thereafter.
type Route struct {
	Name          string
	PathMatcher   PathMatcher
	MethodMatcher *MethodMatcher
	RewritePrefix string
	RewriteExact  string
	Upstream      string
	Timeout       time.Duration
	priority      int
	order         int
}

// IsPrefix reports whether the route matches by prefix.
func (r *Route) IsPrefix() bool {
	return r.PathMatcher.Type() == "prefix"
}

// Table is an immutable route table: an ordered route list queried per
// request. Reload builds a new Table and swaps it in atomically at the
// gateway layer; a Table itself is never mutated after construction.
type Table struct {
	routes   []*Route
	routeMap map[string]*Route
}

// NewTable compiles route configurations into an immutable Table.
// Routes are ordered most-specific-first: exact matches before prefix
// matches, longer prefixes before shorter ones, declaration order
// breaking ties.
func NewTable(routes []config.RouteConfig) (*Table, error) {
	t := &Table{
		routes:   make([]*Route, 0, len(routes)),
		routeMap: make(map[string]*Route, len(routes)),
	}

	for i, rc := range routes {
		compiled, err := compileRoute(rc, i)
		if err != nil {
			return nil, err
		}
		if _, exists := t.routeMap[compiled.Name]; exists {
			return nil, util.NewConfigError("routes",
				"duplicate route name "+compiled.Name)
		}
		t.routes = append(t.routes, compiled)
		t.routeMap[compiled.Name] = compiled
	}

	sort.SliceStable(t.routes, func(i, j int) bool {
		if t.routes[i].priority != t.routes[j].priority {
			return t.routes[i].priority > t.routes[j].priority
		}
		return t.routes[i].order < t.routes[j].order
	})

	return t, nil
}

// compileRoute compiles a route configuration into a Route.
func compileRoute(rc config.RouteConfig, order int) (*Route, error) {
	if rc.Name == "" {
		return nil, util.NewConfigError("routes", "route name is required")
	}

	compiled := &Route{
		Name:          rc.Name,
		MethodMatcher: NewMethodMatcher(rc.Match.Methods),
		Upstream:      rc.Upstream,
		Timeout:       rc.Timeout.Duration(),
		order:         order,
	}

	pattern := rc.Match.Path
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		compiled.PathMatcher = NewPrefixMatcher(prefix)
		compiled.priority = priorityPrefixMatch + len(prefix)
	} else {
		compiled.PathMatcher = NewExactMatcher(pattern)
		compiled.priority = priorityExactMatch
	}

	if err := compileRewrite(compiled, rc.Rewrite); err != nil {
		return nil, err
	}

	return compiled, nil
}

// compileRewrite resolves the rewrite template for a route. Templates
// are validated here, at table build time, so that request-time
// rewriting is infallible.
func compileRewrite(r *Route, template string) error {
	if template == "" {
		// Identity rewrite.
		if r.IsPrefix() {
			r.RewritePrefix = r.PathMatcher.Pattern()
		} else {
			r.RewriteExact = r.PathMatcher.Pattern()
		}
		return nil
	}

	if !strings.HasPrefix(template, "/") {
		return util.NewConfigError("routes."+r.Name+".rewrite",
			"rewrite must start with /")
	}

	if r.IsPrefix() {
		prefix, ok := strings.CutSuffix(template, "/*")
		if !ok {
			return util.NewConfigError("routes."+r.Name+".rewrite",
				"prefix route requires a rewrite ending in /*")
		}
		r.RewritePrefix = prefix
		return nil
	}

	if strings.Contains(template, "*") {
		return util.NewConfigError("routes."+r.Name+".rewrite",
			"exact route requires a literal rewrite path")
	}
	r.RewriteExact = template
	return nil
}

// Match finds the best route for a method and path. It iterates the
// ordered route list and returns the first route whose method set and
// path pattern both match. No match returns a RouteNotFoundError, which
// callers branch on explicitly.
func (t *Table) Match(method, path string) (*Route, error) {
	for _, route := range t.routes {
		if !route.MethodMatcher.Match(method) {
			continue
		}
		if route.PathMatcher.Match(path) {
			return route, nil
		}
	}

	return nil, util.NewRouteNotFoundError(method, path)
}

// GetRoute returns a route by name.
func (t *Table) GetRoute(name string) (*Route, bool) {
	route, exists := t.routeMap[name]
	return route, exists
}

// Routes returns the routes in matching order.
func (t *Table) Routes() []*Route {
	routes := make([]*Route, len(t.routes))
	copy(routes, t.routes)
	return routes
}

// Len returns the number of routes in the table.
func (t *Table) Len() int {
	return len(t.routes)
}
