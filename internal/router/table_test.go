package router

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avolkhin/revgate/internal/config"
	"github.com/avolkhin/revgate/internal/util"
)

func TestNewTable(t *testing.T) {
	t.Parallel()

	table, err := NewTable([]config.RouteConfig{
		{Name: "api", Match: config.MatchConfig{Path: "/api/*"}, Upstream: "backend"},
		{Name: "health", Match: config.MatchConfig{Path: "/health"}, Upstream: "backend"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())

	route, ok := table.GetRoute("api")
	require.True(t, ok)
	assert.Equal(t, "backend", route.Upstream)
	assert.True(t, route.IsPrefix())
}

func TestNewTable_DuplicateName(t *testing.T) {
	t.Parallel()

	_, err := NewTable([]config.RouteConfig{
		{Name: "api", Match: config.MatchConfig{Path: "/a/*"}, Upstream: "backend"},
		{Name: "api", Match: config.MatchConfig{Path: "/b/*"}, Upstream: "backend"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, util.ErrConfigInvalid))
}

func TestNewTable_MissingName(t *testing.T) {
	t.Parallel()

	_, err := NewTable([]config.RouteConfig{
		{Match: config.MatchConfig{Path: "/a/*"}, Upstream: "backend"},
	})
	assert.Error(t, err)
}

func TestTable_Match_ExactBeatsPrefix(t *testing.T) {
	t.Parallel()

	// Declaration order puts the prefix route first; the exact route
	// must still win for its own path.
	table, err := NewTable([]config.RouteConfig{
		{Name: "catchall", Match: config.MatchConfig{Path: "/sb/*"}, Upstream: "backend"},
		{Name: "health", Match: config.MatchConfig{Path: "/sb/health"}, Upstream: "health-backend"},
	})
	require.NoError(t, err)

	route, err := table.Match("GET", "/sb/health")
	require.NoError(t, err)
	assert.Equal(t, "health", route.Name)

	route, err = table.Match("GET", "/sb/other")
	require.NoError(t, err)
	assert.Equal(t, "catchall", route.Name)
}

func TestTable_Match_LongerPrefixWins(t *testing.T) {
	t.Parallel()

	table, err := NewTable([]config.RouteConfig{
		{Name: "short", Match: config.MatchConfig{Path: "/api/*"}, Upstream: "a"},
		{Name: "long", Match: config.MatchConfig{Path: "/api/v2/*"}, Upstream: "b"},
	})
	require.NoError(t, err)

	route, err := table.Match("GET", "/api/v2/users")
	require.NoError(t, err)
	assert.Equal(t, "long", route.Name)

	route, err = table.Match("GET", "/api/v1/users")
	require.NoError(t, err)
	assert.Equal(t, "short", route.Name)
}

func TestTable_Match_DeclarationOrderBreaksTies(t *testing.T) {
	t.Parallel()

	// Same path pattern, different methods: both carry equal priority,
	// so the first declared wins when both match.
	table, err := NewTable([]config.RouteConfig{
		{Name: "first", Match: config.MatchConfig{Path: "/sb/*", Methods: []string{"*"}}, Upstream: "a"},
		{Name: "second", Match: config.MatchConfig{Path: "/sb/*"}, Upstream: "b"},
	})
	require.NoError(t, err)

	route, err := table.Match("GET", "/sb/x")
	require.NoError(t, err)
	assert.Equal(t, "first", route.Name)
}

func TestTable_Match_MethodFiltering(t *testing.T) {
	t.Parallel()

	table, err := NewTable([]config.RouteConfig{
		{Name: "reads", Match: config.MatchConfig{Path: "/sb/*", Methods: []string{"GET"}}, Upstream: "a"},
		{Name: "writes", Match: config.MatchConfig{Path: "/sb/*", Methods: []string{"POST"}}, Upstream: "b"},
	})
	require.NoError(t, err)

	route, err := table.Match("POST", "/sb/items")
	require.NoError(t, err)
	assert.Equal(t, "writes", route.Name)

	route, err = table.Match("GET", "/sb/items")
	require.NoError(t, err)
	assert.Equal(t, "reads", route.Name)

	_, err = table.Match("DELETE", "/sb/items")
	require.Error(t, err)
	assert.True(t, errors.Is(err, util.ErrNoRoute))
}

func TestTable_Match_NoRoute(t *testing.T) {
	t.Parallel()

	table, err := NewTable([]config.RouteConfig{
		{Name: "api", Match: config.MatchConfig{Path: "/api/*"}, Upstream: "backend"},
	})
	require.NoError(t, err)

	_, err = table.Match("GET", "/other")
	require.Error(t, err)

	var notFound *util.RouteNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "GET", notFound.Method)
	assert.Equal(t, "/other", notFound.Path)
}

func TestTable_Match_SegmentBoundary(t *testing.T) {
	t.Parallel()

	table, err := NewTable([]config.RouteConfig{
		{Name: "sb", Match: config.MatchConfig{Path: "/sb/*"}, Upstream: "backend"},
	})
	require.NoError(t, err)

	_, err = table.Match("GET", "/sbx/hello")
	assert.Error(t, err)

	route, err := table.Match("GET", "/sb")
	require.NoError(t, err)
	assert.Equal(t, "sb", route.Name)
}

func TestCompileRewrite(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		path       string
		rewrite    string
		wantPrefix string
		wantExact  string
		wantErr    bool
	}{
		{
			name:       "prefix route with rewrite",
			path:       "/sb/*",
			rewrite:    "/api/*",
			wantPrefix: "/api",
		},
		{
			name:       "prefix route identity",
			path:       "/sb/*",
			wantPrefix: "/sb",
		},
		{
			name:      "exact route with rewrite",
			path:      "/sb/health",
			rewrite:   "/internal/health",
			wantExact: "/internal/health",
		},
		{
			name:      "exact route identity",
			path:      "/sb/health",
			wantExact: "/sb/health",
		},
		{
			name:    "prefix route with literal rewrite",
			path:    "/sb/*",
			rewrite: "/api",
			wantErr: true,
		},
		{
			name:    "exact route with prefix rewrite",
			path:    "/sb/health",
			rewrite: "/api/*",
			wantErr: true,
		},
		{
			name:    "relative rewrite",
			path:    "/sb/*",
			rewrite: "api/*",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			table, err := NewTable([]config.RouteConfig{
				{
					Name:     "r",
					Match:    config.MatchConfig{Path: tt.path},
					Rewrite:  tt.rewrite,
					Upstream: "backend",
				},
			})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			route, ok := table.GetRoute("r")
			require.True(t, ok)
			assert.Equal(t, tt.wantPrefix, route.RewritePrefix)
			assert.Equal(t, tt.wantExact, route.RewriteExact)
		})
	}
}

func TestTable_Routes_ReturnsCopy(t *testing.T) {
	t.Parallel()

	table, err := NewTable([]config.RouteConfig{
		{Name: "api", Match: config.MatchConfig{Path: "/api/*"}, Upstream: "backend"},
	})
	require.NoError(t, err)

	routes := table.Routes()
	require.Len(t, routes, 1)
	routes[0] = nil

	assert.NotNil(t, table.Routes()[0])
}
