// Package rewrite transforms matched request paths for forwarding.
package rewrite

import (
	"github.com/avolkhin/revgate/internal/router"
)

// Apply rewrites a request path according to the matched route's
// rewrite rule. For prefix routes the matched prefix is replaced with
// the route's replacement prefix and the remaining suffix is preserved
// verbatim; for exact routes the replacement path is substituted
// wholesale. The query string lives outside the path and is never
// touched.
//
// Templates are validated when the route table is built, so Apply
// cannot fail at request time.
func Apply(route *router.Route, path string) string {
	if !route.IsPrefix() {
		return route.RewriteExact
	}

	suffix := path[len(route.PathMatcher.Pattern()):]
	rewritten := route.RewritePrefix + suffix
	if rewritten == "" {
		return "/"
	}
	return rewritten
}
