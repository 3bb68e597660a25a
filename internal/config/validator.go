package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/avolkhin/revgate/internal/util"
)

// knownMethods is the set of HTTP methods accepted in a match predicate.
var knownMethods = map[string]bool{
	"GET": true, "HEAD": true, "POST": true, "PUT": true,
	"PATCH": true, "DELETE": true, "OPTIONS": true, "TRACE": true,
	"*": true,
}

// ValidateConfig checks a loaded configuration for structural errors.
// It is called once after loading; a configuration that passes here
// never produces rewrite or routing errors at request time.
func ValidateConfig(c *GatewayConfig) error {
	if c == nil {
		return util.NewConfigError("", "configuration is nil")
	}

	if len(c.Routes) == 0 {
		return util.NewConfigError("routes", "at least one route is required")
	}

	pools := make(map[string]bool, len(c.Upstreams))
	for i, u := range c.Upstreams {
		field := fmt.Sprintf("upstreams[%d]", i)
		if u.Name == "" {
			return util.NewConfigError(field+".name", "upstream name is required")
		}
		if pools[u.Name] {
			return util.NewConfigError(field+".name",
				fmt.Sprintf("duplicate upstream name %q", u.Name))
		}
		pools[u.Name] = true

		if len(u.Endpoints) == 0 {
			return util.NewConfigError(field+".endpoints",
				"at least one endpoint is required")
		}
		for j, e := range u.Endpoints {
			epField := fmt.Sprintf("%s.endpoints[%d]", field, j)
			if e.Host == "" {
				return util.NewConfigError(epField+".host", "host is required")
			}
			if e.Port < 1 || e.Port > 65535 {
				return util.NewConfigError(epField+".port",
					fmt.Sprintf("port %d out of range", e.Port))
			}
		}
	}

	names := make(map[string]bool, len(c.Routes))
	for i, r := range c.Routes {
		field := fmt.Sprintf("routes[%d]", i)
		if r.Name == "" {
			return util.NewConfigError(field+".name", "route name is required")
		}
		if names[r.Name] {
			return util.NewConfigError(field+".name",
				fmt.Sprintf("duplicate route name %q", r.Name))
		}
		names[r.Name] = true

		if err := validateMatch(field, r.Match); err != nil {
			return err
		}
		if err := validateRewrite(field, r.Match.Path, r.Rewrite); err != nil {
			return err
		}

		if r.Upstream == "" {
			return util.NewConfigError(field+".upstream", "upstream reference is required")
		}
		if !pools[r.Upstream] {
			return util.NewConfigError(field+".upstream",
				fmt.Sprintf("unknown upstream %q", r.Upstream))
		}
	}

	if c.Telemetry.Enabled {
		if err := validateTelemetry(&c.Telemetry); err != nil {
			return err
		}
	}

	return nil
}

// validateMatch validates a route's match predicate.
func validateMatch(field string, m MatchConfig) error {
	if m.Path == "" {
		return util.NewConfigError(field+".match.path", "path is required")
	}
	if !strings.HasPrefix(m.Path, "/") {
		return util.NewConfigError(field+".match.path", "path must start with /")
	}
	// A "*" is only valid as the trailing "/*" of a prefix pattern.
	if idx := strings.Index(m.Path, "*"); idx >= 0 {
		if !strings.HasSuffix(m.Path, "/*") || idx != len(m.Path)-1 {
			return util.NewConfigError(field+".match.path",
				fmt.Sprintf("invalid pattern %q: wildcard only allowed as trailing /*", m.Path))
		}
	}

	for _, method := range m.Methods {
		if !knownMethods[strings.ToUpper(method)] {
			return util.NewConfigError(field+".match.methods",
				fmt.Sprintf("unknown HTTP method %q", method))
		}
	}

	return nil
}

// validateRewrite validates a rewrite template against the match
// pattern it will be applied to. Prefix patterns require a prefix
// template (trailing /*); exact patterns require a literal path. An
// empty template means no rewrite.
func validateRewrite(field, pattern, template string) error {
	if template == "" {
		return nil
	}
	if !strings.HasPrefix(template, "/") {
		return util.NewConfigError(field+".rewrite", "rewrite must start with /")
	}

	patternIsPrefix := strings.HasSuffix(pattern, "/*")
	templateIsPrefix := strings.HasSuffix(template, "/*")

	if patternIsPrefix != templateIsPrefix {
		if patternIsPrefix {
			return util.NewConfigError(field+".rewrite",
				fmt.Sprintf("prefix pattern %q requires a prefix rewrite ending in /*", pattern))
		}
		return util.NewConfigError(field+".rewrite",
			fmt.Sprintf("exact pattern %q requires a literal rewrite path", pattern))
	}

	if idx := strings.Index(template, "*"); idx >= 0 && idx != len(template)-1 {
		return util.NewConfigError(field+".rewrite",
			fmt.Sprintf("invalid rewrite %q: wildcard only allowed as trailing /*", template))
	}

	return nil
}

// validateTelemetry validates the telemetry pipeline settings.
func validateTelemetry(t *TelemetryConfig) error {
	if t.Indexer.Endpoint == "" {
		return util.NewConfigError("telemetry.indexer.endpoint",
			"endpoint is required when telemetry is enabled")
	}
	u, err := url.Parse(t.Indexer.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return util.NewConfigError("telemetry.indexer.endpoint",
			fmt.Sprintf("invalid endpoint URL %q", t.Indexer.Endpoint))
	}
	if t.QueueCapacity < 1 {
		return util.NewConfigError("telemetry.queueCapacity", "must be at least 1")
	}
	if t.BatchSize < 1 {
		return util.NewConfigError("telemetry.batchSize", "must be at least 1")
	}
	if t.BatchSize > t.QueueCapacity {
		return util.NewConfigError("telemetry.batchSize",
			"must not exceed queueCapacity")
	}
	if t.MaxRetries < 0 {
		return util.NewConfigError("telemetry.maxRetries", "must not be negative")
	}
	return nil
}
