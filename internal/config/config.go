// Package config defines the gateway configuration model and its
// loading, validation, and file-watching machinery.
package config

import (
	"fmt"
	"time"
)

// GatewayConfig is the root configuration for the gateway process.
type GatewayConfig struct {
	Server         ServerConfig          `json:"server" yaml:"server"`
	Log            LogConfig             `json:"log" yaml:"log"`
	Metrics        MetricsConfig         `json:"metrics" yaml:"metrics"`
	Tracing        TracingConfig         `json:"tracing" yaml:"tracing"`
	Routes         []RouteConfig         `json:"routes" yaml:"routes"`
	Upstreams      []UpstreamConfig      `json:"upstreams" yaml:"upstreams"`
	Telemetry      TelemetryConfig       `json:"telemetry" yaml:"telemetry"`
	RateLimit      *RateLimitConfig      `json:"rateLimit,omitempty" yaml:"rateLimit,omitempty"`
	CircuitBreaker *CircuitBreakerConfig `json:"circuitBreaker,omitempty" yaml:"circuitBreaker,omitempty"`
}

// ServerConfig holds listener and HTTP server settings.
type ServerConfig struct {
	ListenAddress   string   `json:"listenAddress" yaml:"listenAddress"`
	ReadTimeout     Duration `json:"readTimeout" yaml:"readTimeout"`
	WriteTimeout    Duration `json:"writeTimeout" yaml:"writeTimeout"`
	IdleTimeout     Duration `json:"idleTimeout" yaml:"idleTimeout"`
	ShutdownTimeout Duration `json:"shutdownTimeout" yaml:"shutdownTimeout"`
	MaxHeaderBytes  int      `json:"maxHeaderBytes" yaml:"maxHeaderBytes"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
	Output string `json:"output" yaml:"output"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled       bool   `json:"enabled" yaml:"enabled"`
	ListenAddress string `json:"listenAddress" yaml:"listenAddress"`
	Namespace     string `json:"namespace" yaml:"namespace"`
}

// TracingConfig holds OpenTelemetry tracing settings.
type TracingConfig struct {
	Enabled      bool    `json:"enabled" yaml:"enabled"`
	OTLPEndpoint string  `json:"otlpEndpoint" yaml:"otlpEndpoint"`
	ServiceName  string  `json:"serviceName" yaml:"serviceName"`
	SamplingRate float64 `json:"samplingRate" yaml:"samplingRate"`
}

// RouteConfig declares one route: a match predicate, an optional
// rewrite, and a reference to an upstream pool.
type RouteConfig struct {
	Name     string      `json:"name" yaml:"name"`
	Match    MatchConfig `json:"match" yaml:"match"`
	Rewrite  string      `json:"rewrite,omitempty" yaml:"rewrite,omitempty"`
	Upstream string      `json:"upstream" yaml:"upstream"`
	Timeout  Duration    `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// MatchConfig is a route's match predicate. Path is either an exact
// path ("/status") or a prefix pattern ending in "/*" ("/sb/*"). An
// empty method list matches every method.
type MatchConfig struct {
	Path    string   `json:"path" yaml:"path"`
	Methods []string `json:"methods,omitempty" yaml:"methods,omitempty"`
}

// UpstreamConfig declares a named pool of backend endpoints.
type UpstreamConfig struct {
	Name             string           `json:"name" yaml:"name"`
	Endpoints        []EndpointConfig `json:"endpoints" yaml:"endpoints"`
	RecoveryInterval Duration         `json:"recoveryInterval,omitempty" yaml:"recoveryInterval,omitempty"`
}

// EndpointConfig declares a single backend address within a pool.
type EndpointConfig struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
}

// Address returns the host:port form of the endpoint.
func (e EndpointConfig) Address() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

// TelemetryConfig holds the access-record pipeline settings.
type TelemetryConfig struct {
	Enabled        bool          `json:"enabled" yaml:"enabled"`
	QueueCapacity  int           `json:"queueCapacity" yaml:"queueCapacity"`
	BatchSize      int           `json:"batchSize" yaml:"batchSize"`
	FlushInterval  Duration      `json:"flushInterval" yaml:"flushInterval"`
	MaxRetries     int           `json:"maxRetries" yaml:"maxRetries"`
	InitialBackoff Duration      `json:"initialBackoff" yaml:"initialBackoff"`
	MaxBackoff     Duration      `json:"maxBackoff" yaml:"maxBackoff"`
	Indexer        IndexerConfig `json:"indexer" yaml:"indexer"`
}

// IndexerConfig holds the indexing backend connection settings.
type IndexerConfig struct {
	Endpoint string   `json:"endpoint" yaml:"endpoint"`
	Index    string   `json:"index" yaml:"index"`
	Username string   `json:"username,omitempty" yaml:"username,omitempty"`
	Password string   `json:"password,omitempty" yaml:"password,omitempty"`
	Timeout  Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// RateLimitConfig holds global request rate limiting settings.
type RateLimitConfig struct {
	Enabled           bool `json:"enabled" yaml:"enabled"`
	RequestsPerSecond int  `json:"requestsPerSecond" yaml:"requestsPerSecond"`
	Burst             int  `json:"burst" yaml:"burst"`
}

// CircuitBreakerConfig holds circuit breaker settings for forwarding.
type CircuitBreakerConfig struct {
	Enabled     bool     `json:"enabled" yaml:"enabled"`
	MaxRequests uint32   `json:"maxRequests" yaml:"maxRequests"`
	Interval    Duration `json:"interval" yaml:"interval"`
	Timeout     Duration `json:"timeout" yaml:"timeout"`
}

// Default values applied by DefaultConfig and ApplyDefaults.
const (
	DefaultListenAddress   = ":8080"
	DefaultMetricsAddress  = ":9090"
	DefaultShutdownTimeout = 30 * time.Second
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second

	DefaultQueueCapacity  = 1024
	DefaultBatchSize      = 64
	DefaultFlushInterval  = 1 * time.Second
	DefaultMaxRetries     = 3
	DefaultInitialBackoff = 100 * time.Millisecond
	DefaultMaxBackoff     = 5 * time.Second
	DefaultIndexerTimeout = 10 * time.Second
)

// DefaultConfig returns a configuration populated with defaults and no
// routes or upstreams.
func DefaultConfig() *GatewayConfig {
	cfg := &GatewayConfig{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero-valued fields with their defaults. It is
// called after loading, before validation.
func (c *GatewayConfig) ApplyDefaults() {
	if c.Server.ListenAddress == "" {
		c.Server.ListenAddress = DefaultListenAddress
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = Duration(DefaultReadTimeout)
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = Duration(DefaultWriteTimeout)
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = Duration(DefaultIdleTimeout)
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = Duration(DefaultShutdownTimeout)
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}

	if c.Metrics.ListenAddress == "" {
		c.Metrics.ListenAddress = DefaultMetricsAddress
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "revgate"
	}

	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "revgate"
	}
	if c.Tracing.SamplingRate == 0 {
		c.Tracing.SamplingRate = 1.0
	}

	if c.Telemetry.QueueCapacity == 0 {
		c.Telemetry.QueueCapacity = DefaultQueueCapacity
	}
	if c.Telemetry.BatchSize == 0 {
		c.Telemetry.BatchSize = DefaultBatchSize
	}
	if c.Telemetry.FlushInterval == 0 {
		c.Telemetry.FlushInterval = Duration(DefaultFlushInterval)
	}
	if c.Telemetry.MaxRetries == 0 {
		c.Telemetry.MaxRetries = DefaultMaxRetries
	}
	if c.Telemetry.InitialBackoff == 0 {
		c.Telemetry.InitialBackoff = Duration(DefaultInitialBackoff)
	}
	if c.Telemetry.MaxBackoff == 0 {
		c.Telemetry.MaxBackoff = Duration(DefaultMaxBackoff)
	}
	if c.Telemetry.Indexer.Timeout == 0 {
		c.Telemetry.Indexer.Timeout = Duration(DefaultIndexerTimeout)
	}
	if c.Telemetry.Indexer.Index == "" {
		c.Telemetry.Indexer.Index = "revgate-access"
	}
}
