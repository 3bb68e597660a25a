package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
server:
  listenAddress: ":8088"
routes:
  - name: api
    match:
      path: /sb/*
      methods: [GET, POST]
    rewrite: /api/*
    upstream: backend
    timeout: 5s
upstreams:
  - name: backend
    endpoints:
      - host: localhost
        port: 8081
      - host: localhost
        port: 8082
telemetry:
  enabled: true
  indexer:
    endpoint: http://localhost:9200
`

func TestLoadConfigFromReader(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfigFromReader(strings.NewReader(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, ":8088", cfg.Server.ListenAddress)
	require.Len(t, cfg.Routes, 1)
	assert.Equal(t, "api", cfg.Routes[0].Name)
	assert.Equal(t, "/sb/*", cfg.Routes[0].Match.Path)
	assert.Equal(t, []string{"GET", "POST"}, cfg.Routes[0].Match.Methods)
	assert.Equal(t, "/api/*", cfg.Routes[0].Rewrite)
	assert.Equal(t, 5*time.Second, cfg.Routes[0].Timeout.Duration())

	require.Len(t, cfg.Upstreams, 1)
	assert.Equal(t, "localhost:8081", cfg.Upstreams[0].Endpoints[0].Address())

	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "http://localhost:9200", cfg.Telemetry.Indexer.Endpoint)
}

func TestLoadConfigFromReader_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfigFromReader(strings.NewReader(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, time.Duration(DefaultReadTimeout), cfg.Server.ReadTimeout.Duration())
	assert.Equal(t, DefaultQueueCapacity, cfg.Telemetry.QueueCapacity)
	assert.Equal(t, DefaultBatchSize, cfg.Telemetry.BatchSize)
	assert.Equal(t, "revgate-access", cfg.Telemetry.Indexer.Index)
	assert.Equal(t, "revgate", cfg.Metrics.Namespace)
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	t.Parallel()

	_, err := LoadConfig("/nonexistent/gateway.yaml")
	assert.Error(t, err)
}

func TestLoadConfig_File(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":8088", cfg.Server.ListenAddress)
}

func TestLoadConfigFromReader_InvalidYAML(t *testing.T) {
	t.Parallel()

	_, err := LoadConfigFromReader(strings.NewReader("routes: [broken"))
	assert.Error(t, err)
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("REVGATE_TEST_HOST", "example.internal")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "set variable",
			input: "host: ${REVGATE_TEST_HOST}",
			want:  "host: example.internal",
		},
		{
			name:  "unset variable with default",
			input: "host: ${REVGATE_TEST_UNSET:-fallback}",
			want:  "host: fallback",
		},
		{
			name:  "unset variable without default",
			input: "host: ${REVGATE_TEST_UNSET}",
			want:  "host: ",
		},
		{
			name:  "set variable ignores default",
			input: "host: ${REVGATE_TEST_HOST:-fallback}",
			want:  "host: example.internal",
		},
		{
			name:  "escaped dollar",
			input: "password: $$literal",
			want:  "password: $literal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, substituteEnvVars(tt.input))
		})
	}
}

func TestDuration_Unmarshal(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfigFromReader(strings.NewReader(`
server:
  readTimeout: 1m30s
routes:
  - name: r
    match:
      path: /
    upstream: u
upstreams:
  - name: u
    endpoints:
      - host: h
        port: 80
`))
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.Server.ReadTimeout.Duration())
}

func TestDuration_UnmarshalInvalid(t *testing.T) {
	t.Parallel()

	_, err := LoadConfigFromReader(strings.NewReader("server:\n  readTimeout: banana\n"))
	assert.Error(t, err)
}
