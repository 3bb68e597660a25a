package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecker_Health(t *testing.T) {
	t.Parallel()

	c := NewChecker("1.2.3")
	resp := c.Health()

	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.NotEmpty(t, resp.Uptime)
}

func TestChecker_Readiness_NoChecks(t *testing.T) {
	t.Parallel()

	c := NewChecker("dev")
	resp := c.Readiness()

	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Empty(t, resp.Checks)
}

func TestChecker_Readiness_AggregatesChecks(t *testing.T) {
	t.Parallel()

	c := NewChecker("dev")
	c.RegisterCheck("ok", func() Check {
		return Check{Status: StatusHealthy}
	})
	c.RegisterCheck("partial", func() Check {
		return Check{Status: StatusDegraded, Message: "no available endpoints"}
	})

	resp := c.Readiness()
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Equal(t, "no available endpoints", resp.Checks["partial"].Message)

	c.RegisterCheck("down", func() Check {
		return Check{Status: StatusUnhealthy}
	})
	assert.Equal(t, StatusUnhealthy, c.Readiness().Status)
}

func TestChecker_UnregisterCheck(t *testing.T) {
	t.Parallel()

	c := NewChecker("dev")
	c.RegisterCheck("down", func() Check {
		return Check{Status: StatusUnhealthy}
	})
	require.Equal(t, StatusUnhealthy, c.Readiness().Status)

	c.UnregisterCheck("down")
	assert.Equal(t, StatusHealthy, c.Readiness().Status)
}

func TestChecker_Draining(t *testing.T) {
	t.Parallel()

	c := NewChecker("dev")
	c.RegisterCheck("ok", func() Check {
		return Check{Status: StatusHealthy}
	})

	c.SetDraining(true)
	resp := c.Readiness()
	assert.Equal(t, StatusDraining, resp.Status)
	// Checks are skipped while draining.
	assert.Empty(t, resp.Checks)

	c.SetDraining(false)
	assert.Equal(t, StatusHealthy, c.Readiness().Status)
}

func TestHealthHandler(t *testing.T) {
	t.Parallel()

	c := NewChecker("dev")
	rec := httptest.NewRecorder()
	c.HealthHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, StatusHealthy, resp.Status)
}

func TestReadinessHandler(t *testing.T) {
	t.Parallel()

	c := NewChecker("dev")

	rec := httptest.NewRecorder()
	c.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	c.SetDraining(true)
	rec = httptest.NewRecorder()
	c.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, StatusDraining, resp.Status)
}

func TestReadinessHandler_Unhealthy(t *testing.T) {
	t.Parallel()

	c := NewChecker("dev")
	c.RegisterCheck("down", func() Check {
		return Check{Status: StatusUnhealthy, Message: "backend gone"}
	})

	rec := httptest.NewRecorder()
	c.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReadinessHandler_DegradedIsStillReady(t *testing.T) {
	t.Parallel()

	c := NewChecker("dev")
	c.RegisterCheck("partial", func() Check {
		return Check{Status: StatusDegraded}
	})

	rec := httptest.NewRecorder()
	c.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
