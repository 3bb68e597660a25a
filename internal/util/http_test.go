package util

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCapturingResponseWriter_WriteHeader(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	w := NewStatusCapturingResponseWriter(rec)

	w.WriteHeader(http.StatusTeapot)
	assert.Equal(t, http.StatusTeapot, w.StatusCode)
	assert.True(t, w.HeaderWritten)

	// Subsequent calls must not overwrite the captured status.
	w.WriteHeader(http.StatusOK)
	assert.Equal(t, http.StatusTeapot, w.StatusCode)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestStatusCapturingResponseWriter_ImplicitOK(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	w := NewStatusCapturingResponseWriter(rec)

	n, err := w.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, http.StatusOK, w.StatusCode)
	assert.Equal(t, int64(5), w.BytesWritten)
	assert.True(t, w.HeaderWritten)
}

func TestStatusCapturingResponseWriter_CountsBytes(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	w := NewStatusCapturingResponseWriter(rec)

	_, err := w.Write([]byte("hello "))
	require.NoError(t, err)
	_, err = w.Write([]byte("world"))
	require.NoError(t, err)

	assert.Equal(t, int64(11), w.BytesWritten)
	assert.Equal(t, "hello world", rec.Body.String())
}

func TestWriteJSONError(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	req = req.WithContext(ContextWithRequestID(req.Context(), "req-123"))

	WriteJSONError(rec, req, http.StatusNotFound, "not found", "no matching route")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not found", body["error"])
	assert.Equal(t, "no matching route", body["message"])
	assert.Equal(t, "req-123", body["request_id"])
}

func TestContextHelpers(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := req.Context()

	assert.Empty(t, RequestIDFromContext(ctx))
	assert.Empty(t, RouteNameFromContext(ctx))
	_, ok := StartTimeFromContext(ctx)
	assert.False(t, ok)

	started := time.Now()
	ctx = ContextWithRequestID(ctx, "abc")
	ctx = ContextWithRouteName(ctx, "api")
	ctx = ContextWithStartTime(ctx, started)

	assert.Equal(t, "abc", RequestIDFromContext(ctx))
	assert.Equal(t, "api", RouteNameFromContext(ctx))
	got, ok := StartTimeFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, started, got)
}
