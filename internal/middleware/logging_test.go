package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avolkhin/revgate/internal/observability"
	"github.com/avolkhin/revgate/internal/util"
)

func TestLogging_PreservesResponse(t *testing.T) {
	t.Parallel()

	handler := Logging(observability.NopLogger())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte("created"))
		}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/items", nil))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "created", rec.Body.String())
}

func TestLogging_StampsStartTime(t *testing.T) {
	t.Parallel()

	before := time.Now()
	var got time.Time
	var ok bool
	handler := Logging(observability.NopLogger())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok = util.StartTimeFromContext(r.Context())
		}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.True(t, ok)
	assert.False(t, got.Before(before))
	assert.False(t, got.After(time.Now()))
}
