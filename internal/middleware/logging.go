package middleware

import (
	"net/http"
	"time"

	"github.com/avolkhin/revgate/internal/observability"
	"github.com/avolkhin/revgate/internal/util"
)

// Logging returns a middleware that logs each completed request. The
// request start time is stamped into the context so downstream
// handlers can measure latency from chain entry rather than from
// their own invocation.
func Logging(logger observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			r = r.WithContext(util.ContextWithStartTime(r.Context(), start))

			rw := util.NewStatusCapturingResponseWriter(w)

			next.ServeHTTP(rw, r)

			logger.WithContext(r.Context()).Info("request completed",
				observability.String("method", r.Method),
				observability.String("path", r.URL.Path),
				observability.String("remote_addr", r.RemoteAddr),
				observability.Int("status", rw.StatusCode),
				observability.Int64("bytes", rw.BytesWritten),
				observability.Duration("duration", time.Since(start)),
			)
		})
	}
}
