package util

import (
	"encoding/json"
	"net/http"
)

// StatusCapturingResponseWriter wraps http.ResponseWriter and records the
// status code and number of body bytes written. It is used by the access
// telemetry and logging layers, and by the forwarder to decide whether a
// failed exchange can still be retried (nothing written yet) or must be
// aborted (headers already sent).
type StatusCapturingResponseWriter struct {
	http.ResponseWriter
	StatusCode    int
	BytesWritten  int64
	HeaderWritten bool
}

// NewStatusCapturingResponseWriter creates a new wrapper defaulting to 200.
func NewStatusCapturingResponseWriter(w http.ResponseWriter) *StatusCapturingResponseWriter {
	return &StatusCapturingResponseWriter{ResponseWriter: w, StatusCode: http.StatusOK}
}

// WriteHeader captures the status code and marks headers as written.
func (w *StatusCapturingResponseWriter) WriteHeader(code int) {
	if w.HeaderWritten {
		return
	}
	w.StatusCode = code
	w.HeaderWritten = true
	w.ResponseWriter.WriteHeader(code)
}

// Write counts body bytes and implicitly writes the header on first use.
func (w *StatusCapturingResponseWriter) Write(b []byte) (int, error) {
	if !w.HeaderWritten {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.BytesWritten += int64(n)
	return n, err
}

// Flush forwards to the underlying writer when it supports flushing.
// Streaming responses rely on this to relay bytes as they arrive.
func (w *StatusCapturingResponseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// errorResponse is the JSON body written for gateway-generated errors.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Request string `json:"request_id,omitempty"`
}

// WriteJSONError writes a gateway-generated error response. It is only
// safe to call before any response bytes have been sent to the client.
func WriteJSONError(w http.ResponseWriter, r *http.Request, code int, errText, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error:   errText,
		Message: message,
		Request: RequestIDFromContext(r.Context()),
	})
}
