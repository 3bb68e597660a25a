// Package proxy provides the forwarding engine: it executes proxied
// requests against selected upstream endpoints and relays responses.
package proxy

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/avolkhin/revgate/internal/observability"
	"github.com/avolkhin/revgate/internal/upstream"
	"github.com/avolkhin/revgate/internal/util"
)

// hopHeaders are headers that should not be forwarded.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// DefaultMaxReplayBodyBytes bounds how much of a request body is
// buffered in memory to make it replayable for the retry attempt.
// Larger bodies are streamed directly and forfeit the retry.
const DefaultMaxReplayBodyBytes = 1 << 20

// copyBufferSize is the chunk size for relaying response bodies.
const copyBufferSize = 32 * 1024

// Forwarder executes proxied requests. It holds no per-request state
// and is safe for concurrent use.
type Forwarder struct {
	transport          http.RoundTripper
	logger             observability.Logger
	metrics            *observability.Metrics
	maxReplayBodyBytes int64
}

// ForwarderOption is a functional option for configuring the forwarder.
type ForwarderOption func(*Forwarder)

// WithLogger sets the logger for the forwarder.
func WithLogger(logger observability.Logger) ForwarderOption {
	return func(f *Forwarder) {
		f.logger = logger
	}
}

// WithMetrics sets the metrics sink for the forwarder.
func WithMetrics(metrics *observability.Metrics) ForwarderOption {
	return func(f *Forwarder) {
		f.metrics = metrics
	}
}

// WithMaxReplayBodyBytes sets the request body replay buffer limit.
func WithMaxReplayBodyBytes(n int64) ForwarderOption {
	return func(f *Forwarder) {
		f.maxReplayBodyBytes = n
	}
}

// NewForwarder creates a forwarder over the given transport.
func NewForwarder(transport http.RoundTripper, opts ...ForwarderOption) *Forwarder {
	f := &Forwarder{
		transport:          transport,
		logger:             observability.NopLogger(),
		maxReplayBodyBytes: DefaultMaxReplayBodyBytes,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Result describes one completed (or failed) forwarding exchange.
type Result struct {
	// Endpoint is the address of the last endpoint attempted.
	Endpoint string
	// Status is the upstream response status relayed to the client,
	// or zero if no response was received.
	Status int
	// BytesOut is the number of response body bytes relayed.
	BytesOut int64
	// Retried reports whether a second endpoint was attempted.
	Retried bool
	// HeaderWritten reports whether any response reached the client.
	// When false the caller may still write a gateway error response.
	HeaderWritten bool
	// Err is the terminal error, nil on success. Upstream 4xx/5xx
	// responses are relayed verbatim and are not errors.
	Err error
}

// Forward selects an endpoint from the pool and proxies the request to
// it with the given rewritten path, streaming the response back as it
// arrives. On a connection-level failure the endpoint is marked
// unavailable and one retry is attempted against the next available
// endpoint; a retried success is indistinguishable from a first-try
// success for the client. The route name is used only for metrics.
func (f *Forwarder) Forward(
	w *util.StatusCapturingResponseWriter,
	r *http.Request,
	rewrittenPath string,
	pool *upstream.Pool,
	routeName string,
	timeout time.Duration,
) Result {
	ctx := r.Context()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	body, replayable, err := f.bufferBody(r)
	if err != nil {
		return Result{Err: util.WrapError(err, "failed to read request body")}
	}

	var res Result
	for attempt := 0; attempt < 2; attempt++ {
		// Mark the retry before selection so the access record shows
		// the attempt even when the pool is already exhausted.
		res.Retried = attempt > 0

		endpoint, selErr := pool.Select()
		if selErr != nil {
			res.Err = selErr
			return res
		}

		res.Endpoint = endpoint.Address()

		out := f.buildOutbound(ctx, r, endpoint, rewrittenPath, body)

		endpoint.IncrementRequests()
		resp, rtErr := f.transport.RoundTrip(out)
		endpoint.DecrementRequests()

		if rtErr != nil {
			if ctx.Err() != nil {
				// Client disconnect or deadline, not an endpoint fault.
				res.Err = util.NewForwardError(endpoint.Address(), util.StageConnect, ctx.Err())
				return res
			}

			endpoint.MarkUnavailable()
			if f.metrics != nil {
				f.metrics.SetEndpointAvailable(pool.Name(), endpoint.Address(), false)
			}
			f.logger.Warn("endpoint marked unavailable",
				observability.String("pool", pool.Name()),
				observability.String("endpoint", endpoint.Address()),
				observability.Error(rtErr),
			)

			if attempt == 0 && replayable {
				if f.metrics != nil {
					f.metrics.RecordForwardRetry(routeName)
				}
				continue
			}

			res.Err = util.NewForwardError(endpoint.Address(), util.StageConnect, rtErr)
			return res
		}

		f.relayResponse(w, resp, &res)
		return res
	}

	// Unreachable: the loop always returns.
	return res
}

// bufferBody reads the request body into memory when it is small
// enough to replay on retry. It returns the body bytes (nil when the
// request has no body), whether the request can be retried, and any
// read error. Oversized bodies are re-assembled into the request as a
// stream and the exchange proceeds without retry eligibility.
func (f *Forwarder) bufferBody(r *http.Request) ([]byte, bool, error) {
	if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		return nil, true, nil
	}

	if r.ContentLength > f.maxReplayBodyBytes {
		return nil, false, nil
	}

	limited := io.LimitReader(r.Body, f.maxReplayBodyBytes+1)
	buf, err := io.ReadAll(limited)
	if err != nil {
		return nil, false, err
	}

	if int64(len(buf)) > f.maxReplayBodyBytes {
		// Chunked body larger than the buffer: stitch what was read
		// back in front of the remaining stream.
		r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(buf), r.Body))
		return nil, false, nil
	}

	return buf, true, nil
}

// buildOutbound constructs the upstream request for one attempt.
func (f *Forwarder) buildOutbound(
	ctx context.Context,
	r *http.Request,
	endpoint *upstream.Endpoint,
	rewrittenPath string,
	body []byte,
) *http.Request {
	out := r.Clone(ctx)

	out.URL.Scheme = "http"
	out.URL.Host = endpoint.Address()
	out.URL.Path = rewrittenPath
	out.URL.RawPath = ""
	out.RequestURI = ""
	out.Host = endpoint.Address()

	if body != nil {
		out.Body = io.NopCloser(bytes.NewReader(body))
		out.ContentLength = int64(len(body))
	}

	for _, h := range hopHeaders {
		out.Header.Del(h)
	}

	if clientIP, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		if prior := r.Header.Get("X-Forwarded-For"); prior != "" {
			clientIP = prior + ", " + clientIP
		}
		out.Header.Set("X-Forwarded-For", clientIP)
	}

	if r.TLS != nil {
		out.Header.Set("X-Forwarded-Proto", "https")
	} else {
		out.Header.Set("X-Forwarded-Proto", "http")
	}

	out.Header.Set("X-Forwarded-Host", r.Host)

	observability.InjectTraceContext(ctx, out)

	return out
}

// relayResponse streams the upstream response to the client,
// flushing after every chunk so large bodies are not buffered.
func (f *Forwarder) relayResponse(
	w *util.StatusCapturingResponseWriter,
	resp *http.Response,
	res *Result,
) {
	defer func() { _ = resp.Body.Close() }()

	header := w.Header()
	for key, values := range resp.Header {
		for _, v := range values {
			header.Add(key, v)
		}
	}
	for _, h := range hopHeaders {
		header.Del(h)
	}

	w.WriteHeader(resp.StatusCode)
	res.Status = resp.StatusCode
	res.HeaderWritten = true

	n, err := copyAndFlush(w, resp.Body)
	res.BytesOut = n
	if err != nil && !errors.Is(err, context.Canceled) {
		res.Err = util.NewForwardError(res.Endpoint, util.StageStream, err)
	}
}

// copyAndFlush copies src to dst, flushing after each chunk.
func copyAndFlush(dst *util.StatusCapturingResponseWriter, src io.Reader) (int64, error) {
	buf := make([]byte, copyBufferSize)
	var written int64

	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			wn, writeErr := dst.Write(buf[:n])
			written += int64(wn)
			if writeErr != nil {
				return written, writeErr
			}
			dst.Flush()
		}
		if readErr != nil {
			if readErr == io.EOF {
				return written, nil
			}
			return written, readErr
		}
	}
}
