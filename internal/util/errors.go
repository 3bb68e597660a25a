// Package util provides utility functions and types shared across the gateway.
//
// # Error Conventions
//
// This project follows a standardized error pattern across all packages:
//
//   - Sentinel errors (errors.New) for well-known, stable conditions
//     that callers check with errors.Is(). Example: ErrNoRoute.
//   - Structured error types for context-rich errors that carry
//     additional fields (e.g., ConfigError, ForwardError). Each type
//     implements Error(), Unwrap() (if wrapping), and Is().
//   - fmt.Errorf with %w for ad-hoc wrapping that adds context to an
//     existing error without introducing a new type.
package util

import (
	"errors"
	"fmt"
)

// Common sentinel errors.
var (
	ErrNoRoute             = errors.New("no matching route")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrConfigInvalid       = errors.New("invalid configuration")
	ErrTelemetryDropped    = errors.New("telemetry record dropped")
)

// ConfigError represents a configuration-related error. Rewrite template
// and route-table construction failures surface as ConfigError at load
// time; they are never observed on the request path.
type ConfigError struct {
	Field   string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error at %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *ConfigError) Is(target error) bool {
	if target == ErrConfigInvalid {
		return true
	}
	_, ok := target.(*ConfigError)
	return ok || errors.Is(e.Cause, target)
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// NewConfigErrorWithCause creates a new ConfigError with a cause.
func NewConfigErrorWithCause(field, message string, cause error) *ConfigError {
	return &ConfigError{Field: field, Message: message, Cause: cause}
}

// RouteNotFoundError signals that no route matched a request. Callers
// branch on it explicitly; it is never used for panic-style control flow.
type RouteNotFoundError struct {
	Method string
	Path   string
}

// Error implements the error interface.
func (e *RouteNotFoundError) Error() string {
	return fmt.Sprintf("no route found for %s %s", e.Method, e.Path)
}

// Is checks if the error matches the target.
func (e *RouteNotFoundError) Is(target error) bool {
	if target == ErrNoRoute {
		return true
	}
	_, ok := target.(*RouteNotFoundError)
	return ok
}

// NewRouteNotFoundError creates a new RouteNotFoundError.
func NewRouteNotFoundError(method, path string) *RouteNotFoundError {
	return &RouteNotFoundError{Method: method, Path: path}
}

// UpstreamUnavailableError signals that a pool has no selectable
// endpoint: either the pool is empty or every endpoint is marked down.
type UpstreamUnavailableError struct {
	Pool string
}

// Error implements the error interface.
func (e *UpstreamUnavailableError) Error() string {
	return fmt.Sprintf("no available endpoint in upstream pool %s", e.Pool)
}

// Is checks if the error matches the target.
func (e *UpstreamUnavailableError) Is(target error) bool {
	if target == ErrUpstreamUnavailable {
		return true
	}
	_, ok := target.(*UpstreamUnavailableError)
	return ok
}

// NewUpstreamUnavailableError creates a new UpstreamUnavailableError.
func NewUpstreamUnavailableError(pool string) *UpstreamUnavailableError {
	return &UpstreamUnavailableError{Pool: pool}
}

// ForwardStage identifies where in the forwarding exchange a failure occurred.
type ForwardStage int

const (
	// StageConnect covers dial errors, connection refusal, and timeouts
	// before any response byte was received.
	StageConnect ForwardStage = iota

	// StageStream covers failures after the upstream response started,
	// while relaying body bytes to the client.
	StageStream
)

// String returns the string representation of the stage.
func (s ForwardStage) String() string {
	switch s {
	case StageConnect:
		return "connect"
	case StageStream:
		return "stream"
	default:
		return "unknown"
	}
}

// ForwardError represents a failure while proxying a request to an
// upstream endpoint. Stage distinguishes connection-level failures
// (the endpoint gets marked unavailable, a retry is permitted) from
// mid-stream failures (the response may be partially written).
type ForwardError struct {
	Upstream string
	Stage    ForwardStage
	Cause    error
}

// Error implements the error interface.
func (e *ForwardError) Error() string {
	return fmt.Sprintf("forward to %s failed at %s: %v", e.Upstream, e.Stage, e.Cause)
}

// Unwrap returns the underlying error.
func (e *ForwardError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *ForwardError) Is(target error) bool {
	_, ok := target.(*ForwardError)
	return ok || errors.Is(e.Cause, target)
}

// NewForwardError creates a new ForwardError.
func NewForwardError(upstream string, stage ForwardStage, cause error) *ForwardError {
	return &ForwardError{Upstream: upstream, Stage: stage, Cause: cause}
}

// WrapError wraps an error with additional context.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
