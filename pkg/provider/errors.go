// Package provider holds the error taxonomy shared by every speech and chat
// provider. Providers wrap their failures in one of the sentinel errors so
// that gateways and the conversation loop can react by class rather than by
// vendor.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
)

var (
	// ErrConnection reports an unreachable endpoint: dial failures, resets,
	// timeouts.
	ErrConnection = errors.New("connection error")

	// ErrProtocol reports an unexpected response status or shape.
	ErrProtocol = errors.New("protocol error")

	// ErrAuth reports a rejected credential.
	ErrAuth = errors.New("authentication error")

	// ErrModelUnavailable reports that the requested model is not served by
	// the endpoint. See [ModelUnavailableError] for details.
	ErrModelUnavailable = errors.New("model unavailable")
)

// ModelUnavailableError is returned when a named model is absent. It lists
// the models the server actually offers and keeps the diagnostics of every
// attempt that led to the conclusion.
type ModelUnavailableError struct {
	Model     string
	Available []string
	Attempts  []error
}

func (e *ModelUnavailableError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "model %q unavailable", e.Model)
	if len(e.Available) > 0 {
		fmt.Fprintf(&b, " (available: %s)", strings.Join(e.Available, ", "))
	} else {
		b.WriteString(" (no models reported by server)")
	}
	for _, a := range e.Attempts {
		b.WriteString("; ")
		b.WriteString(a.Error())
	}
	return b.String()
}

// Unwrap exposes [ErrModelUnavailable] and every attempt error to
// [errors.Is] and [errors.As].
func (e *ModelUnavailableError) Unwrap() []error {
	return append([]error{ErrModelUnavailable}, e.Attempts...)
}

// StatusError classifies a non-2xx HTTP status into the taxonomy. body is
// the (possibly truncated) response body used for the message.
func StatusError(code int, body string) error {
	body = strings.TrimSpace(body)
	if len(body) > 256 {
		body = body[:256] + "…"
	}
	msg := fmt.Sprintf("HTTP %d", code)
	if body != "" {
		msg += ": " + body
	}

	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrAuth, msg)
	case code == http.StatusNotFound && strings.Contains(strings.ToLower(body), "model"):
		return fmt.Errorf("%w: %s", ErrModelUnavailable, msg)
	case code == http.StatusBadGateway || code == http.StatusServiceUnavailable || code == http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %s", ErrConnection, msg)
	default:
		return fmt.Errorf("%w: %s", ErrProtocol, msg)
	}
}

// TransportError classifies an error returned by an HTTP round trip.
// Context cancellation is passed through unchanged so callers can tell an
// abandoned call from a failed one.
func TransportError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var (
		netErr net.Error
		urlErr *url.Error
	)
	if errors.As(err, &netErr) || errors.As(err, &urlErr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}
	return fmt.Errorf("%w: %w", ErrProtocol, err)
}

// IsRetriable reports whether err warrants trying an alternate provider.
// Cancellation by the caller is not retriable.
func IsRetriable(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}
