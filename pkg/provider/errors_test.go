package provider_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/MrWong99/parley/pkg/provider"
)

func TestStatusError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code int
		body string
		want error
	}{
		{http.StatusUnauthorized, "bad key", provider.ErrAuth},
		{http.StatusForbidden, "", provider.ErrAuth},
		{http.StatusNotFound, `{"error":"model 'x' not found"}`, provider.ErrModelUnavailable},
		{http.StatusNotFound, "404 page not found", provider.ErrProtocol},
		{http.StatusServiceUnavailable, "", provider.ErrConnection},
		{http.StatusBadRequest, "oops", provider.ErrProtocol},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d", tt.code), func(t *testing.T) {
			err := provider.StatusError(tt.code, tt.body)
			if !errors.Is(err, tt.want) {
				t.Errorf("StatusError(%d, %q) = %v, want %v", tt.code, tt.body, err, tt.want)
			}
		})
	}
}

func TestTransportError(t *testing.T) {
	t.Parallel()

	dial := &url.Error{Op: "Post", URL: "http://127.0.0.1:1", Err: errors.New("connection refused")}
	if err := provider.TransportError(dial); !errors.Is(err, provider.ErrConnection) {
		t.Errorf("url error: got %v, want ErrConnection", err)
	}
	if err := provider.TransportError(context.Canceled); !errors.Is(err, context.Canceled) || errors.Is(err, provider.ErrConnection) {
		t.Errorf("cancellation must pass through unchanged, got %v", err)
	}
	if err := provider.TransportError(errors.New("weird")); !errors.Is(err, provider.ErrProtocol) {
		t.Errorf("other error: got %v, want ErrProtocol", err)
	}
}

func TestModelUnavailableError(t *testing.T) {
	t.Parallel()

	chatErr := fmt.Errorf("chat: %w", provider.ErrProtocol)
	err := error(&provider.ModelUnavailableError{
		Model:     "llama9",
		Available: []string{"llama3.1", "qwen2.5"},
		Attempts:  []error{chatErr},
	})

	if !errors.Is(err, provider.ErrModelUnavailable) {
		t.Error("expected errors.Is ErrModelUnavailable")
	}
	if !errors.Is(err, provider.ErrProtocol) {
		t.Error("expected attempt errors to be reachable")
	}
	var mu *provider.ModelUnavailableError
	if !errors.As(err, &mu) || len(mu.Available) != 2 {
		t.Fatalf("errors.As failed or lost the model list: %v", err)
	}
	for _, want := range []string{"llama9", "llama3.1", "qwen2.5", "chat:"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("message %q missing %q", err.Error(), want)
		}
	}
}
