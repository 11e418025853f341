package observe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/MrWong99/parley/pkg/provider"
)

// useTestTracer installs an in-memory tracer provider as the global one for
// the duration of the test.
func useTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(orig)
		_ = tp.Shutdown(context.Background())
	})
	return exp
}

func TestCorrelationID(t *testing.T) {
	useTestTracer(t)

	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID without span = %q, want empty", got)
	}

	ctx1, s1 := StartSpan(context.Background(), "turn")
	defer s1.End()
	ctx2, s2 := StartSpan(context.Background(), "turn")
	defer s2.End()

	a, b := CorrelationID(ctx1), CorrelationID(ctx2)
	if len(a) != 32 || strings.Trim(a, "0123456789abcdef") != "" {
		t.Errorf("correlation ID %q is not 32 lowercase hex chars", a)
	}
	if a == b {
		t.Error("separate root spans share a correlation ID")
	}

	// A child span continues its parent's trace.
	child, s3 := StartSpan(ctx1, "stt.transcribe")
	defer s3.End()
	if CorrelationID(child) != a {
		t.Error("child span changed the correlation ID")
	}
}

func TestEndSpan_ErrorClass(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantClass string
	}{
		{name: "success"},
		{name: "auth", err: fmt.Errorf("anthropic: generate: %w", provider.ErrAuth), wantClass: "auth"},
		{name: "connection", err: fmt.Errorf("whisper: %w", provider.ErrConnection), wantClass: "connection"},
		{name: "protocol", err: provider.ErrProtocol, wantClass: "protocol"},
		{
			name:      "model unavailable",
			err:       &provider.ModelUnavailableError{Model: "llama3.2", Available: []string{"qwen2.5"}},
			wantClass: "model_unavailable",
		},
		{name: "canceled", err: context.Canceled, wantClass: "canceled"},
		{name: "unclassified", err: errors.New("boom"), wantClass: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp := useTestTracer(t)
			_, span := StartSpan(context.Background(), "llm.generate")
			EndSpan(span, tt.err)

			spans := exp.GetSpans()
			if len(spans) != 1 {
				t.Fatalf("spans = %d, want 1", len(spans))
			}
			got := spans[0]
			var class string
			for _, kv := range got.Attributes {
				if kv.Key == "error.class" {
					class = kv.Value.AsString()
				}
			}
			if class != tt.wantClass {
				t.Errorf("error.class = %q, want %q", class, tt.wantClass)
			}
			wantCode := codes.Unset
			if tt.err != nil {
				wantCode = codes.Error
			}
			if got.Status.Code != wantCode {
				t.Errorf("status = %v, want %v", got.Status.Code, wantCode)
			}
		})
	}
}

func TestLogger(t *testing.T) {
	useTestTracer(t)

	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(orig) })

	Logger(context.Background()).Info("no span")
	if strings.Contains(buf.String(), "trace_id") {
		t.Errorf("log without span carries trace_id: %s", buf.String())
	}

	buf.Reset()
	ctx, span := StartSpan(context.Background(), "turn")
	defer span.End()
	Logger(ctx).Info("in span")
	out := buf.String()
	if !strings.Contains(out, `"trace_id":"`+CorrelationID(ctx)+`"`) || !strings.Contains(out, `"span_id"`) {
		t.Errorf("log in span = %s, want trace_id and span_id", out)
	}
}
