package observe

import (
	"context"
	"errors"
	"testing"

	otelcodes "go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestCallMeta_SpanName(t *testing.T) {
	tests := []struct {
		meta CallMeta
		want string
	}{
		{CallMeta{Dependency: "payments", Operation: "charge"}, "dep.call.payments.charge"},
		{CallMeta{Dependency: "payments"}, "dep.call.payments"},
	}
	for _, tt := range tests {
		if got := tt.meta.SpanName(); got != tt.want {
			t.Errorf("SpanName() = %v, want %v", got, tt.want)
		}
	}
}

func testTracer(t *testing.T) (Tracer, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return NewTracer(tp.Tracer("test")), recorder
}

func TestTracer_StartEndSpan(t *testing.T) {
	tracer, recorder := testTracer(t)

	meta := CallMeta{Dependency: "payments", Operation: "charge"}
	_, span := tracer.StartSpan(context.Background(), meta)
	tracer.EndSpan(span, nil)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 ended span, got %d", len(spans))
	}
	if spans[0].Name() != "dep.call.payments.charge" {
		t.Errorf("span name = %v, want dep.call.payments.charge", spans[0].Name())
	}
	if spans[0].Status().Code != otelcodes.Ok {
		t.Errorf("status = %v, want Ok", spans[0].Status().Code)
	}
}

func TestTracer_EndSpanRecordsError(t *testing.T) {
	tracer, recorder := testTracer(t)

	_, span := tracer.StartSpan(context.Background(), CallMeta{Dependency: "payments"})
	tracer.EndSpan(span, errors.New("connection refused"))

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 ended span, got %d", len(spans))
	}
	if spans[0].Status().Code != otelcodes.Error {
		t.Errorf("status = %v, want Error", spans[0].Status().Code)
	}
	if len(spans[0].Events()) == 0 {
		t.Error("expected recorded error event")
	}
}

func TestNoopTracer(t *testing.T) {
	tracer := NewNoopTracer()

	ctx, span := tracer.StartSpan(context.Background(), CallMeta{Dependency: "payments"})
	if ctx == nil {
		t.Fatal("context should not be nil")
	}
	tracer.EndSpan(span, errors.New("ignored"))
}
