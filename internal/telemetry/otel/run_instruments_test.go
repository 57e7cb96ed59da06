package otel

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestFailEndsSpanWithError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	inst := &RunInstruments{traceEnabled: true, tracer: tp.Tracer("test")}

	h, _ := inst.Start(context.Background(), "run-1", "combinatorial", 2)
	inst.Fail(h, errors.New("candidate pool too large"))

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 ended span, got %d", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Fatalf("span status = %+v, want error", spans[0].Status())
	}
}

func TestFinishEndsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	inst := &RunInstruments{traceEnabled: true, tracer: tp.Tracer("test")}

	h, _ := inst.Start(context.Background(), "run-1", "combinatorial", 2)
	inst.Finish(h, 3, 2, 1.0, 1.0)

	if n := len(recorder.Ended()); n != 1 {
		t.Fatalf("expected 1 ended span, got %d", n)
	}
}

func TestInstrumentsNilSafe(t *testing.T) {
	var inst *RunInstruments
	h, _ := inst.Start(context.Background(), "r", "s", 0)
	inst.Fail(h, errors.New("boom"))
	inst.Finish(h, 0, 0, 0, 0)

	inert := &RunInstruments{}
	h, _ = inert.Start(context.Background(), "r", "s", 0)
	inert.Fail(h, nil)
}
