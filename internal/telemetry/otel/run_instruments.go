package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// RunInstruments records the contract numbers of a generation run: candidate
// count, coverage before and after optimization, and minimized suite size.
type RunInstruments struct {
	meterEnabled bool
	traceEnabled bool

	counterRuns    metric.Int64Counter
	histCandidates metric.Int64Histogram
	histSuiteSize  metric.Int64Histogram
	histCoverage   metric.Float64Histogram
	histDuration   metric.Int64Histogram

	tracer trace.Tracer
}

// RunHandle tracks one generation run from start to summary.
type RunHandle struct {
	ctx   context.Context
	span  trace.Span
	start time.Time
	attrs []attribute.KeyValue
}

func newRunInstruments(p *Provider) *RunInstruments {
	if p == nil {
		return nil
	}

	inst := &RunInstruments{
		meterEnabled: p.meterProvider != nil,
		traceEnabled: p.tracerProvider != nil,
	}
	if p.meterProvider != nil {
		inst.counterRuns, _ = p.meter.Int64Counter(
			"run.total",
			metric.WithDescription("Number of generation runs executed"),
		)
		inst.histCandidates, _ = p.meter.Int64Histogram(
			"run.candidates",
			metric.WithDescription("Candidate vectors generated per run"),
		)
		inst.histSuiteSize, _ = p.meter.Int64Histogram(
			"run.suite_size",
			metric.WithDescription("Minimized suite size per run"),
		)
		inst.histCoverage, _ = p.meter.Float64Histogram(
			"run.coverage",
			metric.WithDescription("Rule coverage of the minimized suite"),
		)
		inst.histDuration, _ = p.meter.Int64Histogram(
			"run.duration",
			metric.WithDescription("Wall time of a generation run in milliseconds"),
		)
	}
	if p.tracerProvider != nil {
		inst.tracer = p.tracer
	}
	return inst
}

// Start opens a run span and returns a handle plus the span context.
func (i *RunInstruments) Start(parent context.Context, runID, strategy string, rules int) (*RunHandle, context.Context) {
	if i == nil {
		return nil, parent
	}

	h := &RunHandle{
		ctx:   parent,
		start: time.Now(),
		attrs: []attribute.KeyValue{
			attribute.String("run.id", runID),
			attribute.String("run.strategy", strategy),
			attribute.Int("run.rules", rules),
		},
	}

	if i.traceEnabled && i.tracer != nil {
		ctx, span := i.tracer.Start(parent, "policyprobe.run", trace.WithAttributes(h.attrs...))
		h.ctx = ctx
		h.span = span
	}
	return h, h.ctx
}

// Fail ends a run that produced no summary. The run is still counted, and the
// span is closed with an error status so failed runs are not left open.
func (i *RunInstruments) Fail(h *RunHandle, err error) {
	if i == nil || h == nil {
		return
	}

	if i.meterEnabled {
		attrs := append(h.attrs, attribute.Bool("run.failed", true))
		i.counterRuns.Add(h.ctx, 1, metric.WithAttributes(attrs...))
	}

	if h.span != nil {
		if err != nil {
			h.span.RecordError(err)
			h.span.SetStatus(codes.Error, err.Error())
		}
		h.span.End()
	}
}

// Finish records the run's summary numbers and ends the span.
func (i *RunInstruments) Finish(h *RunHandle, candidates, suiteSize int, coverageBefore, coverageAfter float64) {
	if i == nil || h == nil {
		return
	}
	elapsed := time.Since(h.start)

	if i.meterEnabled {
		opt := metric.WithAttributes(h.attrs...)
		i.counterRuns.Add(h.ctx, 1, opt)
		i.histCandidates.Record(h.ctx, int64(candidates), opt)
		i.histSuiteSize.Record(h.ctx, int64(suiteSize), opt)
		i.histCoverage.Record(h.ctx, coverageAfter, opt)
		i.histDuration.Record(h.ctx, elapsed.Milliseconds(), opt)
	}

	if h.span != nil {
		h.span.SetAttributes(
			attribute.Int("run.candidates", candidates),
			attribute.Int("run.suite_size", suiteSize),
			attribute.Float64("run.coverage_before", coverageBefore),
			attribute.Float64("run.coverage_after", coverageAfter),
		)
		h.span.End()
	}
}
