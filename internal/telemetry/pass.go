package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const passScopeName = "github.com/steveyegge/calcsnap/backfill"

// Pass instruments one backfill pass: a span per stage and counters for the
// rows, parents, deductions and writes it handles.
type Pass struct {
	tracer     trace.Tracer
	rows       metric.Int64Counter
	parents    metric.Int64Counter
	deductions metric.Int64Counter
	writes     metric.Int64Counter
	dur        metric.Float64Histogram
}

// NewPass creates the instruments from the global providers. With telemetry
// disabled those are no-ops.
func NewPass() *Pass {
	m := Meter(passScopeName)
	rows, _ := m.Int64Counter("calcsnap.backfill.rows",
		metric.WithDescription("Legacy join rows read"),
	)
	parents, _ := m.Int64Counter("calcsnap.backfill.parents",
		metric.WithDescription("Distinct calculations reconstructed"),
	)
	deductions, _ := m.Int64Counter("calcsnap.backfill.deductions",
		metric.WithDescription("Deductions attached to reconstructed calculations"),
	)
	writes, _ := m.Int64Counter("calcsnap.backfill.writes",
		metric.WithDescription("Snapshot updates issued"),
	)
	dur, _ := m.Float64Histogram("calcsnap.backfill.stage.duration",
		metric.WithDescription("Backfill stage duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	return &Pass{
		tracer:     Tracer(passScopeName),
		rows:       rows,
		parents:    parents,
		deductions: deductions,
		writes:     writes,
		dur:        dur,
	}
}

// Stage is an in-flight pass stage.
type Stage struct {
	p     *Pass
	name  string
	span  trace.Span
	start time.Time
}

// Start opens a span for the named stage.
func (p *Pass) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, *Stage) {
	all := append([]attribute.KeyValue{attribute.String("backfill.stage", name)}, attrs...)
	ctx, span := p.tracer.Start(ctx, "backfill."+name, trace.WithAttributes(all...))
	return ctx, &Stage{p: p, name: name, span: span, start: time.Now()}
}

// End closes the stage, recording its duration and err if non-nil.
func (s *Stage) End(ctx context.Context, err error) {
	s.p.dur.Record(ctx, float64(time.Since(s.start).Milliseconds()),
		metric.WithAttributes(attribute.String("backfill.stage", s.name)))
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	}
	s.span.End()
}

func (p *Pass) AddRows(ctx context.Context, n int) {
	p.rows.Add(ctx, int64(n))
}

func (p *Pass) AddParents(ctx context.Context, n int) {
	p.parents.Add(ctx, int64(n))
}

func (p *Pass) AddDeductions(ctx context.Context, n int) {
	p.deductions.Add(ctx, int64(n))
}

func (p *Pass) AddWrites(ctx context.Context, n int) {
	p.writes.Add(ctx, int64(n))
}
