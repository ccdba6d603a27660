package telemetry

import (
	"context"

	"github.com/guillermoBallester/txscope/internal/core/domain"
	"github.com/guillermoBallester/txscope/internal/core/port"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/guillermoBallester/txscope"

var _ port.Instrumentation = (*Instruments)(nil)

// Instruments holds pre-created OTel metric instruments.
type Instruments struct {
	StatementCount    metric.Int64Counter
	StatementDuration metric.Float64Histogram
	ContextDuration   metric.Float64Histogram
	CommitErrors      metric.Int64Counter

	categories map[domain.Category]metric.MeasurementOption
}

// NewInstruments creates metric instruments from the global MeterProvider.
// Returns nil-safe instruments: if creation fails, noop instruments are used.
func NewInstruments() *Instruments {
	meter := otel.Meter(meterName)
	return newInstrumentsFromMeter(meter)
}

// NoopInstruments returns instruments that record nothing.
func NoopInstruments() *Instruments {
	meter := noop.NewMeterProvider().Meter(meterName)
	return newInstrumentsFromMeter(meter)
}

func newInstrumentsFromMeter(meter metric.Meter) *Instruments {
	// OTel SDK returns noop instruments on error; safe to discard.
	statementCount, _ := meter.Int64Counter("txscope.statement.count",
		metric.WithDescription("Statements executed inside watched contexts"),
	)
	statementDuration, _ := meter.Float64Histogram("txscope.statement.duration",
		metric.WithDescription("Statement execution duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	contextDuration, _ := meter.Float64Histogram("txscope.context.duration",
		metric.WithDescription("Context lifetime from watch to the end of defer in milliseconds"),
		metric.WithUnit("ms"),
	)
	commitErrors, _ := meter.Int64Counter("txscope.commit.errors",
		metric.WithDescription("Total number of failed commits"),
	)

	inst := &Instruments{
		StatementCount:    statementCount,
		StatementDuration: statementDuration,
		ContextDuration:   contextDuration,
		CommitErrors:      commitErrors,
		categories:        make(map[domain.Category]metric.MeasurementOption, len(domain.Categories)),
	}
	for _, cat := range domain.Categories {
		inst.categories[cat] = metric.WithAttributeSet(
			attribute.NewSet(attribute.String("txscope.category", cat.String())),
		)
	}
	return inst
}

func (i *Instruments) RecordStatementDuration(ctx context.Context, cat domain.Category, ms float64) {
	i.StatementDuration.Record(ctx, ms, i.category(cat))
}

func (i *Instruments) IncrementStatementCount(ctx context.Context, cat domain.Category) {
	i.StatementCount.Add(ctx, 1, i.category(cat))
}

func (i *Instruments) category(cat domain.Category) metric.MeasurementOption {
	if opt, ok := i.categories[cat]; ok {
		return opt
	}
	return i.categories[domain.CategoryOther]
}

func (i *Instruments) RecordContextDuration(ctx context.Context, ms float64) {
	i.ContextDuration.Record(ctx, ms)
}

func (i *Instruments) IncrementCommitErrors(ctx context.Context) {
	i.CommitErrors.Add(ctx, 1)
}
