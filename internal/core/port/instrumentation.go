package port

import (
	"context"

	"github.com/guillermoBallester/txscope/internal/core/domain"
)

// Instrumentation records application-level metrics.
type Instrumentation interface {
	RecordStatementDuration(ctx context.Context, cat domain.Category, ms float64)
	IncrementStatementCount(ctx context.Context, cat domain.Category)
	RecordContextDuration(ctx context.Context, ms float64)
	IncrementCommitErrors(ctx context.Context)
}

// NoopInstrumentation discards all metrics.
type NoopInstrumentation struct{}

func (NoopInstrumentation) RecordStatementDuration(context.Context, domain.Category, float64) {}
func (NoopInstrumentation) IncrementStatementCount(context.Context, domain.Category)          {}
func (NoopInstrumentation) RecordContextDuration(context.Context, float64)                    {}
func (NoopInstrumentation) IncrementCommitErrors(context.Context)                             {}
