package port

import (
	"context"

	"github.com/guillermoBallester/txscope/internal/core/domain"
)

// AuditEntry represents one deferred context.
type AuditEntry struct {
	ContextID string
	Identity  string
	Source    string
	Summary   domain.Summary
	Err       error
}

// ContextAuditor records deferred contexts.
type ContextAuditor interface {
	Record(ctx context.Context, entry AuditEntry)
	Close() error
}
