package audit

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/guillermoBallester/txscope/internal/core/domain"
	"github.com/guillermoBallester/txscope/internal/core/port"
)

var _ port.ContextAuditor = (*FileAuditor)(nil)

// fileEntry is the NDJSON-serializable form of a deferred context.
type fileEntry struct {
	Timestamp  string             `json:"ts"`
	ContextID  string             `json:"context_id"`
	Identity   string             `json:"identity"`
	Source     string             `json:"source"`
	Statements int                `json:"statements"`
	Counts     map[string]int     `json:"counts"`
	CostsMS    map[string]float64 `json:"costs_ms"`
	TotalMS    float64            `json:"total_ms"`
	SelfMS     float64            `json:"self_ms"`
	OtherMS    float64            `json:"other_ms"`
	Error      *string            `json:"error"`
}

func newFileEntry(entry port.AuditEntry) fileEntry {
	s := entry.Summary
	fe := fileEntry{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		ContextID:  entry.ContextID,
		Identity:   entry.Identity,
		Source:     entry.Source,
		Statements: s.Statements(),
		Counts:     make(map[string]int, len(domain.Categories)),
		CostsMS:    make(map[string]float64, len(domain.Categories)),
		TotalMS:    domain.Millis(s.Total),
		SelfMS:     domain.Millis(s.Self),
		OtherMS:    domain.Millis(s.Other),
	}
	for _, cat := range domain.Categories {
		fe.Counts[cat.String()] = s.Count(cat)
		fe.CostsMS[cat.String()] = domain.Millis(s.Cost(cat))
	}
	if entry.Err != nil {
		msg := entry.Err.Error()
		fe.Error = &msg
	}
	return fe
}

// FileAuditor writes one NDJSON line per deferred context to a file.
type FileAuditor struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewFileAuditor opens (or creates) the file at path for append-only writing.
func NewFileAuditor(path string) (*FileAuditor, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &FileAuditor{
		file: f,
		enc:  json.NewEncoder(f),
	}, nil
}

func (a *FileAuditor) Record(_ context.Context, entry port.AuditEntry) {
	fe := newFileEntry(entry)

	a.mu.Lock()
	defer a.mu.Unlock()
	_ = a.enc.Encode(fe) // best-effort; a failed audit write never fails the commit
}

func (a *FileAuditor) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.file.Close()
}

// NoopAuditor discards all audit entries.
type NoopAuditor struct{}

func (NoopAuditor) Record(context.Context, port.AuditEntry) {}
func (NoopAuditor) Close() error                            { return nil }
