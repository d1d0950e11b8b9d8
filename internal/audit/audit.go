// Package audit persists one structured record per execution attempt,
// blocked and executed alike. Two sinks are provided: an append-only JSONL
// file for tamper-evident local trails, and a database store (SQLite or
// PostgreSQL) for queryable history with retention sweeps.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jkaninda/cmdguard/internal/executor"
)

// Record is one audit entry as stored and serialized.
type Record struct {
	ID              string    `gorm:"primaryKey;size:36" json:"id" yaml:"id"`
	Timestamp       time.Time `gorm:"index" json:"timestamp" yaml:"timestamp"`
	Command         string    `json:"command" yaml:"command"`
	Base            string    `gorm:"index;size:64" json:"base" yaml:"base"`
	WorkDir         string    `json:"work_dir,omitempty" yaml:"work_dir,omitempty"`
	Status          string    `gorm:"index;size:16" json:"status" yaml:"status"`
	Reason          string    `json:"reason,omitempty" yaml:"reason,omitempty"`
	ReturnCode      *int      `json:"return_code,omitempty" yaml:"return_code,omitempty"`
	DurationMS      int64     `json:"duration_ms" yaml:"duration_ms"`
	TruncatedStdout bool      `json:"truncated_stdout,omitempty" yaml:"truncated_stdout,omitempty"`
	TruncatedStderr bool      `json:"truncated_stderr,omitempty" yaml:"truncated_stderr,omitempty"`
}

// TableName keeps the table name stable across both database backends.
func (Record) TableName() string { return "execution_audit" }

func fromExecution(rec executor.AuditRecord) Record {
	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}
	return Record{
		ID:              id,
		Timestamp:       time.Now().UTC(),
		Command:         rec.Command,
		Base:            rec.Base,
		WorkDir:         rec.WorkDir,
		Status:          string(rec.Status),
		Reason:          rec.Reason,
		ReturnCode:      rec.ReturnCode,
		DurationMS:      rec.Duration.Milliseconds(),
		TruncatedStdout: rec.TruncatedStdout,
		TruncatedStderr: rec.TruncatedStderr,
	}
}

// Store is the queryable audit backend.
type Store interface {
	Append(ctx context.Context, rec *Record) error
	Recent(ctx context.Context, limit int) ([]Record, error)
	CountByStatus(ctx context.Context, status string) (int64, error)
	Purge(ctx context.Context, olderThan time.Time) (int64, error)
	Close() error
}

// Logger writes audit records as append-only JSONL, one JSON object per
// line. Thread-safe; multiple executions can log concurrently.
type Logger struct {
	mu     sync.Mutex
	file   *os.File
	logger *slog.Logger
}

// NewLogger opens (or creates) the audit log file in append-only mode with
// owner-only permissions.
func NewLogger(path string, logger *slog.Logger) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening audit log %s: %w", path, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{file: f, logger: logger}, nil
}

// RecordExecution appends one JSONL line. Marshal happens outside the lock;
// only the file write is serialized.
func (l *Logger) RecordExecution(ctx context.Context, rec executor.AuditRecord) {
	data, err := json.Marshal(fromExecution(rec))
	if err != nil {
		l.logger.ErrorContext(ctx, "marshaling audit record", slog.String("error", err.Error()))
		return
	}
	data = append(data, '\n')

	l.mu.Lock()
	_, writeErr := l.file.Write(data)
	l.mu.Unlock()

	if writeErr != nil {
		l.logger.ErrorContext(ctx, "writing audit record",
			slog.String("error", writeErr.Error()),
			slog.String("base", rec.Base),
		)
	}
}

// Close closes the underlying file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// StoreSink adapts a Store to the executor's audit interface. Write errors
// are logged, never surfaced into the execution path.
type StoreSink struct {
	store  Store
	logger *slog.Logger
}

func NewStoreSink(store Store, logger *slog.Logger) *StoreSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreSink{store: store, logger: logger}
}

func (s *StoreSink) RecordExecution(ctx context.Context, rec executor.AuditRecord) {
	entry := fromExecution(rec)
	if err := s.store.Append(ctx, &entry); err != nil {
		s.logger.ErrorContext(ctx, "persisting audit record",
			slog.String("error", err.Error()),
			slog.String("base", rec.Base),
		)
	}
}

// Multi fans one execution record out to several sinks.
type Multi []executor.AuditSink

func (m Multi) RecordExecution(ctx context.Context, rec executor.AuditRecord) {
	for _, sink := range m {
		sink.RecordExecution(ctx, rec)
	}
}
