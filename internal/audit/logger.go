package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Logger writes to audit.operation_log. It never updates or deletes a row
// it already wrote — every public method here issues an INSERT, matching
// the append-only contract spec.md §4.12 requires of the audit table
// itself.
type Logger struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewLogger wraps an already-open connection pool.
func NewLogger(db *sqlx.DB, timeout time.Duration) *Logger {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Logger{db: db, timeout: timeout}
}

// WriteParams carries the fields common to every operation-log entry.
type WriteParams struct {
	TraceID       string
	TargetSchema  string
	TargetTable   string
	TargetID      string
	PerformedBy   string
	OldValue      any
	NewValue      any
	AttestationID *uuid.UUID
	SourceType    SourceType
	Reason        string
	Metadata      any
}

// LogInsert records an INSERT against the signal store.
func (l *Logger) LogInsert(ctx context.Context, p WriteParams) (OperationLogEntry, error) {
	return l.write(ctx, OperationInsert, p)
}

// LogUpdate records an UPDATE.
func (l *Logger) LogUpdate(ctx context.Context, p WriteParams) (OperationLogEntry, error) {
	return l.write(ctx, OperationUpdate, p)
}

// LogUpsert records an UPSERT (insert-or-update in one statement).
func (l *Logger) LogUpsert(ctx context.Context, p WriteParams) (OperationLogEntry, error) {
	return l.write(ctx, OperationUpsert, p)
}

// LogDelete records a DELETE. OldValue should carry the row as it stood
// immediately before removal.
func (l *Logger) LogDelete(ctx context.Context, p WriteParams) (OperationLogEntry, error) {
	return l.write(ctx, OperationDelete, p)
}

func (l *Logger) write(ctx context.Context, op OperationType, p WriteParams) (OperationLogEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	entry := OperationLogEntry{
		ID:            uuid.New(),
		TraceID:       p.TraceID,
		OperationType: op,
		TargetSchema:  p.TargetSchema,
		TargetTable:   p.TargetTable,
		TargetID:      p.TargetID,
		PerformedBy:   firstNonEmpty(p.PerformedBy, "system"),
		AttestationID: p.AttestationID,
		SourceType:    p.SourceType,
		Reason:        firstNonEmpty(p.Reason, defaultReason(op)),
		LoggedAt:      time.Now().UTC(),
	}
	entry.OperationID = fmt.Sprintf("op_%s", entry.ID.String()[:12])

	var err error
	if entry.OldValue, err = marshalOrNil(p.OldValue); err != nil {
		return OperationLogEntry{}, fmt.Errorf("audit: marshal old_value: %w", err)
	}
	if entry.NewValue, err = marshalOrNil(p.NewValue); err != nil {
		return OperationLogEntry{}, fmt.Errorf("audit: marshal new_value: %w", err)
	}
	if entry.Metadata, err = marshalOrNil(p.Metadata); err != nil {
		return OperationLogEntry{}, fmt.Errorf("audit: marshal metadata: %w", err)
	}

	const query = `
		INSERT INTO audit.operation_log (
			id, operation_id, trace_id, operation_type,
			target_schema, target_table, target_id,
			performed_by, old_value, new_value,
			attestation_id, source_type, reason, metadata, logged_at
		) VALUES (
			$1, $2, $3, $4::operation_type,
			$5, $6, $7,
			$8, $9, $10,
			$11, $12, $13, $14, $15
		)`

	_, err = l.db.ExecContext(ctx, query,
		entry.ID, entry.OperationID, entry.TraceID, entry.OperationType,
		entry.TargetSchema, entry.TargetTable, entry.TargetID,
		entry.PerformedBy, entry.OldValue, entry.NewValue,
		entry.AttestationID, entry.SourceType, entry.Reason, entry.Metadata, entry.LoggedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			return OperationLogEntry{}, fmt.Errorf("audit: write operation log (%s): %w", pqErr.Code, err)
		}
		return OperationLogEntry{}, fmt.Errorf("audit: write operation log: %w", err)
	}

	return entry, nil
}

func marshalOrNil(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func firstNonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func defaultReason(op OperationType) string {
	switch op {
	case OperationInsert:
		return "Signal ingestion"
	case OperationUpdate:
		return "Signal update"
	case OperationUpsert:
		return "Signal upsert"
	case OperationDelete:
		return "Signal deletion"
	default:
		return "Signal store write"
	}
}
