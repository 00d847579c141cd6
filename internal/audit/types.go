// Package audit implements the append-only operation log and source
// attestation store (C13, spec.md §4.12). Every INSERT/UPDATE/UPSERT/
// DELETE against the signal store is logged here; the log itself is
// insert-only by construction — this package exposes no method that
// updates or deletes an existing log row, matching the DB-side trigger
// the original schema carries on audit.operation_log.
//
// Grounded on original_source/.../adapters/persistence/audit_logger.py's
// AuditEntry/AuditLogger, persisted the way the teacher's
// internal/persistence/postgres/trades_repo.go uses sqlx + pq (explicit
// QueryRowxContext/ExecContext, pq.Error code inspection, JSONB columns
// marshaled by hand rather than relying on sqlx struct-tag scanning).
package audit

import (
	"time"

	"github.com/google/uuid"
)

// OperationType is the kind of write the log entry records.
type OperationType string

const (
	OperationInsert OperationType = "INSERT"
	OperationUpdate OperationType = "UPDATE"
	OperationUpsert OperationType = "UPSERT"
	OperationDelete OperationType = "DELETE"
)

// SourceType flags whether the data behind an attested signal came from a
// real upstream provider, a mock/fixture, or a blend of both.
type SourceType string

const (
	SourceReal   SourceType = "REAL"
	SourceMock   SourceType = "MOCK"
	SourceHybrid SourceType = "HYBRID"
)

// OperationLogEntry is one row of audit.operation_log.
type OperationLogEntry struct {
	ID            uuid.UUID     `db:"id"`
	OperationID   string        `db:"operation_id"`
	TraceID       string        `db:"trace_id"`
	OperationType OperationType `db:"operation_type"`
	TargetSchema  string        `db:"target_schema"`
	TargetTable   string        `db:"target_table"`
	TargetID      string        `db:"target_id"`
	PerformedBy   string        `db:"performed_by"`
	OldValue      []byte        `db:"old_value"` // JSONB, nil for INSERT
	NewValue      []byte        `db:"new_value"` // JSONB, nil for DELETE
	AttestationID *uuid.UUID    `db:"attestation_id"`
	SourceType    SourceType    `db:"source_type"`
	Reason        string        `db:"reason"`
	Metadata      []byte        `db:"metadata"` // JSONB
	LoggedAt      time.Time     `db:"logged_at"`
}

// AttestationRecord verifies the provenance of one signal's source data,
// written once per signal_id (spec.md §4.12: deduplicated by signal_id).
type AttestationRecord struct {
	ID                 uuid.UUID  `db:"id"`
	SignalID           string     `db:"signal_id"`
	SourceType         SourceType `db:"source_type"`
	VerificationMethod string     `db:"verification_method"`
	ResponseSampleHash string     `db:"response_sample_hash"`
	AttestedAt         time.Time  `db:"attested_at"`
}
