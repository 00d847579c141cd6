package audit

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// AttestationStore writes and reads source-attestation records. Exactly
// one attestation is kept per signal_id — a second call for the same
// signal is a no-op, returning the existing record (spec.md §4.12).
type AttestationStore struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewAttestationStore wraps an already-open connection pool.
func NewAttestationStore(db *sqlx.DB, timeout time.Duration) *AttestationStore {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AttestationStore{db: db, timeout: timeout}
}

// HashSample returns a deterministic hex-encoded SHA-256 digest of a raw
// source API response sample, the attestation's "what did we actually see"
// evidence.
func HashSample(sample []byte) string {
	sum := sha256.Sum256(sample)
	return hex.EncodeToString(sum[:])
}

// Attest records verificationMethod and a hash of responseSample against
// signalID, deduplicated by signal_id: if an attestation already exists
// for this signal, it is returned unchanged rather than overwritten.
func (s *AttestationStore) Attest(ctx context.Context, signalID string, sourceType SourceType, verificationMethod string, responseSample []byte) (AttestationRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if existing, found, err := s.get(ctx, signalID); err != nil {
		return AttestationRecord{}, err
	} else if found {
		return existing, nil
	}

	record := AttestationRecord{
		ID:                 uuid.New(),
		SignalID:           signalID,
		SourceType:         sourceType,
		VerificationMethod: verificationMethod,
		ResponseSampleHash: HashSample(responseSample),
		AttestedAt:         time.Now().UTC(),
	}

	const query = `
		INSERT INTO audit.signal_attestation (
			id, signal_id, source_type, verification_method,
			response_sample_hash, attested_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (signal_id) DO NOTHING`

	if _, err := s.db.ExecContext(ctx, query,
		record.ID, record.SignalID, record.SourceType,
		record.VerificationMethod, record.ResponseSampleHash, record.AttestedAt,
	); err != nil {
		return AttestationRecord{}, fmt.Errorf("audit: write attestation: %w", err)
	}

	// A concurrent writer may have inserted first; the row we actually
	// committed (ours or theirs) is the one that sticks either way.
	existing, found, err := s.get(ctx, signalID)
	if err != nil {
		return AttestationRecord{}, err
	}
	if !found {
		return AttestationRecord{}, fmt.Errorf("audit: attestation for %s missing after insert", signalID)
	}
	return existing, nil
}

// get looks up the attestation for signalID, if any.
func (s *AttestationStore) get(ctx context.Context, signalID string) (AttestationRecord, bool, error) {
	const query = `
		SELECT id, signal_id, source_type, verification_method,
		       response_sample_hash, attested_at
		FROM audit.signal_attestation
		WHERE signal_id = $1`

	var record AttestationRecord
	err := s.db.QueryRowxContext(ctx, query, signalID).Scan(
		&record.ID, &record.SignalID, &record.SourceType,
		&record.VerificationMethod, &record.ResponseSampleHash, &record.AttestedAt,
	)
	if err == sql.ErrNoRows {
		return AttestationRecord{}, false, nil
	}
	if err != nil {
		return AttestationRecord{}, false, fmt.Errorf("audit: lookup attestation for %s: %w", signalID, err)
	}
	return record, true, nil
}
