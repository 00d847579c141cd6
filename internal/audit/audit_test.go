package audit

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockLogger(t *testing.T) (*Logger, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	sqlxDB := sqlx.NewDb(mockDB, "postgres")
	return NewLogger(sqlxDB, time.Second), mock
}

func TestLogger_LogInsertWritesOperationLogRow(t *testing.T) {
	logger, mock := newMockLogger(t)

	mock.ExpectExec("INSERT INTO audit.operation_log").
		WillReturnResult(sqlmock.NewResult(0, 1))

	entry, err := logger.LogInsert(context.Background(), WriteParams{
		TargetSchema: "live",
		TargetTable:  "signals",
		TargetID:     "sig_1",
		NewValue:     map[string]string{"title": "Red Sea disruption"},
		SourceType:   SourceReal,
	})
	require.NoError(t, err)
	assert.Equal(t, OperationInsert, entry.OperationType)
	assert.Equal(t, "Signal ingestion", entry.Reason)
	assert.NotEmpty(t, entry.OperationID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogger_LogDeleteDefaultsReasonAndPerformedBy(t *testing.T) {
	logger, mock := newMockLogger(t)

	mock.ExpectExec("INSERT INTO audit.operation_log").
		WillReturnResult(sqlmock.NewResult(0, 1))

	entry, err := logger.LogDelete(context.Background(), WriteParams{
		TargetSchema: "live",
		TargetTable:  "signals",
		TargetID:     "sig_1",
		OldValue:     map[string]string{"title": "stale"},
	})
	require.NoError(t, err)
	assert.Equal(t, OperationDelete, entry.OperationType)
	assert.Equal(t, "system", entry.PerformedBy)
	assert.Equal(t, "Signal deletion", entry.Reason)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogger_WritePropagatesExecError(t *testing.T) {
	logger, mock := newMockLogger(t)

	mock.ExpectExec("INSERT INTO audit.operation_log").
		WillReturnError(assert.AnError)

	_, err := logger.LogInsert(context.Background(), WriteParams{
		TargetSchema: "live", TargetTable: "signals", TargetID: "sig_1",
	})
	assert.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttestationStore_AttestIsDedupedBySignalID(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()
	sqlxDB := sqlx.NewDb(mockDB, "postgres")
	store := NewAttestationStore(sqlxDB, time.Second)

	noRows := sqlmock.NewRows([]string{"id", "signal_id", "source_type", "verification_method", "response_sample_hash", "attested_at"})
	mock.ExpectQuery("SELECT .* FROM audit.signal_attestation").WillReturnRows(noRows)
	mock.ExpectExec("INSERT INTO audit.signal_attestation").WillReturnResult(sqlmock.NewResult(0, 1))

	existingRows := sqlmock.NewRows([]string{"id", "signal_id", "source_type", "verification_method", "response_sample_hash", "attested_at"}).
		AddRow("00000000-0000-0000-0000-000000000001", "sig_1", "REAL", "checksum_compare", HashSample([]byte("sample")), time.Now().UTC())
	mock.ExpectQuery("SELECT .* FROM audit.signal_attestation").WillReturnRows(existingRows)

	record, err := store.Attest(context.Background(), "sig_1", SourceReal, "checksum_compare", []byte("sample"))
	require.NoError(t, err)
	assert.Equal(t, "sig_1", record.SignalID)
	assert.Equal(t, HashSample([]byte("sample")), record.ResponseSampleHash)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttestationStore_AttestReturnsExistingWithoutReinsert(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()
	sqlxDB := sqlx.NewDb(mockDB, "postgres")
	store := NewAttestationStore(sqlxDB, time.Second)

	existingRows := sqlmock.NewRows([]string{"id", "signal_id", "source_type", "verification_method", "response_sample_hash", "attested_at"}).
		AddRow("00000000-0000-0000-0000-000000000001", "sig_1", "REAL", "checksum_compare", "deadbeef", time.Now().UTC())
	mock.ExpectQuery("SELECT .* FROM audit.signal_attestation").WillReturnRows(existingRows)

	record, err := store.Attest(context.Background(), "sig_1", SourceReal, "checksum_compare", []byte("sample"))
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", record.ResponseSampleHash, "existing attestation must not be overwritten")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHashSample_IsDeterministic(t *testing.T) {
	a := HashSample([]byte("payload"))
	b := HashSample([]byte("payload"))
	c := HashSample([]byte("different"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
