package domain

import "time"

// SignalEvent is the ledger record: an OmenSignal plus the metadata the
// writer stamps on at append time. Immutable once written.
type SignalEvent struct {
	Signal           OmenSignal `json:"signal"`
	InputEventHash   string     `json:"input_event_hash"`
	EmittedAt        time.Time  `json:"emitted_at"`
	LedgerPartition  string     `json:"ledger_partition,omitempty"`
	LedgerSequence   int64      `json:"ledger_sequence,omitempty"`
	LedgerWrittenAt  time.Time  `json:"ledger_written_at,omitempty"`
}

// SignalID is a convenience accessor mirroring the embedded signal's id.
func (e SignalEvent) SignalID() string { return e.Signal.SignalID }

// WithLedgerMetadata returns a copy annotated with partition/sequence/
// written-at, the way the writer stamps a record during append.
func (e SignalEvent) WithLedgerMetadata(partition string, sequence int64, writtenAt time.Time) SignalEvent {
	e.LedgerPartition = partition
	e.LedgerSequence = sequence
	e.LedgerWrittenAt = writtenAt
	return e
}
