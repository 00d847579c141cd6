package ledger

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoangpro267200/omen/internal/domain"
)

func testSignalEvent(id string, emittedAt time.Time) domain.SignalEvent {
	return domain.SignalEvent{
		Signal: domain.OmenSignal{
			SignalID:      id,
			SourceEventID: "evt-" + id,
			TraceID:       "trace-" + id,
			Title:         "Red Sea shipping disruption",
			Category:      domain.CategoryGeopolitical,
		},
		InputEventHash: "hash-" + id,
		EmittedAt:      emittedAt,
	}
}

func TestWriter_WriteAnnotatesLedgerMetadataAndIsMonotonic(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, zerolog.Nop())
	require.NoError(t, err)

	now := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	a, err := w.Write(context.Background(), testSignalEvent("s1", now))
	require.NoError(t, err)
	b, err := w.Write(context.Background(), testSignalEvent("s2", now))
	require.NoError(t, err)

	assert.Equal(t, "2026-07-31", a.LedgerPartition)
	assert.Equal(t, "2026-07-31", b.LedgerPartition)
	assert.Less(t, a.LedgerSequence, b.LedgerSequence)
	assert.False(t, a.LedgerWrittenAt.IsZero())
}

func TestWriter_ReadPartitionRoundTrips(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, zerolog.Nop())
	require.NoError(t, err)

	now := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	_, err = w.Write(context.Background(), testSignalEvent("s1", now))
	require.NoError(t, err)
	_, err = w.Write(context.Background(), testSignalEvent("s2", now))
	require.NoError(t, err)
	require.NoError(t, w.FlushAndClose())

	r := NewReader(dir, zerolog.Nop())
	events, err := r.ReadPartition("2026-07-31", true, false)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "s1", events[0].SignalID())
	assert.Equal(t, "s2", events[1].SignalID())
}

func TestSealPartition_WritesManifestAndSealedMarker(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, zerolog.Nop())
	require.NoError(t, err)

	now := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	_, err = w.Write(context.Background(), testSignalEvent("s1", now))
	require.NoError(t, err)

	require.NoError(t, w.SealPartition(context.Background(), "2026-07-31"))

	r := NewReader(dir, zerolog.Nop())
	assert.True(t, r.IsPartitionSealed("2026-07-31"))

	highwater, revision, err := r.GetPartitionHighwater("2026-07-31")
	require.NoError(t, err)
	assert.Equal(t, 1, revision)
	assert.Greater(t, highwater, int64(0))

	raw, err := os.ReadFile(filepath.Join(dir, "2026-07-31", manifestFile))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"schema_version": "1.0.0"`)

	var manifest Manifest
	require.NoError(t, json.Unmarshal(raw, &manifest))
	assert.Equal(t, "1.0.0", manifest.SchemaVersion)
	require.Len(t, manifest.Segments, 1)
	seg := manifest.Segments[0]
	assert.Equal(t, 1, seg.RecordCount)
	assert.Greater(t, seg.SizeBytes, int64(0))
	assert.Regexp(t, regexp.MustCompile(`^crc32:[0-9a-f]{8}$`), seg.Checksum)
}

func TestWriter_LateArrivalPromotesPartitionAfterSeal(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, zerolog.Nop())
	require.NoError(t, err)

	day := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	_, err = w.Write(context.Background(), testSignalEvent("s1", day))
	require.NoError(t, err)
	require.NoError(t, w.SealPartition(context.Background(), "2026-07-31"))

	late, err := w.Write(context.Background(), testSignalEvent("s2", day))
	require.NoError(t, err)
	assert.Equal(t, "2026-07-31-late", late.LedgerPartition)

	r := NewReader(dir, zerolog.Nop())
	all, err := r.ReadPartition("2026-07-31", true, true)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestReader_TruncatedTailIsIgnoredNotFatal(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, zerolog.Nop())
	require.NoError(t, err)

	now := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	_, err = w.Write(context.Background(), testSignalEvent("s1", now))
	require.NoError(t, err)
	require.NoError(t, w.FlushAndClose())

	segPath := filepath.Join(dir, "2026-07-31", "signals-001.wal")
	f, err := os.OpenFile(segPath, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.Write([]byte{0x00, 0x00, 0x00, 0x10, 0x00, 0x00}) // partial frame header
	require.NoError(t, err)
	require.NoError(t, f.Close())

	r := NewReader(dir, zerolog.Nop())
	events, err := r.ReadPartition("2026-07-31", true, false)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "s1", events[0].SignalID())
}

func TestWriter_SegmentRolloverAtRecordCap(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, zerolog.Nop())
	require.NoError(t, err)
	w.maxSegmentRecords = 2

	now := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := w.Write(context.Background(), testSignalEvent(string(rune('a'+i)), now))
		require.NoError(t, err)
	}
	require.NoError(t, w.FlushAndClose())

	entries, err := os.ReadDir(filepath.Join(dir, "2026-07-31"))
	require.NoError(t, err)
	segCount := 0
	for _, e := range entries {
		if _, ok := parseSegmentOrdinal(e.Name()); ok {
			segCount++
		}
	}
	assert.Equal(t, 3, segCount) // 2+2+1 records across 3 segments of cap 2

	r := NewReader(dir, zerolog.Nop())
	events, err := r.ReadPartition("2026-07-31", true, false)
	require.NoError(t, err)
	require.Len(t, events, 5)
}

func TestWriter_FindByInputHashDedupesAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, zerolog.Nop())
	require.NoError(t, err)

	now := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	written, err := w.Write(context.Background(), testSignalEvent("s1", now))
	require.NoError(t, err)

	_, found, err := w.FindByInputHash(context.Background(), written.InputEventHash)
	require.NoError(t, err)
	assert.True(t, found)
	require.NoError(t, w.FlushAndClose())

	restarted, err := NewWriter(dir, zerolog.Nop())
	require.NoError(t, err)
	_, found, err = restarted.FindByInputHash(context.Background(), written.InputEventHash)
	require.NoError(t, err)
	assert.False(t, found, "a fresh writer has not hydrated yet")

	require.NoError(t, restarted.Hydrate(NewReader(dir, zerolog.Nop())))
	_, found, err = restarted.FindByInputHash(context.Background(), written.InputEventHash)
	require.NoError(t, err)
	assert.True(t, found, "hydrate should recover the hash index from disk")
}

func TestReader_QueryByCategoryFiltersByDateRangeAndCategory(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, zerolog.Nop())
	require.NoError(t, err)

	day1 := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC)
	_, err = w.Write(context.Background(), testSignalEvent("s1", day1))
	require.NoError(t, err)
	_, err = w.Write(context.Background(), testSignalEvent("s2", day2))
	require.NoError(t, err)
	require.NoError(t, w.FlushAndClose())

	r := NewReader(dir, zerolog.Nop())
	events, err := r.QueryByCategory(domain.CategoryGeopolitical, "2026-07-31", "2026-07-31")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "s2", events[0].SignalID())
}
