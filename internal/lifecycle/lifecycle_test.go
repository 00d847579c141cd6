package lifecycle

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoangpro267200/omen/internal/domain"
	"github.com/hoangpro267200/omen/internal/ledger"
)

func testSignalEvent(id string, emittedAt time.Time) domain.SignalEvent {
	return domain.SignalEvent{
		Signal: domain.OmenSignal{
			SignalID:      id,
			SourceEventID: "evt-" + id,
			Category:      domain.CategoryGeopolitical,
		},
		InputEventHash: "hash-" + id,
		EmittedAt:      emittedAt,
	}
}

func TestManager_SweepSealsCompressesAndArchivesOldPartition(t *testing.T) {
	base := t.TempDir()
	archiveDir := t.TempDir()

	w, err := ledger.NewWriter(base, zerolog.Nop())
	require.NoError(t, err)

	old := time.Date(2020, 1, 1, 9, 0, 0, 0, time.UTC)
	_, err = w.Write(context.Background(), testSignalEvent("s1", old))
	require.NoError(t, err)
	require.NoError(t, w.FlushAndClose())

	cfg := Config{
		AutoSealAfterHours: 1,
		SealGraceHours:     0,
		LateSealAfterDays:  1,
		CompressAfterDays:  1,
		ColdRetentionDays:  2,
		DeleteAfterDays:    0, // disabled for this test
		ArchiveDir:         archiveDir,
		Interval:           time.Hour,
	}
	m := New(base, w, cfg, zerolog.Nop())

	report := m.Sweep(context.Background())
	require.Empty(t, report.Errors)
	assert.Contains(t, report.Sealed, "2020-01-01")
	assert.Contains(t, report.Compressed, "2020-01-01")
	assert.Contains(t, report.Archived, "2020-01-01")

	_, err = os.Stat(filepath.Join(base, "2020-01-01"))
	assert.True(t, os.IsNotExist(err), "archived partition should be removed from the live base dir")

	archivePath := filepath.Join(archiveDir, "2020-01-01.tar.gz")
	info, err := os.Stat(archivePath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestManager_SweepCompressesSealedSegmentInPlace(t *testing.T) {
	base := t.TempDir()

	w, err := ledger.NewWriter(base, zerolog.Nop())
	require.NoError(t, err)

	old := time.Date(2020, 6, 1, 9, 0, 0, 0, time.UTC)
	_, err = w.Write(context.Background(), testSignalEvent("s1", old))
	require.NoError(t, err)
	require.NoError(t, w.SealPartition(context.Background(), "2020-06-01"))

	cfg := Config{
		AutoSealAfterHours: 1,
		SealGraceHours:     0,
		LateSealAfterDays:  1,
		CompressAfterDays:  1,
		ColdRetentionDays:  10_000, // keep archiving from firing in this test
		DeleteAfterDays:    0,
		Interval:           time.Hour,
	}
	m := New(base, w, cfg, zerolog.Nop())

	report := m.Sweep(context.Background())
	require.Empty(t, report.Errors)
	assert.Contains(t, report.Compressed, "2020-06-01")
	assert.NotContains(t, report.Archived, "2020-06-01")

	dir := filepath.Join(base, "2020-06-01")
	_, err = os.Stat(filepath.Join(dir, "signals-001.wal"))
	assert.True(t, os.IsNotExist(err), "original segment should be removed after compression")
	info, err := os.Stat(filepath.Join(dir, "signals-001.wal.gz"))
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestManager_SweepDeletesExpiredArchive(t *testing.T) {
	base := t.TempDir()
	archiveDir := t.TempDir()

	w, err := ledger.NewWriter(base, zerolog.Nop())
	require.NoError(t, err)

	old := time.Date(2019, 3, 1, 9, 0, 0, 0, time.UTC)
	_, err = w.Write(context.Background(), testSignalEvent("s1", old))
	require.NoError(t, err)
	require.NoError(t, w.FlushAndClose())

	archiveOnlyCfg := Config{
		AutoSealAfterHours: 1, SealGraceHours: 0, LateSealAfterDays: 1,
		CompressAfterDays: 1, ColdRetentionDays: 2, DeleteAfterDays: 0,
		ArchiveDir: archiveDir, Interval: time.Hour,
	}
	first := New(base, w, archiveOnlyCfg, zerolog.Nop())
	report := first.Sweep(context.Background())
	require.Empty(t, report.Errors)
	require.Contains(t, report.Archived, "2019-03-01")

	deleteCfg := archiveOnlyCfg
	deleteCfg.DeleteAfterDays = 3
	second := New(base, w, deleteCfg, zerolog.Nop())
	report = second.Sweep(context.Background())
	require.Empty(t, report.Errors)
	assert.Contains(t, report.Deleted, "2019-03-01")

	_, err = os.Stat(filepath.Join(archiveDir, "2019-03-01.tar.gz"))
	assert.True(t, os.IsNotExist(err), "expired archive file should be removed")
}

func TestManager_SweepSkipsRecentPartition(t *testing.T) {
	base := t.TempDir()

	w, err := ledger.NewWriter(base, zerolog.Nop())
	require.NoError(t, err)

	today := time.Now().UTC()
	_, err = w.Write(context.Background(), testSignalEvent("s1", today))
	require.NoError(t, err)
	require.NoError(t, w.FlushAndClose())

	cfg := DefaultConfig(t.TempDir())
	m := New(base, w, cfg, zerolog.Nop())

	report := m.Sweep(context.Background())
	require.Empty(t, report.Errors)
	assert.Empty(t, report.Sealed)
	assert.Empty(t, report.Compressed)
	assert.Empty(t, report.Archived)
	assert.Empty(t, report.Deleted)
}
