package ledger

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"

	"github.com/hoangpro267200/omen/internal/domain"
	"github.com/hoangpro267200/omen/internal/errkind"
)

type segmentState struct {
	ordinal int
	path    string
	file    *os.File
	writer  *bufio.Writer
	size    int64
	records int
}

type partitionState struct {
	mu                sync.Mutex
	name              string // e.g. "2026-07-31" or "2026-07-31-late"
	dir               string
	lock              *flock.Flock
	current           *segmentState
	totalRecords      int
	highwaterSequence int64
	sealed            bool
}

// Writer is the single in-process owner of every open partition's WAL
// segment. Cross-process exclusivity on a partition is enforced by an
// flock-based _LOCK file; in-process exclusivity on that same partition is
// enforced by partitionState's own mutex.
type Writer struct {
	basePath string
	log      zerolog.Logger

	mu         sync.Mutex
	partitions map[string]*partitionState

	maxSegmentBytes   int64
	maxSegmentRecords int

	hashMu    sync.RWMutex
	hashIndex map[string]domain.SignalEvent
}

// NewWriter opens a ledger rooted at basePath, creating it if missing.
func NewWriter(basePath string, log zerolog.Logger) (*Writer, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create ledger base dir: %v", errkind.ErrPersistence, err)
	}
	return &Writer{
		basePath:          basePath,
		log:               log.With().Str("component", "ledger_writer").Logger(),
		partitions:        make(map[string]*partitionState),
		maxSegmentBytes:   MaxSegmentSizeBytes,
		maxSegmentRecords: MaxSegmentRecords,
		hashIndex:         make(map[string]domain.SignalEvent),
	}, nil
}

// Hydrate replays every partition through reader to rebuild the in-memory
// input_event_hash index dedupe relies on, so a restarted process doesn't
// re-emit signals it already durably wrote before the restart.
func (w *Writer) Hydrate(reader *Reader) error {
	partitions, err := reader.ListPartitions()
	if err != nil {
		return err
	}
	w.hashMu.Lock()
	defer w.hashMu.Unlock()
	for _, p := range partitions {
		if isLatePartition(p) {
			continue // covered by its base date's ReadPartition(..., includeLate=true)
		}
		events, err := reader.ReadPartition(p, false, true)
		if err != nil {
			return fmt.Errorf("%w: hydrate partition %s: %v", errkind.ErrPersistence, p, err)
		}
		for _, e := range events {
			w.hashIndex[e.InputEventHash] = e
		}
	}
	return nil
}

// FindByInputHash satisfies pipeline.Repository: a dedupe lookup against
// every signal this writer has durably recorded, either this process
// lifetime or hydrated from disk at startup.
func (w *Writer) FindByInputHash(ctx context.Context, hash string) (domain.SignalEvent, bool, error) {
	w.hashMu.RLock()
	defer w.hashMu.RUnlock()
	event, ok := w.hashIndex[hash]
	return event, ok, nil
}

func (w *Writer) recordHash(event domain.SignalEvent) {
	w.hashMu.Lock()
	w.hashIndex[event.InputEventHash] = event
	w.hashMu.Unlock()
}

// Write appends event to its UTC-date partition, annotating it with
// ledger_partition, ledger_sequence, and ledger_written_at, per the write
// algorithm in spec.md §4.8.
func (w *Writer) Write(ctx context.Context, event domain.SignalEvent) (domain.SignalEvent, error) {
	date := event.EmittedAt.UTC().Format(partitionDateLayout)

	ps, err := w.openPartition(ctx, date)
	if err != nil {
		return domain.SignalEvent{}, err
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.sealed {
		return domain.SignalEvent{}, fmt.Errorf("%w: partition %s is sealed", errkind.ErrPersistence, ps.name)
	}

	recordIndex := ps.current.records + 1
	ledgerSequence := int64(ps.current.ordinal)<<32 | int64(recordIndex)

	annotated := event.WithLedgerMetadata(ps.name, ledgerSequence, time.Now().UTC())

	payload, err := json.Marshal(annotated)
	if err != nil {
		return domain.SignalEvent{}, fmt.Errorf("%w: marshal signal event: %v", errkind.ErrPersistence, err)
	}

	n, err := writeFrame(ps.current.writer, payload)
	if err != nil {
		return domain.SignalEvent{}, fmt.Errorf("%w: write frame: %v", errkind.ErrPersistence, err)
	}
	if err := ps.current.writer.Flush(); err != nil {
		return domain.SignalEvent{}, fmt.Errorf("%w: flush segment: %v", errkind.ErrPersistence, err)
	}
	if err := ps.current.file.Sync(); err != nil {
		return domain.SignalEvent{}, fmt.Errorf("%w: fsync segment: %v", errkind.ErrPersistence, err)
	}

	ps.current.size += int64(n)
	ps.current.records = recordIndex
	ps.totalRecords++
	ps.highwaterSequence = ledgerSequence

	if ps.current.size >= w.maxSegmentBytes || ps.current.records >= w.maxSegmentRecords {
		if err := w.rollover(ps); err != nil {
			return annotated, fmt.Errorf("%w: segment rollover: %v", errkind.ErrPersistence, err)
		}
	}

	w.recordHash(annotated)
	return annotated, nil
}

// openPartition returns the partitionState for date, promoting to a
// "-late" partition if the plain date is already sealed, and refusing to
// promote twice (spec.md §9 Open Question (b)).
func (w *Writer) openPartition(ctx context.Context, date string) (*partitionState, error) {
	w.mu.Lock()
	if ps, ok := w.partitions[date]; ok {
		w.mu.Unlock()
		return ps, nil
	}
	w.mu.Unlock()

	dir := filepath.Join(w.basePath, date)
	name := date
	if fileExists(filepath.Join(dir, sealedMarkerFile)) {
		name = date + latePartitionSuffix
		dir = filepath.Join(w.basePath, name)
		if fileExists(filepath.Join(dir, sealedMarkerFile)) {
			return nil, fmt.Errorf("%w: partition %s already sealed as late, no further promotion", errkind.ErrPersistence, name)
		}
	}

	w.mu.Lock()
	if ps, ok := w.partitions[name]; ok {
		w.mu.Unlock()
		return ps, nil
	}
	w.mu.Unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create partition dir: %v", errkind.ErrPersistence, err)
	}

	lock := flock.New(filepath.Join(dir, lockFileName))
	locked, err := lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil || !locked {
		return nil, fmt.Errorf("%w: could not acquire partition lock for %s", errkind.ErrPersistence, name)
	}

	seg, err := w.openCurrentSegment(dir)
	if err != nil {
		lock.Unlock()
		return nil, err
	}

	ps := &partitionState{
		name:    name,
		dir:     dir,
		lock:    lock,
		current: seg,
	}

	w.mu.Lock()
	w.partitions[name] = ps
	w.mu.Unlock()
	return ps, nil
}

// openCurrentSegment resolves the _CURRENT pointer (creating both the
// pointer and the first segment if the partition is new) and opens that
// segment for append, recovering its record count and size so
// ledger_sequence stays monotonic across restarts.
func (w *Writer) openCurrentSegment(dir string) (*segmentState, error) {
	pointerPath := filepath.Join(dir, currentPointerFile)

	name := ""
	if data, err := os.ReadFile(pointerPath); err == nil {
		name = string(data)
	}
	if name == "" {
		ordinal := highestSegmentOrdinal(dir)
		if ordinal == 0 {
			ordinal = 1
		}
		name = segmentName(ordinal)
		if err := atomicWriteFile(dir, currentPointerFile, []byte(name), 0o644, w.log); err != nil {
			return nil, fmt.Errorf("%w: write _CURRENT pointer: %v", errkind.ErrPersistence, err)
		}
	}

	ordinal, ok := parseSegmentOrdinal(name)
	if !ok {
		return nil, fmt.Errorf("%w: malformed _CURRENT pointer %q", errkind.ErrPersistence, name)
	}

	path := filepath.Join(dir, name)
	records, size, err := recoverSegmentState(path)
	if err != nil {
		return nil, fmt.Errorf("%w: recover segment state: %v", errkind.ErrPersistence, err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: open segment: %v", errkind.ErrPersistence, err)
	}

	return &segmentState{
		ordinal: ordinal,
		path:    path,
		file:    file,
		writer:  bufio.NewWriter(file),
		size:    size,
		records: records,
	}, nil
}

// rollover seals the current segment once it's hit the size/record cap and
// opens the next one. Called with ps.mu already held.
func (w *Writer) rollover(ps *partitionState) error {
	if err := ps.current.file.Close(); err != nil {
		return err
	}
	sealSegmentFile(ps.current.path, w.log)

	next := segmentName(ps.current.ordinal + 1)
	if err := atomicWriteFile(ps.dir, currentPointerFile, []byte(next), 0o644, w.log); err != nil {
		return err
	}

	path := filepath.Join(ps.dir, next)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		return err
	}
	ps.current = &segmentState{
		ordinal: ps.current.ordinal + 1,
		path:    path,
		file:    file,
		writer:  bufio.NewWriter(file),
	}
	return nil
}

// SealPartition makes every segment in the named partition immutable and
// writes its _manifest.json and _SEALED marker. Subsequent writes for that
// date are promoted to a "-late" partition.
func (w *Writer) SealPartition(ctx context.Context, date string) error {
	ps, err := w.openPartition(ctx, date)
	if err != nil {
		return err
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.sealed {
		return nil
	}

	if err := ps.current.writer.Flush(); err != nil {
		return fmt.Errorf("%w: flush before seal: %v", errkind.ErrPersistence, err)
	}
	if err := ps.current.file.Sync(); err != nil {
		return fmt.Errorf("%w: fsync before seal: %v", errkind.ErrPersistence, err)
	}
	if err := ps.current.file.Close(); err != nil {
		return fmt.Errorf("%w: close before seal: %v", errkind.ErrPersistence, err)
	}
	sealSegmentFile(ps.current.path, w.log)

	entries, err := os.ReadDir(ps.dir)
	if err != nil {
		return fmt.Errorf("%w: list partition dir: %v", errkind.ErrPersistence, err)
	}
	var segments []SegmentInfo
	for _, e := range entries {
		if _, ok := parseSegmentOrdinal(e.Name()); !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		segPath := filepath.Join(ps.dir, e.Name())
		recordCount, checksum, err := segmentChecksum(segPath)
		if err != nil {
			return fmt.Errorf("%w: checksum segment %s: %v", errkind.ErrPersistence, e.Name(), err)
		}
		segments = append(segments, SegmentInfo{
			File:        e.Name(),
			RecordCount: recordCount,
			SizeBytes:   info.Size(),
			Checksum:    checksum,
		})
	}

	manifest := Manifest{
		SchemaVersion:     schemaVersion,
		PartitionDate:     ps.name,
		SealedAt:          time.Now().UTC(),
		TotalRecords:      ps.totalRecords,
		HighwaterSequence: ps.highwaterSequence,
		ManifestRevision:  1,
		Segments:          segments,
		IsLatePartition:   isLatePartition(ps.name),
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal manifest: %v", errkind.ErrPersistence, err)
	}
	if err := atomicWriteFile(ps.dir, manifestFile, data, 0o644, w.log); err != nil {
		return fmt.Errorf("%w: write manifest: %v", errkind.ErrPersistence, err)
	}
	if err := atomicWriteFile(ps.dir, sealedMarkerFile, []byte(manifest.SealedAt.Format(time.RFC3339)+"\n"), 0o444, w.log); err != nil {
		return fmt.Errorf("%w: write sealed marker: %v", errkind.ErrPersistence, err)
	}

	ps.sealed = true
	_ = ps.lock.Unlock()

	w.mu.Lock()
	delete(w.partitions, ps.name)
	w.mu.Unlock()
	return nil
}

// FlushAndClose fsyncs and closes every open segment and releases every
// held partition lock. Call on graceful shutdown.
func (w *Writer) FlushAndClose() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var firstErr error
	for name, ps := range w.partitions {
		ps.mu.Lock()
		if err := ps.current.writer.Flush(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := ps.current.file.Sync(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := ps.current.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		_ = ps.lock.Unlock()
		ps.mu.Unlock()
		delete(w.partitions, name)
	}
	return firstErr
}
