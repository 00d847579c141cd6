package ledger

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hoangpro267200/omen/internal/domain"
)

// Reader serves read-only queries over a ledger directory tree. It never
// holds a partition lock: writes and reads coexist, with the reader's
// frame loop tolerating an in-progress append as a truncated tail.
type Reader struct {
	basePath string
	log      zerolog.Logger
}

// NewReader opens a read-only view over a ledger rooted at basePath.
func NewReader(basePath string, log zerolog.Logger) *Reader {
	return &Reader{basePath: basePath, log: log.With().Str("component", "ledger_reader").Logger()}
}

// ListPartitions returns every partition directory name (including any
// "-late" partitions), sorted.
func (r *Reader) ListPartitions() ([]string, error) {
	entries, err := os.ReadDir(r.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// IsPartitionSealed reports whether the named partition carries a _SEALED marker.
func (r *Reader) IsPartitionSealed(date string) bool {
	return fileExists(filepath.Join(r.basePath, date, sealedMarkerFile))
}

// ReadPartition replays every segment of date in order, optionally
// including its "-late" companion after the main partition's records.
// validate turns on per-frame CRC checking (skip-and-continue on mismatch);
// either way a truncated tail ends the scan cleanly (spec.md §4.8).
func (r *Reader) ReadPartition(date string, validate bool, includeLate bool) ([]domain.SignalEvent, error) {
	var out []domain.SignalEvent

	dirs := []string{filepath.Join(r.basePath, date)}
	if includeLate {
		lateDir := filepath.Join(r.basePath, date+latePartitionSuffix)
		if fileExists(lateDir) {
			dirs = append(dirs, lateDir)
		}
	}

	for _, dir := range dirs {
		events, err := r.readDir(dir, validate)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		out = append(out, events...)
	}
	return out, nil
}

func (r *Reader) readDir(dir string, validate bool) ([]domain.SignalEvent, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	type ordinalEntry struct {
		ordinal int
		name    string
	}
	var segs []ordinalEntry
	for _, e := range entries {
		if n, ok := parseSegmentOrdinal(e.Name()); ok {
			segs = append(segs, ordinalEntry{ordinal: n, name: e.Name()})
		}
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i].ordinal < segs[j].ordinal })

	var out []domain.SignalEvent
	for _, seg := range segs {
		events, err := r.readSegment(filepath.Join(dir, seg.name), validate)
		if err != nil {
			return nil, err
		}
		out = append(out, events...)
	}
	return out, nil
}

func (r *Reader) readSegment(path string, validate bool) ([]domain.SignalEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []domain.SignalEvent
	br := bufio.NewReader(f)
	truncatedLogged := false
	for {
		payload, ferr := readFrame(br, validate)
		switch {
		case errors.Is(ferr, io.EOF):
			return out, nil
		case errors.Is(ferr, io.ErrUnexpectedEOF):
			if !truncatedLogged {
				r.log.Warn().Str("segment", path).Msg("ledger: truncated tail frame, treating as clean end")
				truncatedLogged = true
			}
			return out, nil
		case errors.Is(ferr, errCRCMismatch):
			r.log.Warn().Str("segment", path).Msg("ledger: frame checksum mismatch, skipping record")
			continue
		case ferr != nil:
			return nil, ferr
		}

		var event domain.SignalEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			r.log.Warn().Err(err).Str("segment", path).Msg("ledger: malformed record, skipping")
			continue
		}
		out = append(out, event)
	}
}

// GetSignal looks up one signal by id within date's partition(s).
func (r *Reader) GetSignal(date, signalID string) (domain.SignalEvent, bool, error) {
	events, err := r.ReadPartition(date, true, true)
	if err != nil {
		return domain.SignalEvent{}, false, err
	}
	for _, e := range events {
		if e.SignalID() == signalID {
			return e, true, nil
		}
	}
	return domain.SignalEvent{}, false, nil
}

// QueryByTimeRange scans every partition whose date falls within
// [start, end] (inclusive, by UTC date) and returns records whose
// emitted_at falls within the exact timestamps.
func (r *Reader) QueryByTimeRange(start, end time.Time) ([]domain.SignalEvent, error) {
	startDate := start.UTC().Format(partitionDateLayout)
	endDate := end.UTC().Format(partitionDateLayout)

	partitions, err := r.ListPartitions()
	if err != nil {
		return nil, err
	}

	var out []domain.SignalEvent
	for _, p := range partitions {
		base := strings.TrimSuffix(p, latePartitionSuffix)
		if base < startDate || base > endDate {
			continue
		}
		events, err := r.readDir(filepath.Join(r.basePath, p), true)
		if err != nil {
			return nil, err
		}
		for _, e := range events {
			if !e.EmittedAt.Before(start) && !e.EmittedAt.After(end) {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

// QueryByTraceIDs scans every partition for records whose trace_id is in ids.
func (r *Reader) QueryByTraceIDs(ids []string) ([]domain.SignalEvent, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	partitions, err := r.ListPartitions()
	if err != nil {
		return nil, err
	}

	var out []domain.SignalEvent
	for _, p := range partitions {
		events, err := r.readDir(filepath.Join(r.basePath, p), true)
		if err != nil {
			return nil, err
		}
		for _, e := range events {
			if want[e.Signal.TraceID] {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

// QueryByCategory scans partitions in [startDate, endDate] (UTC-date
// strings, YYYY-MM-DD) for records in the given category.
func (r *Reader) QueryByCategory(cat domain.Category, startDate, endDate string) ([]domain.SignalEvent, error) {
	partitions, err := r.ListPartitions()
	if err != nil {
		return nil, err
	}

	var out []domain.SignalEvent
	for _, p := range partitions {
		base := strings.TrimSuffix(p, latePartitionSuffix)
		if base < startDate || base > endDate {
			continue
		}
		events, err := r.readDir(filepath.Join(r.basePath, p), true)
		if err != nil {
			return nil, err
		}
		for _, e := range events {
			if e.Signal.Category == cat {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

// GetPartitionHighwater returns the partition's highest ledger_sequence and
// its manifest revision. Sealed partitions answer from _manifest.json;
// unsealed ones are computed live by scanning every segment, with a
// manifest_revision of 0 signaling "no manifest yet".
func (r *Reader) GetPartitionHighwater(date string) (int64, int, error) {
	dir := filepath.Join(r.basePath, date)

	if r.IsPartitionSealed(date) {
		data, err := os.ReadFile(filepath.Join(dir, manifestFile))
		if err != nil {
			return 0, 0, err
		}
		var m Manifest
		if err := json.Unmarshal(data, &m); err != nil {
			return 0, 0, fmt.Errorf("ledger: parse manifest for %s: %w", date, err)
		}
		return m.HighwaterSequence, m.ManifestRevision, nil
	}

	events, err := r.readDir(dir, false)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, nil
		}
		return 0, 0, err
	}
	var highwater int64
	for _, e := range events {
		if e.LedgerSequence > highwater {
			highwater = e.LedgerSequence
		}
	}
	return highwater, 0, nil
}
