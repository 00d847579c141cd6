package ledger

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// SegmentInfo describes one sealed segment as recorded in a partition's
// manifest, field-for-field per spec.md §6
// (`segments[{file, record_count, size_bytes, checksum:"crc32:<8-hex>"}]`).
type SegmentInfo struct {
	File        string `json:"file"`
	RecordCount int    `json:"record_count"`
	SizeBytes   int64  `json:"size_bytes"`
	Checksum    string `json:"checksum"`
}

// Manifest is the durable summary written at _manifest.json when a
// partition is sealed (spec.md §4.8, §6).
type Manifest struct {
	SchemaVersion     string        `json:"schema_version"`
	PartitionDate     string        `json:"partition_date"`
	SealedAt          time.Time     `json:"sealed_at"`
	TotalRecords      int           `json:"total_records"`
	HighwaterSequence int64         `json:"highwater_sequence"`
	ManifestRevision  int           `json:"manifest_revision"`
	Segments          []SegmentInfo `json:"segments"`
	IsLatePartition   bool          `json:"is_late_partition"`
}

// segmentChecksum reads a sealed segment file and returns its record count
// (number of fully-framed records, tolerating a truncated tail the same way
// Reader.readSegment does) and its whole-file CRC32 in the
// spec-mandated "crc32:<8-hex>" form.
func segmentChecksum(path string) (recordCount int, checksum string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, "", err
	}
	checksum = fmt.Sprintf("crc32:%08x", crc32.ChecksumIEEE(data))

	br := bufio.NewReader(bytes.NewReader(data))
	for {
		_, ferr := readFrame(br, false)
		switch {
		case errors.Is(ferr, io.EOF), errors.Is(ferr, io.ErrUnexpectedEOF):
			return recordCount, checksum, nil
		case ferr != nil:
			return 0, "", ferr
		}
		recordCount++
	}
}

// atomicWriteFile writes data under dir/name durably: a temp file in the
// same directory, fsynced, then renamed over the target, then the parent
// directory itself is fsynced. On filesystems that can't fsync a directory
// (non-POSIX) the rename still lands; only the directory fsync is best-effort,
// and its failure is logged rather than returned (spec.md §4.8).
func atomicWriteFile(dir, name string, data []byte, perm os.FileMode, log zerolog.Logger) error {
	tmpPath := filepath.Join(dir, name+".tmp")
	target := filepath.Join(dir, name)

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return err
	}

	dirFile, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer dirFile.Close()
	if err := dirFile.Sync(); err != nil {
		log.Warn().Err(err).Str("dir", dir).Str("file", name).
			Msg("ledger: durability degraded, cannot fsync partition directory")
	}
	return nil
}

// sealSegmentFile makes a completed WAL segment immutable where the
// filesystem supports it. chmod failures are logged, not fatal — the
// segment is functionally sealed by the manifest regardless.
func sealSegmentFile(path string, log zerolog.Logger) {
	if err := os.Chmod(path, 0o444); err != nil {
		log.Warn().Err(err).Str("segment", path).Msg("ledger: could not chmod segment read-only")
	}
}
