package lifecycle

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// deleteExpired removes anything older than delete_after_days, in either
// the live base directory or the archive directory. Disabled when
// delete_after_days is 0 (spec.md §4.10).
func (m *Manager) deleteExpired(partitions []string, report *SweepReport) {
	if m.cfg.DeleteAfterDays <= 0 {
		return
	}
	threshold := time.Duration(m.cfg.DeleteAfterDays) * 24 * time.Hour

	for _, name := range partitions {
		date, ok := partitionDate(name)
		if !ok {
			continue
		}
		if time.Since(date) < threshold {
			continue
		}

		dir := filepath.Join(m.basePath, name)
		if fileExists(dir) {
			if err := os.RemoveAll(dir); err != nil {
				report.Errors[name] = err
				continue
			}
			report.Deleted = append(report.Deleted, name)
		}
	}

	if m.cfg.ArchiveDir == "" {
		return
	}
	entries, err := os.ReadDir(m.cfg.ArchiveDir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".tar.gz")
		if name == e.Name() {
			continue
		}
		date, ok := partitionDate(name)
		if !ok {
			continue
		}
		if time.Since(date) < threshold {
			continue
		}
		path := filepath.Join(m.cfg.ArchiveDir, e.Name())
		if err := os.Remove(path); err != nil {
			report.Errors[name] = err
			continue
		}
		report.Deleted = append(report.Deleted, name)
	}
}
