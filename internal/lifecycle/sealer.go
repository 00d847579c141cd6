package lifecycle

import (
	"context"
	"time"
)

// autoSeal seals every unsealed partition whose age has crossed its
// threshold: date + auto_seal_after_hours + seal_grace_hours for ordinary
// partitions, date + late_seal_after_days for "-late" partitions.
func (m *Manager) autoSeal(ctx context.Context, partitions []string, report *SweepReport) {
	for _, name := range partitions {
		if m.reader.IsPartitionSealed(name) {
			continue
		}

		date, ok := partitionDate(name)
		if !ok {
			report.Errors[name] = errUnparseableDate(name)
			continue
		}

		var threshold time.Duration
		if isLate(name) {
			threshold = time.Duration(m.cfg.LateSealAfterDays) * 24 * time.Hour
		} else {
			threshold = time.Duration(m.cfg.AutoSealAfterHours)*time.Hour + time.Duration(m.cfg.SealGraceHours)*time.Hour
		}

		if time.Since(date) < threshold {
			continue
		}

		if err := m.writer.SealPartition(ctx, name); err != nil {
			report.Errors[name] = err
			continue
		}
		report.Sealed = append(report.Sealed, name)
	}
}
