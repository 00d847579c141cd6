// Package lifecycle runs the ledger's scheduled seal → compress → archive →
// delete sweep (C11, spec.md §4.10). Each step reports the partitions it
// touched; a failure on one partition never aborts the run.
//
// Grounded on the teacher's internal/sources/health_scheduler.go for the
// ticker-driven Start/Stop/run loop shape, generalized from periodic
// health probes to a periodic filesystem maintenance sweep.
package lifecycle

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hoangpro267200/omen/internal/ledger"
)

// Config tunes every threshold the sweep checks (spec.md §4.10).
type Config struct {
	AutoSealAfterHours int
	SealGraceHours     int
	LateSealAfterDays  int
	CompressAfterDays  int
	ColdRetentionDays  int
	DeleteAfterDays    int // 0 disables deletion entirely
	ArchiveDir         string
	Interval           time.Duration
}

// DefaultConfig mirrors the Python original's LifecycleConfig defaults.
func DefaultConfig(archiveDir string) Config {
	return Config{
		AutoSealAfterHours: 24,
		SealGraceHours:     2,
		LateSealAfterDays:  7,
		CompressAfterDays:  3,
		ColdRetentionDays:  30,
		DeleteAfterDays:    0,
		ArchiveDir:         archiveDir,
		Interval:           time.Hour,
	}
}

// SweepReport records what one sweep did, keyed by partition name for errors.
type SweepReport struct {
	Sealed     []string
	Compressed []string
	Archived   []string
	Deleted    []string
	Errors     map[string]error
}

func newSweepReport() SweepReport {
	return SweepReport{Errors: make(map[string]error)}
}

// Manager owns the scheduled sweep loop over one ledger's base directory.
type Manager struct {
	basePath string
	writer   *ledger.Writer
	reader   *ledger.Reader
	cfg      Config
	log      zerolog.Logger

	stop chan struct{}
	done chan struct{}
}

// New builds a lifecycle manager over the ledger rooted at basePath. writer
// is used only to seal partitions; reader drives every other query.
func New(basePath string, writer *ledger.Writer, cfg Config, log zerolog.Logger) *Manager {
	return &Manager{
		basePath: basePath,
		writer:   writer,
		reader:   ledger.NewReader(basePath, log),
		cfg:      cfg,
		log:      log.With().Str("component", "lifecycle").Logger(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the sweep loop until ctx is cancelled or Stop is called.
func (m *Manager) Start(ctx context.Context) {
	go m.run(ctx)
}

func (m *Manager) run(ctx context.Context) {
	defer close(m.done)
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		case <-ticker.C:
			report := m.Sweep(ctx)
			if len(report.Errors) > 0 {
				m.log.Warn().Int("errors", len(report.Errors)).Msg("lifecycle: sweep completed with per-partition errors")
			}
		}
	}
}

// Stop halts the sweep loop and waits for it to exit.
func (m *Manager) Stop() {
	close(m.stop)
	<-m.done
}

// Sweep runs seal → compress → archive → delete once, synchronously.
func (m *Manager) Sweep(ctx context.Context) SweepReport {
	report := newSweepReport()

	partitions, err := m.reader.ListPartitions()
	if err != nil {
		report.Errors["*"] = err
		return report
	}

	m.autoSeal(ctx, partitions, &report)
	m.compress(partitions, &report)
	m.archive(partitions, &report)
	m.deleteExpired(partitions, &report)

	return report
}

func partitionDate(name string) (time.Time, bool) {
	base := strings.TrimSuffix(name, latePartitionSuffix)
	t, err := time.Parse(partitionDateLayout, base)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func isLate(name string) bool { return strings.HasSuffix(name, latePartitionSuffix) }

const (
	partitionDateLayout = "2006-01-02"
	latePartitionSuffix = "-late"
)
