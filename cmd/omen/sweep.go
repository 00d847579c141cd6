package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hoangpro267200/omen/internal/config"
	"github.com/hoangpro267200/omen/internal/ledger"
	"github.com/hoangpro267200/omen/internal/lifecycle"
)

// sweepCmd runs one lifecycle sweep (seal → compress → archive → delete)
// synchronously and exits, for cron-driven deployments that would rather
// not run the lifecycle manager's own ticker inside the long-lived server
// process.
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one ledger lifecycle sweep and exit",
	RunE:  runSweep,
}

func runSweep(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := newLogger(cfg)

	writer, err := ledger.NewWriter(cfg.LedgerBasePath, log)
	if err != nil {
		return fmt.Errorf("open ledger writer: %w", err)
	}

	manager := lifecycle.New(cfg.LedgerBasePath, writer, lifecycle.DefaultConfig(cfg.BackupDir), log)
	report := manager.Sweep(ctx)

	log.Info().
		Strs("sealed", report.Sealed).
		Strs("compressed", report.Compressed).
		Strs("archived", report.Archived).
		Strs("deleted", report.Deleted).
		Int("errors", len(report.Errors)).
		Msg("omen sweep: complete")

	for partition, err := range report.Errors {
		log.Error().Err(err).Str("partition", partition).Msg("omen sweep: partition error")
	}
	return nil
}
