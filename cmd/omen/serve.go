package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hoangpro267200/omen/internal/config"
)

// drainTimeout bounds how long runServe waits for in-flight fetch/process
// loops to finish after a shutdown signal. Past this deadline shutdown goes
// on without them; events still in flight are dropped, not sent to the DLQ.
const drainTimeout = 15 * time.Second

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := newLogger(cfg)
	log.Info().Str("env", string(cfg.Env)).Str("ledger_base_path", cfg.LedgerBasePath).Msg("omen: starting")

	rt, err := buildRuntime(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("build runtime: %w", err)
	}

	if ok, blockers := rt.registry.CanGoLive(); !ok {
		log.Warn().Strs("blockers", blockers).Msg("omen: running with one or more MOCK sources, not eligible for live mode")
	}

	rt.lifecycle.Start(ctx)

	ingestCtx, stopIngest := context.WithCancel(ctx)
	ingestDone := make(chan struct{})
	go func() {
		defer close(ingestDone)
		runIngestLoop(ingestCtx, rt, log)
	}()

	serverErrCh := make(chan error, 1)
	go func() {
		if err := rt.httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("omen: shutdown signal received, draining")
	case err := <-serverErrCh:
		if err != nil {
			log.Error().Err(err).Msg("omen: http server failed")
		}
	}

	stopIngest()
	select {
	case <-ingestDone:
	case <-time.After(drainTimeout):
		log.Warn().Msg("omen: ingest loop did not drain in time, abandoning in-flight fetches")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := rt.httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("omen: http server shutdown error")
	}

	rt.lifecycle.Stop()

	if err := rt.Close(); err != nil {
		log.Error().Err(err).Msg("omen: runtime close error")
	}

	log.Info().Msg("omen: stopped")
	return nil
}

// runIngestLoop periodically calls FetchWithFallback → Process for every
// enabled source, the scheduled equivalent of POST /api/v1/live/generate
// (spec.md §6), until ctx is cancelled.
func runIngestLoop(ctx context.Context, rt *runtime, log zerolog.Logger) {
	interval := config.EnvDuration("OMEN_INGEST_INTERVAL", time.Minute)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ingestOnce(ctx, rt, log)
		}
	}
}

func ingestOnce(ctx context.Context, rt *runtime, log zerolog.Logger) {
	for _, adapter := range rt.registry.Enabled() {
		events, err := rt.registry.FetchWithFallback(ctx, adapter.Name(), 50)
		if err != nil {
			log.Warn().Err(err).Str("source", string(adapter.Name())).Msg("omen: fetch failed, source and fallback chain exhausted")
			continue
		}
		for _, event := range events {
			result := rt.pipeline.Process(ctx, event)
			if !result.OK && result.Err != nil {
				log.Warn().Err(result.Err).Str("source", string(event.Source)).Msg("omen: event processing failed")
			}
		}
	}
}

// newLogger builds the process logger: structured JSON to stdout in
// production (fit for log aggregation), a human-readable console writer
// to stderr in development — the same env-gated split the teacher's
// cmd/cprotocol/main.go applies via zerolog.ConsoleWriter.
func newLogger(cfg config.Config) zerolog.Logger {
	if cfg.Env == config.EnvProduction {
		return zerolog.New(os.Stdout).With().Timestamp().Str("service", "omen").Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).With().Timestamp().Str("service", "omen").Logger()
}
