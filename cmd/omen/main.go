// Command omen runs the signal intelligence engine's ingestion pipeline
// and HTTP API as a single long-running process: adapters fetch, the
// pipeline validates/enriches/scores, the ledger durably records, the
// emitter pushes hot-path, and the lifecycle sweep seals/compresses/
// archives the ledger on a schedule.
//
// Grounded on the teacher's cmd/cprotocol/main.go for the signal-context
// plus zerolog-to-stderr startup shape, generalized from a one-shot CLI to
// a long-running server with graceful shutdown.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "omen",
	Short: "OMEN signal intelligence engine",
	Long: `OMEN ingests events from prediction-market, AIS, weather, news, and
quote sources, scores them into calibrated, routing-neutral signals, and
serves them over a durable ledger and an HTTP/WebSocket API. OMEN reports;
it never recommends.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(probeCmd)
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatRFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
