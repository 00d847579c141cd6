package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hoangpro267200/omen/internal/config"
	"github.com/hoangpro267200/omen/internal/resilience"
)

// probeCmd health-checks every configured source and reports its
// classification and live status, the registry-level equivalent of the
// teacher's "providers probe" command.
var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Probe every configured source and report health/classification",
	RunE:  runProbe,
}

func runProbe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	breakers := resilience.NewRegistry()
	registry := buildSourceRegistry(cfg, breakers)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Source\tKind\tStatus\tLatency\tError")
	fmt.Fprintln(w, "------\t----\t------\t-------\t-----")

	for _, adapter := range registry.Enabled() {
		kind, _ := registry.Kind(adapter.Name())
		result := adapter.HealthCheck(ctx)
		fmt.Fprintf(w, "%s\t%s\t%s\t%.0fms\t%s\n",
			adapter.Name(), kind, result.Status, result.LatencyMs, result.Error)
	}
	w.Flush()

	if ok, blockers := registry.CanGoLive(); !ok {
		fmt.Println("\nNot eligible for live mode:")
		for _, b := range blockers {
			fmt.Println(" -", b)
		}
	} else {
		fmt.Println("\nEvery enabled source is REAL-classified: eligible for live mode.")
	}

	return nil
}
