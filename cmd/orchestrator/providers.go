package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newProvidersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "Inspect configured LLM providers",
	}
	cmd.AddCommand(newProvidersListCmd())
	return cmd
}

func newProvidersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every provider this orchestrator can reach",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			for _, p := range a.registry.All() {
				status := "not configured"
				if p.IsConfigured() {
					status = "configured"
				}
				fmt.Printf("  - %-12s %-28s [%s] circuit=%s\n", p.Name(), p.DisplayName(), status, p.CircuitState())
			}

			analytics := a.tracker.GetAllAnalytics()
			for name, an := range analytics {
				fmt.Printf("    %-12s requests=%d success_rate=%.2f avg_latency_ms=%.0f win_rate=%.2f\n",
					name, an.TotalRequests, an.SuccessRate, an.AverageLatency, an.WinRate)
			}
			return nil
		},
	}
}
