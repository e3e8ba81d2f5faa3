package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dudu/facefx/internal/perf"
)

var probeForce bool

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Classify this device into a performance tier",
	RunE: func(cmd *cobra.Command, args []string) error {
		capability := perf.DetectCapability()
		res, err := probe(cmd.Context(), cfg, probeForce)
		if err != nil {
			return fmt.Errorf("probe failed: %w", err)
		}

		source := "measured"
		if res.FromCache {
			source = "cached"
		}
		fmt.Printf("Device:    %s/%s, %d CPUs %s\n", capability.OS, capability.Arch, capability.NumCPU, capability.Model)
		fmt.Printf("Mobile:    %v (constrained: %v)\n", capability.Mobile, capability.Constrained)
		fmt.Printf("Signature: %s\n", res.Signature)
		fmt.Printf("Workload:  %v (%s %s)\n", res.Duration, source, res.MeasuredAt.Format("2006-01-02 15:04"))
		fmt.Printf("Tier:      %s\n", res.Tier)
		return nil
	},
}

func init() {
	probeCmd.Flags().BoolVar(&probeForce, "force", false, "Ignore cached results and measure again")
	rootCmd.AddCommand(probeCmd)
}
