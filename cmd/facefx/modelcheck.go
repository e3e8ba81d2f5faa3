package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dudu/facefx/internal/inference"
)

var modelcheckCmd = &cobra.Command{
	Use:   "modelcheck <model.onnx>",
	Short: "Check that ONNX Runtime can load a model and list its IO",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		modelPath := args[0]
		if _, err := os.Stat(modelPath); err != nil {
			return fmt.Errorf("model not found: %w", err)
		}

		if err := inference.Initialize(cfg.Detector.ORTLibrary); err != nil {
			return fmt.Errorf("%w (install ONNX Runtime or set detector.ortSharedLibraryPath)", err)
		}
		defer inference.Shutdown()

		info, err := inference.Inspect(modelPath)
		if err != nil {
			return err
		}

		fmt.Printf("Model: %s\n", info.Path)
		fmt.Printf("\nInputs (%d):\n", len(info.Inputs))
		for _, in := range info.Inputs {
			fmt.Printf("  %s: shape=%v, type=%s\n", in.Name, in.Dimensions, in.DataType)
		}
		fmt.Printf("\nOutputs (%d):\n", len(info.Outputs))
		for _, out := range info.Outputs {
			fmt.Printf("  %s: shape=%v, type=%s\n", out.Name, out.Dimensions, out.DataType)
		}

		fmt.Println("\nMetadata:")
		fmt.Printf("  Producer: %s\n", info.Producer)
		fmt.Printf("  Version: %d\n", info.Version)
		if info.Domain != "" {
			fmt.Printf("  Domain: %s\n", info.Domain)
		}
		if info.Description != "" {
			fmt.Printf("  Description: %s\n", info.Description)
		}

		switch {
		case errors.Is(info.LayerErr, inference.ErrLayersUnsupported):
		case info.LayerErr != nil:
			fmt.Printf("\nLayer import failed: %v\n", info.LayerErr)
		default:
			fmt.Printf("\nLayers (%d, %d weight tensors):\n", len(info.Layers), info.Weights)
			for i, l := range info.Layers {
				fmt.Printf("  %d: %s (%s)\n", i+1, l.Name, l.Type)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelcheckCmd)
}
