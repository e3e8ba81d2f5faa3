package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dudu/facefx/internal/config"
	"github.com/dudu/facefx/internal/logging"
)

// Version is the application version.
const Version = "0.3.0"

var (
	configPath string
	logLevel   string
	logFormat  string

	// cfg and logger are set up by the root PersistentPreRunE
	cfg    config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "facefx",
	Short:         "Real-time face filters for webcam video",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			c.Log.Level = logLevel
		}
		if cmd.Flags().Changed("log-format") {
			c.Log.Format = logFormat
		}
		if err := applyOverrides(cmd, &c); err != nil {
			return err
		}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		l, err := logging.New(os.Stderr, c.Log.Level, c.Log.Format)
		if err != nil {
			return err
		}
		cfg, logger = c, l
		return nil
	},
}

// overrides lets subcommands map their flags onto the loaded config before
// validation.
var overrides = map[*cobra.Command]func(cmd *cobra.Command, c *config.Config) error{}

func applyOverrides(cmd *cobra.Command, c *config.Config) error {
	if fn, ok := overrides[cmd]; ok {
		return fn(cmd, c)
	}
	return nil
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: "+config.DefaultPath()+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")
}
