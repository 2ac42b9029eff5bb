package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/andresmejia3/oculus/internal/config"
	"github.com/andresmejia3/oculus/internal/logging"
	"github.com/spf13/cobra"
)

var (
	// Cfg is the resolved configuration shared by subcommands
	Cfg *config.Config
	// Logger is the structured logger shared by subcommands
	Logger *slog.Logger

	cfgFile   string
	logLevel  string
	logFormat string
)

// Version is the application version.
const Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     "oculus",
	Short:   "Guided eye capture: detect, align, hold, capture",
	Version: Version, // This enables the --version flag
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		// Flags beat the config file, but only when they were actually set
		flags := cmd.Flags()
		if flags.Changed("log-level") {
			cfg.Log.Level = logLevel
		}
		if flags.Changed("log-format") {
			cfg.Log.Format = logFormat
		}

		logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}
		slog.SetDefault(logger)

		Cfg = cfg
		Logger = logger
		return nil
	},
}

func Execute() {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// This tells Cobra not to print the version in the help text, which is cleaner.
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")
}
