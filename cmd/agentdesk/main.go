package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/user/agentdesk/internal/config"
	"github.com/user/agentdesk/internal/telemetry"
)

var version = "dev"

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "agentdesk",
	Short:         "Session back-end for a multi-agent chat shell",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", config.DefaultPath(), "config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig loads the config at cfgPath or exits.
func loadConfig() *config.Config {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// setupLogging installs the default slog logger. The returned func closes
// the log file, if any.
func setupLogging(cfg *config.Config) func() {
	logger, closer := telemetry.NewLogger(telemetry.LogOptions{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 28,
	})
	slog.SetDefault(logger)
	return func() { closer.Close() }
}
