package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/user/agentdesk/internal/config"
)

func init() {
	rootCmd.AddCommand(setupCmd)
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		scanner := bufio.NewScanner(cmd.InOrStdin())
		out := cmd.OutOrStdout()

		fmt.Fprintln(out, "agentdesk setup")
		fmt.Fprintln(out, "Press Enter to accept the default value shown in brackets.")
		fmt.Fprintln(out)

		cfg.Listen = prompt(out, scanner, "Listen address", cfg.Listen)
		cfg.LogLevel = prompt(out, scanner, "Log level (debug, info, warn, error)", cfg.LogLevel)
		cfg.LogFile = prompt(out, scanner, "Log file (optional)", cfg.LogFile)

		if n, err := strconv.Atoi(prompt(out, scanner, "Max concurrent turns", strconv.Itoa(cfg.MaxConcurrent))); err == nil && n > 0 {
			cfg.MaxConcurrent = n
		}
		if n, err := strconv.Atoi(prompt(out, scanner, "Simulated reply delay (ms)", strconv.Itoa(cfg.Backend.ReplyDelayMS))); err == nil && n >= 0 {
			cfg.Backend.ReplyDelayMS = n
		}
		if b, err := strconv.ParseBool(prompt(out, scanner, "Export metrics (true/false)", strconv.FormatBool(cfg.Metrics.Enabled))); err == nil {
			cfg.Metrics.Enabled = b
		}

		if err := config.Save(cfgPath, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}

		fmt.Fprintln(out)
		fmt.Fprintln(out, "Configuration saved to", cfgPath)
		return nil
	},
}

// prompt displays a labeled prompt with a default value and reads user input.
// If the user enters nothing, the default is returned.
func prompt(out io.Writer, scanner *bufio.Scanner, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "%s [%s]: ", label, defaultVal)
	} else {
		fmt.Fprintf(out, "%s: ", label)
	}
	if scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input != "" {
			return input
		}
	}
	return defaultVal
}
