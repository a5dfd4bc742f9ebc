package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/user/agentdesk/internal/api"
	"github.com/user/agentdesk/internal/backend"
	"github.com/user/agentdesk/internal/config"
	"github.com/user/agentdesk/internal/gateway"
	"github.com/user/agentdesk/internal/registry"
	"github.com/user/agentdesk/internal/telemetry"
	"github.com/user/agentdesk/internal/transcript"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the agentdesk server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func writePIDFile(path string) error {
	pid := os.Getpid()
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return fmt.Errorf("write PID file: %w", err)
	}
	return nil
}

func retryPolicy(cfg *config.Config) *gateway.RetryPolicy {
	p := gateway.DefaultRetryPolicy()
	if cfg.Backend.MaxAttempts > 0 {
		p.MaxAttempts = cfg.Backend.MaxAttempts
	}
	return p
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	closeLog := setupLogging(cfg)
	defer closeLog()

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return err
	}
	defer os.Remove(pidPath)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	metrics, shutdownMetrics, err := telemetry.SetupMetrics(ctx, telemetry.MetricsOptions{
		Enabled:  cfg.Metrics.Enabled,
		File:     cfg.Metrics.File,
		Interval: cfg.MetricsInterval(),
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("setup metrics: %w", err)
	}
	defer shutdownMetrics()

	// One registry per process; every consumer gets it explicitly.
	reg := registry.New(registry.WithLogger(slog.Default()), registry.WithRecorder(metrics))
	tc := transcript.New(reg)

	gw := gateway.New(reg, tc, backend.NewCanned(cfg.ReplyDelay()), int64(cfg.MaxConcurrent),
		gateway.WithRetryPolicy(retryPolicy(cfg)),
	)
	gw.Start(ctx)
	defer gw.Stop()

	httpServer := &http.Server{
		Addr:        cfg.Listen,
		Handler:     api.NewServer(reg, tc, gw),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	slog.Info("agentdesk started",
		"listen", cfg.Listen,
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"max_concurrent", cfg.MaxConcurrent,
		"metrics", cfg.Metrics.Enabled,
		"pid_file", pidPath,
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
		defer signal.Stop(sigChan)

		for {
			select {
			case <-gctx.Done():
				return nil
			case sig := <-sigChan:
				if sig == syscall.SIGHUP {
					slog.Info("received SIGHUP, restarting")
					execPath, err := os.Executable()
					if err != nil {
						slog.Error("failed to get executable path", "error", err)
						continue
					}
					// Clean up PID file before re-exec
					os.Remove(pidPath)
					if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
						slog.Error("failed to re-exec", "error", err)
						if writeErr := writePIDFile(pidPath); writeErr != nil {
							slog.Error("failed to re-write PID file", "error", writeErr)
						}
					}
					continue
				}
				// SIGINT or SIGTERM
				slog.Info("shutting down", "signal", sig, "sessions", reg.Len())
				cancel()
				return nil
			}
		}
	})

	return g.Wait()
}
