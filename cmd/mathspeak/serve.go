package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/mathspeak"
	httpAdapter "github.com/aretw0/mathspeak/pkg/adapters/http"
	"github.com/aretw0/mathspeak/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Serves POST /v1/speak, GET /v1/constraints, GET /v1/events, GET /metrics and
GET /healthz. With --watch the rule directories are reloaded when a file changes.`,
		RunE: runServe,
	}
	cmd.Flags().String("addr", "", "Listen address (default from config, :8080)")
	cmd.Flags().Bool("watch", false, "Reload rule directories on change")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := settings(cmd)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	logger := newLogger(cfg, cmd.ErrOrStderr())

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := observability.NewMetrics(reg)
	if err != nil {
		return err
	}

	eng, release, err := buildEngine(cmd, cfg, logger,
		mathspeak.WithLifecycleHooks(metrics.Hooks()),
		mathspeak.WithEvaluationTimeout(cfg.Server.Timeout),
	)
	if err != nil {
		return err
	}
	defer release()

	server := httpAdapter.NewServer(eng,
		httpAdapter.WithDefaultConstraint(cfg.Constraint()),
		httpAdapter.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
		httpAdapter.WithLogger(logger),
	)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if watch, _ := cmd.Flags().GetBool("watch"); watch {
		if len(cfg.Rules) == 0 {
			return fmt.Errorf("--watch needs at least one rule directory")
		}
		go func() {
			err := eng.WatchRuleFiles(ctx, func(gen uint64, err error) {
				if err == nil {
					server.NotifyReload(gen)
				}
			}, cfg.Rules...)
			if err != nil {
				logger.Error("rule watcher stopped", "err", err)
			}
		}()
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting mathspeak server", "addr", srv.Addr, "constraint", cfg.Constraint().String(), "rules", cfg.Rules)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		logger.Info("shutting down")

		// Give outstanding requests a deadline for completion.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("graceful shutdown did not complete", "err", err)
			return srv.Close()
		}
		logger.Info("mathspeak server stopped gracefully")
		return nil
	}
}
