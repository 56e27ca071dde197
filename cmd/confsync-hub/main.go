// Command confsync-hub runs the standalone notification hub: the long-poll
// endpoint configuration clients subscribe to, plus an admin publish endpoint
// and Prometheus metrics.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/giantswarm/confsync/hub"
	"github.com/giantswarm/confsync/internal/logging"
)

type serveFlags struct {
	listenAddr        string
	metricsListenAddr string
	holdTimeout       time.Duration
	batchLimit        int
	shutdownGrace     time.Duration
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	flags := &serveFlags{}

	cmd := &cobra.Command{
		Use:           "confsync-hub",
		Short:         "Notification hub for confsync clients",
		Long:          "confsync-hub serves the /notifications/v2 long-poll endpoint and an admin /publish endpoint for announcing configuration releases.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.listenAddr, "listen", ":8080", "address for the notification endpoints")
	cmd.Flags().StringVar(&flags.metricsListenAddr, "metrics-listen", ":9090", "address for the Prometheus metrics endpoint")
	cmd.Flags().DurationVar(&flags.holdTimeout, "hold-timeout", hub.DefaultHoldTimeout, "how long a poll without news is held before answering 304")
	cmd.Flags().IntVar(&flags.batchLimit, "batch-limit", hub.DefaultBatchLimit, "maximum namespaces one poll may watch")
	cmd.Flags().DurationVar(&flags.shutdownGrace, "shutdown-grace", 30*time.Second, "how long to wait for in-flight polls on shutdown")

	return cmd
}

func serve(ctx context.Context, flags *serveFlags) error {
	if flags.holdTimeout <= 0 {
		return fmt.Errorf("hold timeout must be greater than 0, got %s", flags.holdTimeout)
	}
	if flags.batchLimit <= 0 {
		return fmt.Errorf("batch limit must be greater than 0, got %d", flags.batchLimit)
	}

	log := logging.Logger()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	h := hub.New(registry,
		hub.WithHoldTimeout(flags.holdTimeout),
		hub.WithBatchLimit(flags.batchLimit),
	)

	server := &http.Server{
		Addr:    flags.listenAddr,
		Handler: hub.NewHandler(h),
		// Long polls are held up to the hold timeout; the write deadline
		// needs headroom on top of that.
		WriteTimeout:      flags.holdTimeout + 30*time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	metricsServer := &http.Server{
		Addr:              flags.metricsListenAddr,
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 2)
	go func() {
		log.Info("notification hub listening", "address", flags.listenAddr, "holdTimeout", flags.holdTimeout)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("notification server: %w", err)
			return
		}
		errs <- nil
	}()
	go func() {
		log.Info("metrics endpoint listening", "address", flags.metricsListenAddr)
		if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("metrics server: %w", err)
			return
		}
		errs <- nil
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down", "grace", flags.shutdownGrace)
	case err := <-errs:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), flags.shutdownGrace)
	defer cancel()
	var shutdownErr error
	if err := server.Shutdown(shutdownCtx); err != nil {
		shutdownErr = errors.Join(shutdownErr, fmt.Errorf("notification server shutdown: %w", err))
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		shutdownErr = errors.Join(shutdownErr, fmt.Errorf("metrics server shutdown: %w", err))
	}
	return shutdownErr
}
