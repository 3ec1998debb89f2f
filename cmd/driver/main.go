package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hopchain/hopchain/internal/config"
	"github.com/hopchain/hopchain/internal/driver"
	"github.com/hopchain/hopchain/internal/logging"
	"github.com/hopchain/hopchain/internal/metrics"
)

func main() {
	logger := logging.New(os.Getenv("LOG_FORMAT"))
	slog.SetDefault(logger)

	if err := initiateApp(logger); err != nil {
		logger.Error("error in app lifecycle", "error", err)
		os.Exit(1)
	}
}

func initiateApp(logger *slog.Logger) error {
	cfg, err := config.NewDriver()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
		time.Sleep(100 * time.Millisecond) // Give time for cleanup logs to flush
	}()

	met := metrics.NewDriver()

	if cfg.MetricsPort > 0 {
		go serveMetrics(ctx, cfg.MetricsPort, met, logger)
	}

	d, err := driver.New(cfg, met, logger)
	if err != nil {
		return fmt.Errorf("creating driver: %w", err)
	}

	if err := d.Run(ctx); err != nil {
		return fmt.Errorf("running driver: %w", err)
	}

	return nil
}

func serveMetrics(ctx context.Context, port int, met *metrics.Driver, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", met.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("starting metrics server", "address", srv.Addr)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		logger.Error("metrics server error", "error", err)
	}
}
