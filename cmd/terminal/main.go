package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hopchain/hopchain/internal/config"
	"github.com/hopchain/hopchain/internal/logging"
	"github.com/hopchain/hopchain/internal/metrics"
	"github.com/hopchain/hopchain/internal/server"
	"github.com/hopchain/hopchain/internal/terminal"
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
	cfg, err := config.NewTerminal()
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

	svc, err := terminal.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating terminal service: %w", err)
	}

	srv, err := server.New(cfg.Service, metrics.NewService(cfg.ServiceName), logger, svc.Routes)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("running server: %w", err)
	}

	return nil
}
