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

	salesbridge "github.com/dawitel/line-sales-bridge"
	"github.com/rs/zerolog"
)

const (
	exitOK      = 0
	exitConfig  = 1
	exitRuntime = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(code)
}

func run() (int, error) {
	cfg, err := salesbridge.LoadConfigFromEnv()
	if err != nil {
		return exitConfig, err
	}

	logger := salesbridge.NewLogger(cfg.Logging, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts, err := salesbridge.DefaultOptions(ctx, cfg, logger)
	if err != nil {
		return exitConfig, fmt.Errorf("failed to create services: %w", err)
	}

	bridge, err := salesbridge.NewBridge(cfg, logger, opts...)
	if err != nil {
		return exitConfig, fmt.Errorf("failed to create bridge: %w", err)
	}
	if err := bridge.Start(ctx); err != nil {
		return exitRuntime, err
	}
	defer bridge.Stop()

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           salesbridge.NewRouter(bridge, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return serve(ctx, srv, logger)
}

func serve(ctx context.Context, srv *http.Server, logger zerolog.Logger) (int, error) {
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("Starting HTTP server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return exitOK, nil
		}
		return exitRuntime, fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return exitRuntime, fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return exitOK, nil
}
