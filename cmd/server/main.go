package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"wallet-signal/internal/config"
	"wallet-signal/internal/storage/backend"
)

const shutdownTimeout = 30 * time.Second

func main() {
	envFile := flag.String("env-file", ".env", "Environment file to load if present")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	setupLogging(cfg.LogLevel, cfg.LogFormat)
	logger := log.Logger
	logger.Info().Str("config", cfg.String()).Msg("config_loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := backend.Open(ctx, backend.Config{
		Backend:       cfg.StorageBackend,
		DatabaseFile:  cfg.DatabaseFile,
		PostgresDSN:   cfg.PostgresDSN,
		ClickhouseDSN: cfg.ClickhouseDSN,
		Logger:        &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("create_stores_failed")
	}
	defer cleanup()

	server, err := NewServer(cfg, stores, &logger)
	if err != nil {
		cleanup()
		logger.Fatal().Err(err).Msg("create_server_failed")
	}

	done := make(chan struct{})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("shutdown_started")
		cancel()

		// A second signal or a stuck shutdown forces exit.
		select {
		case sig := <-sigCh:
			logger.Warn().Str("signal", sig.String()).Msg("shutdown_forced")
			os.Exit(1)
		case <-time.After(shutdownTimeout):
			logger.Error().Dur("timeout", shutdownTimeout).Msg("shutdown_timed_out")
			os.Exit(1)
		case <-done:
		}
	}()

	err = server.Run(ctx)
	close(done)
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		cleanup()
		logger.Fatal().Err(err).Msg("server_failed")
	}

	logger.Info().Msg("shutdown_complete")
}

// setupLogging configures the global zerolog logger.
func setupLogging(level, format string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if format == "json" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Str("service", "wallet-signal").Logger()
		return
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().Timestamp().Str("service", "wallet-signal").Logger()
}
