package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"wallet-signal/internal/reporting"
	"wallet-signal/internal/storage/backend"
)

func main() {
	// Load .env file if exists
	_ = godotenv.Load()

	// Parse flags (env vars as defaults)
	storageBackend := flag.String("storage-backend", envOr("STORAGE_BACKEND", backend.SQLite), "Storage backend (sqlite, postgres)")
	databaseFile := flag.String("database-file", envOr("DATABASE_FILE", "data/data.db"), "SQLite database file")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (signal history)")
	outputDir := flag.String("output-dir", "reports", "Output directory for generated files")
	since := flag.Duration("since", 24*time.Hour, "Report window ending now")
	topTokens := flag.Int("top-tokens", reporting.DefaultTopTokens, "Number of token rows to keep (0 keeps all)")
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Str("service", "wallet-signal-report").Logger()
	logger := log.Logger

	if *storageBackend == backend.Memory && *clickhouseDSN == "" {
		logger.Fatal().Msg("memory backend holds no history; use sqlite, postgres or --clickhouse-dsn")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	stores, cleanup, err := backend.Open(ctx, backend.Config{
		Backend:       *storageBackend,
		DatabaseFile:  *databaseFile,
		PostgresDSN:   *postgresDSN,
		ClickhouseDSN: *clickhouseDSN,
		Logger:        &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("open_stores_failed")
	}
	defer cleanup()

	report, err := reporting.NewGenerator(stores.Signals).WithTopTokens(*topTokens).GenerateSince(ctx, *since)
	if err != nil {
		cleanup()
		logger.Fatal().Err(err).Msg("generate_report_failed")
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		cleanup()
		logger.Fatal().Err(err).Msg("create_output_dir_failed")
	}

	files := map[string]string{
		"SIGNAL_REPORT.md":   reporting.RenderMarkdown(report),
		"STRATEGY_STATS.csv": reporting.RenderCSV(report.Strategies),
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(*outputDir, name), []byte(content), 0o644); err != nil {
			cleanup()
			logger.Fatal().Err(err).Str("file", name).Msg("write_report_failed")
		}
	}

	logger.Info().
		Int("signals", report.Summary.Signals).
		Int("passed", report.Summary.Passed).
		Int("tokens", report.Summary.Tokens).
		Msg("report_generated")

	fmt.Println("Signal report generated successfully:")
	fmt.Printf("  - %s/SIGNAL_REPORT.md\n", *outputDir)
	fmt.Printf("  - %s/STRATEGY_STATS.csv\n", *outputDir)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
