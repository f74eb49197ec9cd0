// Package backend opens the configured storage backend and applies its
// migrations.
package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"wallet-signal/internal/storage"
	chstore "wallet-signal/internal/storage/clickhouse"
	"wallet-signal/internal/storage/memory"
	"wallet-signal/internal/storage/migrations"
	pgstore "wallet-signal/internal/storage/postgres"
	"wallet-signal/internal/storage/sqlite"
)

// Backend names.
const (
	SQLite   = "sqlite"
	Postgres = "postgres"
	Memory   = "memory"
)

// ErrUnknownBackend is returned for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown storage backend")

// Config selects and locates the backend.
type Config struct {
	Backend       string
	DatabaseFile  string // sqlite
	PostgresDSN   string // postgres
	ClickhouseDSN string // optional; takes over signal history
	Logger        *zerolog.Logger
}

// Stores holds the persistence collaborators.
type Stores struct {
	Notified storage.NotifiedTokenStore
	Receipts storage.TradeReceiptStore
	Signals  storage.SignalStore
}

// Open connects to the backend, applies migrations and returns a cleanup
// function that closes every connection.
func Open(ctx context.Context, cfg Config) (*Stores, func(), error) {
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	stores := &Stores{}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch cfg.Backend {
	case Memory:
		stores.Notified = memory.NewNotifiedTokenStore()
		stores.Receipts = memory.NewTradeReceiptStore()
		stores.Signals = memory.NewSignalStore()

	case Postgres:
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		closers = append(closers, pool.Close)
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("postgres migrations: %w", err)
		}
		stores.Notified = pgstore.NewNotifiedTokenStore(pool)
		stores.Receipts = pgstore.NewTradeReceiptStore(pool)
		stores.Signals = pgstore.NewSignalStore(pool)

	case SQLite:
		db, err := sqlite.Open(ctx, cfg.DatabaseFile)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() { db.Close() })
		if err := migrations.RunSQLiteMigrations(ctx, db); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("sqlite migrations: %w", err)
		}
		stores.Notified = sqlite.NewNotifiedTokenStore(db)
		stores.Receipts = sqlite.NewTradeReceiptStore(db)
		stores.Signals = sqlite.NewSignalStore(db)

	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}

	// ClickHouse takes over signal history when configured.
	if cfg.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("clickhouse: %w", err)
		}
		closers = append(closers, func() { conn.Close() })
		stores.Signals = chstore.NewSignalStore(conn)
	}

	logger.Info().
		Str("component", "storage").
		Str("backend", cfg.Backend).
		Bool("clickhouse", cfg.ClickhouseDSN != "").
		Msg("stores_ready")

	return stores, cleanup, nil
}
