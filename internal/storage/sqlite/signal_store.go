package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"wallet-signal/internal/domain"
	"wallet-signal/internal/storage"
)

// SignalStore implements storage.SignalStore using SQLite.
type SignalStore struct {
	db *DB
}

// NewSignalStore creates a new SignalStore.
func NewSignalStore(db *DB) *SignalStore {
	return &SignalStore{db: db}
}

var _ storage.SignalStore = (*SignalStore)(nil)

const signalColumns = `signal_id, token_address, token_symbol, wallet, account, position,
	strategy, tag, pass, heat, price_usd, market_cap,
	all_wallets, full_wallets, hold_wallets, close_wallets, event_time, scored_at`

// Insert adds a scored signal. Returns ErrDuplicateKey if signal_id exists.
func (s *SignalStore) Insert(ctx context.Context, r *domain.SignalRecord) error {
	if r == nil || r.SignalID == "" {
		return storage.ErrInvalidInput
	}

	start := time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO signal_events (`+signalColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.SignalID, r.TokenAddress, r.TokenSymbol, r.Wallet, r.Account, r.Position,
		r.Strategy, r.Tag, r.Pass, r.Heat, r.PriceUSD, r.MarketCap,
		r.AllWallets, r.FullWallets, r.HoldWallets, r.CloseWallets, r.EventTime, r.ScoredAt,
	)
	observe("insert_signal", start, err)
	if err != nil {
		return fmt.Errorf("insert signal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert signal: %w", err)
	}
	if n == 0 {
		return storage.ErrDuplicateKey
	}
	return nil
}

// GetByID retrieves a signal by its ID. Returns ErrNotFound if not exists.
func (s *SignalStore) GetByID(ctx context.Context, signalID string) (*domain.SignalRecord, error) {
	start := time.Now()
	row := s.db.QueryRowContext(ctx, `SELECT `+signalColumns+` FROM signal_events WHERE signal_id = ?`, signalID)
	r, err := scanSignal(row)
	if errors.Is(err, sql.ErrNoRows) {
		observe("get_signal", start, nil)
		return nil, storage.ErrNotFound
	}
	observe("get_signal", start, err)
	if err != nil {
		return nil, fmt.Errorf("get signal: %w", err)
	}
	return r, nil
}

// GetByToken retrieves all signals for a token, ordered by event_time ASC.
func (s *SignalStore) GetByToken(ctx context.Context, tokenAddress string) ([]*domain.SignalRecord, error) {
	return s.query(ctx, "get_signals_by_token",
		`SELECT `+signalColumns+` FROM signal_events
		WHERE token_address = ?
		ORDER BY event_time ASC, signal_id ASC`,
		tokenAddress,
	)
}

// GetByTimeRange retrieves signals with event_time within [start, end] (inclusive).
func (s *SignalStore) GetByTimeRange(ctx context.Context, startTime, endTime int64) ([]*domain.SignalRecord, error) {
	return s.query(ctx, "get_signals_by_time",
		`SELECT `+signalColumns+` FROM signal_events
		WHERE event_time >= ? AND event_time <= ?
		ORDER BY event_time ASC, signal_id ASC`,
		startTime, endTime,
	)
}

func (s *SignalStore) query(ctx context.Context, operation, query string, args ...any) (result []*domain.SignalRecord, err error) {
	start := time.Now()
	defer func() { observe(operation, start, err) }()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signals: %w", err)
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSignal(row scanner) (*domain.SignalRecord, error) {
	var r domain.SignalRecord
	err := row.Scan(
		&r.SignalID, &r.TokenAddress, &r.TokenSymbol, &r.Wallet, &r.Account, &r.Position,
		&r.Strategy, &r.Tag, &r.Pass, &r.Heat, &r.PriceUSD, &r.MarketCap,
		&r.AllWallets, &r.FullWallets, &r.HoldWallets, &r.CloseWallets, &r.EventTime, &r.ScoredAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
