package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"wallet-signal/internal/domain"
	"wallet-signal/internal/storage"
)

// SignalStore implements storage.SignalStore using PostgreSQL.
type SignalStore struct {
	pool *Pool
}

// NewSignalStore creates a new SignalStore.
func NewSignalStore(pool *Pool) *SignalStore {
	return &SignalStore{pool: pool}
}

// Compile-time interface check.
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
	_, err := s.pool.Exec(ctx, `
		INSERT INTO signal_events (`+signalColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`,
		r.SignalID, r.TokenAddress, r.TokenSymbol, r.Wallet, r.Account, r.Position,
		r.Strategy, r.Tag, r.Pass, r.Heat, r.PriceUSD, r.MarketCap,
		r.AllWallets, r.FullWallets, r.HoldWallets, r.CloseWallets, r.EventTime, r.ScoredAt,
	)
	observe("insert_signal", start, err)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert signal: %w", err)
	}
	return nil
}

// GetByID retrieves a signal by its ID. Returns ErrNotFound if not exists.
func (s *SignalStore) GetByID(ctx context.Context, signalID string) (*domain.SignalRecord, error) {
	start := time.Now()
	row := s.pool.QueryRow(ctx, `SELECT `+signalColumns+` FROM signal_events WHERE signal_id = $1`, signalID)
	r, err := scanSignal(row)
	if isNotFoundError(err) {
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
	return s.query(ctx, "get_signals_by_token", `
		SELECT `+signalColumns+` FROM signal_events
		WHERE token_address = $1
		ORDER BY event_time ASC, signal_id ASC
	`, tokenAddress)
}

// GetByTimeRange retrieves signals with event_time within [start, end] (inclusive).
func (s *SignalStore) GetByTimeRange(ctx context.Context, startTime, endTime int64) ([]*domain.SignalRecord, error) {
	return s.query(ctx, "get_signals_by_time", `
		SELECT `+signalColumns+` FROM signal_events
		WHERE event_time >= $1 AND event_time <= $2
		ORDER BY event_time ASC, signal_id ASC
	`, startTime, endTime)
}

func (s *SignalStore) query(ctx context.Context, operation, sql string, args ...any) (result []*domain.SignalRecord, err error) {
	start := time.Now()
	defer func() { observe(operation, start, err) }()

	rows, err := s.pool.Query(ctx, sql, args...)
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

func scanSignal(row pgx.Row) (*domain.SignalRecord, error) {
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
