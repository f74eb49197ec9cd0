package clickhouse

import (
	"context"
	"fmt"
	"time"

	"wallet-signal/internal/domain"
	"wallet-signal/internal/storage"
)

const signalColumns = `
	signal_id, token_address, token_symbol, wallet, account, position,
	strategy, tag, pass, heat, price_usd, market_cap,
	all_wallets, full_wallets, hold_wallets, close_wallets,
	event_time, scored_at`

// SignalStore implements storage.SignalStore using ClickHouse.
type SignalStore struct {
	conn *Conn
}

// NewSignalStore creates a new SignalStore.
func NewSignalStore(conn *Conn) *SignalStore {
	return &SignalStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SignalStore = (*SignalStore)(nil)

// Insert adds a scored signal. Returns ErrDuplicateKey if the signal_id exists.
func (s *SignalStore) Insert(ctx context.Context, r *domain.SignalRecord) error {
	if r == nil || r.SignalID == "" {
		return storage.ErrInvalidInput
	}

	// ReplacingMergeTree would collapse the row; keep insert-once semantics.
	exists, err := s.exists(ctx, r.SignalID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	var pass uint8
	if r.Pass {
		pass = 1
	}

	start := time.Now()
	err = s.conn.Exec(ctx, `INSERT INTO signal_events (`+signalColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.SignalID, r.TokenAddress, r.TokenSymbol, r.Wallet, r.Account, r.Position,
		r.Strategy, r.Tag, pass, uint8(r.Heat), r.PriceUSD, r.MarketCap,
		uint32(r.AllWallets), uint32(r.FullWallets), uint32(r.HoldWallets), uint32(r.CloseWallets),
		r.EventTime, r.ScoredAt,
	)
	observe("insert_signal", start, err)
	if err != nil {
		return fmt.Errorf("insert signal: %w", err)
	}
	return nil
}

// GetByID retrieves a signal by its ID.
func (s *SignalStore) GetByID(ctx context.Context, signalID string) (*domain.SignalRecord, error) {
	start := time.Now()
	rows, err := s.conn.Query(ctx, `SELECT `+signalColumns+`
		FROM signal_events FINAL
		WHERE signal_id = ?
		LIMIT 1`, signalID)
	observe("get_signal", start, err)
	if err != nil {
		return nil, fmt.Errorf("query signal: %w", err)
	}
	defer rows.Close()

	records, err := scanSignals(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, storage.ErrNotFound
	}
	return records[0], nil
}

// GetByToken retrieves all signals for a token, ordered by event_time ASC.
func (s *SignalStore) GetByToken(ctx context.Context, tokenAddress string) ([]*domain.SignalRecord, error) {
	start := time.Now()
	rows, err := s.conn.Query(ctx, `SELECT `+signalColumns+`
		FROM signal_events FINAL
		WHERE token_address = ?
		ORDER BY event_time ASC, signal_id ASC`, tokenAddress)
	observe("get_signals_by_token", start, err)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	return scanSignals(rows)
}

// GetByTimeRange retrieves signals with event_time within [start, end].
func (s *SignalStore) GetByTimeRange(ctx context.Context, startTime, endTime int64) ([]*domain.SignalRecord, error) {
	start := time.Now()
	rows, err := s.conn.Query(ctx, `SELECT `+signalColumns+`
		FROM signal_events FINAL
		WHERE event_time >= ? AND event_time <= ?
		ORDER BY event_time ASC, signal_id ASC`, startTime, endTime)
	observe("get_signals_by_time", start, err)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	return scanSignals(rows)
}

func (s *SignalStore) exists(ctx context.Context, signalID string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx,
		"SELECT count(*) FROM signal_events WHERE signal_id = ?", signalID,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanSignals(rows chRows) ([]*domain.SignalRecord, error) {
	var records []*domain.SignalRecord

	for rows.Next() {
		var (
			r                      domain.SignalRecord
			pass, heat             uint8
			all, full, hold, closed uint32
		)
		err := rows.Scan(
			&r.SignalID, &r.TokenAddress, &r.TokenSymbol, &r.Wallet, &r.Account, &r.Position,
			&r.Strategy, &r.Tag, &pass, &heat, &r.PriceUSD, &r.MarketCap,
			&all, &full, &hold, &closed,
			&r.EventTime, &r.ScoredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan signal row: %w", err)
		}
		r.Pass = pass == 1
		r.Heat = int(heat)
		r.AllWallets = int(all)
		r.FullWallets = int(full)
		r.HoldWallets = int(hold)
		r.CloseWallets = int(closed)
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signal rows: %w", err)
	}
	return records, nil
}
