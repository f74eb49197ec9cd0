package sqlite

import (
	"context"
	"fmt"
	"time"

	"wallet-signal/internal/domain"
	"wallet-signal/internal/storage"
)

// TradeReceiptStore implements storage.TradeReceiptStore using SQLite.
type TradeReceiptStore struct {
	db *DB
}

// NewTradeReceiptStore creates a new TradeReceiptStore.
func NewTradeReceiptStore(db *DB) *TradeReceiptStore {
	return &TradeReceiptStore{db: db}
}

var _ storage.TradeReceiptStore = (*TradeReceiptStore)(nil)

// Insert records a placed trade.
func (s *TradeReceiptStore) Insert(ctx context.Context, r *domain.TradeReceipt) error {
	if r == nil || r.TokenAddress == "" {
		return storage.ErrInvalidInput
	}

	start := time.Now()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO send_trade (token_id, trade_amount, is_monitor, trade_type, trade_time) VALUES (?, ?, ?, ?, ?)",
		r.TokenAddress, r.Amount, int(r.Mode), int(r.Side), toMillis(r.ExecutedAt),
	)
	observe("insert_send_trade", start, err)
	if err != nil {
		return fmt.Errorf("insert send trade: %w", err)
	}
	return nil
}

// Exists reports whether a matching trade was placed.
func (s *TradeReceiptStore) Exists(ctx context.Context, tokenAddress string, mode domain.TradeMode, side domain.TradeSide) (bool, error) {
	start := time.Now()
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM send_trade WHERE token_id = ? AND is_monitor = ? AND trade_type = ?)",
		tokenAddress, int(mode), int(side),
	).Scan(&exists)
	observe("exists_send_trade", start, err)
	if err != nil {
		return false, fmt.Errorf("check send trade: %w", err)
	}
	return exists, nil
}

// GetByToken retrieves all trades for a token, ordered by ExecutedAt ASC.
func (s *TradeReceiptStore) GetByToken(ctx context.Context, tokenAddress string) ([]*domain.TradeReceipt, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT token_id, trade_amount, is_monitor, trade_type, trade_time FROM send_trade WHERE token_id = ? ORDER BY trade_time ASC, id ASC",
		tokenAddress,
	)
	if err != nil {
		return nil, fmt.Errorf("get send trade: %w", err)
	}
	defer rows.Close()

	var result []*domain.TradeReceipt
	for rows.Next() {
		var (
			r              domain.TradeReceipt
			mode, side, ms int64
		)
		if err := rows.Scan(&r.TokenAddress, &r.Amount, &mode, &side, &ms); err != nil {
			return nil, fmt.Errorf("scan send trade: %w", err)
		}
		r.Mode = domain.TradeMode(mode)
		r.Side = domain.TradeSide(side)
		r.ExecutedAt = fromMillis(ms)
		result = append(result, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate send trade: %w", err)
	}
	return result, nil
}
