package postgres

import (
	"context"
	"fmt"
	"time"

	"wallet-signal/internal/domain"
	"wallet-signal/internal/storage"
)

// TradeReceiptStore implements storage.TradeReceiptStore using PostgreSQL.
type TradeReceiptStore struct {
	pool *Pool
}

// NewTradeReceiptStore creates a new TradeReceiptStore.
func NewTradeReceiptStore(pool *Pool) *TradeReceiptStore {
	return &TradeReceiptStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeReceiptStore = (*TradeReceiptStore)(nil)

// Insert records a placed trade.
func (s *TradeReceiptStore) Insert(ctx context.Context, r *domain.TradeReceipt) error {
	if r == nil || r.TokenAddress == "" {
		return storage.ErrInvalidInput
	}

	start := time.Now()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO send_trade (token_id, trade_amount, is_monitor, trade_type, trade_time)
		VALUES ($1, $2, $3, $4, $5)
	`, r.TokenAddress, r.Amount, int(r.Mode), int(r.Side), r.ExecutedAt)
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
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM send_trade
			WHERE token_id = $1 AND is_monitor = $2 AND trade_type = $3
		)
	`, tokenAddress, int(mode), int(side)).Scan(&exists)
	observe("exists_send_trade", start, err)
	if err != nil {
		return false, fmt.Errorf("check send trade: %w", err)
	}
	return exists, nil
}

// GetByToken retrieves all trades for a token, ordered by ExecutedAt ASC.
func (s *TradeReceiptStore) GetByToken(ctx context.Context, tokenAddress string) ([]*domain.TradeReceipt, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT token_id, trade_amount, is_monitor, trade_type, trade_time
		FROM send_trade
		WHERE token_id = $1
		ORDER BY trade_time ASC, id ASC
	`, tokenAddress)
	if err != nil {
		return nil, fmt.Errorf("get send trade: %w", err)
	}
	defer rows.Close()

	var result []*domain.TradeReceipt
	for rows.Next() {
		var (
			r          domain.TradeReceipt
			mode, side int
		)
		if err := rows.Scan(&r.TokenAddress, &r.Amount, &mode, &side, &r.ExecutedAt); err != nil {
			return nil, fmt.Errorf("scan send trade: %w", err)
		}
		r.Mode = domain.TradeMode(mode)
		r.Side = domain.TradeSide(side)
		result = append(result, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate send trade: %w", err)
	}
	return result, nil
}
