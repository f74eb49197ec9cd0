package storage

import (
	"context"

	"wallet-signal/internal/domain"
)

// NotifiedTokenStore provides access to token_notify storage.
type NotifiedTokenStore interface {
	// Insert records a delivered notification. A token may be recorded more than once.
	Insert(ctx context.Context, n *domain.NotifiedToken) error

	// Exists reports whether any notification was recorded for the token.
	Exists(ctx context.Context, tokenAddress string) (bool, error)

	// GetByToken retrieves all notifications for a token, ordered by NotifiedAt ASC.
	GetByToken(ctx context.Context, tokenAddress string) ([]*domain.NotifiedToken, error)
}

// TradeReceiptStore provides access to send_trade storage.
type TradeReceiptStore interface {
	// Insert records a placed trade.
	Insert(ctx context.Context, r *domain.TradeReceipt) error

	// Exists reports whether a trade with the given token, mode and side was placed.
	Exists(ctx context.Context, tokenAddress string, mode domain.TradeMode, side domain.TradeSide) (bool, error)

	// GetByToken retrieves all trades for a token, ordered by ExecutedAt ASC.
	GetByToken(ctx context.Context, tokenAddress string) ([]*domain.TradeReceipt, error)
}

// SignalStore provides access to signal_events storage.
type SignalStore interface {
	// Insert adds a scored signal. Returns ErrDuplicateKey if signal_id exists.
	Insert(ctx context.Context, s *domain.SignalRecord) error

	// GetByID retrieves a signal by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, signalID string) (*domain.SignalRecord, error)

	// GetByToken retrieves all signals for a token, ordered by event_time ASC.
	GetByToken(ctx context.Context, tokenAddress string) ([]*domain.SignalRecord, error)

	// GetByTimeRange retrieves signals with event_time within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.SignalRecord, error)
}
