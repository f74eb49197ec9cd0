package trade

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"wallet-signal/internal/domain"
	"wallet-signal/internal/notify"
	"wallet-signal/internal/observability"
	"wallet-signal/internal/storage"
)

const (
	DefaultAttempts   = 3
	DefaultRetryDelay = time.Second
	DefaultAmount     = 0.2
)

// Executor places an order for a passing signal.
type Executor interface {
	Execute(ctx context.Context, tokenAddress string, priceUSD float64) error
}

// OrderAPI is the DBot surface used by DBotExecutor.
type OrderAPI interface {
	WalletIDs(ctx context.Context) ([]string, error)
	Swap(ctx context.Context, o SwapOrder) error
	SimulateSwap(ctx context.Context, o SwapOrder) error
}

// Options configures a DBotExecutor.
type Options struct {
	Mode       domain.TradeMode
	Amount     float64 // SOL per buy
	WalletID   string  // resolved from the API when empty
	Attempts   int
	RetryDelay time.Duration
	Logger     *zerolog.Logger
}

// DBotExecutor buys each token at most once per mode.
type DBotExecutor struct {
	api      OrderAPI
	receipts storage.TradeReceiptStore
	notifier notify.Notifier
	mode     domain.TradeMode
	amount   float64
	attempts int
	delay    time.Duration
	logger   zerolog.Logger
	now      func() time.Time

	mu       sync.Mutex // serializes receipt check and insert
	walletID string
}

var _ Executor = (*DBotExecutor)(nil)

// NewDBotExecutor creates an executor. Mode must be real or simulate.
func NewDBotExecutor(api OrderAPI, receipts storage.TradeReceiptStore, notifier notify.Notifier, opts Options) (*DBotExecutor, error) {
	if opts.Mode != domain.TradeModeReal && opts.Mode != domain.TradeModeSimulate {
		return nil, fmt.Errorf("unsupported trade mode %s", opts.Mode)
	}
	logger := opts.Logger
	if logger == nil {
		l := log.Logger
		logger = &l
	}
	if opts.Amount <= 0 {
		opts.Amount = DefaultAmount
	}
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultAttempts
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	return &DBotExecutor{
		api:      api,
		receipts: receipts,
		notifier: notifier,
		mode:     opts.Mode,
		amount:   opts.Amount,
		attempts: opts.Attempts,
		delay:    opts.RetryDelay,
		walletID: opts.WalletID,
		logger:   logger.With().Str("component", "trade").Str("mode", opts.Mode.String()).Logger(),
		now:      time.Now,
	}, nil
}

// Execute buys tokenAddress unless a buy receipt already exists for this mode.
// Exhausted retries are reported to the notifier and not retried further.
func (e *DBotExecutor) Execute(ctx context.Context, tokenAddress string, priceUSD float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	bought, err := e.receipts.Exists(ctx, tokenAddress, e.mode, domain.TradeSideBuy)
	if err != nil {
		return fmt.Errorf("check trade receipt: %w", err)
	}
	if bought {
		e.logger.Info().Str("token", tokenAddress).Msg("trade_skipped_duplicate")
		return nil
	}

	walletID, err := e.resolveWallet(ctx)
	if err != nil {
		observability.RecordTrade(e.mode.String(), err)
		return err
	}

	order := SwapOrder{
		WalletID:        walletID,
		Pair:            tokenAddress,
		Type:            "buy",
		AmountOrPercent: e.amount,
	}

	b := &backoff.Backoff{Min: e.delay, Max: e.delay}
	var lastErr error
	for attempt := 1; attempt <= e.attempts; attempt++ {
		lastErr = e.place(ctx, order)
		if lastErr == nil {
			break
		}
		e.logger.Warn().Err(lastErr).Str("token", tokenAddress).Int("attempt", attempt).Msg("trade_attempt_failed")
		if attempt == e.attempts {
			break
		}
		select {
		case <-ctx.Done():
			observability.RecordTrade(e.mode.String(), ctx.Err())
			return ctx.Err()
		case <-time.After(b.Duration()):
		}
	}

	observability.RecordTrade(e.mode.String(), lastErr)
	if lastErr != nil {
		e.logger.Error().Err(lastErr).Str("token", tokenAddress).Msg("trade_failed")
		msg := fmt.Sprintf("Trade failed after %d attempts, token CA: `%s`.", e.attempts, tokenAddress)
		if err := e.notifier.Text(ctx, msg); err != nil {
			e.logger.Warn().Err(err).Msg("trade_notify_failed")
		}
		return fmt.Errorf("place order %s: %w", tokenAddress, lastErr)
	}

	receipt := &domain.TradeReceipt{
		TokenAddress: tokenAddress,
		Amount:       e.amount,
		Mode:         e.mode,
		Side:         domain.TradeSideBuy,
		ExecutedAt:   e.now().UTC(),
	}
	if err := e.receipts.Insert(ctx, receipt); err != nil {
		e.logger.Error().Err(err).Str("token", tokenAddress).Msg("trade_receipt_failed")
	}

	e.logger.Info().Str("token", tokenAddress).Float64("amount", e.amount).Float64("price_usd", priceUSD).Msg("trade_placed")
	if err := e.notifier.Text(ctx, e.successMessage(tokenAddress)); err != nil {
		e.logger.Warn().Err(err).Msg("trade_notify_failed")
	}
	return nil
}

func (e *DBotExecutor) place(ctx context.Context, o SwapOrder) error {
	if e.mode == domain.TradeModeReal {
		return e.api.Swap(ctx, o)
	}
	return e.api.SimulateSwap(ctx, o)
}

// resolveWallet returns the configured wallet id or the first one listed by the API.
func (e *DBotExecutor) resolveWallet(ctx context.Context) (string, error) {
	if e.walletID != "" {
		return e.walletID, nil
	}
	ids, err := e.api.WalletIDs(ctx)
	if err != nil {
		return "", fmt.Errorf("list wallets: %w", err)
	}
	if len(ids) == 0 {
		return "", ErrNoWallet
	}
	e.walletID = ids[0]
	return e.walletID, nil
}

func (e *DBotExecutor) successMessage(tokenAddress string) string {
	kind := "Trade"
	if e.mode == domain.TradeModeSimulate {
		kind = "Simulated trade"
	}
	amount := decimal.NewFromFloat(e.amount).String()
	return fmt.Sprintf("%s sent, token CA: `%s`. Amount: %s SOL.", kind, tokenAddress, amount)
}
