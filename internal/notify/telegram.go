package notify

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"wallet-signal/internal/domain"
	"wallet-signal/internal/observability"
	"wallet-signal/internal/storage"
)

const (
	DefaultRetries    = 3
	DefaultRetryDelay = time.Second

	startupMessage = "Bot started successfully!"
)

// Notifier delivers messages to the operator channel.
type Notifier interface {
	// Notify delivers a passing signal for tokenAddress.
	Notify(ctx context.Context, message, tokenAddress string) error
	// Text delivers an operational message (startup, trade results).
	Text(ctx context.Context, message string) error
}

// Sender is the subset of *tgbotapi.BotAPI used for delivery.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Options configures a TelegramNotifier.
type Options struct {
	// RepeatPush allows the same token to be pushed more than once.
	RepeatPush bool
	Retries    int
	RetryDelay time.Duration
	Logger     *zerolog.Logger
}

// TelegramNotifier sends markdown messages to one chat.
type TelegramNotifier struct {
	sender     Sender
	chatID     int64
	store      storage.NotifiedTokenStore
	repeatPush bool
	retries    int
	retryDelay time.Duration
	logger     zerolog.Logger
	now        func() time.Time
}

var _ Notifier = (*TelegramNotifier)(nil)

// NewTelegramNotifier creates a notifier. store may be nil when RepeatPush is set.
func NewTelegramNotifier(sender Sender, chatID int64, store storage.NotifiedTokenStore, opts Options) *TelegramNotifier {
	logger := opts.Logger
	if logger == nil {
		l := log.Logger
		logger = &l
	}
	if opts.Retries <= 0 {
		opts.Retries = DefaultRetries
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	return &TelegramNotifier{
		sender:     sender,
		chatID:     chatID,
		store:      store,
		repeatPush: opts.RepeatPush || store == nil,
		retries:    opts.Retries,
		retryDelay: opts.RetryDelay,
		logger:     logger.With().Str("component", "notify").Logger(),
		now:        time.Now,
	}
}

// Startup announces on n that the process is up.
func Startup(ctx context.Context, n Notifier) error {
	return n.Text(ctx, startupMessage)
}

// Notify delivers message unless the token was already pushed and repeats are off.
func (n *TelegramNotifier) Notify(ctx context.Context, message, tokenAddress string) error {
	if !n.repeatPush {
		seen, err := n.store.Exists(ctx, tokenAddress)
		if err != nil {
			return fmt.Errorf("check notified token: %w", err)
		}
		if seen {
			n.logger.Info().Str("token", tokenAddress).Msg("notify_skipped_repeat")
			observability.RecordNotification("skipped")
			return nil
		}
	}

	if err := n.send(ctx, message); err != nil {
		return err
	}

	if !n.repeatPush {
		rec := &domain.NotifiedToken{TokenAddress: tokenAddress, NotifiedAt: n.now().UTC()}
		if err := n.store.Insert(ctx, rec); err != nil {
			// Delivered already; a missing record only risks one repeat.
			n.logger.Warn().Err(err).Str("token", tokenAddress).Msg("notify_record_failed")
		}
	}
	return nil
}

// Text delivers message without dedupe.
func (n *TelegramNotifier) Text(ctx context.Context, message string) error {
	return n.send(ctx, message)
}

func (n *TelegramNotifier) send(ctx context.Context, text string) error {
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true

	var lastErr error
	for attempt := 1; attempt <= n.retries; attempt++ {
		if _, err := n.sender.Send(msg); err != nil {
			lastErr = err
			n.logger.Warn().Err(err).Int("attempt", attempt).Msg("notify_send_failed")
			if attempt == n.retries {
				break
			}
			select {
			case <-ctx.Done():
				observability.RecordNotification("error")
				return ctx.Err()
			case <-time.After(n.retryDelay):
			}
			continue
		}
		observability.RecordNotification("sent")
		return nil
	}

	observability.RecordNotification("error")
	n.logger.Error().Err(lastErr).Int("attempts", n.retries).Msg("notify_gave_up")
	return fmt.Errorf("send message after %d attempts: %w", n.retries, lastErr)
}

// Discard is a Notifier that drops every message. Used when no bot token is configured.
type Discard struct {
	Logger zerolog.Logger
}

// Notify logs and drops the message.
func (d Discard) Notify(_ context.Context, message, tokenAddress string) error {
	d.Logger.Info().Str("token", tokenAddress).Int("bytes", len(message)).Msg("notify_discarded")
	return nil
}

// Text logs and drops the message.
func (d Discard) Text(_ context.Context, message string) error {
	d.Logger.Info().Int("bytes", len(message)).Msg("notify_discarded")
	return nil
}
