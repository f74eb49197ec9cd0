// Package bot serves the Telegram admin commands for follow management.
package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"wallet-signal/internal/follow"
	"wallet-signal/internal/notify"
)

const helpText = "Commands:\n" +
	"/follow <wallet> [wallet...] - follow wallets\n" +
	"/unfollow <wallet> [wallet...] - unfollow wallets\n" +
	"/following - followed wallet count per account"

// Follower is the follow management surface used by commands.
type Follower interface {
	Add(ctx context.Context, wallet string) (string, error)
	Remove(ctx context.Context, wallet string) ([]string, error)
	Counts() map[string]int
}

// Options configures Bot.
type Options struct {
	Logger *zerolog.Logger
}

// Bot answers admin commands.
type Bot struct {
	sender notify.Sender
	follow Follower
	admins map[int64]struct{}
	logger zerolog.Logger
}

// New creates a Bot. Only users in admins may run commands.
func New(sender notify.Sender, follower Follower, admins []int64, opts Options) *Bot {
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	set := make(map[int64]struct{}, len(admins))
	for _, id := range admins {
		set[id] = struct{}{}
	}
	return &Bot{
		sender: sender,
		follow: follower,
		admins: set,
		logger: logger.With().Str("component", "bot").Logger(),
	}
}

// Run handles updates until ctx is done or the channel closes.
func (b *Bot) Run(ctx context.Context, updates <-chan tgbotapi.Update) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.Handle(ctx, update)
		}
	}
}

// Handle answers one update. Non-command messages are ignored.
func (b *Bot) Handle(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || !msg.IsCommand() {
		return
	}
	if msg.From == nil || !b.isAdmin(msg.From.ID) {
		var from int64
		if msg.From != nil {
			from = msg.From.ID
		}
		b.logger.Warn().Int64("user", from).Str("command", msg.Command()).Msg("command_unauthorized")
		b.reply(msg, "Not authorized.")
		return
	}

	b.logger.Info().Int64("user", msg.From.ID).Str("command", msg.Command()).Msg("command_received")

	args := strings.Fields(msg.CommandArguments())
	switch msg.Command() {
	case "follow":
		b.reply(msg, b.followWallets(ctx, args))
	case "unfollow":
		b.reply(msg, b.unfollowWallets(ctx, args))
	case "following":
		b.reply(msg, b.counts())
	default:
		b.reply(msg, helpText)
	}
}

func (b *Bot) followWallets(ctx context.Context, wallets []string) string {
	if len(wallets) == 0 {
		return "Usage: /follow <wallet> [wallet...]"
	}
	lines := make([]string, 0, len(wallets))
	for _, w := range wallets {
		account, err := b.follow.Add(ctx, w)
		switch {
		case errors.Is(err, follow.ErrAlreadyFollowed):
			lines = append(lines, fmt.Sprintf("%s: already followed by %s", w, short(account)))
		case errors.Is(err, follow.ErrInvalidWallet):
			lines = append(lines, fmt.Sprintf("%s: invalid address", w))
		case err != nil:
			b.logger.Error().Err(err).Str("wallet", w).Msg("follow_failed")
			lines = append(lines, fmt.Sprintf("%s: failed", w))
		default:
			lines = append(lines, fmt.Sprintf("%s: followed by %s", w, short(account)))
		}
	}
	return strings.Join(lines, "\n")
}

func (b *Bot) unfollowWallets(ctx context.Context, wallets []string) string {
	if len(wallets) == 0 {
		return "Usage: /unfollow <wallet> [wallet...]"
	}
	lines := make([]string, 0, len(wallets))
	for _, w := range wallets {
		removed, err := b.follow.Remove(ctx, w)
		switch {
		case errors.Is(err, follow.ErrInvalidWallet):
			lines = append(lines, fmt.Sprintf("%s: invalid address", w))
		case err != nil && len(removed) == 0:
			b.logger.Error().Err(err).Str("wallet", w).Msg("unfollow_failed")
			lines = append(lines, fmt.Sprintf("%s: failed", w))
		case err != nil:
			b.logger.Warn().Err(err).Str("wallet", w).Msg("unfollow_partial")
			lines = append(lines, fmt.Sprintf("%s: unfollowed on %d account(s), some failed", w, len(removed)))
		default:
			lines = append(lines, fmt.Sprintf("%s: unfollowed on %d account(s)", w, len(removed)))
		}
	}
	return strings.Join(lines, "\n")
}

func (b *Bot) counts() string {
	counts := b.follow.Counts()
	if len(counts) == 0 {
		return "No follow data yet."
	}
	accounts := make([]string, 0, len(counts))
	for a := range counts {
		accounts = append(accounts, a)
	}
	sort.Strings(accounts)

	var sb strings.Builder
	total := 0
	for _, a := range accounts {
		fmt.Fprintf(&sb, "%s: %d\n", short(a), counts[a])
		total += counts[a]
	}
	fmt.Fprintf(&sb, "Total: %d", total)
	return sb.String()
}

func (b *Bot) isAdmin(id int64) bool {
	_, ok := b.admins[id]
	return ok
}

func (b *Bot) reply(to *tgbotapi.Message, text string) {
	msg := tgbotapi.NewMessage(to.Chat.ID, text)
	msg.ReplyToMessageID = to.MessageID
	msg.DisableWebPagePreview = true
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Warn().Err(err).Msg("reply_failed")
	}
}

// short abbreviates an address to its first and last four characters.
func short(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:4] + ".." + addr[len(addr)-4:]
}
