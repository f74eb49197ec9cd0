package notify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-signal/internal/domain"
	"wallet-signal/internal/storage/memory"
)

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{999.4, "999"},
		{420_000, "420.00K"},
		{1_234_567, "1.23M"},
		{2_500_000_000, "2.50B"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatNumber(tt.in), "input %v", tt.in)
	}
}

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0.0000012345, "0.0{5}1234"},
		{0.00001, "0.0{4}1"},
		{0.00042, "0.00042"},
		{1.5, "1.5"},
		{0, "0"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatPrice(tt.in), "input %v", tt.in)
	}
}

func testSignal() Signal {
	return Signal{
		Event: &domain.RawActivityEvent{
			Kind:         domain.EventBuy,
			Wallet:       "W1",
			TokenAddress: "Tok111",
			TokenSymbol:  "TK",
			TokenName:    "Token",
			PriceUSD:     0.00042,
			Timestamp:    1700000000,
			OpenOrClose:  true,
		},
		Context: &domain.TokenContext{
			AllWallets:     3,
			FullWallets:    1,
			HoldWallets:    1,
			CloseWallets:   1,
			Buys10m:        2,
			Closes10m:      1,
			FirstTradeTime: 1699999400,
		},
		Snapshot: &domain.MarketSnapshot{
			PriceUSD:        0.00042,
			MarketCap:       420_000,
			HolderCount:     321,
			Top10HolderRate: 0.31,
		},
		Score:   domain.ScoreResult{Pass: true, Strategy: "composite", Tag: "2.1", Heat: 3},
		CostSOL: 1.23456,
	}
}

func TestFormatter_Format(t *testing.T) {
	msg := NewFormatter(time.UTC).Format(testSignal())

	assert.True(t, strings.HasPrefix(msg, "**🟢 Open**, **1.235 SOL**  ***TK(Token)***\n\n"))
	for _, want := range []string{
		"**Trade time**: 2023-11-14 22:13:20\n",
		"**CA**: `Tok111`\n",
		"***Market cap***: ***$420.00K*** ($0.00042)\n",
		"**10m buy wallets**: ***2***; **10m closed wallets**: ***1***",
		"**First buy**: ***2023-11-14 22:03:20***\n",
		"**Buy wallets**: **3**🟦🟦🟦\n",
		"**Full position**: **1**🟩\n",
		"**Reduced**: **1**🟨\n",
		"**Closed**: **1**🟥\n",
		"**Holders**: 321, **TOP10**: 31.00%\n",
		"**Heat**: 🔥🔥🔥 3/10, **Rule**: composite 2.1",
		"[W1](https://gmgn.ai/sol/address/W1)",
		"https://t.me/solana_trojanbot?start=r-marcle253818-Tok111",
		"https://t.me/GMGN_sol_bot?start=Tok111",
		"https://t.me/pepeboost_sol12_bot?start=ref_0nh46x_ca_Tok111",
		"https://t.me/CashCash_trade_bot?start=ref_132dfe48-7_ca_Tok111",
		"[GMGN](https://gmgn.ai/sol/token/Tok111)",
	} {
		assert.Contains(t, msg, want)
	}
}

func TestFormatter_Timezone(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	msg := NewFormatter(loc).Format(testSignal())
	assert.Contains(t, msg, "**Trade time**: 2023-11-15 06:13:20\n")
}

func TestFormatter_NoTagOmitsRule(t *testing.T) {
	s := testSignal()
	s.Score = domain.ScoreResult{Pass: true, Strategy: "unfiltered", Heat: 1}
	msg := NewFormatter(nil).Format(s)
	assert.Contains(t, msg, "**Heat**: 🔥 1/10\n")
	assert.NotContains(t, msg, "**Rule**")
}

type fakeSender struct {
	mu       sync.Mutex
	failures int
	calls    int
	sent     []tgbotapi.MessageConfig
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return tgbotapi.Message{}, errors.New("telegram down")
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{MessageID: f.calls}, nil
}

func newTestNotifier(sender Sender, repeat bool) (*TelegramNotifier, *memory.NotifiedTokenStore) {
	store := memory.NewNotifiedTokenStore()
	n := NewTelegramNotifier(sender, -100, store, Options{
		RepeatPush: repeat,
		RetryDelay: time.Millisecond,
	})
	return n, store
}

func TestTelegramNotifier_MessageOptions(t *testing.T) {
	sender := &fakeSender{}
	n, _ := newTestNotifier(sender, true)

	require.NoError(t, Startup(context.Background(), n))
	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, int64(-100), msg.ChatID)
	assert.Equal(t, startupMessage, msg.Text)
	assert.Equal(t, tgbotapi.ModeMarkdown, msg.ParseMode)
	assert.True(t, msg.DisableWebPagePreview)
}

func TestTelegramNotifier_Retries(t *testing.T) {
	sender := &fakeSender{failures: 2}
	n, _ := newTestNotifier(sender, true)

	require.NoError(t, n.Text(context.Background(), "hi"))
	assert.Equal(t, 3, sender.calls)
	assert.Len(t, sender.sent, 1)
}

func TestTelegramNotifier_GivesUpAfterRetries(t *testing.T) {
	sender := &fakeSender{failures: 5}
	n, store := newTestNotifier(sender, false)
	ctx := context.Background()

	err := n.Notify(ctx, "msg", "Tok")
	require.Error(t, err)
	assert.Equal(t, DefaultRetries, sender.calls)

	// Nothing delivered, nothing recorded.
	seen, err := store.Exists(ctx, "Tok")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestTelegramNotifier_RepeatPushOff(t *testing.T) {
	sender := &fakeSender{}
	n, store := newTestNotifier(sender, false)
	ctx := context.Background()

	require.NoError(t, n.Notify(ctx, "first", "Tok"))
	require.NoError(t, n.Notify(ctx, "second", "Tok"))
	require.NoError(t, n.Notify(ctx, "other", "Tok2"))

	require.Len(t, sender.sent, 2)
	assert.Equal(t, "first", sender.sent[0].Text)
	assert.Equal(t, "other", sender.sent[1].Text)

	recs, err := store.GetByToken(ctx, "Tok")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestTelegramNotifier_RepeatPushOn(t *testing.T) {
	sender := &fakeSender{}
	n, store := newTestNotifier(sender, true)
	ctx := context.Background()

	require.NoError(t, n.Notify(ctx, "first", "Tok"))
	require.NoError(t, n.Notify(ctx, "second", "Tok"))
	assert.Len(t, sender.sent, 2)

	seen, err := store.Exists(ctx, "Tok")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestTelegramNotifier_CancelStopsRetry(t *testing.T) {
	sender := &fakeSender{failures: 5}
	n := NewTelegramNotifier(sender, 1, nil, Options{RetryDelay: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := n.Text(ctx, "hi")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, sender.calls)
}

func TestTelegramNotifier_BotAPI(t *testing.T) {
	var (
		mu   sync.Mutex
		form map[string]string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"signal","username":"signal_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			require.NoError(t, r.ParseForm())
			mu.Lock()
			form = map[string]string{
				"chat_id":                  r.Form.Get("chat_id"),
				"text":                     r.Form.Get("text"),
				"parse_mode":               r.Form.Get("parse_mode"),
				"disable_web_page_preview": r.Form.Get("disable_web_page_preview"),
			}
			mu.Unlock()
			w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":-100,"type":"channel"}}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint("123:abc", server.URL+"/bot%s/%s")
	require.NoError(t, err)

	n := NewTelegramNotifier(bot, -100, nil, Options{RetryDelay: time.Millisecond})
	require.NoError(t, n.Text(context.Background(), "*hello*"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "-100", form["chat_id"])
	assert.Equal(t, "*hello*", form["text"])
	assert.Equal(t, "Markdown", form["parse_mode"])
	assert.Equal(t, "true", form["disable_web_page_preview"])
}
