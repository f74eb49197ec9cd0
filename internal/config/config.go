// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"wallet-signal/internal/domain"
)

// Configuration errors.
var (
	ErrMissingAccounts  = errors.New("PRIVATE_KEY_BASE58_LIST and WALLET_ADDRESS_LIST are required")
	ErrAccountMismatch  = errors.New("PRIVATE_KEY_BASE58_LIST and WALLET_ADDRESS_LIST lengths differ")
	ErrMissingPostgres  = errors.New("POSTGRES_DSN is required for the postgres backend")
	ErrUnknownBackend   = errors.New("unknown STORAGE_BACKEND")
	ErrMissingDBotToken = errors.New("DBOT_TOKEN is required when TRADE_TYPE is enabled")
)

// Storage backends.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Account is one tracked wallet as configured.
type Account struct {
	Address    string
	PrivateKey string // base58 keypair
}

// Config holds all configuration values.
type Config struct {
	Accounts []Account

	// Telegram
	TelegramBotToken string
	ChannelID        int64
	AdminList        []int64
	Timezone         string

	// Scoring
	Filter             bool
	Strategy           int
	MinBuyWallets      int
	MinMarketCap       float64
	MaxMarketCap       float64
	MaxCreateMinutes   int
	FilterDexSocials   bool
	FilterDexAds       bool
	FilterInLaunchpad  bool
	RepeatPush         bool
	MaxHistoryPages    int
	ProcessConcurrency int

	// Trading
	TradeMode    domain.TradeMode
	DBotToken    string
	DBotWalletID string
	DBotBaseURL  string
	TradeAmount  float64

	// Relay
	RelayServer string
	RelayPort   int
	RelayRoute  string

	// Storage
	StorageBackend string
	DatabaseFile   string
	PostgresDSN    string
	ClickhouseDSN  string

	// Upstream
	GMGNBaseURL string
	GMGNWSURL   string
	UpstreamRPS float64

	// Intervals
	CredentialRotationInterval time.Duration
	GasRefreshInterval         time.Duration
	FollowRefreshInterval      time.Duration
	ReconnectDelay             time.Duration

	// Runtime
	LogLevel    string
	LogFormat   string
	MetricsAddr string
}

// Load reads configuration from environment variables with fallback to the
// given .env files (default ".env"). Missing files are ignored.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	accounts, err := parseAccounts(getEnvList("PRIVATE_KEY_BASE58_LIST"), getEnvList("WALLET_ADDRESS_LIST"))
	if err != nil {
		return nil, err
	}

	admins, err := parseInt64List(getEnvList("ADMIN_LIST"))
	if err != nil {
		return nil, fmt.Errorf("ADMIN_LIST: %w", err)
	}

	cfg := &Config{
		Accounts: accounts,

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		ChannelID:        getEnvInt64("CHANNEL_ID", 0),
		AdminList:        admins,
		Timezone:         getEnv("TIMEZONE", "UTC"),

		Filter:             getEnvBool("IF_FILTER", true),
		Strategy:           getEnvInt("STRATEGY", -1),
		MinBuyWallets:      getEnvInt("MIN_BUY_WALLETS", 0),
		MinMarketCap:       getEnvFloat("MIN_MARKET_CAP", 0),
		MaxMarketCap:       getEnvFloat("MAX_MARKET_CAP", 0),
		MaxCreateMinutes:   getEnvInt("MAX_CEATE_TIME", 0),
		FilterDexSocials:   getEnvBool("FILTER_DEX_SOCIALS", false),
		FilterDexAds:       getEnvBool("FILTER_DEX_ADS", false),
		FilterInLaunchpad:  getEnvBool("FILTER_IN_LAUNCH_PAD", false),
		RepeatPush:         getEnvBool("REPEAT_PUSH", true),
		MaxHistoryPages:    getEnvInt("MAX_HISTORY_PAGES", 50),
		ProcessConcurrency: getEnvInt("PROCESS_CONCURRENCY", 8),

		TradeMode:    domain.TradeMode(getEnvInt("TRADE_TYPE", int(domain.TradeModeOff))),
		DBotToken:    getEnv("DBOT_TOKEN", ""),
		DBotWalletID: getEnv("DBOT_WALLET_ID", ""),
		DBotBaseURL:  getEnv("DBOT_BASE_URL", "https://api-bot-v1.dbotx.com"),
		TradeAmount:  getEnvFloat("TRADE_AMOUNT", 0.2),

		RelayServer: getEnv("WALLET_SIGNAL_SERVER", "localhost"),
		RelayPort:   getEnvInt("WALLET_SIGNAL_PORT", 8000),
		RelayRoute:  getEnv("WALLET_SIGNAL_ROUTE", "/wallet_signal"),

		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", BackendSQLite)),
		DatabaseFile:   getEnv("DATABASE_FILE", "data/data.db"),
		PostgresDSN:    getEnv("POSTGRES_DSN", ""),
		ClickhouseDSN:  getEnv("CLICKHOUSE_DSN", ""),

		GMGNBaseURL: getEnv("GMGN_BASE_URL", "https://gmgn.ai"),
		GMGNWSURL:   getEnv("GMGN_WS_URL", "wss://ws.gmgn.ai/stream"),
		UpstreamRPS: getEnvFloat("UPSTREAM_RPS", 5),

		CredentialRotationInterval: getEnvDuration("CREDENTIAL_ROTATION_INTERVAL", 30*time.Minute),
		GasRefreshInterval:         getEnvDuration("GAS_REFRESH_INTERVAL", 20*time.Second),
		FollowRefreshInterval:      getEnvDuration("FOLLOW_REFRESH_INTERVAL", 30*time.Second),
		ReconnectDelay:             getEnvDuration("RECONNECT_DELAY", 3*time.Second),

		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "console"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set and valid.
func (c *Config) Validate() error {
	if len(c.Accounts) == 0 {
		return ErrMissingAccounts
	}

	switch c.StorageBackend {
	case BackendSQLite, BackendMemory:
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return ErrMissingPostgres
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.StorageBackend)
	}

	if c.TradeMode != domain.TradeModeOff && c.DBotToken == "" {
		return ErrMissingDBotToken
	}

	if c.MaxMarketCap > 0 && c.MinMarketCap > c.MaxMarketCap {
		return fmt.Errorf("MIN_MARKET_CAP (%v) exceeds MAX_MARKET_CAP (%v)", c.MinMarketCap, c.MaxMarketCap)
	}

	if c.RelayPort < 1 || c.RelayPort > 65535 {
		return fmt.Errorf("WALLET_SIGNAL_PORT must be between 1 and 65535")
	}

	if c.MaxHistoryPages < 1 {
		return fmt.Errorf("MAX_HISTORY_PAGES must be at least 1")
	}

	if c.ProcessConcurrency < 1 {
		return fmt.Errorf("PROCESS_CONCURRENCY must be at least 1")
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE: %w", err)
	}

	return nil
}

// Location returns the configured display time zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// RelayAddr returns host:port for the relay listener.
func (c *Config) RelayAddr() string {
	return fmt.Sprintf("%s:%d", c.RelayServer, c.RelayPort)
}

// String renders the configuration with secrets masked.
func (c *Config) String() string {
	addrs := make([]string, len(c.Accounts))
	for i, a := range c.Accounts {
		addrs[i] = a.Address
	}
	return fmt.Sprintf(
		"accounts=%v telegram=%s dbot=%s strategy=%d filter=%t trade_mode=%s backend=%s relay=%s%s",
		addrs, maskSecret(c.TelegramBotToken), maskSecret(c.DBotToken),
		c.Strategy, c.Filter, c.TradeMode, c.StorageBackend, c.RelayAddr(), c.RelayRoute,
	)
}

func parseAccounts(keys, addresses []string) ([]Account, error) {
	if len(keys) == 0 || len(addresses) == 0 {
		return nil, ErrMissingAccounts
	}
	if len(keys) != len(addresses) {
		return nil, ErrAccountMismatch
	}

	accounts := make([]Account, len(keys))
	for i := range keys {
		accounts[i] = Account{Address: addresses[i], PrivateKey: keys[i]}
	}
	return accounts, nil
}

func parseInt64List(values []string) ([]int64, error) {
	out := make([]int64, 0, len(values))
	for _, v := range values {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// maskSecret hides all but the last 4 characters of a secret.
func maskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 8 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return fallback
}

// getEnvBool accepts the 0/1 integers used by existing deployments as well as true/false.
func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n != 0
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
	}
	return fallback
}
