package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"wallet-signal/internal/aggregate"
	"wallet-signal/internal/api"
	"wallet-signal/internal/auth"
	"wallet-signal/internal/bot"
	"wallet-signal/internal/config"
	"wallet-signal/internal/domain"
	"wallet-signal/internal/feed"
	"wallet-signal/internal/follow"
	"wallet-signal/internal/gmgn"
	"wallet-signal/internal/market"
	"wallet-signal/internal/notify"
	"wallet-signal/internal/observability"
	"wallet-signal/internal/pipeline"
	"wallet-signal/internal/scoring"
	"wallet-signal/internal/storage/backend"
	"wallet-signal/internal/supervisor"
	"wallet-signal/internal/trade"
)

const httpShutdownTimeout = 10 * time.Second

// Server wires every long-running component together.
type Server struct {
	logger zerolog.Logger

	gas        *market.GasCache
	processor  *pipeline.Processor
	supervisor *supervisor.Supervisor
	follow     *follow.Service
	notifier   notify.Notifier

	botAPI *tgbotapi.BotAPI // nil when no bot token is configured
	bot    *bot.Bot

	http    *http.Server
	metrics *http.Server // nil when METRICS_ADDR is empty
}

// NewServer builds the component graph from cfg.
func NewServer(cfg *config.Config, stores *backend.Stores, logger *zerolog.Logger) (*Server, error) {
	client := gmgn.NewClient(cfg.GMGNBaseURL, gmgn.WithRateLimit(cfg.UpstreamRPS, 1))

	accounts := make([]domain.TrackedAccount, 0, len(cfg.Accounts))
	addresses := make([]string, 0, len(cfg.Accounts))
	for _, a := range cfg.Accounts {
		account, err := auth.NewTrackedAccount(a.Address, a.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", a.Address, err)
		}
		accounts = append(accounts, account)
		addresses = append(addresses, account.Address)
	}
	manager := auth.NewManager(client, auth.NewStore(addresses...), accounts, auth.Options{Logger: logger})

	s := &Server{logger: logger.With().Str("component", "server").Logger()}

	if cfg.TelegramBotToken != "" {
		botAPI, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
		if err != nil {
			return nil, fmt.Errorf("telegram: %w", err)
		}
		s.botAPI = botAPI
		s.notifier = notify.NewTelegramNotifier(botAPI, cfg.ChannelID, stores.Notified, notify.Options{
			RepeatPush: cfg.RepeatPush,
			Logger:     logger,
		})
	} else {
		s.logger.Warn().Msg("telegram_disabled")
		s.notifier = notify.Discard{Logger: logger.With().Str("component", "notify").Logger()}
	}

	s.gas = market.NewGasCache(client, market.GasOptions{Interval: cfg.GasRefreshInterval, Logger: logger})

	strategy, err := scoring.FromConfig(scoring.Kind(cfg.Strategy), scoring.Thresholds{
		MinBuyWallets:    cfg.MinBuyWallets,
		MinMarketCap:     cfg.MinMarketCap,
		MaxMarketCap:     cfg.MaxMarketCap,
		MaxCreateMinutes: cfg.MaxCreateMinutes,
		RequireSocials:   cfg.FilterDexSocials,
		RequireAds:       cfg.FilterDexAds,
		RejectLaunchpad:  cfg.FilterInLaunchpad,
	})
	if err != nil {
		return nil, err
	}

	var executor trade.Executor
	if cfg.TradeMode != domain.TradeModeOff {
		exec, err := trade.NewDBotExecutor(
			trade.NewDBotClient(cfg.DBotBaseURL, cfg.DBotToken, nil),
			stores.Receipts,
			s.notifier,
			trade.Options{
				Mode:     cfg.TradeMode,
				Amount:   cfg.TradeAmount,
				WalletID: cfg.DBotWalletID,
				Logger:   logger,
			},
		)
		if err != nil {
			return nil, err
		}
		executor = exec
	}

	s.processor, err = pipeline.New(pipeline.Deps{
		Contexts:  aggregate.New(client, manager, aggregate.Options{MaxPages: cfg.MaxHistoryPages, Logger: logger}),
		Snapshots: market.NewFetcher(client),
		Prices:    s.gas,
		Scorer:    scoring.NewScorer(strategy, cfg.Filter),
		Formatter: notify.NewFormatter(cfg.Location()),
		Notifier:  s.notifier,
		Executor:  executor,
		Signals:   stores.Signals,
	}, pipeline.Options{
		Concurrency: cfg.ProcessConcurrency,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	connector := feed.NewConnector(cfg.GMGNWSURL, feed.Options{Logger: logger})
	s.supervisor = supervisor.New(manager, supervisor.FeedDialer{Connector: connector}, s.processor.HandleFrame, supervisor.Options{
		ReconnectDelay:   cfg.ReconnectDelay,
		RotationInterval: cfg.CredentialRotationInterval,
		Logger:           logger,
	})

	s.follow = follow.New(manager, client, follow.Options{Interval: cfg.FollowRefreshInterval, Logger: logger})

	if s.botAPI != nil {
		s.bot = bot.New(s.botAPI, s.follow, cfg.AdminList, bot.Options{Logger: logger})
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	api.NewHandler(s.supervisor, s.follow, s.gas, stores.Signals, api.Options{Logger: logger}).Register(engine)
	engine.GET(cfg.RelayRoute, supervisor.NewRelay(s.supervisor).Handle)
	s.http = &http.Server{Addr: cfg.RelayAddr(), Handler: engine}

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.Handler())
		s.metrics = &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	}

	return s, nil
}

// Run starts every component and blocks until ctx is done or one fails.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info().Str("addr", s.http.Addr).Msg("server_starting")

	if err := notify.Startup(ctx, s.notifier); err != nil {
		s.logger.Warn().Err(err).Msg("startup_message_failed")
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.gas.Run(ctx) })
	g.Go(func() error { return s.follow.Run(ctx) })
	g.Go(func() error { return s.processor.Run(ctx) })
	g.Go(func() error { return s.supervisor.Run(ctx) })

	if s.bot != nil {
		updates := s.botAPI.GetUpdatesChan(tgbotapi.NewUpdate(0))
		g.Go(func() error {
			defer s.botAPI.StopReceivingUpdates()
			return s.bot.Run(ctx, updates)
		})
	}

	g.Go(func() error { return serveHTTP(ctx, s.http) })
	if s.metrics != nil {
		g.Go(func() error { return serveHTTP(ctx, s.metrics) })
	}

	return g.Wait()
}

// serveHTTP runs srv until ctx is done, then shuts it down gracefully.
func serveHTTP(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server %s: %w", srv.Addr, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
