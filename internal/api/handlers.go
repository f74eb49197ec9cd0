// Package api is the operational HTTP surface: health, status, metrics,
// follow administration and signal history.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"wallet-signal/internal/domain"
	"wallet-signal/internal/follow"
	"wallet-signal/internal/observability"
	"wallet-signal/internal/reporting"
	"wallet-signal/internal/storage"
	"wallet-signal/internal/supervisor"
)

// StatusSource reports supervisor state.
type StatusSource interface {
	Status() supervisor.Status
}

// Follower manages followed wallets.
type Follower interface {
	Add(ctx context.Context, wallet string) (string, error)
	Remove(ctx context.Context, wallet string) ([]string, error)
	Counts() map[string]int
}

// PriceSource reports the cached SOL price.
type PriceSource interface {
	SOLPrice() float64
	UpdatedAt() time.Time
}

// HealthResponse is the /health body.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Uptime  string `json:"uptime"`
}

// StatusResponse is the /status body.
type StatusResponse struct {
	Supervisor     supervisor.Status `json:"supervisor"`
	FollowCounts   map[string]int    `json:"follow_counts"`
	SOLPriceUSD    float64           `json:"sol_price_usd"`
	PriceUpdatedAt *time.Time        `json:"price_updated_at,omitempty"`
}

type followRequest struct {
	Wallet string `json:"wallet" binding:"required"`
}

// Handler serves the HTTP endpoints. Signals may be nil.
type Handler struct {
	status  StatusSource
	follow  Follower
	prices  PriceSource
	signals storage.SignalStore
	reports *reporting.Generator
	started time.Time
	logger  zerolog.Logger
}

// Options configures Handler.
type Options struct {
	Logger *zerolog.Logger
}

// NewHandler creates a Handler.
func NewHandler(status StatusSource, follower Follower, prices PriceSource, signals storage.SignalStore, opts Options) *Handler {
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	var reports *reporting.Generator
	if signals != nil {
		reports = reporting.NewGenerator(signals)
	}
	return &Handler{
		status:  status,
		follow:  follower,
		prices:  prices,
		signals: signals,
		reports: reports,
		started: time.Now(),
		logger:  logger.With().Str("component", "api").Logger(),
	}
}

// Register mounts every endpoint on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/health", h.Health)
	r.GET("/status", h.Status)
	r.GET("/metrics", gin.WrapH(observability.Handler()))

	v1 := r.Group("/api/v1")
	{
		v1.GET("/follow", h.FollowCounts)
		v1.POST("/follow", h.Follow)
		v1.DELETE("/follow/:wallet", h.Unfollow)
		v1.GET("/signals", h.Signals)
		v1.GET("/signals/:id", h.Signal)
		v1.GET("/report", h.Report)
	}
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Service: "wallet-signal",
		Uptime:  time.Since(h.started).Round(time.Second).String(),
	})
}

// Status reports supervisor state, follow counts and the SOL price.
func (h *Handler) Status(c *gin.Context) {
	resp := StatusResponse{
		Supervisor:   h.status.Status(),
		FollowCounts: h.follow.Counts(),
		SOLPriceUSD:  h.prices.SOLPrice(),
	}
	if t := h.prices.UpdatedAt(); !t.IsZero() {
		resp.PriceUpdatedAt = &t
	}
	c.JSON(http.StatusOK, resp)
}

// FollowCounts lists followed wallet counts per account.
func (h *Handler) FollowCounts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"counts": h.follow.Counts()})
}

// Follow adds a wallet.
func (h *Handler) Follow(c *gin.Context) {
	var req followRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	account, err := h.follow.Add(c.Request.Context(), req.Wallet)
	switch {
	case errors.Is(err, follow.ErrInvalidWallet):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, follow.ErrAlreadyFollowed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "account": account})
	case err != nil:
		h.logger.Error().Err(err).Str("wallet", req.Wallet).Msg("follow_failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"wallet": req.Wallet, "account": account})
	}
}

// Unfollow removes a wallet from every account following it.
func (h *Handler) Unfollow(c *gin.Context) {
	wallet := c.Param("wallet")
	removed, err := h.follow.Remove(c.Request.Context(), wallet)
	switch {
	case errors.Is(err, follow.ErrInvalidWallet):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil && len(removed) == 0:
		h.logger.Error().Err(err).Str("wallet", wallet).Msg("unfollow_failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusMultiStatus, gin.H{"wallet": wallet, "accounts": removed, "error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"wallet": wallet, "accounts": removed})
	}
}

// Signals queries signal history by token or by event time range.
func (h *Handler) Signals(c *gin.Context) {
	if h.signals == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "signal history disabled"})
		return
	}

	var (
		records []*domain.SignalRecord
		err     error
	)
	if token := c.Query("token"); token != "" {
		records, err = h.signals.GetByToken(c.Request.Context(), token)
	} else {
		start, errStart := strconv.ParseInt(c.Query("start"), 10, 64)
		end, errEnd := strconv.ParseInt(c.Query("end"), 10, 64)
		if errStart != nil || errEnd != nil || end < start {
			c.JSON(http.StatusBadRequest, gin.H{"error": "token or start/end (unix seconds) required"})
			return
		}
		records, err = h.signals.GetByTimeRange(c.Request.Context(), start, end)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]SignalResponse, 0, len(records))
	for _, r := range records {
		out = append(out, toSignalResponse(r))
	}
	c.JSON(http.StatusOK, gin.H{"signals": out})
}

// Signal fetches one signal by id.
func (h *Handler) Signal(c *gin.Context) {
	if h.signals == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "signal history disabled"})
		return
	}
	rec, err := h.signals.GetByID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, toSignalResponse(rec))
}

// Report summarizes signal history over ?since= (default 24h).
// ?format=markdown returns the rendered report instead of JSON.
func (h *Handler) Report(c *gin.Context) {
	if h.reports == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "signal history disabled"})
		return
	}
	window, err := time.ParseDuration(c.DefaultQuery("since", "24h"))
	if err != nil || window <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "since must be a positive duration"})
		return
	}

	report, err := h.reports.GenerateSince(c.Request.Context(), window)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if c.Query("format") == "markdown" {
		c.String(http.StatusOK, reporting.RenderMarkdown(report))
		return
	}
	c.JSON(http.StatusOK, report)
}
