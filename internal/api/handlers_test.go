package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-signal/internal/domain"
	"wallet-signal/internal/follow"
	"wallet-signal/internal/storage"
	"wallet-signal/internal/storage/memory"
	"wallet-signal/internal/supervisor"
)

type fakeStatus struct{}

func (fakeStatus) Status() supervisor.Status {
	return supervisor.Status{State: "running", ConnectionSets: 2}
}

type fakeFollower struct {
	addErr    error
	removeErr error
	removed   []string
}

func (f *fakeFollower) Add(ctx context.Context, wallet string) (string, error) {
	if f.addErr != nil {
		return "A2", f.addErr
	}
	return "A1", nil
}

func (f *fakeFollower) Remove(ctx context.Context, wallet string) ([]string, error) {
	return f.removed, f.removeErr
}

func (f *fakeFollower) Counts() map[string]int {
	return map[string]int{"A1": 3, "A2": 1}
}

type fakePrices struct{ at time.Time }

func (p fakePrices) SOLPrice() float64 { return 150.5 }
func (p fakePrices) UpdatedAt() time.Time { return p.at }

func newTestRouter(t *testing.T, follower *fakeFollower, signals storage.SignalStore) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(fakeStatus{}, follower, fakePrices{}, signals, Options{}).Register(r)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthAndStatus(t *testing.T) {
	r := newTestRouter(t, &fakeFollower{}, nil)

	w := do(r, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	var health HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)

	w = do(r, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	var status StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "running", status.Supervisor.State)
	assert.Equal(t, map[string]int{"A1": 3, "A2": 1}, status.FollowCounts)
	assert.InDelta(t, 150.5, status.SOLPriceUSD, 1e-9)
	assert.Nil(t, status.PriceUpdatedAt)
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(t, &fakeFollower{}, nil)
	w := do(r, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "wallet_signal_")
}

func TestFollowEndpoints(t *testing.T) {
	t.Run("follow", func(t *testing.T) {
		r := newTestRouter(t, &fakeFollower{}, nil)
		w := do(r, http.MethodPost, "/api/v1/follow", `{"wallet":"W1"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"wallet":"W1","account":"A1"}`, w.Body.String())
	})

	t.Run("missing wallet", func(t *testing.T) {
		r := newTestRouter(t, &fakeFollower{}, nil)
		w := do(r, http.MethodPost, "/api/v1/follow", `{}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid wallet", func(t *testing.T) {
		r := newTestRouter(t, &fakeFollower{addErr: follow.ErrInvalidWallet}, nil)
		w := do(r, http.MethodPost, "/api/v1/follow", `{"wallet":"bad"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("already followed", func(t *testing.T) {
		r := newTestRouter(t, &fakeFollower{addErr: follow.ErrAlreadyFollowed}, nil)
		w := do(r, http.MethodPost, "/api/v1/follow", `{"wallet":"W1"}`)
		require.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), `"account":"A2"`)
	})

	t.Run("unfollow", func(t *testing.T) {
		r := newTestRouter(t, &fakeFollower{removed: []string{"A1", "A2"}}, nil)
		w := do(r, http.MethodDelete, "/api/v1/follow/W1", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"wallet":"W1","accounts":["A1","A2"]}`, w.Body.String())
	})

	t.Run("counts", func(t *testing.T) {
		r := newTestRouter(t, &fakeFollower{}, nil)
		w := do(r, http.MethodGet, "/api/v1/follow", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"counts":{"A1":3,"A2":1}}`, w.Body.String())
	})
}

func TestSignalEndpoints(t *testing.T) {
	store := memory.NewSignalStore()
	ctx := context.Background()
	for _, rec := range []*domain.SignalRecord{
		{SignalID: "s1", TokenAddress: "Tok", EventTime: 100, Pass: true},
		{SignalID: "s2", TokenAddress: "Tok", EventTime: 200},
		{SignalID: "s3", TokenAddress: "Other", EventTime: 300},
	} {
		require.NoError(t, store.Insert(ctx, rec))
	}
	r := newTestRouter(t, &fakeFollower{}, store)

	var body struct {
		Signals []SignalResponse `json:"signals"`
	}

	w := do(r, http.MethodGet, "/api/v1/signals?token=Tok", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Signals, 2)
	assert.Equal(t, "s1", body.Signals[0].SignalID)
	assert.True(t, body.Signals[0].Pass)

	w = do(r, http.MethodGet, "/api/v1/signals?start=150&end=300", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Signals, 2)
	assert.Equal(t, "s2", body.Signals[0].SignalID)

	w = do(r, http.MethodGet, "/api/v1/signals?start=300&end=100", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/api/v1/signals/s3", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"token_address":"Other"`)

	w = do(r, http.MethodGet, "/api/v1/signals/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSignalEndpointsDisabled(t *testing.T) {
	r := newTestRouter(t, &fakeFollower{}, nil)
	w := do(r, http.MethodGet, "/api/v1/signals?token=Tok", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReportEndpoint(t *testing.T) {
	store := memory.NewSignalStore()
	now := time.Now().Unix()
	require.NoError(t, store.Insert(context.Background(), &domain.SignalRecord{
		SignalID: "s1", TokenAddress: "Tok", Strategy: "default", Pass: true, Heat: 5, EventTime: now - 60,
	}))
	r := newTestRouter(t, &fakeFollower{}, store)

	w := do(r, http.MethodGet, "/api/v1/report?since=1h", "")
	require.Equal(t, http.StatusOK, w.Code)
	var report struct {
		Summary struct {
			Signals int `json:"signals"`
			Passed  int `json:"passed"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 1, report.Summary.Signals)
	assert.Equal(t, 1, report.Summary.Passed)

	w = do(r, http.MethodGet, "/api/v1/report?format=markdown", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "# Signal Report")

	w = do(r, http.MethodGet, "/api/v1/report?since=soon", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
