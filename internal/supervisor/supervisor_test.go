package supervisor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-signal/internal/feed"
)

// fakeCreds is an in-memory Credentials with a rotatable token map.
type fakeCreds struct {
	mu         sync.Mutex
	accounts   []string
	tokens     map[string]string
	gen        int
	refreshErr error
}

func newFakeCreds(accounts ...string) *fakeCreds {
	c := &fakeCreds{accounts: accounts, tokens: make(map[string]string)}
	for _, a := range accounts {
		c.tokens[a] = a + "-tok-0"
	}
	return c
}

func (c *fakeCreds) Accounts() []string { return c.accounts }

func (c *fakeCreds) Get(ctx context.Context, address string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokens[address], nil
}

func (c *fakeCreds) ForceRefresh(ctx context.Context, address string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.refreshErr != nil {
		return "", c.refreshErr
	}
	c.gen++
	c.tokens[address] = fmt.Sprintf("%s-tok-%d", address, c.gen)
	return c.tokens[address], nil
}

func (c *fakeCreds) RefreshAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, a := range c.accounts {
		c.gen++
		c.tokens[a] = fmt.Sprintf("%s-tok-%d", a, c.gen)
	}
	return nil
}

func (c *fakeCreds) Tokens() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.tokens))
	for k, v := range c.tokens {
		out[k] = v
	}
	return out
}

type fakeStream struct {
	account string
	token   string

	frames     chan feed.Frame
	done       chan struct{}
	closeOnce  sync.Once
	framesOnce sync.Once

	mu   sync.Mutex
	sent [][]byte
}

func (s *fakeStream) Subscribe(ctx context.Context) error { return nil }
func (s *fakeStream) Frames() <-chan feed.Frame          { return s.frames }
func (s *fakeStream) Done() <-chan struct{}              { return s.done }
func (s *fakeStream) Account() string                    { return s.account }
func (s *fakeStream) SubscriptionID() string             { return "sub-" + s.account }
func (s *fakeStream) LastPing() time.Time                { return time.Time{} }

func (s *fakeStream) Err() error {
	select {
	case <-s.done:
		return errors.New("fake stream ended")
	default:
		return nil
	}
}

func (s *fakeStream) Send(raw []byte) error {
	select {
	case <-s.done:
		return feed.ErrStreamClosed
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, raw)
	return nil
}

func (s *fakeStream) Sent() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.sent...)
}

func (s *fakeStream) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

func (s *fakeStream) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// die simulates the upstream connection dropping.
func (s *fakeStream) die() {
	s.Close()
	s.framesOnce.Do(func() { close(s.frames) })
}

type fakeDialer struct {
	mu      sync.Mutex
	streams []*fakeStream
	fail    int
	failErr error // defaults to a plain dial error
}

func (d *fakeDialer) Connect(ctx context.Context, account, token string) (Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail > 0 {
		d.fail--
		if d.failErr != nil {
			return nil, d.failErr
		}
		return nil, errors.New("dial refused")
	}
	s := &fakeStream{
		account: account,
		token:   token,
		frames:  make(chan feed.Frame, 16),
		done:    make(chan struct{}),
	}
	d.streams = append(d.streams, s)
	return s, nil
}

func (d *fakeDialer) all() []*fakeStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*fakeStream(nil), d.streams...)
}

func (d *fakeDialer) live() []*fakeStream {
	var out []*fakeStream
	for _, s := range d.all() {
		if !s.Closed() {
			out = append(out, s)
		}
	}
	return out
}

type recordingSink struct {
	mu     sync.Mutex
	frames []feed.Frame
}

func (r *recordingSink) sink(f feed.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, f)
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

func testOptions() Options {
	return Options{
		ReconnectDelay: 20 * time.Millisecond,
		CheckInterval:  10 * time.Millisecond,
	}
}

func startSupervisor(t *testing.T, sup *Supervisor) (cancel func()) {
	t.Helper()
	ctx, cancelCtx := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()
	return func() {
		cancelCtx()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("supervisor did not stop")
		}
	}
}

func waitStreaming(t *testing.T, sup *Supervisor, sets int64) {
	t.Helper()
	require.Eventually(t, func() bool {
		return sup.State() == StateStreaming && sup.ConnectionSets() == sets
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSupervisor_StreamsAllAccounts(t *testing.T) {
	creds := newFakeCreds("A", "B")
	dialer := &fakeDialer{}
	sink := &recordingSink{}
	sup := New(creds, dialer, sink.sink, testOptions())

	stop := startSupervisor(t, sup)
	waitStreaming(t, sup, 1)

	streams := dialer.live()
	require.Len(t, streams, 2)
	for _, s := range streams {
		s.frames <- feed.Frame{Account: s.account, Kind: feed.FrameData, Raw: []byte(`{"data":[]}`)}
	}
	assert.Eventually(t, func() bool { return sink.count() == 2 }, time.Second, 5*time.Millisecond)

	status := sup.Status()
	assert.Equal(t, "STREAMING", status.State)
	assert.Len(t, status.Streams, 2)

	stop()
	assert.Equal(t, StateIdle, sup.State())
	assert.Empty(t, dialer.live(), "shutdown must close every stream")
}

func TestSupervisor_RotationRebuildsExactlyOnce(t *testing.T) {
	creds := newFakeCreds("A", "B")
	dialer := &fakeDialer{}
	sink := &recordingSink{}
	sup := New(creds, dialer, sink.sink, testOptions())

	stop := startSupervisor(t, sup)
	defer stop()
	waitStreaming(t, sup, 1)
	stale := dialer.live()
	require.Len(t, stale, 2)

	require.NoError(t, creds.RefreshAll(context.Background()))
	waitStreaming(t, sup, 2)

	// Let several check intervals pass: no further rebuild may happen.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int64(2), sup.ConnectionSets())
	assert.Equal(t, int64(1), sup.Status().Rebuilds)

	for _, s := range stale {
		assert.True(t, s.Closed(), "stale stream %s left open", s.account)
	}
	fresh := dialer.live()
	require.Len(t, fresh, 2)
	for _, s := range fresh {
		assert.NotEqual(t, s.account+"-tok-0", s.token)
	}
	assert.Len(t, dialer.all(), 4)
}

func TestSupervisor_StaleFramesNotRelayedAfterRebuild(t *testing.T) {
	creds := newFakeCreds("A")
	dialer := &fakeDialer{}
	sink := &recordingSink{}
	sup := New(creds, dialer, sink.sink, testOptions())

	stop := startSupervisor(t, sup)
	defer stop()
	waitStreaming(t, sup, 1)
	stale := dialer.live()[0]

	creds.RefreshAll(context.Background())
	waitStreaming(t, sup, 2)

	before := sink.count()
	select {
	case stale.frames <- feed.Frame{Account: "A", Kind: feed.FrameData, Raw: []byte(`{}`)}:
	default:
	}
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before, sink.count())
}

func TestSupervisor_StreamDeathReconnectsAfterDelay(t *testing.T) {
	creds := newFakeCreds("A", "B")
	dialer := &fakeDialer{}
	sup := New(creds, dialer, nil, testOptions())

	stop := startSupervisor(t, sup)
	defer stop()
	waitStreaming(t, sup, 1)

	first := dialer.live()
	first[0].die()

	waitStreaming(t, sup, 2)
	for _, s := range first {
		assert.True(t, s.Closed())
	}
	assert.Len(t, dialer.live(), 2)
}

func TestSupervisor_DialFailureRetries(t *testing.T) {
	creds := newFakeCreds("A")
	dialer := &fakeDialer{fail: 2}
	sup := New(creds, dialer, nil, testOptions())

	stop := startSupervisor(t, sup)
	defer stop()
	waitStreaming(t, sup, 1)
	assert.Len(t, dialer.live(), 1)
}

// syncBuffer is a goroutine-safe log sink.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSupervisor_HandshakeRefreshFailureLogged(t *testing.T) {
	creds := newFakeCreds("A")
	creds.refreshErr = errors.New("login rejected")
	dialer := &fakeDialer{fail: 1 << 30, failErr: fmt.Errorf("dial A: %w", websocket.ErrBadHandshake)}

	out := &syncBuffer{}
	logger := zerolog.New(out)
	opts := testOptions()
	opts.Logger = &logger
	sup := New(creds, dialer, nil, opts)

	stop := startSupervisor(t, sup)
	defer stop()

	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), `"message":"handshake_refresh_failed"`) &&
			strings.Contains(out.String(), "login rejected")
	}, time.Second, 5*time.Millisecond)
}

func TestSupervisor_AttachSingleConsumer(t *testing.T) {
	sup := New(newFakeCreds("A"), &fakeDialer{}, nil, testOptions())

	c1 := newChanConsumer()
	require.NoError(t, sup.Attach(c1))
	assert.ErrorIs(t, sup.Attach(newChanConsumer()), ErrConsumerBusy)
	assert.True(t, sup.HasConsumer())

	sup.detach(c1)
	assert.False(t, sup.HasConsumer())
}

// chanConsumer is an in-memory relay consumer.
type chanConsumer struct {
	mu       sync.Mutex
	received [][]byte
	inbound  chan []byte
	done     chan struct{}
}

func newChanConsumer() *chanConsumer {
	return &chanConsumer{inbound: make(chan []byte, 8), done: make(chan struct{})}
}

func (c *chanConsumer) Send(raw []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.received = append(c.received, raw)
	return nil
}

func (c *chanConsumer) Inbound() <-chan []byte { return c.inbound }
func (c *chanConsumer) Done() <-chan struct{}  { return c.done }

func (c *chanConsumer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.received)
}

func TestSupervisor_RelayFanInFanOut(t *testing.T) {
	creds := newFakeCreds("A", "B")
	dialer := &fakeDialer{}
	sup := New(creds, dialer, nil, testOptions())

	stop := startSupervisor(t, sup)
	defer stop()
	waitStreaming(t, sup, 1)

	consumer := newChanConsumer()
	require.NoError(t, sup.Attach(consumer))

	streams := dialer.live()
	streams[0].frames <- feed.Frame{Account: "A", Kind: feed.FrameData, Raw: []byte(`{"data":[1]}`)}
	assert.Eventually(t, func() bool { return consumer.count() == 1 }, time.Second, 5*time.Millisecond)

	consumer.inbound <- []byte(`{"action":"custom"}`)
	assert.Eventually(t, func() bool {
		return len(streams[0].Sent()) == 1 && len(streams[1].Sent()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.JSONEq(t, `{"action":"custom"}`, string(streams[1].Sent()[0]))

	// Consumer leaving triggers exactly one rebuild and frees the slot.
	close(consumer.done)
	waitStreaming(t, sup, 2)
	assert.False(t, sup.HasConsumer())
}

func TestRelay_WebSocketEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)

	creds := newFakeCreds("A")
	dialer := &fakeDialer{}
	sup := New(creds, dialer, nil, testOptions())
	stop := startSupervisor(t, sup)
	defer stop()
	waitStreaming(t, sup, 1)

	router := gin.New()
	router.GET("/wallet_signal", NewRelay(sup).Handle)
	server := httptest.NewServer(router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/wallet_signal"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, sup.HasConsumer, time.Second, 5*time.Millisecond)

	// A second consumer is refused before upgrade.
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	dialer.live()[0].frames <- feed.Frame{Account: "A", Kind: feed.FrameData, Raw: []byte(`{"data":[{"x":1}]}`)}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[{"x":1}]}`, string(msg))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"ping"}`)))
	upstream := dialer.live()[0]
	assert.Eventually(t, func() bool { return len(upstream.Sent()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestRelay_ReconnectWhileUpstreamDown(t *testing.T) {
	gin.SetMode(gin.TestMode)

	sup := New(newFakeCreds("A"), &fakeDialer{fail: 1 << 30}, nil, testOptions())
	stop := startSupervisor(t, sup)
	defer stop()

	router := gin.New()
	router.GET("/wallet_signal", NewRelay(sup).Handle)
	server := httptest.NewServer(router)
	defer server.Close()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/wallet_signal"

	first, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Eventually(t, sup.HasConsumer, time.Second, 5*time.Millisecond)
	assert.NotEqual(t, StateStreaming, sup.State())

	first.Close()
	require.Eventually(t, func() bool { return !sup.HasConsumer() }, time.Second, 5*time.Millisecond)

	second, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer second.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	assert.Eventually(t, sup.HasConsumer, time.Second, 5*time.Millisecond)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "IDLE", StateIdle.String())
	assert.Equal(t, "CONNECTING", StateConnecting.String())
	assert.Equal(t, "STREAMING", StateStreaming.String())
	assert.Equal(t, "DRAINING", StateDraining.String())
	assert.Equal(t, "REBUILDING", StateRebuilding.String())
}
