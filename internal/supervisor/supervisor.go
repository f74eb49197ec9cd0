// Package supervisor owns the set of upstream activity streams. It rebuilds
// the whole set whenever one stream dies, the relay consumer leaves, or the
// credential map changes, and fans frames in to the pipeline and the relay.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"wallet-signal/internal/auth"
	"wallet-signal/internal/feed"
	"wallet-signal/internal/observability"
)

// State is the supervisor lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
	StateDraining
	StateRebuilding
)

var allStates = []State{StateIdle, StateConnecting, StateStreaming, StateDraining, StateRebuilding}

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateStreaming:
		return "STREAMING"
	case StateDraining:
		return "DRAINING"
	case StateRebuilding:
		return "REBUILDING"
	default:
		return "IDLE"
	}
}

// Rebuild causes.
const (
	CauseStreamEnded  = "stream_ended"
	CauseConsumerGone = "consumer_disconnected"
	CauseRotation     = "credential_rotation"
	causeShutdown     = "shutdown"
)

// Default timings.
const (
	DefaultReconnectDelay   = 3 * time.Second
	DefaultCheckInterval    = 3 * time.Second
	DefaultRotationInterval = 30 * time.Minute
)

// ErrConsumerBusy is returned when a relay consumer is already attached.
var ErrConsumerBusy = errors.New("relay consumer already attached")

// Credentials is the credential source the supervisor builds streams from.
type Credentials interface {
	Accounts() []string
	Get(ctx context.Context, address string) (string, error)
	ForceRefresh(ctx context.Context, address string) (string, error)
	RefreshAll(ctx context.Context) error
	Tokens() map[string]string
}

// Stream is one subscribed upstream connection.
type Stream interface {
	Subscribe(ctx context.Context) error
	Frames() <-chan feed.Frame
	Send(raw []byte) error
	Close() error
	Done() <-chan struct{}
	Err() error
	Account() string
	SubscriptionID() string
	LastPing() time.Time
}

// Dialer opens a stream for an account.
type Dialer interface {
	Connect(ctx context.Context, account, token string) (Stream, error)
}

// FeedDialer adapts feed.Connector to Dialer.
type FeedDialer struct {
	Connector *feed.Connector
}

// Connect implements Dialer.
func (d FeedDialer) Connect(ctx context.Context, account, token string) (Stream, error) {
	s, err := d.Connector.Connect(ctx, account, token)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Consumer is the single downstream relay consumer.
type Consumer interface {
	Send(raw []byte) error
	Inbound() <-chan []byte
	Done() <-chan struct{}
}

// Sink receives every activity frame. It must not block for long.
type Sink func(frame feed.Frame)

// Options configures Supervisor.
type Options struct {
	ReconnectDelay   time.Duration
	CheckInterval    time.Duration
	RotationInterval time.Duration // <= 0 disables proactive rotation
	Logger           *zerolog.Logger
}

// StreamStatus describes one live stream.
type StreamStatus struct {
	Account        string    `json:"account"`
	SubscriptionID string    `json:"subscription_id"`
	LastPing       time.Time `json:"last_ping"`
}

// Status is a point-in-time view of the supervisor.
type Status struct {
	State            string         `json:"state"`
	ConnectionSets   int64          `json:"connection_sets"`
	Rebuilds         int64          `json:"rebuilds"`
	ConsumerAttached bool           `json:"consumer_attached"`
	Streams          []StreamStatus `json:"streams"`
}

// Supervisor runs the reconnect loop.
type Supervisor struct {
	creds  Credentials
	dialer Dialer
	sink   Sink
	logger zerolog.Logger

	reconnectDelay   time.Duration
	checkInterval    time.Duration
	rotationInterval time.Duration

	state    atomic.Int32
	sets     atomic.Int64
	rebuilds atomic.Int64
	rotating atomic.Bool

	consumerMu sync.Mutex
	consumer   Consumer
	attached   chan struct{}

	streamsMu sync.RWMutex
	streams   []Stream
}

// New creates a supervisor. sink may be nil when only relaying.
func New(creds Credentials, dialer Dialer, sink Sink, opts Options) *Supervisor {
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	if sink == nil {
		sink = func(feed.Frame) {}
	}
	s := &Supervisor{
		creds:            creds,
		dialer:           dialer,
		sink:             sink,
		logger:           logger.With().Str("component", "supervisor").Logger(),
		reconnectDelay:   opts.ReconnectDelay,
		checkInterval:    opts.CheckInterval,
		rotationInterval: opts.RotationInterval,
		attached:         make(chan struct{}, 1),
	}
	if s.reconnectDelay <= 0 {
		s.reconnectDelay = DefaultReconnectDelay
	}
	if s.checkInterval <= 0 {
		s.checkInterval = DefaultCheckInterval
	}
	s.setState(StateIdle)
	return s
}

// State returns the current state.
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

// Status returns a snapshot for the status endpoint.
func (s *Supervisor) Status() Status {
	st := Status{
		State:          s.State().String(),
		ConnectionSets: s.sets.Load(),
		Rebuilds:       s.rebuilds.Load(),
	}
	s.consumerMu.Lock()
	st.ConsumerAttached = s.consumer != nil
	s.consumerMu.Unlock()

	s.streamsMu.RLock()
	for _, stream := range s.streams {
		st.Streams = append(st.Streams, StreamStatus{
			Account:        stream.Account(),
			SubscriptionID: stream.SubscriptionID(),
			LastPing:       stream.LastPing(),
		})
	}
	s.streamsMu.RUnlock()
	return st
}

// ConnectionSets returns how many stream sets have been built.
func (s *Supervisor) ConnectionSets() int64 {
	return s.sets.Load()
}

// Attach registers the relay consumer. Only one may be attached at a time.
func (s *Supervisor) Attach(c Consumer) error {
	s.consumerMu.Lock()
	defer s.consumerMu.Unlock()
	if s.consumer != nil {
		return ErrConsumerBusy
	}
	s.consumer = c
	select {
	case s.attached <- struct{}{}:
	default:
	}
	s.logger.Info().Msg("relay_consumer_attached")
	return nil
}

// HasConsumer reports whether a relay consumer is attached.
func (s *Supervisor) HasConsumer() bool {
	s.consumerMu.Lock()
	defer s.consumerMu.Unlock()
	return s.consumer != nil
}

func (s *Supervisor) detach(c Consumer) {
	s.consumerMu.Lock()
	defer s.consumerMu.Unlock()
	if s.consumer == c {
		s.consumer = nil
		s.logger.Info().Msg("relay_consumer_detached")
	}
}

func (s *Supervisor) currentConsumer() Consumer {
	s.consumerMu.Lock()
	defer s.consumerMu.Unlock()
	return s.consumer
}

// Run drives the reconnect loop until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	if s.rotationInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.rotateLoop(ctx)
		}()
	}
	defer wg.Wait()

	var delay time.Duration
	for {
		if delay > 0 {
			s.setState(StateIdle)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
		}
		if ctx.Err() != nil {
			s.setState(StateIdle)
			return nil
		}

		s.setState(StateConnecting)
		streams, snapshot, err := s.establish(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s.setState(StateIdle)
				return nil
			}
			s.logger.Warn().Err(err).Dur("retry_in", s.reconnectDelay).Msg("supervisor_connect_failed")
			delay = s.reconnectDelay
			continue
		}

		s.sets.Add(1)
		s.setStreams(streams)
		s.setState(StateStreaming)
		observability.SetActiveStreams(len(streams))
		s.logger.Info().Int("streams", len(streams)).Int64("set", s.sets.Load()).Msg("supervisor_streaming")

		cause := s.runSession(ctx, streams, snapshot)

		s.setStreams(nil)
		observability.SetActiveStreams(0)
		if cause == causeShutdown {
			s.setState(StateIdle)
			return nil
		}

		s.rebuilds.Add(1)
		observability.RecordRebuild(cause)
		s.logger.Info().Str("cause", cause).Msg("supervisor_rebuild")

		switch cause {
		case CauseRotation, CauseConsumerGone:
			s.setState(StateRebuilding)
			delay = 0
		default:
			s.setState(StateIdle)
			delay = s.reconnectDelay
		}
	}
}

// establish ensures every account has a credential, then dials and
// subscribes all streams concurrently. Any failure closes what was opened.
func (s *Supervisor) establish(ctx context.Context) ([]Stream, map[string]string, error) {
	accounts := s.creds.Accounts()
	if len(accounts) == 0 {
		return nil, nil, errors.New("no tracked accounts")
	}
	for _, acct := range accounts {
		if _, err := s.creds.Get(ctx, acct); err != nil {
			return nil, nil, fmt.Errorf("credential %s: %w", acct, err)
		}
	}
	snapshot := s.creds.Tokens()

	streams := make([]Stream, len(accounts))
	g, gctx := errgroup.WithContext(ctx)
	for i, acct := range accounts {
		i, acct := i, acct
		g.Go(func() error {
			stream, err := s.dialer.Connect(gctx, acct, snapshot[acct])
			if err != nil {
				if errors.Is(err, websocket.ErrBadHandshake) {
					// A rejected handshake usually means a stale token.
					if _, rerr := s.creds.ForceRefresh(ctx, acct); rerr != nil {
						s.logger.Warn().Err(rerr).Str("account", acct).Msg("handshake_refresh_failed")
					}
				}
				return err
			}
			streams[i] = stream
			if err := stream.Subscribe(gctx); err != nil {
				return fmt.Errorf("subscribe %s: %w", acct, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		closeAll(streams)
		return nil, nil, err
	}
	return streams, snapshot, nil
}

// runSession streams until a rebuild trigger fires, then drains: the
// session is cancelled, every stream closed and every task awaited.
func (s *Supervisor) runSession(ctx context.Context, streams []Stream, snapshot map[string]string) string {
	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	ended := make(chan string, len(streams)+1)
	var wg sync.WaitGroup

	for _, stream := range streams {
		wg.Add(1)
		go func(stream Stream) {
			defer wg.Done()
			if s.fanIn(sessCtx, stream) {
				s.logger.Warn().Err(stream.Err()).Str("account", stream.Account()).Msg("stream_ended")
				ended <- CauseStreamEnded
			}
		}(stream)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if s.fanOut(sessCtx, streams) {
			ended <- CauseConsumerGone
		}
	}()

	ticker := time.NewTicker(s.checkInterval)
	var cause string
loop:
	for {
		select {
		case <-ctx.Done():
			cause = causeShutdown
			break loop
		case cause = <-ended:
			break loop
		case <-ticker.C:
			// Mid-rotation snapshots are partial; wait for the full set.
			if !s.rotating.Load() && !auth.SameTokens(snapshot, s.creds.Tokens()) {
				cause = CauseRotation
				break loop
			}
		}
	}
	ticker.Stop()

	s.setState(StateDraining)
	cancel()
	closeAll(streams)
	wg.Wait()
	return cause
}

// fanIn copies frames from one stream to the sink and the relay consumer.
// It reports true when the stream itself ended.
func (s *Supervisor) fanIn(ctx context.Context, stream Stream) bool {
	frames := stream.Frames()
	for {
		select {
		case <-ctx.Done():
			return false
		case frame, ok := <-frames:
			if !ok {
				return ctx.Err() == nil
			}
			if ctx.Err() != nil {
				return false
			}
			s.sink(frame)
			if c := s.currentConsumer(); c != nil {
				if err := c.Send(frame.Raw); err == nil {
					observability.RecordRelayFrame("downstream")
				}
			}
		}
	}
}

// fanOut forwards consumer control frames to every upstream stream.
// It reports true when the consumer disconnected.
func (s *Supervisor) fanOut(ctx context.Context, streams []Stream) bool {
	for {
		c := s.currentConsumer()
		var inbound <-chan []byte
		var gone <-chan struct{}
		if c != nil {
			inbound = c.Inbound()
			gone = c.Done()
		}

		select {
		case <-ctx.Done():
			return false
		case <-s.attached:
		case raw, ok := <-inbound:
			if !ok {
				s.detach(c)
				return true
			}
			for _, stream := range streams {
				if err := stream.Send(raw); err != nil {
					s.logger.Debug().Err(err).Str("account", stream.Account()).Msg("relay_forward_failed")
					continue
				}
				observability.RecordRelayFrame("upstream")
			}
		case <-gone:
			s.detach(c)
			return true
		}
	}
}

// rotateLoop refreshes every credential on a fixed interval. The session
// loop notices the changed tokens and rebuilds.
func (s *Supervisor) rotateLoop(ctx context.Context) {
	ticker := time.NewTicker(s.rotationInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.rotating.Store(true)
			if err := s.creds.RefreshAll(ctx); err != nil {
				s.logger.Warn().Err(err).Msg("credential_rotation_failed")
			}
			s.rotating.Store(false)
		}
	}
}

func (s *Supervisor) setState(state State) {
	s.state.Store(int32(state))
	names := make([]string, len(allStates))
	for i, st := range allStates {
		names[i] = st.String()
	}
	observability.SetSupervisorState(state.String(), names)
}

func (s *Supervisor) setStreams(streams []Stream) {
	s.streamsMu.Lock()
	s.streams = streams
	s.streamsMu.Unlock()
}

func closeAll(streams []Stream) {
	var wg sync.WaitGroup
	for _, stream := range streams {
		if stream == nil {
			continue
		}
		wg.Add(1)
		go func(stream Stream) {
			defer wg.Done()
			stream.Close()
		}(stream)
	}
	wg.Wait()
}
