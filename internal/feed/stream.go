// Package feed connects to the upstream wallet activity stream: one
// authenticated WebSocket per tracked account, subscribed to the followed
// wallet activity channel, with periodic keep-alives.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"wallet-signal/internal/gmgn"
	"wallet-signal/internal/observability"
)

// Channel and chain named in the subscribe control message.
const (
	ActivityChannel = "following_wallet_activity"
	Chain           = "sol"
)

// Stream errors.
var (
	ErrStreamClosed      = errors.New("stream closed")
	ErrAlreadySubscribed = errors.New("stream already subscribed")
)

// Config configures stream behavior.
type Config struct {
	// PingInterval is the interval between ping control messages.
	PingInterval time.Duration
	// ReadTimeout bounds the silence tolerated before the stream is declared dead.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// HandshakeTimeout bounds the WebSocket dial.
	HandshakeTimeout time.Duration
	// FrameBuffer is the capacity of the frame channel.
	FrameBuffer int
}

// DefaultConfig returns default stream configuration.
func DefaultConfig() Config {
	return Config{
		PingInterval:     30 * time.Second,
		ReadTimeout:      90 * time.Second,
		WriteTimeout:     10 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		FrameBuffer:      256,
	}
}

// Options configures Connector.
type Options struct {
	Config *Config
	Logger *zerolog.Logger
}

// Connector opens activity streams.
type Connector struct {
	wsBase string
	config Config
	dialer *websocket.Dialer
	logger zerolog.Logger
}

// NewConnector creates a connector for the stream endpoint at wsBase.
func NewConnector(wsBase string, opts Options) *Connector {
	cfg := DefaultConfig()
	if opts.Config != nil {
		cfg = *opts.Config
	}
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Connector{
		wsBase: wsBase,
		config: cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout},
		logger: logger.With().Str("component", "feed").Logger(),
	}
}

// Connect dials the stream for account using its bearer token.
// The returned stream produces nothing until Subscribe is called.
func (c *Connector) Connect(ctx context.Context, account, token string) (*Stream, error) {
	conn, _, err := c.dialer.DialContext(ctx, gmgn.StreamURL(c.wsBase, token), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial %s: %w", account, err)
	}

	s := &Stream{
		account: account,
		conn:    conn,
		config:  c.config,
		frames:  make(chan Frame, c.config.FrameBuffer),
		done:    make(chan struct{}),
		logger:  c.logger.With().Str("account", account).Logger(),
	}
	s.lastPing.Store(time.Now().UnixNano())
	return s, nil
}

// Stream is one subscribed upstream connection.
type Stream struct {
	account string
	conn    *websocket.Conn
	writeMu sync.Mutex
	config  Config
	logger  zerolog.Logger

	subscriptionID string
	subscribed     atomic.Bool
	lastPing       atomic.Int64

	frames chan Frame
	done   chan struct{}
	closed atomic.Bool
	wg     sync.WaitGroup

	errOnce sync.Once
	err     error
}

type controlMessage struct {
	Action  string            `json:"action"`
	Channel string            `json:"channel,omitempty"`
	ID      string            `json:"id,omitempty"`
	Data    map[string]string `json:"data,omitempty"`
}

// Subscribe sends the subscribe control message and starts the read and
// keep-alive loops.
func (s *Stream) Subscribe(ctx context.Context) error {
	if s.closed.Load() {
		return ErrStreamClosed
	}
	if s.subscribed.Swap(true) {
		return ErrAlreadySubscribed
	}

	id := uuid.NewString()
	err := s.writeJSON(controlMessage{
		Action:  "subscribe",
		Channel: ActivityChannel,
		ID:      id,
		Data:    map[string]string{"chain": Chain},
	})
	if err != nil {
		s.shutdown(err)
		close(s.frames)
		return fmt.Errorf("write subscribe: %w", err)
	}
	if err := ctx.Err(); err != nil {
		s.shutdown(err)
		close(s.frames)
		return err
	}

	s.subscriptionID = id
	s.logger.Info().Str("subscription_id", id).Msg("stream_subscribed")

	s.wg.Add(2)
	go s.readLoop()
	go s.pingLoop()
	return nil
}

// Frames returns inbound non-pong frames in delivery order. The channel is
// closed when the stream ends.
func (s *Stream) Frames() <-chan Frame {
	return s.frames
}

// Send writes a raw text frame upstream.
func (s *Stream) Send(raw []byte) error {
	if s.closed.Load() {
		return ErrStreamClosed
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, raw)
}

// Done is closed once the stream has stopped.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Err returns the failure that ended the stream, nil if it was closed normally.
func (s *Stream) Err() error {
	select {
	case <-s.done:
	default:
		return nil
	}
	if errors.Is(s.err, ErrStreamClosed) {
		return nil
	}
	return s.err
}

// Alive reports whether the stream is still running.
func (s *Stream) Alive() bool {
	return !s.closed.Load()
}

// Account returns the tracked account this stream belongs to.
func (s *Stream) Account() string {
	return s.account
}

// SubscriptionID returns the id sent with the subscribe message.
func (s *Stream) SubscriptionID() string {
	return s.subscriptionID
}

// LastPing returns the time of the last successful keep-alive.
func (s *Stream) LastPing() time.Time {
	return time.Unix(0, s.lastPing.Load())
}

// Close stops the stream and waits for its loops to exit.
func (s *Stream) Close() error {
	s.shutdown(ErrStreamClosed)
	s.wg.Wait()
	return nil
}

// shutdown records cause and closes the connection without waiting.
func (s *Stream) shutdown(cause error) {
	s.errOnce.Do(func() { s.err = cause })
	if s.closed.Swap(true) {
		return
	}
	close(s.done)

	s.writeMu.Lock()
	s.conn.SetWriteDeadline(time.Now().Add(time.Second))
	s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.writeMu.Unlock()
	s.conn.Close()
}

func (s *Stream) writeJSON(v interface{}) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	return s.conn.WriteJSON(v)
}

// readLoop decodes inbound frames until the connection fails.
func (s *Stream) readLoop() {
	defer s.wg.Done()
	defer close(s.frames)

	for {
		s.conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if !s.closed.Load() {
				s.logger.Warn().Err(err).Msg("stream_read_failed")
			}
			s.shutdown(fmt.Errorf("read: %w", err))
			return
		}

		frame, skipped, err := DecodeFrame(s.account, message)
		if err != nil {
			s.logger.Warn().Err(err).Int("bytes", len(message)).Msg("frame_dropped")
			observability.RecordFrame("malformed", 0)
			continue
		}
		if skipped > 0 {
			s.logger.Warn().Int("skipped", skipped).Msg("activity_events_dropped")
		}
		observability.RecordFrame(frame.Kind.String(), time.Now().Unix())
		if frame.Kind == FramePong {
			continue
		}

		select {
		case s.frames <- frame:
		case <-s.done:
			return
		}
	}
}

// pingLoop sends a ping control message every PingInterval. A failed send
// ends the stream.
func (s *Stream) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.writeJSON(controlMessage{Action: "ping"}); err != nil {
				if !s.closed.Load() {
					s.logger.Warn().Err(err).Msg("stream_ping_failed")
				}
				s.shutdown(fmt.Errorf("ping: %w", err))
				return
			}
			s.lastPing.Store(time.Now().UnixNano())
		}
	}
}
