package supervisor

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	relayWriteTimeout = 10 * time.Second
	relayInboundSize  = 64
)

// Relay is the local WebSocket endpoint for the single relay consumer.
type Relay struct {
	sup      *Supervisor
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewRelay creates a relay endpoint backed by sup.
func NewRelay(sup *Supervisor) *Relay {
	return &Relay{
		sup: sup,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: sup.logger.With().Str("component", "relay").Logger(),
	}
}

// Handle upgrades the request and attaches the connection as consumer.
// A second concurrent consumer is rejected with 409.
func (r *Relay) Handle(c *gin.Context) {
	if r.sup.HasConsumer() {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": ErrConsumerBusy.Error()})
		return
	}

	conn, err := r.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		r.logger.Warn().Err(err).Msg("relay_upgrade_failed")
		return
	}

	consumer := newWSConsumer(conn, r.logger)
	if err := r.sup.Attach(consumer); err != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()),
			time.Now().Add(time.Second))
		conn.Close()
		return
	}
	r.logger.Info().Str("remote", c.Request.RemoteAddr).Msg("relay_connected")

	consumer.readLoop()
	// Free the slot even when no session is streaming to notice.
	r.sup.detach(consumer)
	r.logger.Info().Str("remote", c.Request.RemoteAddr).Msg("relay_disconnected")
}

// wsConsumer adapts a server-side WebSocket to Consumer.
type wsConsumer struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	inbound chan []byte
	done    chan struct{}
	once    sync.Once
	logger  zerolog.Logger
}

func newWSConsumer(conn *websocket.Conn, logger zerolog.Logger) *wsConsumer {
	return &wsConsumer{
		conn:    conn,
		inbound: make(chan []byte, relayInboundSize),
		done:    make(chan struct{}),
		logger:  logger,
	}
}

func (w *wsConsumer) Send(raw []byte) error {
	select {
	case <-w.done:
		return websocket.ErrCloseSent
	default:
	}
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(relayWriteTimeout))
	return w.conn.WriteMessage(websocket.TextMessage, raw)
}

func (w *wsConsumer) Inbound() <-chan []byte {
	return w.inbound
}

func (w *wsConsumer) Done() <-chan struct{} {
	return w.done
}

// readLoop queues JSON control frames until the consumer disconnects.
func (w *wsConsumer) readLoop() {
	defer w.close()
	for {
		_, message, err := w.conn.ReadMessage()
		if err != nil {
			return
		}
		if !json.Valid(message) {
			w.logger.Warn().Int("bytes", len(message)).Msg("relay_frame_dropped")
			continue
		}
		select {
		case w.inbound <- message:
		case <-w.done:
			return
		}
	}
}

func (w *wsConsumer) close() {
	w.once.Do(func() {
		close(w.done)
		w.conn.Close()
	})
}
