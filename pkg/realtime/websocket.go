package realtime

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/scolago/entitlements/pkg/entitlement"
	"github.com/scolago/entitlements/pkg/logger"
)

const wsWriteWait = 10 * time.Second

// WebSocketConfig holds the push channel connection settings.
type WebSocketConfig struct {
	URL              string        `env:"SYNC_WS_URL"` // e.g. wss://sync.scolago.app/events; empty means no push channel
	HandshakeTimeout time.Duration `env:"SYNC_WS_HANDSHAKE_TIMEOUT" envDefault:"15s"`
	PingInterval     time.Duration `env:"SYNC_WS_PING_INTERVAL" envDefault:"25s"`
	PongWait         time.Duration `env:"SYNC_WS_PONG_WAIT" envDefault:"70s"`
	EventBuffer      int           `env:"SYNC_WS_EVENT_BUFFER" envDefault:"64"`
}

// WebSocketOption configures the websocket transport.
type WebSocketOption func(*wsTransport)

// WithWebSocketLogger injects the transport's logger.
func WithWebSocketLogger(log *slog.Logger) WebSocketOption {
	return func(t *wsTransport) {
		if log != nil {
			t.log = log
		}
	}
}

type wsTransport struct {
	cfg WebSocketConfig
	log *slog.Logger
}

// NewWebSocketTransport creates a Transport that connects to a websocket
// event feed. The tenant scope travels as a query parameter so the server
// can restrict the stream to that tenant's events.
func NewWebSocketTransport(cfg WebSocketConfig, opts ...WebSocketOption) Transport {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 15 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 25 * time.Second
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = 70 * time.Second
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 64
	}
	t := &wsTransport{
		cfg: cfg,
		log: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *wsTransport) Connect(ctx context.Context, tenantID uuid.UUID) (Stream, error) {
	u, err := url.Parse(t.cfg.URL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("tenantId", tenantID.String())
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: t.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}

	s := &wsStream{
		conn:   conn,
		cfg:    t.cfg,
		events: make(chan entitlement.SyncEvent, t.cfg.EventBuffer),
		done:   make(chan struct{}),
		log:    t.log,
	}
	go s.readPump()
	go s.pingLoop()
	return s, nil
}

type wsStream struct {
	conn   *websocket.Conn
	cfg    WebSocketConfig
	events chan entitlement.SyncEvent
	done   chan struct{}
	log    *slog.Logger

	closeOnce sync.Once
	mu        sync.Mutex
	err       error
}

func (s *wsStream) Events() <-chan entitlement.SyncEvent {
	return s.events
}

func (s *wsStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *wsStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
	return nil
}

// readPump decodes incoming frames and forwards valid events. It owns the
// events channel: the channel closes exactly once, when the connection
// drops for any reason.
func (s *wsStream) readPump() {
	defer close(s.events)

	_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.setErr(err)
			return
		}

		ev, err := entitlement.DecodeSyncEvent(data)
		if err != nil {
			// Undecodable frames are dropped at the boundary; the feed
			// stays up because the next frame may be fine.
			s.log.Warn("dropping undecodable sync event", logger.Error(err))
			continue
		}

		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
}

func (s *wsStream) pingLoop() {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(wsWriteWait)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *wsStream) setErr(err error) {
	if err == nil {
		return
	}
	// A close initiated by our own side is not a failure worth reporting.
	select {
	case <-s.done:
		return
	default:
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		err = errors.Join(errStreamClosed, err)
	}
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}
