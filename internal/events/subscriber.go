package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrSubscriberClosed is returned by Next after Close.
var ErrSubscriberClosed = errors.New("subscriber closed")

// SubscriberConfig holds client-side stream settings.
type SubscriberConfig struct {
	URL        string        // ws://host:port/ws
	BufferSize int           // queued events (default: 64)
	Timeout    time.Duration // handshake timeout (default: 10s)
}

// Subscriber reads events from a Hub over a WebSocket connection.
type Subscriber struct {
	cfg    SubscriberConfig
	logger *slog.Logger
	conn   *websocket.Conn

	events chan Envelope
	errs   chan error
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

// Subscribe dials the hub and starts reading events.
func Subscribe(ctx context.Context, cfg SubscriberConfig, logger *slog.Logger) (*Subscriber, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 64
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	dialer := websocket.Dialer{HandshakeTimeout: cfg.Timeout}
	conn, _, err := dialer.DialContext(ctx, cfg.URL, nil)
	if err != nil {
		return nil, err
	}

	s := &Subscriber{
		cfg:    cfg,
		logger: logger,
		conn:   conn,
		events: make(chan Envelope, cfg.BufferSize),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}

	// The hub pings; answer so it keeps us registered.
	conn.SetPingHandler(func(data string) error {
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	go s.readLoop()

	logger.Debug("event stream connected", "url", cfg.URL)
	return s, nil
}

// Next blocks until an event arrives, the stream fails or ctx is done.
func (s *Subscriber) Next(ctx context.Context) (Envelope, error) {
	select {
	case <-s.done:
		return Envelope{}, ErrSubscriberClosed
	default:
	}

	select {
	case env := <-s.events:
		return env, nil
	case err := <-s.errs:
		return Envelope{}, err
	case <-s.done:
		return Envelope{}, ErrSubscriberClosed
	case <-ctx.Done():
		return Envelope{}, ctx.Err()
	}
}

// Close sends a close frame and tears down the connection.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.done)

	s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return s.conn.Close()
}

func (s *Subscriber) readLoop() {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			// Ignore errors after Close() is called
			select {
			case <-s.done:
				return
			default:
			}
			select {
			case s.errs <- err:
			default:
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.logger.Warn("dropping malformed event", "err", err)
			continue
		}

		select {
		case s.events <- env:
		case <-s.done:
			return
		default:
			s.logger.Warn("event buffer full, dropping event", "type", env.Type)
		}
	}
}
