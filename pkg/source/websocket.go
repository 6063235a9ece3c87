package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-sightline/internal/log"
	"github.com/teslashibe/go-sightline/pkg/frame"
)

const (
	handshakeTimeout = 10 * time.Second
	maxFrameSize     = 4 << 20
	minBackoff       = 500 * time.Millisecond
	maxBackoff       = 10 * time.Second
)

// Geometry is sent by the remote as a text message and applies to every
// binary JPEG message that follows it.
type Geometry struct {
	Width    int `json:"width"`
	Height   int `json:"height"`
	Rotation int `json:"rotation"`
}

// WebSocketConfig configures a WebSocket source.
type WebSocketConfig struct {
	URL       string
	Header    http.Header
	Interval  time.Duration
	Reconnect bool
}

// DefaultWebSocketConfig returns a reconnecting ~3 fps configuration.
func DefaultWebSocketConfig(url string) WebSocketConfig {
	return WebSocketConfig{URL: url, Interval: frame.DefaultSourceInterval, Reconnect: true}
}

// WebSocket reads binary JPEG messages from a remote camera, typically a
// phone streaming its rear camera.
type WebSocket struct {
	cfg      WebSocketConfig
	throttle *frame.Throttle
	dialer   websocket.Dialer
	logger   *slog.Logger

	received atomic.Uint64
	geometry atomic.Pointer[Geometry]
}

// NewWebSocket creates a source publishing to pub.
func NewWebSocket(cfg WebSocketConfig, pub frame.Publisher, logger *slog.Logger) *WebSocket {
	if logger == nil {
		logger = log.Component("source.ws")
	}
	return &WebSocket{
		cfg:      cfg,
		throttle: frame.NewThrottle(pub, cfg.Interval),
		dialer:   websocket.Dialer{HandshakeTimeout: handshakeTimeout, Proxy: http.ProxyFromEnvironment},
		logger:   logger,
	}
}

func (w *WebSocket) Name() string { return "websocket" }

// Received returns the number of JPEG messages read, throttled or not.
func (w *WebSocket) Received() uint64 { return w.received.Load() }

// Run connects and streams until ctx is done. With Reconnect set, dropped
// connections are retried with exponential back-off.
func (w *WebSocket) Run(ctx context.Context) error {
	if w.cfg.URL == "" {
		return ErrNoURL
	}
	backoff := minBackoff
	for {
		start := time.Now()
		err := w.stream(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if !w.cfg.Reconnect {
			return err
		}
		if time.Since(start) > maxBackoff {
			backoff = minBackoff
		}
		w.logger.Warn("stream ended, reconnecting", "url", w.cfg.URL, "error", err, "backoff", backoff)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

func (w *WebSocket) stream(ctx context.Context) error {
	conn, _, err := w.dialer.DialContext(ctx, w.cfg.URL, w.cfg.Header)
	if err != nil {
		return fmt.Errorf("source: dial %s: %w", w.cfg.URL, err)
	}
	defer conn.Close()
	conn.SetReadLimit(maxFrameSize)

	// Unblock ReadMessage on cancellation.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	w.logger.Info("connected", "url", w.cfg.URL)
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return ErrClosed
			}
			return fmt.Errorf("source: read: %w", err)
		}
		switch mt {
		case websocket.TextMessage:
			var g Geometry
			if err := json.Unmarshal(data, &g); err != nil {
				w.logger.Debug("ignoring text message", "error", err)
				continue
			}
			w.geometry.Store(&g)
		case websocket.BinaryMessage:
			w.received.Add(1)
			if len(data) == 0 || !w.throttle.Allow() {
				continue
			}
			var g Geometry
			if p := w.geometry.Load(); p != nil {
				g = *p
			}
			w.throttle.Forward(frame.New(data, g.Width, g.Height, g.Rotation))
		}
	}
}

// IsClosed reports whether err means the remote hung up cleanly.
func IsClosed(err error) bool { return errors.Is(err, ErrClosed) }
