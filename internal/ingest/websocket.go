package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Connection defaults
const (
	DefaultPingInterval         = 30 * time.Second
	DefaultReconnectDelay       = 5 * time.Second
	DefaultMaxReconnectAttempts = 10

	// DefaultReadTimeout treats a silent socket as disconnected
	DefaultReadTimeout = 90 * time.Second

	HandshakeTimeout = 10 * time.Second
	WriteTimeout     = 10 * time.Second
)

// ErrReconnectsExhausted is returned by Run after too many consecutive
// failed connection attempts.
var ErrReconnectsExhausted = errors.New("max reconnect attempts reached")

// FeedStatus is the connection state shown on the status surfaces.
type FeedStatus string

const (
	FeedConnecting   FeedStatus = "connecting"
	FeedConnected    FeedStatus = "connected"
	FeedAuthorized   FeedStatus = "authorized"
	FeedSubscribed   FeedStatus = "subscribed"
	FeedDisconnected FeedStatus = "disconnected"
	FeedStopped      FeedStatus = "stopped"
)

// Handler consumes decoded batches. Calls are made from the read goroutine,
// one frame at a time.
type Handler interface {
	HandleEvents(events []EventDefinition)
	HandleOutcomes(outcomes []Outcome)
}

// StatusRecorder observes the connection. Implementations must not block.
type StatusRecorder interface {
	SetFeedStatus(status FeedStatus)
	RecordFrame(command string, skipped int)
	RecordReconnect(attempt int)
}

// ListenerConfig configures a Listener.
type ListenerConfig struct {
	URL          string
	APIKey       string
	BookmakerIDs []int
	SportIDs     []int

	PingInterval         time.Duration
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
	ReadTimeout          time.Duration
}

// command is an outbound frame.
type command struct {
	Cmd string      `json:"cmd"`
	Msg interface{} `json:"msg"`
}

type subscription struct {
	BookmakerIDs []int `json:"bookmakerIds"`
	SportIDs     []int `json:"sportIds"`
}

// Listener manages the feed connection: authorization, subscription,
// keepalive pings and bounded reconnection.
type Listener struct {
	cfg     ListenerConfig
	handler Handler
	status  StatusRecorder

	conn    *websocket.Conn
	connMu  sync.Mutex
	writeMu sync.Mutex
}

// NewListener creates a listener. status may be nil.
func NewListener(cfg ListenerConfig, handler Handler, status StatusRecorder) *Listener {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	return &Listener{
		cfg:     cfg,
		handler: handler,
		status:  status,
	}
}

// Run connects and processes frames until ctx is done (returning nil) or the
// reconnect budget is exhausted (returning ErrReconnectsExhausted). The
// attempt counter resets after every successful connection.
func (l *Listener) Run(ctx context.Context) error {
	attempts := 0

	for {
		if ctx.Err() != nil {
			l.setStatus(FeedStopped)
			return nil
		}

		connected, err := l.runSession(ctx)
		l.setStatus(FeedDisconnected)

		if ctx.Err() != nil {
			slog.Info("ws_loop_stopping", "reason", "context cancelled")
			l.setStatus(FeedStopped)
			return nil
		}

		if connected {
			attempts = 0
		}
		if err != nil {
			slog.Warn("ws_session_ended", "error", err)
		}

		if attempts >= l.cfg.MaxReconnectAttempts {
			slog.Error("ws_reconnects_exhausted", "attempts", attempts)
			return ErrReconnectsExhausted
		}
		attempts++

		if l.status != nil {
			l.status.RecordReconnect(attempts)
		}
		slog.Info("ws_reconnecting",
			"delay", l.cfg.ReconnectDelay,
			"attempt", attempts,
			"max_attempts", l.cfg.MaxReconnectAttempts,
		)

		if !l.waitReconnect(ctx) {
			l.setStatus(FeedStopped)
			return nil
		}
	}
}

// runSession runs one connection from dial to disconnect. connected reports
// whether the dial succeeded.
func (l *Listener) runSession(ctx context.Context) (bool, error) {
	l.setStatus(FeedConnecting)

	conn, err := l.connect(ctx)
	if err != nil {
		return false, err
	}
	defer l.closeConnection()

	// Deferred in reverse: cancel, wait for helpers, then close.
	var wg sync.WaitGroup
	defer wg.Wait()

	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	wg.Add(2)
	go func() {
		defer wg.Done()
		// Unblock ReadMessage on shutdown.
		<-sessCtx.Done()
		conn.Close()
	}()
	go func() {
		defer wg.Done()
		l.pingLoop(sessCtx)
	}()

	if err := l.send(command{Cmd: "authorization", Msg: l.cfg.APIKey}); err != nil {
		return true, fmt.Errorf("authorization failed: %w", err)
	}
	slog.Info("ws_authorization_sent")

	return true, l.readLoop(sessCtx)
}

// connect dials the feed with per-message compression.
func (l *Listener) connect(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout:  HandshakeTimeout,
		EnableCompression: true,
	}

	conn, resp, err := dialer.DialContext(ctx, l.cfg.URL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial failed: %w", err)
	}

	l.connMu.Lock()
	l.conn = conn
	l.connMu.Unlock()

	l.setStatus(FeedConnected)
	slog.Info("ws_connected", "endpoint", l.cfg.URL)
	return conn, nil
}

// subscribe requests the configured bookmakers and sports.
func (l *Listener) subscribe() error {
	msg := command{
		Cmd: "subscribe",
		Msg: subscription{
			BookmakerIDs: l.cfg.BookmakerIDs,
			SportIDs:     l.cfg.SportIDs,
		},
	}
	if err := l.send(msg); err != nil {
		return fmt.Errorf("failed to send subscribe message: %w", err)
	}

	slog.Info("ws_subscribe_sent", "bookmakers", l.cfg.BookmakerIDs, "sports", l.cfg.SportIDs)
	return nil
}

// readLoop reads frames until the connection fails or ctx is done.
func (l *Listener) readLoop(ctx context.Context) error {
	for {
		l.connMu.Lock()
		conn := l.conn
		l.connMu.Unlock()

		if conn == nil {
			return fmt.Errorf("connection is nil")
		}

		conn.SetReadDeadline(time.Now().Add(l.cfg.ReadTimeout))

		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read error: %w", err)
		}

		if err := l.handleMessage(data); err != nil {
			return err
		}
	}
}

// handleMessage decodes and dispatches one frame. Only failures to write a
// reply are returned; bad frames are logged and skipped.
func (l *Listener) handleMessage(data []byte) error {
	msg, err := Decode(data)
	if err != nil {
		slog.Debug("ws_parse_error", "error", err, "raw", truncate(string(data), 200))
		if l.status != nil {
			l.status.RecordFrame("invalid", 1)
		}
		return nil
	}

	if l.status != nil {
		l.status.RecordFrame(msg.Command, msg.Skipped)
	}
	if msg.Skipped > 0 {
		slog.Debug("ws_items_skipped", "cmd", msg.Command, "skipped", msg.Skipped)
	}

	switch msg.Kind {
	case KindAuthorized:
		l.setStatus(FeedAuthorized)
		slog.Info("ws_authorized")
		return l.subscribe()
	case KindSubscribed:
		l.setStatus(FeedSubscribed)
		slog.Info("ws_subscribed")
	case KindEvents:
		if len(msg.Events) > 0 {
			l.handler.HandleEvents(msg.Events)
		}
	case KindOutcomes:
		if len(msg.Outcomes) > 0 {
			l.handler.HandleOutcomes(msg.Outcomes)
		}
	case KindError:
		slog.Error("ws_feed_error", "message", truncate(msg.Text, 500))
	case KindPong:
		slog.Debug("ws_pong")
	default:
		slog.Debug("ws_message", "cmd", msg.Command)
	}
	return nil
}

// pingLoop sends an application-level ping every PingInterval.
func (l *Listener) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ping := command{Cmd: "ping", Msg: strconv.FormatInt(time.Now().UnixMilli(), 10)}
			if err := l.send(ping); err != nil {
				slog.Warn("ws_ping_failed", "error", err)
				l.closeConnection()
				return
			}
		}
	}
}

// send writes one JSON frame; gorilla connections allow a single writer.
func (l *Listener) send(msg command) error {
	l.connMu.Lock()
	conn := l.conn
	l.connMu.Unlock()

	if conn == nil {
		return fmt.Errorf("connection is nil")
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
	return conn.WriteJSON(msg)
}

// closeConnection safely closes the WebSocket connection.
func (l *Listener) closeConnection() {
	l.connMu.Lock()
	defer l.connMu.Unlock()

	if l.conn != nil {
		l.conn.Close()
		l.conn = nil
		slog.Info("ws_disconnected")
	}
}

// waitReconnect sleeps the fixed reconnect delay. Returns false if ctx ends.
func (l *Listener) waitReconnect(ctx context.Context) bool {
	timer := time.NewTimer(l.cfg.ReconnectDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (l *Listener) setStatus(status FeedStatus) {
	if l.status != nil {
		l.status.SetFeedStatus(status)
	}
}

// truncate shortens a string for logging.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
