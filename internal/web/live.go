package web

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sweeney/pelican/internal/status"
)

const (
	defaultLiveMaxConns     = 32
	defaultLivePingInterval = 30 * time.Second
	liveWriteTimeout        = 10 * time.Second
)

// LiveConfig configures the /ws status stream.
type LiveConfig struct {
	MaxConnections int
	PingInterval   time.Duration
}

// liveHandler pushes a compact status frame to each WebSocket client on
// connect and after every tracker change.
type liveHandler struct {
	tracker      *status.Tracker
	upgrader     websocket.Upgrader
	maxConns     int
	pingInterval time.Duration

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func newLiveHandler(tracker *status.Tracker, cfg LiveConfig) *liveHandler {
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = defaultLiveMaxConns
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultLivePingInterval
	}
	return &liveHandler{
		tracker:      tracker,
		maxConns:     cfg.MaxConnections,
		pingInterval: cfg.PingInterval,
		conns:        make(map[*websocket.Conn]struct{}),
	}
}

func (h *liveHandler) register(conn *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.conns) >= h.maxConns {
		return false
	}
	h.conns[conn] = struct{}{}
	return true
}

func (h *liveHandler) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
	conn.Close()
}

// Count returns the number of connected clients.
func (h *liveHandler) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Close disconnects every client.
func (h *liveHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		conn.Close()
		delete(h.conns, conn)
	}
}

func (h *liveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		http.Error(w, "websocket upgrade required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade failed: %v", err)
		return
	}
	if !h.register(conn) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too many live clients"),
			time.Now().Add(liveWriteTimeout))
		conn.Close()
		return
	}

	updates, cancel := h.tracker.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		h.readLoop(conn)
		close(done)
	}()
	h.writeLoop(conn, updates, done)
	h.unregister(conn)
}

// readLoop discards client messages and returns when the connection closes.
func (h *liveHandler) readLoop(conn *websocket.Conn) {
	deadline := 2 * h.pingInterval
	conn.SetReadLimit(1 << 10)
	conn.SetReadDeadline(time.Now().Add(deadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(deadline))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *liveHandler) writeLoop(conn *websocket.Conn, updates <-chan struct{}, done <-chan struct{}) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	if err := h.sendStatus(conn); err != nil {
		return
	}
	for {
		select {
		case <-done:
			return
		case <-updates:
			if err := h.sendStatus(conn); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteTimeout)); err != nil {
				return
			}
		}
	}
}

func (h *liveHandler) sendStatus(conn *websocket.Conn) error {
	conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, status.FormatCompactJSON(h.tracker.Snapshot()))
}
