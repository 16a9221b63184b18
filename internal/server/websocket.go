package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/uwbtools/dwmctl/internal/logging"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Buffered updates per subscriber before it is considered stuck
	subscriberBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The gateway serves local dashboards; there is no origin allowlist.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// subscriber is one connected WebSocket client
type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans position updates out to WebSocket subscribers. A subscriber that
// cannot keep up is dropped rather than allowed to stall the broadcast.
type Hub struct {
	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
	closed      bool
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{subscribers: make(map[*subscriber]struct{})}
}

// Broadcast sends a message to every subscriber
func (h *Hub) Broadcast(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subscribers {
		select {
		case sub.send <- data:
		default:
			// Slow subscriber: drop it so the rest keep flowing.
			delete(h.subscribers, sub)
			close(sub.send)
		}
	}
}

// Count returns the number of connected subscribers
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Close drops every subscriber and rejects new ones
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for sub := range h.subscribers {
		delete(h.subscribers, sub)
		close(sub.send)
	}
}

// add registers a subscriber, reporting false when the hub is closed
func (h *Hub) add(sub *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.subscribers[sub] = struct{}{}
	return true
}

// remove unregisters a subscriber if it is still tracked
func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[sub]; ok {
		delete(h.subscribers, sub)
		close(sub.send)
	}
}

// handleWebSocket upgrades the connection and streams position updates to it.
// The latest known position of every tag is replayed first so a new
// subscriber starts with a complete picture.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error("WebSocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	remoteAddr := conn.RemoteAddr().String()
	logging.LogConnection(remoteAddr, "websocket_subscribed")

	sub := &subscriber{conn: conn, send: make(chan []byte, subscriberBuffer)}
	if !s.hub.add(sub) {
		_ = conn.Close()
		return
	}

	for _, update := range s.Snapshot() {
		if data, err := marshalUpdate(update); err == nil {
			select {
			case sub.send <- data:
			default:
			}
		}
	}

	go s.readPump(sub, remoteAddr)
	go s.writePump(sub, remoteAddr)
}

// readPump consumes frames from the subscriber. The gateway never acts on
// incoming data; the read loop exists to process control frames and to
// notice when the peer goes away.
func (s *Server) readPump(sub *subscriber, remoteAddr string) {
	defer func() {
		s.hub.remove(sub)
		_ = sub.conn.Close()
		logging.LogConnection(remoteAddr, "websocket_closed")
	}()

	sub.conn.SetReadLimit(512)
	_ = sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Debug("Subscriber read error",
					zap.String("remote_addr", remoteAddr),
					zap.Error(err),
				)
			}
			return
		}
	}
}

// writePump delivers queued updates and keeps the connection alive with pings
func (s *Server) writePump(sub *subscriber, remoteAddr string) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.hub.remove(sub)
		_ = sub.conn.Close()
	}()

	for {
		select {
		case data, ok := <-sub.send:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = sub.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := sub.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
			logging.LogWebSocketMessage(remoteAddr, "sent", websocket.TextMessage, data)

		case <-ticker.C:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
