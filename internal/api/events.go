package api

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/ChuheLin/BatchClipFlow/internal/batch"
)

// EventHub fans batch progress events out to websocket subscribers. Events
// are delivered to each subscriber in processing order; a subscriber that
// cannot keep up is dropped rather than stalling the batch.
type EventHub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu   sync.Mutex
	subs map[*websocket.Conn]struct{}
}

func NewEventHub(logger *slog.Logger) *EventHub {
	return &EventHub{
		logger: logger,
		upgrader: websocket.Upgrader{
			// The API only binds to loopback; the UI frontend is the
			// sole expected origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		subs: make(map[*websocket.Conn]struct{}),
	}
}

// Handle upgrades the request and registers the connection as a subscriber.
func (h *EventHub) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	h.mu.Lock()
	h.subs[conn] = struct{}{}
	count := len(h.subs)
	h.mu.Unlock()
	h.logger.Info("event subscriber connected", "subscribers", count)

	// Read pump: we never expect client messages, but reading is how we
	// notice the peer going away.
	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Broadcast sends one event to every subscriber.
func (h *EventHub) Broadcast(ev batch.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.subs {
		if err := conn.WriteJSON(ev); err != nil {
			h.logger.Warn("dropping event subscriber", "error", err)
			conn.Close()
			delete(h.subs, conn)
		}
	}
}

func (h *EventHub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[conn]; ok {
		conn.Close()
		delete(h.subs, conn)
	}
}

// Close disconnects every subscriber, used at shutdown.
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.subs {
		conn.Close()
	}
	h.subs = make(map[*websocket.Conn]struct{})
}
