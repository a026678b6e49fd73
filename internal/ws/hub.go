package ws

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"envelope-service/internal/models"
	"envelope-service/internal/observability"
)

// allRoutingKeys is the room of monitors that watch every routing key.
const allRoutingKeys = ""

// Hub maintains monitor websocket rooms keyed by routing key.
type Hub struct {
	rooms    map[string]map[*websocket.Conn]bool
	connInfo map[*websocket.Conn]ConnInfo
	logger   *slog.Logger
	mu       sync.RWMutex
	// writeMu serializes writes; a websocket conn allows one writer at a time.
	writeMu sync.Mutex
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		rooms:    make(map[string]map[*websocket.Conn]bool),
		connInfo: make(map[*websocket.Conn]ConnInfo),
		logger:   logger,
	}
}

// AddClient registers a monitor for routingKey; an empty key watches all.
func (h *Hub) AddClient(routingKey string, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[routingKey]; !ok {
		h.rooms[routingKey] = make(map[*websocket.Conn]bool)
	}
	h.rooms[routingKey][conn] = true
	h.connInfo[conn] = info
}

// RemoveClient removes a monitor connection.
func (h *Hub) RemoveClient(routingKey string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[routingKey]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.rooms, routingKey)
		}
	}
	delete(h.connInfo, conn)
}

// BroadcastEnvelope sends event to monitors of its routing key and to
// monitors of all keys.
func (h *Hub) BroadcastEnvelope(event models.EnvelopeEvent) {
	if h == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("websocket event encode failed", "error", err)
		return
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	for _, key := range roomsFor(event.RoutingKey) {
		h.mu.RLock()
		conns := make([]*websocket.Conn, 0, len(h.rooms[key]))
		for conn := range h.rooms[key] {
			conns = append(conns, conn)
		}
		h.mu.RUnlock()

		for _, conn := range conns {
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.dropClient(key, conn, err)
				continue
			}
			observability.IncWSEvent(event.Type)
		}
	}
}

func (h *Hub) dropClient(routingKey string, conn *websocket.Conn, err error) {
	info, _ := h.getConnInfo(conn)
	h.logger.Warn("websocket write error", "conn_id", info.ConnID, "routing_key", routingKey, "error", err)
	conn.Close()
	h.RemoveClient(routingKey, conn)
	observability.IncWSEvent("ws_error")
}

func (h *Hub) getConnInfo(conn *websocket.Conn) (ConnInfo, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	info, ok := h.connInfo[conn]
	return info, ok
}

// ClientCount reports the monitors registered for routingKey.
func (h *Hub) ClientCount(routingKey string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[routingKey])
}

func roomsFor(routingKey string) []string {
	if routingKey == allRoutingKeys {
		return []string{allRoutingKeys}
	}
	return []string{routingKey, allRoutingKeys}
}
