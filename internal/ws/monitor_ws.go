package ws

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"envelope-service/internal/observability"
)

// MonitorWebSocketHandler streams envelope events to websocket clients.
type MonitorWebSocketHandler struct {
	hub *Hub
}

// NewMonitorWebSocketHandler constructs a MonitorWebSocketHandler.
func NewMonitorWebSocketHandler(hub *Hub) *MonitorWebSocketHandler {
	return &MonitorWebSocketHandler{hub: hub}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection and registers the monitor. The optional
// routing_key query parameter narrows the stream.
func (h *MonitorWebSocketHandler) Handle(c *gin.Context) {
	routingKey := c.Query("routing_key")

	_, span := otel.Tracer("envelope-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		RoutingKey:  routingKey,
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		ConnectedAt: time.Now(),
	}
	h.hub.AddClient(routingKey, conn, info)
	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	h.hub.logger.Info("websocket monitor connected", "conn_id", info.ConnID, "routing_key", routingKey, "ip", info.IP)

	// Monitors only listen; reading detects the close.
	go func() {
		var closeReason string
		defer func() {
			h.hub.RemoveClient(routingKey, conn)
			observability.DecWSActive()
			observability.IncWSEvent("ws_disconnect")
			h.hub.logger.Info("websocket monitor disconnected",
				"conn_id", info.ConnID,
				"duration_ms", time.Since(info.ConnectedAt).Milliseconds(),
				"reason", closeReason,
			)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				closeReason = err.Error()
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					observability.IncWSEvent("ws_error")
				}
				return
			}
		}
	}()
}
