package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"envelope-service/internal/logging"
	"envelope-service/internal/models"
)

func TestHubAddAndRemoveClient(t *testing.T) {
	hub := NewHub(logging.Discard())

	hub.AddClient("orders.created", nil, ConnInfo{})
	if len(hub.rooms) != 1 {
		t.Fatalf("expected room to be created")
	}

	hub.RemoveClient("orders.created", nil)
	if len(hub.rooms) != 0 {
		t.Fatalf("expected room to be removed")
	}
}

func TestRoomsFor(t *testing.T) {
	assert.Equal(t, []string{"a.b", ""}, roomsFor("a.b"))
	assert.Equal(t, []string{""}, roomsFor(""))
}

func TestBroadcastOnNilHub(t *testing.T) {
	var hub *Hub
	assert.NotPanics(t, func() {
		hub.BroadcastEnvelope(models.EnvelopeEvent{Type: "published"})
	})
}

func TestMonitorReceivesBroadcast(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub(logging.Discard())
	r := gin.New()
	r.GET("/ws/envelopes", NewMonitorWebSocketHandler(hub).Handle)

	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/envelopes?routing_key=orders.created"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	require.Eventually(t, func() bool { return hub.ClientCount("orders.created") == 1 }, time.Second, 10*time.Millisecond)

	hub.BroadcastEnvelope(models.EnvelopeEvent{Type: "published", MessageID: "m-1", RoutingKey: "orders.created", Label: "Hello World"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var event models.EnvelopeEvent
	require.NoError(t, json.Unmarshal(data, &event))
	assert.Equal(t, "Hello World", event.Label)
	assert.Equal(t, "m-1", event.MessageID)
}
