package ws

import "time"

type ConnInfo struct {
	ConnID      string
	RoutingKey  string
	IP          string
	RequestID   string
	ConnectedAt time.Time
}
