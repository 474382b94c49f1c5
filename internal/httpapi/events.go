package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Plugin lifecycle events carry no secrets and the endpoint requires
	// no auth in this host; same-origin checks are left to a reverse
	// proxy in front of this service.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// events relays the Manager's lifecycle event bus over a WebSocket
// connection. Purely observational: closing the connection or falling
// behind never affects Manager operations (internal/events.Bus drops
// events to slow subscribers rather than blocking).
func (s *Server) events(c *gin.Context) {
	bus := s.mgr.Events()
	if bus == nil {
		fail(c, http.StatusNotImplemented, "event stream is not enabled")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sub, unsubscribe := bus.Subscribe(32)
	defer unsubscribe()

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case ev, open := <-sub:
			if !open {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
