package realtime

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"table-order-api/middleware"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// helloFrame confirms the subscription and lists joined channels so a
// reconnecting client knows what it will receive.
type helloFrame struct {
	Event    string   `json:"event"`
	Session  string   `json:"session"`
	Channels []string `json:"channels"`
}

// HandleWebSocket upgrades an authenticated request to a long-lived
// subscription. Membership comes from the verified claims, never from the
// client body; a role or branch change requires reconnecting with a fresh
// token.
func (h *Hub) HandleWebSocket(c *gin.Context) {
	userID := middleware.GetUserID(c)
	role := middleware.GetRole(c)
	scope := middleware.GetScope(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Warn("ws upgrade failed")
		return
	}

	s := h.Connect(conn, userID, role, scope)

	channels := []string{}
	for _, ch := range h.Channels(s.ID) {
		channels = append(channels, ch.String())
	}
	if frame, err := json.Marshal(helloFrame{Event: "subscribed", Session: s.ID, Channels: channels}); err == nil {
		select {
		case s.send <- frame:
		default:
		}
	}

	go h.readPump(s)
}

// readPump discards inbound frames (the subscription is one-way) and tears the
// session down when the peer goes away.
func (h *Hub) readPump(s *Session) {
	defer h.Disconnect(s.ID)
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}
