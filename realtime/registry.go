package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"table-order-api/models"
)

// sendBuffer bounds per-session backlog; a subscriber that cannot drain it is
// dropped and must reconnect and re-fetch state.
const sendBuffer = 64

// Session is one live real-time connection with the identity and tenant scope
// it authenticated with, plus its current channel memberships.
type Session struct {
	ID     string
	UserID uint
	Role   models.Role
	Scope  models.TenantScope

	conn     *websocket.Conn // nil in tests
	send     chan []byte
	channels map[Channel]bool
}

// Receive exposes the outbound frame stream, used by the write pump and by
// tests that drive the registry without a network stack.
func (s *Session) Receive() <-chan []byte { return s.send }

// Hub is the session registry: it tracks live connections and their channel
// memberships, and fans committed events out to them.
type Hub struct {
	log *logrus.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	members  map[Channel]map[string]*Session
}

func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		log:      log,
		sessions: make(map[string]*Session),
		members:  make(map[Channel]map[string]*Session),
	}
}

// Connect registers a session and joins it to the channels its authenticated
// role and scope grant. Reconnecting clients simply connect again; the
// registry holds no state for dead connections.
func (h *Hub) Connect(conn *websocket.Conn, userID uint, role models.Role, scope models.TenantScope) *Session {
	s := &Session{
		ID:       uuid.NewString(),
		UserID:   userID,
		Role:     role,
		Scope:    scope,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		channels: make(map[Channel]bool),
	}

	h.mu.Lock()
	h.sessions[s.ID] = s
	h.mu.Unlock()

	for _, ch := range ChannelsForRole(role, scope) {
		h.Join(s.ID, ch)
	}

	if conn != nil {
		go h.writePump(s)
	}
	h.log.WithFields(logrus.Fields{
		"session": s.ID, "user": userID, "role": role,
		"restaurant": scope.RestaurantID, "branch": scope.BranchID,
	}).Info("realtime session connected")
	return s
}

// Join adds the session to a channel. Joining a channel twice is a no-op.
func (h *Hub) Join(sessionID string, ch Channel) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[sessionID]
	if !ok || s.channels[ch] {
		return
	}
	s.channels[ch] = true
	if h.members[ch] == nil {
		h.members[ch] = make(map[string]*Session)
	}
	h.members[ch][sessionID] = s
}

// Leave removes the session from a channel. Leaving a channel never joined is
// a no-op.
func (h *Hub) Leave(sessionID string, ch Channel) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[sessionID]
	if !ok || !s.channels[ch] {
		return
	}
	delete(s.channels, ch)
	delete(h.members[ch], sessionID)
	if len(h.members[ch]) == 0 {
		delete(h.members, ch)
	}
}

// Rebind reconciles memberships after a role or branch change: old channels
// are left, new ones joined.
func (h *Hub) Rebind(sessionID string, role models.Role, scope models.TenantScope) {
	h.mu.RLock()
	s, ok := h.sessions[sessionID]
	var old []Channel
	if ok {
		for ch := range s.channels {
			old = append(old, ch)
		}
	}
	h.mu.RUnlock()
	if !ok {
		return
	}

	for _, ch := range old {
		h.Leave(sessionID, ch)
	}
	h.mu.Lock()
	s.Role = role
	s.Scope = scope
	h.mu.Unlock()
	for _, ch := range ChannelsForRole(role, scope) {
		h.Join(sessionID, ch)
	}
}

// Disconnect drops the session and all its memberships.
func (h *Hub) Disconnect(sessionID string) {
	h.mu.Lock()
	s, ok := h.sessions[sessionID]
	if !ok {
		h.mu.Unlock()
		return
	}
	for ch := range s.channels {
		delete(h.members[ch], sessionID)
		if len(h.members[ch]) == 0 {
			delete(h.members, ch)
		}
	}
	delete(h.sessions, sessionID)
	close(s.send)
	h.mu.Unlock()

	if s.conn != nil {
		s.conn.Close()
	}
	h.log.WithField("session", sessionID).Info("realtime session disconnected")
}

// Channels lists the session's current memberships.
func (h *Hub) Channels(sessionID string) []Channel {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[sessionID]
	if !ok {
		return nil
	}
	out := make([]Channel, 0, len(s.channels))
	for ch := range s.channels {
		out = append(out, ch)
	}
	return out
}

// Publish fans a committed event out to every member of its target channels.
// Callers invoke it strictly after the owning transaction commits; frames are
// enqueued under the registry lock so two subscribers of the same channel see
// events for one order in commit order.
func (h *Hub) Publish(evt Event) {
	targets := Route(evt)

	h.mu.Lock()
	var stale []string
	for ch, envelope := range targets {
		sessions := h.members[ch]
		if len(sessions) == 0 {
			continue
		}
		frame, err := json.Marshal(envelope)
		if err != nil {
			h.log.WithError(err).WithField("event", evt.Type).Error("marshal event")
			continue
		}
		for id, s := range sessions {
			select {
			case s.send <- frame:
			default:
				// Slow consumer: drop it, the client re-syncs on reconnect.
				stale = append(stale, id)
			}
		}
	}
	h.mu.Unlock()

	for _, id := range stale {
		h.log.WithField("session", id).Warn("dropping slow realtime session")
		h.Disconnect(id)
	}
}

// writePump drains the session's send queue onto the socket.
func (h *Hub) writePump(s *Session) {
	for frame := range s.send {
		if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			h.log.WithError(err).WithField("session", s.ID).Warn("ws write failed")
			h.Disconnect(s.ID)
			return
		}
	}
}
