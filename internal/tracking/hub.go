package tracking

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/example/hospital-availability/internal/models"
)

const writeWait = 5 * time.Second

// session is one websocket watching one ambulance.
type session struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *session) send(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(v)
}

// Hub fans ambulance location updates out to websocket subscribers.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[*session]struct{}
	logger   zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{sessions: make(map[string]map[*session]struct{}), logger: logger}
}

// Subscribe registers conn for updates about ambulanceID and blocks reading
// from it until the client goes away.
func (h *Hub) Subscribe(ambulanceID string, conn *websocket.Conn) {
	s := &session{conn: conn}
	h.mu.Lock()
	if h.sessions[ambulanceID] == nil {
		h.sessions[ambulanceID] = make(map[*session]struct{})
	}
	h.sessions[ambulanceID][s] = struct{}{}
	h.mu.Unlock()

	defer h.drop(ambulanceID, s)
	for {
		// clients never send anything useful; reading detects close
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Publish sends ev to every subscriber of its ambulance. Sessions that
// fail to receive are dropped.
func (h *Hub) Publish(ev models.LocationEvent) {
	h.mu.RLock()
	subs := make([]*session, 0, len(h.sessions[ev.AmbulanceID]))
	for s := range h.sessions[ev.AmbulanceID] {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	for _, s := range subs {
		if err := s.send(ev); err != nil {
			h.logger.Debug().Err(err).Str("ambulance_id", ev.AmbulanceID).Msg("ws send failed, dropping subscriber")
			h.drop(ev.AmbulanceID, s)
		}
	}
}

// Subscribers reports how many sessions watch ambulanceID.
func (h *Hub) Subscribers(ambulanceID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[ambulanceID])
}

func (h *Hub) drop(ambulanceID string, s *session) {
	h.mu.Lock()
	if subs, ok := h.sessions[ambulanceID]; ok {
		delete(subs, s)
		if len(subs) == 0 {
			delete(h.sessions, ambulanceID)
		}
	}
	h.mu.Unlock()
	_ = s.conn.Close()
}
