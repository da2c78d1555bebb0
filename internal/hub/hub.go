package hub

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Hub is the registry of live sessions. Each session runs its own fan-out
// goroutine; the hub only creates and tears them down.
type Hub struct {
	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool

	rateCapacity int
	rateRefill   time.Duration
	log          *zerolog.Logger
}

// NewHub creates an empty hub. rateCapacity and rateRefill configure the
// per-user server-side chat budget of every session.
func NewHub(rateCapacity int, rateRefill time.Duration, logger *zerolog.Logger) *Hub {
	return &Hub{
		sessions:     make(map[string]*Session),
		rateCapacity: rateCapacity,
		rateRefill:   rateRefill,
		log:          logger,
	}
}

// Session returns the live session for id, creating it on first use.
func (h *Hub) Session(id string) *Session {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	s, ok := h.sessions[id]
	if !ok {
		s = newSession(id, h.rateCapacity, h.rateRefill, h.log)
		h.sessions[id] = s
		h.log.Info().Str("session_id", id).Msg("session created")
	}
	return s
}

// Close stops every session loop.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.sessions = nil
	h.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
}
