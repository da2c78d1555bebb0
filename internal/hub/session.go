package hub

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/classwire/livesession/internal/proto"
	"github.com/classwire/livesession/internal/session"
	"github.com/classwire/livesession/internal/utils"
)

// Session is one live training session's fan-out loop: a single goroutine
// receiving every connected client's frames from one inbound channel and
// broadcasting to all. Chat messages get their total per-session order from
// the loop's receipt order.
type Session struct {
	ID string

	inbound    chan envelope
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopped    chan struct{}

	clients  map[*Client]struct{}
	roster   map[string]proto.Frame // last join frame per user id
	limiters map[string]*session.RateLimiter

	rateCapacity int
	rateRefill   time.Duration
	log          *zerolog.Logger
}

type envelope struct {
	from  *Client
	frame proto.Frame
}

func newSession(id string, rateCapacity int, rateRefill time.Duration, logger *zerolog.Logger) *Session {
	s := &Session{
		ID:           id,
		inbound:      make(chan envelope, 64),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		done:         make(chan struct{}),
		stopped:      make(chan struct{}),
		clients:      make(map[*Client]struct{}),
		roster:       make(map[string]proto.Frame),
		limiters:     make(map[string]*session.RateLimiter),
		rateCapacity: rateCapacity,
		rateRefill:   rateRefill,
		log:          logger,
	}
	go s.run()
	return s
}

// Register adds a client to the session.
func (s *Session) Register(c *Client) {
	select {
	case s.register <- c:
	case <-s.done:
	}
}

// Unregister removes a client and announces its departure.
func (s *Session) Unregister(c *Client) {
	select {
	case s.unregister <- c:
	case <-s.done:
	}
}

// Deliver hands an inbound frame to the session loop.
func (s *Session) Deliver(c *Client, frame proto.Frame) {
	select {
	case s.inbound <- envelope{from: c, frame: frame}:
	case <-s.done:
	}
}

func (s *Session) close() {
	close(s.done)
	<-s.stopped
}

func (s *Session) run() {
	defer close(s.stopped)

	for {
		select {
		case <-s.done:
			return
		case c := <-s.register:
			s.clients[c] = struct{}{}
			s.log.Info().Str("session_id", s.ID).Str("user_id", c.ID).Msg("client registered")
		case c := <-s.unregister:
			s.drop(c)
		case env := <-s.inbound:
			s.handle(env)
		}
	}
}

func (s *Session) drop(c *Client) {
	if _, ok := s.clients[c]; !ok {
		return
	}
	delete(s.clients, c)
	delete(s.roster, c.ID)
	delete(s.limiters, c.ID)
	s.broadcast(proto.LeaveFrame(c.ID))
	s.log.Info().Str("session_id", s.ID).Str("user_id", c.ID).Msg("client unregistered")
}

func (s *Session) handle(env envelope) {
	frame := env.frame
	switch frame.Type {
	case proto.TypeJoin:
		// Replay the current roster to the joining client before its own
		// announcement lands, so it sees everyone exactly once.
		if _, known := s.roster[frame.UserID]; !known {
			for _, existing := range s.roster {
				env.from.trySend(existing)
			}
		}
		s.roster[frame.UserID] = frame
		s.broadcast(frame)
	case proto.TypeLeave:
		delete(s.roster, frame.UserID)
		s.broadcast(frame)
	case proto.TypeMessage:
		limiter := s.limiter(env.from.ID)
		if !limiter.TryConsume() {
			remaining := limiter.Remaining()
			env.from.trySend(proto.RateLimitFrame(remaining))
			s.log.Debug().Str("user_id", env.from.ID).Msg("message rate limited")
			return
		}
		if frame.ID == "" {
			frame.ID = utils.NewID()
		}
		if frame.Timestamp == 0 {
			frame.Timestamp = time.Now().Unix()
		}
		s.broadcast(frame)
	case proto.TypeTyping, proto.TypeReaction:
		// Best-effort relays: no ordering, no bucket, no acknowledgment.
		s.broadcast(frame)
	case proto.TypePing:
		env.from.trySend(proto.PongFrame())
	case proto.TypePong:
		// Client heartbeat reply; nothing to do.
	default:
		s.log.Warn().Str("type", frame.Type).Msg("unhandled frame type")
	}
}

func (s *Session) limiter(userID string) *session.RateLimiter {
	l, ok := s.limiters[userID]
	if !ok {
		l = session.NewRateLimiter(s.rateCapacity, s.rateRefill)
		s.limiters[userID] = l
	}
	return l
}

func (s *Session) broadcast(frame proto.Frame) {
	for client := range s.clients {
		client.trySend(frame)
	}
}
