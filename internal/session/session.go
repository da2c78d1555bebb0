package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/classwire/livesession/internal/proto"
	"github.com/classwire/livesession/internal/utils"
)

// ErrRateLimited is returned when the local rate bucket refuses a chat
// send. The message never reaches the wire; the UI shows a soft notice.
var ErrRateLimited = errors.New("rate limit exceeded")

// ErrSessionClosed is returned by operations invoked after Close.
var ErrSessionClosed = errors.New("session closed")

// Options configures a Session.
type Options struct {
	SessionID string
	Local     Participant
	URL       string

	Dialer  Dialer
	Policy  ReconnectPolicy
	Devices DeviceProvider
	Logger  *zerolog.Logger

	RateCapacity       int
	RateRefillInterval time.Duration
	TypingTTL          time.Duration
	ReactionTTL        time.Duration
	HeartbeatInterval  time.Duration
	AttendanceBaseURL  string
	AttendanceInterval time.Duration
}

// Session is the single object the control layer talks to for one live
// training session. It composes the connection, codec routing, rate
// limiting, presence, reactions, media control, and attendance reporting.
//
// The roster and the rate bucket are touched both by user input and by
// inbound frames; both paths funnel through the mailbox so a single
// goroutine is ever the writer.
type Session struct {
	id    string
	local Participant
	url   string
	log   *zerolog.Logger

	bus        *Bus
	wheel      *expiryWheel
	conn       *ConnManager
	limiter    *RateLimiter
	presence   *PresenceTracker
	reactions  *ReactionBroadcaster
	media      *MediaController
	attendance *AttendanceRecorder

	mailbox chan func()
	done    chan struct{}
	stopped chan struct{}

	heartbeat time.Duration

	mu       sync.Mutex
	messages []ChatMessage
	seen     map[string]struct{}
	closed   bool
	started  bool
}

// New assembles a session from opts. Call Start to connect.
func New(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 30 * time.Second
	}

	s := &Session{
		id:        opts.SessionID,
		local:     opts.Local,
		url:       opts.URL,
		log:       logger,
		bus:       NewBus(),
		wheel:     newExpiryWheel(),
		limiter:   NewRateLimiter(opts.RateCapacity, opts.RateRefillInterval),
		mailbox:   make(chan func(), 64),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
		heartbeat: opts.HeartbeatInterval,
		seen:      make(map[string]struct{}),
	}

	s.presence = NewPresenceTracker(s.wheel, opts.TypingTTL, logger, func() {
		s.bus.Publish(TopicRoster, s.presence.Roster())
		s.bus.Publish(TopicTyping, s.presence.ActiveTypists())
	})
	s.reactions = NewReactionBroadcaster(s.wheel, opts.ReactionTTL, func() {
		s.bus.Publish(TopicReaction, s.reactions.Active())
	})
	s.media = NewMediaController(opts.Local.Role, opts.Devices, logger,
		func(state MediaControlState) { s.bus.Publish(TopicMediaState, state) },
		func(msg string) { s.bus.Publish(TopicToast, msg) },
	)
	s.conn = NewConnManager(opts.Dialer, opts.Policy, logger, s.handleFrame, s.handleConnState)
	s.attendance = NewAttendanceRecorder(opts.AttendanceBaseURL, opts.SessionID, opts.Local.ID, opts.AttendanceInterval, logger)

	return s
}

// Bus exposes the session-scoped event bus for UI collaborators.
func (s *Session) Bus() *Bus { return s.bus }

// Local returns a snapshot of the local participant record.
func (s *Session) Local() Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.local
}

// Start runs the event loop and opens the connection.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.started {
		s.mu.Unlock()
		return errors.New("session already started")
	}
	s.started = true
	s.mu.Unlock()

	go s.run()

	if err := s.conn.Connect(s.url); err != nil {
		return err
	}

	s.presence.Join(s.Local())
	s.attendance.Start(ctx)
	return nil
}

// Close tears the session down. All timers are cancelled before Close
// returns; no expiry, heartbeat, or reconnect fires afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	started := s.started
	s.mu.Unlock()

	if s.conn.Connected() {
		_ = s.conn.Send(proto.LeaveFrame(s.local.ID))
	}

	close(s.done)
	if started {
		<-s.stopped
	}

	s.attendance.Stop()
	s.conn.Close()
	s.media.ReleaseAll()
	s.wheel.Close()
	s.bus.Close()
	s.log.Info().Str("session_id", s.id).Msg("session closed")
}

// run is the session event loop: the only writer of the chat log, and the
// serialization point for bucket and roster mutation paths.
func (s *Session) run() {
	defer close(s.stopped)

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case fn := <-s.mailbox:
			fn()
		case <-ticker.C:
			s.presence.Heartbeat(s.conn.Send)
		}
	}
}

// do runs fn on the event loop and waits for it.
func (s *Session) do(fn func()) error {
	reply := make(chan struct{})
	select {
	case s.mailbox <- func() { fn(); close(reply) }:
	case <-s.done:
		return ErrSessionClosed
	}
	select {
	case <-reply:
		return nil
	case <-s.done:
		return ErrSessionClosed
	}
}

// post queues fn on the event loop without waiting.
func (s *Session) post(fn func()) {
	select {
	case s.mailbox <- fn:
	case <-s.done:
	}
}

// SendChat sends a chat message. The bucket is consumed per attempted
// send; an empty bucket refuses locally and nothing reaches the wire.
func (s *Session) SendChat(body string) (ChatMessage, error) {
	var msg ChatMessage
	var sendErr error

	err := s.do(func() {
		if !s.limiter.TryConsume() {
			s.bus.Publish(TopicToast, "You're sending messages too quickly")
			sendErr = ErrRateLimited
			return
		}

		msg = ChatMessage{
			ID:           utils.NewID(),
			SenderID:     s.local.ID,
			SenderName:   s.local.DisplayName,
			Body:         body,
			SentAt:       time.Now(),
			IsInstructor: s.local.Role == RoleInstructor,
		}
		frame := proto.MessageFrame(msg.ID, msg.SenderID, msg.SenderName, msg.Body, msg.SentAt.Unix(), msg.IsInstructor)
		if err := s.conn.Send(frame); err != nil {
			s.log.Warn().Err(err).Msg("chat send failed")
			s.bus.Publish(TopicToast, "Message not sent: you are disconnected")
			sendErr = err
			return
		}

		// Optimistic append; the server echo is deduplicated by id.
		s.appendMessage(msg)
	})
	if err != nil {
		return ChatMessage{}, err
	}
	return msg, sendErr
}

// SendTyping announces that the local user is composing. Not rate limited
// and best-effort.
func (s *Session) SendTyping() {
	s.post(func() {
		if err := s.conn.Send(proto.TypingFrame(s.local.ID, s.local.DisplayName)); err != nil {
			s.log.Debug().Err(err).Msg("typing signal dropped")
		}
	})
}

// SendReaction spawns a reaction locally and broadcasts it best-effort.
func (s *Session) SendReaction(kind string) string {
	id := s.reactions.Spawn(kind)
	s.post(func() {
		if err := s.conn.Send(proto.ReactionFrame(id, s.local.ID, kind)); err != nil {
			s.log.Debug().Err(err).Msg("reaction dropped")
		}
	})
	return id
}

// Messages returns the chat log snapshot in receipt order.
func (s *Session) Messages() []ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// Roster proxies the presence tracker.
func (s *Session) Roster() []Participant { return s.presence.Roster() }

// ActiveTypists proxies the presence tracker.
func (s *Session) ActiveTypists() []string { return s.presence.ActiveTypists() }

// ActiveReactions proxies the reaction broadcaster.
func (s *Session) ActiveReactions() []Reaction { return s.reactions.Active() }

// RateRemaining reports the local send budget.
func (s *Session) RateRemaining() int { return s.limiter.Remaining() }

// ConnState reports the connection state.
func (s *Session) ConnState() ConnState { return s.conn.State() }

// MediaState reports the local media state.
func (s *Session) MediaState() MediaControlState { return s.media.State() }

// ToggleMute flips the microphone and pushes the presence update outward.
func (s *Session) ToggleMute(ctx context.Context) MediaControlState {
	state := s.media.ToggleMute(ctx)
	s.publishLocalPresence(state)
	return state
}

// ToggleVideo flips the camera and pushes the presence update outward.
func (s *Session) ToggleVideo(ctx context.Context) MediaControlState {
	state := s.media.ToggleVideo(ctx)
	s.publishLocalPresence(state)
	return state
}

// ToggleScreenShare flips screen sharing; refused for attendees.
func (s *Session) ToggleScreenShare(ctx context.Context) MediaControlState {
	state, err := s.media.ToggleScreenShare(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("screen share toggle refused")
	}
	return state
}

// SelectAudioDevice records the preferred microphone for later acquisition.
func (s *Session) SelectAudioDevice(id string) { s.media.SelectAudioDevice(id) }

// SelectVideoDevice records the preferred camera for later acquisition.
func (s *Session) SelectVideoDevice(id string) { s.media.SelectVideoDevice(id) }

// RefreshDevices re-enumerates capture hardware.
func (s *Session) RefreshDevices(ctx context.Context) ([]Device, error) {
	return s.media.RefreshDevices(ctx)
}

// publishLocalPresence mirrors media flags into the roster entry and sends
// the roster delta outward.
func (s *Session) publishLocalPresence(state MediaControlState) {
	s.post(func() {
		s.mu.Lock()
		s.local.Muted = state.Muted
		s.local.VideoOn = state.VideoOn
		s.local.Active = true
		local := s.local
		s.mu.Unlock()

		s.presence.Join(local)

		frame := proto.JoinFrame(local.ID, local.DisplayName, string(local.Role), local.Muted, local.VideoOn)
		if err := s.conn.Send(frame); err != nil {
			s.log.Debug().Err(err).Msg("presence update dropped")
		}
	})
}

// handleFrame routes one inbound frame. Runs on the event loop: presence
// first, then reactions, then the chat sink.
func (s *Session) handleFrame(frame proto.Frame) {
	s.post(func() {
		switch frame.Type {
		case proto.TypeJoin:
			s.presence.Join(Participant{
				ID:          frame.UserID,
				DisplayName: frame.UserName,
				Role:        Role(frame.Role),
				Muted:       frame.Muted,
				VideoOn:     frame.VideoOn,
				Active:      true,
			})
		case proto.TypeLeave:
			s.presence.Leave(frame.UserID)
		case proto.TypeTyping:
			if frame.UserID != s.local.ID {
				s.presence.SetTyping(frame.UserID, frame.UserName)
			}
		case proto.TypePing:
			if err := s.conn.Send(proto.PongFrame()); err != nil {
				s.log.Debug().Err(err).Msg("pong dropped")
			}
		case proto.TypePong:
			// Heartbeat acknowledged; nothing to update.
		case proto.TypeRateLimit:
			if frame.Remaining != nil {
				s.limiter.SetRemaining(*frame.Remaining)
				if *frame.Remaining == 0 {
					s.bus.Publish(TopicToast, "You're sending messages too quickly")
				}
			}
		case proto.TypeReaction:
			if frame.UserID != s.local.ID {
				s.reactions.Ingest(frame.ID, frame.Kind)
			}
		case proto.TypeMessage:
			s.appendMessage(ChatMessage{
				ID:           frame.ID,
				SenderID:     frame.UserID,
				SenderName:   frame.UserName,
				Body:         frame.Message,
				SentAt:       time.Unix(frame.Timestamp, 0),
				IsInstructor: frame.IsInstructor,
			})
		}
	})
}

// appendMessage adds msg in receipt order, dropping echoes of messages
// already appended optimistically.
func (s *Session) appendMessage(msg ChatMessage) {
	s.mu.Lock()
	if _, dup := s.seen[msg.ID]; dup {
		s.mu.Unlock()
		return
	}
	s.seen[msg.ID] = struct{}{}
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	s.bus.Publish(TopicChat, msg)
}

func (s *Session) handleConnState(state ConnState) {
	s.bus.Publish(TopicConnState, state)

	switch state {
	case StateOpen:
		s.media.SetConnectionQuality(QualityGood)
		// Announce (or re-announce after a reconnect) the local
		// participant.
		s.post(func() {
			local := s.Local()
			frame := proto.JoinFrame(local.ID, local.DisplayName, string(local.Role), local.Muted, local.VideoOn)
			if err := s.conn.Send(frame); err != nil {
				s.log.Warn().Err(err).Msg("join announce failed")
			}
		})
	case StateConnecting:
		s.media.SetConnectionQuality(QualityMedium)
	case StateDisconnected:
		s.media.SetConnectionQuality(QualityPoor)
	}
}
