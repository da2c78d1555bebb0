package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/classwire/livesession/internal/proto"
)

// ErrNotConnected is returned by Send when the connection is not open.
// Sends never queue; callers check connectivity and retry on their own
// terms.
var ErrNotConnected = errors.New("not connected")

const writeTimeout = 5 * time.Second

// stableConnAge is how long a connection must stay open before a later
// loss gets a fresh retry count. A transport that accepts dials and drops
// them right away keeps counting attempts, so it reconnects at the policy
// interval instead of dial-storming.
const stableConnAge = 30 * time.Second

// Conn is one established duplex transport.
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close() error
}

// Dialer establishes transport connections. The websocket dialer is the
// production implementation; tests script their own.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WSDialer dials websocket connections.
type WSDialer struct{}

// Dial implements Dialer.
func (WSDialer) Dial(ctx context.Context, url string) (Conn, error) {
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return &wsConn{conn: c}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := c.conn.Read(ctx)
	return data, err
}

func (c *wsConn) Write(ctx context.Context, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, data)
}

func (c *wsConn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "closing")
}

// ConnManager owns the persistent session connection: dialing, reconnecting
// on the configured policy, and fail-fast sends. Decoded frames go to
// onFrame; state changes go to onState. Neither fires after Close returns.
type ConnManager struct {
	dialer  Dialer
	policy  ReconnectPolicy
	log     *zerolog.Logger
	onFrame func(proto.Frame)
	onState func(ConnState)

	mu     sync.Mutex
	state  ConnState
	conn   Conn
	cancel context.CancelFunc
	done   chan struct{}
}

// NewConnManager builds a manager in the uninstantiated state.
func NewConnManager(dialer Dialer, policy ReconnectPolicy, logger *zerolog.Logger, onFrame func(proto.Frame), onState func(ConnState)) *ConnManager {
	if policy == nil {
		policy = FixedIntervalPolicy{Interval: 3 * time.Second, Cap: 10}
	}
	return &ConnManager{
		dialer:  dialer,
		policy:  policy,
		log:     logger,
		onFrame: onFrame,
		onState: onState,
		state:   StateUninstantiated,
	}
}

// Connect starts the connection loop for url. It returns immediately; the
// loop dials, reads, and reconnects in the background until Close.
func (m *ConnManager) Connect(url string) error {
	m.mu.Lock()
	if m.state != StateUninstantiated {
		m.mu.Unlock()
		return errors.New("already connected")
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	m.mu.Unlock()

	m.setState(StateConnecting)
	go m.run(ctx, url)
	return nil
}

// State reports the current connection state.
func (m *ConnManager) State() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connected is true while frames can be sent.
func (m *ConnManager) Connected() bool {
	return m.State() == StateOpen
}

// Send encodes and writes a frame. Fails fast when not open.
func (m *ConnManager) Send(frame proto.Frame) error {
	m.mu.Lock()
	conn := m.conn
	open := m.state == StateOpen
	m.mu.Unlock()

	if !open || conn == nil {
		return ErrNotConnected
	}

	data, err := proto.Encode(frame)
	if err != nil {
		return err
	}
	return conn.Write(context.Background(), data)
}

// Close tears the connection down: reconnect timers are cancelled, the
// transport is closed, and no callback fires after Close returns.
func (m *ConnManager) Close() {
	m.mu.Lock()
	if m.state == StateClosed || m.state == StateClosing {
		m.mu.Unlock()
		return
	}
	prev := m.state
	m.state = StateClosing
	cancel := m.cancel
	done := m.done
	conn := m.conn
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	if done != nil && prev != StateUninstantiated {
		<-done
	}

	m.mu.Lock()
	m.state = StateClosed
	m.conn = nil
	m.mu.Unlock()
}

func (m *ConnManager) run(ctx context.Context, url string) {
	defer close(m.done)

	attempt := 0
	for {
		conn, err := m.dialer.Dial(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.log.Warn().Err(err).Int("attempt", attempt+1).Msg("dial failed")
			if !m.waitRetry(ctx, &attempt) {
				return
			}
			continue
		}

		// Closing raced the dial: drop the connection without ever
		// reporting it as open.
		if ctx.Err() != nil {
			_ = conn.Close()
			return
		}

		m.mu.Lock()
		m.conn = conn
		m.mu.Unlock()
		m.setState(StateOpen)
		openedAt := time.Now()

		err = m.readLoop(ctx, conn)
		m.mu.Lock()
		m.conn = nil
		m.mu.Unlock()
		_ = conn.Close()

		if ctx.Err() != nil {
			return
		}
		m.log.Warn().Err(err).Msg("connection lost, reconnecting")
		m.setState(StateConnecting)

		// A connection that held for a while earns a fresh retry count;
		// one that dropped immediately counts as another failed attempt.
		if time.Since(openedAt) >= stableConnAge {
			attempt = 0
		}
		if !m.waitRetry(ctx, &attempt) {
			return
		}
	}
}

// waitRetry sleeps out the policy delay for the next attempt. It returns
// false when the manager was closed while waiting.
func (m *ConnManager) waitRetry(ctx context.Context, attempt *int) bool {
	*attempt++
	delay, degraded := m.policy.Next(*attempt)
	if degraded {
		m.setState(StateDisconnected)
	}

	timer := time.NewTimer(delay)
	select {
	case <-ctx.Done():
		timer.Stop()
		return false
	case <-timer.C:
		return true
	}
}

func (m *ConnManager) readLoop(ctx context.Context, conn Conn) error {
	for {
		data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		frame, err := proto.Decode(data)
		if err != nil {
			// Malformed or unknown frames never terminate the session.
			if errors.Is(err, proto.ErrUnknownType) {
				continue
			}
			m.log.Warn().Err(err).Msg("discarding undecodable frame")
			continue
		}
		m.deliver(frame)
	}
}

func (m *ConnManager) deliver(frame proto.Frame) {
	m.mu.Lock()
	closing := m.state == StateClosing || m.state == StateClosed
	m.mu.Unlock()
	if closing || m.onFrame == nil {
		return
	}
	m.onFrame(frame)
}

func (m *ConnManager) setState(s ConnState) {
	m.mu.Lock()
	if m.state == StateClosing || m.state == StateClosed {
		m.mu.Unlock()
		return
	}
	changed := m.state != s
	m.state = s
	cb := m.onState
	m.mu.Unlock()

	if changed && cb != nil {
		cb(s)
	}
}
