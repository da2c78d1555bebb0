package session

import "sync"

// Topics published on the session bus. Collaborators subscribe to the
// slices of session state they care about instead of listening on a global
// event surface.
const (
	TopicChat       = "chat"
	TopicRoster     = "roster"
	TopicTyping     = "typing"
	TopicReaction   = "reaction"
	TopicToast      = "toast"
	TopicConnState  = "conn_state"
	TopicMediaState = "media_state"
	TopicPanel      = "panel"
	TopicLeave      = "leave"
)

// BusEvent is one published notification.
type BusEvent struct {
	Topic   string
	Payload any
}

// Bus is an in-process publish/subscribe channel scoped to one session.
// Publishing never blocks: a subscriber that stops draining loses events,
// the same discipline the fan-out loop applies to slow clients.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]chan BusEvent
	closed bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]chan BusEvent)}
}

// Subscribe returns a buffered channel receiving events for topic.
func (b *Bus) Subscribe(topic string) <-chan BusEvent {
	ch := make(chan BusEvent, 16)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs[topic] = append(b.subs[topic], ch)
	return ch
}

// Publish delivers payload to every subscriber of topic, dropping on full
// buffers.
func (b *Bus) Publish(topic string, payload any) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs[topic] {
		select {
		case ch <- BusEvent{Topic: topic, Payload: payload}:
		default:
			// Drop if slow consumer.
		}
	}
}

// Close shuts every subscriber channel. Publish becomes a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, chans := range b.subs {
		for _, ch := range chans {
			close(ch)
		}
	}
	b.subs = nil
}
