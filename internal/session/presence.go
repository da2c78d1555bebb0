package session

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/classwire/livesession/internal/proto"
)

// PresenceTracker owns the roster and the ephemeral typing indicators.
// Joins are last-write-wins per participant id; leaves of unknown ids are
// no-ops. Typing entries expire on the session's expiry wheel; a fresh
// typing event resets the clock instead of stacking a second entry.
type PresenceTracker struct {
	mu        sync.Mutex
	roster    map[string]Participant
	typing    map[string]*typingEntry
	wheel     *expiryWheel
	typingTTL time.Duration
	log       *zerolog.Logger
	onChange  func()
}

type typingEntry struct {
	indicator  TypingIndicator
	generation uint64
}

// NewPresenceTracker builds an empty tracker backed by wheel.
func NewPresenceTracker(wheel *expiryWheel, typingTTL time.Duration, logger *zerolog.Logger, onChange func()) *PresenceTracker {
	if typingTTL <= 0 {
		typingTTL = 3 * time.Second
	}
	return &PresenceTracker{
		roster:    make(map[string]Participant),
		typing:    make(map[string]*typingEntry),
		wheel:     wheel,
		typingTTL: typingTTL,
		log:       logger,
		onChange:  onChange,
	}
}

// Join inserts or overwrites the roster entry for p.ID.
func (t *PresenceTracker) Join(p Participant) {
	t.mu.Lock()
	_, rejoin := t.roster[p.ID]
	t.roster[p.ID] = p
	t.mu.Unlock()

	if rejoin {
		t.log.Debug().Str("user_id", p.ID).Msg("roster entry overwritten")
	} else {
		t.log.Debug().Str("user_id", p.ID).Str("name", p.DisplayName).Msg("participant joined")
	}
	t.notify()
}

// Leave removes the roster entry and any live typing indicator for id.
// Unknown ids are ignored.
func (t *PresenceTracker) Leave(id string) {
	t.mu.Lock()
	_, present := t.roster[id]
	if !present {
		t.mu.Unlock()
		return
	}
	delete(t.roster, id)
	if entry, ok := t.typing[id]; ok {
		entry.generation++ // invalidate the pending expiry
		delete(t.typing, id)
	}
	t.mu.Unlock()

	t.log.Debug().Str("user_id", id).Msg("participant left")
	t.notify()
}

// SetTyping records a typing event for the user, resetting the TTL if an
// indicator is already live.
func (t *PresenceTracker) SetTyping(id, name string) {
	now := time.Now()

	t.mu.Lock()
	entry, ok := t.typing[id]
	if !ok {
		entry = &typingEntry{}
		t.typing[id] = entry
	}
	entry.generation++
	entry.indicator = TypingIndicator{
		UserID:      id,
		DisplayName: name,
		ExpiresAt:   now.Add(t.typingTTL),
	}
	gen := entry.generation
	t.mu.Unlock()

	t.wheel.Schedule(t.typingTTL, func() {
		t.expireTyping(id, gen)
	})
	t.notify()
}

func (t *PresenceTracker) expireTyping(id string, gen uint64) {
	t.mu.Lock()
	entry, ok := t.typing[id]
	if !ok || entry.generation != gen {
		// A newer event reset the indicator; this timer is stale.
		t.mu.Unlock()
		return
	}
	delete(t.typing, id)
	t.mu.Unlock()
	t.notify()
}

// Roster returns a snapshot sorted by display name. The roster may mutate
// concurrently; callers must not hold the snapshot across suspension points
// and expect it to stay current.
func (t *PresenceTracker) Roster() []Participant {
	t.mu.Lock()
	out := make([]Participant, 0, len(t.roster))
	for _, p := range t.roster {
		out = append(out, p)
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].DisplayName < out[j].DisplayName })
	return out
}

// Get returns the roster entry for id, if present.
func (t *PresenceTracker) Get(id string) (Participant, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.roster[id]
	return p, ok
}

// ActiveTypists returns the display names of users with a live indicator.
func (t *PresenceTracker) ActiveTypists() []string {
	now := time.Now()

	t.mu.Lock()
	out := make([]string, 0, len(t.typing))
	for _, entry := range t.typing {
		// Guard against an expiry tick that has not fired yet.
		if entry.indicator.ExpiresAt.After(now) {
			out = append(out, entry.indicator.DisplayName)
		}
	}
	t.mu.Unlock()

	sort.Strings(out)
	return out
}

// Heartbeat emits the application-level ping that doubles as the local
// liveness signal. The connection layer does not heartbeat on its own.
func (t *PresenceTracker) Heartbeat(send func(proto.Frame) error) {
	if err := send(proto.PingFrame()); err != nil {
		t.log.Debug().Err(err).Msg("heartbeat ping dropped")
	}
}

func (t *PresenceTracker) notify() {
	if t.onChange != nil {
		t.onChange()
	}
}
