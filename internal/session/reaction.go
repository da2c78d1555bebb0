package session

import (
	"sync"
	"time"

	"github.com/classwire/livesession/internal/utils"
)

// ReactionBroadcaster holds the floating reactions currently on screen.
// Reactions are cosmetic: no delivery guarantee, no ordering, duplicates
// expected under concurrent sends. Each reaction schedules its own removal
// on the expiry wheel; nobody polls.
type ReactionBroadcaster struct {
	mu       sync.Mutex
	active   map[string]Reaction
	wheel    *expiryWheel
	ttl      time.Duration
	onChange func()
}

// NewReactionBroadcaster builds an empty broadcaster backed by wheel.
func NewReactionBroadcaster(wheel *expiryWheel, ttl time.Duration, onChange func()) *ReactionBroadcaster {
	if ttl <= 0 {
		ttl = 3 * time.Second
	}
	return &ReactionBroadcaster{
		active:   make(map[string]Reaction),
		wheel:    wheel,
		ttl:      ttl,
		onChange: onChange,
	}
}

// Spawn adds a reaction and returns its id. Removal is already scheduled
// when Spawn returns.
func (b *ReactionBroadcaster) Spawn(kind string) string {
	r := Reaction{
		ID:        utils.NewID(),
		Kind:      kind,
		SpawnedAt: time.Now(),
	}

	b.mu.Lock()
	b.active[r.ID] = r
	b.mu.Unlock()

	b.wheel.Schedule(b.ttl, func() { b.remove(r.ID) })
	b.notify()
	return r.ID
}

// Ingest records a remotely spawned reaction under its wire id.
func (b *ReactionBroadcaster) Ingest(id, kind string) {
	if id == "" {
		id = utils.NewID()
	}
	r := Reaction{ID: id, Kind: kind, SpawnedAt: time.Now()}

	b.mu.Lock()
	b.active[r.ID] = r
	b.mu.Unlock()

	b.wheel.Schedule(b.ttl, func() { b.remove(r.ID) })
	b.notify()
}

// Active returns a snapshot of the reactions still inside their display
// window.
func (b *ReactionBroadcaster) Active() []Reaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Reaction, 0, len(b.active))
	for _, r := range b.active {
		out = append(out, r)
	}
	return out
}

func (b *ReactionBroadcaster) remove(id string) {
	b.mu.Lock()
	_, ok := b.active[id]
	delete(b.active, id)
	b.mu.Unlock()
	if ok {
		b.notify()
	}
}

func (b *ReactionBroadcaster) notify() {
	if b.onChange != nil {
		b.onChange()
	}
}
