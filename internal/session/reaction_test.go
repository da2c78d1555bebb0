package session

import (
	"testing"
	"time"
)

func TestReactionSelfExpires(t *testing.T) {
	wheel := newExpiryWheel()
	t.Cleanup(wheel.Close)
	b := NewReactionBroadcaster(wheel, 40*time.Millisecond, nil)

	id := b.Spawn("clap")
	if id == "" {
		t.Fatal("spawn must return an id")
	}
	if got := len(b.Active()); got != 1 {
		t.Fatalf("active = %d, want 1", got)
	}

	waitFor(t, func() bool { return len(b.Active()) == 0 }, "reaction never expired")
}

func TestDuplicateReactionsCoexist(t *testing.T) {
	wheel := newExpiryWheel()
	t.Cleanup(wheel.Close)
	b := NewReactionBroadcaster(wheel, time.Hour, nil)

	a := b.Spawn("heart")
	c := b.Spawn("heart")
	if a == c {
		t.Fatal("each spawn gets its own id")
	}
	if got := len(b.Active()); got != 2 {
		t.Fatalf("active = %d, want 2 duplicates", got)
	}
}

func TestIngestedReactionExpiresToo(t *testing.T) {
	wheel := newExpiryWheel()
	t.Cleanup(wheel.Close)

	changes := make(chan struct{}, 16)
	b := NewReactionBroadcaster(wheel, 30*time.Millisecond, func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	})

	b.Ingest("r1", "wave")
	<-changes

	waitFor(t, func() bool { return len(b.Active()) == 0 }, "remote reaction never expired")
}

func TestNoExpiryAfterWheelClose(t *testing.T) {
	wheel := newExpiryWheel()
	b := NewReactionBroadcaster(wheel, 20*time.Millisecond, nil)

	b.Spawn("clap")
	wheel.Close()

	// The wheel is closed: the scheduled removal must never fire.
	time.Sleep(50 * time.Millisecond)
	if got := len(b.Active()); got != 1 {
		t.Fatalf("active = %d; expiry fired after Close", got)
	}
}
