package session

import (
	"testing"
	"time"
)

func newTestPresence(t *testing.T, ttl time.Duration) *PresenceTracker {
	t.Helper()
	wheel := newExpiryWheel()
	t.Cleanup(wheel.Close)
	return NewPresenceTracker(wheel, ttl, nopLogger(), nil)
}

func TestJoinIsIdempotentLastWriteWins(t *testing.T) {
	tracker := newTestPresence(t, time.Second)

	tracker.Join(Participant{ID: "u1", DisplayName: "alice", Role: RoleAttendee})
	tracker.Join(Participant{ID: "u1", DisplayName: "alice", Role: RoleAttendee, Muted: true})

	roster := tracker.Roster()
	if len(roster) != 1 {
		t.Fatalf("roster length = %d, want 1", len(roster))
	}
	if !roster[0].Muted {
		t.Fatal("second join's fields must win")
	}
}

func TestLeaveUnknownIsNoOp(t *testing.T) {
	tracker := newTestPresence(t, time.Second)

	tracker.Leave("ghost")
	if len(tracker.Roster()) != 0 {
		t.Fatal("roster should stay empty")
	}
}

func TestLeaveRemovesParticipantAndTyping(t *testing.T) {
	tracker := newTestPresence(t, time.Hour)

	tracker.Join(Participant{ID: "u1", DisplayName: "alice"})
	tracker.SetTyping("u1", "alice")
	tracker.Leave("u1")

	if len(tracker.Roster()) != 0 {
		t.Fatal("participant should be gone")
	}
	if len(tracker.ActiveTypists()) != 0 {
		t.Fatal("typing indicator should be gone with the participant")
	}
}

func TestTypingTTLExpires(t *testing.T) {
	ttl := 40 * time.Millisecond
	tracker := newTestPresence(t, ttl)

	tracker.SetTyping("u1", "alice")

	typists := tracker.ActiveTypists()
	if len(typists) != 1 || typists[0] != "alice" {
		t.Fatalf("typists = %v, want [alice]", typists)
	}

	waitFor(t, func() bool { return len(tracker.ActiveTypists()) == 0 }, "typing indicator never expired")
}

func TestTypingRefreshResetsTimer(t *testing.T) {
	ttl := 60 * time.Millisecond
	tracker := newTestPresence(t, ttl)

	tracker.SetTyping("u1", "alice")
	time.Sleep(40 * time.Millisecond)
	tracker.SetTyping("u1", "alice")
	time.Sleep(40 * time.Millisecond)

	// 80ms after the first event but only 40ms after the refresh: the
	// indicator must still be live.
	if typists := tracker.ActiveTypists(); len(typists) != 1 {
		t.Fatalf("refresh should reset, not stack: %v", typists)
	}

	waitFor(t, func() bool { return len(tracker.ActiveTypists()) == 0 }, "typing indicator never expired after refresh")
}

func TestAtMostOneIndicatorPerUser(t *testing.T) {
	tracker := newTestPresence(t, time.Hour)

	tracker.SetTyping("u1", "alice")
	tracker.SetTyping("u1", "alice")
	tracker.SetTyping("u2", "bob")

	typists := tracker.ActiveTypists()
	if len(typists) != 2 {
		t.Fatalf("typists = %v, want exactly [alice bob]", typists)
	}
}
