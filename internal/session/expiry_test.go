package session

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestWheelFiresInDeadlineOrder(t *testing.T) {
	wheel := newExpiryWheel()
	defer wheel.Close()

	fired := make(chan string, 4)
	wheel.Schedule(60*time.Millisecond, func() { fired <- "late" })
	wheel.Schedule(20*time.Millisecond, func() { fired <- "early" })

	first := <-fired
	second := <-fired
	if first != "early" || second != "late" {
		t.Fatalf("fired order = %s, %s", first, second)
	}
}

func TestWheelCancelPreventsFiring(t *testing.T) {
	wheel := newExpiryWheel()
	defer wheel.Close()

	var count atomic.Int32
	handle := wheel.Schedule(20*time.Millisecond, func() { count.Add(1) })
	handle.Cancel()

	time.Sleep(60 * time.Millisecond)
	if count.Load() != 0 {
		t.Fatal("cancelled entry fired")
	}
}

func TestWheelCloseIsDeterministic(t *testing.T) {
	wheel := newExpiryWheel()

	var count atomic.Int32
	for i := 0; i < 20; i++ {
		wheel.Schedule(15*time.Millisecond, func() { count.Add(1) })
	}
	wheel.Close()
	after := count.Load()

	time.Sleep(50 * time.Millisecond)
	if count.Load() != after {
		t.Fatal("callback fired after Close returned")
	}

	// Scheduling on a closed wheel is a silent no-op.
	wheel.Schedule(time.Millisecond, func() { count.Add(1) })
	time.Sleep(20 * time.Millisecond)
	if count.Load() != after {
		t.Fatal("closed wheel ran a new callback")
	}
}
