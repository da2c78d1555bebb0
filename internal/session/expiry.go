package session

import (
	"container/heap"
	"sync"
	"time"
)

// expiryWheel runs all ephemeral-state expirations (typing indicators,
// reactions) off a single min-heap and one goroutine, instead of one timer
// object per entry. Close is deterministic: no callback runs after it
// returns.
type expiryWheel struct {
	mu      sync.Mutex
	heap    entryHeap
	wake    chan struct{}
	done    chan struct{}
	stopped chan struct{}
	seq     uint64
	closed  bool
}

type wheelEntry struct {
	at       time.Time
	fn       func()
	seq      uint64
	canceled bool
}

// Handle cancels a scheduled callback.
type Handle struct {
	wheel *expiryWheel
	entry *wheelEntry
}

// Cancel prevents the callback from firing. Safe to call after it fired.
func (h Handle) Cancel() {
	if h.wheel == nil {
		return
	}
	h.wheel.mu.Lock()
	h.entry.canceled = true
	h.wheel.mu.Unlock()
}

func newExpiryWheel() *expiryWheel {
	w := &expiryWheel{
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go w.run()
	return w
}

// Schedule registers fn to run after d. Returns a handle for cancellation.
func (w *expiryWheel) Schedule(d time.Duration, fn func()) Handle {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return Handle{}
	}
	w.seq++
	entry := &wheelEntry{at: time.Now().Add(d), fn: fn, seq: w.seq}
	heap.Push(&w.heap, entry)
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
	return Handle{wheel: w, entry: entry}
}

// Close cancels every pending entry and waits for the loop to exit.
func (w *expiryWheel) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.heap = nil
	w.mu.Unlock()

	close(w.done)
	<-w.stopped
}

func (w *expiryWheel) run() {
	defer close(w.stopped)

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		w.mu.Lock()
		var wait time.Duration
		if len(w.heap) == 0 {
			wait = time.Hour
		} else {
			wait = time.Until(w.heap[0].at)
		}
		w.mu.Unlock()

		if wait <= 0 {
			w.fireDue()
			continue
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-w.done:
			return
		case <-w.wake:
		case <-timer.C:
			w.fireDue()
		}
	}
}

func (w *expiryWheel) fireDue() {
	now := time.Now()
	for {
		w.mu.Lock()
		if w.closed || len(w.heap) == 0 || w.heap[0].at.After(now) {
			w.mu.Unlock()
			return
		}
		entry := heap.Pop(&w.heap).(*wheelEntry)
		canceled := entry.canceled
		w.mu.Unlock()

		if !canceled {
			entry.fn()
		}
	}
}

type entryHeap []*wheelEntry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].at.Equal(h[j].at) {
		return h[i].seq < h[j].seq
	}
	return h[i].at.Before(h[j].at)
}

func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) { *h = append(*h, x.(*wheelEntry)) }

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return entry
}
