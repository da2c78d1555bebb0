package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type attendCall struct {
	method string
	path   string
	body   map[string]any
}

func TestAttendanceJoinAndHeartbeat(t *testing.T) {
	var mu sync.Mutex
	var calls []attendCall

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		calls = append(calls, attendCall{method: r.Method, path: r.URL.Path, body: body})
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	r := NewAttendanceRecorder(ts.URL, "s1", "u1", 30*time.Millisecond, nopLogger())
	r.Start(context.Background())

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(calls) >= 2
	}, "join and at least one heartbeat expected")

	r.Stop()

	mu.Lock()
	defer mu.Unlock()

	join := calls[0]
	if join.method != http.MethodPost || join.path != "/sessions/s1/attend" {
		t.Fatalf("unexpected join call: %+v", join)
	}
	if join.body["userId"] != "u1" {
		t.Fatalf("join body = %+v", join.body)
	}
	if _, ok := join.body["joinedAt"]; !ok {
		t.Fatal("join must carry joinedAt")
	}

	hb := calls[1]
	if hb.method != http.MethodPut || hb.path != "/sessions/s1/attend" {
		t.Fatalf("unexpected heartbeat call: %+v", hb)
	}
	if _, ok := hb.body["watchTime"]; !ok {
		t.Fatal("heartbeat must carry watchTime")
	}
}

func TestAttendanceFailuresAreSilent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	r := NewAttendanceRecorder(ts.URL, "s1", "u1", 20*time.Millisecond, nopLogger())

	// Start, tick a few times against a failing endpoint, stop. Nothing
	// blocks and nothing panics.
	r.Start(context.Background())
	time.Sleep(70 * time.Millisecond)
	r.Stop()
}

func TestAttendanceStopIsIdempotent(t *testing.T) {
	r := NewAttendanceRecorder("", "s1", "u1", time.Minute, nopLogger())
	r.Start(context.Background())
	r.Stop()
	r.Stop()
}
