package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// AttendanceRecorder reports session attendance to the external attendance
// service: one join on entry, then watch-time heartbeats on a fixed
// interval. Everything is best-effort; failures are logged and never
// retried or surfaced.
type AttendanceRecorder struct {
	baseURL   string
	sessionID string
	userID    string
	interval  time.Duration
	client    *http.Client
	log       *zerolog.Logger

	mu        sync.Mutex
	watchTime time.Duration
	stop      chan struct{}
	stopped   chan struct{}
	running   bool
}

// NewAttendanceRecorder builds a recorder for one participant in one
// session.
func NewAttendanceRecorder(baseURL, sessionID, userID string, interval time.Duration, logger *zerolog.Logger) *AttendanceRecorder {
	if interval <= 0 {
		interval = time.Minute
	}
	return &AttendanceRecorder{
		baseURL:   baseURL,
		sessionID: sessionID,
		userID:    userID,
		interval:  interval,
		client:    &http.Client{Timeout: 10 * time.Second},
		log:       logger,
	}
}

type attendJoinBody struct {
	UserID   string `json:"userId"`
	JoinedAt int64  `json:"joinedAt"`
}

type attendHeartbeatBody struct {
	UserID    string `json:"userId"`
	WatchTime int64  `json:"watchTime"`
}

// Start records the join and begins the heartbeat loop.
func (r *AttendanceRecorder) Start(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.stop = make(chan struct{})
	r.stopped = make(chan struct{})
	r.mu.Unlock()

	r.post(ctx, http.MethodPost, attendJoinBody{
		UserID:   r.userID,
		JoinedAt: time.Now().Unix(),
	})

	go r.heartbeatLoop()
}

// Stop halts the heartbeat loop after flushing one final update.
func (r *AttendanceRecorder) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	close(r.stop)
	stopped := r.stopped
	r.mu.Unlock()

	<-stopped
}

func (r *AttendanceRecorder) heartbeatLoop() {
	defer close(r.stopped)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.mu.Lock()
			r.watchTime += r.interval
			watched := r.watchTime
			r.mu.Unlock()
			r.sendHeartbeat(watched)
		case <-r.stop:
			r.mu.Lock()
			watched := r.watchTime
			r.mu.Unlock()
			r.sendHeartbeat(watched)
			return
		}
	}
}

func (r *AttendanceRecorder) sendHeartbeat(watched time.Duration) {
	r.post(context.Background(), http.MethodPut, attendHeartbeatBody{
		UserID:    r.userID,
		WatchTime: int64(watched.Seconds()),
	})
}

func (r *AttendanceRecorder) post(ctx context.Context, method string, body any) {
	if r.baseURL == "" {
		return
	}

	payload, err := json.Marshal(body)
	if err != nil {
		r.log.Warn().Err(err).Msg("attendance payload marshal failed")
		return
	}

	url := fmt.Sprintf("%s/sessions/%s/attend", r.baseURL, r.sessionID)
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
	if err != nil {
		r.log.Warn().Err(err).Msg("attendance request build failed")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		r.log.Warn().Err(err).Str("method", method).Msg("attendance call failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		r.log.Warn().Int("status", resp.StatusCode).Str("method", method).Msg("attendance call rejected")
	}
}
