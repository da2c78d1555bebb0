package http

import (
	stdhttp "net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// AttendanceHandler is the thin boundary the client-side recorder talks to.
// It tallies join times and watch time in memory; durable storage belongs
// to the reporting subsystem, not the live coordinator.
type AttendanceHandler struct {
	mu      sync.Mutex
	records map[string]map[string]*attendanceRecord // session id -> user id
	log     *zerolog.Logger
}

type attendanceRecord struct {
	JoinedAt  int64 `json:"joinedAt"`
	WatchTime int64 `json:"watchTime"`
}

type attendRequest struct {
	UserID    string `json:"userId" binding:"required"`
	JoinedAt  int64  `json:"joinedAt"`
	WatchTime int64  `json:"watchTime"`
}

// NewAttendanceHandler builds an empty tally.
func NewAttendanceHandler(logger *zerolog.Logger) *AttendanceHandler {
	return &AttendanceHandler{
		records: make(map[string]map[string]*attendanceRecord),
		log:     logger,
	}
}

// Join handles POST /sessions/:session/attend.
func (h *AttendanceHandler) Join(c *gin.Context) {
	var req attendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(stdhttp.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sessionID := c.Param("session")
	h.mu.Lock()
	users, ok := h.records[sessionID]
	if !ok {
		users = make(map[string]*attendanceRecord)
		h.records[sessionID] = users
	}
	users[req.UserID] = &attendanceRecord{JoinedAt: req.JoinedAt}
	h.mu.Unlock()

	h.log.Debug().Str("session_id", sessionID).Str("user_id", req.UserID).Msg("attendance join recorded")
	c.Status(stdhttp.StatusNoContent)
}

// Heartbeat handles PUT /sessions/:session/attend.
func (h *AttendanceHandler) Heartbeat(c *gin.Context) {
	var req attendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(stdhttp.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sessionID := c.Param("session")
	h.mu.Lock()
	users, ok := h.records[sessionID]
	if !ok {
		users = make(map[string]*attendanceRecord)
		h.records[sessionID] = users
	}
	rec, ok := users[req.UserID]
	if !ok {
		rec = &attendanceRecord{}
		users[req.UserID] = rec
	}
	rec.WatchTime = req.WatchTime
	h.mu.Unlock()

	c.Status(stdhttp.StatusNoContent)
}

// Snapshot returns the tally for one session, for the reporting side to
// scrape.
func (h *AttendanceHandler) Snapshot(c *gin.Context) {
	sessionID := c.Param("session")

	h.mu.Lock()
	out := make(map[string]attendanceRecord, len(h.records[sessionID]))
	for userID, rec := range h.records[sessionID] {
		out[userID] = *rec
	}
	h.mu.Unlock()

	c.JSON(stdhttp.StatusOK, out)
}
