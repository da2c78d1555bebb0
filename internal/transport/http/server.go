package http

import (
	stdhttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/classwire/livesession/internal/config"
	"github.com/classwire/livesession/internal/hub"
)

// NewServer builds the HTTP server: health, the websocket entrance, and
// the attendance boundary.
func NewServer(h *hub.Hub, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	wsHandler := NewWSHandler(h, []byte(cfg.JWTSecret), logger)
	router.GET("/ws/:session", wsHandler.Handle)

	attendance := NewAttendanceHandler(logger)
	router.POST("/sessions/:session/attend", attendance.Join)
	router.PUT("/sessions/:session/attend", attendance.Heartbeat)
	router.GET("/sessions/:session/attend", attendance.Snapshot)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func requestLogger(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	}
}
