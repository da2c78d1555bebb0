package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/classwire/livesession/internal/hub"
	"github.com/classwire/livesession/internal/proto"
)

// WSHandler upgrades HTTP connections and bridges them to hub clients.
type WSHandler struct {
	hub    *hub.Hub
	secret []byte
	log    *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(h *hub.Hub, secret []byte, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{hub: h, secret: secret, log: logger}
}

// Handle is the gin route for GET /ws/:session.
func (h *WSHandler) Handle(c *gin.Context) {
	sessionID := c.Param("session")
	claims, err := ParseToken(h.secret, c.Query("token"))
	if err != nil {
		h.log.Warn().Err(err).Msg("ws auth rejected")
		c.AbortWithStatus(stdhttp.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	client := hub.NewClient(claims.UserID, claims.DisplayName, claims.Role)
	sess := h.hub.Session(sessionID)
	if sess == nil {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	sess.Register(client)
	defer sess.Unregister(client)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, sess, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("user_id", client.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, sess *hub.Session, client *hub.Client) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		frame, err := proto.Decode(data)
		if err != nil {
			// Malformed or unknown frames are discarded; the connection
			// stays up.
			if !errors.Is(err, proto.ErrUnknownType) {
				h.log.Warn().Err(err).Str("user_id", client.ID).Msg("discarding undecodable frame")
			}
			continue
		}
		sess.Deliver(client, frame)
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *hub.Client) error {
	for {
		select {
		case frame, ok := <-client.Frames:
			if !ok {
				return nil
			}
			data, err := proto.Encode(frame)
			if err != nil {
				h.log.Error().Err(err).Str("user_id", client.ID).Msg("encode outbound frame")
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				h.log.Warn().Err(err).Str("user_id", client.ID).Msg("write ws frame")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
