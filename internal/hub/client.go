package hub

import "github.com/classwire/livesession/internal/proto"

// Client is a connected participant as seen by the fan-out loop. Frames is
// the outbound channel drained by the transport's write loop; a client that
// stops draining loses frames rather than stalling the session.
type Client struct {
	ID     string
	Name   string
	Role   string
	Frames chan proto.Frame
}

// NewClient constructs a client with a buffered outbound channel.
func NewClient(id, name, role string) *Client {
	if name == "" {
		name = id
	}
	return &Client{
		ID:     id,
		Name:   name,
		Role:   role,
		Frames: make(chan proto.Frame, 32),
	}
}

func (c *Client) trySend(frame proto.Frame) {
	select {
	case c.Frames <- frame:
	default:
		// Drop if slow consumer.
	}
}
