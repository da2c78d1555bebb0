package proto

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Frame types carried over the session connection.
const (
	TypeMessage   = "message"
	TypeTyping    = "typing"
	TypeReaction  = "reaction"
	TypeRateLimit = "rate_limit"
	TypeJoin      = "join"
	TypeLeave     = "leave"
	TypePing      = "ping"
	TypePong      = "pong"
)

var (
	// ErrUnknownType marks a frame whose type tag this build does not know.
	// Callers skip such frames silently so the protocol can evolve forward.
	ErrUnknownType = errors.New("unknown frame type")
	// ErrEmptyFrame marks a frame with no type tag at all.
	ErrEmptyFrame = errors.New("empty frame type")
)

// Frame is the wire representation of every session event. The type tag
// decides which fields are meaningful; unused fields stay at their zero
// value and are omitted on the wire.
type Frame struct {
	Type         string `json:"type"`
	ID           string `json:"id,omitempty"`
	UserID       string `json:"userId,omitempty"`
	UserName     string `json:"userName,omitempty"`
	Message      string `json:"message,omitempty"`
	Timestamp    int64  `json:"timestamp,omitempty"`
	IsInstructor bool   `json:"isInstructor,omitempty"`
	Role         string `json:"role,omitempty"`
	Muted        bool   `json:"muted,omitempty"`
	VideoOn      bool   `json:"videoOn,omitempty"`
	Kind         string `json:"kind,omitempty"`
	Remaining    *int   `json:"remaining,omitempty"`
}

var knownTypes = map[string]struct{}{
	TypeMessage:   {},
	TypeTyping:    {},
	TypeReaction:  {},
	TypeRateLimit: {},
	TypeJoin:      {},
	TypeLeave:     {},
	TypePing:      {},
	TypePong:      {},
}

// Encode serializes a frame for the wire.
func Encode(f Frame) ([]byte, error) {
	if f.Type == "" {
		return nil, ErrEmptyFrame
	}
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return data, nil
}

// Decode parses a wire frame. Malformed JSON is an error the caller logs
// and discards; an unrecognized type tag returns ErrUnknownType so the
// caller can ignore it without noise. Neither outcome is fatal to the
// connection.
func Decode(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	if f.Type == "" {
		return Frame{}, ErrEmptyFrame
	}
	if _, ok := knownTypes[f.Type]; !ok {
		return f, ErrUnknownType
	}
	return f, nil
}

// MessageFrame builds a chat message frame.
func MessageFrame(id, userID, userName, body string, sentAt int64, isInstructor bool) Frame {
	return Frame{
		Type:         TypeMessage,
		ID:           id,
		UserID:       userID,
		UserName:     userName,
		Message:      body,
		Timestamp:    sentAt,
		IsInstructor: isInstructor,
	}
}

// TypingFrame builds a typing indicator frame.
func TypingFrame(userID, userName string) Frame {
	return Frame{Type: TypeTyping, UserID: userID, UserName: userName}
}

// ReactionFrame builds a fire-and-forget reaction frame.
func ReactionFrame(id, userID, kind string) Frame {
	return Frame{Type: TypeReaction, ID: id, UserID: userID, Kind: kind}
}

// RateLimitFrame builds the server-authoritative budget reset frame.
func RateLimitFrame(remaining int) Frame {
	return Frame{Type: TypeRateLimit, Remaining: &remaining}
}

// JoinFrame builds a roster delta. Joins are last-write-wins, so the same
// frame announces both a new participant and a flag change for an existing
// one.
func JoinFrame(userID, userName, role string, muted, videoOn bool) Frame {
	return Frame{
		Type:     TypeJoin,
		UserID:   userID,
		UserName: userName,
		Role:     role,
		Muted:    muted,
		VideoOn:  videoOn,
	}
}

// LeaveFrame builds a roster removal.
func LeaveFrame(userID string) Frame {
	return Frame{Type: TypeLeave, UserID: userID}
}

// PingFrame and PongFrame are the application-level heartbeat pair.
func PingFrame() Frame { return Frame{Type: TypePing} }

// PongFrame answers a ping.
func PongFrame() Frame { return Frame{Type: TypePong} }
