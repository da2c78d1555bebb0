package session

import "time"

// Role of a session participant.
type Role string

const (
	RoleInstructor Role = "instructor"
	RoleAttendee   Role = "attendee"
)

// Participant is one roster entry. Owned by the PresenceTracker and mutated
// only through presence events.
type Participant struct {
	ID          string
	DisplayName string
	Role        Role
	Muted       bool
	VideoOn     bool
	Active      bool
}

// ChatMessage is immutable once constructed. Messages append in receipt
// order; sender-claimed SentAt is informational only (client clocks skew).
type ChatMessage struct {
	ID           string
	SenderID     string
	SenderName   string
	Body         string
	SentAt       time.Time
	IsInstructor bool
}

// TypingIndicator is an ephemeral per-user entry with a fixed TTL from the
// last typing event.
type TypingIndicator struct {
	UserID      string
	DisplayName string
	ExpiresAt   time.Time
}

// Reaction is a fire-and-forget visual event, auto-removed after a fixed
// display window.
type Reaction struct {
	ID        string
	Kind      string
	SpawnedAt time.Time
}

// ConnState describes the lifecycle of the session connection.
type ConnState int

const (
	StateUninstantiated ConnState = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
	// StateDisconnected is the degraded flavor of StateConnecting: the
	// retry budget has been exhausted but reconnection keeps going in the
	// background.
	StateDisconnected
)

func (s ConnState) String() string {
	switch s {
	case StateUninstantiated:
		return "uninstantiated"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// ConnQuality is the coarse link-quality indicator surfaced to the UI.
type ConnQuality string

const (
	QualityGood   ConnQuality = "good"
	QualityMedium ConnQuality = "medium"
	QualityPoor   ConnQuality = "poor"
)

// MediaControlState is the declarative local device state. Mutated only
// through MediaController transitions.
type MediaControlState struct {
	Muted                 bool
	VideoOn               bool
	ScreenSharing         bool
	SelectedAudioDeviceID string
	SelectedVideoDeviceID string
	ConnectionQuality     ConnQuality
}
