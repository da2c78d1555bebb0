package session

import "context"

// Key names of the session shortcuts.
const (
	KeySpace  = " "
	KeyVideo  = "v"
	KeyShare  = "s"
	KeyChat   = "c"
	KeyPeople = "p"
	KeyEscape = "Escape"
)

// Panel identifiers published on TopicPanel when a panel shortcut fires.
const (
	PanelChat         = "chat"
	PanelParticipants = "participants"
)

// KeyEvent is one keystroke as seen by the global handler. TextInputFocused
// reports whether an input or textarea had focus when the key went down.
type KeyEvent struct {
	Key              string
	TextInputFocused bool
}

// HandleKey dispatches the global keyboard shortcuts. Keystrokes landing in
// a text field are ignored wholesale; otherwise typing "v" in chat would
// toggle the camera.
func (s *Session) HandleKey(ctx context.Context, ev KeyEvent) {
	if ev.TextInputFocused {
		return
	}

	switch ev.Key {
	case KeySpace:
		s.ToggleMute(ctx)
	case KeyVideo:
		s.ToggleVideo(ctx)
	case KeyShare:
		s.ToggleScreenShare(ctx)
	case KeyChat:
		s.bus.Publish(TopicPanel, PanelChat)
	case KeyPeople:
		s.bus.Publish(TopicPanel, PanelParticipants)
	case KeyEscape:
		s.bus.Publish(TopicLeave, s.local.ID)
	}
}
