package session

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// ErrNotInstructor is returned when an attendee invokes an instructor-only
// control. The UI hides the control; the state machine refuses anyway.
var ErrNotInstructor = errors.New("screen share requires the instructor role")

// MediaController keeps the declarative MediaControlState consistent with
// user actions, asynchronous hardware responses, and role policy. Every
// transition either completes or leaves the prior state untouched; a failed
// acquisition never leaves a half-open track behind.
type MediaController struct {
	mu    sync.Mutex
	state MediaControlState
	role  Role

	devices    DeviceProvider
	deviceList []Device

	audioTrack   Track
	videoTrack   Track
	displayTrack Track

	log      *zerolog.Logger
	onChange func(MediaControlState)
	onToast  func(string)
}

// NewMediaController builds a controller starting muted with video off.
func NewMediaController(role Role, devices DeviceProvider, logger *zerolog.Logger, onChange func(MediaControlState), onToast func(string)) *MediaController {
	return &MediaController{
		state: MediaControlState{
			Muted:             true,
			ConnectionQuality: QualityGood,
		},
		role:     role,
		devices:  devices,
		log:      logger,
		onChange: onChange,
		onToast:  onToast,
	}
}

// State returns a copy of the current media state.
func (c *MediaController) State() MediaControlState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ToggleMute flips the enabled flag on the existing audio track. The track
// is acquired once on first unmute and kept; muting never tears it down.
func (c *MediaController) ToggleMute(ctx context.Context) MediaControlState {
	c.mu.Lock()
	wantMuted := !c.state.Muted
	needTrack := !wantMuted && c.audioTrack == nil
	deviceID := c.state.SelectedAudioDeviceID
	c.mu.Unlock()

	if needTrack {
		track, err := c.devices.AcquireAudio(ctx, deviceID)
		if err != nil {
			c.log.Error().Err(err).Str("device_id", deviceID).Msg("audio acquisition failed")
			c.toast("Could not access your microphone")
			return c.State()
		}
		c.mu.Lock()
		if c.audioTrack != nil {
			// A concurrent unmute won the race; release the extra track.
			c.mu.Unlock()
			track.Stop()
			return c.State()
		}
		c.audioTrack = track
		c.mu.Unlock()
	}

	c.mu.Lock()
	c.state.Muted = wantMuted
	if c.audioTrack != nil {
		c.audioTrack.SetEnabled(!wantMuted)
	}
	state := c.state
	c.mu.Unlock()

	c.notify(state)
	return state
}

// ToggleVideo turns the camera on or off. Turning on acquires a fresh track
// from the selected device and may fail, in which case the state stays
// videoOff. Turning off stops the track and releases the hardware
// immediately.
func (c *MediaController) ToggleVideo(ctx context.Context) MediaControlState {
	c.mu.Lock()
	turningOn := !c.state.VideoOn
	deviceID := c.state.SelectedVideoDeviceID
	c.mu.Unlock()

	if turningOn {
		track, err := c.devices.AcquireVideo(ctx, deviceID)
		if err != nil {
			c.log.Error().Err(err).Str("device_id", deviceID).Msg("video acquisition failed")
			c.toast("Could not access your camera")
			return c.State()
		}

		c.mu.Lock()
		if c.state.VideoOn {
			// Lost a race with another toggle; do not leak the track.
			c.mu.Unlock()
			track.Stop()
			return c.State()
		}
		c.videoTrack = track
		c.state.VideoOn = true
		state := c.state
		c.mu.Unlock()

		c.notify(state)
		return state
	}

	c.mu.Lock()
	track := c.videoTrack
	c.videoTrack = nil
	c.state.VideoOn = false
	state := c.state
	c.mu.Unlock()

	if track != nil {
		track.Stop()
	}
	c.notify(state)
	return state
}

// ToggleScreenShare starts or stops screen sharing. Instructor-only; the
// platform's own stop control is observed through the track-ended callback
// so the state never goes stale.
func (c *MediaController) ToggleScreenShare(ctx context.Context) (MediaControlState, error) {
	if c.role != RoleInstructor {
		c.log.Warn().Str("role", string(c.role)).Msg("screen share refused")
		return c.State(), ErrNotInstructor
	}

	c.mu.Lock()
	starting := !c.state.ScreenSharing
	c.mu.Unlock()

	if !starting {
		c.stopScreenShare()
		return c.State(), nil
	}

	track, err := c.devices.AcquireDisplay(ctx)
	if err != nil {
		c.log.Error().Err(err).Msg("display acquisition failed")
		c.toast("Could not start screen sharing")
		return c.State(), nil
	}

	c.mu.Lock()
	if c.state.ScreenSharing {
		c.mu.Unlock()
		track.Stop()
		return c.State(), nil
	}
	c.displayTrack = track
	c.state.ScreenSharing = true
	state := c.state
	c.mu.Unlock()

	track.OnEnded(c.stopScreenShare)
	c.notify(state)
	return state, nil
}

func (c *MediaController) stopScreenShare() {
	c.mu.Lock()
	if !c.state.ScreenSharing {
		c.mu.Unlock()
		return
	}
	track := c.displayTrack
	c.displayTrack = nil
	c.state.ScreenSharing = false
	state := c.state
	c.mu.Unlock()

	if track != nil {
		track.Stop()
	}
	c.notify(state)
}

// SelectAudioDevice records the preferred microphone. Only the next
// acquisition uses it; a track already open keeps its original device.
func (c *MediaController) SelectAudioDevice(id string) MediaControlState {
	c.mu.Lock()
	c.state.SelectedAudioDeviceID = id
	state := c.state
	c.mu.Unlock()
	c.notify(state)
	return state
}

// SelectVideoDevice records the preferred camera for the next acquisition.
func (c *MediaController) SelectVideoDevice(id string) MediaControlState {
	c.mu.Lock()
	c.state.SelectedVideoDeviceID = id
	state := c.state
	c.mu.Unlock()
	c.notify(state)
	return state
}

// SetConnectionQuality updates the link-quality indicator.
func (c *MediaController) SetConnectionQuality(q ConnQuality) {
	c.mu.Lock()
	if c.state.ConnectionQuality == q {
		c.mu.Unlock()
		return
	}
	c.state.ConnectionQuality = q
	state := c.state
	c.mu.Unlock()
	c.notify(state)
}

// RefreshDevices re-enumerates capture devices. In-progress streams are not
// migrated, and a selected device that disappeared is left selected; it
// will simply fail at the next acquisition.
func (c *MediaController) RefreshDevices(ctx context.Context) ([]Device, error) {
	devices, err := c.devices.Enumerate(ctx)
	if err != nil {
		c.log.Error().Err(err).Msg("device enumeration failed")
		return nil, err
	}

	c.mu.Lock()
	c.deviceList = devices
	c.mu.Unlock()
	return devices, nil
}

// Devices returns the last enumerated device list.
func (c *MediaController) Devices() []Device {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Device, len(c.deviceList))
	copy(out, c.deviceList)
	return out
}

// ReleaseAll stops every open track. Called on session teardown.
func (c *MediaController) ReleaseAll() {
	c.mu.Lock()
	tracks := []Track{c.audioTrack, c.videoTrack, c.displayTrack}
	c.audioTrack, c.videoTrack, c.displayTrack = nil, nil, nil
	c.state.VideoOn = false
	c.state.ScreenSharing = false
	c.state.Muted = true
	c.mu.Unlock()

	for _, track := range tracks {
		if track != nil {
			track.Stop()
		}
	}
}

func (c *MediaController) notify(state MediaControlState) {
	if c.onChange != nil {
		c.onChange(state)
	}
}

func (c *MediaController) toast(msg string) {
	if c.onToast != nil {
		c.onToast(msg)
	}
}
