package session

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type fakeTrack struct {
	mu      sync.Mutex
	enabled bool
	stopped bool
	onEnded func()
}

func (t *fakeTrack) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}

func (t *fakeTrack) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

func (t *fakeTrack) OnEnded(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onEnded = fn
}

func (t *fakeTrack) endExternally() {
	t.mu.Lock()
	fn := t.onEnded
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (t *fakeTrack) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (t *fakeTrack) isEnabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

type fakeDevices struct {
	mu           sync.Mutex
	audioErr     error
	videoErr     error
	displayErr   error
	audioTracks  []*fakeTrack
	videoTracks  []*fakeTrack
	displays     []*fakeTrack
	acquisitions int
	devices      []Device
}

func (d *fakeDevices) AcquireAudio(ctx context.Context, deviceID string) (Track, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.acquisitions++
	if d.audioErr != nil {
		return nil, d.audioErr
	}
	track := &fakeTrack{enabled: true}
	d.audioTracks = append(d.audioTracks, track)
	return track, nil
}

func (d *fakeDevices) AcquireVideo(ctx context.Context, deviceID string) (Track, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.acquisitions++
	if d.videoErr != nil {
		return nil, d.videoErr
	}
	track := &fakeTrack{enabled: true}
	d.videoTracks = append(d.videoTracks, track)
	return track, nil
}

func (d *fakeDevices) AcquireDisplay(ctx context.Context) (Track, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.acquisitions++
	if d.displayErr != nil {
		return nil, d.displayErr
	}
	track := &fakeTrack{enabled: true}
	d.displays = append(d.displays, track)
	return track, nil
}

func (d *fakeDevices) Enumerate(ctx context.Context) ([]Device, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.devices, nil
}

func (d *fakeDevices) acquisitionCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.acquisitions
}

func TestMuteFlipsEnabledWithoutTeardown(t *testing.T) {
	devices := &fakeDevices{}
	c := NewMediaController(RoleAttendee, devices, nopLogger(), nil, nil)
	ctx := context.Background()

	state := c.ToggleMute(ctx)
	if state.Muted {
		t.Fatal("first toggle should unmute")
	}
	if len(devices.audioTracks) != 1 {
		t.Fatalf("audio tracks = %d, want 1", len(devices.audioTracks))
	}

	state = c.ToggleMute(ctx)
	if !state.Muted {
		t.Fatal("second toggle should mute")
	}
	track := devices.audioTracks[0]
	if track.isStopped() {
		t.Fatal("muting must not tear the audio track down")
	}
	if track.isEnabled() {
		t.Fatal("muting must disable the track")
	}

	c.ToggleMute(ctx)
	if len(devices.audioTracks) != 1 {
		t.Fatal("unmute must reuse the existing track, not acquire a new one")
	}
}

func TestVideoAcquisitionFailureLeavesStateUnchanged(t *testing.T) {
	devices := &fakeDevices{videoErr: errors.New("permission denied")}
	toasts := make(chan string, 4)
	c := NewMediaController(RoleAttendee, devices, nopLogger(), nil, func(msg string) { toasts <- msg })

	state := c.ToggleVideo(context.Background())
	if state.VideoOn {
		t.Fatal("failed acquisition must leave videoOn false")
	}
	if len(devices.videoTracks) != 0 {
		t.Fatal("no track must dangle after the failure")
	}
	select {
	case <-toasts:
	default:
		t.Fatal("failure must surface a toast")
	}
}

func TestVideoOffReleasesHardwareImmediately(t *testing.T) {
	devices := &fakeDevices{}
	c := NewMediaController(RoleAttendee, devices, nopLogger(), nil, nil)
	ctx := context.Background()

	if state := c.ToggleVideo(ctx); !state.VideoOn {
		t.Fatal("video should turn on")
	}
	if state := c.ToggleVideo(ctx); state.VideoOn {
		t.Fatal("video should turn off")
	}
	if !devices.videoTracks[0].isStopped() {
		t.Fatal("turning video off must stop the track immediately")
	}
}

func TestScreenShareRequiresInstructor(t *testing.T) {
	devices := &fakeDevices{}
	c := NewMediaController(RoleAttendee, devices, nopLogger(), nil, nil)

	state, err := c.ToggleScreenShare(context.Background())
	if !errors.Is(err, ErrNotInstructor) {
		t.Fatalf("expected ErrNotInstructor, got %v", err)
	}
	if state.ScreenSharing {
		t.Fatal("screenSharing must stay false for attendees")
	}
	if devices.acquisitionCount() != 0 {
		t.Fatal("no device acquisition may happen for attendees")
	}
}

func TestScreenShareExternalStopObserved(t *testing.T) {
	devices := &fakeDevices{}
	c := NewMediaController(RoleInstructor, devices, nopLogger(), nil, nil)

	state, err := c.ToggleScreenShare(context.Background())
	if err != nil || !state.ScreenSharing {
		t.Fatalf("instructor share should start: state=%+v err=%v", state, err)
	}

	// The platform's native "stop sharing" control fires track-ended.
	devices.displays[0].endExternally()

	if c.State().ScreenSharing {
		t.Fatal("external stop must drive the state back to off")
	}
	if !devices.displays[0].isStopped() {
		t.Fatal("the display track must be released")
	}
}

func TestDeviceSelectionAffectsNextAcquisitionOnly(t *testing.T) {
	devices := &fakeDevices{}
	c := NewMediaController(RoleAttendee, devices, nopLogger(), nil, nil)
	ctx := context.Background()

	c.ToggleVideo(ctx)
	first := devices.videoTracks[0]

	c.SelectVideoDevice("cam-2")
	if first.isStopped() {
		t.Fatal("changing the selection must not touch the open stream")
	}

	c.ToggleVideo(ctx) // off
	c.ToggleVideo(ctx) // on again, now from cam-2
	if len(devices.videoTracks) != 2 {
		t.Fatalf("video tracks = %d, want 2", len(devices.videoTracks))
	}
	if got := c.State().SelectedVideoDeviceID; got != "cam-2" {
		t.Fatalf("selected device = %q, want cam-2", got)
	}
}

func TestRefreshDevicesDoesNotMigrateStreams(t *testing.T) {
	devices := &fakeDevices{devices: []Device{{ID: "cam-1", Kind: DeviceVideoInput}}}
	c := NewMediaController(RoleAttendee, devices, nopLogger(), nil, nil)
	ctx := context.Background()

	c.SelectVideoDevice("cam-1")
	c.ToggleVideo(ctx)

	// cam-1 disappears; the selection and the open stream stay as they are.
	devices.mu.Lock()
	devices.devices = []Device{{ID: "cam-9", Kind: DeviceVideoInput}}
	devices.mu.Unlock()

	if _, err := c.RefreshDevices(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if devices.videoTracks[0].isStopped() {
		t.Fatal("refresh must not stop the open stream")
	}
	if got := c.State().SelectedVideoDeviceID; got != "cam-1" {
		t.Fatalf("selection changed to %q on refresh", got)
	}
}

func TestReleaseAllStopsEverything(t *testing.T) {
	devices := &fakeDevices{}
	c := NewMediaController(RoleInstructor, devices, nopLogger(), nil, nil)
	ctx := context.Background()

	c.ToggleMute(ctx)
	c.ToggleVideo(ctx)
	c.ToggleScreenShare(ctx)

	c.ReleaseAll()

	for _, track := range []*fakeTrack{devices.audioTracks[0], devices.videoTracks[0], devices.displays[0]} {
		if !track.isStopped() {
			t.Fatal("ReleaseAll must stop every open track")
		}
	}
	state := c.State()
	if state.VideoOn || state.ScreenSharing || !state.Muted {
		t.Fatalf("state after release: %+v", state)
	}
}
