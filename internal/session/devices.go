package session

import "context"

// DeviceKind distinguishes enumerated devices.
type DeviceKind string

const (
	DeviceAudioInput DeviceKind = "audioinput"
	DeviceVideoInput DeviceKind = "videoinput"
)

// Device is one enumerated capture device.
type Device struct {
	ID    string
	Label string
	Kind  DeviceKind
}

// Track is a live media track. SetEnabled flips transmission without
// releasing the device; Stop releases it immediately. OnEnded observes an
// externally triggered stop, e.g. the platform's native "stop sharing"
// control.
type Track interface {
	SetEnabled(enabled bool)
	Stop()
	OnEnded(fn func())
}

// DeviceProvider is the hardware boundary. Acquisitions block until the
// platform grants or denies the device; failures (permission denied, device
// busy) come back as plain errors.
type DeviceProvider interface {
	AcquireAudio(ctx context.Context, deviceID string) (Track, error)
	AcquireVideo(ctx context.Context, deviceID string) (Track, error)
	AcquireDisplay(ctx context.Context) (Track, error)
	Enumerate(ctx context.Context) ([]Device, error)
}
