package audio

import (
	"context"
	"errors"
)

// ErrAudioDevice wraps microphone and speaker failures. They are reported to
// the UI as notices; the call continues.
var ErrAudioDevice = errors.New("audio device error")

// Recorder opens the platform microphone.
type Recorder interface {
	StartCapture(ctx context.Context) (Capture, error)
}

// Capture is one in-flight recording.
type Capture interface {
	// Stop ends the recording and returns mono PCM16 little-endian samples.
	Stop() ([]byte, error)
	// SampleRate is the rate of the PCM returned by Stop.
	SampleRate() int
}

// Player plays one clip at a time. Play returns once playback has started;
// done is invoked exactly once, at end of stream or on failure.
type Player interface {
	Play(clip []byte, done func(error)) error
	// NeedsContainer reports whether raw LINEAR16 must be wrapped in WAV first.
	NeedsContainer() bool
}

// Device pairs a platform's recorder and player.
type Device struct {
	Name     string
	Recorder Recorder
	Player   Player
}
