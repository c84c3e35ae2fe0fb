package audio

import "context"

// NullDevice records silence and "plays" clips instantly. It backs text mode
// and hosts without audio tooling.
func NullDevice() Device {
	return Device{Name: "null", Recorder: nullRecorder{}, Player: nullPlayer{}}
}

type nullRecorder struct{}

func (nullRecorder) StartCapture(context.Context) (Capture, error) {
	return nullCapture{}, nil
}

type nullCapture struct{}

func (nullCapture) Stop() ([]byte, error) { return nil, nil }
func (nullCapture) SampleRate() int       { return WireSampleRate }

type nullPlayer struct{}

func (nullPlayer) Play(_ []byte, done func(error)) error {
	go done(nil)
	return nil
}

func (nullPlayer) NeedsContainer() bool { return false }
