package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hubenschmidt/vishing-trainer/internal/metrics"
)

// State is the coordinator's microphone/speaker state. Mute is tracked
// separately.
type State int

const (
	StateIdle State = iota
	StateRecording
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateRecording:
		return "recording"
	case StatePlaying:
		return "playing"
	default:
		return "idle"
	}
}

// Sender transmits a finished utterance. The session's SendAudio satisfies it.
type Sender interface {
	SendAudio(pcm []byte) error
}

// CoordinatorConfig wires a coordinator to a device and a sender.
type CoordinatorConfig struct {
	Recorder Recorder
	Player   Player
	Sender   Sender

	// TextMode disables transmission of captured audio; typed input is used instead.
	TextMode bool

	// SilenceGateDB drops utterances quieter than this RMS level. Zero disables the gate.
	SilenceGateDB float64

	OnState     func(state State, muted bool)
	OnNotice    func(err error)
	OnUtterance func(pcm []byte)
}

// Coordinator runs press-to-talk capture and agent playback so that the
// microphone and speaker are never active together.
type Coordinator struct {
	cfg CoordinatorConfig

	mu      sync.Mutex
	state   State
	muted   bool
	closed  bool
	capture Capture
	queue   [][]byte
	playGen uint64
}

// NewCoordinator creates an idle, unmuted coordinator.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	if cfg.Recorder == nil || cfg.Player == nil {
		d := NullDevice()
		if cfg.Recorder == nil {
			cfg.Recorder = d.Recorder
		}
		if cfg.Player == nil {
			cfg.Player = d.Player
		}
	}
	return &Coordinator{cfg: cfg}
}

// State returns the current state and mute flag.
func (c *Coordinator) State() (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.muted
}

// PressDown starts a capture. It is a no-op while muted, playing, already
// recording, or closed.
func (c *Coordinator) PressDown(ctx context.Context) {
	c.mu.Lock()
	if c.closed || c.muted || c.state != StateIdle {
		c.mu.Unlock()
		return
	}
	capture, err := c.cfg.Recorder.StartCapture(ctx)
	if err != nil {
		c.mu.Unlock()
		c.notice("capture", err)
		return
	}
	c.capture = capture
	c.state = StateRecording
	c.mu.Unlock()

	slog.Debug("capture started")
	c.emitState()
}

// PressUp stops the active capture and sends it. Releasing outside the
// button goes through here as well. Without a matching PressDown it does nothing.
func (c *Coordinator) PressUp() {
	c.stopCapture(true)
}

// ToggleMute flips the mute flag and returns the new value. Muting while
// recording stops the capture immediately.
func (c *Coordinator) ToggleMute() bool {
	c.mu.Lock()
	c.muted = !c.muted
	muted := c.muted
	recording := c.state == StateRecording
	c.mu.Unlock()

	if muted && recording {
		c.stopCapture(true)
		return muted
	}
	c.emitState()
	return muted
}

// Play queues an agent audio clip. Playback starts at once when idle; clips
// that arrive while playing or recording wait their turn.
func (c *Coordinator) Play(clip []byte) {
	if len(clip) == 0 {
		slog.Warn("empty audio clip ignored")
		return
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.queue = append(c.queue, clip)
	if c.state != StateIdle {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.playNext()
}

// Close stops any capture without sending it and drops queued clips.
// Playback completions arriving afterwards are ignored.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.queue = nil
	capture := c.capture
	c.capture = nil
	c.state = StateIdle
	c.playGen++
	c.mu.Unlock()

	if capture != nil {
		if _, err := capture.Stop(); err != nil {
			slog.Warn("discard capture on close", "error", err)
		}
	}
}

func (c *Coordinator) stopCapture(send bool) {
	c.mu.Lock()
	if c.state != StateRecording || c.capture == nil {
		c.mu.Unlock()
		return
	}
	capture := c.capture
	c.capture = nil
	c.state = StateIdle
	c.mu.Unlock()
	c.emitState()

	pcm, err := capture.Stop()
	if err != nil {
		c.notice("capture", err)
	} else if send {
		c.deliver(pcm, capture.SampleRate())
	}
	c.playNext()
}

func (c *Coordinator) deliver(pcm []byte, rate int) {
	metrics.AudioCaptures.Inc()
	if c.cfg.TextMode || c.cfg.Sender == nil {
		return
	}
	if len(pcm) == 0 {
		slog.Debug("empty capture not sent")
		return
	}
	pcm = ToWireRate(pcm, rate)
	if c.cfg.SilenceGateDB != 0 {
		if level := LevelDB(pcm); level < c.cfg.SilenceGateDB {
			slog.Info("silent capture not sent", "level_db", level, "gate_db", c.cfg.SilenceGateDB)
			return
		}
	}
	if err := c.cfg.Sender.SendAudio(pcm); err != nil {
		slog.Warn("send capture", "bytes", len(pcm), "error", err)
		return
	}
	if c.cfg.OnUtterance != nil {
		c.cfg.OnUtterance(pcm)
	}
}

// playNext starts the head of the queue if the coordinator is idle.
func (c *Coordinator) playNext() {
	for {
		c.mu.Lock()
		if c.closed || c.state != StateIdle || len(c.queue) == 0 {
			c.mu.Unlock()
			return
		}
		clip := c.queue[0]
		c.queue = c.queue[1:]
		c.state = StatePlaying
		c.playGen++
		gen := c.playGen
		c.mu.Unlock()
		c.emitState()

		if c.cfg.Player.NeedsContainer() && !IsWAV(clip) {
			clip = EncodeWireWAV(clip)
		}
		metrics.AudioPlaybacks.Inc()
		err := c.cfg.Player.Play(clip, func(err error) { c.playbackDone(gen, err) })
		if err == nil {
			return
		}

		c.notice("playback", err)
		c.mu.Lock()
		if c.playGen == gen {
			c.state = StateIdle
		}
		c.mu.Unlock()
		c.emitState()
	}
}

// playbackDone is the player's end-of-stream signal; it is the only way out
// of StatePlaying.
func (c *Coordinator) playbackDone(gen uint64, err error) {
	c.mu.Lock()
	if c.playGen != gen || c.state != StatePlaying {
		c.mu.Unlock()
		return
	}
	c.state = StateIdle
	c.mu.Unlock()

	if err != nil {
		c.notice("playback", err)
	}
	c.emitState()
	c.playNext()
}

func (c *Coordinator) notice(op string, err error) {
	metrics.AudioDeviceErrors.WithLabelValues(op).Inc()
	if !errors.Is(err, ErrAudioDevice) {
		err = fmt.Errorf("%w: %s: %v", ErrAudioDevice, op, err)
	}
	slog.Warn("audio device", "op", op, "error", err)
	if c.cfg.OnNotice != nil {
		c.cfg.OnNotice(err)
	}
}

func (c *Coordinator) emitState() {
	if c.cfg.OnState == nil {
		return
	}
	state, muted := c.State()
	c.cfg.OnState(state, muted)
}
