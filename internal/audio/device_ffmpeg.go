package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
)

// FFmpegConfig configures the exec-based adapter: ffmpeg reads the
// microphone and writes s16le to stdout, ffplay reads WAV clips from stdin.
type FFmpegConfig struct {
	FFmpegPath  string
	FFplayPath  string
	InputFormat string // avfoundation, pulse, alsa, dshow
	InputDevice string
	SampleRate  int
	Volume      int
}

// DefaultFFmpegConfig returns the capture input for goos, or ok=false when
// the platform has no known default input.
func DefaultFFmpegConfig(goos string) (FFmpegConfig, bool) {
	cfg := FFmpegConfig{
		FFmpegPath: "ffmpeg",
		FFplayPath: "ffplay",
		SampleRate: WireSampleRate,
		Volume:     80,
	}
	switch goos {
	case "darwin":
		cfg.InputFormat, cfg.InputDevice = "avfoundation", ":0"
	case "linux":
		cfg.InputFormat, cfg.InputDevice = "pulse", "default"
	default:
		return cfg, false
	}
	return cfg, true
}

// FFmpegDevice builds a Device from cfg.
func FFmpegDevice(name string, cfg FFmpegConfig) Device {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = WireSampleRate
	}
	return Device{
		Name:     name,
		Recorder: &ffmpegRecorder{cfg: cfg},
		Player:   &ffplayPlayer{cfg: cfg},
	}
}

// PlatformDevices registers the ffmpeg adapter for every platform with a
// known default input, plus the null adapter.
func PlatformDevices() *DeviceRouter {
	devices := map[string]Device{"null": NullDevice()}
	for _, goos := range []string{"darwin", "linux"} {
		if cfg, ok := DefaultFFmpegConfig(goos); ok {
			devices[goos] = FFmpegDevice("ffmpeg-"+goos, cfg)
		}
	}
	return NewDeviceRouter(devices, "null")
}

// CurrentPlatform is the router key for this process.
func CurrentPlatform() string {
	return runtime.GOOS
}

type ffmpegRecorder struct {
	cfg FFmpegConfig
}

func (r *ffmpegRecorder) StartCapture(ctx context.Context) (Capture, error) {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", r.cfg.InputFormat,
		"-i", r.cfg.InputDevice,
		"-ac", "1",
		"-ar", strconv.Itoa(r.cfg.SampleRate),
		"-f", "s16le",
		"-",
	}
	cmd := exec.CommandContext(ctx, r.cfg.FFmpegPath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: ffmpeg stdout: %v", ErrAudioDevice, err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err = cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start ffmpeg: %v", ErrAudioDevice, err)
	}

	c := &ffmpegCapture{cmd: cmd, stderr: &stderr, rate: r.cfg.SampleRate, copied: make(chan struct{})}
	go func() {
		defer close(c.copied)
		_, c.copyErr = io.Copy(&c.buf, stdout)
	}()
	return c, nil
}

type ffmpegCapture struct {
	cmd     *exec.Cmd
	stderr  *bytes.Buffer
	rate    int
	buf     bytes.Buffer
	copyErr error
	copied  chan struct{}
	once    sync.Once
}

func (c *ffmpegCapture) SampleRate() int { return c.rate }

// Stop interrupts ffmpeg so it flushes, then returns everything it wrote.
func (c *ffmpegCapture) Stop() ([]byte, error) {
	var pcm []byte
	var err error
	c.once.Do(func() {
		if sigErr := c.cmd.Process.Signal(os.Interrupt); sigErr != nil {
			_ = c.cmd.Process.Kill()
		}
		<-c.copied
		_ = c.cmd.Wait()
		if c.copyErr != nil {
			err = fmt.Errorf("%w: read capture: %v", ErrAudioDevice, c.copyErr)
			return
		}
		if c.buf.Len() == 0 && c.stderr.Len() > 0 {
			err = fmt.Errorf("%w: ffmpeg: %s", ErrAudioDevice, strings.TrimSpace(c.stderr.String()))
			return
		}
		pcm = c.buf.Bytes()
	})
	return pcm, err
}

type ffplayPlayer struct {
	cfg FFmpegConfig
}

func (p *ffplayPlayer) NeedsContainer() bool { return true }

func (p *ffplayPlayer) Play(clip []byte, done func(error)) error {
	args := []string{
		"-nodisp",
		"-autoexit",
		"-hide_banner",
		"-loglevel", "error",
		"-volume", strconv.Itoa(p.cfg.Volume),
		"-i", "pipe:0",
	}
	cmd := exec.Command(p.cfg.FFplayPath, args...)
	cmd.Stdin = bytes.NewReader(clip)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: start ffplay: %v", ErrAudioDevice, err)
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			done(fmt.Errorf("%w: ffplay: %v %s", ErrAudioDevice, err, strings.TrimSpace(stderr.String())))
			return
		}
		done(nil)
	}()
	return nil
}
