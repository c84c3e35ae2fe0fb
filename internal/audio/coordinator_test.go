package audio

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type fakeCapture struct {
	pcm     []byte
	rate    int
	stopped int
}

func (c *fakeCapture) Stop() ([]byte, error) { c.stopped++; return c.pcm, nil }
func (c *fakeCapture) SampleRate() int       { return c.rate }

type fakeRecorder struct {
	next    *fakeCapture
	err     error
	started int
}

func (r *fakeRecorder) StartCapture(context.Context) (Capture, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.started++
	return r.next, nil
}

type fakePlayer struct {
	mu        sync.Mutex
	container bool
	clips     [][]byte
	done      []func(error)
}

func (p *fakePlayer) Play(clip []byte, done func(error)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clips = append(p.clips, clip)
	p.done = append(p.done, done)
	return nil
}

func (p *fakePlayer) NeedsContainer() bool { return p.container }

// finish signals end-of-stream for the i-th clip.
func (p *fakePlayer) finish(i int) {
	p.mu.Lock()
	done := p.done[i]
	p.mu.Unlock()
	done(nil)
}

func (p *fakePlayer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clips)
}

type fakeSender struct {
	sent [][]byte
	err  error
}

func (s *fakeSender) SendAudio(pcm []byte) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, pcm)
	return nil
}

func newTestCoordinator(textMode bool) (*Coordinator, *fakeRecorder, *fakePlayer, *fakeSender) {
	rec := &fakeRecorder{next: &fakeCapture{pcm: []byte{1, 2, 3, 4}, rate: WireSampleRate}}
	player := &fakePlayer{}
	sender := &fakeSender{}
	c := NewCoordinator(CoordinatorConfig{
		Recorder: rec,
		Player:   player,
		Sender:   sender,
		TextMode: textMode,
	})
	return c, rec, player, sender
}

func assertState(t *testing.T, c *Coordinator, want State, wantMuted bool) {
	t.Helper()
	got, muted := c.State()
	if got != want || muted != wantMuted {
		t.Fatalf("state=%v muted=%v, want %v muted=%v", got, muted, want, wantMuted)
	}
}

func TestPressToTalkSendsCapture(t *testing.T) {
	c, rec, _, sender := newTestCoordinator(false)
	var utterances int
	c.cfg.OnUtterance = func([]byte) { utterances++ }

	c.PressDown(context.Background())
	assertState(t, c, StateRecording, false)
	c.PressUp()
	assertState(t, c, StateIdle, false)

	if rec.next.stopped != 1 {
		t.Fatalf("capture stopped %d times, want 1", rec.next.stopped)
	}
	if len(sender.sent) != 1 || len(sender.sent[0]) != 4 {
		t.Fatalf("sent=%v, want one 4-byte utterance", sender.sent)
	}
	if utterances != 1 {
		t.Fatalf("utterances=%d, want 1", utterances)
	}
}

func TestTextModeNeverSends(t *testing.T) {
	c, _, _, sender := newTestCoordinator(true)
	c.PressDown(context.Background())
	c.PressUp()
	if len(sender.sent) != 0 {
		t.Fatalf("text mode sent %d utterances", len(sender.sent))
	}
}

func TestPressUpWithoutPressDownIsNoop(t *testing.T) {
	c, rec, _, sender := newTestCoordinator(false)
	c.PressUp()
	assertState(t, c, StateIdle, false)
	if rec.next.stopped != 0 || len(sender.sent) != 0 {
		t.Fatal("release without press touched the capture")
	}
}

func TestMuteWhileRecordingStopsCapture(t *testing.T) {
	c, rec, _, _ := newTestCoordinator(false)
	c.PressDown(context.Background())

	if !c.ToggleMute() {
		t.Fatal("ToggleMute returned false")
	}
	assertState(t, c, StateIdle, true)
	if rec.next.stopped != 1 {
		t.Fatalf("capture stopped %d times, want 1", rec.next.stopped)
	}

	c.PressDown(context.Background())
	assertState(t, c, StateIdle, true)
	if rec.started != 1 {
		t.Fatalf("muted press started capture")
	}

	c.ToggleMute()
	c.PressDown(context.Background())
	assertState(t, c, StateRecording, false)
}

func TestPlayingBlocksCapture(t *testing.T) {
	c, rec, player, _ := newTestCoordinator(false)
	c.Play([]byte{9, 9})
	assertState(t, c, StatePlaying, false)

	c.PressDown(context.Background())
	assertState(t, c, StatePlaying, false)
	if rec.started != 0 {
		t.Fatal("capture started during playback")
	}

	player.finish(0)
	assertState(t, c, StateIdle, false)
}

func TestPlaybackQueueDrains(t *testing.T) {
	c, _, player, _ := newTestCoordinator(false)
	c.Play([]byte{1, 1})
	c.Play([]byte{2, 2})
	c.Play([]byte{3, 3})
	if n := player.count(); n != 1 {
		t.Fatalf("started %d clips, want 1", n)
	}

	player.finish(0)
	player.finish(1)
	assertState(t, c, StatePlaying, false)
	player.finish(2)
	assertState(t, c, StateIdle, false)

	for i, want := range []byte{1, 2, 3} {
		if player.clips[i][0] != want {
			t.Fatalf("clip %d=%v, want order preserved", i, player.clips[i])
		}
	}
}

func TestClipQueuedWhileRecordingPlaysAfterRelease(t *testing.T) {
	c, _, player, _ := newTestCoordinator(false)
	c.PressDown(context.Background())
	c.Play([]byte{7, 7})
	if player.count() != 0 {
		t.Fatal("played while recording")
	}
	c.PressUp()
	if player.count() != 1 {
		t.Fatalf("queued clip not played after release")
	}
	assertState(t, c, StatePlaying, false)
}

func TestPlayWrapsRawPCMWhenContainerNeeded(t *testing.T) {
	c, _, player, _ := newTestCoordinator(false)
	player.container = true

	c.Play([]byte{1, 2, 3, 4})
	if !IsWAV(player.clips[0]) || len(player.clips[0]) != WAVHeaderSize+4 {
		t.Fatalf("clip not wrapped: %d bytes", len(player.clips[0]))
	}
	player.finish(0)

	wrapped := EncodeWireWAV([]byte{5, 6})
	c.Play(wrapped)
	if len(player.clips[1]) != len(wrapped) {
		t.Fatalf("RIFF clip wrapped twice")
	}
}

func TestStalePlaybackDoneIgnored(t *testing.T) {
	c, _, player, _ := newTestCoordinator(false)
	c.Play([]byte{1, 1})
	player.finish(0)
	c.Play([]byte{2, 2})

	player.finish(0)
	assertState(t, c, StatePlaying, false)
	player.finish(1)
	assertState(t, c, StateIdle, false)
}

func TestCaptureFailureIsNotice(t *testing.T) {
	c, rec, _, _ := newTestCoordinator(false)
	rec.err = errors.New("no microphone")
	var notices []error
	c.cfg.OnNotice = func(err error) { notices = append(notices, err) }

	c.PressDown(context.Background())
	assertState(t, c, StateIdle, false)
	if len(notices) != 1 || !errors.Is(notices[0], ErrAudioDevice) {
		t.Fatalf("notices=%v, want one ErrAudioDevice", notices)
	}
}

func TestSilenceGateDropsQuietCapture(t *testing.T) {
	c, rec, _, sender := newTestCoordinator(false)
	c.cfg.SilenceGateDB = -50
	rec.next.pcm = make([]byte, 640)

	c.PressDown(context.Background())
	c.PressUp()
	if len(sender.sent) != 0 {
		t.Fatal("silent capture sent through gate")
	}
}

func TestCloseDiscardsCapture(t *testing.T) {
	c, rec, player, sender := newTestCoordinator(false)
	c.PressDown(context.Background())
	c.Close()

	if rec.next.stopped != 1 || len(sender.sent) != 0 {
		t.Fatalf("stopped=%d sent=%d, want 1 and 0", rec.next.stopped, len(sender.sent))
	}
	c.Play([]byte{1, 1})
	if player.count() != 0 {
		t.Fatal("played after close")
	}
}
