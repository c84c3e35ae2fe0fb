package call

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hubenschmidt/vishing-trainer/internal/audio"
	"github.com/hubenschmidt/vishing-trainer/internal/debrief"
	"github.com/hubenschmidt/vishing-trainer/internal/metrics"
	"github.com/hubenschmidt/vishing-trainer/internal/outcome"
	"github.com/hubenschmidt/vishing-trainer/internal/scenario"
	"github.com/hubenschmidt/vishing-trainer/internal/session"
	"github.com/hubenschmidt/vishing-trainer/internal/transcript"
	"github.com/hubenschmidt/vishing-trainer/internal/wire"
)

var (
	ErrStarted = errors.New("call already started")
	ErrEnded   = errors.New("call ended")
)

// VoiceEntryText stands in for a spoken user turn in the transcript.
const VoiceEntryText = "[voice message]"

// ResultStore persists finished calls. history.Store satisfies it.
type ResultStore interface {
	AppendResult(ctx context.Context, r outcome.Result) error
}

// Deps are the collaborators a call runs against. Sessions is required;
// everything else is optional.
type Deps struct {
	Sessions  *session.Manager
	Device    audio.Device
	Scenarios *scenario.Catalog
	History   ResultStore
	Coach     *debrief.Coach
	Policy    outcome.Policy
	// SilenceGateDB is passed to the audio coordinator.
	SilenceGateDB float64
	Now           func() time.Time
}

// Options pick the scenario and mode of one call.
type Options struct {
	Scenario string
	Mode     wire.Mode
}

// Controller runs one simulated call from dial to stored result.
type Controller struct {
	deps Deps
	opts Options
	sc   scenario.Scenario

	log    *transcript.Log
	events chan Event

	mu      sync.Mutex
	sess    *session.Session
	coord   *audio.Coordinator
	started bool
	startAt time.Time
	verdict *wire.Verdict

	waiting atomic.Bool
	stop    chan struct{}
	wg      sync.WaitGroup

	endOnce sync.Once
	result  outcome.Result
	endErr  error
}

// New prepares a call. Unknown scenario ids are allowed; the backend owns
// the script and the id doubles as the display name.
func New(deps Deps, opts Options) *Controller {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if opts.Mode == "" {
		opts.Mode = wire.ModeVoice
	}
	sc := scenario.Scenario{ID: opts.Scenario, Name: opts.Scenario}
	if deps.Scenarios != nil {
		if found, err := deps.Scenarios.Lookup(opts.Scenario); err == nil {
			sc = found
		} else {
			slog.Warn("scenario not in catalog", "scenario", opts.Scenario)
		}
	}
	c := &Controller{
		deps:   deps,
		opts:   opts,
		sc:     sc,
		log:    transcript.New(deps.Now),
		events: make(chan Event, 128),
		stop:   make(chan struct{}),
	}
	c.waiting.Store(true)
	return c
}

// Events delivers UI notifications. Events are dropped if the reader falls
// behind; the channel is never closed.
func (c *Controller) Events() <-chan Event { return c.events }

func (c *Controller) Scenario() scenario.Scenario { return c.sc }

// Waiting reports whether no frame has arrived from the agent yet.
func (c *Controller) Waiting() bool { return c.waiting.Load() }

func (c *Controller) Transcript() []transcript.Entry { return c.log.Snapshot() }

// Elapsed is the time since the session became active.
func (c *Controller) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.startAt.IsZero() {
		return 0
	}
	return c.deps.Now().Sub(c.startAt)
}

// Start opens the session and blocks until it is active.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrStarted
	}
	select {
	case <-c.stop:
		c.mu.Unlock()
		return ErrEnded
	default:
	}
	c.started = true
	c.mu.Unlock()

	sess := c.deps.Sessions.Open(session.Params{
		Scenario: c.opts.Scenario,
		Mode:     c.opts.Mode,
		OnState: func(st session.State) {
			c.emit(Event{Kind: EventConnection, Connection: st})
		},
	})
	coord := audio.NewCoordinator(audio.CoordinatorConfig{
		Recorder:      c.deps.Device.Recorder,
		Player:        c.deps.Device.Player,
		Sender:        sess,
		TextMode:      c.opts.Mode == wire.ModeText,
		SilenceGateDB: c.deps.SilenceGateDB,
		OnState: func(st audio.State, muted bool) {
			c.emit(Event{Kind: EventAudio, AudioState: st, Muted: muted})
		},
		OnNotice: func(err error) {
			c.emit(Event{Kind: EventNotice, Err: err})
		},
		OnUtterance: func([]byte) {
			c.appendEntry(transcript.RoleUser, VoiceEntryText)
		},
	})

	c.mu.Lock()
	c.sess = sess
	c.coord = coord
	c.mu.Unlock()

	sess.Subscribe("call", c.handleFrame)
	c.wg.Add(2)
	go c.tick()
	go c.watch(sess)

	if err := sess.Connect(ctx); err != nil {
		coord.Close()
		c.endOnce.Do(func() {
			close(c.stop)
			c.endErr = ErrEnded
		})
		c.wg.Wait()
		return fmt.Errorf("start call: %w", err)
	}

	c.mu.Lock()
	if c.startAt.IsZero() {
		c.startAt = c.deps.Now()
	}
	c.mu.Unlock()
	slog.Info("call started", "session_id", sess.ID(), "scenario", c.opts.Scenario, "mode", string(c.opts.Mode))
	return nil
}

// SendText sends a typed turn. Blank input is ignored.
func (c *Controller) SendText(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	sess := c.session()
	if sess == nil {
		return session.ErrNotConnected
	}
	if err := sess.SendText(text); err != nil {
		return err
	}
	c.appendEntry(transcript.RoleUser, text)
	return nil
}

func (c *Controller) PressDown(ctx context.Context) {
	if coord := c.coordinator(); coord != nil {
		coord.PressDown(ctx)
	}
}

func (c *Controller) PressUp() {
	if coord := c.coordinator(); coord != nil {
		coord.PressUp()
	}
}

// ToggleMute returns the new mute flag.
func (c *Controller) ToggleMute() bool {
	if coord := c.coordinator(); coord != nil {
		return coord.ToggleMute()
	}
	return false
}

// End finishes the call on the user's request. See Finish.
func (c *Controller) End(ctx context.Context) (outcome.Result, error) {
	return c.Finish(ctx, outcome.ReasonUser)
}

// Finish ends the call once, resolves and stores the result. Later calls
// return the first result.
func (c *Controller) Finish(ctx context.Context, reason string) (outcome.Result, error) {
	c.endOnce.Do(func() {
		c.result, c.endErr = c.finish(ctx, reason)
	})
	return c.result, c.endErr
}

func (c *Controller) finish(ctx context.Context, reason string) (outcome.Result, error) {
	close(c.stop)
	elapsed := c.Elapsed()

	c.mu.Lock()
	sess, coord := c.sess, c.coord
	c.mu.Unlock()
	if coord != nil {
		coord.Close()
	}
	if sess == nil {
		return outcome.Result{}, ErrEnded
	}
	_ = sess.Close()
	c.wg.Wait()

	c.mu.Lock()
	verdict := c.verdict
	c.mu.Unlock()

	r := outcome.Resolve(outcome.Input{
		SessionID:    sess.ID(),
		ScenarioID:   c.sc.ID,
		ScenarioName: c.sc.Name,
		Mode:         c.opts.Mode,
		Transcript:   c.log.Snapshot(),
		Elapsed:      elapsed,
		EndedAt:      c.deps.Now(),
		EndReason:    reason,
		Verdict:      verdict,
		Policy:       c.deps.Policy,
	})

	source := "heuristic"
	if r.FromBackend {
		source = "backend"
	}
	metrics.Outcomes.WithLabelValues(string(r.Outcome), source).Inc()
	metrics.CallDuration.Observe(elapsed.Seconds())
	slog.Info("call ended",
		"session_id", r.SessionID,
		"reason", reason,
		"outcome", string(r.Outcome),
		"score", r.Score,
		"duration_s", r.Duration,
		"from_backend", r.FromBackend,
	)

	if c.deps.Coach.Enabled() {
		text, err := c.deps.Coach.Debrief(ctx, r, c.sc)
		if err != nil {
			slog.Warn("debrief failed", "session_id", r.SessionID, "error", err)
		} else {
			r.Debrief = text
		}
	}

	var err error
	if c.deps.History != nil {
		if err = c.deps.History.AppendResult(ctx, r); err != nil {
			slog.Error("store result", "session_id", r.SessionID, "error", err)
			err = fmt.Errorf("store result: %w", err)
		}
	}

	res := r
	c.emit(Event{Kind: EventEnded, Result: &res})
	return r, err
}

func (c *Controller) handleFrame(f wire.Frame) {
	if c.waiting.CompareAndSwap(true, false) {
		c.emit(Event{Kind: EventWaiting, Waiting: false})
	}
	switch f.Kind {
	case wire.KindBanner:
		slog.Debug("scenario banner", "text", f.Text)
	case wire.KindServerError:
		c.appendEntry(transcript.RoleSystem, f.Error)
	case wire.KindText:
		c.appendEntry(transcript.RoleAgent, f.Text)
	case wire.KindAudio:
		if coord := c.coordinator(); coord != nil {
			coord.Play(f.Audio)
		}
	case wire.KindVerdict:
		c.mu.Lock()
		c.verdict = f.Verdict
		c.mu.Unlock()
		if f.Verdict != nil && f.Verdict.Feedback != "" {
			c.appendEntry(transcript.RoleSystem, f.Verdict.Feedback)
		}
		// Handlers run on the socket reader and must not close the session.
		go func() { _, _ = c.Finish(context.Background(), outcome.ReasonVerdict) }()
	}
}

func (c *Controller) tick() {
	defer c.wg.Done()
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			c.emit(Event{Kind: EventTick, Elapsed: c.Elapsed()})
		case <-c.stop:
			return
		}
	}
}

// watch ends the call when the session closes on its own.
func (c *Controller) watch(sess *session.Session) {
	defer c.wg.Done()
	select {
	case <-sess.Done():
	case <-c.stop:
		return
	}

	err := sess.Err()
	var reason string
	switch {
	case errors.Is(err, session.ErrConnectionLost):
		reason = outcome.ReasonConnectionLost
	case errors.Is(err, session.ErrRemoteClosed):
		reason = outcome.ReasonRemoteClosed
	default:
		return
	}
	c.emit(Event{Kind: EventNotice, Err: err})
	go func() { _, _ = c.Finish(context.Background(), reason) }()
}

func (c *Controller) appendEntry(role transcript.Role, text string) {
	e := c.log.Append(role, text)
	c.emit(Event{Kind: EventTranscript, Entry: e})
}

func (c *Controller) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
		slog.Debug("call event dropped", "kind", ev.Kind.String())
	}
}

func (c *Controller) session() *session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}

func (c *Controller) coordinator() *audio.Coordinator {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.coord
}
