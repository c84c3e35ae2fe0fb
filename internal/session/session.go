package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/hubenschmidt/vishing-trainer/internal/dispatch"
	"github.com/hubenschmidt/vishing-trainer/internal/metrics"
	"github.com/hubenschmidt/vishing-trainer/internal/wire"
)

// CredentialSource supplies the bearer token at connect time.
type CredentialSource interface {
	Token() string
}

// StaticToken is a fixed credential.
type StaticToken string

func (t StaticToken) Token() string { return string(t) }

// Params identify one simulation.
type Params struct {
	Scenario string
	Mode     wire.Mode
	// OnState runs on the session loop for every transition. It must not
	// block or call Close.
	OnState func(State)
}

// Session owns one simulation's socket. A single loop goroutine performs
// every state transition; dial results, timers, reader exits and Close
// reach it as events tagged with the connection generation they belong
// to, and events from an older generation are discarded.
type Session struct {
	id     string
	cfg    Config
	creds  CredentialSource
	params Params
	disp   *dispatch.Dispatcher
	log    *slog.Logger

	events   chan event
	loopDone chan struct{}
	done     chan struct{}
	doneOnce sync.Once

	// published for readers outside the loop
	mu      sync.RWMutex
	state   State
	conn    *websocket.Conn
	err     error
	started bool

	writeMu sync.Mutex
	gen     atomic.Uint64
	readers sync.WaitGroup

	// loop-owned
	token          string
	url            string
	attempts       int
	wasActive      bool
	countedActive  bool
	connectReply   chan error
	dialCancel     context.CancelFunc
	dialStart      time.Time
	connectTimer   *time.Timer
	settleTimer    *time.Timer
	reconnectTimer *time.Timer
}

type eventKind int

const (
	evDialed eventKind = iota
	evConnectTimeout
	evSettled
	evReaderExit
	evReconnect
	evClose
)

type event struct {
	kind  eventKind
	gen   uint64
	conn  *websocket.Conn
	err   error
	reply chan struct{}
}

// New creates an idle session. Subscribe handlers before calling Connect
// so the first frames are not missed.
func New(cfg Config, creds CredentialSource, p Params) *Session {
	id := uuid.NewString()
	return &Session{
		id:       id,
		cfg:      cfg.withDefaults(),
		creds:    creds,
		params:   p,
		disp:     dispatch.New(),
		log:      slog.With("session_id", id, "scenario", p.Scenario, "mode", string(p.Mode)),
		events:   make(chan event, 16),
		loopDone: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (s *Session) ID() string           { return s.id }
func (s *Session) Scenario() string     { return s.params.Scenario }
func (s *Session) Mode() wire.Mode      { return s.params.Mode }
func (s *Session) Done() <-chan struct{} { return s.done }

// Subscribe registers a frame handler. Handlers run on the socket reader
// goroutine in arrival order and must not call Close.
func (s *Session) Subscribe(name string, h dispatch.Handler) *dispatch.Subscription {
	return s.disp.Subscribe(name, h)
}

func (s *Session) Unsubscribe(sub *dispatch.Subscription) {
	s.disp.Unsubscribe(sub)
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Err returns why the session closed, or nil while open or after Close.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Connect dials the backend and completes the handshake. It returns once
// the session is active, or with the error that prevented it.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.started || s.state != StateIdle {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	token := ""
	if s.creds != nil {
		token = s.creds.Token()
	}
	if token == "" {
		s.mu.Unlock()
		s.log.Warn("connect without credential")
		s.finishUnstarted(ErrMissingCredential)
		return ErrMissingCredential
	}
	url, err := simulationURL(s.cfg.BaseURL, s.cfg.Handshake, token, s.params.Scenario, s.params.Mode)
	if err != nil {
		s.mu.Unlock()
		s.finishUnstarted(err)
		return err
	}
	s.started = true
	s.mu.Unlock()

	s.token = token
	s.url = url
	reply := make(chan error, 1)
	s.connectReply = reply

	metrics.SessionsTotal.Inc()
	go s.run()

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		s.Close()
		return ctx.Err()
	}
}

// SendText sends a user chat turn.
func (s *Session) SendText(text string) error {
	return s.send(websocket.TextMessage, []byte(text), "text")
}

// SendAudio sends one finished utterance as a binary frame.
func (s *Session) SendAudio(pcm []byte) error {
	return s.send(websocket.BinaryMessage, pcm, "audio")
}

func (s *Session) send(messageType int, data []byte, kind string) error {
	s.mu.RLock()
	state, conn := s.state, s.conn
	s.mu.RUnlock()
	if state != StateActive || conn == nil {
		metrics.SendsDropped.Inc()
		s.log.Warn("send while not connected", "kind", kind, "state", state.String())
		return ErrNotConnected
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := conn.WriteMessage(messageType, data); err != nil {
		metrics.ConnectionErrors.WithLabelValues("write").Inc()
		return fmt.Errorf("send %s: %w", kind, err)
	}
	metrics.FramesOut.WithLabelValues(kind).Inc()
	return nil
}

// Close tears the session down with a normal closure and waits for the
// loop and socket reader to exit. It never reconnects and is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		s.finishUnstarted(nil)
		return nil
	}
	s.mu.Unlock()

	reply := make(chan struct{})
	select {
	case s.events <- event{kind: evClose, reply: reply}:
		select {
		case <-reply:
		case <-s.loopDone:
		}
	case <-s.loopDone:
	}
	<-s.done
	return nil
}

func (s *Session) finishUnstarted(err error) {
	s.mu.Lock()
	s.state = StateClosed
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
	s.disp.Clear()
	s.doneOnce.Do(func() {
		close(s.loopDone)
		close(s.done)
	})
}

// post delivers an event from a timer or goroutine. Once the loop has
// exited, late connections are closed and everything else is dropped.
func (s *Session) post(ev event) {
	select {
	case s.events <- ev:
	case <-s.loopDone:
		if ev.conn != nil {
			_ = ev.conn.Close()
		}
	}
}

func (s *Session) run() {
	defer func() {
		close(s.loopDone)
		go func() {
			s.readers.Wait()
			s.doneOnce.Do(func() { close(s.done) })
		}()
	}()

	s.dial()
	for ev := range s.events {
		if s.handle(ev) {
			return
		}
	}
}

// handle applies one event; it reports true once the session is closed.
func (s *Session) handle(ev event) bool {
	if ev.kind == evClose {
		s.teardown()
		close(ev.reply)
		return true
	}

	if ev.gen != s.gen.Load() {
		if ev.conn != nil {
			_ = ev.conn.Close()
		}
		s.log.Debug("stale event dropped", "kind", int(ev.kind), "gen", ev.gen)
		return false
	}

	switch ev.kind {
	case evDialed:
		return s.onDialed(ev)
	case evConnectTimeout:
		if s.State() != StateConnecting {
			return false
		}
		s.cancelDial()
		s.gen.Add(1)
		metrics.ConnectionErrors.WithLabelValues("timeout").Inc()
		return s.dialFailed(ErrConnectTimeout)
	case evSettled:
		return s.onSettled()
	case evReaderExit:
		return s.onReaderExit(ev.err)
	case evReconnect:
		if s.State() != StateReconnecting {
			return false
		}
		metrics.Reconnects.Inc()
		s.log.Info("reconnecting", "attempt", s.attempts, "max", s.cfg.MaxReconnects)
		s.dial()
	}
	return false
}

func (s *Session) dial() {
	gen := s.gen.Add(1)
	s.setState(StateConnecting, nil)

	ctx, cancel := context.WithCancel(context.Background())
	s.dialCancel = cancel
	s.dialStart = time.Now()
	s.connectTimer = time.AfterFunc(s.cfg.ConnectTimeout, func() {
		s.post(event{kind: evConnectTimeout, gen: gen})
	})

	dialer, url := s.cfg.Dialer, s.url
	go func() {
		conn, resp, err := dialer.DialContext(ctx, url, nil)
		if err != nil && resp != nil {
			err = fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		s.post(event{kind: evDialed, gen: gen, conn: conn, err: err})
	}()
}

func (s *Session) onDialed(ev event) bool {
	stopTimer(&s.connectTimer)
	s.cancelDial()
	if s.State() != StateConnecting {
		if ev.conn != nil {
			_ = ev.conn.Close()
		}
		return false
	}
	if ev.err != nil {
		metrics.ConnectionErrors.WithLabelValues("dial").Inc()
		return s.dialFailed(ev.err)
	}

	metrics.ConnectDuration.Observe(time.Since(s.dialStart).Seconds())
	conn := ev.conn
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	s.setState(StateHandshaking, nil)

	s.readers.Add(1)
	go s.readLoop(ev.gen, conn)

	if s.cfg.Handshake == HandshakeQuery {
		s.activate()
		return false
	}
	gen := ev.gen
	s.settleTimer = time.AfterFunc(s.cfg.SettleDelay, func() {
		s.post(event{kind: evSettled, gen: gen})
	})
	return false
}

// onSettled sends the init frame. The session goes active without waiting
// for an acknowledgement.
func (s *Session) onSettled() bool {
	if s.State() != StateHandshaking {
		return false
	}
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()

	s.writeMu.Lock()
	err := conn.WriteJSON(wire.NewInit(s.token, s.params.Scenario, s.params.Mode))
	s.writeMu.Unlock()
	if err != nil {
		// the reader sees the broken socket and reports it
		s.log.Warn("send init frame", "error", err)
		metrics.ConnectionErrors.WithLabelValues("handshake").Inc()
		_ = conn.Close()
		return false
	}
	metrics.FramesOut.WithLabelValues("init").Inc()
	s.activate()
	return false
}

func (s *Session) activate() {
	s.wasActive = true
	s.setState(StateActive, nil)
	if !s.countedActive {
		s.countedActive = true
		metrics.SessionsActive.Inc()
	}
	s.log.Info("session active", "attempts", s.attempts)
	s.replyConnect(nil)
}

// dialFailed handles a dial error, connect timeout or pre-active socket
// loss. The initial attempt fails Connect; a reconnect attempt consumes
// one unit of the reconnect budget.
func (s *Session) dialFailed(err error) bool {
	s.dropConn()
	if !s.wasActive {
		s.log.Warn("connect failed", "error", err)
		if !errors.Is(err, ErrConnectTimeout) {
			err = fmt.Errorf("connect: %w", err)
		}
		s.finish(err)
		return true
	}
	s.log.Warn("reconnect attempt failed", "attempt", s.attempts, "error", err)
	return s.scheduleReconnect(err)
}

func (s *Session) onReaderExit(err error) bool {
	state := s.State()
	code := websocket.CloseAbnormalClosure
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		code = ce.Code
	}

	switch state {
	case StateHandshaking:
		stopTimer(&s.settleTimer)
		return s.dialFailed(fmt.Errorf("socket closed during handshake: %w", err))
	case StateActive:
		s.dropConn()
		if code == websocket.CloseNormalClosure {
			s.log.Info("closed by server")
			s.finish(ErrRemoteClosed)
			return true
		}
		metrics.ConnectionErrors.WithLabelValues("abnormal_close").Inc()
		s.log.Warn("abnormal closure", "code", code, "error", err)
		return s.scheduleReconnect(err)
	}
	return false
}

func (s *Session) scheduleReconnect(cause error) bool {
	if s.attempts >= s.cfg.MaxReconnects {
		s.finish(fmt.Errorf("%w after %d reconnect attempts: %v", ErrConnectionLost, s.attempts, cause))
		return true
	}
	s.attempts++
	gen := s.gen.Add(1)
	s.setState(StateReconnecting, nil)
	s.reconnectTimer = time.AfterFunc(s.cfg.ReconnectDelay, func() {
		s.post(event{kind: evReconnect, gen: gen})
	})
	return false
}

// teardown is the user-initiated close.
func (s *Session) teardown() {
	s.setState(StateClosing, nil)
	s.stopTimers()
	s.cancelDial()
	s.gen.Add(1)

	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn != nil {
		s.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		s.writeMu.Unlock()
	}
	s.dropConn()
	s.disp.Clear()
	s.attempts = 0
	s.setState(StateClosed, nil)
	s.replyConnect(ErrClosed)
	s.log.Info("session closed")
}

// finish ends the session with err.
func (s *Session) finish(err error) {
	s.stopTimers()
	s.cancelDial()
	s.gen.Add(1)
	s.dropConn()
	s.disp.Clear()
	s.setState(StateClosed, err)
	s.replyConnect(err)
	s.log.Info("session ended", "error", err)
}

func (s *Session) dropConn() {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
	if s.countedActive {
		s.countedActive = false
		metrics.SessionsActive.Dec()
	}
}

func (s *Session) replyConnect(err error) {
	if s.connectReply == nil {
		return
	}
	s.connectReply <- err
	s.connectReply = nil
}

func (s *Session) setState(next State, err error) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	if err != nil && s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
	if prev == next {
		return
	}
	s.log.Debug("state", "from", prev.String(), "to", next.String())
	if s.params.OnState != nil {
		s.params.OnState(next)
	}
}

func (s *Session) cancelDial() {
	if s.dialCancel != nil {
		s.dialCancel()
		s.dialCancel = nil
	}
}

func (s *Session) stopTimers() {
	stopTimer(&s.connectTimer)
	stopTimer(&s.settleTimer)
	stopTimer(&s.reconnectTimer)
}

func stopTimer(t **time.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

// readLoop pumps frames from one connection into the dispatcher until the
// socket fails, then reports the exit to the loop.
func (s *Session) readLoop(gen uint64, conn *websocket.Conn) {
	defer s.readers.Done()
	for {
		messageType, r, err := conn.NextReader()
		if err != nil {
			s.post(event{kind: evReaderExit, gen: gen, err: err})
			return
		}
		frame, err := wire.ReadFrame(messageType, r)
		if err != nil {
			metrics.ConnectionErrors.WithLabelValues("frame").Inc()
			s.log.Warn("inbound frame dropped", "error", err)
			continue
		}
		if s.gen.Load() != gen {
			return
		}
		s.disp.Dispatch(frame)
	}
}
