package call

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hubenschmidt/vishing-trainer/internal/audio"
	"github.com/hubenschmidt/vishing-trainer/internal/history"
	"github.com/hubenschmidt/vishing-trainer/internal/outcome"
	"github.com/hubenschmidt/vishing-trainer/internal/scenario"
	"github.com/hubenschmidt/vishing-trainer/internal/session"
	"github.com/hubenschmidt/vishing-trainer/internal/transcript"
	"github.com/hubenschmidt/vishing-trainer/internal/wire"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newBackend(t *testing.T, script func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	mux := http.NewServeMux()
	mux.HandleFunc(session.SimulationPath, func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var hello wire.Init
		if err := conn.ReadJSON(&hello); err != nil {
			return
		}
		script(conn)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// echoScript sends the banner, then answers every user turn.
func echoScript(conn *websocket.Conn) {
	_ = conn.WriteMessage(websocket.TextMessage, []byte("Start Scenario: loan_scam"))
	for {
		mt, _, err := conn.ReadMessage()
		if err != nil {
			return
		}
		reply := "Why do you ask?"
		if mt == websocket.BinaryMessage {
			reply = "I heard you."
		}
		if err := conn.WriteMessage(websocket.TextMessage, []byte(reply)); err != nil {
			return
		}
	}
}

type harness struct {
	ctrl  *Controller
	store *history.Store
	clock *clock
}

func newHarness(t *testing.T, srv *httptest.Server, token string, opts Options, dev audio.Device) *harness {
	t.Helper()
	store, err := history.Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	cfg := session.DefaultConfig(srv.URL)
	cfg.SettleDelay = 10 * time.Millisecond
	cfg.ReconnectDelay = 10 * time.Millisecond
	cfg.MaxReconnects = 1
	mgr := session.NewManager(cfg, session.StaticToken(token))
	t.Cleanup(mgr.Close)

	clk := newClock()
	ctrl := New(Deps{
		Sessions:  mgr,
		Device:    dev,
		Scenarios: scenario.Default(),
		History:   store,
		Now:       clk.now,
	}, opts)
	return &harness{ctrl: ctrl, store: store, clock: clk}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitEnded(t *testing.T, c *Controller) outcome.Result {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev := <-c.Events():
			if ev.Kind == EventEnded {
				return *ev.Result
			}
		case <-timeout:
			t.Fatal("call did not end")
		}
	}
}

func TestTextCallStoresResult(t *testing.T) {
	srv := newBackend(t, echoScript)
	h := newHarness(t, srv, "tok", Options{Scenario: "loan_scam", Mode: wire.ModeText}, audio.Device{})

	if err := h.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "banner", func() bool { return !h.ctrl.Waiting() })

	if err := h.ctrl.SendText("   "); err != nil {
		t.Fatalf("blank SendText: %v", err)
	}
	if err := h.ctrl.SendText("  who is this?  "); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	waitFor(t, "agent reply", func() bool { return len(h.ctrl.Transcript()) == 2 })

	h.clock.advance(150 * time.Second)
	r, err := h.ctrl.End(context.Background())
	if err != nil {
		t.Fatalf("End: %v", err)
	}

	if r.Outcome != outcome.Fail || r.Score != 0 || r.FromBackend {
		t.Fatalf("result=%+v, want heuristic fail", r)
	}
	if r.Duration != 150 || r.EndReason != outcome.ReasonUser {
		t.Fatalf("duration=%d reason=%s", r.Duration, r.EndReason)
	}
	if r.ScenarioName == "loan_scam" || r.ScenarioName == "" {
		t.Fatalf("scenario name=%q, want catalog name", r.ScenarioName)
	}
	want := []transcript.Entry{
		{Role: transcript.RoleUser, Text: "who is this?"},
		{Role: transcript.RoleAgent, Text: "Why do you ask?"},
	}
	for i, e := range r.Transcript {
		if e.Role != want[i].Role || e.Text != want[i].Text {
			t.Fatalf("transcript[%d]=%+v, want %+v", i, e, want[i])
		}
	}

	again, _ := h.ctrl.End(context.Background())
	if again.SessionID != r.SessionID {
		t.Fatal("second End returned a different result")
	}

	stored, err := h.store.ReadRecentResults(context.Background(), 5)
	if err != nil {
		t.Fatalf("ReadRecentResults: %v", err)
	}
	if len(stored) != 1 || stored[0].SessionID != r.SessionID || stored[0].Outcome != outcome.Fail {
		t.Fatalf("stored=%+v", stored)
	}
	if err := h.ctrl.SendText("still there?"); !errors.Is(err, session.ErrNotConnected) {
		t.Fatalf("send after end err=%v, want ErrNotConnected", err)
	}
}

func TestVerdictEndsCall(t *testing.T) {
	srv := newBackend(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"simulation_end","result":{"outcome":"win","success":true,"score":90,"feedback":"You hung up in time."}}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	h := newHarness(t, srv, "tok", Options{Scenario: "delivery_scam", Mode: wire.ModeText}, audio.Device{})
	if err := h.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	r := waitEnded(t, h.ctrl)
	if !r.FromBackend || r.Outcome != outcome.Win || r.Score != 90 || r.EndReason != outcome.ReasonVerdict {
		t.Fatalf("result=%+v", r)
	}
	if r.Feedback != "You hung up in time." {
		t.Fatalf("feedback=%q", r.Feedback)
	}
	if n, _ := h.store.Count(context.Background()); n != 1 {
		t.Fatalf("stored %d results, want 1", n)
	}
}

func TestConnectionLostForcesEnd(t *testing.T) {
	srv := newBackend(t, func(conn *websocket.Conn) {
		_ = conn.UnderlyingConn().Close()
	})
	h := newHarness(t, srv, "tok", Options{Scenario: "loan_scam", Mode: wire.ModeText}, audio.Device{})
	if err := h.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	r := waitEnded(t, h.ctrl)
	if r.EndReason != outcome.ReasonConnectionLost || r.Outcome != outcome.Confusion || r.Score != 50 {
		t.Fatalf("result=%+v, want connection_lost confusion", r)
	}
}

func TestStartWithoutCredential(t *testing.T) {
	srv := newBackend(t, echoScript)
	h := newHarness(t, srv, "", Options{Scenario: "loan_scam", Mode: wire.ModeText}, audio.Device{})

	if err := h.ctrl.Start(context.Background()); !errors.Is(err, session.ErrMissingCredential) {
		t.Fatalf("Start err=%v, want ErrMissingCredential", err)
	}
	if _, err := h.ctrl.End(context.Background()); !errors.Is(err, ErrEnded) {
		t.Fatalf("End err=%v, want ErrEnded", err)
	}
	if err := h.ctrl.Start(context.Background()); !errors.Is(err, ErrStarted) {
		t.Fatalf("second Start err=%v, want ErrStarted", err)
	}
}

func TestSendTextBeforeStart(t *testing.T) {
	srv := newBackend(t, echoScript)
	h := newHarness(t, srv, "tok", Options{Scenario: "loan_scam", Mode: wire.ModeText}, audio.Device{})
	if err := h.ctrl.SendText("hello"); !errors.Is(err, session.ErrNotConnected) {
		t.Fatalf("err=%v, want ErrNotConnected", err)
	}
	if len(h.ctrl.Transcript()) != 0 {
		t.Fatal("failed send was recorded")
	}
}

type stubCapture struct{ pcm []byte }

func (c stubCapture) Stop() ([]byte, error) { return c.pcm, nil }
func (c stubCapture) SampleRate() int       { return audio.WireSampleRate }

type stubRecorder struct{}

func (stubRecorder) StartCapture(context.Context) (audio.Capture, error) {
	pcm := make([]byte, 3200)
	for i := 0; i < len(pcm); i += 2 {
		pcm[i+1] = 0x20
	}
	return stubCapture{pcm: pcm}, nil
}

func TestVoiceUtteranceRecorded(t *testing.T) {
	srv := newBackend(t, echoScript)
	dev := audio.Device{Name: "stub", Recorder: stubRecorder{}}
	h := newHarness(t, srv, "tok", Options{Scenario: "loan_scam", Mode: wire.ModeVoice}, dev)
	if err := h.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	h.ctrl.PressDown(context.Background())
	h.ctrl.PressUp()
	waitFor(t, "agent reply", func() bool { return len(h.ctrl.Transcript()) == 2 })

	got := h.ctrl.Transcript()
	if got[0].Role != transcript.RoleUser || got[0].Text != VoiceEntryText {
		t.Fatalf("first entry=%+v", got[0])
	}
	if got[1].Text != "I heard you." {
		t.Fatalf("reply=%+v", got[1])
	}
	if _, err := h.ctrl.End(context.Background()); err != nil {
		t.Fatalf("End: %v", err)
	}
}
