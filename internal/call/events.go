package call

import (
	"time"

	"github.com/hubenschmidt/vishing-trainer/internal/audio"
	"github.com/hubenschmidt/vishing-trainer/internal/outcome"
	"github.com/hubenschmidt/vishing-trainer/internal/session"
	"github.com/hubenschmidt/vishing-trainer/internal/transcript"
)

// EventKind tags what changed on the call screen.
type EventKind int

const (
	EventTranscript EventKind = iota
	EventWaiting
	EventTick
	EventAudio
	EventNotice
	EventConnection
	EventEnded
)

func (k EventKind) String() string {
	switch k {
	case EventTranscript:
		return "transcript"
	case EventWaiting:
		return "waiting"
	case EventTick:
		return "tick"
	case EventAudio:
		return "audio"
	case EventNotice:
		return "notice"
	case EventConnection:
		return "connection"
	case EventEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Event is one notification for the UI. Only the fields for Kind are set.
type Event struct {
	Kind       EventKind
	Entry      transcript.Entry
	Waiting    bool
	Elapsed    time.Duration
	AudioState audio.State
	Muted      bool
	Connection session.State
	Err        error
	Result     *outcome.Result
}
