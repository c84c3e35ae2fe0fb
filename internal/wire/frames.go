package wire

import (
	"fmt"
	"net/url"
)

// Kind identifies the payload carried by an inbound Frame.
type Kind int

const (
	KindText Kind = iota
	KindAudio
	KindBanner
	KindServerError
	KindVerdict
)

func (k Kind) String() string {
	switch k {
	case KindAudio:
		return "audio"
	case KindBanner:
		return "banner"
	case KindServerError:
		return "server_error"
	case KindVerdict:
		return "verdict"
	default:
		return "text"
	}
}

// Frame is one decoded inbound message. Exactly one payload field is set,
// selected by Kind.
type Frame struct {
	Kind    Kind
	Text    string   // KindText, KindBanner
	Audio   []byte   // KindAudio
	Error   string   // KindServerError
	Verdict *Verdict // KindVerdict
}

// Verdict is the backend's end-of-simulation judgement.
type Verdict struct {
	Outcome  string `json:"outcome"`
	Success  bool   `json:"success"`
	Score    *int   `json:"score,omitempty"`
	Feedback string `json:"feedback,omitempty"`
}

// Mode selects how the user speaks during a simulation.
type Mode string

const (
	ModeVoice Mode = "voice"
	ModeText  Mode = "text"
)

// ParseMode accepts "voice" or "text".
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeVoice, ModeText:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown mode %q (want voice or text)", s)
}

// Init is the first frame the client sends once the socket is open.
type Init struct {
	Type     string `json:"type"`
	Token    string `json:"token"`
	Scenario string `json:"scenario"`
	Mode     Mode   `json:"mode"`
}

// NewInit builds the handshake frame.
func NewInit(token, scenario string, mode Mode) Init {
	return Init{Type: "init", Token: token, Scenario: scenario, Mode: mode}
}

// QueryParams carries the handshake in the URL for backends that do not
// accept an init frame.
func QueryParams(token, scenario string, mode Mode) url.Values {
	v := url.Values{}
	v.Set("token", token)
	v.Set("scenario", scenario)
	v.Set("mode", string(mode))
	return v
}
