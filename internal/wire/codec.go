package wire

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"

	"github.com/gorilla/websocket"
)

// MaxFrameBytes caps a single inbound message.
const MaxFrameBytes = 8 << 20

var ErrFrameTooLarge = errors.New("frame exceeds size limit")

// bannerPrefixes mark the backend's "scenario started" line. The second
// spelling is what some deployed backends actually send.
var bannerPrefixes = []string{"Start Scenario", "Start Secnario"}

// ReadFrame materializes one message from r and decodes it.
func ReadFrame(messageType int, r io.Reader) (Frame, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxFrameBytes+1))
	if err != nil {
		return Frame{}, fmt.Errorf("read frame: %w", err)
	}
	if len(data) > MaxFrameBytes {
		return Frame{}, ErrFrameTooLarge
	}
	return Decode(messageType, data), nil
}

// Decode classifies a raw websocket message. Binary messages are audio;
// text that is not a recognized control message is agent text.
func Decode(messageType int, data []byte) Frame {
	if messageType == websocket.BinaryMessage {
		return Frame{Kind: KindAudio, Audio: data}
	}
	return DecodeText(string(data))
}

// envelope holds the fields the text classifier looks at.
type envelope struct {
	Type   string          `json:"type"`
	Error  json.RawMessage `json:"error"`
	Audio  string          `json:"audio"`
	Result json.RawMessage `json:"result"`
}

// DecodeText classifies a text message. Malformed JSON is plain text.
func DecodeText(text string) Frame {
	for _, p := range bannerPrefixes {
		if strings.HasPrefix(text, p) {
			return Frame{Kind: KindBanner, Text: text}
		}
	}

	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") {
		return Frame{Kind: KindText, Text: text}
	}
	var env envelope
	if err := json.Unmarshal([]byte(trimmed), &env); err != nil {
		return Frame{Kind: KindText, Text: text}
	}

	if msg, ok := errorText(env.Error); ok {
		return Frame{Kind: KindServerError, Error: msg}
	}
	if env.Type == "audio_response" && env.Audio != "" {
		audio, err := base64.StdEncoding.DecodeString(env.Audio)
		if err != nil {
			slog.Warn("audio_response with invalid base64", "error", err)
			return Frame{Kind: KindText, Text: text}
		}
		return Frame{Kind: KindAudio, Audio: audio}
	}
	if env.Type == "simulation_end" || truthy(env.Result) {
		v, err := decodeVerdict([]byte(trimmed), env.Result)
		if err != nil {
			slog.Warn("undecodable verdict", "error", err)
			return Frame{Kind: KindText, Text: text}
		}
		return Frame{Kind: KindVerdict, Verdict: v}
	}
	return Frame{Kind: KindText, Text: text}
}

// decodeVerdict reads the nested result object when present, otherwise the
// top-level message. A bare string result is taken as the outcome.
func decodeVerdict(whole, result json.RawMessage) (*Verdict, error) {
	if bytes.HasPrefix(bytes.TrimSpace(result), []byte(`"`)) {
		var outcome string
		if err := json.Unmarshal(result, &outcome); err != nil {
			return nil, err
		}
		return &Verdict{Outcome: outcome}, nil
	}
	src := whole
	if bytes.HasPrefix(bytes.TrimSpace(result), []byte("{")) {
		src = result
	}
	var raw struct {
		Outcome  string   `json:"outcome"`
		Success  bool     `json:"success"`
		Score    *float64 `json:"score"`
		Feedback string   `json:"feedback"`
	}
	if err := json.Unmarshal(src, &raw); err != nil {
		return nil, err
	}
	v := &Verdict{Outcome: raw.Outcome, Success: raw.Success, Feedback: raw.Feedback}
	if raw.Score != nil {
		score := int(math.Round(*raw.Score))
		v.Score = &score
	}
	return v, nil
}

// errorText reports a truthy "error" field, rendered as text.
func errorText(raw json.RawMessage) (string, bool) {
	if !truthy(raw) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return obj.Message, true
	}
	return string(raw), true
}

func truthy(raw json.RawMessage) bool {
	switch s := string(bytes.TrimSpace(raw)); s {
	case "", "null", "false", "0", `""`:
		return false
	}
	return true
}
