package wire

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

func TestDecodeText(t *testing.T) {
	cases := []struct {
		name string
		in   string
		kind Kind
	}{
		{"banner", "Start Scenario: loan_scam", KindBanner},
		{"misspelled banner", "Start Secnario loan_scam", KindBanner},
		{"plain text", "Hello, this is the Seoul prosecutor's office.", KindText},
		{"malformed json", `{"type": "audio_response",`, KindText},
		{"json without markers", `{"type":"ping"}`, KindText},
		{"server error", `{"error":"LLM unavailable"}`, KindServerError},
		{"null error", `{"error":null,"type":"ping"}`, KindText},
		{"audio", `{"type":"audio_response","audio":"AAEC"}`, KindAudio},
		{"simulation end", `{"type":"simulation_end","outcome":"win","success":true}`, KindVerdict},
		{"result only", `{"result":{"outcome":"fail"}}`, KindVerdict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DecodeText(tc.in); got.Kind != tc.kind {
				t.Fatalf("kind=%v, want %v", got.Kind, tc.kind)
			}
		})
	}
}

func TestDecodeTextPayloads(t *testing.T) {
	f := DecodeText(`{"error":"quota exceeded"}`)
	if f.Error != "quota exceeded" {
		t.Fatalf("error=%q", f.Error)
	}

	f = DecodeText(`{"type":"audio_response","audio":"AAEC"}`)
	if !bytes.Equal(f.Audio, []byte{0, 1, 2}) {
		t.Fatalf("audio=%v, want [0 1 2]", f.Audio)
	}

	text := "Start Scenario government_impersonation"
	if f = DecodeText(text); f.Text != text {
		t.Fatalf("banner text=%q", f.Text)
	}
}

func TestDecodeVerdict(t *testing.T) {
	f := DecodeText(`{"type":"simulation_end","result":{"outcome":"confusion","success":false,"score":42.6,"feedback":"You hesitated."}}`)
	v := f.Verdict
	if v == nil {
		t.Fatal("nil verdict")
	}
	if v.Outcome != "confusion" || v.Success || v.Feedback != "You hesitated." {
		t.Fatalf("verdict=%+v", v)
	}
	if v.Score == nil || *v.Score != 43 {
		t.Fatalf("score=%v, want 43", v.Score)
	}

	f = DecodeText(`{"type":"simulation_end","outcome":"win","success":true}`)
	if f.Verdict.Outcome != "win" || !f.Verdict.Success || f.Verdict.Score != nil {
		t.Fatalf("top-level verdict=%+v", f.Verdict)
	}

	f = DecodeText(`{"result":"fail"}`)
	if f.Verdict.Outcome != "fail" {
		t.Fatalf("string result=%+v", f.Verdict)
	}
}

func TestDecodeBinaryIsAudio(t *testing.T) {
	f := Decode(websocket.BinaryMessage, []byte("Start Scenario"))
	if f.Kind != KindAudio || string(f.Audio) != "Start Scenario" {
		t.Fatalf("frame=%+v, want raw audio", f)
	}
}

func TestReadFrameLimit(t *testing.T) {
	big := strings.NewReader(strings.Repeat("a", MaxFrameBytes+1))
	if _, err := ReadFrame(websocket.TextMessage, big); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("err=%v, want ErrFrameTooLarge", err)
	}
	f, err := ReadFrame(websocket.TextMessage, strings.NewReader("hi"))
	if err != nil || f.Kind != KindText || f.Text != "hi" {
		t.Fatalf("frame=%+v err=%v", f, err)
	}
}

func TestHandshakeShapes(t *testing.T) {
	hello := NewInit("tok", "loan_scam", ModeVoice)
	if hello.Type != "init" || hello.Token != "tok" || hello.Scenario != "loan_scam" || hello.Mode != ModeVoice {
		t.Fatalf("init=%+v", hello)
	}
	q := QueryParams("tok", "delivery_scam", ModeText)
	if q.Encode() != "mode=text&scenario=delivery_scam&token=tok" {
		t.Fatalf("query=%s", q.Encode())
	}
	if _, err := ParseMode("video"); err == nil {
		t.Fatal("ParseMode accepted video")
	}
}
