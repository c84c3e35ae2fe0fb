package outcome

import (
	"time"

	"github.com/hubenschmidt/vishing-trainer/internal/transcript"
	"github.com/hubenschmidt/vishing-trainer/internal/wire"
)

// Outcome is the three-way verdict for a session.
type Outcome string

const (
	Win       Outcome = "win"
	Fail      Outcome = "fail"
	Confusion Outcome = "confusion"
)

// Score maps an outcome to 0..100. Outcomes the backend invents are
// treated like confusion.
func (o Outcome) Score() int {
	switch o {
	case Win:
		return 100
	case Fail:
		return 0
	default:
		return 50
	}
}

// End reasons recorded with a result.
const (
	ReasonUser           = "user"
	ReasonVerdict        = "verdict"
	ReasonRemoteClosed   = "remote_closed"
	ReasonConnectionLost = "connection_lost"
)

// Policy holds the heuristic thresholds used when the backend sends no
// verdict. Short or sparse calls win; long or chatty calls fail.
type Policy struct {
	WinUnder      time.Duration
	WinTurnsUnder int
	FailOver      time.Duration
	FailTurnsOver int
}

// DefaultPolicy matches the mobile client.
func DefaultPolicy() Policy {
	return Policy{
		WinUnder:      30 * time.Second,
		WinTurnsUnder: 3,
		FailOver:      100 * time.Second,
		FailTurnsOver: 6,
	}
}

// Derive applies the policy to a call's length and user turn count.
func (p Policy) Derive(elapsed time.Duration, userTurns int) Outcome {
	switch {
	case elapsed < p.WinUnder || userTurns < p.WinTurnsUnder:
		return Win
	case elapsed > p.FailOver || userTurns > p.FailTurnsOver:
		return Fail
	default:
		return Confusion
	}
}

// Input is everything known at session end.
type Input struct {
	SessionID    string
	ScenarioID   string
	ScenarioName string
	Mode         wire.Mode
	Transcript   []transcript.Entry
	Elapsed      time.Duration
	EndedAt      time.Time
	EndReason    string
	Verdict      *wire.Verdict
	Policy       Policy
}

// Result is the reported outcome of one session. Transcript is a copy owned
// by the result.
type Result struct {
	SessionID    string             `json:"session_id"`
	ScenarioID   string             `json:"scenario_id"`
	ScenarioName string             `json:"scenario_name"`
	Mode         wire.Mode          `json:"mode"`
	Outcome      Outcome            `json:"outcome"`
	Success      bool               `json:"success"`
	Score        int                `json:"score"`
	Duration     int                `json:"duration_s"`
	EndedAt      time.Time          `json:"ended_at"`
	EndReason    string             `json:"end_reason"`
	FromBackend  bool               `json:"from_backend"`
	Feedback     string             `json:"feedback,omitempty"`
	Debrief      string             `json:"debrief,omitempty"`
	Transcript   []transcript.Entry `json:"transcript"`
}

// Resolve builds the session result. A backend verdict is authoritative;
// otherwise the outcome is derived from duration and user turns. The same
// input always yields the same result.
func Resolve(in Input) Result {
	entries := make([]transcript.Entry, len(in.Transcript))
	copy(entries, in.Transcript)

	r := Result{
		SessionID:    in.SessionID,
		ScenarioID:   in.ScenarioID,
		ScenarioName: in.ScenarioName,
		Mode:         in.Mode,
		Duration:     int(in.Elapsed / time.Second),
		EndedAt:      in.EndedAt,
		EndReason:    in.EndReason,
		Transcript:   entries,
	}

	if v := in.Verdict; v != nil {
		r.FromBackend = true
		r.Outcome = Outcome(v.Outcome)
		if r.Outcome == "" {
			r.Outcome = Confusion
		}
		r.Success = v.Success
		r.Score = r.Outcome.Score()
		if v.Score != nil {
			r.Score = clamp(*v.Score)
		}
		r.Feedback = v.Feedback
		return r
	}

	policy := in.Policy
	if policy == (Policy{}) {
		policy = DefaultPolicy()
	}
	if in.EndReason == ReasonConnectionLost {
		r.Outcome = Confusion
	} else {
		r.Outcome = policy.Derive(in.Elapsed, transcript.Count(entries, transcript.RoleUser))
	}
	r.Success = r.Outcome == Win
	r.Score = r.Outcome.Score()
	return r
}

// DefaultWindow is how many recent sessions the security score averages.
const DefaultWindow = 20

// SecurityScore is the mean score of the first n results, which callers
// pass newest first. It is 0 with no results.
func SecurityScore(results []Result, n int) int {
	if n <= 0 {
		n = DefaultWindow
	}
	if len(results) > n {
		results = results[:n]
	}
	if len(results) == 0 {
		return 0
	}
	sum := 0
	for _, r := range results {
		sum += r.Score
	}
	return (sum + len(results)/2) / len(results)
}

func clamp(score int) int {
	return max(0, min(100, score))
}
