package prompts

import (
	"fmt"
	"strings"
)

const DefaultDebrief = "You are a fraud-prevention coach reviewing a simulated voice-phishing call. " +
	"In at most five short sentences, tell the trainee what they did well, which red flags they missed, " +
	"and one concrete thing to do differently next time. Do not repeat the transcript."

// ForDebrief resolves the coach's system prompt.
func ForDebrief(systemPrompt string) string {
	if systemPrompt != "" {
		return systemPrompt
	}
	return DefaultDebrief
}

// Turn is one transcript line as the coach sees it.
type Turn struct {
	Role string
	Text string
}

// DebriefInput is what the coach is told about a finished call.
type DebriefInput struct {
	ScenarioName string
	Description  string
	RedFlags     []string
	Outcome      string
	Duration     int
	Turns        []Turn
}

// maxTurns bounds how much transcript goes into the prompt.
const maxTurns = 40

// DebriefUser renders the call summary the coach answers.
func DebriefUser(in DebriefInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scenario: %s\n", in.ScenarioName)
	if in.Description != "" {
		fmt.Fprintf(&b, "Scam pattern: %s\n", in.Description)
	}
	if len(in.RedFlags) > 0 {
		fmt.Fprintf(&b, "Known red flags: %s\n", strings.Join(in.RedFlags, "; "))
	}
	fmt.Fprintf(&b, "Result: %s after %d seconds\n\nTranscript:\n", in.Outcome, in.Duration)

	turns := in.Turns
	if len(turns) > maxTurns {
		turns = turns[len(turns)-maxTurns:]
		b.WriteString("(earlier turns omitted)\n")
	}
	for _, t := range turns {
		fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Text)
	}
	return b.String()
}
