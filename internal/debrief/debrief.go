package debrief

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nlpodyssey/openai-agents-go/agents"
	"github.com/nlpodyssey/openai-agents-go/modelsettings"
	"github.com/openai/openai-go/v2/packages/param"

	"github.com/hubenschmidt/vishing-trainer/internal/outcome"
	"github.com/hubenschmidt/vishing-trainer/internal/prompts"
	"github.com/hubenschmidt/vishing-trainer/internal/scenario"
)

var ErrDisabled = errors.New("debrief disabled")

// Completer produces one reply for a system prompt and user message.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Config selects the model behind the coach.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Prompt    string
	Timeout   time.Duration
}

// Coach writes short post-call feedback.
type Coach struct {
	llm     Completer
	prompt  string
	timeout time.Duration
}

// New builds a coach on the OpenAI agents SDK. Without an API key it
// returns a disabled coach.
func New(cfg Config) *Coach {
	if cfg.APIKey == "" {
		return &Coach{}
	}
	return NewWithCompleter(NewAgentCompleter(cfg), cfg.Prompt, cfg.Timeout)
}

// NewWithCompleter builds a coach on an arbitrary completer.
func NewWithCompleter(llm Completer, prompt string, timeout time.Duration) *Coach {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Coach{llm: llm, prompt: prompts.ForDebrief(prompt), timeout: timeout}
}

// Enabled reports whether a model is configured.
func (c *Coach) Enabled() bool { return c != nil && c.llm != nil }

// Debrief returns coaching text for a finished call.
func (c *Coach) Debrief(ctx context.Context, r outcome.Result, sc scenario.Scenario) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}
	in := prompts.DebriefInput{
		ScenarioName: sc.Name,
		Description:  sc.Description,
		Outcome:      string(r.Outcome),
		Duration:     r.Duration,
	}
	if in.ScenarioName == "" {
		in.ScenarioName = r.ScenarioID
	}
	for _, w := range sc.WarningPoints {
		in.RedFlags = append(in.RedFlags, w.Title)
	}
	for _, e := range r.Transcript {
		in.Turns = append(in.Turns, prompts.Turn{Role: string(e.Role), Text: e.Text})
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	text, err := c.llm.Complete(ctx, c.prompt, prompts.DebriefUser(in))
	if err != nil {
		return "", fmt.Errorf("debrief: %w", err)
	}
	slog.Info("debrief generated", "session_id", r.SessionID, "ms", time.Since(start).Milliseconds())
	return strings.TrimSpace(text), nil
}

// AgentCompleter runs a single-turn agent and collects the streamed text.
type AgentCompleter struct {
	provider  agents.ModelProvider
	model     string
	maxTokens int
}

// NewAgentCompleter creates a completer on the OpenAI provider.
func NewAgentCompleter(cfg Config) *AgentCompleter {
	params := agents.OpenAIProviderParams{APIKey: param.NewOpt(cfg.APIKey)}
	if cfg.BaseURL != "" {
		params.BaseURL = param.NewOpt(cfg.BaseURL)
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 300
	}
	return &AgentCompleter{
		provider:  agents.NewOpenAIProvider(params),
		model:     model,
		maxTokens: maxTokens,
	}
}

func (a *AgentCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	agent := agents.New("coach").
		WithInstructions(system).
		WithModel(a.model).
		WithModelSettings(modelsettings.ModelSettings{
			MaxTokens: param.NewOpt(int64(a.maxTokens)),
		})

	runner := agents.Runner{Config: agents.RunConfig{
		ModelProvider:   a.provider,
		MaxTurns:        1,
		TracingDisabled: true,
	}}

	events, errCh, err := runner.RunStreamedChan(ctx, agent, user)
	if err != nil {
		return "", fmt.Errorf("llm stream start: %w", err)
	}

	var buf strings.Builder
	for ev := range events {
		raw, ok := ev.(agents.RawResponsesStreamEvent)
		if !ok || raw.Data.Type != "response.output_text.delta" {
			continue
		}
		buf.WriteString(raw.Data.Delta)
	}
	if streamErr := <-errCh; streamErr != nil {
		return "", fmt.Errorf("llm stream: %w", streamErr)
	}
	return buf.String(), nil
}
