package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hubenschmidt/vishing-trainer/internal/debrief"
	"github.com/hubenschmidt/vishing-trainer/internal/env"
	"github.com/hubenschmidt/vishing-trainer/internal/outcome"
	"github.com/hubenschmidt/vishing-trainer/internal/prompts"
	"github.com/hubenschmidt/vishing-trainer/internal/session"
)

type config struct {
	apiURL         string
	wsURL          string
	apiTimeout     time.Duration
	handshake      string
	connectTimeout time.Duration
	settleDelay    time.Duration
	reconnectDelay time.Duration
	maxReconnects  int

	historyDriver    string
	historyDSN       string
	historyRetention int
	scoreWindow      int

	scenarioFile  string
	audioDevice   string
	silenceGateDB float64
	policy        outcome.Policy

	openaiAPIKey     string
	openaiBaseURL    string
	debriefModel     string
	debriefMaxTokens int
	debriefPrompt    string
	debriefTimeout   time.Duration

	tokenFile   string
	logLevel    string
	metricsAddr string
}

func loadConfig() config {
	dir := configDir()
	policy := outcome.DefaultPolicy()
	apiURL := env.Str("TRAINER_API_URL", "http://localhost:8000")

	return config{
		apiURL:         apiURL,
		wsURL:          env.Str("TRAINER_WS_URL", apiURL),
		apiTimeout:     env.Duration("TRAINER_API_TIMEOUT", 15*time.Second),
		handshake:      env.Str("TRAINER_HANDSHAKE", "init"),
		connectTimeout: env.Duration("TRAINER_CONNECT_TIMEOUT", 10*time.Second),
		settleDelay:    env.Duration("TRAINER_SETTLE_DELAY", 500*time.Millisecond),
		reconnectDelay: env.Duration("TRAINER_RECONNECT_DELAY", 2*time.Second),
		maxReconnects:  env.Int("TRAINER_MAX_RECONNECTS", 3),

		historyDriver:    env.Str("HISTORY_DRIVER", "sqlite"),
		historyDSN:       env.Str("HISTORY_DSN", filepath.Join(dir, "history.db")),
		historyRetention: env.Int("HISTORY_RETENTION", 100),
		scoreWindow:      env.Int("SCORE_WINDOW", outcome.DefaultWindow),

		scenarioFile:  env.Str("SCENARIO_FILE", ""),
		audioDevice:   env.Str("AUDIO_DEVICE", ""),
		silenceGateDB: env.Float("AUDIO_SILENCE_GATE_DB", 0),
		policy: outcome.Policy{
			WinUnder:      env.Duration("OUTCOME_WIN_UNDER", policy.WinUnder),
			WinTurnsUnder: env.Int("OUTCOME_WIN_TURNS_UNDER", policy.WinTurnsUnder),
			FailOver:      env.Duration("OUTCOME_FAIL_OVER", policy.FailOver),
			FailTurnsOver: env.Int("OUTCOME_FAIL_TURNS_OVER", policy.FailTurnsOver),
		},

		openaiAPIKey:     env.Str("OPENAI_API_KEY", ""),
		openaiBaseURL:    env.Str("OPENAI_BASE_URL", ""),
		debriefModel:     env.Str("DEBRIEF_MODEL", "gpt-4o-mini"),
		debriefMaxTokens: env.Int("DEBRIEF_MAX_TOKENS", 300),
		debriefPrompt:    env.Str("DEBRIEF_SYSTEM_PROMPT", prompts.DefaultDebrief),
		debriefTimeout:   env.Duration("DEBRIEF_TIMEOUT", 30*time.Second),

		tokenFile:   env.Str("TRAINER_TOKEN_FILE", filepath.Join(dir, "token")),
		logLevel:    env.Str("LOG_LEVEL", "warn"),
		metricsAddr: env.Str("METRICS_ADDR", ""),
	}
}

// configDir is where the token and local history live.
func configDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "vishing-trainer")
}

func (c config) sessionConfig() (session.Config, error) {
	hs, err := session.ParseHandshake(c.handshake)
	if err != nil {
		return session.Config{}, err
	}
	sc := session.DefaultConfig(c.wsURL)
	sc.Handshake = hs
	sc.ConnectTimeout = c.connectTimeout
	sc.SettleDelay = c.settleDelay
	sc.ReconnectDelay = c.reconnectDelay
	sc.MaxReconnects = c.maxReconnects
	return sc, nil
}

func (c config) debriefConfig() debrief.Config {
	return debrief.Config{
		APIKey:    c.openaiAPIKey,
		BaseURL:   c.openaiBaseURL,
		Model:     c.debriefModel,
		MaxTokens: c.debriefMaxTokens,
		Prompt:    c.debriefPrompt,
		Timeout:   c.debriefTimeout,
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
