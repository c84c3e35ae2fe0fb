package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/hubenschmidt/vishing-trainer/internal/api"
	"github.com/hubenschmidt/vishing-trainer/internal/history"
	"github.com/hubenschmidt/vishing-trainer/internal/scenario"
)

var errNotLoggedIn = errors.New("not logged in (run `trainer login` first)")

func newRootCmd(cfg *config) *cobra.Command {
	root := &cobra.Command{
		Use:   "trainer",
		Short: "Practice spotting voice-phishing calls",
		Long: `Hold a simulated scam call against the training backend, by voice or
by text, and get a win / fail / confusion verdict plus a rolling
security score.

Quick Start:
  trainer login -u alice
  trainer scenarios
  trainer call loan_scam --mode text
  trainer stats`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if cfg.metricsAddr != "" {
				serveMetrics(cfg.metricsAddr)
			}
		},
	}

	root.PersistentFlags().StringVar(&cfg.apiURL, "api-url", cfg.apiURL, "Account API base URL")
	root.PersistentFlags().StringVar(&cfg.wsURL, "ws-url", cfg.wsURL, "Simulation socket base URL")
	root.PersistentFlags().StringVar(&cfg.metricsAddr, "metrics-addr", cfg.metricsAddr, "Serve Prometheus metrics on this address")
	root.PersistentFlags().StringVar(&cfg.historyDSN, "history", cfg.historyDSN, "History database (sqlite path or postgres DSN)")

	root.AddCommand(
		newLoginCmd(cfg),
		newSignupCmd(cfg),
		newProfileCmd(cfg),
		newScenariosCmd(cfg),
		newCallCmd(cfg),
		newHistoryCmd(cfg),
		newStatsCmd(cfg),
	)
	return root
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		slog.Info("metrics listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("metrics server failed", "error", err)
		}
	}()
}

func newAPIClient(cfg *config) *api.Client {
	client := api.NewClient(cfg.apiURL, cfg.apiTimeout)
	if token, err := loadToken(cfg.tokenFile); err == nil {
		client.SetToken(token)
	}
	return client
}

func openHistory(ctx context.Context, cfg *config) (*history.Store, error) {
	if cfg.historyDriver == "sqlite" {
		if err := os.MkdirAll(filepath.Dir(cfg.historyDSN), 0o700); err != nil {
			return nil, fmt.Errorf("history dir: %w", err)
		}
	}
	store, err := history.Open(ctx, cfg.historyDriver, cfg.historyDSN)
	if err != nil {
		return nil, err
	}
	store.SetRetention(cfg.historyRetention)
	return store, nil
}

func loadCatalog(cfg *config) (*scenario.Catalog, error) {
	if cfg.scenarioFile == "" {
		return scenario.Default(), nil
	}
	return scenario.Load(cfg.scenarioFile)
}

func loadToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", errNotLoggedIn
	}
	if err := api.CheckToken(token, time.Now()); err != nil {
		return "", fmt.Errorf("%w: %v", errNotLoggedIn, err)
	}
	return token, nil
}

func saveToken(path, token string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("token dir: %w", err)
	}
	return os.WriteFile(path, []byte(token+"\n"), 0o600)
}
