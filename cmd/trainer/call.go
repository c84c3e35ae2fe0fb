package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hubenschmidt/vishing-trainer/internal/audio"
	"github.com/hubenschmidt/vishing-trainer/internal/call"
	"github.com/hubenschmidt/vishing-trainer/internal/debrief"
	"github.com/hubenschmidt/vishing-trainer/internal/session"
	"github.com/hubenschmidt/vishing-trainer/internal/wire"
)

const callHelp = `Commands:
  <text>   send a message (text mode)
  <enter>  start / stop talking (voice mode)
  /mute    toggle the microphone
  /end     hang up`

func newCallCmd(cfg *config) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "call <scenario-id>",
		Short: "Start a simulated scam call",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := wire.ParseMode(mode)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runCall(ctx, cfg, args[0], m, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&mode, "mode", "m", string(wire.ModeVoice), "voice or text")
	cmd.Flags().StringVar(&cfg.audioDevice, "audio", cfg.audioDevice, "Audio adapter (default: this platform)")
	return cmd
}

func runCall(ctx context.Context, cfg *config, scenarioID string, mode wire.Mode, in io.Reader, out io.Writer) error {
	token, err := loadToken(cfg.tokenFile)
	if err != nil {
		if errors.Is(err, errNotLoggedIn) {
			return err
		}
		return errNotLoggedIn
	}
	catalog, err := loadCatalog(cfg)
	if err != nil {
		return err
	}
	sessCfg, err := cfg.sessionConfig()
	if err != nil {
		return err
	}
	store, err := openHistory(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	device := audio.NullDevice()
	if mode == wire.ModeVoice {
		name := cfg.audioDevice
		if name == "" {
			name = audio.CurrentPlatform()
		}
		router := audio.PlatformDevices()
		if !router.Has(name) {
			slog.Warn("unknown audio adapter, using fallback", "name", name, "available", strings.Join(router.Names(), ","))
		}
		if device, err = router.Route(name); err != nil {
			return err
		}
		slog.Info("audio device", "name", device.Name)
	}

	mgr := session.NewManager(sessCfg, session.StaticToken(token))
	defer mgr.Close()

	ctrl := call.New(call.Deps{
		Sessions:      mgr,
		Device:        device,
		Scenarios:     catalog,
		History:       store,
		Coach:         debrief.New(cfg.debriefConfig()),
		Policy:        cfg.policy,
		SilenceGateDB: cfg.silenceGateDB,
	}, call.Options{Scenario: scenarioID, Mode: mode})

	sc := ctrl.Scenario()
	fmt.Fprintln(out, headerStyle.Render("Incoming call: "+sc.CallerName+" "+sc.CallerNumber))
	fmt.Fprintln(out, dimStyle.Render("Connecting..."))
	if err := ctrl.Start(ctx); err != nil {
		return err
	}
	if f, ok := in.(*os.File); !ok || isTerminal(f) {
		fmt.Fprintln(out, dimStyle.Render(callHelp))
	}
	fmt.Fprintln(out, dimStyle.Render("Waiting for the caller..."))

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	talking := false
	for {
		select {
		case ev := <-ctrl.Events():
			if ev.Kind == call.EventEnded {
				fmt.Fprint(out, renderResult(*ev.Result))
				return nil
			}
			printEvent(out, ev)
		case line, ok := <-lines:
			if !ok {
				return finishCall(ctrl, out)
			}
			switch cmdLine := strings.TrimSpace(line); {
			case cmdLine == "/end":
				return finishCall(ctrl, out)
			case cmdLine == "/mute":
				ctrl.ToggleMute()
			case cmdLine == "" && mode == wire.ModeVoice:
				if talking {
					ctrl.PressUp()
				} else {
					ctrl.PressDown(ctx)
				}
				talking = !talking
			case mode == wire.ModeText:
				if err := ctrl.SendText(cmdLine); err != nil {
					fmt.Fprintln(out, warnStyle.Render("not sent: "+err.Error()))
				}
			}
		case <-ctx.Done():
			return finishCall(ctrl, out)
		}
	}
}

func finishCall(ctrl *call.Controller, out io.Writer) error {
	r, err := ctrl.End(context.Background())
	if errors.Is(err, call.ErrEnded) {
		return nil
	}
	fmt.Fprint(out, renderResult(r))
	return err
}

func printEvent(out io.Writer, ev call.Event) {
	switch ev.Kind {
	case call.EventTranscript:
		fmt.Fprintln(out, renderEntry(ev.Entry))
	case call.EventWaiting:
		fmt.Fprintln(out, dimStyle.Render("Caller connected."))
	case call.EventAudio:
		label := ev.AudioState.String()
		if ev.Muted {
			label += " (muted)"
		}
		fmt.Fprintln(out, dimStyle.Render("[mic: "+label+"]"))
	case call.EventNotice:
		fmt.Fprintln(out, warnStyle.Render(ev.Err.Error()))
	case call.EventConnection:
		if ev.Connection == session.StateReconnecting {
			fmt.Fprintln(out, warnStyle.Render("Connection dropped, reconnecting..."))
		}
	case call.EventTick:
		if secs := int(ev.Elapsed.Seconds()); secs > 0 && secs%30 == 0 {
			fmt.Fprintln(out, dimStyle.Render(formatSeconds(secs)))
		}
	}
}
