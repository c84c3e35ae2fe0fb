package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"

	"github.com/hubenschmidt/vishing-trainer/internal/api"
	"github.com/hubenschmidt/vishing-trainer/internal/history"
	"github.com/hubenschmidt/vishing-trainer/internal/outcome"
	"github.com/hubenschmidt/vishing-trainer/internal/scenario"
	"github.com/hubenschmidt/vishing-trainer/internal/transcript"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42")).
		Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	agentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135"))

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)
)

func outcomeStyle(o outcome.Outcome) lipgloss.Style {
	switch o {
	case outcome.Win:
		return okStyle
	case outcome.Fail:
		return failStyle
	default:
		return warnStyle
	}
}

func dangerStyle(level string) lipgloss.Style {
	switch level {
	case "high":
		return failStyle
	case "medium":
		return warnStyle
	default:
		return okStyle
	}
}

func renderScenarios(w io.Writer, list []scenario.Scenario) {
	if len(list) == 0 {
		fmt.Fprintln(w, headerStyle.Render("No scenarios"))
		return
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%d scenario(s)", len(list))))
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "ID\tName\tDanger\tCaller\t")
	for _, s := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", s.ID, s.Name, dangerStyle(s.Danger()).Render(s.Danger()), s.CallerName)
	}
	_ = tw.Flush()
}

func renderEntry(e transcript.Entry) string {
	stamp := dimStyle.Render(e.At.Format("15:04:05"))
	switch e.Role {
	case transcript.RoleAgent:
		return fmt.Sprintf("%s %s %s", stamp, agentStyle.Render("caller>"), e.Text)
	case transcript.RoleUser:
		return fmt.Sprintf("%s %s %s", stamp, userStyle.Render("you>"), e.Text)
	default:
		return fmt.Sprintf("%s %s", stamp, warnStyle.Render("! "+e.Text))
	}
}

func renderResult(r outcome.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n", titleStyle.Render(r.ScenarioName), outcomeStyle(r.Outcome).Render(strings.ToUpper(string(r.Outcome))))
	fmt.Fprintf(&b, "Score %d/100 after %s\n", r.Score, formatSeconds(r.Duration))
	src := "estimated from call length and turns"
	if r.FromBackend {
		src = "from the trainer"
	}
	fmt.Fprintln(&b, dimStyle.Render("Verdict "+src+", ended by "+r.EndReason))
	if r.Feedback != "" {
		fmt.Fprintf(&b, "\n%s\n", r.Feedback)
	}
	if r.Debrief != "" {
		fmt.Fprintf(&b, "\n%s\n%s\n", titleStyle.Render("Coach"), r.Debrief)
	}
	return boxStyle.Render(strings.TrimRight(b.String(), "\n")) + "\n"
}

func renderWarnings(s scenario.Scenario) string {
	if len(s.WarningPoints) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintln(&b, titleStyle.Render("Red flags in this scenario"))
	for _, w := range s.WarningPoints {
		fmt.Fprintf(&b, "  %s %s\n", warnStyle.Render("•"), w.Title)
		if w.Description != "" {
			fmt.Fprintf(&b, "    %s\n", dimStyle.Render(w.Description))
		}
	}
	return b.String()
}

func renderHistory(w io.Writer, results []outcome.Result) {
	if len(results) == 0 {
		fmt.Fprintln(w, headerStyle.Render("No calls yet"))
		return
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Last %d call(s)", len(results))))
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "When\tScenario\tMode\tOutcome\tScore\tLength\t")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t\n",
			r.EndedAt.Local().Format("Jan 02 15:04"),
			r.ScenarioName,
			r.Mode,
			outcomeStyle(r.Outcome).Render(string(r.Outcome)),
			r.Score,
			formatSeconds(r.Duration),
		)
	}
	_ = tw.Flush()
}

func renderStats(w io.Writer, st history.Stats) {
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Security score %d", st.SecurityScore)))
	fmt.Fprintf(w, "Calls: %d   Success rate: %d%%   Scam types learned: %d\n", st.Total, st.SuccessRate, st.LearnedTypes)
	if len(st.ByScenario) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "Scenario\tCalls\tWon\tRate\t")
	for _, s := range st.ByScenario {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d%%\t\n", s.ScenarioName, s.Total, s.Successes, s.Rate)
	}
	_ = tw.Flush()
}

func renderProfile(p api.Profile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", titleStyle.Render(p.Name))
	fmt.Fprintf(&b, "Username: %s\n", p.Username)
	if p.Age > 0 {
		fmt.Fprintf(&b, "Age: %d\n", p.Age)
	}
	if p.Gender != "" {
		fmt.Fprintf(&b, "Gender: %s\n", p.Gender)
	}
	return boxStyle.Render(strings.TrimRight(b.String(), "\n")) + "\n"
}

func formatSeconds(s int) string {
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}
