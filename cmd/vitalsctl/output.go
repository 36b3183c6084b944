package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/vitalsmon/vitalsmon/pkg/vitals"
)

const (
	colorReset  = "\033[0m"
	colorGray   = "\033[90m"
	colorRed    = "\033[91m"
	colorGreen  = "\033[92m"
	colorYellow = "\033[93m"
)

type metricRow struct {
	Metric vitals.Metric    `json:"metric"`
	Value  float64          `json:"value"`
	Status vitals.Status    `json:"status"`
	Points int              `json:"points"`
	Limits vitals.Threshold `json:"threshold"`
}

type scoreReport struct {
	Score   int           `json:"score"`
	Grade   vitals.Status `json:"grade"`
	Metrics []metricRow   `json:"metrics"`
}

func buildMetricRow(m vitals.Metric, v float64) metricRow {
	t := vitals.ThresholdFor(m)
	st := vitals.Classify(v, t)
	return metricRow{Metric: m, Value: v, Status: st, Points: vitals.Points(m, st), Limits: t}
}

func buildScoreReport(s vitals.Sample) scoreReport {
	score := vitals.Score(s)
	rep := scoreReport{Score: score, Grade: vitals.Grade(score)}
	for _, m := range vitals.Metrics {
		rep.Metrics = append(rep.Metrics, buildMetricRow(m, s.Value(m)))
	}
	return rep
}

type printer struct {
	w     io.Writer
	color bool
}

func newPrinter(w io.Writer, noColor bool) printer {
	return printer{w: w, color: !noColor && isTerminal(w)}
}

func (p printer) paint(code, s string) string {
	if !p.color {
		return s
	}
	return code + s + colorReset
}

func (p printer) status(s vitals.Status) string {
	switch s {
	case vitals.Good:
		return p.paint(colorGreen, s.Label())
	case vitals.NeedsImprovement:
		return p.paint(colorYellow, s.Label())
	case vitals.Poor:
		return p.paint(colorRed, s.Label())
	default:
		return s.Label()
	}
}

func (p printer) score(rep scoreReport) {
	fmt.Fprintf(p.w, "Score: %d/%d (%s)\n", rep.Score, vitals.MaxScore, p.status(rep.Grade))
	for _, r := range rep.Metrics {
		fmt.Fprintf(p.w, "  %-4s %-9s %-3s %s\n",
			strings.ToUpper(r.Metric.String()),
			vitals.Format(r.Metric, r.Value),
			fmt.Sprintf("+%d", r.Points),
			p.status(r.Status))
	}
}

func (p printer) classification(r metricRow) {
	fmt.Fprintf(p.w, "%s %s: %s %s\n",
		strings.ToUpper(r.Metric.String()),
		vitals.Format(r.Metric, r.Value),
		p.status(r.Status),
		p.paint(colorGray, limitsText(r.Metric, r.Limits)))
}

func (p printer) suggestions(list []vitals.Suggestion) {
	if len(list) == 0 {
		fmt.Fprintln(p.w, "no suggestions")
		return
	}
	for i, s := range list {
		if i > 0 {
			fmt.Fprintln(p.w)
		}
		fmt.Fprintf(p.w, "[%s] %s (%s, %s impact)\n",
			strings.ToUpper(s.Metric.String()), s.Title, s.Category, s.Impact)
		fmt.Fprintf(p.w, "  %s\n", s.Description)
		for _, step := range s.ActionSteps {
			fmt.Fprintf(p.w, "  - %s\n", step)
		}
		if s.LearnMoreURL != "" {
			fmt.Fprintf(p.w, "  %s\n", p.paint(colorGray, s.LearnMoreURL))
		}
	}
}

func (p printer) thresholds(ts vitals.Thresholds) {
	for _, m := range vitals.Metrics {
		t, ok := ts[m]
		if !ok {
			continue
		}
		fmt.Fprintf(p.w, "%-4s %-25s %s\n", strings.ToUpper(m.String()), m.Title(), limitsText(m, t))
	}
}

// limitsText renders t with the metric's unit, e.g. "(good <= 2.5s, poor > 4s)".
func limitsText(m vitals.Metric, t vitals.Threshold) string {
	return fmt.Sprintf("(good <= %s%s, poor > %s%s)",
		trimFloat(t.Good), m.Unit(), trimFloat(t.Poor), m.Unit())
}

func trimFloat(v float64) string {
	return fmt.Sprintf("%g", v)
}
