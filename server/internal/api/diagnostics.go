package api

import (
	"fmt"
	"sort"

	"github.com/vitalsmon/vitalsmon/pkg/vitals"
	"github.com/vitalsmon/vitalsmon/server/internal/session"
)

// DiagnosticHint is one human-readable insight about a session. The UI shows
// these as chips on the session card; clicking one reveals Detail.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier (used for dedup/ordering).
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical"
	Level string `json:"level"`
	// Title is a short chip label.
	Title string `json:"title"`
	// Detail is the full explanation shown on click/hover.
	Detail string `json:"detail"`
	// Value is an optional numeric value associated with this hint.
	Value *float64 `json:"value,omitempty"`
	// Suggestions lists catalog suggestion IDs relevant to this hint.
	Suggestions []string `json:"suggestions,omitempty"`
}

var levelRank = map[string]int{"critical": 0, "warning": 1, "info": 2, "ok": 3}

// computeDiagnostics derives hints from a session view, ordered critical
// first, then warnings, then info.
func computeDiagnostics(v session.View, ts vitals.Thresholds) []DiagnosticHint {
	var hints []DiagnosticHint

	if v.LastError != "" {
		hints = append(hints, DiagnosticHint{
			Key:   "collect_failed",
			Level: "critical",
			Title: "Can't measure page",
			Detail: fmt.Sprintf(
				"The last collection for %s failed with \"%s\". "+
					"Check that the page and its RUM exporter are reachable. "+
					"The figures below are from the last successful sample.",
				v.URL, v.LastError),
		})
	}

	if !v.Monitoring {
		hints = append(hints, DiagnosticHint{
			Key:    "paused",
			Level:  "info",
			Title:  "Monitoring paused",
			Detail: "No new samples are recorded until monitoring is resumed. History is kept.",
		})
	}

	if v.Current == nil {
		if v.LastError == "" {
			hints = append(hints, DiagnosticHint{
				Key:   "warming_up",
				Level: "info",
				Title: "Waiting for data",
				Detail: "No sample has been recorded for this page yet. " +
					"The first reading arrives on the next tick. No action needed.",
			})
		}
		return sortHints(hints)
	}

	for _, m := range vitals.Metrics {
		if h, ok := metricHint(m, v.Current.Value(m), ts[m]); ok {
			hints = append(hints, h)
		}
	}

	if v.UptimePct != nil && *v.UptimePct < 100 {
		u := *v.UptimePct
		level := "info"
		switch {
		case u < 70:
			level = "critical"
		case u < 90:
			level = "warning"
		}
		hints = append(hints, DiagnosticHint{
			Key:   "uptime",
			Level: level,
			Title: fmt.Sprintf("%.0f%% collection uptime", u),
			Detail: fmt.Sprintf(
				"The agent measured this page successfully on %.0f%% of its last %d attempts. "+
					"Gaps usually mean the page or its exporter was unreachable for a while.",
				u, vitals.HistoryCap),
			Value: &u,
		})
	}

	if c := v.Cert; c != nil && c.Status != "" && c.Status != "ok" {
		d := float64(c.DaysLeft)
		h := DiagnosticHint{Key: "cert", Value: &d}
		switch c.Status {
		case "expired":
			h.Level, h.Title = "critical", "Certificate expired"
			h.Detail = "The TLS certificate served by this page has expired. Browsers will refuse to load it."
		case "error":
			h.Level, h.Title = "warning", "Certificate check failed"
			h.Detail = "The agent could not complete a TLS handshake with this page to inspect its certificate."
		default:
			h.Level, h.Title = "warning", fmt.Sprintf("Certificate expires in %dd", c.DaysLeft)
			h.Detail = fmt.Sprintf("The TLS certificate (issuer %s) expires in %d days. Renew it before it lapses.",
				c.Issuer, c.DaysLeft)
		}
		hints = append(hints, h)
	}

	if len(hints) == 0 {
		score := float64(v.Score)
		hints = append(hints, DiagnosticHint{
			Key:   "healthy",
			Level: "ok",
			Title: "All clear",
			Detail: fmt.Sprintf(
				"All three Core Web Vitals are in the good range, for a score of %d/100. "+
					"Keep watching the trend chart: a regression usually shows up in LCP first.",
				v.Score),
			Value: &score,
		})
	}
	return sortHints(hints)
}

// metricHint explains a metric that is not in the good band.
func metricHint(m vitals.Metric, value float64, t vitals.Threshold) (DiagnosticHint, bool) {
	st := vitals.Classify(value, t)
	if st == vitals.Good {
		return DiagnosticHint{}, false
	}
	level := "warning"
	if st == vitals.Poor {
		level = "critical"
	}

	var why string
	switch m {
	case vitals.LCP:
		why = "The largest element above the fold is rendering late. Oversized hero images, " +
			"render-blocking CSS and slow server responses are the usual causes."
	case vitals.FID:
		why = "The main thread is busy when the user first interacts. Long JavaScript tasks " +
			"during load delay the response to the first click or tap."
	case vitals.CLS:
		why = "Content is moving after it first renders. Images without dimensions, late-injected " +
			"embeds and web fonts swapping in are the usual causes."
	}

	var ids []string
	for _, s := range vitals.Catalog() {
		if s.Metric == m {
			ids = append(ids, s.ID)
		}
	}

	v := value
	return DiagnosticHint{
		Key:   m.String() + "_" + st.String(),
		Level: level,
		Title: fmt.Sprintf("%s %s", m.Title(), st.Label()),
		Detail: fmt.Sprintf("%s is %s, above the good threshold of %s. %s",
			m.Title(), vitals.Format(m, value), vitals.Format(m, t.Good), why),
		Value:       &v,
		Suggestions: ids,
	}, true
}

func sortHints(h []DiagnosticHint) []DiagnosticHint {
	sort.SliceStable(h, func(i, j int) bool { return levelRank[h[i].Level] < levelRank[h[j].Level] })
	return h
}
