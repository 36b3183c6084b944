package alerts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/vitalsmon/vitalsmon/server/internal/config"
)

// deliver sends a to every webhook target. Errors are logged but do not
// affect the caller.
func (e *Engine) deliver(hooks []config.WebhookConfig, a *Alert) {
	for _, wh := range hooks {
		url := wh.URL()
		if url == "" {
			continue
		}

		var err error
		switch wh.Type {
		case "slack":
			err = e.sendSlack(url, a)
		case "teams":
			err = e.sendTeams(url, a)
		case "http":
			err = e.sendHTTP(url, a)
		default:
			slog.Warn("alerts: unknown webhook type, skipping", "type", wh.Type)
			continue
		}

		if err != nil {
			slog.Error("alerts: webhook delivery failed",
				"type", wh.Type,
				"rule", a.RuleName,
				"err", err,
			)
		} else {
			slog.Debug("alerts: webhook delivered",
				"type", wh.Type,
				"rule", a.RuleName,
				"state", a.State,
			)
		}
	}
}

type slackPayload struct {
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Fields []slackField `json:"fields"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type teamsCard struct {
	Type       string         `json:"@type"`
	Context    string         `json:"@context"`
	ThemeColor string         `json:"themeColor"`
	Summary    string         `json:"summary"`
	Title      string         `json:"title"`
	Sections   []teamsSection `json:"sections"`
}

type teamsSection struct {
	Text  string      `json:"text"`
	Facts []teamsFact `json:"facts"`
}

type teamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// facts lists the page, rule and observed value shown by chat webhooks.
func facts(a *Alert) [][2]string {
	return [][2]string{
		{"Page", a.URL},
		{"Rule", a.RuleName},
		{"Value", strconv.FormatFloat(a.Value, 'f', -1, 64)},
		{"Fired", a.FiredAt.UTC().Format(time.RFC3339)},
	}
}

func (e *Engine) sendSlack(url string, a *Alert) error {
	att := slackAttachment{Color: "#" + severityColor(a.Severity)}
	for _, f := range facts(a) {
		att.Fields = append(att.Fields, slackField{Title: f[0], Value: f[1], Short: f[0] != "Page"})
	}
	return e.postJSON(url, slackPayload{
		Text:        fmt.Sprintf("*%s* %s %s", severityLabel(a.Severity), stateLabel(a.State), a.Message),
		Attachments: []slackAttachment{att},
	})
}

func (e *Engine) sendTeams(url string, a *Alert) error {
	sec := teamsSection{Text: a.Message}
	for _, f := range facts(a) {
		sec.Facts = append(sec.Facts, teamsFact{Name: f[0], Value: f[1]})
	}
	return e.postJSON(url, teamsCard{
		Type:       "MessageCard",
		Context:    "http://schema.org/extensions",
		ThemeColor: severityColor(a.Severity),
		Summary:    a.RuleName,
		Title:      fmt.Sprintf("Web Vitals %s: %s", stateLabel(a.State), a.RuleName),
		Sections:   []teamsSection{sec},
	})
}

func (e *Engine) sendHTTP(url string, a *Alert) error {
	return e.postJSON(url, struct {
		Source string `json:"source"`
		Alert  *Alert `json:"alert"`
	}{Source: "vitals-server", Alert: a})
}

func (e *Engine) postJSON(url string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	return e.post(url, body)
}

func (e *Engine) post(url string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func severityLabel(s string) string {
	switch s {
	case "critical":
		return "[CRITICAL]"
	case "warning":
		return "[WARNING]"
	default:
		return "[INFO]"
	}
}

func stateLabel(s string) string {
	if s == "resolved" {
		return "RESOLVED"
	}
	return "FIRING"
}

func severityColor(s string) string {
	switch s {
	case "critical":
		return "EF4444"
	case "warning":
		return "F59E0B"
	default:
		return "22C55E"
	}
}
