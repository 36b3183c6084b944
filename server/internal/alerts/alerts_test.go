package alerts

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vitalsmon/vitalsmon/pkg/vitals"
	"github.com/vitalsmon/vitalsmon/server/internal/config"
	"github.com/vitalsmon/vitalsmon/server/internal/session"
)

var (
	goodSample = vitals.Sample{LCP: 1.8, FID: 60, CLS: 0.02}  // score 100
	slowSample = vitals.Sample{LCP: 5.2, FID: 150, CLS: 0.12} // 10+20+20 = 50
)

func view(id string, s *vitals.Sample) session.View {
	return session.View{ID: id, URL: "https://" + id + ".example", Current: s}
}

func TestParseCondition(t *testing.T) {
	valid := []string{
		"score < 50", "lcp > 4", "fid >= 300", "cls != 0",
		"lcp_status == poor", "grade != good", "cls_status == needs-improvement",
	}
	for _, c := range valid {
		if _, err := parseCondition(c); err != nil {
			t.Errorf("parseCondition(%q): %v", c, err)
		}
	}
	invalid := []string{
		"", "score<50", "ttfb > 1", "score ~ 5", "score < fast",
		"grade > good", "lcp_status == terrible",
	}
	for _, c := range invalid {
		if _, err := parseCondition(c); err == nil {
			t.Errorf("parseCondition(%q): expected error", c)
		}
	}
}

func TestConditionEval(t *testing.T) {
	cases := []struct {
		cond      string
		sample    vitals.Sample
		wantFire  bool
		wantValue float64
	}{
		{"score < 60", slowSample, true, 50},
		{"score < 60", goodSample, false, 100},
		{"lcp > 4", slowSample, true, 5.2},
		{"fid >= 150", slowSample, true, 150},
		{"cls <= 0.1", slowSample, false, 0.12},
		{"lcp_status == poor", slowSample, true, 5.2},
		{"fid_status == needs-improvement", slowSample, true, 150},
		{"cls_status == good", slowSample, false, 0.12},
		{"grade == needs-improvement", slowSample, true, 50},
		{"grade != good", goodSample, false, 100},
	}
	for _, tc := range cases {
		c, err := parseCondition(tc.cond)
		if err != nil {
			t.Fatalf("parseCondition(%q): %v", tc.cond, err)
		}
		fires, v := c.eval(tc.sample, vitals.DefaultThresholds)
		if fires != tc.wantFire || v != tc.wantValue {
			t.Errorf("%q: got (%v, %v), want (%v, %v)", tc.cond, fires, v, tc.wantFire, tc.wantValue)
		}
	}
}

func TestValidate(t *testing.T) {
	ok := config.AlertsConfig{Rules: []config.AlertRule{{Name: "a", Condition: "score < 50"}}}
	if err := Validate(ok); err != nil {
		t.Errorf("Validate: %v", err)
	}
	bad := config.AlertsConfig{Rules: []config.AlertRule{{Name: "b", Condition: "speed > 1"}}}
	if err := Validate(bad); err == nil || !strings.Contains(err.Error(), `"b"`) {
		t.Errorf("Validate: got %v, want error naming rule b", err)
	}
}

func newEngine(rules ...config.AlertRule) (*Engine, *time.Time) {
	e := New(config.AlertsConfig{Rules: rules}, nil)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return now }
	return e, &now
}

func TestEvaluate_FireAndResolve(t *testing.T) {
	e, _ := newEngine(config.AlertRule{Name: "low-score", Condition: "score < 60", Severity: "critical"})

	e.Evaluate(view("s1", &slowSample))
	active := e.Active()
	if len(active) != 1 {
		t.Fatalf("Active: got %d, want 1", len(active))
	}
	a := active[0]
	if a.State != "firing" || a.Severity != "critical" || a.SessionID != "s1" || a.Value != 50 {
		t.Errorf("alert: %+v", a)
	}
	if a.ID == "" {
		t.Error("alert ID should be set")
	}
	if e.Firing() != 1 {
		t.Errorf("Firing: got %d, want 1", e.Firing())
	}

	e.Evaluate(view("s1", &goodSample))
	if e.Firing() != 0 {
		t.Errorf("Firing after recovery: got %d, want 0", e.Firing())
	}
	active = e.Active()
	if len(active) != 1 || active[0].State != "resolved" || active[0].ResolvedAt == nil {
		t.Fatalf("Active after resolve: %+v", active)
	}
}

func TestEvaluate_NoSampleIgnored(t *testing.T) {
	e, _ := newEngine(config.AlertRule{Name: "r", Condition: "score < 60"})
	e.Evaluate(view("s1", nil))
	if len(e.Active()) != 0 {
		t.Error("a view without a sample must not fire")
	}
}

func TestEvaluate_Cooldown(t *testing.T) {
	e, now := newEngine(config.AlertRule{Name: "r", Condition: "lcp > 4", Cooldown: 10 * time.Minute})

	e.Evaluate(view("s1", &slowSample)) // fire
	e.Evaluate(view("s1", &goodSample)) // resolve

	*now = now.Add(time.Minute)
	e.Evaluate(view("s1", &slowSample)) // within cooldown
	if e.Firing() != 0 {
		t.Error("re-fire within cooldown should be suppressed")
	}

	*now = now.Add(10 * time.Minute)
	e.Evaluate(view("s1", &slowSample))
	if e.Firing() != 1 {
		t.Error("rule should fire again after cooldown")
	}
}

func TestEvaluate_PerSession(t *testing.T) {
	e, _ := newEngine(config.AlertRule{Name: "r", Condition: "grade == poor"})
	poor := vitals.Sample{LCP: 6, FID: 400, CLS: 0.4}
	e.Evaluate(view("a", &poor))
	e.Evaluate(view("b", &poor))
	e.Evaluate(view("c", &goodSample))
	if e.Firing() != 2 {
		t.Errorf("Firing: got %d, want 2", e.Firing())
	}
	e.Forget("a")
	if e.Firing() != 1 {
		t.Errorf("Firing after Forget: got %d, want 1", e.Firing())
	}
}

func TestReload(t *testing.T) {
	e, _ := newEngine(config.AlertRule{Name: "old", Condition: "score < 60"})
	e.Evaluate(view("s1", &slowSample))

	e.Reload(config.AlertsConfig{Rules: []config.AlertRule{
		{Name: "new", Condition: "lcp > 4"},
		{Name: "broken", Condition: "nonsense"},
	}})
	if e.Firing() != 0 {
		t.Error("alerts of removed rules should be dropped")
	}
	e.Evaluate(view("s1", &slowSample))
	active := e.Active()
	if len(active) != 1 || active[0].RuleName != "new" {
		t.Errorf("Active after reload: %+v", active)
	}
}

func TestForget_DropsCooldownState(t *testing.T) {
	e, _ := newEngine(config.AlertRule{Name: "slow", Condition: "lcp > 1"})
	for i := 0; i < 1000; i++ {
		id := fmt.Sprintf("s%d", i)
		e.Evaluate(view(id, &slowSample))
		e.Forget(id)
	}
	e.mu.Lock()
	active, fired := len(e.active), len(e.lastFire)
	e.mu.Unlock()
	if active != 0 || fired != 0 {
		t.Errorf("after Forget: active=%d lastFire=%d, want 0 and 0", active, fired)
	}
}

func TestForget_KeepsOtherSessions(t *testing.T) {
	e, _ := newEngine(config.AlertRule{Name: "slow", Condition: "lcp > 1"})
	e.Evaluate(view("a", &slowSample))
	e.Evaluate(view("b", &slowSample))
	e.Forget("a")

	e.mu.Lock()
	_, kept := e.lastFire[alertKey{rule: "slow", session: "b"}]
	e.mu.Unlock()
	if !kept || e.Firing() != 1 {
		t.Errorf("session b: cooldown kept=%v firing=%d, want true and 1", kept, e.Firing())
	}
}

func TestReload_PrunesCooldownOfRemovedRules(t *testing.T) {
	e, _ := newEngine(
		config.AlertRule{Name: "keep", Condition: "lcp > 1"},
		config.AlertRule{Name: "drop", Condition: "score < 60"},
	)
	e.Evaluate(view("s1", &slowSample))

	e.Reload(config.AlertsConfig{Rules: []config.AlertRule{{Name: "keep", Condition: "lcp > 1"}}})

	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.lastFire) != 1 {
		t.Fatalf("lastFire: got %d entries, want 1", len(e.lastFire))
	}
	if _, ok := e.lastFire[alertKey{rule: "keep", session: "s1"}]; !ok {
		t.Error("cooldown of the kept rule was dropped")
	}
}

func TestWebhookDelivery(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies = map[string]string{}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies[r.URL.Path] = string(b)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	t.Setenv("HOOK_SLACK", srv.URL+"/slack")
	t.Setenv("HOOK_TEAMS", srv.URL+"/teams")
	t.Setenv("HOOK_HTTP", srv.URL+"/http")

	e := New(config.AlertsConfig{
		Rules: []config.AlertRule{{Name: "slow-lcp", Condition: "lcp_status == poor", Severity: "critical"}},
		Webhooks: []config.WebhookConfig{
			{Type: "slack", URLEnv: "HOOK_SLACK"},
			{Type: "teams", URLEnv: "HOOK_TEAMS"},
			{Type: "http", URLEnv: "HOOK_HTTP"},
			{Type: "http", URLEnv: "HOOK_UNSET"},
		},
	}, nil)
	e.Evaluate(view("s1", &slowSample))
	e.Wait()

	mu.Lock()
	defer mu.Unlock()
	if !strings.Contains(bodies["/slack"], "[CRITICAL]") || !strings.Contains(bodies["/slack"], "FIRING") {
		t.Errorf("slack body: %s", bodies["/slack"])
	}
	if !strings.Contains(bodies["/teams"], "MessageCard") || !strings.Contains(bodies["/teams"], `"name":"Page"`) {
		t.Errorf("teams body: %s", bodies["/teams"])
	}
	var slack struct {
		Attachments []struct {
			Fields []struct {
				Title string `json:"title"`
				Value string `json:"value"`
			} `json:"fields"`
		} `json:"attachments"`
	}
	if err := json.Unmarshal([]byte(bodies["/slack"]), &slack); err != nil {
		t.Fatalf("slack body: %v", err)
	}
	if len(slack.Attachments) != 1 || len(slack.Attachments[0].Fields) != 4 ||
		slack.Attachments[0].Fields[2].Value != "5.2" {
		t.Errorf("slack attachments: %+v", slack.Attachments)
	}
	var payload struct {
		Alert Alert `json:"alert"`
	}
	if err := json.Unmarshal([]byte(bodies["/http"]), &payload); err != nil {
		t.Fatalf("http body: %v", err)
	}
	if payload.Alert.RuleName != "slow-lcp" || payload.Alert.Value != 5.2 {
		t.Errorf("http alert: %+v", payload.Alert)
	}
}

func TestEvaluate_CustomThresholds(t *testing.T) {
	strict := vitals.Thresholds{
		vitals.LCP: {Good: 1, Poor: 1.5},
		vitals.FID: vitals.DefaultThresholds[vitals.FID],
		vitals.CLS: vitals.DefaultThresholds[vitals.CLS],
	}
	e := New(config.AlertsConfig{Rules: []config.AlertRule{{Name: "r", Condition: "lcp_status == poor"}}}, strict)
	e.Evaluate(view("s1", &goodSample)) // 1.8s is poor under the strict table
	if e.Firing() != 1 {
		t.Errorf("Firing: got %d, want 1", e.Firing())
	}
}
