package api_test

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vitalsmon/vitalsmon/pkg/vitals"
	"github.com/vitalsmon/vitalsmon/pkg/wire"
	"github.com/vitalsmon/vitalsmon/server/internal/alerts"
	"github.com/vitalsmon/vitalsmon/server/internal/api"
	"github.com/vitalsmon/vitalsmon/server/internal/config"
	"github.com/vitalsmon/vitalsmon/server/internal/session"
	"github.com/vitalsmon/vitalsmon/server/internal/store"
)

// --- test helpers -----------------------------------------------------------

// fixedSource always returns the same reading.
type fixedSource vitals.Sample

func (f fixedSource) Next(now time.Time) (vitals.Sample, error) {
	s := vitals.Sample(f)
	s.Timestamp = now
	return s, nil
}

var (
	fast = fixedSource{LCP: 1.9, FID: 70, CLS: 0.04}  // 100
	slow = fixedSource{LCP: 4.8, FID: 120, CLS: 0.30} // 10+20+10 = 40
)

type env struct {
	h      http.Handler
	st     *store.Store
	alerts *alerts.Engine
}

func newEnv(t *testing.T) env {
	t.Helper()
	st := store.New(5*time.Minute, 10)
	eng := alerts.New(config.AlertsConfig{Rules: []config.AlertRule{
		{Name: "low-score", Condition: "score < 50", Severity: "critical"},
	}}, nil)
	h := api.New(st, eng, api.Options{
		NewSource: func() session.Source { return fast },
	})
	return env{h: h, st: st, alerts: eng}
}

// open adds a session with src and records n ticks.
func (e env) open(t *testing.T, url string, src session.Source, n int) *session.Session {
	t.Helper()
	s, _, err := e.st.Open(url, session.Desktop, src)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		if _, _, err := s.Tick(base.Add(time.Duration(i) * 2 * time.Second)); err != nil {
			t.Fatalf("Tick: %v", err)
		}
	}
	return s
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	h.ServeHTTP(rr, req)
	return rr
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	return do(t, h, http.MethodGet, path, "")
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v (body: %s)", err, rr.Body.String())
	}
}

// --- /api/v1/health ---------------------------------------------------------

func TestHealth_EmptyStore(t *testing.T) {
	e := newEnv(t)
	rr := get(t, e.h, "/api/v1/health")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp api.HealthResponse
	decode(t, rr, &resp)
	if resp.Grade != "unknown" || resp.SessionCount != 0 {
		t.Errorf("health: %+v", resp)
	}
}

func TestHealth_Mixed(t *testing.T) {
	e := newEnv(t)
	e.open(t, "fast.com", fast, 1)
	e.open(t, "slow.com", slow, 1)
	e.open(t, "pending.com", fast, 0)

	var resp api.HealthResponse
	decode(t, get(t, e.h, "/api/v1/health"), &resp)

	if resp.SessionCount != 3 || resp.PendingCount != 1 {
		t.Errorf("counts: %+v", resp)
	}
	if resp.GoodCount != 1 || resp.PoorCount != 1 {
		t.Errorf("grade counts: %+v", resp)
	}
	// avg(100, 40) = 70 → needs-improvement
	if resp.OverallScore != 70 || resp.Grade != "needs-improvement" {
		t.Errorf("overall: %v %q", resp.OverallScore, resp.Grade)
	}
}

func TestHealth_MethodNotAllowed(t *testing.T) {
	e := newEnv(t)
	if rr := do(t, e.h, http.MethodPost, "/api/v1/health", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", rr.Code)
	}
}

// --- /api/v1/sessions -------------------------------------------------------

func TestCreateSession(t *testing.T) {
	e := newEnv(t)
	rr := do(t, e.h, http.MethodPost, "/api/v1/sessions", `{"url":"example.com","view_mode":"mobile"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want 201 (%s)", rr.Code, rr.Body.String())
	}
	var resp api.SessionResponse
	decode(t, rr, &resp)
	if resp.URL != "https://example.com" || resp.ViewMode != "mobile" || !resp.Monitoring {
		t.Errorf("session: %+v", resp)
	}
	if resp.Score != 0 || resp.Grade != "unknown" || len(resp.Metrics) != 0 {
		t.Errorf("fresh session should have no score: %+v", resp)
	}

	// Same URL and mode returns the existing session.
	rr = do(t, e.h, http.MethodPost, "/api/v1/sessions", `{"url":"https://example.com","view_mode":"mobile"}`)
	if rr.Code != http.StatusOK {
		t.Errorf("repeat create: got %d, want 200", rr.Code)
	}
	if e.st.Count() != 1 {
		t.Errorf("Count: got %d, want 1", e.st.Count())
	}
}

func TestCreateSession_BadRequests(t *testing.T) {
	e := newEnv(t)
	for _, body := range []string{
		`{`,
		`{"url":""}`,
		`{"url":"ftp://example.com"}`,
		`{"url":"example.com","view_mode":"watch"}`,
	} {
		rr := do(t, e.h, http.MethodPost, "/api/v1/sessions", body)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: got %d, want 400", body, rr.Code)
		}
	}
}

func TestCreateSession_Full(t *testing.T) {
	st := store.New(time.Minute, 1)
	h := api.New(st, nil, api.Options{})
	do(t, h, http.MethodPost, "/api/v1/sessions", `{"url":"a.com"}`)
	if rr := do(t, h, http.MethodPost, "/api/v1/sessions", `{"url":"b.com"}`); rr.Code != http.StatusTooManyRequests {
		t.Errorf("status: got %d, want 429", rr.Code)
	}
}

func TestListSessions(t *testing.T) {
	e := newEnv(t)
	e.open(t, "a.com", fast, 1)
	e.open(t, "b.com", slow, 1)

	var list []api.SessionResponse
	decode(t, get(t, e.h, "/api/v1/sessions"), &list)
	if len(list) != 2 {
		t.Fatalf("len: got %d, want 2", len(list))
	}
	if list[0].Score != 100 || list[1].Score != 40 {
		t.Errorf("scores: %d %d", list[0].Score, list[1].Score)
	}
}

func TestGetSession_Metrics(t *testing.T) {
	e := newEnv(t)
	s := e.open(t, "slow.com", slow, 1)

	var resp api.SessionResponse
	decode(t, get(t, e.h, "/api/v1/sessions/"+s.ID), &resp)

	if len(resp.Metrics) != 3 {
		t.Fatalf("metrics: got %d, want 3", len(resp.Metrics))
	}
	lcp := resp.Metrics[0]
	// Format rounds values >= 1 to whole units.
	if lcp.Metric != vitals.LCP || lcp.Status != vitals.Poor || lcp.Display != "5s" {
		t.Errorf("lcp: %+v", lcp)
	}
	if math.Abs(lcp.Progress-0.8) > 1e-9 {
		t.Errorf("lcp progress: got %v, want 0.8", lcp.Progress)
	}
	if resp.Metrics[1].Status != vitals.NeedsImprovement {
		t.Errorf("fid status: got %v", resp.Metrics[1].Status)
	}
	if resp.Grade != "poor" {
		t.Errorf("grade: got %q, want poor", resp.Grade)
	}
	if len(resp.Diagnostics) == 0 || resp.Diagnostics[0].Level != "critical" {
		t.Errorf("diagnostics should lead with a critical hint: %+v", resp.Diagnostics)
	}
}

func TestGetSession_NotFound(t *testing.T) {
	e := newEnv(t)
	if rr := get(t, e.h, "/api/v1/sessions/nope"); rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", rr.Code)
	}
}

func TestDeleteSession(t *testing.T) {
	e := newEnv(t)
	s := e.open(t, "a.com", fast, 0)

	if rr := do(t, e.h, http.MethodDelete, "/api/v1/sessions/"+s.ID, ""); rr.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want 204", rr.Code)
	}
	if e.st.Count() != 0 {
		t.Error("session should be removed")
	}
	if rr := do(t, e.h, http.MethodDelete, "/api/v1/sessions/"+s.ID, ""); rr.Code != http.StatusNotFound {
		t.Errorf("second delete: got %d, want 404", rr.Code)
	}
}

func TestMonitoringActions(t *testing.T) {
	e := newEnv(t)
	s := e.open(t, "a.com", fast, 0)
	base := "/api/v1/sessions/" + s.ID

	steps := []struct {
		action string
		want   bool
	}{
		{"stop", false},
		{"start", true},
		{"toggle", false},
		{"toggle", true},
	}
	for _, st := range steps {
		rr := do(t, e.h, http.MethodPost, base+"/"+st.action, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: status %d", st.action, rr.Code)
		}
		var resp api.SessionResponse
		decode(t, rr, &resp)
		if resp.Monitoring != st.want {
			t.Errorf("%s: monitoring got %v, want %v", st.action, resp.Monitoring, st.want)
		}
	}

	if rr := get(t, e.h, base+"/start"); rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET start: got %d, want 405", rr.Code)
	}
	if rr := do(t, e.h, http.MethodPost, base+"/explode", ""); rr.Code != http.StatusNotFound {
		t.Errorf("unknown action: got %d, want 404", rr.Code)
	}
}

func TestHistory(t *testing.T) {
	e := newEnv(t)
	s := e.open(t, "a.com", fast, 25)

	var resp api.HistoryResponse
	decode(t, get(t, e.h, "/api/v1/sessions/"+s.ID+"/history"), &resp)

	if resp.Capacity != 20 || len(resp.Samples) != 20 {
		t.Fatalf("history: cap=%d len=%d", resp.Capacity, len(resp.Samples))
	}
	first, _ := time.Parse(time.RFC3339Nano, resp.Samples[0].Timestamp)
	last, _ := time.Parse(time.RFC3339Nano, resp.Samples[19].Timestamp)
	if !first.Before(last) {
		t.Error("history should be oldest first")
	}
	if resp.Samples[0].Score != 100 || resp.Samples[0].Statuses[vitals.CLS] != vitals.Good {
		t.Errorf("point: %+v", resp.Samples[0])
	}
}

// --- reference endpoints ----------------------------------------------------

func TestThresholds(t *testing.T) {
	e := newEnv(t)
	var out []api.ThresholdResponse
	decode(t, get(t, e.h, "/api/v1/thresholds"), &out)
	if len(out) != 3 {
		t.Fatalf("len: got %d, want 3", len(out))
	}
	if out[0].Metric != vitals.LCP || out[0].Good != 2.5 || out[0].Poor != 4 {
		t.Errorf("lcp: %+v", out[0])
	}
	if out[2].Metric != vitals.CLS || out[2].Good != 0.1 || out[2].Poor != 0.25 {
		t.Errorf("cls: %+v", out[2])
	}
}

func TestThresholds_Override(t *testing.T) {
	ts := vitals.Thresholds{
		vitals.LCP: {Good: 2, Poor: 3},
		vitals.FID: vitals.DefaultThresholds[vitals.FID],
		vitals.CLS: vitals.DefaultThresholds[vitals.CLS],
	}
	h := api.New(store.New(time.Minute, 1), nil, api.Options{Thresholds: ts})

	var c api.ClassifyResponse
	decode(t, get(t, h, "/api/v1/classify?metric=lcp&value=2.5"), &c)
	if c.Status != vitals.NeedsImprovement {
		t.Errorf("status under override: got %v, want needs-improvement", c.Status)
	}
}

func TestSuggestions(t *testing.T) {
	e := newEnv(t)
	var all []vitals.Suggestion
	decode(t, get(t, e.h, "/api/v1/suggestions"), &all)
	if len(all) != len(vitals.Catalog()) {
		t.Errorf("len: got %d, want %d", len(all), len(vitals.Catalog()))
	}

	var cls []vitals.Suggestion
	decode(t, get(t, e.h, "/api/v1/suggestions?metric=cls"), &cls)
	for _, s := range cls {
		if s.Metric != vitals.CLS {
			t.Errorf("filtered list contains %v", s.Metric)
		}
	}
	if rr := get(t, e.h, "/api/v1/suggestions?metric=ttfb"); rr.Code != http.StatusBadRequest {
		t.Errorf("bad metric: got %d, want 400", rr.Code)
	}
}

func TestClassify(t *testing.T) {
	e := newEnv(t)
	cases := []struct {
		query  string
		status vitals.Status
		points int
	}{
		{"metric=lcp&value=2.5", vitals.Good, 33},
		{"metric=lcp&value=4.0", vitals.NeedsImprovement, 20},
		{"metric=fid&value=300.01", vitals.Poor, 10},
		{"metric=CLS&value=0.1", vitals.Good, 34},
	}
	for _, tc := range cases {
		rr := get(t, e.h, "/api/v1/classify?"+tc.query)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: status %d", tc.query, rr.Code)
		}
		var resp api.ClassifyResponse
		decode(t, rr, &resp)
		if resp.Status != tc.status || resp.Points != tc.points {
			t.Errorf("%s: got %v/%d, want %v/%d", tc.query, resp.Status, resp.Points, tc.status, tc.points)
		}
	}
	for _, q := range []string{"metric=lcp", "metric=x&value=1", "metric=lcp&value=-1", "metric=lcp&value=NaN"} {
		if rr := get(t, e.h, "/api/v1/classify?"+q); rr.Code != http.StatusBadRequest {
			t.Errorf("%s: got %d, want 400", q, rr.Code)
		}
	}
}

func TestAlerts(t *testing.T) {
	e := newEnv(t)
	s := e.open(t, "slow.com", slow, 1)
	e.alerts.Evaluate(s.Snapshot())

	var out []alerts.Alert
	decode(t, get(t, e.h, "/api/v1/alerts"), &out)
	if len(out) != 1 || out[0].RuleName != "low-score" || out[0].SessionID != s.ID {
		t.Errorf("alerts: %+v", out)
	}

	var health api.HealthResponse
	decode(t, get(t, e.h, "/api/v1/health"), &health)
	if health.AlertCount != 1 {
		t.Errorf("alert_count: got %d, want 1", health.AlertCount)
	}
}

func TestAlerts_NoEngine(t *testing.T) {
	h := api.New(store.New(time.Minute, 1), nil, api.Options{})
	rr := get(t, h, "/api/v1/alerts")
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Errorf("body: got %q, want []", rr.Body.String())
	}
}

// --- /api/v1/snapshot -------------------------------------------------------

func TestSnapshot(t *testing.T) {
	e := newEnv(t)
	e.open(t, "a.com", fast, 2)

	var resp api.SnapshotResponse
	decode(t, get(t, e.h, "/api/v1/snapshot"), &resp)
	if len(resp.Sessions) != 1 || resp.Health.SessionCount != 1 {
		t.Errorf("snapshot: %+v", resp)
	}
	if resp.GeneratedAt == "" {
		t.Error("generated_at should be set")
	}
	if resp.Alerts == nil {
		t.Error("alerts should be an empty array, not null")
	}
}

func TestDiagnostics_PushSessionDetails(t *testing.T) {
	e := newEnv(t)
	s, _, _ := e.st.Open("push.com", session.Desktop, nil)
	s.Observe(vitals.Sample{LCP: 1, FID: 10, CLS: 0.01}, time.Now())
	s.SetAgentInfo(85, &wire.CertStatus{Status: "warning", DaysLeft: 6, Issuer: "R3"})

	var resp api.SessionResponse
	decode(t, get(t, e.h, "/api/v1/sessions/"+s.ID), &resp)

	keys := map[string]string{}
	for _, d := range resp.Diagnostics {
		keys[d.Key] = d.Level
	}
	if keys["uptime"] != "warning" || keys["cert"] != "warning" {
		t.Errorf("diagnostics: %+v", resp.Diagnostics)
	}
	if _, ok := keys["healthy"]; ok {
		t.Error("all-clear hint must not appear alongside warnings")
	}
}

func TestDiagnostics_AllClear(t *testing.T) {
	e := newEnv(t)
	s := e.open(t, "fast.com", fast, 1)

	var resp api.SessionResponse
	decode(t, get(t, e.h, "/api/v1/sessions/"+s.ID), &resp)
	if len(resp.Diagnostics) != 1 || resp.Diagnostics[0].Key != "healthy" {
		t.Errorf("diagnostics: %+v", resp.Diagnostics)
	}
}

func TestContentTypeJSON(t *testing.T) {
	e := newEnv(t)
	for _, p := range []string{"/api/v1/health", "/api/v1/sessions", "/api/v1/thresholds", "/api/v1/snapshot"} {
		rr := get(t, e.h, p)
		if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("%s Content-Type: got %q", p, ct)
		}
	}
}
