package alerts

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vitalsmon/vitalsmon/pkg/vitals"
	"github.com/vitalsmon/vitalsmon/server/internal/config"
	"github.com/vitalsmon/vitalsmon/server/internal/session"
)

const (
	defaultCooldown   = 15 * time.Minute
	maxHistoryLen     = 200
	recentWindowHours = 1
)

// Alert represents a single alert event produced by the rule engine.
type Alert struct {
	ID         string     `json:"id"`
	RuleName   string     `json:"rule_name"`
	SessionID  string     `json:"session_id"`
	URL        string     `json:"url"`
	Severity   string     `json:"severity"`
	Message    string     `json:"message"`
	Value      float64    `json:"value"`
	FiredAt    time.Time  `json:"fired_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	State      string     `json:"state"` // "firing" | "resolved"
}

// alertKey identifies one rule firing on one session.
type alertKey struct {
	rule    string
	session string
}

type rule struct {
	config.AlertRule
	cond condition
}

// Engine evaluates alert rules against session snapshots and delivers
// webhook notifications when rules fire or resolve.
//
// Engine is safe for concurrent use.
type Engine struct {
	mu         sync.Mutex
	thresholds vitals.Thresholds
	rules      []rule
	webhooks   []config.WebhookConfig
	active     map[alertKey]*Alert
	lastFire   map[alertKey]time.Time // last fire time per key (for cooldown)
	history    []*Alert               // recently resolved alerts

	client *http.Client
	now    func() time.Time
	wg     sync.WaitGroup
}

// New creates an Engine from the server alert configuration. Status fields
// are classified with ts (nil means the default thresholds). Rules whose
// condition does not parse are logged and skipped. An Engine with no rules
// is valid; Evaluate becomes a no-op.
func New(cfg config.AlertsConfig, ts vitals.Thresholds) *Engine {
	if ts == nil {
		ts = vitals.DefaultThresholds
	}
	e := &Engine{
		thresholds: ts,
		active:     make(map[alertKey]*Alert),
		lastFire:   make(map[alertKey]time.Time),
		client:     &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
	}
	e.Reload(cfg)
	return e
}

// Reload swaps the rule set and webhook targets. Active alerts and cooldown
// state of rules that no longer exist are dropped.
func (e *Engine) Reload(cfg config.AlertsConfig) {
	rules := make([]rule, 0, len(cfg.Rules))
	names := make(map[string]bool, len(cfg.Rules))
	for _, r := range cfg.Rules {
		c, err := parseCondition(r.Condition)
		if err != nil {
			slog.Warn("alerts: skipping rule", "rule", r.Name, "err", err)
			continue
		}
		rules = append(rules, rule{AlertRule: r, cond: c})
		names[r.Name] = true
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = rules
	e.webhooks = append([]config.WebhookConfig(nil), cfg.Webhooks...)
	for key := range e.active {
		if !names[key.rule] {
			delete(e.active, key)
		}
	}
	for key := range e.lastFire {
		if !names[key.rule] {
			delete(e.lastFire, key)
		}
	}
}

// Validate reports the first rule whose condition does not parse.
func Validate(cfg config.AlertsConfig) error {
	for _, r := range cfg.Rules {
		if _, err := parseCondition(r.Condition); err != nil {
			return fmt.Errorf("rule %q: %w", r.Name, err)
		}
	}
	return nil
}

// Evaluate tests all rules against the current sample of v. Views without a
// sample are ignored. Firing and resolving alerts trigger asynchronous
// webhook delivery.
func (e *Engine) Evaluate(v session.View) {
	if v.Current == nil {
		return
	}
	now := e.now()

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, r := range e.rules {
		key := alertKey{rule: r.Name, session: v.ID}
		fires, value := r.cond.eval(*v.Current, e.thresholds)

		if fires {
			cooldown := r.Cooldown
			if cooldown <= 0 {
				cooldown = defaultCooldown
			}
			if _, firing := e.active[key]; firing || now.Sub(e.lastFire[key]) <= cooldown {
				continue
			}
			sev := r.Severity
			if sev == "" {
				sev = "warning"
			}
			a := &Alert{
				ID:        uuid.NewString(),
				RuleName:  r.Name,
				SessionID: v.ID,
				URL:       v.URL,
				Severity:  sev,
				Value:     value,
				Message: fmt.Sprintf("[%s] %s fired on %s: %s (value %s)",
					sev, r.Name, v.URL, r.Condition, formatValue(r.cond.field, value)),
				FiredAt: now,
				State:   "firing",
			}
			e.active[key] = a
			e.lastFire[key] = now
			slog.Warn("alerts: fired", "rule", r.Name, "session", v.ID, "url", v.URL, "value", value, "severity", sev)
			e.dispatch(*a)
			continue
		}

		if a, ok := e.active[key]; ok {
			resolved := now
			a.State = "resolved"
			a.ResolvedAt = &resolved
			delete(e.active, key)

			e.history = append(e.history, a)
			if len(e.history) > maxHistoryLen {
				e.history = e.history[len(e.history)-maxHistoryLen:]
			}
			slog.Info("alerts: resolved", "rule", r.Name, "session", v.ID, "url", v.URL)
			e.dispatch(*a)
		}
	}
}

// Forget drops firing alerts and cooldown state for a deleted session
// without notifying.
func (e *Engine) Forget(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for key := range e.active {
		if key.session == sessionID {
			delete(e.active, key)
		}
	}
	for key := range e.lastFire {
		if key.session == sessionID {
			delete(e.lastFire, key)
		}
	}
}

// dispatch must be called with mu held; delivery runs on its own goroutine.
func (e *Engine) dispatch(a Alert) {
	hooks := e.webhooks
	if len(hooks) == 0 {
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.deliver(hooks, &a)
	}()
}

// Wait blocks until all in-flight webhook deliveries have finished.
func (e *Engine) Wait() { e.wg.Wait() }

// Active returns copies of all currently firing alerts plus any alerts
// resolved within the past hour, sorted newest first.
func (e *Engine) Active() []*Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-recentWindowHours * time.Hour)
	out := make([]*Alert, 0, len(e.active))

	for _, a := range e.active {
		cp := *a
		out = append(out, &cp)
	}
	for _, a := range e.history {
		if a.ResolvedAt != nil && a.ResolvedAt.After(cutoff) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FiredAt.After(out[j].FiredAt) })
	return out
}

// Firing returns the number of alerts currently firing.
func (e *Engine) Firing() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}

func formatValue(field string, v float64) string {
	if m, err := vitals.ParseMetric(field); err == nil {
		return vitals.Format(m, v)
	}
	return fmt.Sprintf("%.0f", v)
}
