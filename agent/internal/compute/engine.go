package compute

import (
	"log/slog"
	"sync"
	"time"

	"github.com/vitalsmon/vitalsmon/agent/internal/collector"
	"github.com/vitalsmon/vitalsmon/pkg/vitals"
	"github.com/vitalsmon/vitalsmon/pkg/wire"
)

// uptimeWindow is the number of recent collection outcomes tracked for uptime %.
const uptimeWindow = 20

// StateUnknown is reported while a target has no sample to grade.
const StateUnknown = "unknown"

// Result is the derived state of one target after a collection, ready to be
// handed to the shipper.
type Result struct {
	TargetID  string
	URL       string
	ViewMode  string
	Timestamp time.Time

	// Sample is nil when the collection failed.
	Sample   *vitals.Sample
	Score    int
	State    string // vitals grade ("good", "needs-improvement", "poor") or "unknown"
	Statuses map[vitals.Metric]vitals.Status

	UptimePct    float64
	ErrorMessage string // non-empty when the collection failed; forwarded to the server
	Cert         *wire.CertStatus
}

// Report converts r into the wire message pushed to the server.
func (r *Result) Report() *wire.Report {
	rep := &wire.Report{
		TargetID:     r.TargetID,
		URL:          r.URL,
		ViewMode:     r.ViewMode,
		UptimePct:    r.UptimePct,
		ErrorMessage: r.ErrorMessage,
		Cert:         r.Cert,
	}
	if r.Sample != nil {
		s := *r.Sample
		rep.Sample = &s
	}
	return rep
}

// Engine maintains per-target uptime across collection cycles.
//
// All exported methods are safe for concurrent use.
type Engine struct {
	mu     sync.Mutex
	states map[string]*targetState
}

// NewEngine returns a ready-to-use Engine.
func NewEngine() *Engine {
	return &Engine{states: make(map[string]*targetState)}
}

// Process ingests a Reading and returns the derived Result.
//
// now is passed explicitly so callers (and tests) control the clock without
// sleeping. Use time.Now() in production.
func (e *Engine) Process(rd *collector.Reading, now time.Time) *Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.stateFor(rd.TargetID)
	success := rd.Err == nil && rd.Sample != nil
	st.record(success)

	out := &Result{
		TargetID:  rd.TargetID,
		URL:       rd.URL,
		ViewMode:  rd.ViewMode,
		Timestamp: now,
		UptimePct: st.uptimePct(),
		State:     StateUnknown,
	}

	if !success {
		msg := "no sample"
		if rd.Err != nil {
			msg = rd.Err.Error()
		}
		slog.Warn("compute: collection failed", "target", rd.TargetID, "err", msg)
		out.ErrorMessage = msg
		return out
	}

	s := *rd.Sample
	if s.Timestamp.IsZero() {
		s.Timestamp = now
	}
	out.Sample = &s
	out.Score = vitals.Score(s)
	out.State = vitals.Grade(out.Score).String()
	out.Statuses = s.Statuses()
	return out
}

// Forget drops the uptime history of a target removed from the config.
func (e *Engine) Forget(targetID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.states, targetID)
}

// targetState holds per-target uptime history.
type targetState struct {
	history []bool // collection outcomes, newest last
}

func (e *Engine) stateFor(id string) *targetState {
	if st, ok := e.states[id]; ok {
		return st
	}
	st := &targetState{}
	e.states[id] = st
	return st
}

func (st *targetState) record(success bool) {
	if len(st.history) >= uptimeWindow {
		st.history = st.history[1:]
	}
	st.history = append(st.history, success)
}

func (st *targetState) uptimePct() float64 {
	if len(st.history) == 0 {
		return 100 // assume up before first observation
	}
	var ok int
	for _, s := range st.history {
		if s {
			ok++
		}
	}
	return float64(ok) / float64(len(st.history)) * 100
}
