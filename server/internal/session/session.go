package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vitalsmon/vitalsmon/pkg/vitals"
	"github.com/vitalsmon/vitalsmon/pkg/wire"
)

// Source produces samples for a session. *vitals.Generator satisfies it.
type Source interface {
	Next(now time.Time) (vitals.Sample, error)
}

// Kind describes where a session's samples come from.
type Kind string

const (
	// KindSynthetic sessions pull from a Source on every tick.
	KindSynthetic Kind = "synthetic"
	// KindPush sessions are fed by agents through Observe.
	KindPush Kind = "push"
)

// Session is one monitored URL. It is safe for concurrent use.
type Session struct {
	ID        string
	URL       string
	Site      string
	ViewMode  ViewMode
	CreatedAt time.Time

	mu         sync.Mutex
	history    []vitals.Sample
	monitoring bool
	source     Source
	lastActive time.Time
	lastErr    string
	uptime     *float64
	cert       *wire.CertStatus
}

// New creates a session for rawURL. Monitoring starts enabled. A nil source
// makes a push session that only receives samples through Observe.
func New(rawURL string, mode ViewMode, src Source, now time.Time) (*Session, error) {
	u, site, err := NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}
	mode, err = ParseViewMode(string(mode))
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:         uuid.NewString(),
		URL:        u,
		Site:       site,
		CreatedAt:  now,
		ViewMode:   mode,
		monitoring: true,
		source:     src,
		lastActive: now,
	}, nil
}

// Kind reports whether the session is synthetic or push-fed.
func (s *Session) Kind() Kind {
	if s.source == nil {
		return KindPush
	}
	return KindSynthetic
}

// Tick pulls one sample from the source and appends it to the history. It is
// skipped while monitoring is paused and for push sessions. The returned bool
// reports whether a sample was recorded.
func (s *Session) Tick(now time.Time) (vitals.Sample, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.monitoring || s.source == nil {
		return vitals.Sample{}, false, nil
	}
	sample, err := s.source.Next(now)
	if err != nil {
		s.lastErr = err.Error()
		return vitals.Sample{}, false, fmt.Errorf("session %s: tick: %w", s.ID, err)
	}
	if sample.Timestamp.IsZero() {
		sample.Timestamp = now
	}
	s.record(sample, now)
	return sample, true, nil
}

// Observe appends an externally collected sample. Like Tick it is skipped
// while monitoring is paused.
func (s *Session) Observe(sample vitals.Sample, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.monitoring {
		return false
	}
	if sample.Timestamp.IsZero() {
		sample.Timestamp = now
	}
	s.record(sample, now)
	return true
}

// ReportError records a collection failure reported for this session.
func (s *Session) ReportError(msg string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = msg
	s.lastActive = now
}

// SetAgentInfo records the collection uptime and certificate state reported
// by the agent feeding a push session. A nil cert keeps the previous one.
func (s *Session) SetAgentInfo(uptimePct float64, cert *wire.CertStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uptime = &uptimePct
	if cert != nil {
		c := *cert
		s.cert = &c
	}
}

// record must be called with mu held.
func (s *Session) record(sample vitals.Sample, now time.Time) {
	s.history = vitals.Append(s.history, sample)
	s.lastErr = ""
	s.lastActive = now
}

// Start resumes monitoring.
func (s *Session) Start() { s.setMonitoring(true) }

// Stop pauses monitoring. The history is kept.
func (s *Session) Stop() { s.setMonitoring(false) }

// Toggle flips the monitoring flag and returns the new value.
func (s *Session) Toggle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.monitoring = !s.monitoring
	return s.monitoring
}

func (s *Session) setMonitoring(on bool) {
	s.mu.Lock()
	s.monitoring = on
	s.mu.Unlock()
}

// Monitoring reports whether ticks currently record samples.
func (s *Session) Monitoring() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.monitoring
}

// Touch marks the session as active at now.
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	if now.After(s.lastActive) {
		s.lastActive = now
	}
	s.mu.Unlock()
}

// LastActive returns the time of the most recent sample, error or Touch.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// View is a point-in-time copy of a session.
type View struct {
	ID         string                          `json:"id"`
	URL        string                          `json:"url"`
	Site       string                          `json:"site"`
	ViewMode   ViewMode                        `json:"view_mode"`
	Kind       Kind                            `json:"kind"`
	Monitoring bool                            `json:"monitoring"`
	CreatedAt  time.Time                       `json:"created_at"`
	LastActive time.Time                       `json:"last_active"`
	Current    *vitals.Sample                  `json:"current"`
	Score      int                             `json:"score"`
	Grade      vitals.Status                   `json:"grade,omitempty"`
	Statuses   map[vitals.Metric]vitals.Status `json:"statuses,omitempty"`
	History    []vitals.Sample                 `json:"history"`
	LastError  string                          `json:"last_error,omitempty"`
	UptimePct  *float64                        `json:"uptime_pct,omitempty"`
	Cert       *wire.CertStatus                `json:"cert,omitempty"`
}

// Snapshot returns a copy of the session state. Score is 0 and Current is nil
// until the first sample arrives.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		ID:         s.ID,
		URL:        s.URL,
		Site:       s.Site,
		ViewMode:   s.ViewMode,
		Kind:       s.Kind(),
		Monitoring: s.monitoring,
		CreatedAt:  s.CreatedAt,
		LastActive: s.lastActive,
		History:    append([]vitals.Sample{}, s.history...),
		LastError:  s.lastErr,
	}
	if s.uptime != nil {
		u := *s.uptime
		v.UptimePct = &u
	}
	if s.cert != nil {
		c := *s.cert
		v.Cert = &c
	}
	if cur, err := vitals.Latest(s.history); err == nil {
		v.Current = &cur
		v.Score = vitals.Score(cur)
		v.Grade = vitals.Grade(v.Score)
		v.Statuses = cur.Statuses()
	}
	return v
}
