package api

import (
	"github.com/vitalsmon/vitalsmon/pkg/vitals"
	"github.com/vitalsmon/vitalsmon/pkg/wire"
	"github.com/vitalsmon/vitalsmon/server/internal/alerts"
)

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	OverallScore          float64 `json:"overall_score"`
	Grade                 string  `json:"grade"` // good | needs-improvement | poor | unknown
	SessionCount          int     `json:"session_count"`
	MonitoringCount       int     `json:"monitoring_count"`
	GoodCount             int     `json:"good_count"`
	NeedsImprovementCount int     `json:"needs_improvement_count"`
	PoorCount             int     `json:"poor_count"`
	PendingCount          int     `json:"pending_count"`
	AlertCount            int     `json:"alert_count"`
}

// CreateSessionRequest is the body of POST /api/v1/sessions.
type CreateSessionRequest struct {
	URL      string `json:"url"`
	ViewMode string `json:"view_mode,omitempty"`
}

// SessionResponse is one session in GET /api/v1/sessions or
// GET /api/v1/sessions/{id}.
type SessionResponse struct {
	ID           string           `json:"id"`
	URL          string           `json:"url"`
	Site         string           `json:"site"`
	ViewMode     string           `json:"view_mode"`
	Kind         string           `json:"kind"`
	Monitoring   bool             `json:"monitoring"`
	Score        int              `json:"score"`
	Grade        string           `json:"grade"`
	Metrics      []MetricResponse `json:"metrics"`
	HistoryLen   int              `json:"history_len"`
	UptimePct    *float64         `json:"uptime_pct,omitempty"`
	Cert         *wire.CertStatus `json:"cert,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`
	Diagnostics  []DiagnosticHint `json:"diagnostics"`
	CreatedAt    string           `json:"created_at"`  // RFC3339
	LastActive   string           `json:"last_active"` // RFC3339
	MeasuredAt   string           `json:"measured_at,omitempty"`
}

// MetricResponse is one metric card of a session.
type MetricResponse struct {
	Metric      vitals.Metric    `json:"metric"`
	Name        string           `json:"name"`
	Value       float64          `json:"value"`
	Display     string           `json:"display"`
	Unit        string           `json:"unit"`
	Status      vitals.Status    `json:"status"`
	Label       string           `json:"label"`
	Progress    float64          `json:"progress"`
	Threshold   vitals.Threshold `json:"threshold"`
	Description string           `json:"description"`
}

// HistoryPoint is one sample of GET /api/v1/sessions/{id}/history.
type HistoryPoint struct {
	Timestamp string                          `json:"timestamp"` // RFC3339Nano
	LCP       float64                         `json:"lcp"`
	FID       float64                         `json:"fid"`
	CLS       float64                         `json:"cls"`
	Score     int                             `json:"score"`
	Statuses  map[vitals.Metric]vitals.Status `json:"statuses"`
}

// HistoryResponse is the payload for GET /api/v1/sessions/{id}/history.
type HistoryResponse struct {
	SessionID string         `json:"session_id"`
	Capacity  int            `json:"capacity"`
	Samples   []HistoryPoint `json:"samples"`
}

// ThresholdResponse is one entry of GET /api/v1/thresholds.
type ThresholdResponse struct {
	Metric      vitals.Metric `json:"metric"`
	Name        string        `json:"name"`
	Unit        string        `json:"unit"`
	Good        float64       `json:"good"`
	Poor        float64       `json:"poor"`
	Description string        `json:"description"`
}

// ClassifyResponse is the payload for GET /api/v1/classify.
type ClassifyResponse struct {
	Metric   vitals.Metric `json:"metric"`
	Value    float64       `json:"value"`
	Display  string        `json:"display"`
	Status   vitals.Status `json:"status"`
	Label    string        `json:"label"`
	Points   int           `json:"points"`
	Progress float64       `json:"progress"`
}

// SnapshotResponse is the payload for GET /api/v1/snapshot and the data of
// every WebSocket broadcast.
type SnapshotResponse struct {
	Health      HealthResponse    `json:"health"`
	Sessions    []SessionResponse `json:"sessions"`
	Alerts      []*alerts.Alert   `json:"alerts"`
	GeneratedAt string            `json:"generated_at"` // RFC3339
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
