package api

import (
	"math"
	"time"

	"github.com/vitalsmon/vitalsmon/pkg/vitals"
	"github.com/vitalsmon/vitalsmon/server/internal/alerts"
	"github.com/vitalsmon/vitalsmon/server/internal/session"
	"github.com/vitalsmon/vitalsmon/server/internal/store"
)

// BuildSnapshot assembles the full dashboard payload: health, every session
// and the active alerts. eng may be nil; ts nil means default thresholds.
func BuildSnapshot(st *store.Store, eng *alerts.Engine, ts vitals.Thresholds, now time.Time) SnapshotResponse {
	if ts == nil {
		ts = vitals.DefaultThresholds
	}
	sessions := st.List()
	views := make([]session.View, 0, len(sessions))
	out := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		v := s.Snapshot()
		views = append(views, v)
		out = append(out, toSessionResponse(v, ts))
	}

	active := []*alerts.Alert{}
	if eng != nil {
		active = eng.Active()
	}
	return SnapshotResponse{
		Health:      buildHealth(views, eng),
		Sessions:    out,
		Alerts:      active,
		GeneratedAt: now.UTC().Format(time.RFC3339),
	}
}

// buildHealth averages the scores of sessions that have a sample.
func buildHealth(views []session.View, eng *alerts.Engine) HealthResponse {
	resp := HealthResponse{SessionCount: len(views), Grade: "unknown"}
	if eng != nil {
		resp.AlertCount = eng.Firing()
	}

	total, scored := 0, 0
	for _, v := range views {
		if v.Monitoring {
			resp.MonitoringCount++
		}
		if v.Current == nil {
			resp.PendingCount++
			continue
		}
		total += v.Score
		scored++
		switch v.Grade {
		case vitals.Good:
			resp.GoodCount++
		case vitals.NeedsImprovement:
			resp.NeedsImprovementCount++
		default:
			resp.PoorCount++
		}
	}
	if scored > 0 {
		avg := float64(total) / float64(scored)
		resp.OverallScore = math.Round(avg*10) / 10
		resp.Grade = vitals.Grade(int(math.Round(avg))).String()
	}
	return resp
}

// toSessionResponse maps a session view to its JSON representation.
func toSessionResponse(v session.View, ts vitals.Thresholds) SessionResponse {
	resp := SessionResponse{
		ID:           v.ID,
		URL:          v.URL,
		Site:         v.Site,
		ViewMode:     string(v.ViewMode),
		Kind:         string(v.Kind),
		Monitoring:   v.Monitoring,
		Score:        v.Score,
		Grade:        "unknown",
		Metrics:      []MetricResponse{},
		HistoryLen:   len(v.History),
		UptimePct:    v.UptimePct,
		Cert:         v.Cert,
		ErrorMessage: v.LastError,
		Diagnostics:  computeDiagnostics(v, ts),
		CreatedAt:    v.CreatedAt.UTC().Format(time.RFC3339),
		LastActive:   v.LastActive.UTC().Format(time.RFC3339),
	}
	if v.Current == nil {
		return resp
	}
	resp.Grade = v.Grade.String()
	resp.MeasuredAt = v.Current.Timestamp.UTC().Format(time.RFC3339Nano)
	for _, m := range vitals.Metrics {
		resp.Metrics = append(resp.Metrics, metricResponse(m, v.Current.Value(m), ts[m]))
	}
	return resp
}

func metricResponse(m vitals.Metric, value float64, t vitals.Threshold) MetricResponse {
	st := vitals.Classify(value, t)
	return MetricResponse{
		Metric:      m,
		Name:        m.Title(),
		Value:       value,
		Display:     vitals.Format(m, value),
		Unit:        m.Unit(),
		Status:      st,
		Label:       st.Label(),
		Progress:    vitals.Progress(value, t),
		Threshold:   t,
		Description: m.Description(),
	}
}

func toHistoryResponse(v session.View, ts vitals.Thresholds) HistoryResponse {
	points := make([]HistoryPoint, 0, len(v.History))
	for _, s := range v.History {
		statuses := make(map[vitals.Metric]vitals.Status, len(vitals.Metrics))
		for _, m := range vitals.Metrics {
			statuses[m] = vitals.Classify(s.Value(m), ts[m])
		}
		points = append(points, HistoryPoint{
			Timestamp: s.Timestamp.UTC().Format(time.RFC3339Nano),
			LCP:       s.LCP,
			FID:       s.FID,
			CLS:       s.CLS,
			Score:     vitals.Score(s),
			Statuses:  statuses,
		})
	}
	return HistoryResponse{SessionID: v.ID, Capacity: vitals.HistoryCap, Samples: points}
}
