package exporter

import (
	"log/slog"
	"net/http"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/vitalsmon/vitalsmon/pkg/vitals"
	"github.com/vitalsmon/vitalsmon/server/internal/alerts"
	"github.com/vitalsmon/vitalsmon/server/internal/session"
	"github.com/vitalsmon/vitalsmon/server/internal/store"
)

// Metric family names.
const (
	MetricSessions     = "vitals_sessions"
	MetricMonitoring   = "vitals_monitoring"
	MetricScore        = "vitals_score"
	MetricLCP          = "vitals_lcp_seconds"
	MetricFID          = "vitals_fid_milliseconds"
	MetricCLS          = "vitals_cls"
	MetricStatus       = "vitals_metric_status"
	MetricAlertsFiring = "vitals_alerts_firing"
)

// Exporter renders the store as gauges. Sessions without a sample only
// contribute vitals_monitoring.
type Exporter struct {
	store  *store.Store
	alerts *alerts.Engine
	ts     vitals.Thresholds
}

// New returns an Exporter. eng may be nil; ts nil means the defaults.
func New(st *store.Store, eng *alerts.Engine, ts vitals.Thresholds) *Exporter {
	if ts == nil {
		ts = vitals.DefaultThresholds
	}
	return &Exporter{store: st, alerts: eng, ts: ts}
}

// Gather builds the metric families for the current state, sessions in
// store order.
func (e *Exporter) Gather() []*dto.MetricFamily {
	sessions := e.store.List()

	monitoring := family(MetricMonitoring, "1 while the session is collecting samples.")
	score := family(MetricScore, "Aggregate performance score, 0-100.")
	lcp := family(MetricLCP, "Latest Largest Contentful Paint in seconds.")
	fid := family(MetricFID, "Latest First Input Delay in milliseconds.")
	cls := family(MetricCLS, "Latest Cumulative Layout Shift.")
	status := family(MetricStatus, "Latest classification per metric: 1 good, 2 needs-improvement, 3 poor.")

	for _, s := range sessions {
		v := s.Snapshot()
		labels := sessionLabels(v)
		monitoring.Metric = append(monitoring.Metric, gauge(labels, boolValue(v.Monitoring)))
		if v.Current == nil {
			continue
		}
		cur := *v.Current
		score.Metric = append(score.Metric, gauge(labels, float64(v.Score)))
		lcp.Metric = append(lcp.Metric, gauge(labels, cur.LCP))
		fid.Metric = append(fid.Metric, gauge(labels, cur.FID))
		cls.Metric = append(cls.Metric, gauge(labels, cur.CLS))
		for _, m := range vitals.Metrics {
			st := vitals.Classify(cur.Value(m), e.ts[m])
			withMetric := append(append([]*dto.LabelPair(nil), labels...), label("metric", m.String()))
			status.Metric = append(status.Metric, gauge(withMetric, float64(st)))
		}
	}

	count := family(MetricSessions, "Number of live sessions.")
	count.Metric = []*dto.Metric{gauge(nil, float64(len(sessions)))}

	out := []*dto.MetricFamily{count}
	for _, f := range []*dto.MetricFamily{monitoring, score, lcp, fid, cls, status} {
		if len(f.Metric) > 0 {
			out = append(out, f)
		}
	}
	if e.alerts != nil {
		firing := family(MetricAlertsFiring, "Number of alerts currently firing.")
		firing.Metric = []*dto.Metric{gauge(nil, float64(e.alerts.Firing()))}
		out = append(out, firing)
	}
	return out
}

// ServeHTTP writes Gather's output in the format negotiated from Accept.
func (e *Exporter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	format := expfmt.Negotiate(r.Header)
	w.Header().Set("Content-Type", string(format))
	enc := expfmt.NewEncoder(w, format)
	for _, mf := range e.Gather() {
		if err := enc.Encode(mf); err != nil {
			slog.Warn("exporter: encode failed", "family", mf.GetName(), "err", err)
			return
		}
	}
}

func family(name, help string) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: proto.String(name),
		Help: proto.String(help),
		Type: dto.MetricType_GAUGE.Enum(),
	}
}

func gauge(labels []*dto.LabelPair, v float64) *dto.Metric {
	return &dto.Metric{
		Label: labels,
		Gauge: &dto.Gauge{Value: proto.Float64(v)},
	}
}

func label(name, value string) *dto.LabelPair {
	return &dto.LabelPair{Name: proto.String(name), Value: proto.String(value)}
}

func sessionLabels(v session.View) []*dto.LabelPair {
	return []*dto.LabelPair{
		label("id", v.ID),
		label("url", v.URL),
		label("view_mode", string(v.ViewMode)),
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
