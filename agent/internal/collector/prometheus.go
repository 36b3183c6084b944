package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/sony/gobreaker"

	"github.com/vitalsmon/vitalsmon/agent/internal/config"
	"github.com/vitalsmon/vitalsmon/pkg/vitals"
)

// RUM exporter metric names.
const (
	// Largest Contentful Paint, seconds.
	promLCP = "web_vitals_lcp_seconds"

	// First Input Delay, milliseconds.
	promFID = "web_vitals_fid_milliseconds"

	// Cumulative Layout Shift, unitless.
	promCLS = "web_vitals_cls"

	// Summary quantile read from each family.
	promQuantile = 0.75
)

// Breaker tuning: trip after consecutive failures, probe again after the
// open timeout.
const (
	breakerFailures = 3
	breakerTimeout  = 30 * time.Second
)

var promFamilies = map[vitals.Metric]string{
	vitals.LCP: promLCP,
	vitals.FID: promFID,
	vitals.CLS: promCLS,
}

var errNoSeries = errors.New("no usable series")

type promCollector struct {
	target  config.Target
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	now     func() time.Time
}

func newProm(t config.Target, client *http.Client) *promCollector {
	return &promCollector{
		target:  t,
		client:  client,
		breaker: newBreaker(t.ID, breakerFailures, breakerTimeout),
		now:     time.Now,
	}
}

func newBreaker(name string, failures uint32, timeout time.Duration) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("collector: breaker state changed",
				"target", name, "from", from.String(), "to", to.String())
		},
	})
}

// Collect scrapes the exporter and extracts the three vitals for the target.
func (c *promCollector) Collect(ctx context.Context) (*Reading, error) {
	r := newReading(c.target, c.now())

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return fetchMetrics(ctx, c.client, c.target.Endpoint)
	})
	if err != nil {
		r.Err = fmt.Errorf("prometheus collect %q: %w", c.target.ID, err)
		slog.Warn("collector: prometheus fetch failed", "target", c.target.ID, "err", err)
		return r, nil
	}
	mfs := out.(map[string]*dto.MetricFamily)

	s := vitals.Sample{Timestamp: r.CollectedAt}
	for _, m := range vitals.Metrics {
		name := promFamilies[m]
		v, err := pick(mfs[name], c.target.URL)
		if err != nil {
			r.Err = fmt.Errorf("prometheus collect %q: %s: %w", c.target.ID, name, err)
			return r, nil
		}
		switch m {
		case vitals.LCP:
			s.LCP = v
		case vitals.FID:
			s.FID = v
		case vitals.CLS:
			s.CLS = v
		}
	}
	r.Sample = &s
	return r, nil
}

// pick returns the first readable value in mf for pageURL. Series with a url
// label must match pageURL; unlabelled series match any page.
func pick(mf *dto.MetricFamily, pageURL string) (float64, error) {
	if mf == nil {
		return 0, errNoSeries
	}
	want := canonicalURL(pageURL)
	for _, m := range mf.GetMetric() {
		if u, ok := labelValue(m, "url"); ok && canonicalURL(u) != want {
			continue
		}
		v, ok := value(m)
		if !ok {
			continue
		}
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return 0, fmt.Errorf("invalid value %v", v)
		}
		return v, nil
	}
	return 0, errNoSeries
}

// value reads a gauge, untyped, or the p75 of a summary.
func value(m *dto.Metric) (float64, bool) {
	switch {
	case m.Gauge != nil:
		return m.Gauge.GetValue(), true
	case m.Untyped != nil:
		return m.Untyped.GetValue(), true
	case m.Summary != nil:
		for _, q := range m.Summary.GetQuantile() {
			if q.GetQuantile() == promQuantile {
				return q.GetValue(), true
			}
		}
	}
	return 0, false
}

func labelValue(m *dto.Metric, name string) (string, bool) {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue(), true
		}
	}
	return "", false
}

// canonicalURL drops the scheme, a trailing slash and case so that
// "https://Shop.example.com/" and "shop.example.com" compare equal.
func canonicalURL(u string) string {
	u = strings.ToLower(strings.TrimSpace(u))
	u = strings.TrimPrefix(u, "https://")
	u = strings.TrimPrefix(u, "http://")
	return strings.TrimSuffix(u, "/")
}
