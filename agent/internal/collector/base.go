package collector

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/vitalsmon/vitalsmon/agent/internal/config"
	"github.com/vitalsmon/vitalsmon/pkg/vitals"
)

const defaultFetchTimeout = 10 * time.Second

// Reading is the output of one collection cycle for a single target.
type Reading struct {
	TargetID    string
	URL         string
	ViewMode    string
	CollectedAt time.Time

	// Sample is nil when Err is set.
	Sample *vitals.Sample

	// Err is non-nil if the collection failed (connectivity, auth, parse,
	// missing metric, open breaker).
	Err error
}

// Collector is implemented by every reading source.
type Collector interface {
	Collect(ctx context.Context) (*Reading, error)
}

// New returns the Collector for t. For the prometheus collector the HTTP
// client is built once and reused across collections.
func New(t config.Target) (Collector, error) {
	switch t.Collector {
	case config.CollectorMock, "":
		return newMock(t, vitals.NewGenerator(), time.Now), nil
	case config.CollectorPrometheus:
		client, err := buildHTTPClient(t)
		if err != nil {
			return nil, fmt.Errorf("collector %q: build http client: %w", t.ID, err)
		}
		return newProm(t, client), nil
	default:
		return nil, fmt.Errorf("collector: unsupported kind %q", t.Collector)
	}
}

func newReading(t config.Target, now time.Time) *Reading {
	return &Reading{
		TargetID:    t.ID,
		URL:         t.URL,
		ViewMode:    t.ViewMode,
		CollectedAt: now.UTC(),
	}
}

// authRoundTripper injects authentication headers into every outgoing request.
type authRoundTripper struct {
	base http.RoundTripper
	auth config.AuthConfig
}

func (rt *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	switch rt.auth.Mode {
	case "apikey":
		req = req.Clone(req.Context())
		req.Header.Set(rt.auth.EffectiveHeader(), rt.auth.Key())
	case "bearer":
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+rt.auth.Token())
	case "basic":
		req = req.Clone(req.Context())
		req.SetBasicAuth(rt.auth.Username, rt.auth.Password())
	}
	return rt.base.RoundTrip(req)
}

// buildHTTPClient constructs an http.Client for the target's auth and TLS settings.
func buildHTTPClient(t config.Target) (*http.Client, error) {
	tlsCfg := &tls.Config{
		InsecureSkipVerify: t.TLS.InsecureSkipVerify, //nolint:gosec // user-configured
	}

	if t.Auth.Mode == "mtls" {
		cert, err := tls.LoadX509KeyPair(t.Auth.CertFile, t.Auth.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client cert: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}

		if t.Auth.CAFile != "" {
			caPEM, err := os.ReadFile(t.Auth.CAFile)
			if err != nil {
				return nil, fmt.Errorf("read ca file: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(caPEM) {
				return nil, fmt.Errorf("no valid certs found in ca file %q", t.Auth.CAFile)
			}
			tlsCfg.RootCAs = pool
		}
	}

	return &http.Client{
		Transport: &authRoundTripper{
			base: &http.Transport{TLSClientConfig: tlsCfg},
			auth: t.Auth,
		},
		Timeout: defaultFetchTimeout,
	}, nil
}

// fetchMetrics performs an HTTP GET to url and returns parsed metric families.
func fetchMetrics(ctx context.Context, client *http.Client, url string) (map[string]*dto.MetricFamily, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return parseMetrics(resp.Body)
}

// parseMetrics decodes a Prometheus text exposition from r into metric families.
// A partial result with a non-fatal parse warning is still returned successfully.
func parseMetrics(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse prometheus text: %w", err)
	}
	return mfs, nil
}
