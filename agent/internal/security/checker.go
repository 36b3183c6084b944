package security

import (
	"context"
	"crypto/tls"
	"math"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/vitalsmon/vitalsmon/agent/internal/config"
	"github.com/vitalsmon/vitalsmon/pkg/wire"
)

// Certificate states reported in wire.CertStatus.Status.
const (
	StatusOK      = "ok"
	StatusWarning = "warning"
	StatusExpired = "expired"
	StatusError   = "error"
)

// warnDays is how close to expiry a certificate is flagged.
const warnDays = 30

const dialTimeout = 10 * time.Second

// Check dials the monitored page over TLS and returns a CertStatus
// describing the leaf certificate.
//
// Returns nil for plain-http URLs; there is no certificate to inspect. URLs
// without a scheme are treated as https, matching the server's session keys.
func Check(ctx context.Context, t config.Target, now time.Time) *wire.CertStatus {
	raw := strings.TrimSpace(t.URL)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || !strings.EqualFold(u.Scheme, "https") || u.Hostname() == "" {
		return nil
	}

	host := u.Host
	if u.Port() == "" {
		host = net.JoinHostPort(u.Hostname(), "443")
	}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{},
		Config: &tls.Config{
			ServerName:         u.Hostname(),
			InsecureSkipVerify: t.TLS.InsecureSkipVerify, //nolint:gosec // user-configured
		},
	}

	netConn, err := dialer.DialContext(dialCtx, "tcp", host)
	if err != nil {
		return &wire.CertStatus{Status: StatusError}
	}
	conn := netConn.(*tls.Conn)
	defer conn.Close()

	peerCerts := conn.ConnectionState().PeerCertificates
	if len(peerCerts) == 0 {
		return &wire.CertStatus{Status: StatusError}
	}

	leaf := peerCerts[0]
	daysLeft := leaf.NotAfter.Sub(now).Hours() / 24

	cs := &wire.CertStatus{
		NotAfter: leaf.NotAfter.UTC(),
		Issuer:   leaf.Issuer.CommonName,
		DaysLeft: int(math.Floor(daysLeft)),
	}
	switch {
	case daysLeft <= 0:
		cs.Status = StatusExpired
	case daysLeft <= warnDays:
		cs.Status = StatusWarning
	default:
		cs.Status = StatusOK
	}
	return cs
}

// Checker caches Check results per target and refreshes them at most once
// per interval.
type Checker struct {
	interval time.Duration
	check    func(context.Context, config.Target, time.Time) *wire.CertStatus

	mu     sync.Mutex
	cached map[string]cached
}

type cached struct {
	status    *wire.CertStatus
	checkedAt time.Time
}

// NewChecker returns a Checker that re-inspects each target every interval.
func NewChecker(interval time.Duration) *Checker {
	return &Checker{
		interval: interval,
		check:    Check,
		cached:   make(map[string]cached),
	}
}

// Status returns the certificate status for t, dialling only when the cached
// result is older than the interval. The dial happens outside the lock.
func (c *Checker) Status(ctx context.Context, t config.Target, now time.Time) *wire.CertStatus {
	c.mu.Lock()
	e, ok := c.cached[t.ID]
	c.mu.Unlock()
	if ok && now.Sub(e.checkedAt) < c.interval {
		return e.status
	}

	cs := c.check(ctx, t, now)

	c.mu.Lock()
	c.cached[t.ID] = cached{status: cs, checkedAt: now}
	c.mu.Unlock()
	return cs
}

// Forget drops the cached result for a removed target.
func (c *Checker) Forget(targetID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cached, targetID)
}
