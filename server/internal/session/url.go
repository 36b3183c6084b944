package session

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

var (
	// ErrInvalidURL is returned for URLs that are empty, unparsable, or use a
	// scheme other than http/https.
	ErrInvalidURL = errors.New("session: invalid url")

	// ErrNotFound is returned when a session ID is unknown.
	ErrNotFound = errors.New("session: not found")

	// ErrInvalidViewMode is returned for view modes other than desktop/mobile.
	ErrInvalidViewMode = errors.New("session: invalid view mode")
)

// NormalizeURL trims raw, prefixes https:// when no scheme is present and
// accepts only http and https URLs with a host. It returns the canonical URL
// and its site key (the registrable domain, or the bare host for IPs and
// single-label hosts such as localhost).
func NormalizeURL(raw string) (normalized, site string, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", "", fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	return u.String(), siteOf(host), nil
}

func siteOf(host string) string {
	if net.ParseIP(host) != nil {
		return host
	}
	site, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return site
}

// ViewMode is the device profile a session is measured under.
type ViewMode string

const (
	Desktop ViewMode = "desktop"
	Mobile  ViewMode = "mobile"
)

// ParseViewMode accepts "desktop" or "mobile"; empty means desktop.
func ParseViewMode(s string) (ViewMode, error) {
	switch ViewMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", Desktop:
		return Desktop, nil
	case Mobile:
		return Mobile, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidViewMode, s)
	}
}
