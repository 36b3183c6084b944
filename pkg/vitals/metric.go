package vitals

import (
	"fmt"
	"strings"
)

// Metric identifies one of the three Core Web Vitals.
type Metric uint8

const (
	LCP Metric = iota + 1 // Largest Contentful Paint, seconds
	FID                   // First Input Delay, milliseconds
	CLS                   // Cumulative Layout Shift, unitless
)

// Metrics lists every metric in display order.
var Metrics = []Metric{LCP, FID, CLS}

// String returns the lowercase short name: "lcp", "fid" or "cls".
func (m Metric) String() string {
	switch m {
	case LCP:
		return "lcp"
	case FID:
		return "fid"
	case CLS:
		return "cls"
	default:
		return fmt.Sprintf("metric(%d)", uint8(m))
	}
}

// Title returns the long human-readable metric name.
func (m Metric) Title() string {
	switch m {
	case LCP:
		return "Largest Contentful Paint"
	case FID:
		return "First Input Delay"
	case CLS:
		return "Cumulative Layout Shift"
	default:
		return m.String()
	}
}

// Unit returns the display unit for values of m.
func (m Metric) Unit() string {
	switch m {
	case LCP:
		return "s"
	case FID:
		return "ms"
	default:
		return ""
	}
}

// Description is the one-line explanation shown next to a metric card.
func (m Metric) Description() string {
	switch m {
	case LCP:
		return "Measures loading performance. Good LCP scores are 2.5s or faster."
	case FID:
		return "Measures interactivity. Good FID scores are 100ms or less."
	case CLS:
		return "Measures visual stability. Good CLS scores are 0.1 or less."
	default:
		return ""
	}
}

// Valid reports whether m is one of LCP, FID or CLS.
func (m Metric) Valid() bool {
	return m >= LCP && m <= CLS
}

// ParseMetric parses "lcp", "fid" or "cls" (case-insensitive).
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lcp":
		return LCP, nil
	case "fid":
		return FID, nil
	case "cls":
		return CLS, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMetric, s)
	}
}

func (m Metric) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMetric, uint8(m))
	}
	return []byte(m.String()), nil
}

func (m *Metric) UnmarshalText(b []byte) error {
	v, err := ParseMetric(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Status is the qualitative classification of a metric value.
type Status uint8

const (
	Good Status = iota + 1
	NeedsImprovement
	Poor
)

// String returns "good", "needs-improvement" or "poor".
func (s Status) String() string {
	switch s {
	case Good:
		return "good"
	case NeedsImprovement:
		return "needs-improvement"
	case Poor:
		return "poor"
	default:
		return "unknown"
	}
}

// Label is the capitalised badge text.
func (s Status) Label() string {
	switch s {
	case Good:
		return "Good"
	case NeedsImprovement:
		return "Needs Improvement"
	case Poor:
		return "Poor"
	default:
		return "Unknown"
	}
}

// ParseStatus parses the String form of a Status.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "good":
		return Good, nil
	case "needs-improvement":
		return NeedsImprovement, nil
	case "poor":
		return Poor, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Impact ranks how much a suggestion is expected to move its metric.
type Impact uint8

const (
	High Impact = iota + 1
	Medium
	Low
)

func (i Impact) String() string {
	switch i {
	case High:
		return "high"
	case Medium:
		return "medium"
	case Low:
		return "low"
	default:
		return "unknown"
	}
}

func (i Impact) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

func (i *Impact) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "high":
		*i = High
	case "medium":
		*i = Medium
	case "low":
		*i = Low
	default:
		return fmt.Errorf("vitals: unknown impact %q", b)
	}
	return nil
}
