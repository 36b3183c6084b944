package vitals

import "time"

// Sample is one measurement of the three vitals. It is a value type and is
// never modified after it has been produced.
type Sample struct {
	LCP       float64   `json:"lcp"` // seconds
	FID       float64   `json:"fid"` // milliseconds
	CLS       float64   `json:"cls"`
	Timestamp time.Time `json:"timestamp"`
}

// Value returns the reading for m, or 0 for an unknown metric.
func (s Sample) Value(m Metric) float64 {
	switch m {
	case LCP:
		return s.LCP
	case FID:
		return s.FID
	case CLS:
		return s.CLS
	default:
		return 0
	}
}

// Status classifies the reading for m against the default thresholds.
func (s Sample) Status(m Metric) Status {
	return Classify(s.Value(m), ThresholdFor(m))
}

// Statuses classifies all three metrics against the default thresholds.
func (s Sample) Statuses() map[Metric]Status {
	out := make(map[Metric]Status, len(Metrics))
	for _, m := range Metrics {
		out[m] = s.Status(m)
	}
	return out
}
