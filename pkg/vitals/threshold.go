package vitals

import (
	"fmt"
	"math"
)

// Threshold is the pair of cutoffs that split a metric's range into
// good / needs-improvement / poor. Good must be strictly less than Poor.
type Threshold struct {
	Good float64 `json:"good" yaml:"good"`
	Poor float64 `json:"poor" yaml:"poor"`
}

// Validate returns ErrInvalidThreshold when Good >= Poor or either bound is NaN.
func (t Threshold) Validate() error {
	if math.IsNaN(t.Good) || math.IsNaN(t.Poor) || t.Good >= t.Poor {
		return fmt.Errorf("%w: good=%v poor=%v", ErrInvalidThreshold, t.Good, t.Poor)
	}
	return nil
}

// Thresholds maps each metric to its cutoffs.
type Thresholds map[Metric]Threshold

// DefaultThresholds are the published Core Web Vitals cutoffs.
var DefaultThresholds = Thresholds{
	LCP: {Good: 2.5, Poor: 4.0},
	FID: {Good: 100, Poor: 300},
	CLS: {Good: 0.1, Poor: 0.25},
}

// ThresholdFor returns the default threshold for m.
func ThresholdFor(m Metric) Threshold {
	return DefaultThresholds[m]
}

// Validate checks every entry and that all three metrics are present.
func (ts Thresholds) Validate() error {
	for _, m := range Metrics {
		t, ok := ts[m]
		if !ok {
			return fmt.Errorf("%w: missing %s", ErrInvalidThreshold, m)
		}
		if err := t.Validate(); err != nil {
			return fmt.Errorf("%s: %w", m, err)
		}
	}
	return nil
}

// Classify maps value to a Status. Both bounds are inclusive on the better side:
// value <= Good is good, value <= Poor is needs-improvement, anything above is poor.
func Classify(value float64, t Threshold) Status {
	switch {
	case value <= t.Good:
		return Good
	case value <= t.Poor:
		return NeedsImprovement
	default:
		return Poor
	}
}

// Progress is the fill fraction of a metric card's bar: value relative to
// one and a half times the poor cutoff, clamped to [0, 1].
func Progress(value float64, t Threshold) float64 {
	if t.Poor <= 0 {
		return 0
	}
	p := value / (t.Poor * 1.5)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// Format renders value with the precision used on the dashboard: three
// decimals for CLS and for sub-unit values, none otherwise.
func Format(m Metric, value float64) string {
	if m == CLS || value < 1 {
		return fmt.Sprintf("%.3f%s", value, m.Unit())
	}
	return fmt.Sprintf("%.0f%s", value, m.Unit())
}
