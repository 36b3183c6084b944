package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/vitalsmon/vitalsmon/agent/internal/config"
	"github.com/vitalsmon/vitalsmon/pkg/vitals"
)

// source yields one sample per call; *vitals.Generator satisfies it.
type source interface {
	Next(now time.Time) (vitals.Sample, error)
}

type mockCollector struct {
	target config.Target
	src    source
	now    func() time.Time
}

func newMock(t config.Target, src source, now func() time.Time) *mockCollector {
	return &mockCollector{target: t, src: src, now: now}
}

// Collect draws the next synthetic sample.
func (c *mockCollector) Collect(_ context.Context) (*Reading, error) {
	r := newReading(c.target, c.now())
	s, err := c.src.Next(r.CollectedAt)
	if err != nil {
		r.Err = fmt.Errorf("mock collect %q: %w", c.target.ID, err)
		return r, nil
	}
	r.Sample = &s
	return r, nil
}
