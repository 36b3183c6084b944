package vitals

import (
	"math/rand"
	"sync"
	"time"
)

// Ranges of the synthetic samples produced by Generator. Each metric is drawn
// uniformly from [min, min+span).
const (
	genLCPMin  = 1.2
	genLCPSpan = 2.8
	genFIDMin  = 50.0
	genFIDSpan = 200.0
	genCLSMin  = 0.05
	genCLSSpan = 0.3
)

// Generator produces synthetic samples for demo sessions and the agent's
// mock collector. It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewGenerator returns a Generator seeded from the current time.
func NewGenerator() *Generator {
	return NewGeneratorFrom(rand.New(rand.NewSource(time.Now().UnixNano()))) //nolint:gosec // not crypto
}

// NewGeneratorFrom returns a Generator that draws from rnd. Tests pass a
// fixed-seed source to get a reproducible sequence.
func NewGeneratorFrom(rnd *rand.Rand) *Generator {
	return &Generator{rnd: rnd}
}

// Next returns a new sample stamped with now.
func (g *Generator) Next(now time.Time) (Sample, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Sample{
		LCP:       genLCPMin + g.rnd.Float64()*genLCPSpan,
		FID:       genFIDMin + g.rnd.Float64()*genFIDSpan,
		CLS:       genCLSMin + g.rnd.Float64()*genCLSSpan,
		Timestamp: now,
	}, nil
}
