package vitals

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleN(i int) Sample {
	return Sample{LCP: float64(i), Timestamp: testNow.Add(time.Duration(i) * 2 * time.Second)}
}

func TestAppend_KeepsLastTwenty(t *testing.T) {
	var h []Sample
	for i := 0; i < 25; i++ {
		h = Append(h, sampleN(i))
	}
	require.Len(t, h, HistoryCap)
	for i, s := range h {
		assert.Equal(t, float64(i+5), s.LCP, "index %d", i)
	}
}

func TestAppend_DoesNotMutateInput(t *testing.T) {
	var h []Sample
	for i := 0; i < HistoryCap; i++ {
		h = Append(h, sampleN(i))
	}
	before := append([]Sample(nil), h...)

	next := Append(h, sampleN(99))

	assert.Equal(t, before, h)
	require.Len(t, next, HistoryCap)
	assert.Equal(t, 99.0, next[len(next)-1].LCP)

	// The result must not share a backing array with the input.
	next[0].LCP = -1
	assert.Equal(t, before, h)
}

func TestAppend_SpareCapacityNotShared(t *testing.T) {
	h := make([]Sample, 1, 10)
	a := Append(h, sampleN(1))
	b := Append(h, sampleN(2))
	assert.Equal(t, 1.0, a[1].LCP)
	assert.Equal(t, 2.0, b[1].LCP)
}

func TestAppendN_MinimumCapacity(t *testing.T) {
	h := AppendN([]Sample{sampleN(1), sampleN(2)}, sampleN(3), 0)
	require.Len(t, h, 1)
	assert.Equal(t, 3.0, h[0].LCP)
}

func TestLatest(t *testing.T) {
	_, err := Latest(nil)
	require.ErrorIs(t, err, ErrEmptyHistory)

	s, err := Latest([]Sample{sampleN(1), sampleN(2)})
	require.NoError(t, err)
	assert.Equal(t, 2.0, s.LCP)
}

func TestGenerator_Ranges(t *testing.T) {
	g := NewGeneratorFrom(rand.New(rand.NewSource(7)))
	for i := 0; i < 1000; i++ {
		s, err := g.Next(testNow)
		require.NoError(t, err)
		assert.True(t, s.LCP >= 1.2 && s.LCP < 4.0, "lcp %v", s.LCP)
		assert.True(t, s.FID >= 50 && s.FID < 250, "fid %v", s.FID)
		assert.True(t, s.CLS >= 0.05 && s.CLS < 0.35, "cls %v", s.CLS)
		assert.Equal(t, testNow, s.Timestamp)
	}
}

func TestGenerator_Deterministic(t *testing.T) {
	a := NewGeneratorFrom(rand.New(rand.NewSource(42)))
	b := NewGeneratorFrom(rand.New(rand.NewSource(42)))
	for i := 0; i < 5; i++ {
		sa, _ := a.Next(testNow)
		sb, _ := b.Next(testNow)
		assert.Equal(t, sa, sb)
	}
}

func TestCatalog_IsCopy(t *testing.T) {
	c := Catalog()
	require.NotEmpty(t, c)
	c[0].Title = "changed"
	c[0].ActionSteps[0] = "changed"

	fresh := Catalog()
	assert.Equal(t, "Optimize Images", fresh[0].Title)
	assert.NotEqual(t, "changed", fresh[0].ActionSteps[0])
}

func TestCatalog_WellFormed(t *testing.T) {
	seen := map[string]bool{}
	for _, s := range Catalog() {
		assert.False(t, seen[s.ID], "duplicate id %s", s.ID)
		seen[s.ID] = true
		assert.True(t, s.Metric.Valid(), s.ID)
		assert.NotEmpty(t, s.ActionSteps, s.ID)
	}
}
