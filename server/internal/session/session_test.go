package session

import (
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalsmon/vitalsmon/pkg/vitals"
	"github.com/vitalsmon/vitalsmon/pkg/wire"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type failingSource struct{}

func (failingSource) Next(time.Time) (vitals.Sample, error) {
	return vitals.Sample{}, errors.New("collector offline")
}

func newSynthetic(t *testing.T) *Session {
	t.Helper()
	s, err := New("example.com", Desktop, vitals.NewGeneratorFrom(rand.New(rand.NewSource(7))), t0)
	require.NoError(t, err)
	return s
}

func TestNormalizeURL(t *testing.T) {
	cases := []struct {
		in, url, site string
	}{
		{"example.com", "https://example.com", "example.com"},
		{"  https://www.Example.co.uk/path  ", "https://www.example.co.uk/path", "example.co.uk"},
		{"http://blog.example.com/a#frag", "http://blog.example.com/a", "example.com"},
		{"http://127.0.0.1:8080/", "http://127.0.0.1:8080/", "127.0.0.1"},
		{"localhost:3000", "https://localhost:3000", "localhost"},
	}
	for _, tc := range cases {
		u, site, err := NormalizeURL(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.url, u, tc.in)
		assert.Equal(t, tc.site, site, tc.in)
	}
}

func TestNormalizeURL_Rejects(t *testing.T) {
	for _, in := range []string{"", "   ", "ftp://example.com", "javascript://alert", "https://"} {
		_, _, err := NormalizeURL(in)
		assert.ErrorIs(t, err, ErrInvalidURL, in)
	}
}

func TestParseViewMode(t *testing.T) {
	m, err := ParseViewMode("")
	require.NoError(t, err)
	assert.Equal(t, Desktop, m)

	m, err = ParseViewMode("Mobile")
	require.NoError(t, err)
	assert.Equal(t, Mobile, m)

	_, err = ParseViewMode("tablet")
	assert.ErrorIs(t, err, ErrInvalidViewMode)
}

func TestNew(t *testing.T) {
	s := newSynthetic(t)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "https://example.com", s.URL)
	assert.True(t, s.Monitoring(), "monitoring starts enabled")
	assert.Equal(t, KindSynthetic, s.Kind())

	_, err := New("ftp://x", Desktop, nil, t0)
	assert.ErrorIs(t, err, ErrInvalidURL)

	_, err = New("x.com", "watch", nil, t0)
	assert.ErrorIs(t, err, ErrInvalidViewMode)
}

func TestSnapshot_Empty(t *testing.T) {
	v := newSynthetic(t).Snapshot()
	assert.Nil(t, v.Current)
	assert.Equal(t, 0, v.Score)
	assert.Equal(t, vitals.Status(0), v.Grade)
	assert.Empty(t, v.History)
	assert.NotNil(t, v.History)
}

func TestTick_AppendsWhileMonitoring(t *testing.T) {
	s := newSynthetic(t)
	for i := 0; i < 3; i++ {
		sample, ok, err := s.Tick(t0.Add(time.Duration(i) * 2 * time.Second))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, t0.Add(time.Duration(i)*2*time.Second), sample.Timestamp)
	}
	v := s.Snapshot()
	require.Len(t, v.History, 3)
	require.NotNil(t, v.Current)
	assert.Equal(t, v.History[2], *v.Current)
	assert.Equal(t, vitals.Score(*v.Current), v.Score)
	assert.Equal(t, vitals.Grade(v.Score), v.Grade)
	assert.Len(t, v.Statuses, 3)
}

func TestTick_PausedIsNoop(t *testing.T) {
	s := newSynthetic(t)
	_, _, err := s.Tick(t0)
	require.NoError(t, err)

	s.Stop()
	for i := 1; i <= 5; i++ {
		_, ok, err := s.Tick(t0.Add(time.Duration(i) * time.Second))
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Len(t, s.Snapshot().History, 1)

	s.Start()
	_, ok, _ := s.Tick(t0.Add(10 * time.Second))
	assert.True(t, ok)
	assert.Len(t, s.Snapshot().History, 2)
}

func TestTick_HistoryBounded(t *testing.T) {
	s := newSynthetic(t)
	for i := 0; i < 25; i++ {
		_, _, err := s.Tick(t0.Add(time.Duration(i) * time.Second))
		require.NoError(t, err)
	}
	h := s.Snapshot().History
	require.Len(t, h, vitals.HistoryCap)
	assert.Equal(t, t0.Add(5*time.Second), h[0].Timestamp)
	assert.Equal(t, t0.Add(24*time.Second), h[len(h)-1].Timestamp)
}

func TestTick_SourceError(t *testing.T) {
	s, err := New("example.com", Desktop, failingSource{}, t0)
	require.NoError(t, err)

	_, ok, err := s.Tick(t0)
	assert.Error(t, err)
	assert.False(t, ok)
	v := s.Snapshot()
	assert.Empty(t, v.History)
	assert.Equal(t, "collector offline", v.LastError)
}

func TestPushSession(t *testing.T) {
	s, err := New("example.com", Mobile, nil, t0)
	require.NoError(t, err)
	assert.Equal(t, KindPush, s.Kind())

	_, ok, err := s.Tick(t0)
	require.NoError(t, err)
	assert.False(t, ok, "push sessions do not tick")

	assert.True(t, s.Observe(vitals.Sample{LCP: 2, FID: 80, CLS: 0.05}, t0.Add(time.Second)))
	v := s.Snapshot()
	require.NotNil(t, v.Current)
	assert.Equal(t, 100, v.Score)
	assert.Equal(t, t0.Add(time.Second), v.Current.Timestamp, "zero timestamp is filled in")
	assert.Equal(t, t0.Add(time.Second), v.LastActive)

	s.Stop()
	assert.False(t, s.Observe(vitals.Sample{LCP: 9}, t0.Add(2*time.Second)))
	assert.Len(t, s.Snapshot().History, 1)
}

func TestToggle(t *testing.T) {
	s := newSynthetic(t)
	assert.False(t, s.Toggle())
	assert.False(t, s.Monitoring())
	assert.True(t, s.Toggle())
	assert.True(t, s.Monitoring())
}

func TestSnapshot_IsolatedFromLaterTicks(t *testing.T) {
	s := newSynthetic(t)
	_, _, _ = s.Tick(t0)
	before := s.Snapshot()
	_, _, _ = s.Tick(t0.Add(time.Second))
	assert.Len(t, before.History, 1)
	assert.Len(t, s.Snapshot().History, 2)
}

func TestTouch_Monotonic(t *testing.T) {
	s := newSynthetic(t)
	s.Touch(t0.Add(time.Minute))
	s.Touch(t0)
	assert.Equal(t, t0.Add(time.Minute), s.LastActive())
}

func TestConcurrentTicksAndReads(t *testing.T) {
	s := newSynthetic(t)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, _, _ = s.Tick(t0.Add(time.Duration(i*50+j) * time.Millisecond))
				_ = s.Snapshot()
				if j%10 == 0 {
					s.Toggle()
				}
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, len(s.Snapshot().History), vitals.HistoryCap)
}

func TestSetAgentInfo(t *testing.T) {
	s, err := New("example.com", Desktop, nil, t0)
	require.NoError(t, err)
	assert.Nil(t, s.Snapshot().UptimePct)

	s.SetAgentInfo(95, &wire.CertStatus{Status: "ok", DaysLeft: 40})
	s.SetAgentInfo(90, nil)

	v := s.Snapshot()
	require.NotNil(t, v.UptimePct)
	assert.Equal(t, 90.0, *v.UptimePct)
	require.NotNil(t, v.Cert)
	assert.Equal(t, 40, v.Cert.DaysLeft, "nil cert keeps the previous one")
}
