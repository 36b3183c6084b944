package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/vitalsmon/vitalsmon/server/internal/session"
)

// ErrFull is returned by Open when the store already holds max sessions.
var ErrFull = errors.New("store: session limit reached")

// Store is a thread-safe in-memory session store, keyed by session ID with a
// secondary index on (URL, view mode). Sessions that see no activity within
// the TTL are evicted by Run.
type Store struct {
	mu    sync.RWMutex
	data  map[string]*session.Session
	byURL map[string]string
	ttl   time.Duration
	max   int
	now   func() time.Time // injectable for deterministic tests

	onEvict func(id string)
}

// New creates a Store with the given idle TTL and session cap.
func New(ttl time.Duration, maxSessions int) *Store {
	return &Store{
		data:  make(map[string]*session.Session),
		byURL: make(map[string]string),
		ttl:   ttl,
		max:   maxSessions,
		now:   time.Now,
	}
}

// OnEvict registers fn to be called, outside the lock, with the ID of every
// session removed by Evict. It must be set before Run starts.
func (s *Store) OnEvict(fn func(id string)) {
	s.onEvict = fn
}

func urlKey(url string, mode session.ViewMode) string {
	return string(mode) + " " + url
}

// Open returns the session for rawURL under mode, creating it with src when
// none exists. The bool reports whether a new session was created. src is
// only consulted on creation; nil creates a push session.
func (s *Store) Open(rawURL string, mode session.ViewMode, src session.Source) (*session.Session, bool, error) {
	u, _, err := session.NormalizeURL(rawURL)
	if err != nil {
		return nil, false, err
	}
	mode, err = session.ParseViewMode(string(mode))
	if err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if id, ok := s.byURL[urlKey(u, mode)]; ok {
		sess := s.data[id]
		sess.Touch(now)
		return sess, false, nil
	}
	if s.max > 0 && len(s.data) >= s.max {
		return nil, false, ErrFull
	}
	sess, err := session.New(u, mode, src, now)
	if err != nil {
		return nil, false, err
	}
	s.data[sess.ID] = sess
	s.byURL[urlKey(sess.URL, sess.ViewMode)] = sess.ID
	slog.Info("store: session opened", "id", sess.ID, "url", sess.URL, "view_mode", sess.ViewMode, "kind", sess.Kind())
	return sess, true, nil
}

// Get returns the session with the given ID and marks it active.
func (s *Store) Get(id string) (*session.Session, error) {
	s.mu.RLock()
	sess, ok := s.data[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", session.ErrNotFound, id)
	}
	sess.Touch(s.now())
	return sess, nil
}

// Delete removes the session with the given ID.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.data[id]
	if !ok {
		return fmt.Errorf("%w: %s", session.ErrNotFound, id)
	}
	s.remove(sess)
	return nil
}

// remove must be called with mu held. The URL index entry is only dropped
// when it still points at sess.
func (s *Store) remove(sess *session.Session) {
	delete(s.data, sess.ID)
	k := urlKey(sess.URL, sess.ViewMode)
	if s.byURL[k] == sess.ID {
		delete(s.byURL, k)
	}
}

// List returns all sessions ordered by creation time, oldest first.
func (s *Store) List() []*session.Session {
	s.mu.RLock()
	out := make([]*session.Session, 0, len(s.data))
	for _, sess := range s.data {
		out = append(out, sess)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Count returns the number of sessions currently held, including idle ones
// awaiting eviction.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// TickAll ticks every session at now and returns those that recorded a
// sample. Source failures are logged and do not stop the sweep.
func (s *Store) TickAll(now time.Time) []*session.Session {
	var ticked []*session.Session
	for _, sess := range s.List() {
		_, ok, err := sess.Tick(now)
		if err != nil {
			slog.Warn("store: tick failed", "id", sess.ID, "url", sess.URL, "err", err)
			continue
		}
		if ok {
			ticked = append(ticked, sess)
		}
	}
	return ticked
}

// Evict removes sessions whose last activity is older than now minus TTL.
// It returns the number of sessions removed.
func (s *Store) Evict(now time.Time) int {
	s.mu.Lock()
	cutoff := now.Add(-s.ttl)
	var removed []string
	for _, sess := range s.data {
		if !sess.LastActive().After(cutoff) {
			s.remove(sess)
			removed = append(removed, sess.ID)
		}
	}
	s.mu.Unlock()

	if s.onEvict != nil {
		for _, id := range removed {
			s.onEvict(id)
		}
	}
	return len(removed)
}

// Run starts the background TTL eviction loop. It ticks at half the TTL
// (minimum 1 second). Run blocks until ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Evict(now); n > 0 {
				slog.Info("store: evicted idle sessions", "count", n)
			}
		}
	}
}

// Schedule drives TickAll every interval and hands the sessions that
// recorded a sample to onTick (which may be nil). It blocks until ctx is
// cancelled.
func (s *Store) Schedule(ctx context.Context, interval time.Duration, onTick func([]*session.Session)) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			ticked := s.TickAll(now)
			if onTick != nil {
				onTick(ticked)
			}
		}
	}
}
