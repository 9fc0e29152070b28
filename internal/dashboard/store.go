// Package dashboard keeps per-user dashboard sessions in memory and derives
// the page model from them.
package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"
	"weatherai/internal/catalog"
	"weatherai/internal/events"
	"weatherai/internal/metrics"
	"weatherai/internal/selection"
	"weatherai/internal/weathercode"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrSessionNotFound = errors.New("session not found")

// Deps are shared by every session
type Deps struct {
	Catalog    *catalog.Catalog
	Table      *weathercode.Table
	Forecasts  selection.ForecastFetcher
	Narratives NarrativeFetcher
	Publisher  events.Publisher
	Logger     *zap.Logger
}

type Store struct {
	deps Deps
	now  func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewStore(deps Deps) *Store {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Publisher == nil {
		deps.Publisher = events.Nop{}
	}
	if deps.Table == nil {
		deps.Table = weathercode.MustDefault()
	}
	return &Store{
		deps:     deps,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

func (st *Store) Create() *Session {
	s := newSession(uuid.NewString(), st.deps, st.now)

	st.mu.Lock()
	st.sessions[s.ID] = s
	n := len(st.sessions)
	st.mu.Unlock()

	metrics.ActiveSessions.Set(float64(n))
	st.deps.Logger.Debug("session created", zap.String("session", s.ID))
	return s
}

// Get returns a live session and marks it as used
func (st *Store) Get(id string) (*Session, error) {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.touch()
	return s, nil
}

func (st *Store) Delete(id string) error {
	st.mu.Lock()
	s, ok := st.sessions[id]
	if ok {
		delete(st.sessions, id)
	}
	n := len(st.sessions)
	st.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	s.Close()
	metrics.ActiveSessions.Set(float64(n))
	return nil
}

// Sweep removes sessions idle for longer than idle and returns how many were
// removed.
func (st *Store) Sweep(idle time.Duration) int {
	cutoff := st.now().Add(-idle)

	var expired []*Session
	st.mu.Lock()
	for id, s := range st.sessions {
		if s.LastSeen().Before(cutoff) {
			expired = append(expired, s)
			delete(st.sessions, id)
		}
	}
	n := len(st.sessions)
	st.mu.Unlock()

	for _, s := range expired {
		s.Close()
	}
	if len(expired) > 0 {
		metrics.ActiveSessions.Set(float64(n))
		st.deps.Logger.Info("swept idle sessions", zap.Int("removed", len(expired)), zap.Int("remaining", n))
	}
	return len(expired)
}

func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// RunSweeper calls Sweep every interval until ctx is done
func (st *Store) RunSweeper(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st.Sweep(idle)
		}
	}
}

// Close ends every session and waits for their background work
func (st *Store) Close() {
	st.mu.Lock()
	sessions := st.sessions
	st.sessions = make(map[string]*Session)
	st.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	for _, s := range sessions {
		s.Wait()
	}
	metrics.ActiveSessions.Set(0)
}
