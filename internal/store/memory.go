// internal/store/memory.go
//
// In-memory registry of live game sessions.
// In-progress games are never persisted; they live here for as long as the
// player keeps playing.
//
// Characteristics:
//   - Stores *session.Session objects keyed by ID in a map.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - Delete, Reap and CloseAll close the sessions they remove, so no timer outlives
//     its entry.
//   - State is lost when the process restarts.

package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/memory-game/internal/session"
)

// ErrNotFound is returned by Get for unknown or removed sessions.
var ErrNotFound = errors.New("not found")

// Store defines the registry interface for live sessions.
type Store interface {
	// Save registers or replaces a session.
	Save(ctx context.Context, s *session.Session) error

	// Get retrieves a session by ID.
	// Returns ErrNotFound if the session is missing.
	Get(ctx context.Context, id string) (*session.Session, error)

	// Delete closes and removes a session. Missing ids are ignored.
	Delete(ctx context.Context, id string) error

	// Reap closes and removes sessions idle since before cutoff, and any
	// that were already closed. It returns how many were removed.
	Reap(ctx context.Context, cutoff time.Time) int

	// CloseAll closes and removes every session. It returns how many were
	// removed.
	CloseAll(ctx context.Context) int

	// Len reports the number of registered sessions.
	Len() int
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu       sync.RWMutex                // guards sessions map
	sessions map[string]*session.Session // keyed by Session.ID
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{sessions: make(map[string]*session.Session)}
}

// Save adds or updates the session in the map. A replaced session is closed.
func (m *memory) Save(ctx context.Context, s *session.Session) error {
	m.mu.Lock()
	old := m.sessions[s.ID]
	m.sessions[s.ID] = s
	m.mu.Unlock()
	if old != nil && old != s {
		old.Close()
	}
	return nil
}

// Get looks up a session by ID.
func (m *memory) Get(ctx context.Context, id string) (*session.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	return nil, ErrNotFound
}

func (m *memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	s := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if s != nil {
		s.Close()
	}
	return nil
}

func (m *memory) Reap(ctx context.Context, cutoff time.Time) int {
	m.mu.Lock()
	var stale []*session.Session
	for id, s := range m.sessions {
		if s.Closed() || s.LastActive().Before(cutoff) {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		s.Close()
	}
	if len(stale) > 0 {
		log.Debug().Int("count", len(stale)).Msg("reaped idle sessions")
	}
	return len(stale)
}

func (m *memory) CloseAll(ctx context.Context) int {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*session.Session)
	m.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
	return len(all)
}

func (m *memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// RunReaper calls Reap every interval, removing sessions idle for longer
// than maxIdle, until ctx is cancelled.
func RunReaper(ctx context.Context, st Store, now func() time.Time, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st.Reap(ctx, now().Add(-maxIdle))
		}
	}
}
