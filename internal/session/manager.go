package session

import (
	"context"
	"sync"
	"time"

	"github.com/dmorgan81/imagegen/internal/log"
	"github.com/samber/do"
)

type Manager struct {
	idleTimeout time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(i *do.Injector) (*Manager, error) {
	return NewManagerWithTimeout(do.MustInvokeNamed[time.Duration](i, "session_idle_timeout")), nil
}

func NewManagerWithTimeout(idleTimeout time.Duration) *Manager {
	return &Manager{idleTimeout: idleTimeout, sessions: make(map[string]*Session)}
}

// Get returns the session for id, creating it on first use.
func (m *Manager) Get(ctx context.Context, id string) *Session {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s
	}
	s = newSession(id, time.Now())
	m.sessions[id] = s
	log.FromContextOrDiscard(ctx).Info("created session", "session", id, "active", len(m.sessions))
	return s
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep drops sessions idle for longer than the idle timeout. Sessions with
// a generation in flight are never dropped.
func (m *Manager) Sweep(ctx context.Context, now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.sessions {
		if s.idleSince(now) > m.idleTimeout {
			delete(m.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		log.FromContextOrDiscard(ctx).Info("swept idle sessions", "removed", removed, "active", len(m.sessions))
	}
	return removed
}

// Run sweeps idle sessions on every tick until ctx is done.
func (m *Manager) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.Sweep(ctx, now)
		}
	}
}
