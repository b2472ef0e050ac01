package session

import (
	"strings"
	"time"

	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"
)

// Manager keeps live sessions in memory and expires idle ones.
type Manager struct {
	sessions *cache.Cache
	ttl      time.Duration
}

func NewManager(ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &Manager{
		sessions: cache.New(ttl, 10*time.Minute),
		ttl:      ttl,
	}
}

// Create starts a session with a fresh id and a short user id.
func (m *Manager) Create() *Session {
	id := uuid.NewString()
	userID := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	s := New(id, userID)
	m.sessions.Set(id, s, m.ttl)
	return s
}

// Get returns the session and refreshes its expiry.
func (m *Manager) Get(id string) (*Session, bool) {
	v, ok := m.sessions.Get(id)
	if !ok {
		return nil, false
	}
	s := v.(*Session)
	m.sessions.Set(id, s, m.ttl)
	return s, true
}

// GetOrCreate is used by channels that bring their own stable identity.
func (m *Manager) GetOrCreate(id, userID string) *Session {
	if s, ok := m.Get(id); ok {
		return s
	}
	s := New(id, userID)
	if err := m.sessions.Add(id, s, m.ttl); err != nil {
		// Lost a race with another request for the same id
		if existing, ok := m.Get(id); ok {
			return existing
		}
	}
	return s
}

func (m *Manager) Delete(id string) {
	m.sessions.Delete(id)
}

func (m *Manager) Count() int {
	return m.sessions.ItemCount()
}
