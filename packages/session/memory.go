package session

import "sync"

// MemoryStore is the in-process default store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

var (
	_ Store   = (*MemoryStore)(nil)
	_ Expirer = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (m *MemoryStore) Create(now, expires int64) (*Session, error) {
	s := New(NewID(), now, expires)
	m.mu.Lock()
	m.sessions[s.ID] = s.Clone()
	m.mu.Unlock()
	return s, nil
}

func (m *MemoryStore) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Save(s *Session) error {
	if err := checkPersistent(s); err != nil {
		return err
	}
	c := s.Clone()
	m.mu.Lock()
	m.sessions[c.ID] = c
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(id string) error {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	return nil
}

// DeleteExpired removes every session whose Expires is before now.
func (m *MemoryStore) DeleteExpired(now int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if s.Expires < now {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored sessions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
