package session

import (
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// GlobalID is the id of the shared Global session.
const GlobalID = "-1"

// ErrNotFound is returned by Store.Get for unknown ids.
var ErrNotFound = errors.New("session not found")

// Session is a keyed record of per-visitor data. Times are epoch seconds.
// Data access goes through the accessor methods, which are safe for
// concurrent use.
type Session struct {
	ID      string
	Created int64
	Updated int64
	Expires int64

	mu        sync.RWMutex
	data      map[string]any
	temporary bool
}

var (
	// Global is shared by every request when the server runs in global
	// session mode. It never expires and is never persisted.
	Global = &Session{ID: GlobalID, Created: -1, Updated: -1, Expires: -1, data: map[string]any{}}

	// Temporary stands in for a session during a sign-in or sign-out hand-off.
	// It is never persisted and no cookie is written for it.
	Temporary = &Session{ID: "", data: map[string]any{}, temporary: true}
)

// New creates a session with an empty data map.
func New(id string, now, expires int64) *Session {
	return &Session{ID: id, Created: now, Updated: now, Expires: expires, data: map[string]any{}}
}

func (s *Session) IsGlobal() bool {
	return s != nil && s.ID == GlobalID
}

func (s *Session) IsTemporary() bool {
	return s != nil && s.temporary
}

// Persistent reports whether the session belongs in a store.
func (s *Session) Persistent() bool {
	return s != nil && !s.temporary && !s.IsGlobal()
}

func (s *Session) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *Session) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		s.data = make(map[string]any)
	}
	s.data[key] = value
}

func (s *Session) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

// Data returns a shallow copy of the session data.
func (s *Session) Data() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}

// Merge copies every entry of m into the session data.
func (s *Session) Merge(m map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		s.data = make(map[string]any, len(m))
	}
	for k, v := range m {
		s.data[k] = v
	}
}

// Expired reports whether the session has been idle longer than expiry
// seconds. Global never expires.
func (s *Session) Expired(now, expiry int64) bool {
	if s.IsGlobal() || s.IsTemporary() {
		return false
	}
	return now > s.Updated+expiry
}

// Touch marks the session as used at now.
func (s *Session) Touch(now, expiry int64) {
	s.Updated = now
	s.Expires = now + expiry
}

// Clone returns an independent copy.
func (s *Session) Clone() *Session {
	c := &Session{ID: s.ID, Created: s.Created, Updated: s.Updated, Expires: s.Expires, temporary: s.temporary}
	c.data = s.Data()
	return c
}

var idCounter uint64

// NewID returns a unique, roughly time ordered session id: the wall clock in
// nanoseconds and a process-wide counter, both base 36.
func NewID() string {
	n := atomic.AddUint64(&idCounter, 1)
	return strconv.FormatInt(time.Now().UnixNano(), 36) + "-" + strconv.FormatUint(n, 36)
}
