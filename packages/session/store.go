package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/hitwire/packages/logger"
)

// Store keeps sessions by id. Implementations are safe for concurrent use
// and hand out copies, so a session read by one request is never mutated by
// another.
type Store interface {
	Create(now, expires int64) (*Session, error)
	Get(id string) (*Session, error)
	Save(s *Session) error
	Delete(id string) error
}

// Expirer is implemented by stores that can drop expired sessions in bulk.
type Expirer interface {
	DeleteExpired(now int64) (int, error)
}

// Lookup returns the live session for id and touches it. A session idle for
// longer than expiry seconds is deleted from the store and reported as
// missing, which is not an error.
func Lookup(store Store, id string, now, expiry int64) (*Session, bool, error) {
	if id == "" {
		return nil, false, nil
	}
	s, err := store.Get(id)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if s.Expired(now, expiry) {
		logger.Debug("session_expired", "id", id, "updated", s.Updated)
		if err := store.Delete(id); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}
	s.Touch(now, expiry)
	return s, true, nil
}

// Open creates a store from a descriptor: "memory" (or empty),
// "sqlite:<path>" or "pebble:<dir>". Stores backed by files implement
// io.Closer.
func Open(spec string) (Store, error) {
	spec = strings.TrimSpace(spec)
	switch {
	case spec == "" || spec == "memory":
		return NewMemoryStore(), nil
	case strings.HasPrefix(spec, "sqlite:"):
		return NewSQLiteStore(spec)
	case strings.HasPrefix(spec, "pebble:"):
		return NewPebbleStore(strings.TrimPrefix(spec, "pebble:"))
	default:
		return nil, fmt.Errorf("unsupported session store: %q", spec)
	}
}

// record is the persisted form of a Session.
type record struct {
	ID      string         `json:"id"`
	Data    map[string]any `json:"data"`
	Created int64          `json:"created"`
	Updated int64          `json:"updated"`
	Expires int64          `json:"expires"`
}

func encode(s *Session) ([]byte, error) {
	return json.Marshal(record{ID: s.ID, Data: s.Data(), Created: s.Created, Updated: s.Updated, Expires: s.Expires})
}

func decode(b []byte) (*Session, error) {
	var r record
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	s := New(r.ID, r.Created, r.Expires)
	s.Updated = r.Updated
	s.Merge(r.Data)
	return s, nil
}

func checkPersistent(s *Session) error {
	if s == nil || !s.Persistent() {
		return fmt.Errorf("session %q cannot be stored", sessionID(s))
	}
	return nil
}

func sessionID(s *Session) string {
	if s == nil {
		return ""
	}
	return s.ID
}
