package session

import (
	"errors"
	"fmt"
	"os"

	pebble "github.com/cockroachdb/pebble"
)

var (
	sessionPrefix = []byte("session:")
	// first key after every "session:" key
	sessionUpper = []byte("session;")
)

// PebbleStore persists sessions in a pebble key-value store, one JSON value
// per session under the key "session:<id>".
type PebbleStore struct {
	db *pebble.DB
}

var (
	_ Store   = (*PebbleStore)(nil)
	_ Expirer = (*PebbleStore)(nil)
)

func NewPebbleStore(dir string) (*PebbleStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("pebble store needs a directory")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble store: %w", err)
	}
	return &PebbleStore{db: db}, nil
}

func (p *PebbleStore) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

func key(id string) []byte {
	return append(append([]byte(nil), sessionPrefix...), id...)
}

func (p *PebbleStore) Create(now, expires int64) (*Session, error) {
	s := New(NewID(), now, expires)
	if err := p.Save(s); err != nil {
		return nil, err
	}
	return s, nil
}

func (p *PebbleStore) Get(id string) (*Session, error) {
	v, closer, err := p.db.Get(key(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return decode(v)
}

func (p *PebbleStore) Save(s *Session) error {
	if err := checkPersistent(s); err != nil {
		return err
	}
	data, err := encode(s)
	if err != nil {
		return err
	}
	return p.db.Set(key(s.ID), data, pebble.Sync)
}

func (p *PebbleStore) Delete(id string) error {
	return p.db.Delete(key(id), pebble.Sync)
}

// DeleteExpired scans every session and deletes the expired ones in a
// single batch.
func (p *PebbleStore) DeleteExpired(now int64) (int, error) {
	it, err := p.db.NewIter(&pebble.IterOptions{LowerBound: sessionPrefix, UpperBound: sessionUpper})
	if err != nil {
		return 0, err
	}

	batch := p.db.NewBatch()
	defer batch.Close()
	n := 0
	for ok := it.First(); ok; ok = it.Next() {
		s, err := decode(it.Value())
		if err != nil || s.Expires < now {
			k := append([]byte(nil), it.Key()...)
			if err := batch.Delete(k, nil); err != nil {
				it.Close()
				return 0, err
			}
			n++
		}
	}
	if err := it.Close(); err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return 0, err
	}
	return n, nil
}
