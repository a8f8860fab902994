package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS sessions (
	id      TEXT PRIMARY KEY,
	data    TEXT NOT NULL,
	created INTEGER NOT NULL,
	updated INTEGER NOT NULL,
	expires INTEGER NOT NULL
)`

// SQLiteStore persists sessions in a SQLite database.
type SQLiteStore struct {
	db           *sql.DB
	queryTimeout time.Duration
}

var (
	_ Store   = (*SQLiteStore)(nil)
	_ Expirer = (*SQLiteStore)(nil)
)

// NewSQLiteStore opens the database named by a connection string of the
// form sqlite://path or sqlite:path and creates the sessions table.
func NewSQLiteStore(connectionString string) (*SQLiteStore, error) {
	dsn, err := parseConnectionString(connectionString)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer keeps sqlite from returning SQLITE_BUSY under load
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create sessions table: %w", err)
	}

	return &SQLiteStore{db: db, queryTimeout: 30 * time.Second}, nil
}

// parseConnectionString accepts sqlite://path and sqlite:path.
func parseConnectionString(connStr string) (string, error) {
	connStr = strings.TrimSpace(connStr)
	if strings.HasPrefix(connStr, "sqlite://") {
		return strings.TrimPrefix(connStr, "sqlite://"), nil
	}
	if strings.HasPrefix(connStr, "sqlite:") {
		return strings.TrimPrefix(connStr, "sqlite:"), nil
	}
	return "", fmt.Errorf("unsupported database scheme: %s", connStr)
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) Create(now, expires int64) (*Session, error) {
	sess := New(NewID(), now, expires)
	if err := s.Save(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *SQLiteStore) Get(id string) (*Session, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.queryTimeout)
	defer cancel()

	var data string
	var created, updated, expires int64
	err := s.db.QueryRowContext(ctx,
		`SELECT data, created, updated, expires FROM sessions WHERE id = ?`, id).
		Scan(&data, &created, &updated, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	sess, err := decode([]byte(data))
	if err != nil {
		return nil, err
	}
	sess.ID = id
	sess.Created, sess.Updated, sess.Expires = created, updated, expires
	return sess, nil
}

func (s *SQLiteStore) Save(sess *Session) error {
	if err := checkPersistent(sess); err != nil {
		return err
	}
	data, err := encode(sess)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.queryTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, data, created, updated, expires) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated = excluded.updated, expires = excluded.expires`,
		sess.ID, string(data), sess.Created, sess.Updated, sess.Expires)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.queryTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteExpired(now int64) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires < ?`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
