package source

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/eugenenazirov/confkit/internal/storage"
)

const migration = `CREATE TABLE IF NOT EXISTS config_properties (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLSource serves properties stored in a SQLite database. Reads are answered
// from the snapshot taken by the last Refresh; writes go to the database first.
type SQLSource struct {
	db      *sql.DB
	path    string
	ordinal int
	store   storage.Storage
	clock   func() time.Time
}

// OpenSQL opens (or creates) the SQLite database at path, runs migrations and
// loads the initial snapshot.
func OpenSQL(ctx context.Context, path string) (*SQLSource, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite single-writer

	if _, err := db.ExecContext(ctx, migration); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	s := &SQLSource{
		db:      db,
		path:    path,
		ordinal: DatabaseOrdinal,
		store:   storage.NewMemoryStorage(nil),
		clock:   time.Now,
	}
	if err := s.Refresh(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLSource) Name() string { return "sqlite:" + s.path }

func (s *SQLSource) Ordinal() int {
	return ResolveOrdinal(s.store.Get, s.ordinal)
}

func (s *SQLSource) Value(key string) (string, bool) {
	return s.store.Get(key)
}

func (s *SQLSource) Properties() map[string]string {
	return s.store.Snapshot()
}

func (s *SQLSource) PropertyNames() []string {
	return s.store.Keys()
}

// Refresh reloads every property from the database.
func (s *SQLSource) Refresh(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM config_properties`)
	if err != nil {
		return fmt.Errorf("query properties: %w", err)
	}
	defer rows.Close()

	props := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return fmt.Errorf("scan property: %w", err)
		}
		props[k] = v
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate properties: %w", err)
	}

	return s.store.Replace(props)
}

// Set upserts key in the database and the snapshot.
func (s *SQLSource) Set(ctx context.Context, key, value string) error {
	if strings.TrimSpace(key) == "" {
		return storage.ErrInvalidKey
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO config_properties (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, s.clock().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return s.store.Set(key, value)
}

// Delete removes key from the database and the snapshot.
func (s *SQLSource) Delete(ctx context.Context, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM config_properties WHERE key = ?`, key)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", key, err)
	}
	s.store.Delete(key)
	return n > 0, nil
}

// Close closes the database.
func (s *SQLSource) Close() error {
	return s.db.Close()
}
