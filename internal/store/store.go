// Package store persists completed games, seat registrations, and
// sessions for the ambient hosting layer. The core game engine
// (internal/hltgame) never touches this package directly.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps a SQLite database holding everything the hosting layer
// needs to survive a restart: registered players, active sessions, and a
// history of completed games.
type Store struct {
	db *sql.DB
}

// New opens (creating if necessary) the SQLite database at dbPath and runs
// pending migrations.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: opening database: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite is not safe for concurrent writers

	s := &Store{db: db}
	if err := s.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: running migrations: %w", err)
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// User is a registered seat holder.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}
