package store

import (
	"database/sql"
	"fmt"
)

// Migration is a single forward-only schema change.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "users and sessions",
		SQL: `
			CREATE TABLE IF NOT EXISTS users (
				id TEXT PRIMARY KEY,
				username TEXT UNIQUE NOT NULL,
				password_hash TEXT NOT NULL,
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			);
			CREATE TABLE IF NOT EXISTS sessions (
				token TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				expires_at TIMESTAMP NOT NULL,
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			);
		`,
	},
	{
		Version:     2,
		Description: "games and seats",
		SQL: `
			CREATE TABLE IF NOT EXISTS games (
				id TEXT PRIMARY KEY,
				num_players INTEGER NOT NULL,
				steps_per_player INTEGER NOT NULL,
				max_contracts_per_trade INTEGER NOT NULL,
				customer_max_size INTEGER NOT NULL,
				max_contract_value INTEGER NOT NULL,
				settlement_value INTEGER NOT NULL,
				final_book TEXT NOT NULL,
				started_at TIMESTAMP NOT NULL,
				ended_at TIMESTAMP NOT NULL,
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			);
			CREATE TABLE IF NOT EXISTS game_seats (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				game_id TEXT NOT NULL,
				seat INTEGER NOT NULL,
				user_id TEXT,
				role TEXT NOT NULL,
				target INTEGER NOT NULL,
				final_contracts INTEGER NOT NULL,
				final_cash INTEGER NOT NULL,
				return_value REAL NOT NULL,
				FOREIGN KEY (game_id) REFERENCES games(id)
			);
			CREATE INDEX IF NOT EXISTS idx_game_seats_user ON game_seats(user_id);
			CREATE INDEX IF NOT EXISTS idx_game_seats_game ON game_seats(game_id);
		`,
	},
	{
		Version:     3,
		Description: "aggregate player stats",
		SQL: `
			CREATE TABLE IF NOT EXISTS user_stats (
				user_id TEXT PRIMARY KEY,
				games_played INTEGER NOT NULL DEFAULT 0,
				total_return REAL NOT NULL DEFAULT 0,
				best_return REAL NOT NULL DEFAULT 0,
				worst_return REAL NOT NULL DEFAULT 0,
				updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			);
		`,
	},
}

func (s *Store) initMigrationsTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func (s *Store) currentVersion() (int, error) {
	var version int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

// Migrate applies every pending migration in order, each inside its own
// transaction.
func (s *Store) Migrate() error {
	if err := s.initMigrationsTable(); err != nil {
		return err
	}
	current, err := s.currentVersion()
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if err := s.applyMigration(m); err != nil {
			return fmt.Errorf("store: migration %d (%s): %w", m.Version, m.Description, err)
		}
	}
	return nil
}

func (s *Store) applyMigration(m Migration) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.SQL); err != nil {
		return err
	}
	if _, err := tx.Exec(
		"INSERT INTO schema_migrations (version, description) VALUES (?, ?)",
		m.Version, m.Description,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// MigrationStatus reports the currently applied schema version, for
// diagnostics.
func (s *Store) MigrationStatus() (int, error) {
	return s.currentVersion()
}

// DB exposes the underlying handle for ancillary tooling (e.g. backups).
func (s *Store) DB() *sql.DB {
	return s.db
}
