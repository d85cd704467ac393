package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the sqlite connection used to persist matching runs.
type DB struct {
	*sql.DB
}

// NewDB opens (creating if necessary) the sqlite database under dataDir and
// runs migrations.
func NewDB(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "casematch.db")
	connStr := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	database := &DB{DB: db}
	if err := database.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	slog.Info("database initialized", "path", dbPath)
	return database, nil
}

// migrate creates the necessary tables.
func (db *DB) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS matching_runs (
			id TEXT PRIMARY KEY,
			iterations INTEGER NOT NULL,
			termination TEXT NOT NULL,
			teams_count INTEGER NOT NULL,
			unmatched_count INTEGER NOT NULL,
			avg_score REAL NOT NULL,
			unmatched_rate REAL NOT NULL,
			report TEXT NOT NULL, -- full JSON report
			created_at DATETIME NOT NULL
		)`,

		// Team ids derive from member emails, so the same partition recurs
		// across runs over identical input; the key is scoped by run.
		`CREATE TABLE IF NOT EXISTS teams (
			id TEXT NOT NULL,
			run_id TEXT NOT NULL,
			score REAL NOT NULL,
			target_size INTEGER NOT NULL,
			member_count INTEGER NOT NULL,
			formed_iteration INTEGER NOT NULL,
			members TEXT NOT NULL, -- JSON member list
			approved BOOLEAN DEFAULT FALSE,
			created_at DATETIME NOT NULL,
			PRIMARY KEY (run_id, id),
			FOREIGN KEY (run_id) REFERENCES matching_runs(id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_runs_created ON matching_runs(created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_teams_run ON teams(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_teams_score ON teams(score DESC)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}
	return nil
}
