// Package database implements the schedule, block, reservation and garage
// stores on SQLite.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// Store wraps the database connection.
type Store struct {
	*sql.DB
	logger *zerolog.Logger
}

// Open initializes the database at path and creates tables if they don't
// exist. The DSN enables WAL, a busy timeout and immediate transactions so
// concurrent commit attempts serialize instead of failing fast.
func Open(path string, logger *zerolog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_txlock=immediate"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	store := &Store{DB: db, logger: logger}
	if err := store.createTables(); err != nil {
		return nil, fmt.Errorf("create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("database initialized")
	return store, nil
}

func (s *Store) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS garages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT UNIQUE NOT NULL,
			description TEXT,
			accepts_bookings BOOLEAN NOT NULL DEFAULT 0,
			quota_allotted INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS weekly_schedules (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			garage_id INTEGER NOT NULL,
			weekday INTEGER NOT NULL,
			is_open BOOLEAN NOT NULL DEFAULT 0,
			open_time TEXT,
			close_time TEXT,
			slot_duration INTEGER NOT NULL DEFAULT 30,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(garage_id, weekday),
			FOREIGN KEY (garage_id) REFERENCES garages(id)
		)`,

		`CREATE TABLE IF NOT EXISTS schedule_exceptions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			garage_id INTEGER NOT NULL,
			date TEXT NOT NULL,
			is_closed BOOLEAN NOT NULL DEFAULT 0,
			open_time TEXT,
			close_time TEXT,
			reason TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(garage_id, date),
			FOREIGN KEY (garage_id) REFERENCES garages(id)
		)`,

		`CREATE TABLE IF NOT EXISTS slot_blocks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			garage_id INTEGER NOT NULL,
			date TEXT NOT NULL,
			slot TEXT NOT NULL,
			reason TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(garage_id, date, slot),
			FOREIGN KEY (garage_id) REFERENCES garages(id)
		)`,

		`CREATE TABLE IF NOT EXISTS reservations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			reference TEXT UNIQUE NOT NULL,
			garage_id INTEGER NOT NULL,
			requester_id INTEGER NOT NULL,
			vehicle_id INTEGER NOT NULL,
			date TEXT NOT NULL,
			slot TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			notes TEXT,
			cancel_note TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (garage_id) REFERENCES garages(id)
		)`,

		// Final arbiter for the no-double-booking guarantee: at most one
		// active reservation per (garage, date, slot).
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_reservations_active_slot
			ON reservations(garage_id, date, slot)
			WHERE status IN ('pending', 'confirmed', 'in_progress')`,

		`CREATE INDEX IF NOT EXISTS idx_reservations_garage_date ON reservations(garage_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_requester ON reservations(requester_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_status ON reservations(status)`,
		`CREATE INDEX IF NOT EXISTS idx_exceptions_garage_date ON schedule_exceptions(garage_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_blocks_garage_date ON slot_blocks(garage_id, date)`,
	}

	for _, q := range queries {
		if _, err := s.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(q string) string {
	q = strings.Join(strings.Fields(q), " ")
	if len(q) > 60 {
		return q[:60] + "..."
	}
	return q
}

// Backup checkpoints the WAL and copies the database file to dest.
func (s *Store) Backup(ctx context.Context, srcPath, dest string) error {
	if _, err := s.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create backup: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	return out.Sync()
}

// CleanupBackups removes backup files in dir older than retention.
func (s *Store) CleanupBackups(dir string, retention time.Duration) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-retention)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".db") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, entry.Name())); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.DB.Close()
}
