// Package history keeps a short log of IP updates accepted by the update API.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Keep is the number of entries retained after each Record.
const Keep = 100

type Entry struct {
	Time     time.Time
	IP       string
	Hostname string
	Result   string
}

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS updates (
		id       INTEGER PRIMARY KEY AUTOINCREMENT,
		at       INTEGER NOT NULL,
		ip       TEXT NOT NULL,
		hostname TEXT NOT NULL,
		result   TEXT NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create updates table: %w", err)
	}

	return &Store{db: db}, nil
}

// Record appends e and drops everything but the newest Keep entries.
func (s *Store) Record(ctx context.Context, e Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO updates (at, ip, hostname, result) VALUES (?, ?, ?, ?)`,
		e.Time.UnixMilli(), e.IP, e.Hostname, e.Result,
	); err != nil {
		return fmt.Errorf("insert update: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM updates WHERE id NOT IN (SELECT id FROM updates ORDER BY id DESC LIMIT ?)`,
		Keep,
	); err != nil {
		return fmt.Errorf("prune updates: %w", err)
	}
	return tx.Commit()
}

// Recent returns up to n entries, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT at, ip, hostname, result FROM updates ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query updates: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e  Entry
			at int64
		)
		if err := rows.Scan(&at, &e.IP, &e.Hostname, &e.Result); err != nil {
			return nil, fmt.Errorf("scan update: %w", err)
		}
		e.Time = time.UnixMilli(at)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
