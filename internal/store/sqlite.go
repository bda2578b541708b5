// SPDX-License-Identifier: AGPL-3.0-only
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/arva/mcp-chat/internal/model"

	_ "modernc.org/sqlite"
)

const timeFormat = time.RFC3339Nano

// SQLiteStore implements model.ExchangeStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure the parent directory exists.
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// SaveExchange persists one resolved query. The store-assigned row ID is
// written back to ex.ID.
func (s *SQLiteStore) SaveExchange(ex *model.Exchange) error {
	res, err := s.db.Exec(`
		INSERT INTO exchanges (query, answer, error, rounds, tool_calls, start_time, end_time, duration)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ex.Query,
		ex.Answer,
		ex.Error,
		ex.Rounds,
		ex.ToolCalls,
		ex.StartTime.Format(timeFormat),
		ex.EndTime.Format(timeFormat),
		ex.Duration,
	)
	if err != nil {
		return fmt.Errorf("insert exchange: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		ex.ID = id
	}
	return nil
}

// RecentExchanges returns up to limit exchanges ordered by start_time
// descending (most recent first).
func (s *SQLiteStore) RecentExchanges(limit int) ([]*model.Exchange, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > 100 {
		limit = 100
	}

	rows, err := s.db.Query(`
		SELECT id, query, answer, error, rounds, tool_calls, start_time, end_time, duration
		FROM exchanges
		ORDER BY start_time DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query exchanges: %w", err)
	}
	defer rows.Close()

	var exchanges []*model.Exchange
	for rows.Next() {
		var ex model.Exchange
		var startStr, endStr string
		if err := rows.Scan(
			&ex.ID, &ex.Query, &ex.Answer, &ex.Error,
			&ex.Rounds, &ex.ToolCalls, &startStr, &endStr, &ex.Duration,
		); err != nil {
			return nil, fmt.Errorf("scan exchange row: %w", err)
		}
		ex.StartTime, _ = time.Parse(timeFormat, startStr)
		ex.EndTime, _ = time.Parse(timeFormat, endStr)
		exchanges = append(exchanges, &ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exchange rows: %w", err)
	}

	return exchanges, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
