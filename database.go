package main

import (
	"database/sql"
	"log"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite event journal. The journal is diagnostic only:
// accounts and entities live in process memory and are never persisted.
type DB struct {
	conn *sql.DB
}

// EventRow is one journaled protocol event. CreatedAt stays in its stored
// RFC 3339 form; nothing downstream needs time arithmetic on it.
type EventRow struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	Tick      uint64 `json:"tick"`
	AccountID uint64 `json:"account_id,omitempty"`
	Detail    string `json:"detail,omitempty"`
	CreatedAt string `json:"created_at"`
}

// OpenDB opens (or creates) the SQLite journal database.
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates tables if they don't exist.
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_type TEXT NOT NULL,
		tick INTEGER NOT NULL DEFAULT 0,
		account_id INTEGER,
		detail TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_type ON events(event_type);
	CREATE INDEX IF NOT EXISTS idx_events_created ON events(created_at);
	`
	_, err := db.conn.Exec(schema)
	if err != nil {
		log.Printf("DB migration error: %v", err)
	}
	return err
}

// GetSetting returns a settings value, or "" if unset.
func (db *DB) GetSetting(key string) string {
	var value string
	err := db.conn.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err != nil {
		return ""
	}
	return value
}

// SetSetting stores a settings value.
func (db *DB) SetSetting(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

// EventCounts returns per-type event counts over the last N days.
func (db *DB) EventCounts(days int) (map[string]int, error) {
	rows, err := db.conn.Query(`
		SELECT event_type, COUNT(*)
		FROM events
		WHERE created_at >= datetime('now', '-' || ? || ' days')
		GROUP BY event_type
	`, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]int)
	for rows.Next() {
		var evtType string
		var count int
		if err := rows.Scan(&evtType, &count); err != nil {
			continue
		}
		result[evtType] = count
	}
	return result, rows.Err()
}

// RecentEvents returns the newest events, newest first.
func (db *DB) RecentEvents(limit int) ([]EventRow, error) {
	rows, err := db.conn.Query(`
		SELECT id, event_type, tick, COALESCE(account_id, 0), COALESCE(detail, ''), CAST(created_at AS TEXT)
		FROM events ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []EventRow
	for rows.Next() {
		var e EventRow
		if err := rows.Scan(&e.ID, &e.Type, &e.Tick, &e.AccountID, &e.Detail, &e.CreatedAt); err != nil {
			continue
		}
		result = append(result, e)
	}
	return result, rows.Err()
}
