// Package db opens the sqlite database backing the response cache.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const (
	busyTimeout = 5 * time.Second

	// readerConns is the size of the read-only pool. WAL mode lets readers
	// run alongside the single writer.
	readerConns = 4
)

// OpenSQLite opens the writer connection, creating the file and its parent
// directory when missing.
func OpenSQLite(dbPath string) (*sql.DB, error) {
	dbPath = absPath(dbPath)
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// WAL journal with NORMAL sync; busy_timeout absorbs short lock waits.
	dsn := fmt.Sprintf(
		"file:%s?_mode=rwc&_busy_timeout=%d&_journal_mode=WAL&_synchronous=NORMAL",
		dbPath, busyTimeout.Milliseconds(),
	)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return conn, nil
}

// OpenSQLiteReader opens a read-only pool on a database created by
// OpenSQLite.
func OpenSQLiteReader(dbPath string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_mode=ro&_busy_timeout=%d", absPath(dbPath), busyTimeout.Milliseconds())
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open read-only database: %w", err)
	}
	conn.SetMaxOpenConns(readerConns)
	conn.SetMaxIdleConns(readerConns)
	return conn, nil
}

func absPath(dbPath string) string {
	if dbPath == "" {
		return dbPath
	}
	if abs, err := filepath.Abs(dbPath); err == nil {
		return abs
	}
	return dbPath
}
