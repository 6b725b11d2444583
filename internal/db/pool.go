package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

const driverName = "sqlite3"

// Pool pairs the single writer connection with a read-only pool.
type Pool struct {
	writer *sqlx.DB
	reader *sqlx.DB
}

// Open opens writer and reader connections on the database at dbPath.
func Open(dbPath string) (*Pool, error) {
	w, err := OpenSQLite(dbPath)
	if err != nil {
		return nil, err
	}
	r, err := OpenSQLiteReader(dbPath)
	if err != nil {
		_ = w.Close()
		return nil, err
	}
	return NewPool(sqlx.NewDb(w, driverName), sqlx.NewDb(r, driverName)), nil
}

// NewPool creates a Pool from separate writer and reader connections.
func NewPool(writer, reader *sqlx.DB) *Pool {
	return &Pool{writer: writer, reader: reader}
}

// Writer is used for schema changes, inserts and deletes.
func (p *Pool) Writer() *sqlx.DB { return p.writer }

// Reader is used for SELECT queries.
func (p *Pool) Reader() *sqlx.DB { return p.reader }

// Close closes both pools.
func (p *Pool) Close() error {
	wErr := p.writer.Close()
	if p.reader != p.writer {
		if rErr := p.reader.Close(); rErr != nil && wErr == nil {
			return fmt.Errorf("close reader: %w", rErr)
		}
	}
	return wErr
}
