// Package sqlite stores parsed annotations in SQLite tables and answers
// feature queries against them.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	_ "modernc.org/sqlite"
)

const busyTimeout = 5 * time.Second

// Open opens an annotation database. An empty path or ":memory:" opens a
// private in-memory database on a single connection. File databases use WAL.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	inMemory := path == "" || path == ":memory:"

	dsn := ":memory:"
	if !inMemory {
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
			path, busyTimeout.Milliseconds())
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sqlite", goerr.V("path", path))
	}

	if inMemory {
		// Every connection of an in-memory DSN sees its own database.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetMaxOpenConns(8)
		db.SetMaxIdleConns(8)
		db.SetConnMaxLifetime(time.Hour)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to ping sqlite", goerr.V("path", path))
	}
	return db, nil
}
