// Package sqlite
package sqlite

import (
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"rpimon/internal/logger"

	_ "github.com/mattn/go-sqlite3"
)

var pragmas = url.Values{
	"_busy_timeout": {"5000"},
	"_journal_mode": {"WAL"},
	"_synchronous":  {"NORMAL"},
}

var migrations = []struct {
	name  string
	query string
}{
	{
		name: "metric_meta",
		query: `CREATE TABLE IF NOT EXISTS metric_meta (
			path TEXT PRIMARY KEY,
			unit TEXT NOT NULL,
			family TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL DEFAULT '',
			registered_at DATETIME NOT NULL
		)`,
	},
}

// NewSqliteDB opens the units registry at dbPath and applies migrations.
// SQLite allows a single writer, so the pool holds one connection.
func NewSqliteDB(dbPath string, log logger.Logger) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?"+pragmas.Encode())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database not responding: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	log.Info("sqlite ready", "path", dbPath, "migrations", len(migrations))
	return db, nil
}

func migrate(db *sql.DB) error {
	for _, m := range migrations {
		if _, err := db.Exec(m.query); err != nil {
			return fmt.Errorf("failed to migrate %s: %w", m.name, err)
		}
	}
	return nil
}
