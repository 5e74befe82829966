// Package database owns the store handle shared by every warden component.
//
// A DB wraps *sql.DB together with the dialect it was opened with. All SQL in
// the module is written with $n placeholders, no server-side clock functions
// and RETURNING id, which is accepted by PostgreSQL and by both SQLite drivers.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3" // cgo SQLite driver registered as "sqlite3"
	_ "modernc.org/sqlite"          // pure-Go SQLite driver registered as "sqlite"
)

// Dialect identifies the SQL flavour behind a DB
type Dialect string

const (
	// Postgres uses github.com/lib/pq
	Postgres Dialect = "postgres"
	// SQLite uses modernc.org/sqlite (pure Go)
	SQLite Dialect = "sqlite"
	// SQLite3 uses github.com/mattn/go-sqlite3 (cgo)
	SQLite3 Dialect = "sqlite3"
)

// Config holds store connection settings
type Config struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
}

// DB is the explicit store handle passed to every service
type DB struct {
	*sql.DB
	dialect Dialect
}

// Open connects to the configured store and verifies it with a ping
func Open(ctx context.Context, cfg Config) (*DB, error) {
	dialect, err := ParseDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}

	dsn := cfg.DSN
	switch {
	case dialect == SQLite3 && !strings.Contains(dsn, "_foreign_keys"):
		dsn = appendDSNParam(dsn, "_foreign_keys=on")
	case dialect == SQLite && !strings.Contains(dsn, "foreign_keys"):
		dsn = appendDSNParam(dsn, "_pragma=foreign_keys(1)")
	}

	conn, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", dialect, err)
	}

	if dialect.IsSQLite() {
		// SQLite allows a single writer; one connection also keeps :memory: databases alive.
		conn.SetMaxOpenConns(1)
	} else {
		if cfg.MaxOpenConns > 0 {
			conn.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			conn.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		}
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", dialect, err)
	}

	return &DB{DB: conn, dialect: dialect}, nil
}

// New wraps an existing connection. Used by tests with sqlmock.
func New(conn *sql.DB, dialect Dialect) *DB {
	return &DB{DB: conn, dialect: dialect}
}

// Dialect returns the SQL flavour of the handle
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// ParseDialect maps a driver name onto a Dialect
func ParseDialect(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "postgresql", "pq":
		return Postgres, nil
	case "sqlite", "":
		return SQLite, nil
	case "sqlite3":
		return SQLite3, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

// IsSQLite reports whether the dialect is served by either SQLite driver
func (d Dialect) IsSQLite() bool {
	return d == SQLite || d == SQLite3
}

// IsUniqueViolation reports whether err was raised by a unique index
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	// both SQLite drivers carry the constraint name in the message
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "PRIMARY KEY constraint failed")
}

func appendDSNParam(dsn, param string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&" + param
	}
	return dsn + "?" + param
}
