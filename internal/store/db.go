package store

import (
	"context"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// DB wraps sqlx.DB over Postgres (pgx) or SQLite.
type DB struct {
	Client *sqlx.DB
}

// Driver picks the database/sql driver for a connection string:
// postgres:// and postgresql:// use pgx, sqlite:// and file: use go-sqlite3.
func Driver(connString string) (driver, dsn string) {
	switch {
	case strings.HasPrefix(connString, "sqlite://"):
		return "sqlite3", strings.TrimPrefix(connString, "sqlite://")
	case strings.HasPrefix(connString, "file:"), connString == ":memory:":
		return "sqlite3", connString
	default:
		return "pgx", connString
	}
}

// NewDB opens a connection with sane defaults and pings it.
func NewDB(ctx context.Context, connString string) (*DB, error) {
	driver, dsn := Driver(connString)
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == "sqlite3" {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(time.Hour)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DB{Client: db}, nil
}

// Healthy verifies database connectivity.
func (d *DB) Healthy(ctx context.Context) bool {
	if d == nil || d.Client == nil {
		return false
	}
	return d.Client.PingContext(ctx) == nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}
