package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

var db *sql.DB

// Initialize connects to Postgres and verifies the connection.
func Initialize(ctx context.Context, dsn string, maxOpenConns int) error {
	conn, err := sql.Open("postgres", withPoolerSafeParams(dsn))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if maxOpenConns <= 0 {
		maxOpenConns = 1
	}
	conn.SetMaxOpenConns(maxOpenConns)
	conn.SetMaxIdleConns(maxOpenConns)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db = conn
	return nil
}

// withPoolerSafeParams appends binary_parameters=yes to the DSN if not present.
// This nudges lib/pq to avoid server-side prepared statements, which break
// behind PgBouncer/Supavisor transaction pooling.
func withPoolerSafeParams(dsn string) string {
	lower := strings.ToLower(dsn)
	if strings.Contains(lower, "binary_parameters=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "binary_parameters=yes"
}

// GetDB returns the database connection
func GetDB() *sql.DB {
	return db
}

// Close releases the pool, if one was opened.
func Close() error {
	if db == nil {
		return nil
	}
	err := db.Close()
	db = nil
	return err
}
