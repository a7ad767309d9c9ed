package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog/log"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// Dialect names understood by goqu for each driver.
const (
	DialectSQLite   = "sqlite3"
	DialectPostgres = "postgres"
)

// OpenSQLite opens a local sqlite file, or a remote libsql database when the
// path is a libsql:// or wss:// URL, and applies the schema.
func OpenSQLite(ctx context.Context, dbPath string) (*sql.DB, error) {
	driver, dsn := "sqlite", formatDBPath(dbPath)
	if strings.HasPrefix(dbPath, "libsql://") || strings.HasPrefix(dbPath, "wss://") {
		driver, dsn = "libsql", dbPath
	}

	instance, err := open(ctx, driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" {
		// sqlite allows a single writer; one connection keeps writers queued
		// in database/sql instead of failing with SQLITE_BUSY.
		instance.SetMaxOpenConns(1)
	}

	if err := migrate(ctx, instance, sqliteSchema); err != nil {
		instance.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info().Str("driver", driver).Msg("migrations completed successfully")

	return instance, nil
}

func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	instance, err := open(ctx, "pgx", dsn)
	if err != nil {
		return nil, err
	}

	if err := migrate(ctx, instance, postgresSchema); err != nil {
		instance.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info().Str("driver", "pgx").Msg("migrations completed successfully")

	return instance, nil
}

func open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	instance, err := sql.Open(driver, dsn)
	if err != nil {
		log.Error().Err(err).Str("driver", driver).Msg("failed to open database")
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := instance.PingContext(ctx); err != nil {
		log.Error().Err(err).Str("driver", driver).Msg("failed to ping database")
		instance.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Debug().Str("driver", driver).Msg("database connection successful")
	return instance, nil
}

func formatDBPath(path string) string {
	path = strings.TrimPrefix(path, "file:")

	// See: https://pkg.go.dev/modernc.org/sqlite#pkg-overview
	params := url.Values{}
	params.Set("mode", "rwc")
	params.Set("_pragma", "journal_mode(WAL)")
	params.Add("_pragma", "synchronous(NORMAL)")
	params.Add("_pragma", "busy_timeout(5000)")

	return "file:" + path + "?" + params.Encode()
}

// created_at and updated_at are stored as fixed width UTC text so that
// lexical order matches chronological order.
const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS short_links (
		slug TEXT PRIMARY KEY,
		target_url TEXT NOT NULL,
		clicks INTEGER NOT NULL DEFAULT 0 CHECK (clicks >= 0),
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_short_links_created_at ON short_links(created_at);
	`

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS short_links (
		slug TEXT PRIMARY KEY,
		target_url TEXT NOT NULL,
		clicks BIGINT NOT NULL DEFAULT 0 CHECK (clicks >= 0),
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_short_links_created_at ON short_links(created_at);
	`

func migrate(ctx context.Context, db *sql.DB, schema string) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}
