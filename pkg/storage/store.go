// Package storage persists categories, products and their price history in
// SQLite or Postgres.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "hunter-compare/pkg/errors"
	"hunter-compare/pkg/logger"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS categories (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	last_scraped_at DATETIME,
	in_progress BOOLEAN NOT NULL DEFAULT FALSE,
	created_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS products (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	category_id INTEGER NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
	name_a TEXT NOT NULL DEFAULT '',
	name_b TEXT NOT NULL DEFAULT '',
	price_a TEXT,
	price_b TEXT,
	updated_at DATETIME NOT NULL,
	UNIQUE (category_id, name_a, name_b)
);
CREATE TABLE IF NOT EXISTS price_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	product_id INTEGER NOT NULL REFERENCES products(id) ON DELETE CASCADE,
	source TEXT NOT NULL,
	price TEXT NOT NULL,
	recorded_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_price_history_product ON price_history(product_id, recorded_at);
CREATE TABLE IF NOT EXISTS result_snapshots (
	category_id INTEGER PRIMARY KEY REFERENCES categories(id) ON DELETE CASCADE,
	data TEXT NOT NULL,
	scraped_at DATETIME NOT NULL
);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS categories (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	last_scraped_at TIMESTAMPTZ,
	in_progress BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS products (
	id BIGSERIAL PRIMARY KEY,
	category_id BIGINT NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
	name_a TEXT NOT NULL DEFAULT '',
	name_b TEXT NOT NULL DEFAULT '',
	price_a NUMERIC(10,2),
	price_b NUMERIC(10,2),
	updated_at TIMESTAMPTZ NOT NULL,
	UNIQUE (category_id, name_a, name_b)
);
CREATE TABLE IF NOT EXISTS price_history (
	id BIGSERIAL PRIMARY KEY,
	product_id BIGINT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
	source TEXT NOT NULL,
	price NUMERIC(10,2) NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_price_history_product ON price_history(product_id, recorded_at);
CREATE TABLE IF NOT EXISTS result_snapshots (
	category_id BIGINT PRIMARY KEY REFERENCES categories(id) ON DELETE CASCADE,
	data TEXT NOT NULL,
	scraped_at TIMESTAMPTZ NOT NULL
);
`

// Store is the persistence adapter. Category status changes go through
// single atomic statements so concurrent jobs never read-modify-write.
type Store struct {
	db     *sql.DB
	driver string
	log    *logger.Logger
	now    func() time.Time
}

// Open connects to dsn with driver "sqlite" or "postgres" and creates the
// schema when missing.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = sqliteSchema
	case DriverPostgres:
		schema = postgresSchema
	default:
		return nil, apperrors.NewConfiguration(fmt.Sprintf("unsupported database driver %q", driver), nil)
	}

	if driver == DriverSQLite {
		dsn = withSQLitePragmas(dsn)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, apperrors.NewStorage("open database", err)
	}
	if driver == DriverSQLite {
		// One connection serializes writers.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, apperrors.NewStorage("connect to database", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, apperrors.NewStorage("create schema", err)
	}

	s := &Store{
		db:     db,
		driver: driver,
		log:    logger.For("storage"),
		now:    func() time.Time { return time.Now().UTC() },
	}
	s.log.Info().Str("driver", driver).Msg("Storage ready")
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// withSQLitePragmas enables foreign keys and a busy timeout on every
// connection unless the DSN already sets pragmas.
func withSQLitePragmas(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// q rewrites ? placeholders to $n for Postgres.
func (s *Store) q(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
