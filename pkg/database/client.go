// Package database provides the PostgreSQL-backed session.Store (spec
// §6 persistence layout: a sessions table and an artifacts table keyed
// by session_id), connection pooling, and embedded migrations.
package database

import (
	"context"
	stdsql "database/sql"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver for migrate
)

//go:embed migrations
var migrationsFS embed.FS

// Client owns a pgx connection pool and runs migrations; the
// session.Store implementation is Store, built on Client.Pool().
type Client struct {
	pool *pgxpool.Pool
}

// NewClient opens a connection pool against dsn, runs pending
// migrations, and returns a ready-to-use Client.
func NewClient(ctx context.Context, dsn string) (*Client, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(dsn); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Client{pool: pool}, nil
}

// NewClientFromPool wraps an existing pool without pinging it or
// running migrations.
func NewClientFromPool(pool *pgxpool.Pool) *Client {
	return &Client{pool: pool}
}

// Close releases the underlying connection pool.
func (c *Client) Close() {
	c.pool.Close()
}

// Pool exposes the underlying connection pool so callers can build a
// Store (or other pool-backed component) against the same connections
// NewClient already opened and migrated.
func (c *Client) Pool() *pgxpool.Pool {
	return c.pool
}

// runMigrations applies every embedded *.sql migration using its own
// plain database/sql connection, independent of the pgx pool used for
// normal traffic (golang-migrate's postgres driver wants a *sql.DB).
func runMigrations(dsn string) error {
	db, err := stdsql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create postgres migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}
	defer source.Close()

	m, err := migrate.NewWithInstance("iofs", source, "coderloop", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
