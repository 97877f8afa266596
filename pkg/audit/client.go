// Package audit is the optional persisted-audit collaborator: when
// DATABASE_URL is set it stores security events and traced MCP messages in
// PostgreSQL; when unset the hub runs with slog-only, in-memory auditing
// and this package is never constructed.
package audit

import (
	"context"
	stdsql "database/sql"
	"embed"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations
var migrationsFS embed.FS

// Config holds the optional audit database's connection settings.
type Config struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// LoadConfigFromEnv reads DATABASE_URL and returns ok=false when it is
// unset — the caller should skip constructing a Client entirely.
func LoadConfigFromEnv() (cfg Config, ok bool) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		return Config{}, false
	}

	maxOpen, _ := strconv.Atoi(getEnvOrDefault("AUDIT_DB_MAX_OPEN_CONNS", "10"))
	maxIdle, _ := strconv.Atoi(getEnvOrDefault("AUDIT_DB_MAX_IDLE_CONNS", "5"))
	lifetime, _ := time.ParseDuration(getEnvOrDefault("AUDIT_DB_CONN_MAX_LIFETIME", "1h"))

	return Config{
		URL:             url,
		MaxOpenConns:    maxOpen,
		MaxIdleConns:    maxIdle,
		ConnMaxLifetime: lifetime,
	}, true
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Client wraps the pgx-backed *sql.DB used for security-event and
// message-trace persistence.
type Client struct {
	db *stdsql.DB
}

// DB returns the underlying connection for health checks.
func (c *Client) DB() *stdsql.DB {
	return c.db
}

// NewClient opens the audit database, configures the pool, and applies any
// pending migrations.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	db, err := stdsql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping audit database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run audit migrations: %w", err)
	}

	return &Client{db: db}, nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.db.Close()
}

func runMigrations(db *stdsql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create postgres migrate driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "audit", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	// Close only the migration source; m.Close() would also close db, which
	// the caller still owns.
	return sourceDriver.Close()
}
