package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	// Registers the "pgx" database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// MigrationTableName is the table goose uses to track applied migrations.
const MigrationTableName = "schema_migrations"

//go:embed migrations/*.sql
var migrationFS embed.FS

// PoolConfig tunes the connection pool.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
}

// DefaultPoolConfig is used by Open when fields are zero.
var DefaultPoolConfig = PoolConfig{
	MaxOpenConns:    10,
	MaxIdleConns:    5,
	ConnMaxLifetime: 5 * time.Minute,
	PingTimeout:     5 * time.Second,
}

// Open connects to the database and verifies the connection.
func Open(ctx context.Context, databaseURL string, pool PoolConfig, logger *slog.Logger) (*sql.DB, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is empty")
	}
	if pool.MaxOpenConns <= 0 {
		pool.MaxOpenConns = DefaultPoolConfig.MaxOpenConns
	}
	if pool.MaxIdleConns <= 0 {
		pool.MaxIdleConns = DefaultPoolConfig.MaxIdleConns
	}
	if pool.ConnMaxLifetime <= 0 {
		pool.ConnMaxLifetime = DefaultPoolConfig.ConnMaxLifetime
	}
	if pool.PingTimeout <= 0 {
		pool.PingTimeout = DefaultPoolConfig.PingTimeout
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, pool.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("database ping timed out after %s: %w", pool.PingTimeout, err)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.InfoContext(ctx, "database connection established", "url", MaskURL(databaseURL))
	return db, nil
}

// MaskURL hides the password of a connection string for logging.
func MaskURL(databaseURL string) string {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "invalid-url"
	}
	if u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "xxxxx")
		}
	}
	return u.String()
}

// MigrationCommands lists the commands Migrate accepts.
var MigrationCommands = []string{"up", "down", "reset", "status", "version"}

// goose keeps its configuration in package globals.
var gooseMu sync.Mutex

// Migrate runs a goose command against the embedded migrations.
func Migrate(ctx context.Context, db *sql.DB, command string, logger *slog.Logger) error {
	log := logger.With("component", "migrations", "command", command)

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrationFS)
	goose.SetLogger(&slogGooseLogger{logger: log})
	goose.SetTableName(MigrationTableName)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}

	start := time.Now()
	var err error
	switch command {
	case "up":
		err = goose.UpContext(ctx, db, "migrations")
	case "down":
		err = goose.DownContext(ctx, db, "migrations")
	case "reset":
		err = goose.ResetContext(ctx, db, "migrations")
	case "status":
		err = goose.StatusContext(ctx, db, "migrations")
	case "version":
		err = goose.VersionContext(ctx, db, "migrations")
	default:
		return fmt.Errorf("unknown migration command %q (expected one of %v)", command, MigrationCommands)
	}
	if err != nil {
		log.ErrorContext(ctx, "migration command failed", "error", err)
		return fmt.Errorf("migration command %q failed: %w", command, err)
	}

	log.InfoContext(ctx, "migration command completed",
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// slogGooseLogger forwards goose output to slog. Fatalf does not exit so
// the caller decides how to stop.
type slogGooseLogger struct {
	logger *slog.Logger
}

func (l *slogGooseLogger) Printf(format string, v ...any) {
	l.logger.Info(fmt.Sprintf(format, v...))
}

func (l *slogGooseLogger) Fatalf(format string, v ...any) {
	l.logger.Error(fmt.Sprintf(format, v...))
}
