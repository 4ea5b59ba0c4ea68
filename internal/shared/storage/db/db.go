package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/kelseyhightower/envconfig"

	"writer-backend/internal/shared/telemetry"
)

// Options controls the connection pool. ApplicationName shows up in
// pg_stat_activity so api, worker and CLI sessions can be told apart.
type Options struct {
	ApplicationName string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

var (
	openDB = openPGX

	singletonMu    sync.Mutex
	singletonCond  = sync.NewCond(&singletonMu)
	singletonDB    *sql.DB
	singletonInFly bool
)

// DefaultServerOptions sizes the pool for the HTTP API.
func DefaultServerOptions() Options {
	return Options{
		ApplicationName: "writer-api",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxIdleTime: 2 * time.Minute,
		ConnMaxLifetime: time.Hour,
		PingTimeout:     5 * time.Second,
	}
}

// DefaultWorkerOptions sizes the pool for a generation worker, which holds
// connections only briefly around each stage change.
func DefaultWorkerOptions() Options {
	return Options{
		ApplicationName: "writer-worker",
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxIdleTime: time.Minute,
		ConnMaxLifetime: 30 * time.Minute,
		PingTimeout:     5 * time.Second,
	}
}

// DefaultMigrateOptions is a single connection for migrations and CLI tools.
func DefaultMigrateOptions() Options {
	return Options{
		ApplicationName: "writer-cli",
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxIdleTime: 2 * time.Minute,
		ConnMaxLifetime: time.Hour,
		PingTimeout:     5 * time.Second,
	}
}

// envOverrides are read with the DB_ prefix; unset fields stay nil.
type envOverrides struct {
	MaxOpenConns    *int           `envconfig:"MAX_OPEN_CONNS"`
	MaxIdleConns    *int           `envconfig:"MAX_IDLE_CONNS"`
	ConnMaxLifetime *time.Duration `envconfig:"CONN_MAX_LIFETIME"`
	ConnMaxIdleTime *time.Duration `envconfig:"CONN_MAX_IDLE_TIME"`
	PingTimeout     *time.Duration `envconfig:"PING_TIMEOUT"`
	ApplicationName *string        `envconfig:"APPLICATION_NAME"`
}

// OptionsFromEnv applies DB_* overrides to defaults. Malformed values are
// logged and the defaults are kept.
func OptionsFromEnv(defaults Options) Options {
	var env envOverrides
	if err := envconfig.Process("DB", &env); err != nil {
		telemetry.Warn("db.env_invalid", map[string]any{"error": err})
		return defaults
	}
	opts := defaults
	if env.MaxOpenConns != nil {
		opts.MaxOpenConns = *env.MaxOpenConns
	}
	if env.MaxIdleConns != nil {
		opts.MaxIdleConns = *env.MaxIdleConns
	}
	if env.ConnMaxLifetime != nil {
		opts.ConnMaxLifetime = *env.ConnMaxLifetime
	}
	if env.ConnMaxIdleTime != nil {
		opts.ConnMaxIdleTime = *env.ConnMaxIdleTime
	}
	if env.PingTimeout != nil {
		opts.PingTimeout = *env.PingTimeout
	}
	if env.ApplicationName != nil && strings.TrimSpace(*env.ApplicationName) != "" {
		opts.ApplicationName = strings.TrimSpace(*env.ApplicationName)
	}
	return opts
}

func openPGX(databaseURL string, opts Options) (*sql.DB, error) {
	connCfg, err := pgx.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	if opts.ApplicationName != "" {
		connCfg.RuntimeParams["application_name"] = opts.ApplicationName
	}
	return stdlib.OpenDB(*connCfg), nil
}

// Connect opens a pool for databaseURL and pings it. Callers share the
// returned *sql.DB.
func Connect(ctx context.Context, databaseURL string, opts Options) (*sql.DB, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := openDB(databaseURL, opts)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	applyOptions(db, opts)

	pingTimeout := opts.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logPoolStats(db, opts.ApplicationName)
	return db, nil
}

// GetSingleton returns a process-wide *sql.DB, connecting on first use.
// Concurrent callers wait for the first attempt; a failed attempt is retried
// by the next call.
func GetSingleton(ctx context.Context, databaseURL string, opts Options) (*sql.DB, error) {
	singletonMu.Lock()
	for singletonInFly && singletonDB == nil {
		singletonCond.Wait()
	}
	if singletonDB != nil {
		db := singletonDB
		singletonMu.Unlock()
		return db, nil
	}
	singletonInFly = true
	singletonMu.Unlock()

	db, err := Connect(ctx, databaseURL, opts)

	singletonMu.Lock()
	defer singletonMu.Unlock()
	if err == nil {
		singletonDB = db
	}
	singletonInFly = false
	singletonCond.Broadcast()
	return singletonDB, err
}

func applyOptions(db *sql.DB, opts Options) {
	db.SetMaxOpenConns(max(opts.MaxOpenConns, 1))
	db.SetMaxIdleConns(max(opts.MaxIdleConns, 1))
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	} else {
		db.SetConnMaxLifetime(time.Hour)
	}
	if opts.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(opts.ConnMaxIdleTime)
	}
}

func logPoolStats(db *sql.DB, app string) {
	stats := db.Stats()
	telemetry.Info("db.connected", map[string]any{
		"application": app,
		"open":        stats.OpenConnections,
		"idle":        stats.Idle,
		"max_open":    stats.MaxOpenConnections,
	})
}
