package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

// stubOpen points openDB at sqlmock pools. Each call to open returns a fresh
// pool that expects exactly one ping, or fails when failFirst is set and it
// is the first call.
func stubOpen(t *testing.T, failFirst bool) *int32 {
	t.Helper()
	var calls int32
	prev := openDB
	openDB = func(dsn string, opts Options) (*sql.DB, error) {
		if atomic.AddInt32(&calls, 1) == 1 && failFirst {
			return nil, errors.New("dial tcp: connection refused")
		}
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		if err != nil {
			return nil, err
		}
		mock.ExpectPing()
		return db, nil
	}
	t.Cleanup(func() { openDB = prev })
	return &calls
}

func resetSingleton(t *testing.T) {
	t.Helper()
	reset := func() {
		singletonMu.Lock()
		singletonDB = nil
		singletonInFly = false
		singletonMu.Unlock()
	}
	reset()
	t.Cleanup(reset)
}

func TestConnectAppliesEnvPoolSettings(t *testing.T) {
	stubOpen(t, false)
	t.Setenv("DB_MAX_OPEN_CONNS", "7")
	t.Setenv("DB_MAX_IDLE_CONNS", "3")
	t.Setenv("DB_CONN_MAX_LIFETIME", "20m")
	t.Setenv("DB_CONN_MAX_IDLE_TIME", "45s")
	t.Setenv("DB_PING_TIMEOUT", "1s")
	t.Setenv("DB_APPLICATION_NAME", "writer-api-canary")

	opts := OptionsFromEnv(DefaultServerOptions())
	want := Options{
		MaxOpenConns:    7,
		MaxIdleConns:    3,
		ConnMaxLifetime: 20 * time.Minute,
		ConnMaxIdleTime: 45 * time.Second,
		PingTimeout:     time.Second,
		ApplicationName: "writer-api-canary",
	}
	if opts != want {
		t.Fatalf("expected %+v, got %+v", want, opts)
	}

	db, err := Connect(context.Background(), "postgres://writer@db/writer", opts)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer db.Close()
	if got := db.Stats().MaxOpenConnections; got != 7 {
		t.Fatalf("expected MaxOpenConnections=7, got %d", got)
	}
}

func TestConnectClosesPoolWhenPingFails(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	mock.ExpectPing().WillReturnError(errors.New("password authentication failed"))
	mock.ExpectClose()
	prev := openDB
	openDB = func(string, Options) (*sql.DB, error) { return db, nil }
	t.Cleanup(func() { openDB = prev })

	_, err = Connect(context.Background(), "postgres://writer@db/writer", DefaultMigrateOptions())
	if err == nil || !strings.Contains(err.Error(), "ping database") {
		t.Fatalf("expected ping error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestOptionsFromEnvKeepsDefaultsOnBadValue(t *testing.T) {
	t.Setenv("DB_MAX_OPEN_CONNS", "many")

	opts := OptionsFromEnv(DefaultWorkerOptions())
	if opts != DefaultWorkerOptions() {
		t.Fatalf("expected worker defaults, got %+v", opts)
	}
}

func TestDefaultOptionsNameEachBinary(t *testing.T) {
	names := map[string]Options{
		"writer-api":    DefaultServerOptions(),
		"writer-worker": DefaultWorkerOptions(),
		"writer-cli":    DefaultMigrateOptions(),
	}
	for want, opts := range names {
		if opts.ApplicationName != want {
			t.Fatalf("expected application name %q, got %q", want, opts.ApplicationName)
		}
	}
}

func TestOpenPGXSetsApplicationName(t *testing.T) {
	db, err := openPGX("postgres://writer:pw@localhost:5432/writer?sslmode=disable", Options{ApplicationName: "writer-test"})
	if err != nil {
		t.Fatalf("openPGX: %v", err)
	}
	defer db.Close()
	if db.Driver() == nil {
		t.Fatalf("expected pgx driver")
	}
}

func TestConnectRejectsEmptyURL(t *testing.T) {
	if _, err := Connect(context.Background(), "  ", DefaultServerOptions()); err == nil {
		t.Fatalf("expected error for empty DATABASE_URL")
	}
}

func TestGetSingletonConnectsOnce(t *testing.T) {
	calls := stubOpen(t, false)
	resetSingleton(t)

	var wg sync.WaitGroup
	pools := make([]*sql.DB, 8)
	for i := range pools {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			db, err := GetSingleton(context.Background(), "postgres://writer@db/writer", DefaultWorkerOptions())
			if err != nil {
				t.Errorf("GetSingleton: %v", err)
				return
			}
			pools[i] = db
		}(i)
	}
	wg.Wait()

	if n := atomic.LoadInt32(calls); n != 1 {
		t.Fatalf("expected one connect, got %d", n)
	}
	for _, db := range pools[1:] {
		if db != pools[0] {
			t.Fatalf("expected every caller to share the pool")
		}
	}
}

func TestGetSingletonRetriesAfterFailure(t *testing.T) {
	calls := stubOpen(t, true)
	resetSingleton(t)

	if _, err := GetSingleton(context.Background(), "postgres://writer@db/writer", DefaultWorkerOptions()); err == nil {
		t.Fatalf("expected first call to fail")
	}
	db, err := GetSingleton(context.Background(), "postgres://writer@db/writer", DefaultWorkerOptions())
	if err != nil {
		t.Fatalf("expected second call to succeed: %v", err)
	}
	if db == nil || atomic.LoadInt32(calls) != 2 {
		t.Fatalf("expected a pool from the second attempt, calls=%d", atomic.LoadInt32(calls))
	}
}
