// Package testutil provides Postgres and Redis harnesses plus builders for moderation tests.
//
// Database tests run against TEST_DB_* (default localhost:55432) and are skipped when it is
// unreachable unless TEST_REQUIRE_DB or TEST_REQUIRE_INFRA is set.
package testutil

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"net"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	// Registers the "pgx" database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/target/mmk-moderation/internal/migrate"
)

// DBConfig locates the test Postgres server.
type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DefaultDBConfig reads TEST_DB_HOST, TEST_DB_PORT, TEST_DB_USER, TEST_DB_PASSWORD, TEST_DB_NAME
// and DB_SSL_MODE.
func DefaultDBConfig() DBConfig {
	return DBConfig{
		Host:     envOr("TEST_DB_HOST", "localhost"),
		Port:     envOr("TEST_DB_PORT", "55432"),
		User:     envOr("TEST_DB_USER", "moderation"),
		Password: envOr("TEST_DB_PASSWORD", "moderation"),
		Name:     envOr("TEST_DB_NAME", "moderation"),
		SSLMode:  envOr("DB_SSL_MODE", "disable"),
	}
}

// DSN renders the connection URL. A non-empty schema is put first on the search_path.
func (c DBConfig) DSN(schema string) string {
	q := url.Values{}
	q.Set("sslmode", c.SSLMode)
	if schema != "" {
		q.Set("search_path", schema+",public")
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, c.Port),
		Path:     "/" + c.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// SkipIfNoTestDB skips t when the test database cannot be pinged.
func SkipIfNoTestDB(t testing.TB) {
	t.Helper()
	db, err := sql.Open("pgx", DefaultDBConfig().DSN(""))
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = db.PingContext(ctx)
		cancel()
		_ = db.Close()
	}
	if err == nil {
		return
	}
	if envBool("TEST_REQUIRE_DB") || envBool("TEST_REQUIRE_INFRA") {
		t.Fatalf("test database not available: %v", err)
	}
	t.Skipf("test database not available: %v", err)
}

// WithAutoDB runs fn against a freshly migrated schema that is dropped when t finishes.
// Every call gets its own schema, so database tests may run in parallel.
func WithAutoDB(t testing.TB, fn func(*sql.DB)) {
	t.Helper()
	fn(SetupSchemaDB(t))
}

// SetupSchemaDB creates a throwaway schema, migrates it and returns a pool scoped to it.
func SetupSchemaDB(t testing.TB) *sql.DB {
	t.Helper()
	SkipIfNoTestDB(t)
	cfg := DefaultDBConfig()

	admin := openPinged(t, cfg.DSN(""))
	schema := schemaName()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := admin.ExecContext(ctx, "CREATE SCHEMA "+schema); err != nil {
		_ = admin.Close()
		t.Fatalf("create schema %s: %v", schema, err)
	}

	db := openPinged(t, cfg.DSN(schema))
	db.SetMaxOpenConns(10)
	t.Cleanup(func() {
		_ = db.Close()
		dropCtx, dropCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer dropCancel()
		if _, err := admin.ExecContext(dropCtx, "DROP SCHEMA IF EXISTS "+schema+" CASCADE"); err != nil {
			t.Logf("drop schema %s: %v", schema, err)
		}
		_ = admin.Close()
	})

	if err := migrate.Run(ctx, db); err != nil {
		t.Fatalf("migrate schema %s: %v", schema, err)
	}
	return db
}

func openPinged(t testing.TB, dsn string) *sql.DB {
	t.Helper()
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		t.Fatalf("ping test db: %v", err)
	}
	return db
}

// schemaName returns "t_" plus 8 random hex characters.
func schemaName() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "t_" + strings.ReplaceAll(time.Now().Format("150405.000000"), ".", "")
	}
	return "t_" + hex.EncodeToString(b)
}

// JobState is a raw view of one jobs row.
type JobState struct {
	ID           string
	Kind         string
	Status       string
	AttemptCount int
	MaxAttempts  int
	LastError    *string
}

// InspectJobStates lists every job row in creation order.
func InspectJobStates(t testing.TB, db *sql.DB) []JobState {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rows, err := db.QueryContext(ctx,
		`SELECT id, type, status, retry_count, max_retries, last_error FROM jobs ORDER BY created_at`)
	if err != nil {
		t.Fatalf("query job states: %v", err)
	}
	defer func() { _ = rows.Close() }()

	var out []JobState
	for rows.Next() {
		var s JobState
		if err := rows.Scan(&s.ID, &s.Kind, &s.Status, &s.AttemptCount, &s.MaxAttempts, &s.LastError); err != nil {
			t.Fatalf("scan job state: %v", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("iterate job states: %v", err)
	}
	return out
}

// TestTime is the fixed clock used by builders and service tests.
func TestTime() time.Time {
	return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

// StringPtr returns &s.
func StringPtr(s string) *string { return &s }

// Int64Ptr returns &i.
func Int64Ptr(i int64) *int64 { return &i }

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}
