package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/jmoiron/sqlx"
	"google.golang.org/grpc/metadata"

	"ambulanceDispatch/internal/db"
)

// OpenInMemoryDB opens a named in-memory SQLite database and applies migrations.
// The database is closed via t.Cleanup.
func OpenInMemoryDB(t *testing.T, name string) *sqlx.DB {
	t.Helper()
	d, err := db.Open("file:" + name + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// TempDBPath returns a database file path inside a per-test temporary directory,
// for tests that close and reopen the store.
func TempDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "dispatch.db")
}

// OpenFileDB opens the database file at path and closes it via t.Cleanup.
func OpenFileDB(t *testing.T, path string) *sqlx.DB {
	t.Helper()
	d, err := db.Open(path)
	if err != nil {
		t.Fatalf("open db %s: %v", path, err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// Clock is a settable time source for tests.
type Clock struct {
	T time.Time
}

// NewClock returns a clock starting at a fixed UTC instant.
func NewClock() *Clock {
	return &Clock{T: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time { return c.T }

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) { c.T = c.T.Add(d) }

// GenerateJWTHS256 returns a signed JWT string with minimal claims used by the app.
func GenerateJWTHS256(t *testing.T, secret, name, kind string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"name": name,
		"kind": kind,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

// CtxWithBearer returns a context containing gRPC metadata Authorization header with the given token.
func CtxWithBearer(ctx context.Context, token string) context.Context {
	md := metadata.Pairs("authorization", "Bearer "+token)
	return metadata.NewIncomingContext(ctx, md)
}
