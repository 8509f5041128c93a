package database

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"lumina/internal/config"
)

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New(context.Background(), config.StoreConfig{Driver: "oracle", URL: "x"})
	if err == nil {
		t.Fatalf("New() error = nil, want unsupported driver")
	}
}

func TestDialectorForKnownDrivers(t *testing.T) {
	for _, driver := range []string{"postgres", "postgresql", "mysql", "sqlite", "sqlite3"} {
		d, err := dialectorFor(driver, "dsn")
		if err != nil {
			t.Fatalf("dialectorFor(%q) error = %v", driver, err)
		}
		if d == nil {
			t.Fatalf("dialectorFor(%q) returned nil dialector", driver)
		}
	}
}

func TestPingFailureClosesThePool(t *testing.T) {
	// The directory does not exist, so the first connection fails.
	sqlDB, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "missing", "lumina.db"))
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	if err := pingOrClose(context.Background(), sqlDB); err == nil {
		t.Fatal("pingOrClose() error = nil, want unreachable store")
	}
	if err := sqlDB.Ping(); err == nil || !strings.Contains(err.Error(), "closed") {
		t.Fatalf("Ping() after failed check = %v, want closed pool", err)
	}
}

func TestNewReportsUnreachableStore(t *testing.T) {
	_, err := New(context.Background(), config.StoreConfig{
		Driver: "sqlite",
		URL:    filepath.Join(t.TempDir(), "missing", "lumina.db"),
	})
	if err == nil {
		t.Fatal("New() error = nil, want unreachable store")
	}
}
