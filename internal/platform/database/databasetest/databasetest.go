// Package databasetest opens throwaway sqlite stores for tests.
package databasetest

import (
	"context"
	"path/filepath"
	"testing"

	"gorm.io/gorm"

	"lumina/internal/config"
	"lumina/internal/platform/database"
)

// Open returns a migrated sqlite store in the test's temp dir. It is closed
// when the test finishes.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "lumina.db") + "?_foreign_keys=on"
	db, err := database.New(context.Background(), config.StoreConfig{
		Driver:       "sqlite",
		URL:          dsn,
		MaxOpenConns: 1,
	})
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate sqlite store: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}
