package app

import (
	"testing"
	"time"

	"lumina/internal/backend"
	"lumina/internal/platform/database/databasetest"
)

func TestRegistrySweepsIdleSessions(t *testing.T) {
	p := backend.NewProvider(databasetest.Open(t), backend.Options{Secret: "test-secret"})
	r := NewRegistry(func() Backend { return p.NewClient() }, time.Hour, nil, nil)
	defer r.Close()

	clock := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return clock }

	stale := r.Create()
	clock = clock.Add(45 * time.Minute)
	fresh := r.Create()
	if stale.ID() == fresh.ID() {
		t.Fatal("ids must be unique")
	}

	clock = clock.Add(30 * time.Minute)
	if closed := r.Sweep(); closed != 1 {
		t.Fatalf("Sweep() closed %d, want 1", closed)
	}
	if _, ok := r.Get(stale.ID()); ok {
		t.Fatal("stale session should be gone")
	}
	if _, ok := r.Get(fresh.ID()); !ok {
		t.Fatal("fresh session should survive")
	}

	clock = clock.Add(50 * time.Minute)
	if closed := r.Sweep(); closed != 0 {
		t.Fatalf("Get should have refreshed the session, closed %d", closed)
	}
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}
}
