package store

import (
	"errors"
	"testing"
	"time"

	"github.com/rmaia/idlink/internal/domain"
	"github.com/rmaia/idlink/internal/testutil"
)

func TestIdentityStore_LoadEmpty(t *testing.T) {
	database, _ := testutil.TempDB(t)
	s := New(database)

	prior, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(prior) != 0 {
		t.Errorf("Load() = %v, want empty", prior)
	}
}

func TestIdentityStore_FlushAndReload(t *testing.T) {
	database, _ := testutil.TempDB(t)
	s := New(database)

	assignments := []domain.Identity{
		{LegacyID: "123", UUID: "550e8400-e29b-41d4-a716-446655440000", Origin: domain.OriginMinted},
		{LegacyID: "999", UUID: "550e8400-e29b-41d4-a716-446655440000", Origin: domain.OriginReused},
	}
	if err := s.Flush(assignments, "oss", time.Now(), []byte(`{}`)); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}

	prior, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(prior) != 2 {
		t.Fatalf("Load() = %v, want 2 entries", prior)
	}
	if prior["123"] != "550e8400-e29b-41d4-a716-446655440000" {
		t.Errorf("prior[123] = %q", prior["123"])
	}

	count, err := s.Count()
	if err != nil {
		t.Fatalf("Count() error: %v", err)
	}
	if count != 2 {
		t.Errorf("Count() = %d, want 2", count)
	}
}

func TestIdentityStore_FlushNeverOverwrites(t *testing.T) {
	database, _ := testutil.TempDB(t)
	s := New(database)

	first := []domain.Identity{{LegacyID: "123", UUID: "550e8400-e29b-41d4-a716-446655440000", Origin: domain.OriginMinted}}
	if err := s.Flush(first, "oss", time.Now(), []byte(`{}`)); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}

	// A later run that somehow computed a different UUID for the same
	// legacy id must not displace the stored one.
	second := []domain.Identity{{LegacyID: "123", UUID: "b5f9e6f2-68c1-4f6e-9d3a-111111111111", Origin: domain.OriginMinted}}
	if err := s.Flush(second, "vixen", time.Now(), []byte(`{}`)); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}

	prior, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if prior["123"] != "550e8400-e29b-41d4-a716-446655440000" {
		t.Errorf("prior[123] = %q, want the original UUID", prior["123"])
	}
}

func TestIdentityStore_FlushRecordsRun(t *testing.T) {
	database, _ := testutil.TempDB(t)
	s := New(database)

	startedAt := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	if err := s.Flush(nil, "vixen", startedAt, []byte(`{"total_source_records":0}`)); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}

	var sourceSystem, report string
	err := database.QueryRow("SELECT source_system, report FROM runs").Scan(&sourceSystem, &report)
	if err != nil {
		t.Fatalf("query runs: %v", err)
	}
	if sourceSystem != "vixen" {
		t.Errorf("source_system = %q, want vixen", sourceSystem)
	}
	if report != `{"total_source_records":0}` {
		t.Errorf("report = %q", report)
	}
}

func TestIdentityStore_LastReport(t *testing.T) {
	database, _ := testutil.TempDB(t)
	s := New(database)

	if _, ok, err := s.LastReport("oss"); err != nil || ok {
		t.Fatalf("LastReport() on empty store = ok=%v err=%v, want no report", ok, err)
	}

	if err := s.Flush(nil, "oss", time.Now(), []byte(`{"total_source_records":1}`)); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}
	if err := s.Flush(nil, "oss", time.Now(), []byte(`{"total_source_records":2}`)); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}
	if err := s.Flush(nil, "vixen", time.Now(), []byte(`{"total_source_records":9}`)); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}

	report, ok, err := s.LastReport("oss")
	if err != nil {
		t.Fatalf("LastReport() error: %v", err)
	}
	if !ok {
		t.Fatal("LastReport() found no report after flushes")
	}
	if string(report) != `{"total_source_records":2}` {
		t.Errorf("LastReport() = %s, want the most recent oss report", report)
	}
}

func TestIdentityStore_LoadFailureIsStoreIOError(t *testing.T) {
	database, _ := testutil.TempDB(t)
	s := New(database)
	database.Close()

	_, err := s.Load()
	if err == nil {
		t.Fatal("Load() on closed database should fail")
	}
	var storeErr *domain.StoreIOError
	if !errors.As(err, &storeErr) {
		t.Errorf("error = %v, want StoreIOError", err)
	}
	if storeErr.Op != "load" {
		t.Errorf("Op = %q, want load", storeErr.Op)
	}
}

func TestIdentityStore_FlushFailureIsAtomic(t *testing.T) {
	database, _ := testutil.TempDB(t)
	s := New(database)

	// An invalid origin violates the CHECK constraint on the second row;
	// the first row must not survive the rollback.
	assignments := []domain.Identity{
		{LegacyID: "1", UUID: "550e8400-e29b-41d4-a716-446655440000", Origin: domain.OriginMinted},
		{LegacyID: "2", UUID: "b5f9e6f2-68c1-4f6e-9d3a-111111111111", Origin: domain.Origin("BOGUS")},
	}
	err := s.Flush(assignments, "oss", time.Now(), []byte(`{}`))
	if err == nil {
		t.Fatal("Flush() with invalid origin should fail")
	}
	var storeErr *domain.StoreIOError
	if !errors.As(err, &storeErr) {
		t.Errorf("error = %v, want StoreIOError", err)
	}

	count, err := s.Count()
	if err != nil {
		t.Fatalf("Count() error: %v", err)
	}
	if count != 0 {
		t.Errorf("Count() = %d after failed flush, want 0", count)
	}
}
