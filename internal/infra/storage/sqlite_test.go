package storage

import (
	"path/filepath"
	"testing"
	"time"

	"token_swap/internal/domain"
)

func setupTestDB(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func TestSQLite_StoreContract(t *testing.T) {
	runStoreContract(t, setupTestDB(t))
}

func TestSQLite_JournalContract(t *testing.T) {
	runJournalContract(t, setupTestDB(t))
}

func TestSQLite_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	s, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	s.SaveState(domain.StatePaused)
	s.Close()

	s, err = NewSQLite(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()
	state, ok, err := s.LoadState()
	if err != nil || !ok || state != domain.StatePaused {
		t.Errorf("expected persisted Paused, got %v %v %v", state, ok, err)
	}
}

func TestUpsertAndGetAsset(t *testing.T) {
	s := setupTestDB(t)

	asset := &domain.AssetInfo{
		Asset:     "TEST-abcdef",
		Ticker:    "TEST",
		IsActive:  true,
		UpdatedAt: time.Now(),
	}

	// 1. Create
	if err := s.UpsertAsset(asset); err != nil {
		t.Fatalf("UpsertAsset failed: %v", err)
	}

	// 2. Get
	fetched, err := s.GetAsset("TEST-abcdef")
	if err != nil {
		t.Fatalf("GetAsset failed: %v", err)
	}
	if fetched == nil {
		t.Fatal("fetched asset is nil")
	}
	if fetched.Ticker != "TEST" {
		t.Errorf("expected ticker TEST, got %s", fetched.Ticker)
	}
}

func TestUpdateAsset(t *testing.T) {
	s := setupTestDB(t)
	asset := &domain.AssetInfo{Asset: "UPDATE-abcdef", IconPath: "before.png"}
	s.UpsertAsset(asset)

	// Update
	asset.IconPath = "after.png"
	if err := s.UpsertAsset(asset); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	fetched, _ := s.GetAsset("UPDATE-abcdef")
	if fetched.IconPath != "after.png" {
		t.Errorf("expected icon 'after.png', got '%s'", fetched.IconPath)
	}
}

func TestDeleteAsset(t *testing.T) {
	s := setupTestDB(t)
	s.UpsertAsset(&domain.AssetInfo{Asset: "DEL-abcdef"})

	// Delete
	if err := s.DeleteAsset("DEL-abcdef"); err != nil {
		t.Fatalf("DeleteAsset failed: %v", err)
	}

	// Verify
	fetched, err := s.GetAsset("DEL-abcdef")
	if err != nil {
		t.Fatalf("GetAsset after delete failed: %v", err)
	}
	if fetched != nil {
		t.Error("expected asset to be deleted, but found record")
	}
}

func TestToggleActive(t *testing.T) {
	s := setupTestDB(t)
	s.UpsertAsset(&domain.AssetInfo{Asset: "FAV-abcdef", IsActive: false})
	s.UpsertAsset(&domain.AssetInfo{Asset: "ALT-abcdef", IsActive: false})

	active, err := s.ToggleActive("FAV-abcdef")
	if err != nil {
		t.Fatalf("ToggleActive failed: %v", err)
	}
	if !active {
		t.Error("expected IsActive to be true")
	}

	listed, _ := s.ListAssets(true)
	if len(listed) != 1 || listed[0].Asset != "FAV-abcdef" {
		t.Errorf("expected only FAV listed, got %+v", listed)
	}
	all, _ := s.ListAssets(false)
	if len(all) != 2 {
		t.Errorf("expected 2 assets, got %d", len(all))
	}

	active, _ = s.ToggleActive("FAV-abcdef")
	if active {
		t.Error("expected IsActive to be false")
	}
}

func TestMemSQLite_IsIsolated(t *testing.T) {
	a, err := NewMemSQLite()
	if err != nil {
		t.Fatalf("NewMemSQLite failed: %v", err)
	}
	defer a.Close()
	b, err := NewMemSQLite()
	if err != nil {
		t.Fatalf("NewMemSQLite failed: %v", err)
	}
	defer b.Close()

	a.UpsertAsset(&domain.AssetInfo{Asset: "ONLYA-abcdef"})
	if got, _ := b.GetAsset("ONLYA-abcdef"); got != nil {
		t.Error("memory databases should not share state")
	}
	runStoreContract(t, a)
}
