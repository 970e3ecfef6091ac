package db

import (
	"path/filepath"
	"testing"

	"github.com/b0ase/path402/apps/zanomcp/internal/amount"
)

func setupTestDB(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenClose(t *testing.T) {
	s := setupTestDB(t)
	if s.DB() == nil {
		t.Fatal("DB() returned nil after Open")
	}
	v, err := s.GetMeta("schema_version")
	if err != nil {
		t.Fatalf("GetMeta: %v", err)
	}
	if v != schemaVersion {
		t.Errorf("schema_version = %q, want %q", v, schemaVersion)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestMetaGetSet(t *testing.T) {
	s := setupTestDB(t)

	if err := s.SetMeta("test_key", "test_value"); err != nil {
		t.Fatalf("SetMeta: %v", err)
	}
	val, err := s.GetMeta("test_key")
	if err != nil {
		t.Fatalf("GetMeta: %v", err)
	}
	if val != "test_value" {
		t.Errorf("GetMeta = %q, want %q", val, "test_value")
	}

	// Overwrite
	s.SetMeta("test_key", "new_value")
	val, _ = s.GetMeta("test_key")
	if val != "new_value" {
		t.Errorf("after overwrite: %q, want %q", val, "new_value")
	}

	if _, err := s.GetMeta("missing"); err == nil {
		t.Error("expected error for missing key")
	}
}

func TestAssetUpsertPerNetwork(t *testing.T) {
	s := setupTestDB(t)

	id := "86143388bd056a8f0bab669f78f14873fac8e2dd8d57898cdb725a2d5e2e4f8f"
	if err := s.SaveAsset("mainnet", amount.Asset{ID: id, Ticker: "FUSD", Decimals: 4}); err != nil {
		t.Fatalf("SaveAsset: %v", err)
	}
	if err := s.SaveAsset("mainnet", amount.Asset{ID: id, Ticker: "fUSD", Decimals: 6}); err != nil {
		t.Fatalf("SaveAsset overwrite: %v", err)
	}
	if err := s.SaveAsset("testnet", amount.Asset{ID: id, Ticker: "tUSD", Decimals: 2}); err != nil {
		t.Fatalf("SaveAsset testnet: %v", err)
	}

	got, err := s.LoadAssets("mainnet")
	if err != nil {
		t.Fatalf("LoadAssets: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("mainnet assets = %d, want 1", len(got))
	}
	if got[0].Ticker != "fUSD" || got[0].Decimals != 6 {
		t.Errorf("asset = %+v, want fUSD/6", got[0])
	}

	n, err := s.CountAssets("testnet")
	if err != nil {
		t.Fatalf("CountAssets: %v", err)
	}
	if n != 1 {
		t.Errorf("testnet count = %d, want 1", n)
	}
}

func TestAssetDecimalsChecked(t *testing.T) {
	s := setupTestDB(t)
	err := s.SaveAsset("mainnet", amount.Asset{ID: "x", Ticker: "X", Decimals: 40})
	if err == nil {
		t.Error("expected CHECK constraint failure for decimals 40")
	}
}

func TestReopenKeepsAssets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	s, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.SaveAsset("mainnet", amount.Asset{ID: "abc", Ticker: "ABC", Decimals: 8})
	s.Close()

	s, err = Open(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	got, _ := s.LoadAssets("mainnet")
	if len(got) != 1 || got[0].ID != "abc" {
		t.Errorf("after reopen: %+v", got)
	}
}
