package store

import (
	"log/slog"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "polychat.db"), slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_GetSetDelete(t *testing.T) {
	s := openTestStore(t)

	if _, ok, err := s.Get("missing"); err != nil || ok {
		t.Fatalf("Get(missing) = ok=%v err=%v, want absent", ok, err)
	}

	if err := s.Set("k", "v1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set("k", "v2"); err != nil {
		t.Fatalf("Set (replace): %v", err)
	}

	v, ok, err := s.Get("k")
	if err != nil || !ok || v != "v2" {
		t.Fatalf("Get(k) = %q ok=%v err=%v, want v2", v, ok, err)
	}

	if err := s.Delete("k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Get("k"); ok {
		t.Error("key should be gone after Delete")
	}
}

func TestStore_APIKey(t *testing.T) {
	s := openTestStore(t)

	key, err := s.APIKey()
	if err != nil || key != "" {
		t.Fatalf("APIKey on empty store = %q, %v", key, err)
	}

	if err := s.SetAPIKey("sk-or-abc"); err != nil {
		t.Fatalf("SetAPIKey: %v", err)
	}
	key, err = s.APIKey()
	if err != nil || key != "sk-or-abc" {
		t.Fatalf("APIKey = %q, %v", key, err)
	}

	// Empty key clears the credential.
	if err := s.SetAPIKey(""); err != nil {
		t.Fatalf("SetAPIKey(empty): %v", err)
	}
	key, _ = s.APIKey()
	if key != "" {
		t.Errorf("APIKey after clear = %q, want empty", key)
	}
}

func TestStore_Settings(t *testing.T) {
	s := openTestStore(t)

	if _, ok, err := s.GetSettings(); err != nil || ok {
		t.Fatalf("GetSettings on empty store: ok=%v err=%v", ok, err)
	}

	want := Settings{AutoChatDelayMS: 2000, Voice: "en-us"}
	if err := s.SetSettings(want); err != nil {
		t.Fatalf("SetSettings: %v", err)
	}

	got, ok, err := s.GetSettings()
	if err != nil || !ok {
		t.Fatalf("GetSettings: ok=%v err=%v", ok, err)
	}
	if got != want {
		t.Errorf("GetSettings = %+v, want %+v", got, want)
	}
}

func TestStore_Reopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "polychat.db")
	logger := slog.New(slog.DiscardHandler)

	s, err := Open(path, logger)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.SetAPIKey("sk-or-persist"); err != nil {
		t.Fatalf("SetAPIKey: %v", err)
	}
	s.Close()

	s2, err := Open(path, logger)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	key, err := s2.APIKey()
	if err != nil || key != "sk-or-persist" {
		t.Fatalf("APIKey after reopen = %q, %v", key, err)
	}
}
