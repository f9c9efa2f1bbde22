package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.MaxInstances != 4 {
		t.Errorf("MaxInstances = %d, want 4", cfg.MaxInstances)
	}
	if cfg.AutoChatDelayMS != 2000 {
		t.Errorf("AutoChatDelayMS = %d, want 2000", cfg.AutoChatDelayMS)
	}
	if cfg.SendTimeoutSeconds != 60 {
		t.Errorf("SendTimeoutSeconds = %d, want 60", cfg.SendTimeoutSeconds)
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\"): %v", err)
	}
	if cfg != Default() {
		t.Errorf("Load(\"\") = %+v, want defaults", cfg)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "polychat.toml")
	data := `
api_key = "sk-or-file"
max_instances = 3
auto_chat_delay_ms = 500
speech_enabled = true
voice = "en-gb"
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIKey != "sk-or-file" {
		t.Errorf("APIKey = %q", cfg.APIKey)
	}
	if cfg.MaxInstances != 3 {
		t.Errorf("MaxInstances = %d, want 3", cfg.MaxInstances)
	}
	if cfg.AutoChatDelayMS != 500 {
		t.Errorf("AutoChatDelayMS = %d, want 500", cfg.AutoChatDelayMS)
	}
	if !cfg.SpeechEnabled || cfg.Voice != "en-gb" {
		t.Errorf("speech settings not loaded: %+v", cfg)
	}
	// Unset keys keep their defaults.
	if cfg.Addr != DefaultAddr {
		t.Errorf("Addr = %q, want default", cfg.Addr)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("Load of missing file should fail")
	}
}
