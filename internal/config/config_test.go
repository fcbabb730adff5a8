package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func TestLoadMissingConfigYieldsDefaults(t *testing.T) {
	isolateHome(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Sync.URL != "" {
		t.Errorf("unexpected url: %q", cfg.Sync.URL)
	}
	if cfg.AutoDebounce() != 3*time.Second {
		t.Errorf("debounce default = %v", cfg.AutoDebounce())
	}
	if cfg.AutoInterval() != 5*time.Minute {
		t.Errorf("interval default = %v", cfg.AutoInterval())
	}
	if !cfg.AutoEnabled() {
		t.Error("auto sync should default on")
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	isolateHome(t)

	cfg := &Config{}
	cfg.Sync.URL = "https://planner.example.com"
	cfg.Sync.TieBreak = "client"
	cfg.Sync.Auto.Debounce = "10s"

	if err := Save(cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Sync.URL != cfg.Sync.URL {
		t.Errorf("url = %q", loaded.Sync.URL)
	}
	if loaded.Sync.TieBreak != "client" {
		t.Errorf("tie break = %q", loaded.Sync.TieBreak)
	}
	if loaded.AutoDebounce() != 10*time.Second {
		t.Errorf("debounce = %v", loaded.AutoDebounce())
	}
}

func TestAuthRoundTrip(t *testing.T) {
	home := isolateHome(t)

	if IsAuthenticated() {
		t.Fatal("authenticated before login")
	}

	creds := &AuthCredentials{APIKey: "secret", ServerURL: "https://planner.example.com"}
	if err := SaveAuth(creds); err != nil {
		t.Fatalf("SaveAuth failed: %v", err)
	}

	// Credentials must be owner-only
	info, err := os.Stat(filepath.Join(home, ".config", "satchel", "auth.json"))
	if err != nil {
		t.Fatalf("stat auth file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("auth file mode = %o, want 600", perm)
	}

	if !IsAuthenticated() {
		t.Error("not authenticated after SaveAuth")
	}
	if GetAPIKey() != "secret" {
		t.Errorf("api key = %q", GetAPIKey())
	}
	if GetServerURL() != "https://planner.example.com" {
		t.Errorf("server url = %q", GetServerURL())
	}

	if err := ClearAuth(); err != nil {
		t.Fatalf("ClearAuth failed: %v", err)
	}
	if IsAuthenticated() {
		t.Error("still authenticated after ClearAuth")
	}
}

func TestGetDeviceIDStable(t *testing.T) {
	isolateHome(t)

	first, err := GetDeviceID()
	if err != nil {
		t.Fatalf("GetDeviceID failed: %v", err)
	}
	if first == "" {
		t.Fatal("empty device id")
	}

	second, err := GetDeviceID()
	if err != nil {
		t.Fatalf("GetDeviceID failed: %v", err)
	}
	if second != first {
		t.Errorf("device id changed: %q vs %q", first, second)
	}
}
