// Package config manages the global satchel configuration and stored
// credentials under ~/.config/satchel.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// AutoSyncConfig holds auto-sync settings.
type AutoSyncConfig struct {
	Enabled  *bool  `json:"enabled,omitempty"`  // nil = default true
	Debounce string `json:"debounce,omitempty"` // duration string, default "3s"
	Interval string `json:"interval,omitempty"` // duration string, default "5m"
}

// SyncConfig holds sync-related settings.
type SyncConfig struct {
	URL        string         `json:"url"`
	MaxRetries int            `json:"max_retries,omitempty"` // 0 = default 5
	TimeoutSec int            `json:"timeout_sec,omitempty"` // 0 = default 30
	TieBreak   string         `json:"tie_break,omitempty"`   // "server" (default) or "client"
	Auto       AutoSyncConfig `json:"auto"`
}

// Config is the global satchel config stored at ~/.config/satchel/config.json.
type Config struct {
	Sync SyncConfig `json:"sync"`
}

// AuthCredentials stores authentication state at ~/.config/satchel/auth.json.
type AuthCredentials struct {
	APIKey    string `json:"api_key"`
	ServerURL string `json:"server_url"`
	DeviceID  string `json:"device_id"`
}

const defaultServerURL = "http://localhost:8080"

// Dir returns ~/.config/satchel, creating it if necessary.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	dir := filepath.Join(home, ".config", "satchel")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	return dir, nil
}

// Load reads the global config. A missing file yields defaults.
func Load() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "config.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the global config atomically (temp file + rename).
func Save(cfg *Config) error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(filepath.Join(dir, "config.json"), data, 0644)
}

// LoadAuth reads stored credentials, or nil when not logged in.
func LoadAuth() (*AuthCredentials, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "auth.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var creds AuthCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

// SaveAuth writes credentials with owner-only permissions.
func SaveAuth(creds *AuthCredentials) error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(filepath.Join(dir, "auth.json"), data, 0600)
}

// ClearAuth removes stored credentials. Missing file is not an error.
func ClearAuth() error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(dir, "auth.json"))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// IsAuthenticated reports whether credentials are stored.
func IsAuthenticated() bool {
	creds, err := LoadAuth()
	return err == nil && creds != nil && creds.APIKey != ""
}

// GetServerURL returns the configured server URL, falling back from auth
// to config to the default.
func GetServerURL() string {
	if creds, err := LoadAuth(); err == nil && creds != nil && creds.ServerURL != "" {
		return creds.ServerURL
	}
	if cfg, err := Load(); err == nil && cfg.Sync.URL != "" {
		return cfg.Sync.URL
	}
	return defaultServerURL
}

// GetAPIKey returns the stored API key, or "".
func GetAPIKey() string {
	creds, err := LoadAuth()
	if err != nil || creds == nil {
		return ""
	}
	return creds.APIKey
}

// GetDeviceID returns this device's stable id, generating and persisting
// one on first use.
func GetDeviceID() (string, error) {
	creds, err := LoadAuth()
	if err != nil {
		return "", err
	}
	if creds == nil {
		creds = &AuthCredentials{}
	}
	if creds.DeviceID != "" {
		return creds.DeviceID, nil
	}

	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate device id: %w", err)
	}
	creds.DeviceID = "dev-" + hex.EncodeToString(buf)

	if err := SaveAuth(creds); err != nil {
		return "", err
	}
	return creds.DeviceID, nil
}

// AutoDebounce returns the configured reconnect debounce.
func (c *Config) AutoDebounce() time.Duration {
	if d, err := time.ParseDuration(c.Sync.Auto.Debounce); err == nil && d > 0 {
		return d
	}
	return 3 * time.Second
}

// AutoInterval returns the configured periodic sync interval.
func (c *Config) AutoInterval() time.Duration {
	if d, err := time.ParseDuration(c.Sync.Auto.Interval); err == nil && d > 0 {
		return d
	}
	return 5 * time.Minute
}

// AutoEnabled reports whether background sync is on (default true).
func (c *Config) AutoEnabled() bool {
	return c.Sync.Auto.Enabled == nil || *c.Sync.Auto.Enabled
}

func atomicWrite(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
