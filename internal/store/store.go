// Package store persists the API credential and user preferences in a
// small SQLite key/value table. It never participates in the chat hot
// path.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"
)

const (
	keyAPIKey   = "api_key"
	keySettings = "settings"
)

// Settings are the persisted user preferences.
type Settings struct {
	AutoChatDelayMS int    `json:"auto_chat_delay_ms"`
	Voice           string `json:"voice"`
}

// Store is a SQLite-backed key/value store.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the store at the given path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	createTable := `
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT
	);`

	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create settings table: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the value for key, reporting whether it was present.
func (s *Store) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores a value under key, replacing any existing one.
func (s *Store) Set(key, value string) error {
	_, err := s.db.Exec("INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)", key, value)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(key string) error {
	_, err := s.db.Exec("DELETE FROM settings WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// APIKey returns the stored credential, if any.
func (s *Store) APIKey() (string, error) {
	key, _, err := s.Get(keyAPIKey)
	return key, err
}

// SetAPIKey stores the credential. An empty key clears it.
func (s *Store) SetAPIKey(key string) error {
	if key == "" {
		return s.Delete(keyAPIKey)
	}
	return s.Set(keyAPIKey, key)
}

// GetSettings loads persisted preferences, reporting whether any were
// stored.
func (s *Store) GetSettings() (Settings, bool, error) {
	raw, ok, err := s.Get(keySettings)
	if err != nil || !ok {
		return Settings{}, false, err
	}

	var settings Settings
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return Settings{}, false, fmt.Errorf("failed to decode settings: %w", err)
	}
	return settings, true, nil
}

// SetSettings persists preferences as a JSON blob.
func (s *Store) SetSettings(settings Settings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := s.Set(keySettings, string(raw)); err != nil {
		return err
	}
	s.logger.Info("settings saved", "auto_chat_delay_ms", settings.AutoChatDelayMS)
	return nil
}
