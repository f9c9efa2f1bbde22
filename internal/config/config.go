package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Defaults mirroring the reference front-end behavior.
const (
	DefaultMaxInstances       = 4
	DefaultAutoChatDelayMS    = 2000
	DefaultSendTimeoutSeconds = 60
	DefaultAddr               = ":8990"
	DefaultDBPath             = "polychat.db"
	DefaultSpeechCommand      = "espeak"
)

// Config holds application configuration.
type Config struct {
	APIKey             string `toml:"api_key"`
	Addr               string `toml:"addr"`
	DBPath             string `toml:"db_path"`
	MaxInstances       int    `toml:"max_instances"`
	AutoChatDelayMS    int    `toml:"auto_chat_delay_ms"`
	SendTimeoutSeconds int    `toml:"send_timeout_seconds"`
	SpeechEnabled      bool   `toml:"speech_enabled"`
	SpeechCommand      string `toml:"speech_command"`
	Voice              string `toml:"voice"`
	SpeechRate         int    `toml:"speech_rate"`
	Debug              bool   `toml:"debug"`

	// Serve switches from the console REPL to the HTTP server.
	// Flag-only, never read from the config file.
	Serve bool `toml:"-"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Addr:               DefaultAddr,
		DBPath:             DefaultDBPath,
		MaxInstances:       DefaultMaxInstances,
		AutoChatDelayMS:    DefaultAutoChatDelayMS,
		SendTimeoutSeconds: DefaultSendTimeoutSeconds,
		SpeechCommand:      DefaultSpeechCommand,
	}
}

// Load reads a TOML config file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	return cfg, nil
}
