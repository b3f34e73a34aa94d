package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when the config file omits a section. The reconnect
// policy constants come from the deployment default of base 1s, cap 5.
const (
	DefaultReconnectBaseDelay   = time.Second
	DefaultMaxReconnectAttempts = 5
	DefaultHeartbeatInterval    = 30 * time.Second
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Connection ConnectionConfig `yaml:"connection"`
	Heartbeat  HeartbeatConfig  `yaml:"heartbeat"`
	Terminal   TerminalConfig   `yaml:"terminal"`
}

type ServerConfig struct {
	// SocketURL is the websocket endpoint, e.g. "ws://pos.local:8080/ws".
	SocketURL string `yaml:"socket_url"`
	// APIURL is the base URL of the REST side channel.
	APIURL string `yaml:"api_url"`
	// AuthToken, when set, is sent as a bearer token on side-channel calls.
	AuthToken string `yaml:"auth_token"`
}

type ConnectionConfig struct {
	ReconnectBaseDelay   time.Duration `yaml:"reconnect_base_delay"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	HandshakeTimeout     time.Duration `yaml:"handshake_timeout"`
	WriteTimeout         time.Duration `yaml:"write_timeout"`
}

type HeartbeatConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type TerminalConfig struct {
	// Name is the human-facing terminal label shown on the back office.
	Name string `yaml:"name"`
	// IdentityPath is where the persisted terminal identifier lives.
	IdentityPath string `yaml:"identity_path"`
	// ScreenResolution is reported in the status snapshot, e.g. "1920x1080".
	// There is no portable probe for it, so it is configured.
	ScreenResolution string `yaml:"screen_resolution"`
	LocalAddress     string `yaml:"local_address"`
	Port             int    `yaml:"port"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			SocketURL: "ws://127.0.0.1:8080/ws",
			APIURL:    "http://127.0.0.1:8080",
		},
		Connection: ConnectionConfig{
			ReconnectBaseDelay:   DefaultReconnectBaseDelay,
			MaxReconnectAttempts: DefaultMaxReconnectAttempts,
			HandshakeTimeout:     10 * time.Second,
			WriteTimeout:         10 * time.Second,
		},
		Heartbeat: HeartbeatConfig{
			Interval: DefaultHeartbeatInterval,
		},
		Terminal: TerminalConfig{
			Name:         "terminal",
			IdentityPath: "terminal-identity.yaml",
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// LoadOrDefault behaves like Load but returns the defaults when the file is
// missing, so a terminal can start on a fresh install without a config file.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if os.IsNotExist(err) {
		return defaultConfig(), nil
	}
	return cfg, err
}
