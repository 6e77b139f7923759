// Package config handles configuration loading, validation, and persistence
// for the cubelink client.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cubelink-project/cubelink/internal/protocol"
)

const (
	DefaultConfigDir        = "config"
	DefaultConfigFile       = "config.json"
	DefaultAPIPort          = 5080
	DefaultServerPort       = 25565
	DefaultSessionServerURL = "https://sessionserver.mojang.com"

	// VersionAuto asks the client to probe the server before logging in.
	VersionAuto = "auto"
)

// Config is the root configuration structure for cubelink.
type Config struct {
	mu   sync.RWMutex
	path string

	ClientData      ClientData      `json:"client_data"`
	ApplicationData ApplicationData `json:"application_data"`
}

// ClientData describes the server to join and the account to join as.
type ClientData struct {
	ServerHost string `json:"server_host"`
	ServerPort int    `json:"server_port"`

	Username string `json:"username"`

	// ProtocolVersion is "auto", a release name such as "1.12.2" or a
	// protocol number such as "340".
	ProtocolVersion string `json:"protocol_version"`

	// Online mode performs the session join during the encryption handshake.
	OnlineMode       bool   `json:"online_mode"`
	AccessToken      string `json:"access_token"`
	ProfileID        string `json:"profile_id"`
	SessionServerURL string `json:"session_server_url"`
}

// ApplicationData contains client application configuration.
type ApplicationData struct {
	Network  NetworkConfig  `json:"network"`
	API      APIConfig      `json:"api"`
	Security SecurityConfig `json:"security"`
	Database DatabaseConfig `json:"database"`
	Webhook  WebhookConfig  `json:"webhook"`
	MQTT     MQTTConfig     `json:"mqtt"`
	Logging  LoggingConfig  `json:"logging"`
	Timers   TimersConfig   `json:"timers"`
}

// NetworkConfig holds transport timeouts and queue sizes.
type NetworkConfig struct {
	DialTimeoutSec  int `json:"dial_timeout_sec"`
	ReadTimeoutSec  int `json:"read_timeout_sec"`
	ProbeTimeoutSec int `json:"probe_timeout_sec"`
	QueueSize       int `json:"outbound_queue_size"`
}

// DialTimeout returns the dial timeout as a duration.
func (n NetworkConfig) DialTimeout() time.Duration {
	return time.Duration(n.DialTimeoutSec) * time.Second
}

// ReadTimeout returns the inbound silence allowed before the connection is
// considered lost. The server sends keep-alives well within it.
func (n NetworkConfig) ReadTimeout() time.Duration {
	return time.Duration(n.ReadTimeoutSec) * time.Second
}

// ProbeTimeout bounds a status probe.
func (n NetworkConfig) ProbeTimeout() time.Duration {
	return time.Duration(n.ProbeTimeoutSec) * time.Second
}

// APIConfig holds REST API settings.
type APIConfig struct {
	Enabled bool `json:"enabled"`
	Port    int  `json:"port"`
}

// SecurityConfig holds API security settings.
type SecurityConfig struct {
	TLSEnabled     bool     `json:"tls_enabled"`
	TLSCertFile    string   `json:"tls_cert_file"`
	TLSKeyFile     string   `json:"tls_key_file"`
	AllowedOrigins []string `json:"allowed_origins"`
	RateLimitRPS   int      `json:"rate_limit_rps"`
	IPWhitelist    []string `json:"ip_whitelist"`
	APIToken       string   `json:"api_token"`
}

// DatabaseConfig holds the history store settings.
type DatabaseConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// WebhookConfig holds notification webhook settings.
type WebhookConfig struct {
	URL                string `json:"url"`
	NotifyOnLogin      bool   `json:"notify_on_login"`
	NotifyOnDisconnect bool   `json:"notify_on_disconnect"`
	NotifyOnWarning    bool   `json:"notify_on_warning"`
}

// MQTTConfig holds MQTT telemetry settings.
type MQTTConfig struct {
	Enabled     bool   `json:"enabled"`
	BrokerURL   string `json:"broker_url"`
	Port        int    `json:"port"`
	UseTLS      bool   `json:"use_tls"`
	CertFile    string `json:"cert_file"`
	KeyFile     string `json:"key_file"`
	CAFile      string `json:"ca_file"`
	ClientID    string `json:"client_id"`
	TopicPrefix string `json:"topic_prefix"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `json:"level"`
	Directory  string `json:"directory"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
}

// TimersConfig holds the intervals of background checks and tasks, in
// seconds unless named otherwise. Zero disables a task.
type TimersConfig struct {
	StatusProbeInterval  int    `json:"status_probe_interval"`
	HeartbeatInterval    int    `json:"heartbeat_interval"`
	IdleCheckInterval    int    `json:"idle_check_interval"`
	IdleWarnAfter        int    `json:"idle_warn_after"`
	MemoryCheckInterval  int    `json:"memory_check_interval"`
	MemoryWarnMB         int    `json:"memory_warn_mb"`
	HistoryRetentionDays int    `json:"history_retention_days"`
	MaintenanceTime      string `json:"maintenance_time"`
}

// ParseMaintenanceTime returns the hour and minute of MaintenanceTime
// ("HH:MM", 24 hour clock).
func (t TimersConfig) ParseMaintenanceTime() (hour, minute int, err error) {
	parsed, err := time.Parse("15:04", t.MaintenanceTime)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid maintenance time %q: want HH:MM", t.MaintenanceTime)
	}
	return parsed.Hour(), parsed.Minute(), nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ClientData: ClientData{
			ServerHost:       "localhost",
			ServerPort:       DefaultServerPort,
			ProtocolVersion:  VersionAuto,
			SessionServerURL: DefaultSessionServerURL,
		},
		ApplicationData: ApplicationData{
			Network: NetworkConfig{
				DialTimeoutSec:  10,
				ReadTimeoutSec:  30,
				ProbeTimeoutSec: 5,
				QueueSize:       256,
			},
			API: APIConfig{
				Enabled: true,
				Port:    DefaultAPIPort,
			},
			Security: SecurityConfig{
				RateLimitRPS: 100,
			},
			Database: DatabaseConfig{
				Enabled: true,
				Path:    filepath.Join(DefaultConfigDir, "history.db"),
			},
			Webhook: WebhookConfig{
				NotifyOnDisconnect: true,
				NotifyOnWarning:    true,
			},
			MQTT: MQTTConfig{
				Enabled:     false,
				BrokerURL:   "localhost",
				Port:        1883,
				TopicPrefix: "cubelink",
			},
			Logging: LoggingConfig{
				Level:      "info",
				Directory:  "logs",
				MaxSizeMB:  10,
				MaxBackups: 5,
			},
			Timers: TimersConfig{
				StatusProbeInterval:  300,
				HeartbeatInterval:    30,
				IdleCheckInterval:    10,
				IdleWarnAfter:        20,
				MemoryCheckInterval:  60,
				MemoryWarnMB:         512,
				HistoryRetentionDays: 30,
				MaintenanceTime:      "04:00",
			},
		},
	}
}

// Load reads configuration from a JSON file.
func Load(configDir string) (*Config, error) {
	configPath := filepath.Join(configDir, DefaultConfigFile)

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", configPath).Msg("config file not found, creating default")
			cfg := DefaultConfig()
			cfg.path = configPath
			if saveErr := cfg.Save(); saveErr != nil {
				return nil, fmt.Errorf("failed to save default config: %w", saveErr)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig() // Start with defaults, then overlay
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	cfg.path = configPath
	log.Info().Str("path", configPath).Msg("configuration loaded")

	// Re-save so config.json always lists every option.
	if saveErr := cfg.Save(); saveErr != nil {
		log.Warn().Err(saveErr).Msg("failed to re-save config with updated defaults")
	}

	return cfg, nil
}

// Save writes the current configuration to disk.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	log.Debug().Str("path", c.path).Msg("configuration saved")
	return nil
}

// GetClientData returns a copy of the client configuration.
func (c *Config) GetClientData() ClientData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ClientData
}

// SetClientData updates the client configuration.
func (c *Config) SetClientData(data ClientData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ClientData = data
}

// GetApplicationData returns a copy of the application data configuration.
func (c *Config) GetApplicationData() ApplicationData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ApplicationData
}

// SetApplicationData updates the application data configuration.
func (c *Config) SetApplicationData(data ApplicationData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ApplicationData = data
}

// UpdateClientField updates a single client field by its JSON key.
func (c *Config) UpdateClientField(key string, value interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return updateField(&c.ClientData, key, value)
}

// UpdateAppField updates a single application field addressed as
// "section.key", for example "network.read_timeout_sec".
func (c *Config) UpdateAppField(key string, value interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return updateField(&c.ApplicationData, key, value)
}

// updateField sets the JSON field named by a dotted key on target. A string
// value destined for a non-string field is parsed as JSON first, so "30" and
// "true" arrive as a number and a bool.
func updateField(target interface{}, key string, value interface{}) error {
	data, err := json.Marshal(target)
	if err != nil {
		return err
	}
	root := make(map[string]interface{})
	if err := json.Unmarshal(data, &root); err != nil {
		return err
	}

	path := strings.Split(key, ".")
	m := root
	for _, part := range path[:len(path)-1] {
		next, ok := m[part].(map[string]interface{})
		if !ok {
			return fmt.Errorf("unknown field %s", key)
		}
		m = next
	}
	leaf := path[len(path)-1]
	current, ok := m[leaf]
	if !ok {
		return fmt.Errorf("unknown field %s", key)
	}
	if _, isMap := current.(map[string]interface{}); isMap {
		return fmt.Errorf("field %s is a section", key)
	}
	if str, isStr := value.(string); isStr {
		if _, wantStr := current.(string); !wantStr {
			var parsed interface{}
			if err := json.Unmarshal([]byte(str), &parsed); err != nil {
				return fmt.Errorf("invalid value for %s: %q", key, str)
			}
			value = parsed
		}
	}
	m[leaf] = value

	updated, err := json.Marshal(root)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(updated, target); err != nil {
		return fmt.Errorf("failed to update field %s: %w", key, err)
	}
	return nil
}

// Path returns the config file path.
func (c *Config) Path() string {
	return c.path
}

// IsFirstRun returns true if the configuration needs initial setup.
func (c *Config) IsFirstRun() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ClientData.Username == "" || c.ClientData.ServerHost == ""
}

// ResolveVersion resolves the configured protocol version. auto is true
// when the version should come from a status probe.
func (d ClientData) ResolveVersion() (v protocol.Version, auto bool, err error) {
	if d.ProtocolVersion == "" || d.ProtocolVersion == VersionAuto {
		return protocol.Latest, true, nil
	}
	v, err = protocol.ParseVersion(d.ProtocolVersion)
	return v, false, err
}
