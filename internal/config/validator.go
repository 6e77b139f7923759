package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"unicode"

	"github.com/cubelink-project/cubelink/internal/protocol"
)

// MaxUsernameLength is the longest name a Login Start may carry.
const MaxUsernameLength = 16

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation error [%s]: %s", e.Field, e.Message)
}

// ValidationResult holds the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// IsValid returns true if there are no validation errors.
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// AddError adds a validation error.
func (r *ValidationResult) AddError(field, message string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message})
}

// AddWarning adds a validation warning.
func (r *ValidationResult) AddWarning(field, message string) {
	r.Warnings = append(r.Warnings, ValidationError{Field: field, Message: message})
}

// Validate performs comprehensive validation of the configuration.
func Validate(cfg *Config) *ValidationResult {
	result := &ValidationResult{}

	validateClientData(cfg.GetClientData(), result)
	validateApplicationData(cfg.GetApplicationData(), result)

	return result
}

func validateClientData(data ClientData, result *ValidationResult) {
	if strings.TrimSpace(data.ServerHost) == "" {
		result.AddError("client_data.server_host", "server host is required")
	}
	if data.ServerPort < 1 || data.ServerPort > 65535 {
		result.AddError("client_data.server_port",
			fmt.Sprintf("invalid port number: %d (must be 1-65535)", data.ServerPort))
	}

	if err := ValidateUsername(data.Username); err != nil {
		result.AddError("client_data.username", err.Error())
	}

	if _, _, err := data.ResolveVersion(); err != nil {
		result.AddError("client_data.protocol_version", err.Error())
	}

	if data.OnlineMode {
		if strings.TrimSpace(data.AccessToken) == "" {
			result.AddError("client_data.access_token", "access token is required in online mode")
		}
		if strings.TrimSpace(data.ProfileID) == "" {
			result.AddError("client_data.profile_id", "profile id is required in online mode")
		}
		if u, err := url.Parse(data.SessionServerURL); err != nil || u.Scheme == "" || u.Host == "" {
			result.AddError("client_data.session_server_url", "session server URL must be absolute")
		} else if u.Scheme != "https" {
			result.AddWarning("client_data.session_server_url", "session server is not using https")
		}
	}
}

// ValidateUsername checks a player name against the length and character
// rules servers enforce.
func ValidateUsername(name string) error {
	if name == "" {
		return fmt.Errorf("username is required")
	}
	if len(name) > MaxUsernameLength {
		return fmt.Errorf("username %q is longer than %d characters", name, MaxUsernameLength)
	}
	for _, r := range name {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			return fmt.Errorf("username %q contains invalid character %q", name, r)
		}
	}
	return nil
}

func validateApplicationData(data ApplicationData, result *ValidationResult) {
	// Network
	if data.Network.QueueSize < 1 {
		result.AddError("application_data.network.outbound_queue_size", "queue size must be at least 1")
	}
	if data.Network.DialTimeoutSec < 1 {
		result.AddError("application_data.network.dial_timeout_sec", "dial timeout must be at least 1 second")
	}
	if data.Network.ReadTimeoutSec < 0 {
		result.AddError("application_data.network.read_timeout_sec", "read timeout cannot be negative")
	} else if data.Network.ReadTimeoutSec > 0 && data.Network.ReadTimeoutSec < 20 {
		result.AddWarning("application_data.network.read_timeout_sec",
			"read timeout below 20s may drop connections between keep-alives")
	}

	// API
	if data.API.Enabled {
		validatePort(data.API.Port, "application_data.api.port", result)
		if data.Security.APIToken == "" {
			result.AddWarning("application_data.security.api_token",
				"no API token set, control endpoints are unauthenticated")
		}
	}

	// Database
	if data.Database.Enabled && strings.TrimSpace(data.Database.Path) == "" {
		result.AddError("application_data.database.path", "database path is required when enabled")
	}

	// Webhook
	if data.Webhook.URL != "" {
		if u, err := url.Parse(data.Webhook.URL); err != nil || u.Scheme == "" || u.Host == "" {
			result.AddError("application_data.webhook.url", "webhook URL must be absolute")
		}
	}

	// MQTT
	if data.MQTT.Enabled {
		if strings.TrimSpace(data.MQTT.BrokerURL) == "" {
			result.AddError("application_data.mqtt.broker_url", "MQTT broker URL is required when enabled")
		}
		if data.MQTT.Port < 1 || data.MQTT.Port > 65535 {
			result.AddError("application_data.mqtt.port", "invalid MQTT port")
		}
	}

	// Security
	if data.Security.TLSEnabled {
		if strings.TrimSpace(data.Security.TLSCertFile) == "" {
			result.AddError("application_data.security.tls_cert_file",
				"TLS certificate file is required when TLS is enabled")
		}
		if strings.TrimSpace(data.Security.TLSKeyFile) == "" {
			result.AddError("application_data.security.tls_key_file",
				"TLS key file is required when TLS is enabled")
		}
	}

	if data.Security.RateLimitRPS < 1 {
		result.AddWarning("application_data.security.rate_limit_rps",
			"rate limit is disabled (0 RPS), this may expose the API to abuse")
	}

	for _, entry := range data.Security.IPWhitelist {
		if net.ParseIP(entry) == nil {
			if _, _, err := net.ParseCIDR(entry); err != nil {
				result.AddError("application_data.security.ip_whitelist",
					fmt.Sprintf("invalid address or CIDR: %s", entry))
			}
		}
	}

	// Timers
	t := data.Timers
	for field, v := range map[string]int{
		"status_probe_interval":  t.StatusProbeInterval,
		"heartbeat_interval":     t.HeartbeatInterval,
		"idle_check_interval":    t.IdleCheckInterval,
		"idle_warn_after":        t.IdleWarnAfter,
		"memory_check_interval":  t.MemoryCheckInterval,
		"memory_warn_mb":         t.MemoryWarnMB,
		"history_retention_days": t.HistoryRetentionDays,
	} {
		if v < 0 {
			result.AddError("application_data.timers."+field, "value cannot be negative")
		}
	}
	if t.StatusProbeInterval > 0 && t.StatusProbeInterval < 10 {
		result.AddWarning("application_data.timers.status_probe_interval",
			"probing more often than every 10s adds load on the server")
	}
	if t.MaintenanceTime != "" {
		if _, _, err := t.ParseMaintenanceTime(); err != nil {
			result.AddError("application_data.timers.maintenance_time", err.Error())
		}
	}
}

func validatePort(port int, field string, result *ValidationResult) {
	if port < 1 || port > 65535 {
		result.AddError(field, fmt.Sprintf("invalid port number: %d (must be 1-65535)", port))
		return
	}
	if port < 1024 {
		result.AddWarning(field,
			fmt.Sprintf("port %d is a privileged port, may require elevated permissions", port))
	}
}

// IsPortAvailable checks if a port is available for binding.
func IsPortAvailable(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	ln.Close()
	return true
}

// SupportedVersionList renders the accepted protocol_version values.
func SupportedVersionList() string {
	names := []string{VersionAuto}
	for _, v := range protocol.SupportedVersions() {
		names = append(names, v.String())
	}
	return strings.Join(names, ", ")
}
