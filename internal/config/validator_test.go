package config

import "testing"

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.ClientData.Username = "Steve"
	cfg.ApplicationData.Security.APIToken = "secret"
	return cfg
}

func hasField(list []ValidationError, field string) bool {
	for _, e := range list {
		if e.Field == field {
			return true
		}
	}
	return false
}

func TestValidateDefaults(t *testing.T) {
	result := Validate(validConfig())
	if !result.IsValid() {
		t.Fatalf("valid config rejected: %v", result.Errors)
	}

	result = Validate(DefaultConfig())
	if !hasField(result.Errors, "client_data.username") {
		t.Errorf("missing username not reported: %v", result.Errors)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"port", func(c *Config) { c.ClientData.ServerPort = 70000 }, "client_data.server_port"},
		{"version", func(c *Config) { c.ClientData.ProtocolVersion = "1.13" }, "client_data.protocol_version"},
		{"online token", func(c *Config) { c.ClientData.OnlineMode = true }, "client_data.access_token"},
		{"queue", func(c *Config) { c.ApplicationData.Network.QueueSize = 0 }, "application_data.network.outbound_queue_size"},
		{"webhook", func(c *Config) { c.ApplicationData.Webhook.URL = "not a url" }, "application_data.webhook.url"},
		{"whitelist", func(c *Config) { c.ApplicationData.Security.IPWhitelist = []string{"10.0.0.300"} }, "application_data.security.ip_whitelist"},
		{"negative timer", func(c *Config) { c.ApplicationData.Timers.HeartbeatInterval = -1 }, "application_data.timers.heartbeat_interval"},
		{"maintenance", func(c *Config) { c.ApplicationData.Timers.MaintenanceTime = "25:00" }, "application_data.timers.maintenance_time"},
		{"tls", func(c *Config) { c.ApplicationData.Security.TLSEnabled = true }, "application_data.security.tls_cert_file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			result := Validate(cfg)
			if !hasField(result.Errors, tt.field) {
				t.Errorf("expected error on %s, got %v", tt.field, result.Errors)
			}
		})
	}
}

func TestValidateWarnings(t *testing.T) {
	cfg := validConfig()
	cfg.ApplicationData.Security.APIToken = ""
	cfg.ApplicationData.Timers.StatusProbeInterval = 5
	cfg.ApplicationData.Network.ReadTimeoutSec = 5

	result := Validate(cfg)
	if !result.IsValid() {
		t.Fatalf("warnings must not invalidate: %v", result.Errors)
	}
	for _, field := range []string{
		"application_data.security.api_token",
		"application_data.timers.status_probe_interval",
		"application_data.network.read_timeout_sec",
	} {
		if !hasField(result.Warnings, field) {
			t.Errorf("expected warning on %s", field)
		}
	}
}

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name string
		ok   bool
	}{
		{"Steve", true},
		{"jeb_", true},
		{"a1234567890123456", false},
		{"", false},
		{"bad name", false},
		{"héllo", false},
	}

	for _, tt := range tests {
		if err := ValidateUsername(tt.name); (err == nil) != tt.ok {
			t.Errorf("ValidateUsername(%q) = %v", tt.name, err)
		}
	}
}
