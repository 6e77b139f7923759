package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cubelink-project/cubelink/internal/protocol"
)

func TestLoadCreatesDefault(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Path() != filepath.Join(dir, DefaultConfigFile) {
		t.Errorf("path = %s", cfg.Path())
	}
	if _, err := os.Stat(cfg.Path()); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if !cfg.IsFirstRun() {
		t.Error("a config without username should be a first run")
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	partial := `{"client_data": {"server_host": "mc.example.org", "username": "Steve", "protocol_version": "1.8.9"}}`
	if err := os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte(partial), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	client := cfg.GetClientData()
	if client.ServerHost != "mc.example.org" || client.ServerPort != DefaultServerPort {
		t.Errorf("client = %+v", client)
	}
	if app := cfg.GetApplicationData(); app.Timers.MaintenanceTime != "04:00" || app.Network.QueueSize != 256 {
		t.Errorf("defaults not kept: %+v", app.Timers)
	}
	if cfg.IsFirstRun() {
		t.Error("configured host and username should not be a first run")
	}

	// The re-save lists every option.
	data, _ := os.ReadFile(cfg.Path())
	if !strings.Contains(string(data), "history_retention_days") {
		t.Error("re-saved config is missing defaults")
	}
}

func TestLoadRejectsBadJSON(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte("{not json"), 0600)
	if _, err := Load(dir); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestUpdateFields(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name    string
		client  bool
		key     string
		value   interface{}
		wantErr bool
	}{
		{"client string", true, "username", "Alex", false},
		{"client bool from string", true, "online_mode", "true", false},
		{"nested int from string", false, "network.read_timeout_sec", "45", false},
		{"nested string", false, "timers.maintenance_time", "03:30", false},
		{"list from string", false, "security.ip_whitelist", `["10.0.0.0/8"]`, false},
		{"unknown field", false, "network.nope", 1, true},
		{"unknown section", false, "nope.level", "x", true},
		{"section itself", false, "logging", "x", true},
		{"bad number", false, "network.read_timeout_sec", "soon", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			if tt.client {
				err = cfg.UpdateClientField(tt.key, tt.value)
			} else {
				err = cfg.UpdateAppField(tt.key, tt.value)
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	client := cfg.GetClientData()
	if client.Username != "Alex" || !client.OnlineMode {
		t.Errorf("client = %+v", client)
	}
	app := cfg.GetApplicationData()
	if app.Network.ReadTimeoutSec != 45 || app.Timers.MaintenanceTime != "03:30" {
		t.Errorf("app not updated: %+v %+v", app.Network, app.Timers)
	}
	if len(app.Security.IPWhitelist) != 1 || app.Security.IPWhitelist[0] != "10.0.0.0/8" {
		t.Errorf("whitelist = %v", app.Security.IPWhitelist)
	}
	if app.Network.DialTimeoutSec != 10 {
		t.Error("sibling fields must survive an update")
	}
}

func TestResolveVersion(t *testing.T) {
	tests := []struct {
		in      string
		want    protocol.Version
		auto    bool
		wantErr bool
	}{
		{"", protocol.Latest, true, false},
		{"auto", protocol.Latest, true, false},
		{"1.12.2", protocol.V1_12_2, false, false},
		{"47", protocol.V1_8, false, false},
		{"1.12", 0, false, true},
	}

	for _, tt := range tests {
		v, auto, err := ClientData{ProtocolVersion: tt.in}.ResolveVersion()
		if (err != nil) != tt.wantErr {
			t.Errorf("%q: err = %v", tt.in, err)
			continue
		}
		if err == nil && (v != tt.want || auto != tt.auto) {
			t.Errorf("%q = %s auto=%v, want %s auto=%v", tt.in, v, auto, tt.want, tt.auto)
		}
	}
}

func TestParseMaintenanceTime(t *testing.T) {
	tests := []struct {
		in           string
		hour, minute int
		wantErr      bool
	}{
		{"04:00", 4, 0, false},
		{"23:59", 23, 59, false},
		{"24:00", 0, 0, true},
		{"noon", 0, 0, true},
	}

	for _, tt := range tests {
		h, m, err := TimersConfig{MaintenanceTime: tt.in}.ParseMaintenanceTime()
		if (err != nil) != tt.wantErr {
			t.Errorf("%q: err = %v", tt.in, err)
			continue
		}
		if err == nil && (h != tt.hour || m != tt.minute) {
			t.Errorf("%q = %d:%d", tt.in, h, m)
		}
	}
}

func TestSetupWizard(t *testing.T) {
	cfg := DefaultConfig()
	cfg.path = filepath.Join(t.TempDir(), DefaultConfigFile)

	answers := strings.Join([]string{
		"mc.example.org", // host
		"",               // port
		"1.12.2",         // version
		"Steve",          // username
		"no",             // online mode
		"no",             // REST API
		"",               // webhook
		"no",             // MQTT
	}, "\n") + "\n"

	var out bytes.Buffer
	if err := RunSetupWizard(cfg, strings.NewReader(answers), &out); err != nil {
		t.Fatalf("wizard: %v\n%s", err, out.String())
	}
	client := cfg.GetClientData()
	if client.ServerHost != "mc.example.org" || client.Username != "Steve" || client.ProtocolVersion != "1.12.2" {
		t.Errorf("client = %+v", client)
	}
	if cfg.GetApplicationData().API.Enabled {
		t.Error("API should be disabled")
	}
	if _, err := os.Stat(cfg.path); err != nil {
		t.Errorf("wizard did not save: %v", err)
	}
}
