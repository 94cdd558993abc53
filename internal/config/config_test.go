package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cm := NewConfigManager(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	cfg, err := cm.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	want := DefaultConfig()
	if cfg.Server.Port != want.Server.Port || cfg.Client.SystemID != want.Client.SystemID {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadConfigAppliesOnlyDefinedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.toml")
	contents := `
[server]
port = 9999
log_level = "debug"

[client]
system_id = "custom-id"
`
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cm := NewConfigManager(path)
	cfg, err := cm.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Fatalf("expected overridden port 9999, got %d", cfg.Server.Port)
	}
	if cfg.Server.LogLevel != "debug" {
		t.Fatalf("expected overridden log_level debug, got %q", cfg.Server.LogLevel)
	}
	// Host was never set in the file; it must retain the built-in default.
	if cfg.Server.Host != DefaultConfig().Server.Host {
		t.Fatalf("expected default host preserved, got %q", cfg.Server.Host)
	}
	if cfg.Client.SystemID != "custom-id" {
		t.Fatalf("expected overridden system_id, got %q", cfg.Client.SystemID)
	}
	if cfg.Client.Password != DefaultConfig().Client.Password {
		t.Fatalf("expected default password preserved, got %q", cfg.Client.Password)
	}
}

func TestLoadConfigParsesDurationFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.toml")
	contents := `
[server]
read_timeout = "45s"
`
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cm := NewConfigManager(path)
	cfg, err := cm.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.ReadTimeout != 45*time.Second {
		t.Fatalf("expected 45s read_timeout, got %v", cfg.Server.ReadTimeout)
	}
}

func TestLoadConfigRejectsMalformedDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.toml")
	contents := `
[server]
read_timeout = "not-a-duration"
`
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cm := NewConfigManager(path)
	if _, err := cm.LoadConfig(); err == nil {
		t.Fatal("expected error parsing malformed duration")
	}
}

func TestValidateRejectsInvalidBindType(t *testing.T) {
	cm := NewConfigManager("")
	cfg, err := cm.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	cfg.Client.BindType = "bogus"
	if err := cm.UpdateConfig(&cfg.Client); err == nil {
		t.Fatal("expected validation error for invalid bind_type")
	}
}

func TestUpdateConfigRejectsUnsupportedType(t *testing.T) {
	cm := NewConfigManager("")
	if _, err := cm.LoadConfig(); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if err := cm.UpdateConfig("not-a-config"); err == nil {
		t.Fatal("expected error for unsupported config type")
	}
}
