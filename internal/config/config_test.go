package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.HTTPURL != "http://localhost:8000" {
		t.Errorf("http_url = %q, want default", cfg.Server.HTTPURL)
	}
	if cfg.Retry.MaxAttempts != 5 {
		t.Errorf("max_attempts = %d, want 5", cfg.Retry.MaxAttempts)
	}
	if time.Duration(cfg.Retry.BaseDelay) != 3*time.Second {
		t.Errorf("base_delay = %v, want 3s", time.Duration(cfg.Retry.BaseDelay))
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
ws_url = "ws://example.test:9000"

[retry]
max_attempts = 2
base_delay = "250ms"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.WSURL != "ws://example.test:9000" {
		t.Errorf("ws_url = %q", cfg.Server.WSURL)
	}
	// Unset keys keep their defaults.
	if cfg.Server.HTTPURL != "http://localhost:8000" {
		t.Errorf("http_url = %q, want default", cfg.Server.HTTPURL)
	}
	if cfg.Retry.MaxAttempts != 2 {
		t.Errorf("max_attempts = %d, want 2", cfg.Retry.MaxAttempts)
	}
	if time.Duration(cfg.Retry.BaseDelay) != 250*time.Millisecond {
		t.Errorf("base_delay = %v, want 250ms", time.Duration(cfg.Retry.BaseDelay))
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[retry]\nbase_delay = \"soon\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() should reject unparseable duration")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")
	want := &Config{
		Server: Server{HTTPURL: "http://h:1", WSURL: "ws://h:1"},
		Retry:  Retry{MaxAttempts: 7, BaseDelay: Duration(time.Second)},
	}
	if err := Save(path, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if *got != *want {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
}
