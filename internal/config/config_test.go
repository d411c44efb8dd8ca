package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	// Shield from ambient environment.
	for _, key := range []string{"HOST", "PORT", "GEOIP_DIR", "PROBES_FILE", "MINESCOPE_CONFIG_FILE"} {
		t.Setenv(key, "")
	}
	cfg := Load()

	if cfg.Host != "0.0.0.0" {
		t.Errorf("Host = %q, want 0.0.0.0", cfg.Host)
	}
	if cfg.Port != "3000" {
		t.Errorf("Port = %q, want 3000", cfg.Port)
	}
	if cfg.GeoIPDir != "./data/geoip" {
		t.Errorf("GeoIPDir = %q", cfg.GeoIPDir)
	}
	if cfg.ProbesFile != "./probes.json" {
		t.Errorf("ProbesFile = %q", cfg.ProbesFile)
	}
	if cfg.TaskTimeout != 6*time.Second {
		t.Errorf("TaskTimeout = %v, want 6s", cfg.TaskTimeout)
	}
	if cfg.JavaTimeout != 5*time.Second {
		t.Errorf("JavaTimeout = %v, want 5s", cfg.JavaTimeout)
	}
	if cfg.BedrockTimeout != 3*time.Second {
		t.Errorf("BedrockTimeout = %v, want 3s", cfg.BedrockTimeout)
	}
	if cfg.BedrockMaxRetries != 0 {
		t.Errorf("BedrockMaxRetries = %d, want 0", cfg.BedrockMaxRetries)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("TASK_TIMEOUT", "10s")
	t.Setenv("BEDROCK_MAX_RETRIES", "2")

	cfg := Load()
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.TaskTimeout != 10*time.Second {
		t.Errorf("TaskTimeout = %v, want 10s", cfg.TaskTimeout)
	}
	if cfg.BedrockMaxRetries != 2 {
		t.Errorf("BedrockMaxRetries = %d, want 2", cfg.BedrockMaxRetries)
	}
}

func TestLoadFileOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	blob := "port: \"9090\"\nlog_level: debug\ndns_timeout: 1s\n"
	if err := os.WriteFile(path, []byte(blob), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MINESCOPE_CONFIG_FILE", path)

	cfg := Load()
	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want 9090 from file", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.DNSTimeout != time.Second {
		t.Errorf("DNSTimeout = %v, want 1s", cfg.DNSTimeout)
	}
}

func TestEnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("port: \"9090\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MINESCOPE_CONFIG_FILE", path)
	t.Setenv("PORT", "7070")

	if cfg := Load(); cfg.Port != "7070" {
		t.Errorf("Port = %q, env should win over file", cfg.Port)
	}
}

func TestListenAddr(t *testing.T) {
	cfg := &Config{Host: "0.0.0.0", Port: "3000"}
	if got := cfg.ListenAddr(); got != "0.0.0.0:3000" {
		t.Errorf("ListenAddr() = %q", got)
	}
}

func TestMustDurationFallback(t *testing.T) {
	t.Setenv("BAD_DURATION", "not-a-duration")
	if got := mustDuration("BAD_DURATION", 2*time.Second); got != 2*time.Second {
		t.Errorf("mustDuration() = %v, want fallback", got)
	}
}
