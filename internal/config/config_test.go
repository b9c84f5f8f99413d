package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadServerConfigDefaultsAndOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.toml")
	content := `
id = "edge.alpha"
host = "127.0.0.1"
port = 9443
auth_mode = "static"
static_token = "s3cret"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ID != "edge.alpha" {
		t.Fatalf("unexpected id: %q", cfg.ID)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("expected default http_addr, got %q", cfg.HTTPAddr)
	}
	if cfg.JobWorkers != 4 {
		t.Fatalf("expected default job_workers 4, got %d", cfg.JobWorkers)
	}
	if cfg.ReadDeadline().Minutes() != 60 {
		t.Fatalf("expected default 60 minute read deadline, got %v", cfg.ReadDeadline())
	}
}

func TestLoadServerConfigRejectsMissingToken(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.toml")
	content := `
id = "edge.alpha"
host = "127.0.0.1"
auth_mode = "static"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := LoadServerConfig(path); err == nil {
		t.Fatalf("expected error for missing static_token")
	}
}

func TestLoadClientConfigDefaultsAndOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client.toml")
	content := `
id = "edge.client.a"
target_host = "127.0.0.1"
target_port = 9443
scale = 8
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadClientConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Scale != 8 {
		t.Fatalf("unexpected scale: %d", cfg.Scale)
	}
	if cfg.BaseDelay().Milliseconds() != 500 {
		t.Fatalf("expected default 500ms base delay, got %v", cfg.BaseDelay())
	}
	if cfg.MaxAttempts != -1 {
		t.Fatalf("expected default unlimited attempts, got %d", cfg.MaxAttempts)
	}
}

func TestWriteTemplateRefusesOverwriteByDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.toml")

	if err := WriteTemplate(path, "server", false); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := WriteTemplate(path, "server", false); err == nil {
		t.Fatalf("expected error on second write without overwrite")
	}
	if err := WriteTemplate(path, "server", true); err != nil {
		t.Fatalf("overwrite write: %v", err)
	}
}
