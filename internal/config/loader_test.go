package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	p := writeFile(t, t.TempDir(), "gpud.yaml", `
addr: ":9999"
instance_id: i-0abc
region: eu-west-1
instance_base_url: http://10.0.0.5:8000
idle_timeout: 20m
probe_timeout: 3s
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" {
		t.Fatalf("addr = %q", cfg.Addr)
	}
	if cfg.InstanceID != "i-0abc" || cfg.Region != "eu-west-1" {
		t.Fatalf("instance fields not parsed: %+v", cfg)
	}
	if cfg.IdleTimeout.D() != 20*time.Minute {
		t.Fatalf("idle_timeout = %v", cfg.IdleTimeout.D())
	}
	if cfg.ProbeTimeout.D() != 3*time.Second {
		t.Fatalf("probe_timeout = %v", cfg.ProbeTimeout.D())
	}
}

func TestLoadTOML(t *testing.T) {
	p := writeFile(t, t.TempDir(), "gpud.toml", `
addr = ":8091"
instance_id = "i-0abc"
boot_timeout = "4m"
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8091" {
		t.Fatalf("addr = %q", cfg.Addr)
	}
	if cfg.BootTimeout.D() != 4*time.Minute {
		t.Fatalf("boot_timeout = %v", cfg.BootTimeout.D())
	}
}

func TestLoadJSON(t *testing.T) {
	p := writeFile(t, t.TempDir(), "gpud.json", `{
  "serverless_base_url": "https://api.example.com",
  "health_ttl": "45s"
}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServerlessBaseURL != "https://api.example.com" {
		t.Fatalf("serverless url = %q", cfg.ServerlessBaseURL)
	}
	if cfg.HealthTTL.D() != 45*time.Second {
		t.Fatalf("health_ttl = %v", cfg.HealthTTL.D())
	}
}

func TestLoadUnsupportedExtension(t *testing.T) {
	p := writeFile(t, t.TempDir(), "gpud.ini", "addr=:1")
	if _, err := Load(p); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

func TestLoadEmptyPath(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestWithDefaults(t *testing.T) {
	cfg := Config{}.WithDefaults()
	if cfg.Addr != DefaultAddr {
		t.Fatalf("addr = %q", cfg.Addr)
	}
	if cfg.IdleTimeout.D() != DefaultIdleTimeout {
		t.Fatalf("idle timeout = %v", cfg.IdleTimeout.D())
	}
	if cfg.BootTimeout.D() != DefaultBootTimeout {
		t.Fatalf("boot timeout = %v", cfg.BootTimeout.D())
	}
	// explicit values survive
	cfg2 := Config{Addr: ":1", ProbeTimeout: Duration(time.Second)}.WithDefaults()
	if cfg2.Addr != ":1" || cfg2.ProbeTimeout.D() != time.Second {
		t.Fatalf("explicit values overwritten: %+v", cfg2)
	}
}

func TestValidate(t *testing.T) {
	if err := (Config{}).Validate(); err == nil {
		t.Fatal("expected error when no backend configured")
	}
	if err := (Config{InstanceID: "i-0abc"}).Validate(); err == nil {
		t.Fatal("expected error when region missing")
	}
	if err := (Config{InstanceID: "i-0abc", Region: "eu-west-1"}).Validate(); err == nil {
		t.Fatal("expected error when instance_base_url missing")
	}
	ok := Config{InstanceID: "i-0abc", Region: "eu-west-1", InstanceBaseURL: "http://x"}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	serverlessOnly := Config{ServerlessBaseURL: "https://api.example.com"}
	if err := serverlessOnly.Validate(); err != nil {
		t.Fatalf("serverless-only should validate: %v", err)
	}
}
