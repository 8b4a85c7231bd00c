package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "strand.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != "0.0.0.0:8080" {
		t.Fatalf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Server.IdleTimeout != time.Minute {
		t.Fatalf("idle timeout = %v", cfg.Server.IdleTimeout)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("log level = %q", cfg.Logging.Level)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: 127.0.0.1:9001
  workers: 4
  max_requests_per_conn: 100
routes:
  - pattern: /health
    handler: system.health
  - pattern: /user/(number:\d+)
    handler: user.byID
    args:
      table: users
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:9001" || cfg.Server.Workers != 4 {
		t.Fatalf("server = %+v", cfg.Server)
	}
	if len(cfg.Routes) != 2 {
		t.Fatalf("routes = %+v", cfg.Routes)
	}
	if cfg.Routes[1].Handler != "user.byID" || cfg.Routes[1].Args["table"] != "users" {
		t.Fatalf("route[1] = %+v", cfg.Routes[1])
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("STRAND_SERVER_ADDR", "127.0.0.1:7777")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:7777" {
		t.Fatalf("addr = %q", cfg.Server.Addr)
	}
}

func TestLoadRejectsBadRoutes(t *testing.T) {
	path := writeConfig(t, `
routes:
  - pattern: /only-pattern
`)
	if _, err := Load(path); err == nil {
		t.Fatal("route without handler must fail validation")
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/strand.yaml"); err == nil {
		t.Fatal("missing file must fail")
	}
}
