package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeProps(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "scheduler.properties")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoadSchedulerConfig(t *testing.T) {
	path := writeProps(t, `
listen_addr = 127.0.0.1:6142
sequencer_addr = 127.0.0.1:6140
replicas = ["127.0.0.1:7000", "127.0.0.1:7001"]
max_conns = 32
admin_addr = 127.0.0.1:6143
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:6142" || cfg.SequencerAddr != "127.0.0.1:6140" {
		t.Fatalf("unexpected addrs: %+v", cfg)
	}
	if len(cfg.Replicas) != 2 || cfg.Replicas[0] != "127.0.0.1:7000" {
		t.Fatalf("unexpected replicas: %v", cfg.Replicas)
	}
	if cfg.MaxConns != 32 {
		t.Fatalf("expected max_conns 32, got %d", cfg.MaxConns)
	}
}

func TestLoadMissingListenAddr(t *testing.T) {
	path := writeProps(t, `sequencer_addr = 127.0.0.1:6140`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for a missing listen_addr")
	}
}

func TestLoadDefaultMaxConns(t *testing.T) {
	path := writeProps(t, `listen_addr = 127.0.0.1:6142`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MaxConns != 16 {
		t.Fatalf("expected default max_conns 16, got %d", cfg.MaxConns)
	}
}
