// Package config loads static deployment configuration: replica
// addresses, listen addresses, and connection caps. This is read once at
// process startup and never persisted back. There is no durable state in
// this system, only the configuration that describes a deployment of it.
package config

import (
	"fmt"

	"github.com/magiconair/properties"
	"github.com/tidwall/gjson"
)

// Config is the static shape of one scheduler or sequencer deployment.
type Config struct {
	// ListenAddr is where this process accepts client/scheduler connections.
	ListenAddr string
	// SequencerAddr is where the scheduler dials to reach the sequencer.
	// Empty for a sequencer process.
	SequencerAddr string
	// Replicas are the addresses DbVNManager is seeded with at startup.
	// Empty for a sequencer process.
	Replicas []string
	// MaxConns bounds concurrent client connections (enforced by the CLI via
	// netutil.LimitListener) and, separately, the per-replica/per-sequencer
	// pool size.
	MaxConns int
	// AdminAddr, if non-empty, is where the admin HTTP surface binds.
	AdminAddr string
	// AuditLogDir, if non-empty, enables the forensic audit log at that path.
	AuditLogDir string
}

// Load reads a .properties file shaped like:
//
//	listen_addr = 127.0.0.1:6142
//	sequencer_addr = 127.0.0.1:6140
//	replicas = ["127.0.0.1:7000", "127.0.0.1:7001"]
//	max_conns = 16
//	admin_addr = 127.0.0.1:6143
//	audit_log_dir = /var/lib/verscheduler/audit
//
// replicas is stored as a JSON array string; it is parsed with gjson rather
// than properties' own (comma-only) list support, since it is itself produced
// by the deployment tooling as JSON.
func Load(path string) (Config, error) {
	p, err := properties.LoadFile(path, properties.UTF8)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	cfg := Config{
		ListenAddr:    p.GetString("listen_addr", ""),
		SequencerAddr: p.GetString("sequencer_addr", ""),
		MaxConns:      p.GetInt("max_conns", 16),
		AdminAddr:     p.GetString("admin_addr", ""),
		AuditLogDir:   p.GetString("audit_log_dir", ""),
	}
	if cfg.ListenAddr == "" {
		return Config{}, fmt.Errorf("config: listen_addr is required")
	}

	if raw := p.GetString("replicas", ""); raw != "" {
		result := gjson.Parse(raw)
		if !result.IsArray() {
			return Config{}, fmt.Errorf("config: replicas must be a JSON array, got %q", raw)
		}
		for _, r := range result.Array() {
			cfg.Replicas = append(cfg.Replicas, r.String())
		}
	}

	return cfg, nil
}
