package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultBuilds(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}

	cluster, err := cfg.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(cluster.Nodes) != 4 {
		t.Fatalf("nodes = %d, want 4", len(cluster.Nodes))
	}

	names := []string{"A", "B", "C", "D"}
	for i, n := range cluster.Nodes {
		if n.Key.Name != names[i] {
			t.Errorf("node %d name = %s, want %s", i, n.Key.Name, names[i])
		}
		if want := int64(126 + i); n.Identity.Int64() != want {
			t.Errorf("node %s identity = %s, want %d", n.Key.Name, n.Identity, want)
		}
		if want := int64(621 + 100*i); n.RandomVal.Int64() != want {
			t.Errorf("node %s random_val = %s, want %d", n.Key.Name, n.RandomVal, want)
		}
	}
	if cluster.PKG.N.BitLen() <= 256 {
		t.Errorf("PKG modulus too small: %d bits", cluster.PKG.N.BitLen())
	}
	if cluster.Officer == nil {
		t.Error("officer key missing")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty listen", func(c *Config) { c.Listen = "" }},
		{"no nodes", func(c *Config) { c.Nodes = nil }},
		{"too many faulty", func(c *Config) { c.MaxFaulty = 2 }},
		{"zero reconcile", func(c *Config) { c.ReconcileInterval = 0 }},
		{"bad rate", func(c *Config) { c.RateLimit.RequestsPerSecond = 0 }},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }},
		{"half tls", func(c *Config) { c.TLS.CertFile = "cert.pem" }},
		{"bad node name", func(c *Config) { c.Nodes[0].Name = "a b" }},
		{"duplicate node", func(c *Config) { c.Nodes[1].Name = "A" }},
		{"duplicate identity", func(c *Config) { c.Nodes[1].Identity = "126" }},
		{"missing identity", func(c *Config) { c.Nodes[2].Identity = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestBuildRejectsBadIntegers(t *testing.T) {
	cfg := Default()
	cfg.Nodes[0].P = "not-a-number"
	if _, err := cfg.Build(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Build() error = %v, want ErrInvalidConfig", err)
	}

	cfg = Default()
	cfg.Nodes[3].Identity = "12x"
	if _, err := cfg.Build(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Build() error = %v, want ErrInvalidConfig", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ledger.yaml")
	data := []byte(`listen: ":8080"
require_primary: true
reconcile_interval: 500ms
log:
  level: debug
`)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv(PassphraseEnv, "from-the-environment")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Listen != ":8080" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if !cfg.RequirePrimary {
		t.Error("RequirePrimary not loaded")
	}
	if cfg.ReconcileInterval != 500*time.Millisecond {
		t.Errorf("ReconcileInterval = %v", cfg.ReconcileInterval)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
	if len(cfg.Nodes) != 4 {
		t.Errorf("nodes = %d, want defaults kept", len(cfg.Nodes))
	}
	if cfg.StorePassphrase != "from-the-environment" {
		t.Errorf("StorePassphrase = %q", cfg.StorePassphrase)
	}
}

func TestLoadRejectsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("listen: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Load() error = %v, want ErrInvalidConfig", err)
	}
}

func TestMarshalRoundTripsNodes(t *testing.T) {
	cfg := Default()
	cluster, err := cfg.Build()
	if err != nil {
		t.Fatal(err)
	}

	spec := SpecFor(cluster.Nodes[1].Key, cluster.Nodes[1].Identity, cluster.Nodes[1].RandomVal)
	if spec != cfg.Nodes[1] {
		t.Errorf("SpecFor() = %+v, want %+v", spec, cfg.Nodes[1])
	}

	out, err := cfg.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if len(out) == 0 {
		t.Error("Marshal() returned nothing")
	}
}
