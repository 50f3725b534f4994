package internal

import (
	"path/filepath"
	"testing"
)

func TestPoolConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     PoolConfig
		wantErr bool
	}{
		{"valid", PoolConfig{MaxSize: 4, DefaultBackend: "default"}, false},
		{"zero size", PoolConfig{MaxSize: 0, DefaultBackend: "default"}, true},
		{"negative size", PoolConfig{MaxSize: -2, DefaultBackend: "default"}, true},
		{"empty default backend", PoolConfig{MaxSize: 4, DefaultBackend: "   "}, true},
	}
	for _, tc := range tests {
		err := tc.cfg.Validate()
		if tc.wantErr && err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
		if !tc.wantErr && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
	}
}

func TestPoolConfigSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pool_config.toml")

	cfg := &PoolConfig{
		MaxSize:         6,
		RecyclingPolicy: "fifo",
		Backends:        []string{"primary", "replica"},
		DefaultBackend:  "primary",
		LogLevel:        "debug",
	}
	if _, err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadPoolConfig(path)
	if err != nil {
		t.Fatalf("LoadPoolConfig: %v", err)
	}
	if loaded.MaxSize != 6 || loaded.RecyclingPolicy != "fifo" {
		t.Fatalf("reloaded config mismatch: %+v", loaded)
	}
	if loaded.DefaultBackend != "primary" {
		t.Fatalf("default backend = %q, want primary", loaded.DefaultBackend)
	}
	if len(loaded.Backends) != 2 {
		t.Fatalf("backends = %v, want two entries", loaded.Backends)
	}
}

func TestLoadPoolConfigRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pool_config.toml")

	cfg := &PoolConfig{MaxSize: -1, DefaultBackend: "default"}
	if _, err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := LoadPoolConfig(path); err == nil {
		t.Fatal("expected validation error for non-positive max_size")
	}
}
