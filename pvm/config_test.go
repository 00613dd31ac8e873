package pvm

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pvm.toml")
	body := "heap_words = 4096\nlog_collections = true\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.HeapWords != 4096 {
		t.Errorf("HeapWords = %d", cfg.HeapWords)
	}
	if !cfg.LogCollections {
		t.Error("LogCollections not set")
	}
	// Unset fields take defaults.
	if cfg.StackSlots != DefaultStackSlots {
		t.Errorf("StackSlots = %d, want default %d", cfg.StackSlots, DefaultStackSlots)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("missing file accepted")
	}
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("heap_words = {"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("malformed TOML accepted")
	}
}

func TestConfigDefaults(t *testing.T) {
	var c Config
	c.fillDefaults()
	if c.HeapWords != DefaultHeapWords || c.StackSlots != DefaultStackSlots {
		t.Errorf("defaults = %+v", c)
	}
}
