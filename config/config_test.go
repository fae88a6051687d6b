package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestMaybeLoadMissingFileKeepsDefaults(t *testing.T) {
	cfg := DefaultServer()
	if err := MaybeLoad(filepath.Join(t.TempDir(), "nope.json"), &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Framerate != 60 || cfg.ZstdLevel != 1 {
		t.Fatalf("defaults clobbered: %+v", cfg)
	}
}

func TestMaybeLoadMergesFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wprsd.json")
	if err := os.WriteFile(path, []byte(`{"framerate": 30, "shards": 4}`), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg := DefaultServer()
	if err := MaybeLoad(path, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Framerate != 30 || cfg.Shards != 4 {
		t.Fatalf("file not merged: %+v", cfg)
	}
	if cfg.ZstdLevel != 1 {
		t.Fatal("untouched field lost its default")
	}
}

func TestMaybeLoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wprsd.json")
	if err := os.WriteFile(path, []byte("{"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg := DefaultServer()
	if err := MaybeLoad(path, &cfg); err == nil {
		t.Fatal("accepted malformed config")
	}
}

func TestCallbackDeadline(t *testing.T) {
	cfg := DefaultServer()
	if d := cfg.CallbackDeadline(); d != 50*time.Millisecond {
		t.Fatalf("60 Hz deadline = %v", d)
	}
	cfg.CallbackDeadlineMS = 120
	if d := cfg.CallbackDeadline(); d != 120*time.Millisecond {
		t.Fatalf("explicit deadline = %v", d)
	}
}

func TestDefaultSocketPathUsesRuntimeDir(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	if got := DefaultSocketPath(); got != "/run/user/1000/wprs.sock" {
		t.Fatalf("socket path %q", got)
	}
}
