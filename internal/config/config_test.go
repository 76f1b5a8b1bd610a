package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestLoadAndResolve(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "packtool.json")
	data := `{"asset_dirs": ["assets/common"], "output_root": "/tmp/out", "io_threads": 3}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	cfg.Resolve(Flags{})

	if cfg.OutputRoot != "/tmp/out" {
		t.Errorf("OutputRoot = %q", cfg.OutputRoot)
	}
	if cfg.IOThreads != 3 {
		t.Errorf("IOThreads = %d, want 3", cfg.IOThreads)
	}
	if len(cfg.AssetDirs) != 1 || !filepath.IsAbs(cfg.AssetDirs[0]) {
		t.Errorf("AssetDirs = %v, want one absolute path", cfg.AssetDirs)
	}
}

func TestResolveFlagsOverride(t *testing.T) {
	cfg := Config{OutputRoot: "/from/file", IOThreads: 2}
	cfg.Resolve(Flags{OutputRoot: "/from/flag", IOThreads: 8})

	if cfg.OutputRoot != "/from/flag" {
		t.Errorf("OutputRoot = %q, flag should win", cfg.OutputRoot)
	}
	if cfg.IOThreads != 8 {
		t.Errorf("IOThreads = %d, flag should win", cfg.IOThreads)
	}
}

func TestResolveDefaults(t *testing.T) {
	var cfg Config
	cfg.Resolve(Flags{})

	if cfg.OutputRoot != "." {
		t.Errorf("OutputRoot = %q, want .", cfg.OutputRoot)
	}
	if want := runtime.NumCPU() + 4; cfg.IOThreads != want {
		t.Errorf("IOThreads = %d, want %d", cfg.IOThreads, want)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("missing file accepted")
	}
	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bad); err == nil {
		t.Error("malformed JSON accepted")
	}
}
