package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// Config holds all configurable paths and export settings.
type Config struct {
	// Paths
	AssetDirs  []string `json:"asset_dirs"`
	OutputRoot string   `json:"output_root"`

	// Export settings
	IOThreads int `json:"io_threads"`
}

// Load reads a JSON config file and returns Config.
// Fields not set in the file keep their zero values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return cfg, nil
}

// Resolve fills in any empty fields with auto-detected defaults.
// CLI flags take priority when non-zero/non-empty.
func (c *Config) Resolve(flags Flags) {
	// CLI flags override config file
	if flags.OutputRoot != "" {
		c.OutputRoot = flags.OutputRoot
	}
	if flags.IOThreads > 0 {
		c.IOThreads = flags.IOThreads
	}

	// Auto-detect an asset directory if none configured
	if len(c.AssetDirs) == 0 {
		if dir := detectAssetDir(); dir != "" {
			c.AssetDirs = []string{dir}
		}
	}

	// Relative asset dirs resolve against the config's notion of cwd
	for i, dir := range c.AssetDirs {
		if !filepath.IsAbs(dir) {
			if abs, err := filepath.Abs(dir); err == nil {
				c.AssetDirs[i] = abs
			}
		}
	}

	if c.OutputRoot == "" {
		c.OutputRoot = "."
	}
	if c.IOThreads <= 0 {
		c.IOThreads = runtime.NumCPU() + 4
	}
}

// Flags holds CLI flag values that override config file settings.
type Flags struct {
	OutputRoot string
	IOThreads  int
}

func detectAssetDir() string {
	// Try relative to executable
	exe, _ := os.Executable()
	if exe != "" {
		dir := filepath.Dir(exe)
		for _, base := range []string{dir, filepath.Dir(dir)} {
			if _, err := os.Stat(filepath.Join(base, "assets")); err == nil {
				return filepath.Join(base, "assets")
			}
		}
	}

	// Try current working directory
	cwd, _ := os.Getwd()
	if _, err := os.Stat(filepath.Join(cwd, "assets")); err == nil {
		return filepath.Join(cwd, "assets")
	}

	return ""
}
