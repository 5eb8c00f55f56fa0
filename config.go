package pykythe

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/gobwas/glob"
)

// Config is the engine configuration: the project root, the ordered
// stub/library search roots (lowest priority last), the persisted cache
// location, and the environment version suffix joined into the cache key.
type Config struct {
	ProjectRoot   string   `toml:"project_root"`
	SearchRoots   []string `toml:"search_roots"`
	CachePath     string   `toml:"cache_path"`
	VersionSuffix string   `toml:"version_suffix"`
	Workers       int      `toml:"workers"`
	Exclude       []string `toml:"exclude"`

	excludeGlobs []glob.Glob
}

// DefaultConfig returns the configuration used when no file is given:
// resolve relative to root, no extra search roots, memory-only cache.
func DefaultConfig(root string) *Config {
	return &Config{
		ProjectRoot: root,
		Exclude:     []string{"{**/,}__pycache__/**", "{**/,}.git/**", "{**/,}.venv/**"},
	}
}

// LoadConfig reads a TOML configuration file and compiles its exclude
// patterns. Paths in the file are relative to the file's directory.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig(".")
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	base := filepath.Dir(path)
	cfg.ProjectRoot = absFrom(base, cfg.ProjectRoot)
	for i, root := range cfg.SearchRoots {
		cfg.SearchRoots[i] = absFrom(base, root)
	}
	if cfg.CachePath != "" {
		cfg.CachePath = absFrom(base, cfg.CachePath)
	}
	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func absFrom(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// Finalize validates the configuration and compiles exclude patterns.
// Must be called before Excluded.
func (c *Config) Finalize() error {
	if c.ProjectRoot == "" {
		return fmt.Errorf("config: project_root is required")
	}
	if info, err := os.Stat(c.ProjectRoot); err != nil || !info.IsDir() {
		return fmt.Errorf("config: project_root %s is not a directory", c.ProjectRoot)
	}
	c.excludeGlobs = c.excludeGlobs[:0]
	for _, pattern := range c.Exclude {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return fmt.Errorf("config: exclude pattern %q: %w", pattern, err)
		}
		c.excludeGlobs = append(c.excludeGlobs, g)
	}
	return nil
}

// Excluded reports whether a slash-separated path matches any exclude
// pattern.
func (c *Config) Excluded(path string) bool {
	path = filepath.ToSlash(path)
	for _, g := range c.excludeGlobs {
		if g.Match(path) {
			return true
		}
	}
	return false
}
