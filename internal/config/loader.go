package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnvPath names an rc file that takes precedence over the search path.
const EnvPath = "RETOUCHER_CONFIG"

// Loader finds and reads the rc file.
type Loader struct {
	Version      string // "dev" builds also read ./.retoucherrc
	OverridePath string // set at link time by packagers
}

// NewLoader creates a new Loader.
func NewLoader(version string, overridePath string) *Loader {
	return &Loader{
		Version:      version,
		OverridePath: overridePath,
	}
}

// Load parses the first rc file found, or returns defaults when none exists.
func (l *Loader) Load() (*Config, error) {
	path := l.GetConfigPath()
	if path == "" {
		return New(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path, creating parent directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(cfg.String()), 0o644)
}

func configDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "retoucher")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "retoucher")
}

// DefaultPath is where Save writes when no path is given.
func DefaultPath() string {
	return filepath.Join(configDir(), "config.rc")
}

// Candidates lists the rc paths in lookup order.
func (l *Loader) Candidates() []string {
	var paths []string
	if l.OverridePath != "" {
		paths = append(paths, l.OverridePath)
	}
	if env := os.Getenv(EnvPath); env != "" {
		paths = append(paths, env)
	}
	if l.Version == "dev" {
		if wd, err := os.Getwd(); err == nil {
			paths = append(paths, filepath.Join(wd, ".retoucherrc"))
		}
	}
	return append(paths, DefaultPath(), filepath.Join(configDir(), "retoucher.rc"))
}

// GetConfigPath returns the first candidate that exists, or "".
func (l *Loader) GetConfigPath() string {
	for _, p := range l.Candidates() {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
