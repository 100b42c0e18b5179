package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/mudstream/internal/config/loader"
)

// DefaultPath returns the default config file location,
// $XDG_CONFIG_HOME/mudstream/config.toml or its platform equivalent.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "mudstream", "config.toml")
}

// Load builds the configuration from defaults, the file at path (skipped
// when empty or missing) and the environment, then validates it.
func Load(path string) (*Config, error) {
	return LoadWithFS(loader.DefaultFS(), path)
}

// LoadWithFS is Load with a custom file system for the config file.
func LoadWithFS(fsys loader.FileSystem, path string) (*Config, error) {
	sources := []loader.Loader{}
	if path != "" {
		l, err := loader.ForPath(fsys, path)
		if err != nil {
			var uerr *loader.UnsupportedFormatError
			if errors.As(err, &uerr) {
				return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
			}
			return nil, err
		}
		sources = append(sources, l)
	}
	sources = append(sources, loader.NewEnvLoader(EnvPrefix))

	merged := map[string]any{}
	for _, src := range sources {
		m, err := src.Load()
		if err != nil {
			return nil, err
		}
		merged = loader.DeepMerge(merged, m)
	}

	cfg := Default()
	if err := decode(merged, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode applies a merged source map on top of cfg.
func decode(m map[string]any, cfg *Config) error {
	if len(m) == 0 {
		return nil
	}
	data, err := toml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding merged config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	return nil
}
