// Package config loads the batch CLI's TOML configuration file, the same
// way internal/tqw loads a TunaQuest world file: a typed struct decoded
// directly from disk with github.com/BurntSushi/toml (spec.md names
// configuration as an ambient concern the core compiler does not itself
// need, since InputProvider already abstracts source loading, but the
// batch harness in cmd/jetrulec does).
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Format is the only non-empty value Config.Format may hold for Load to
// accept the file (an absent format is also accepted), mirroring tqw's
// FileInfo format-tag convention.
const Format = "JETRULE_CONFIG"

// Config is the on-disk shape of a jetrulec run configuration.
type Config struct {
	Format string `toml:"format"`

	// RootFile is the name of the root JetRule source file to compile,
	// resolved by SourceDir-backed provider.
	RootFile string `toml:"root_file"`

	// SourceDir is the directory import names are resolved relative to.
	SourceDir string `toml:"source_dir"`

	// ExtractResourcesFromRules mirrors the @JetCompilerDirective of the
	// same name but lets a batch run force it on without editing source.
	ExtractResourcesFromRules bool `toml:"extract_resources_from_rules"`
}

// Load reads and decodes the TOML config file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	if cfg.Format != "" && cfg.Format != Format {
		return Config{}, fmt.Errorf("%s: unrecognized config format %q", path, cfg.Format)
	}
	if cfg.RootFile == "" {
		return Config{}, fmt.Errorf("%s: root_file is required", path)
	}
	if cfg.SourceDir == "" {
		cfg.SourceDir = "."
	}
	return cfg, nil
}
