package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/Tiliavir/psp/internal/archive"
	"github.com/Tiliavir/psp/internal/filetypes"
)

// EnvVar names the environment variable that overrides the config path.
const EnvVar = "PSP_CONFIG"

// Config is the root configuration for psp, stored in ~/.psp/config.yaml.
type Config struct {
	// WarningLevel: 0 suppresses warnings, 1 reports them, 2 or more turns
	// them into errors.
	WarningLevel int `yaml:"warning_level"`
	// Encoding is the text encoding of archive files.
	Encoding string `yaml:"encoding"`
	// ArchiveName is the file name used when writing an archive to a directory.
	ArchiveName string     `yaml:"archive_name"`
	CheckOrder  bool       `yaml:"check_order"`
	Dump        DumpConfig `yaml:"dump"`
	Types       []Type     `yaml:"types"`
}

// DumpConfig holds the settings for writing archives.
type DumpConfig struct {
	// TimeZone such as "+08:00" or "UTC". Empty writes every offset.
	TimeZone        string   `yaml:"time_zone"`
	Paths           []string `yaml:"paths"`
	ExportTextTypes []string `yaml:"export_text_types"`
	Indent          string   `yaml:"indent"`
}

// Type registers an extra file type.
type Type struct {
	Name       string   `yaml:"name"`
	Text       bool     `yaml:"text"`
	Extensions []string `yaml:"extensions"`
	Aliases    []string `yaml:"aliases"`
}

const (
	// DefaultEncoding is the archive file encoding.
	DefaultEncoding = "utf-8"
	// DefaultArchiveName is the file name of written archives.
	DefaultArchiveName = "backup.json"
)

// defaultConfig returns a Config pre-filled with sensible defaults.
func defaultConfig() Config {
	return Config{
		WarningLevel: 1,
		Encoding:     DefaultEncoding,
		ArchiveName:  DefaultArchiveName,
		CheckOrder:   true,
		Dump: DumpConfig{
			Paths:  []string{"."},
			Indent: "  ",
		},
	}
}

// configTemplate is the annotated config written on first run.
const configTemplate = `# psp configuration - ~/.psp/config.yaml
#
# All settings are optional; the values below are the built-in defaults.
# Set PSP_CONFIG to use a different file.

# 0 suppresses warnings, 1 reports them, 2 turns them into errors.
# Can be overridden with: psp -W <level>
warning_level: 1

# Text encoding of archive files. Can be overridden with: psp --encoding <name>
encoding: utf-8

# File name used by "psp merge --out DIR".
archive_name: backup.json

# Warn when panels are not in date order or entries are out of order.
check_order: true

dump:
  # Default time zone of written archives, e.g. "+08:00" or "UTC".
  # Entry times in this zone are written without an offset.
  time_zone: ""

  # Lookup paths written to the archive and used to shorten input paths.
  paths:
    - "."

  # Text types that are exported to files instead of kept inline.
  export_text_types: []

  # JSON indentation.
  indent: "  "

# Extra file types, e.g.
#   - name: org
#     text: true
#     extensions: [".org"]
#     aliases: ["orgmode"]
types: []
`

// FilePath returns the config path: $PSP_CONFIG, or ~/.psp/config.yaml.
func FilePath() (string, error) {
	if p := os.Getenv(EnvVar); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".psp", "config.yaml"), nil
}

// Load reads the config file, creating ~/.psp/config.yaml with annotated
// defaults on first run. A missing $PSP_CONFIG file is an error.
func Load() (Config, error) {
	path, err := FilePath()
	if err != nil {
		return defaultConfig(), err
	}
	if os.Getenv(EnvVar) != "" {
		return LoadFrom(path)
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		// First run: write the annotated template so users can discover options.
		if writeErr := writeDefault(path); writeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not create config file %s: %v\n", path, writeErr)
		}
		return defaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads the config file at path. Keys missing from the file keep
// their defaults.
func LoadFrom(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return defaultConfig(), fmt.Errorf("reading config file %s: %w", path, err)
	}
	return parse(path, data)
}

func parse(path string, data []byte) (Config, error) {
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return defaultConfig(), fmt.Errorf("parsing config file %s: %w\nTip: delete the file to regenerate defaults", path, err)
	}

	// Fill zero-value fields with built-in defaults so callers always get
	// a usable Config even if the user only partially fills in the file.
	if cfg.Encoding == "" {
		cfg.Encoding = DefaultEncoding
	}
	if cfg.ArchiveName == "" {
		cfg.ArchiveName = DefaultArchiveName
	}
	if len(cfg.Dump.Paths) == 0 {
		cfg.Dump.Paths = []string{"."}
	}
	for i, t := range cfg.Types {
		if t.Name == "" {
			return defaultConfig(), fmt.Errorf("config file %s: types[%d] has no name", path, i)
		}
	}
	return cfg, nil
}

// writeDefault creates the config directory and writes the annotated default
// config template.
func writeDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0o600); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}

// Registry returns the common file types plus the configured ones.
func (c Config) Registry() (*filetypes.Registry, error) {
	r := filetypes.NewRegistry()
	if err := filetypes.RegisterCommon(r); err != nil {
		return nil, err
	}
	for _, t := range c.Types {
		if r.HasType(t.Name) {
			for _, ext := range t.Extensions {
				if err := r.AddExtension(t.Name, ext); err != nil {
					return nil, fmt.Errorf("type %s: %w", t.Name, err)
				}
			}
			for _, alias := range t.Aliases {
				if err := r.AddAlias(alias, t.Name); err != nil {
					return nil, fmt.Errorf("type %s: %w", t.Name, err)
				}
			}
			continue
		}
		if err := r.AddType(t.Name, t.Text, t.Extensions, t.Aliases); err != nil {
			return nil, fmt.Errorf("type %s: %w", t.Name, err)
		}
	}
	return r, nil
}

// LoaderConfig returns the archive loader settings.
func (c Config) LoaderConfig(reg *filetypes.Registry) archive.LoaderConfig {
	cfg := archive.DefaultLoaderConfig()
	cfg.CheckPanelOrder = c.CheckOrder
	cfg.CheckEntryOrder = c.CheckOrder
	cfg.Warnings = archive.PolicyFromLevel(c.WarningLevel)
	cfg.Registry = reg
	return cfg
}

// DumperConfig returns the archive dumper settings.
func (c Config) DumperConfig(reg *filetypes.Registry) archive.DumperConfig {
	cfg := archive.DefaultDumperConfig()
	cfg.TimeZone = c.Dump.TimeZone
	cfg.Paths = c.Dump.Paths
	cfg.ExportTextTypes = c.Dump.ExportTextTypes
	cfg.Indent = c.Dump.Indent
	cfg.Warnings = archive.PolicyFromLevel(c.WarningLevel)
	cfg.Registry = reg
	return cfg
}
