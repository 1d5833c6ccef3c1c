package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"autobackup/internal/bt"
)

// Defaults for keys missing from the config file.
const (
	DefaultMode      = string(bt.ModeEvent)
	DefaultTimeValue = 5.0
)

// Config represents the main configuration for autobackup.
type Config struct {
	SourceDir string        `toml:"source_dir"`
	BackupDir string        `toml:"backup_dir"`
	Format    string        `toml:"format"`
	Mode      string        `toml:"mode"`       // "event" or "periodic"
	TimeValue float64       `toml:"time_value"` // seconds: debounce window or scan interval
	Ignore    []string      `toml:"ignore"`
	LogDir    string        `toml:"log_dir"`
	Catalog   CatalogConfig `toml:"catalog"`
}

// CatalogConfig represents configuration for the backup catalog.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type CatalogConfig struct {
	Type    string `toml:"type"`               // "sqlite", "memory" or "none"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// NewConfig creates a Config holding every default, with data kept under baseDir.
// Source and backup directories are left empty: the worker is not configured yet.
func NewConfig(baseDir string) *Config {
	return &Config{
		Format:    bt.DefaultFormat,
		Mode:      DefaultMode,
		TimeValue: DefaultTimeValue,
		LogDir:    filepath.Join(baseDir, "log"),
		Catalog: CatalogConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
	}
}

// Settings converts the worker keys into a validated bt.Settings snapshot.
func (c *Config) Settings() (bt.Settings, error) {
	return bt.NewSettings(c.SourceDir, c.BackupDir, c.Mode, c.TimeValue, c.Format)
}

// Manager handles reading and writing configuration.
type Manager struct {
	// BaseDir is the data home that defaults are derived from.
	BaseDir string
}

// Read decodes a Config from the provided reader. Keys that are absent keep
// the defaults from NewConfig.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	cfg := NewConfig(m.BaseDir)
	if _, err := toml.NewDecoder(r).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path, filling
// missing keys with defaults rooted at baseDir.
func ReadFromFile(path, baseDir string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{BaseDir: baseDir}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
