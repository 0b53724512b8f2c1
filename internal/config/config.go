package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"

	"github.com/kalambet/typedprefs/pkg/prefs"
	"github.com/kalambet/typedprefs/pkg/settings/file"
)

const appName = "typedprefs"

// Store backends understood by store.backend.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

type Config struct {
	Store StoreConfig
	Prefs PrefsConfig
	Log   LogConfig
}

type StoreConfig struct {
	Backend string
	Dir     string
	Format  string
}

type PrefsConfig struct {
	Codec      string
	Permissive bool
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Store: StoreConfig{
			Backend: BackendFile,
			Dir:     filepath.Join(xdg.ConfigHome, appName),
			Format:  string(file.JSON),
		},
		Prefs: PrefsConfig{
			Codec: "json",
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
}

// Path returns the config file location,
// $XDG_CONFIG_HOME/typedprefs/config.toml.
func Path() string {
	return filepath.Join(xdg.ConfigHome, appName, "config.toml")
}

// Load reads configuration from the config file and applies environment
// overrides (PREFS_*) on top.
func Load() (Config, error) {
	return LoadFrom(Path())
}

// LoadFrom is Load with an explicit config file path.
func LoadFrom(path string) (Config, error) {
	return loadWith(newFileBackend(path))
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first setting that cannot be used.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case BackendFile, BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("invalid store.backend %q: want %s, %s or %s", c.Store.Backend, BackendFile, BackendSQLite, BackendMemory)
	}
	if c.Store.Dir == "" && c.Store.Backend != BackendMemory {
		return fmt.Errorf("store.dir must not be empty")
	}
	if _, err := file.ParseFormat(c.Store.Format); err != nil {
		return fmt.Errorf("invalid store.format: %w", err)
	}
	if _, err := prefs.CodecByName(c.Prefs.Codec); err != nil {
		return fmt.Errorf("invalid prefs.codec: %w", err)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps log.level to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid log.level %q: %w", s, err)
	}
	return lvl, nil
}
