package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"xonemgr/internal/fsutil"
)

// Ensure loads the config at path, creating it with defaults when it
// does not exist yet.
func Ensure(path string) (Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return Config{}, err
	}
	cfg = DefaultConfig()
	if err := Save(path, cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("CFG_PARSE: %w", err)
	}
	cfg = Normalize(cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func Save(path string, cfg Config) error {
	cfg = Normalize(cfg)
	if err := Validate(cfg); err != nil {
		return err
	}
	if err := fsutil.EnsureDir(path); err != nil {
		return err
	}
	blob, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("CFG_ENCODE: %w", err)
	}
	return fsutil.AtomicWrite(path, blob, 0o644)
}

// Normalize fills gaps in a partially specified config with defaults.
func Normalize(cfg Config) Config {
	def := DefaultConfig()
	if cfg.Version == 0 {
		cfg.Version = SchemaVersion
	}
	if len(cfg.Drivers.Modules) == 0 {
		cfg.Drivers.Modules = def.Drivers.Modules
	}
	if cfg.Update.ReleaseURL == "" {
		cfg.Update.ReleaseURL = def.Update.ReleaseURL
	}
	if cfg.Update.AssetExtension == "" {
		cfg.Update.AssetExtension = def.Update.AssetExtension
	}
	if cfg.Pairing.AttributeGlob == "" {
		cfg.Pairing.AttributeGlob = def.Pairing.AttributeGlob
	}
	if cfg.Timeouts.InstallSeconds == 0 {
		cfg.Timeouts.InstallSeconds = def.Timeouts.InstallSeconds
	}
	if cfg.Timeouts.UninstallSeconds == 0 {
		cfg.Timeouts.UninstallSeconds = def.Timeouts.UninstallSeconds
	}
	if cfg.Timeouts.QuerySeconds == 0 {
		cfg.Timeouts.QuerySeconds = def.Timeouts.QuerySeconds
	}
	if cfg.Timeouts.FetchSeconds == 0 {
		cfg.Timeouts.FetchSeconds = def.Timeouts.FetchSeconds
	}
	if cfg.Events.Subject == "" {
		cfg.Events.Subject = def.Events.Subject
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	return cfg
}

func Validate(cfg Config) error {
	if cfg.Version != SchemaVersion {
		return fmt.Errorf("CFG_VERSION: unsupported config version %d", cfg.Version)
	}
	if len(cfg.Drivers.Modules) == 0 {
		return errors.New("CFG_MODULES: at least one dkms module is required")
	}
	for _, t := range []int{
		cfg.Timeouts.InstallSeconds,
		cfg.Timeouts.UninstallSeconds,
		cfg.Timeouts.QuerySeconds,
		cfg.Timeouts.FetchSeconds,
	} {
		if t <= 0 {
			return errors.New("CFG_TIMEOUT: timeouts must be positive")
		}
	}
	return nil
}
