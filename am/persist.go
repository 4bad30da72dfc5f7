package am

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/teranos/doxa/errors"
)

const backupCount = 3

// UserConfigPath returns the writable per-user config file, creating its
// directory if needed.
func UserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "resolving home directory")
	}

	dir := filepath.Join(home, ".doxa")
	if err := os.MkdirAll(dir, ConfigDirPerm); err != nil {
		return "", errors.Wrapf(err, "creating config directory %s", dir)
	}
	return filepath.Join(dir, "doxa.toml"), nil
}

// Save writes cfg to path as TOML, rotating up to three backups of the
// previous contents first.
func Save(cfg *Config, path string) error {
	if err := createBackup(path); err != nil {
		return err
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "marshaling config")
	}

	MarkOwnWrite(path)
	if err := os.WriteFile(path, data, ConfigFilePerm); err != nil {
		return errors.Wrapf(err, "writing config %s", path)
	}
	return nil
}

// createBackup rotates path.back1 -> path.back2 -> path.back3 and copies the
// current file to path.back1. Missing files are not an error.
func createBackup(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	for i := backupCount - 1; i >= 1; i-- {
		from := fmt.Sprintf("%s.back%d", path, i)
		to := fmt.Sprintf("%s.back%d", path, i+1)
		if _, err := os.Stat(from); err == nil {
			if err := os.Rename(from, to); err != nil {
				return errors.Wrapf(err, "rotating backup %s", from)
			}
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "reading %s for backup", path)
	}
	backup := fmt.Sprintf("%s.back1", path)
	if err := os.WriteFile(backup, data, ConfigFilePerm); err != nil {
		return errors.Wrapf(err, "writing backup %s", backup)
	}
	return nil
}

// loadOrInitialize reads the user config file, returning a default Config
// when the file does not exist yet.
func loadOrInitialize(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}

	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing config %s", path)
	}
	return cfg, nil
}

// UpdateDatabasePath persists a new database path to the user config.
func UpdateDatabasePath(path string) error {
	return updateUserConfig(func(cfg *Config) {
		cfg.Database.Path = path
	})
}

// UpdateOverlapPolicy persists a new overlap policy to the user config.
func UpdateOverlapPolicy(policy string) error {
	return updateUserConfig(func(cfg *Config) {
		cfg.Ontology.OverlapPolicy = policy
	})
}

// UpdateRulesDir persists a new rules directory to the user config.
func UpdateRulesDir(dir string) error {
	return updateUserConfig(func(cfg *Config) {
		cfg.Inference.RulesDir = dir
	})
}

func updateUserConfig(mutate func(*Config)) error {
	path, err := UserConfigPath()
	if err != nil {
		return err
	}

	cfg, err := loadOrInitialize(path)
	if err != nil {
		return err
	}

	mutate(cfg)
	if err := Validate(cfg); err != nil {
		return err
	}
	return Save(cfg, path)
}
