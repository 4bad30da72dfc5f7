package am

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/teranos/doxa/errors"
)

var (
	v    *viper.Viper
	once sync.Once
)

// initViper builds the singleton viper instance with env binding and
// defaults. File layers are merged on top by Load.
func initViper() {
	v = viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	BindSensitiveEnvVars(v)
	SetDefaults(v)
}

// Load reads all configuration layers and unmarshals them into a Config.
// Missing files are skipped silently; a malformed file is an error.
func Load() (*Config, error) {
	once.Do(initViper)

	if err := mergeConfigFiles(v); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshaling config")
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile reads a single TOML file, layered over defaults only. Used by
// tests and by commands given an explicit --config path.
func LoadFromFile(path string) (*Config, error) {
	fv := viper.New()
	fv.SetConfigType("toml")
	SetDefaults(fv)

	fv.SetConfigFile(path)
	if err := fv.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}

	cfg := &Config{}
	if err := fv.Unmarshal(cfg); err != nil {
		return nil, errors.Wrapf(err, "unmarshaling config %s", path)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeConfigFiles layers config files in precedence order: system, then
// user, then project. Later layers win per key.
func mergeConfigFiles(base *viper.Viper) error {
	for _, path := range configFilePaths() {
		if _, err := os.Stat(path); err != nil {
			continue
		}

		layer := viper.New()
		layer.SetConfigType("toml")
		layer.SetConfigFile(path)
		if err := layer.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "reading config %s", path)
		}

		for key, value := range layer.AllSettings() {
			base.Set(key, value)
		}
	}
	return nil
}

// configFilePaths returns candidate config files in ascending precedence.
func configFilePaths() []string {
	paths := []string{"/etc/doxa/config.toml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".doxa", "doxa.toml"),
			filepath.Join(home, ".doxa", "config.toml"),
		)
	}

	if project := findProjectConfig(); project != "" {
		paths = append(paths, project)
	}
	return paths
}

// findProjectConfig walks up from the working directory looking for a
// doxa.toml or config.toml. Returns "" when none is found.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		for _, name := range []string{"doxa.toml", "config.toml"} {
			candidate := filepath.Join(dir, name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// GetString returns a config value by dotted key from the merged layers.
func GetString(key string) string {
	once.Do(initViper)
	return v.GetString(key)
}

// GetBool returns a config value by dotted key from the merged layers.
func GetBool(key string) bool {
	once.Do(initViper)
	return v.GetBool(key)
}

// GetInt returns a config value by dotted key from the merged layers.
func GetInt(key string) int {
	once.Do(initViper)
	return v.GetInt(key)
}

// GetDatabasePath resolves the database location, preferring the
// DOXA_DATABASE_PATH environment variable over configuration.
func GetDatabasePath() string {
	if env := os.Getenv("DOXA_DATABASE_PATH"); env != "" {
		return env
	}

	if path := GetString("database.path"); path != "" {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "doxa.db"
	}
	return filepath.Join(home, ".doxa", "doxa.db")
}
