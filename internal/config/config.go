package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/phovea/generator-phovea/internal/branding"
)

const (
	fileName = "config"
	fileType = "yaml"
)

// Keys understood by the generator.
const (
	KeyTemplatesDir = "templates_dir"
	KeyVerbosity    = "verbosity"
)

// Keys lists every known key with a short description.
var Keys = map[string]string{
	KeyTemplatesDir: "directory with kinds.yaml and templates/ that overrides built-in kinds",
	KeyVerbosity:    "default log verbosity (0-3)",
}

// Dir returns the config directory: $PHOVEA_HOME when set, else ~/.phovea/.
func Dir() string {
	if dir := os.Getenv(branding.EnvVar("HOME")); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", branding.HomeDir())
	}
	return filepath.Join(home, branding.HomeDir())
}

// FilePath returns the full path to the config file (~/.phovea/config.yaml).
func FilePath() string {
	return filepath.Join(Dir(), fileName+"."+fileType)
}

// EnsureDir creates the config directory if it does not exist.
func EnsureDir() error {
	dir := Dir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}
	return nil
}

// Load initializes Viper to read from the config file and environment.
// Calling it again discards values set since the last load.
func Load() {
	viper.Reset()
	viper.SetConfigFile(FilePath())
	viper.SetConfigType(fileType)
	viper.SetEnvPrefix(branding.EnvPrefix())
	viper.AutomaticEnv()
	viper.SetDefault(KeyVerbosity, 0)

	// Ignore error if config file doesn't exist yet.
	_ = viper.ReadInConfig()
}

// Get returns a config value by key. Returns empty string if not set.
func Get(key string) string {
	return viper.GetString(key)
}

// TemplatesDir returns the overlay source directory, or "" when unset.
func TemplatesDir() string {
	return viper.GetString(KeyTemplatesDir)
}

// Verbosity returns the configured default log verbosity.
func Verbosity() int {
	return viper.GetInt(KeyVerbosity)
}

// Set writes a config key-value pair and saves the config file.
func Set(key, value string) error {
	if _, ok := Keys[key]; !ok {
		return fmt.Errorf("unknown config key %q", key)
	}
	if err := EnsureDir(); err != nil {
		return err
	}

	viper.Set(key, value)

	configFile := FilePath()

	// Create the file if it doesn't exist.
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("creating config file %s: %w", configFile, err)
		}
		f.Close()
	}

	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
