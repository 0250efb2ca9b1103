// Package config holds the viper configuration singleton. Precedence:
// command-line flags, then RECMIG_* environment variables, then the
// first config.yaml found in a .recmig directory walking up from the
// working directory, then the user config dir, then defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var v *viper.Viper

// Initialize sets up the configuration singleton. Called once at
// startup before any command runs.
func Initialize() error {
	v = viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Walk up from CWD so commands work from subdirectories of a
	// project carrying a .recmig directory
	if cwd, err := os.Getwd(); err == nil {
		for dir := cwd; dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
			rcDir := filepath.Join(dir, ".recmig")
			if info, err := os.Stat(rcDir); err == nil && info.IsDir() {
				v.AddConfigPath(rcDir)
				break
			}
		}
	}
	if configDir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(configDir, "recmig"))
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(homeDir, ".recmig"))
	}

	// RECMIG_INSTANCE_URL maps to "instance-url", and so on
	v.SetEnvPrefix("RECMIG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("instance-url", "")
	v.SetDefault("token", "")
	v.SetDefault("namespace", "")
	v.SetDefault("json", false)
	v.SetDefault("verbose", false)
	v.SetDefault("state-db", "")
	v.SetDefault("max-fetch-size", 10000)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

// GetString retrieves a string configuration value
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool retrieves a boolean configuration value
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

// GetInt retrieves an integer configuration value
func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

// Set sets a configuration value, used to layer flag values on top
func Set(key string, value interface{}) {
	if v != nil {
		v.Set(key, value)
	}
}

// StateDBPath resolves the state database location: the configured
// path, or state.db next to the config file, or ~/.recmig/state.db
func StateDBPath() string {
	if p := GetString("state-db"); p != "" {
		return p
	}
	if v != nil {
		if used := v.ConfigFileUsed(); used != "" {
			return filepath.Join(filepath.Dir(used), "state.db")
		}
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".recmig", "state.db")
	}
	return "state.db"
}
