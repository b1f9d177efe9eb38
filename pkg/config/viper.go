package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Load reads configuration from file and environment variables.
// configPath is the directory containing config files.
// configName is the name of the config file (without extension).
func Load(configPath, configName string) (*viper.Viper, error) {
	v := viper.New()

	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variable support
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil // Config file not found, rely on env vars
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return v, nil
}

// Duration reads key as a duration string ("15s", "1200ms").
// Bare integers are taken as milliseconds. Unparseable or non-positive
// values yield defaultVal.
func Duration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	str := strings.TrimSpace(v.GetString(key))
	if str == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(str); err == nil && d > 0 {
		return d
	}
	if ms := v.GetInt64(key); ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultVal
}

// GetEnv returns environment variable value or default.
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
