// Package config loads the engine configuration from an optional YAML
// file with environment-variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the engine configuration.
type Config struct {
	Port   string `mapstructure:"port"`
	DBPath string `mapstructure:"db_path"`

	PollInterval       time.Duration `mapstructure:"poll_interval"`
	DismissalInterval  time.Duration `mapstructure:"dismissal_interval"`
	BackgroundInterval time.Duration `mapstructure:"background_interval"`

	// ShoutrrrURLs are the delivery destinations for fired reminders.
	// Empty means in-app state only (degraded mode).
	ShoutrrrURLs []string `mapstructure:"shoutrrr_urls"`
}

// Load reads the configuration file at path (missing file is fine) and
// applies TIMEWARDEN_* environment overrides.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetDefault("port", "9280")
	v.SetDefault("db_path", "timewarden.db")
	v.SetDefault("poll_interval", "1m")
	v.SetDefault("dismissal_interval", "10s")
	v.SetDefault("background_interval", "1m")
	v.SetDefault("shoutrrr_urls", []string{})

	v.SetEnvPrefix("TIMEWARDEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !isNotExist(err) {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func isNotExist(err error) bool {
	return strings.Contains(err.Error(), "no such file")
}
