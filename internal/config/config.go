// internal/config/config.go
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config holds the server level settings. Database and Redis connection
// details stay in the environment; these are the knobs an operator tunes
// per deployment.
type Config struct {
	Server ServerConfig `mapstructure:"server"`
}

// ServerConfig covers the HTTP listener and logging.
type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
	Debug    bool   `mapstructure:"debug"`
}

// Global is the loaded configuration instance.
var Global Config

// Load reads an optional yaml config file, layering environment variables
// on top. A missing file falls back to defaults.
func Load(path string) error {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("server.debug", false)

	viper.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			viper.SetConfigFile(path)
			if err := viper.ReadInConfig(); err != nil {
				return fmt.Errorf("read config file: %w", err)
			}
		}
	}

	if err := viper.Unmarshal(&Global); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// ListenAddr formats the HTTP bind address.
func (c *ServerConfig) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}
