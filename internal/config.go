package internal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// PoolConfig is the construction surface for a router and its backend
// pools. RecyclingPolicy is kept as a string here; the pool package parses
// and validates it.
type PoolConfig struct {
	MaxSize         int      `mapstructure:"max_size"`
	RecyclingPolicy string   `mapstructure:"recycling_policy"`
	Backends        []string `mapstructure:"backends"`
	DefaultBackend  string   `mapstructure:"default_backend"`
	LogLevel        string   `mapstructure:"log_level"`
}

func LoadPoolConfig(configPath string) (*PoolConfig, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	v, err := initViper(configPath, filepath.Join(home, ".spool"), "pool_config", "toml", "SPOOL")
	if err != nil {
		return nil, err
	}

	// Defaults
	v.SetDefault("max_size", 4)
	v.SetDefault("recycling_policy", "lifo")
	v.SetDefault("backends", []string{})
	v.SetDefault("default_backend", "default")
	v.SetDefault("log_level", "info")

	var cfg PoolConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Create-on-first-run ONLY (no config file was read)
	if v.ConfigFileUsed() == "" {
		writePath := configPath
		if writePath == "" {
			writePath = filepath.Join(home, ".spool", "pool_config.toml")
		}
		if _, statErr := os.Stat(writePath); errors.Is(statErr, os.ErrNotExist) {
			if _, err := cfg.Save(writePath); err != nil {
				return nil, fmt.Errorf("persist default pool config: %w", err)
			}
			Info("pool config written", Fields{
				ConfigPath: writePath,
			})
		}
	}

	return &cfg, nil
}

func (cfg *PoolConfig) Validate() error {
	if cfg.MaxSize <= 0 {
		return fmt.Errorf("max_size must be positive, got %d", cfg.MaxSize)
	}
	if strings.TrimSpace(cfg.DefaultBackend) == "" {
		return errors.New("default_backend must not be empty")
	}
	return nil
}

func (cfg *PoolConfig) Save(path string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if path == "" {
		path = filepath.Join(home, ".spool", "pool_config.toml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("max_size", cfg.MaxSize)
	v.Set("recycling_policy", cfg.RecyclingPolicy)
	v.Set("backends", cfg.Backends)
	v.Set("default_backend", cfg.DefaultBackend)
	v.Set("log_level", cfg.LogLevel)

	if err := v.WriteConfigAs(path); err != nil {
		return "", fmt.Errorf("write pool config: %w", err)
	}
	_ = os.Chmod(path, 0o600)
	return path, nil
}

func initViper(configPath, defaultDir, defaultName, defaultType, envPrefix string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType(defaultType)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(defaultDir)
		v.AddConfigPath(".")
		v.SetConfigName(defaultName)
	}

	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound {
			Error("config file could not be read", Fields{
				ConfigPath: configPath,
			})
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}
