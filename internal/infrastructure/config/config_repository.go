package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/haxorport/relay-tunnel/internal/domain/model"
	"github.com/haxorport/relay-tunnel/internal/domain/port"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. RELAYTUNNEL_RELAY_URL
const EnvPrefix = "RELAYTUNNEL"

// ConfigRepository is an implementation of port.ConfigRepository
type ConfigRepository struct{}

// NewConfigRepository creates a new ConfigRepository instance
func NewConfigRepository() *ConfigRepository {
	return &ConfigRepository{}
}

// newViper returns an instance seeded with the defaults and wired to the environment
func newViper() *viper.Viper {
	v := viper.New()
	defaults := model.NewConfig()

	v.SetDefault("relay_url", defaults.RelayURL)
	v.SetDefault("transport", string(defaults.Transport))
	v.SetDefault("listen_address", defaults.ListenAddress)
	v.SetDefault("engine", string(defaults.Engine))
	v.SetDefault("timeout", defaults.Timeout.String())
	v.SetDefault("mode", string(defaults.Mode))
	v.SetDefault("key_source", string(defaults.KeySource))
	v.SetDefault("key_env", defaults.KeyEnv)
	v.SetDefault("key_file", defaults.KeyFile)
	v.SetDefault("secret_name", defaults.SecretName)
	v.SetDefault("aws_region", defaults.AWSRegion)
	v.SetDefault("mongo_uri", defaults.MongoURI)
	v.SetDefault("mongo_database", defaults.MongoDatabase)
	v.SetDefault("mongo_collection", defaults.MongoCollection)
	v.SetDefault("relay_listen_address", defaults.RelayListenAddress)
	v.SetDefault("upstream_timeout", defaults.UpstreamTimeout.String())
	v.SetDefault("max_body_bytes", defaults.MaxBodyBytes)
	v.SetDefault("log_level", string(defaults.LogLevel))
	v.SetDefault("log_file", defaults.LogFile)
	v.SetDefault("debug", defaults.Debug)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// Load loads configuration from file. A missing file yields the defaults
// with environment overrides applied.
func (r *ConfigRepository) Load(configPath string) (*model.Config, error) {
	// If configPath is empty, look in the default location
	if configPath == "" {
		var err error
		configPath, err = r.GetDefaultPath()
		if err != nil {
			return nil, err
		}
	}

	v := newViper()
	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := model.NewConfig()
	config.RelayURL = v.GetString("relay_url")
	config.Transport = model.TransportMode(strings.ToLower(v.GetString("transport")))
	config.ListenAddress = v.GetString("listen_address")
	config.Engine = model.EngineType(strings.ToLower(v.GetString("engine")))
	config.Timeout = v.GetDuration("timeout")
	config.Mode = model.EnvelopeMode(strings.ToLower(v.GetString("mode")))
	config.KeySource = model.KeySource(strings.ToLower(v.GetString("key_source")))
	config.KeyEnv = v.GetString("key_env")
	config.KeyFile = v.GetString("key_file")
	config.SecretName = v.GetString("secret_name")
	config.AWSRegion = v.GetString("aws_region")
	config.MongoURI = v.GetString("mongo_uri")
	config.MongoDatabase = v.GetString("mongo_database")
	config.MongoCollection = v.GetString("mongo_collection")
	config.RelayListenAddress = v.GetString("relay_listen_address")
	config.UpstreamTimeout = v.GetDuration("upstream_timeout")
	config.MaxBodyBytes = v.GetInt64("max_body_bytes")
	config.LogLevel = model.LogLevel(strings.ToLower(v.GetString("log_level")))
	config.LogFile = v.GetString("log_file")
	config.Debug = v.GetBool("debug")

	if config.MaxBodyBytes <= 0 {
		return nil, fmt.Errorf("max_body_bytes must be positive")
	}
	return config, nil
}

// Save saves configuration to file
func (r *ConfigRepository) Save(config *model.Config, configPath string) error {
	// If configPath is empty, use default location
	if configPath == "" {
		var err error
		configPath, err = r.GetDefaultPath()
		if err != nil {
			return err
		}
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	v := viper.New()
	v.Set("relay_url", config.RelayURL)
	v.Set("transport", string(config.Transport))
	v.Set("listen_address", config.ListenAddress)
	v.Set("engine", string(config.Engine))
	v.Set("timeout", config.Timeout.String())
	v.Set("mode", string(config.Mode))
	v.Set("key_source", string(config.KeySource))
	v.Set("key_env", config.KeyEnv)
	v.Set("key_file", config.KeyFile)
	v.Set("secret_name", config.SecretName)
	v.Set("aws_region", config.AWSRegion)
	v.Set("mongo_uri", config.MongoURI)
	v.Set("mongo_database", config.MongoDatabase)
	v.Set("mongo_collection", config.MongoCollection)
	v.Set("relay_listen_address", config.RelayListenAddress)
	v.Set("upstream_timeout", config.UpstreamTimeout.String())
	v.Set("max_body_bytes", config.MaxBodyBytes)
	v.Set("log_level", string(config.LogLevel))
	v.Set("log_file", config.LogFile)
	v.Set("debug", config.Debug)

	if filepath.Ext(configPath) == "" {
		v.SetConfigType("yaml")
	}
	if err := v.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("error saving configuration: %w", err)
	}

	return nil
}

// GetDefaultPath returns the default path for configuration file
func (r *ConfigRepository) GetDefaultPath() (string, error) {
	return model.DefaultConfigFilePath(), nil
}

// Ensure ConfigRepository implements port.ConfigRepository
var _ port.ConfigRepository = (*ConfigRepository)(nil)
