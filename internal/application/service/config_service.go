package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/haxorport/relay-tunnel/internal/domain/model"
	"github.com/haxorport/relay-tunnel/internal/domain/port"
	"github.com/haxorport/relay-tunnel/internal/infrastructure/crypto"
)

// ConfigService is a service for managing configuration
type ConfigService struct {
	configRepo port.ConfigRepository
	logger     port.Logger
}

// NewConfigService creates a new ConfigService instance
func NewConfigService(configRepo port.ConfigRepository, logger port.Logger) *ConfigService {
	return &ConfigService{
		configRepo: configRepo,
		logger:     logger,
	}
}

// LoadConfig loads configuration from a file
func (s *ConfigService) LoadConfig(configPath string) (*model.Config, error) {
	if configPath == "" {
		var err error
		configPath, err = s.configRepo.GetDefaultPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get default path: %w", err)
		}
	}

	config, err := s.configRepo.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
	}

	s.logger.Debug("Configuration loaded from %s", configPath)

	return config, nil
}

// SaveConfig saves configuration to a file
func (s *ConfigService) SaveConfig(config *model.Config, configPath string) error {
	if configPath == "" {
		var err error
		configPath, err = s.configRepo.GetDefaultPath()
		if err != nil {
			return fmt.Errorf("failed to get default path: %w", err)
		}
	}

	if err := s.configRepo.Save(config, configPath); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	s.logger.Info("Configuration saved to %s", configPath)

	return nil
}

// Set changes one configuration value by its file key
func (s *ConfigService) Set(config *model.Config, key, value string) error {
	switch key {
	case "relay_url":
		config.RelayURL = value
	case "transport":
		mode := model.TransportMode(strings.ToLower(value))
		if mode != model.TransportHTTP && mode != model.TransportWebSocket {
			return fmt.Errorf("transport must be http or websocket")
		}
		config.Transport = mode
	case "listen_address":
		config.ListenAddress = value
	case "engine":
		engine := model.EngineType(strings.ToLower(value))
		if engine != model.EngineRaw && engine != model.EngineGoproxy {
			return fmt.Errorf("engine must be raw or goproxy")
		}
		config.Engine = engine
	case "timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("timeout must be a duration: %w", err)
		}
		config.Timeout = d
	case "upstream_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("upstream_timeout must be a duration: %w", err)
		}
		config.UpstreamTimeout = d
	case "mode":
		mode := model.EnvelopeMode(strings.ToLower(value))
		if mode != model.EnvelopeModeAES && mode != model.EnvelopeModePlain {
			return fmt.Errorf("mode must be aes or plain")
		}
		config.Mode = mode
	case "key_source":
		config.KeySource = model.KeySource(strings.ToLower(value))
	case "key_env":
		config.KeyEnv = value
	case "key_file":
		config.KeyFile = value
	case "secret_name":
		config.SecretName = value
	case "aws_region":
		config.AWSRegion = value
	case "mongo_uri":
		config.MongoURI = value
	case "mongo_database":
		config.MongoDatabase = value
	case "mongo_collection":
		config.MongoCollection = value
	case "relay_listen_address":
		config.RelayListenAddress = value
	case "max_body_bytes":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil || n <= 0 {
			return fmt.Errorf("max_body_bytes must be a positive number")
		}
		config.MaxBodyBytes = n
	case "log_level":
		config.LogLevel = model.LogLevel(value)
	case "log_file":
		config.LogFile = value
	case "debug":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("debug must be true or false")
		}
		config.Debug = b
	default:
		return fmt.Errorf("invalid configuration key: %s", key)
	}
	return nil
}

// ResolveKey reads the shared key from the secret store once at startup.
// A nil key means plain mode.
func (s *ConfigService) ResolveKey(ctx context.Context, config *model.Config, store port.SecretStore) ([]byte, error) {
	if config.Plain() {
		s.logger.Warn("Envelope encryption disabled; payloads are only base64 encoded")
		return nil, nil
	}
	if store == nil {
		return nil, model.NewError(model.ErrConfig, "no secret store configured", nil)
	}

	material, err := store.GetSecret(ctx, config.SecretName)
	if err != nil {
		return nil, model.NewError(model.ErrConfig, "failed to retrieve shared key", err)
	}
	key, err := crypto.ParseKey(material)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Loaded %d-bit shared key from %s store", len(key)*8, config.KeySource)
	return key, nil
}
