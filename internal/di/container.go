package di

import (
	"context"
	"fmt"
	"os"

	"github.com/haxorport/relay-tunnel/internal/application/service"
	"github.com/haxorport/relay-tunnel/internal/domain/model"
	"github.com/haxorport/relay-tunnel/internal/domain/port"
	"github.com/haxorport/relay-tunnel/internal/infrastructure/config"
	"github.com/haxorport/relay-tunnel/internal/infrastructure/crypto"
	"github.com/haxorport/relay-tunnel/internal/infrastructure/listener"
	"github.com/haxorport/relay-tunnel/internal/infrastructure/logger"
	"github.com/haxorport/relay-tunnel/internal/infrastructure/secret"
	"github.com/haxorport/relay-tunnel/internal/infrastructure/server"
	"github.com/haxorport/relay-tunnel/internal/infrastructure/transport"
	"github.com/haxorport/relay-tunnel/internal/infrastructure/upstream"
)

// Container is a container for dependency injection
type Container struct {
	// Logger
	Logger *logger.Logger

	// Repositories
	ConfigRepository *config.ConfigRepository
	SecretStore      port.SecretStore

	// Services
	ConfigService *service.ConfigService
	TunnelService *service.TunnelService
	RelayService  *service.RelayService

	// Runtime
	Sealer      port.Sealer
	Engine      listener.Engine
	RelayServer *server.RelayServer

	// Config
	Config *model.Config
}

// NewContainer creates a new Container instance
func NewContainer() *Container {
	return &Container{}
}

// Initialize loads configuration and sets up logging
func (c *Container) Initialize(configPath string) error {
	// Initialize logger
	c.Logger = logger.NewLogger(os.Stdout, "info")

	// Initialize config repository
	c.ConfigRepository = config.NewConfigRepository()

	// Initialize config service
	c.ConfigService = service.NewConfigService(c.ConfigRepository, c.Logger)

	// Load configuration
	var err error
	c.Config, err = c.ConfigService.LoadConfig(configPath)
	if err != nil {
		return err
	}

	c.ApplyLogLevel(string(c.Config.LogLevel))

	// If log file is specified, tee the log into it
	if c.Config.LogFile != "" {
		fileLogger, err := logger.NewFileLogger(os.Stdout, c.Config.LogFile, c.Logger.Level().String())
		if err != nil {
			c.Logger.Error("Failed to create file logger: %v", err)
		} else {
			c.Logger = fileLogger
			c.ConfigService = service.NewConfigService(c.ConfigRepository, c.Logger)
			c.Logger.Info("Logs will also be written to file: %s", c.Config.LogFile)
		}
	}

	return nil
}

// ApplyLogLevel sets the log level; debug mode always logs at debug
func (c *Container) ApplyLogLevel(level string) {
	if c.Config != nil && c.Config.Debug {
		level = string(model.LogLevelDebug)
	}
	c.Logger.SetLevel(level)
}

// loadSealer reads the shared key once and builds the envelope sealer
func (c *Container) loadSealer(ctx context.Context) ([]byte, error) {
	store, err := secret.NewStore(ctx, c.Config)
	if err != nil {
		return nil, model.NewError(model.ErrConfig, "failed to open secret store", err)
	}
	c.SecretStore = store

	key, err := c.ConfigService.ResolveKey(ctx, c.Config, store)
	if err != nil {
		return nil, err
	}

	c.Sealer, err = crypto.NewSealer(key)
	if err != nil {
		return nil, err
	}
	return key, nil
}

// InitializeClient wires the tunnel client and its acceptance loop
func (c *Container) InitializeClient(ctx context.Context) error {
	key, err := c.loadSealer(ctx)
	if err != nil {
		return err
	}

	tunnelConfig := c.Config.TunnelConfig(key)
	if err := tunnelConfig.Validate(); err != nil {
		return err
	}

	relay, err := transport.CreateRelayTransport(tunnelConfig, c.Logger)
	if err != nil {
		return err
	}

	c.TunnelService = service.NewTunnelService(tunnelConfig, c.Sealer, relay, c.Logger)

	switch c.Config.Engine {
	case model.EngineRaw, "":
		c.Engine = listener.NewRawListener(c.Config.ListenAddress, c.TunnelService, c.Config.MaxBodyBytes, c.Logger)
	case model.EngineGoproxy:
		c.Engine = listener.NewGoproxyListener(c.Config.ListenAddress, c.TunnelService, c.Config.MaxBodyBytes, c.Logger, c.Config.Debug)
	default:
		return fmt.Errorf("engine not supported: %s", c.Config.Engine)
	}

	return nil
}

// InitializeRelay wires the relay entrypoint without the HTTP server
func (c *Container) InitializeRelay(ctx context.Context) error {
	key, err := c.loadSealer(ctx)
	if err != nil {
		return err
	}

	tunnelConfig := c.Config.TunnelConfig(key)
	executor := upstream.NewExecutor(tunnelConfig.UpstreamTimeout, tunnelConfig.MaxBodyBytes, c.Logger)
	c.RelayService = service.NewRelayService(c.Sealer, executor, c.Logger, tunnelConfig.Debug)
	return nil
}

// InitializeRelayServer wires the relay entrypoint behind the HTTP server
func (c *Container) InitializeRelayServer(ctx context.Context) error {
	if err := c.InitializeRelay(ctx); err != nil {
		return err
	}
	c.RelayServer = server.NewRelayServer(c.Config.RelayListenAddress, c.RelayService, c.Config.MaxBodyBytes, c.Logger, c.Config.Debug)
	return nil
}

// Close closes all resources
func (c *Container) Close() {
	if c.Engine != nil {
		c.Engine.Close()
	}

	// Close logger
	if c.Logger != nil {
		c.Logger.Close()
	}
}
