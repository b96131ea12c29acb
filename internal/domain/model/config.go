package model

import (
	"os"
	"path/filepath"
	"time"
)

// LogLevel defines logging levels
type LogLevel string

const (
	// LogLevelDebug is the level for debug messages
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo is the level for informational messages
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn is the level for warning messages
	LogLevelWarn LogLevel = "warn"
	// LogLevelError is the level for error messages
	LogLevelError LogLevel = "error"
)

// TransportMode defines how the tunnel client reaches the relay
type TransportMode string

const (
	// TransportHTTP posts one envelope per exchange to the relay URL
	TransportHTTP TransportMode = "http"
	// TransportWebSocket sends one envelope per exchange over a websocket
	TransportWebSocket TransportMode = "websocket"
)

// EnvelopeMode selects whether payloads are encrypted
type EnvelopeMode string

const (
	// EnvelopeModeAES seals payloads with the shared key
	EnvelopeModeAES EnvelopeMode = "aes"
	// EnvelopeModePlain only base64 encodes payloads
	EnvelopeModePlain EnvelopeMode = "plain"
)

// KeySource defines where the shared key is read from at startup
type KeySource string

const (
	KeySourceEnv   KeySource = "env"
	KeySourceFile  KeySource = "file"
	KeySourceAWS   KeySource = "aws"
	KeySourceMongo KeySource = "mongo"
	KeySourceNone  KeySource = "none"
)

// EngineType selects the connection-acceptance loop of the tunnel client
type EngineType string

const (
	// EngineRaw reads client requests straight off the socket, keeping header order
	EngineRaw EngineType = "raw"
	// EngineGoproxy uses elazarl/goproxy to accept and parse client requests
	EngineGoproxy EngineType = "goproxy"
)

// Config is the configuration structure for the relay tunnel
type Config struct {
	// RelayURL is the relay entrypoint (http(s):// or ws(s)://)
	RelayURL string
	// Transport is the transport used to reach the relay
	Transport TransportMode
	// ListenAddress is the local bind address of the tunnel client
	ListenAddress string
	// Engine is the acceptance loop used by the tunnel client
	Engine EngineType
	// Timeout bounds a single relay round trip
	Timeout time.Duration
	// Mode selects encrypted or plain envelopes
	Mode EnvelopeMode
	// KeySource is where the shared key comes from
	KeySource KeySource
	// KeyEnv is the environment variable holding the key
	KeyEnv string
	// KeyFile is the path of a file holding the key
	KeyFile string
	// SecretName is the secret id in the external secret store
	SecretName string
	// AWSRegion is the region of AWS Secrets Manager
	AWSRegion string
	// MongoURI is the connection string of the Mongo secret store
	MongoURI string
	// MongoDatabase is the database of the Mongo secret store
	MongoDatabase string
	// MongoCollection is the collection of the Mongo secret store
	MongoCollection string
	// RelayListenAddress is the bind address of the relay server
	RelayListenAddress string
	// UpstreamTimeout bounds the relay's upstream fetch
	UpstreamTimeout time.Duration
	// MaxBodyBytes caps buffered request and response bodies
	MaxBodyBytes int64
	// LogLevel is the logging level (debug, info, warn, error)
	LogLevel LogLevel
	// LogFile is the path to log file (empty for stdout only)
	LogFile string
	// Debug dumps raw messages on every exchange
	Debug bool
}

// NewConfig creates a new Config instance with default values
func NewConfig() *Config {
	return &Config{
		RelayURL:           "",
		Transport:          TransportHTTP,
		ListenAddress:      "127.0.0.1:8899",
		Engine:             EngineRaw,
		Timeout:            15 * time.Second,
		Mode:               EnvelopeModeAES,
		KeySource:          KeySourceEnv,
		KeyEnv:             "RELAYTUNNEL_KEY",
		KeyFile:            "",
		SecretName:         "lambda-aes-key",
		AWSRegion:          "us-east-1",
		MongoURI:           "",
		MongoDatabase:      "relaytunnel",
		MongoCollection:    "secrets",
		RelayListenAddress: ":8080",
		UpstreamTimeout:    30 * time.Second,
		MaxBodyBytes:       32 << 20,
		LogLevel:           LogLevelWarn,
		LogFile:            "",
		Debug:              false,
	}
}

// Plain reports whether envelopes are left unencrypted
func (c *Config) Plain() bool {
	return c.Mode == EnvelopeModePlain || c.KeySource == KeySourceNone
}

// TunnelConfig freezes the runtime values the tunnel and relay need.
// key is nil in plain mode.
func (c *Config) TunnelConfig(key []byte) TunnelConfig {
	return TunnelConfig{
		Key:             append([]byte(nil), key...),
		RelayURL:        c.RelayURL,
		Transport:       c.Transport,
		Timeout:         c.Timeout,
		UpstreamTimeout: c.UpstreamTimeout,
		MaxBodyBytes:    c.MaxBodyBytes,
		Debug:           c.Debug,
	}
}

// DefaultConfigFilePath returns the configuration file used when no path is
// given: ~/.haxorport/relay-tunnel.yaml, or /etc/haxorport/relay-tunnel.yaml
// when the home directory cannot be resolved.
func DefaultConfigFilePath() string {
	configDir := "/etc/haxorport"
	if homeDir, err := os.UserHomeDir(); err == nil && homeDir != "" {
		configDir = filepath.Join(homeDir, ".haxorport")
	}
	return filepath.Join(configDir, "relay-tunnel.yaml")
}
