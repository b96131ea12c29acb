package model

import "time"

// TunnelConfig holds the values shared by every exchange.
// It is built once at startup and passed by value; nothing mutates it afterwards.
type TunnelConfig struct {
	// Key is the shared symmetric key; nil selects plain envelopes
	Key []byte
	// RelayURL is the relay entrypoint
	RelayURL string
	// Transport is the transport used to reach the relay
	Transport TransportMode
	// Timeout bounds one relay round trip
	Timeout time.Duration
	// UpstreamTimeout bounds the relay's own fetch
	UpstreamTimeout time.Duration
	// MaxBodyBytes caps buffered bodies
	MaxBodyBytes int64
	// Debug dumps raw messages
	Debug bool
}

// Validate checks the fields the tunnel client cannot run without
func (c TunnelConfig) Validate() error {
	if c.RelayURL == "" {
		return NewError(ErrConfig, "relay URL not configured", nil)
	}
	if c.Timeout <= 0 {
		return NewError(ErrConfig, "timeout must be positive", nil)
	}
	return nil
}
