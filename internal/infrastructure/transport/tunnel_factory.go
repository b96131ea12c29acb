package transport

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/haxorport/relay-tunnel/internal/domain/model"
	"github.com/haxorport/relay-tunnel/internal/domain/port"
)

// CreateRelayTransport creates the RelayTransport for the configured transport mode.
// The relay URL scheme must match the mode.
func CreateRelayTransport(config model.TunnelConfig, logger port.Logger) (port.RelayTransport, error) {
	if config.RelayURL == "" {
		return nil, model.NewError(model.ErrConfig, "relay URL not configured", nil)
	}
	u, err := url.Parse(config.RelayURL)
	if err != nil || u.Host == "" {
		return nil, model.NewError(model.ErrConfig, fmt.Sprintf("invalid relay URL %q", config.RelayURL), err)
	}
	scheme := strings.ToLower(u.Scheme)

	switch config.Transport {
	case model.TransportHTTP, "":
		if scheme != "http" && scheme != "https" {
			return nil, model.NewError(model.ErrConfig, "http transport needs an http(s) relay URL", nil)
		}
		return NewHTTPClient(config.RelayURL, config.MaxBodyBytes, logger), nil
	case model.TransportWebSocket:
		switch scheme {
		case "ws", "wss":
		case "http":
			u.Scheme = "ws"
		case "https":
			u.Scheme = "wss"
		default:
			return nil, model.NewError(model.ErrConfig, "websocket transport needs a ws(s) relay URL", nil)
		}
		return NewWebSocketClient(u.String(), config.MaxBodyBytes, logger), nil
	default:
		return nil, model.NewError(model.ErrConfig, fmt.Sprintf("transport not supported: %s", config.Transport), nil)
	}
}
