package transport

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/haxorport/relay-tunnel/internal/domain/model"
	"github.com/haxorport/relay-tunnel/internal/domain/port"
)

// wsReply is either a transport envelope or a relay error
type wsReply struct {
	Payload string `json:"payload"`
	Error   string `json:"error"`
	Kind    string `json:"kind"`
}

// WebSocketClient carries one envelope per exchange over its own websocket.
// Each exchange dials, writes a single text message, reads a single reply
// and closes.
type WebSocketClient struct {
	relayURL string
	dialer   *websocket.Dialer
	maxBody  int64
	logger   port.Logger
}

// NewWebSocketClient creates a new WebSocketClient for a ws:// or wss:// URL
func NewWebSocketClient(relayURL string, maxBody int64, logger port.Logger) *WebSocketClient {
	return &WebSocketClient{
		relayURL: relayURL,
		dialer: &websocket.Dialer{
			Proxy:            nil,
			HandshakeTimeout: 10 * time.Second,
			TLSClientConfig:  &tls.Config{MinVersion: tls.VersionTLS12},
		},
		maxBody: maxBody,
		logger:  logger,
	}
}

// RoundTrip sends payload and waits for the relay's reply
func (c *WebSocketClient) RoundTrip(ctx context.Context, payload string) (string, error) {
	data, err := model.NewEnvelope(payload)
	if err != nil {
		return "", model.NewError(model.ErrConfig, "", err)
	}

	c.logger.Debug("Connecting to relay: %s", c.relayURL)
	conn, _, err := c.dialer.DialContext(ctx, c.relayURL, nil)
	if err != nil {
		return "", model.NewError(model.ErrTransport, "failed to connect to relay", err)
	}
	defer conn.Close()

	// unblock reads and writes when ctx ends
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.UnderlyingConn().SetDeadline(time.Now())
		case <-stop:
		}
	}()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
		conn.SetWriteDeadline(deadline)
	}
	conn.SetReadLimit(c.maxBody*2 + 1024)

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return "", wsError(ctx, "failed to send envelope", err)
	}

	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", wsError(ctx, "failed to read relay reply", err)
	}
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

	var reply wsReply
	if err := json.Unmarshal(msg, &reply); err != nil {
		return "", model.NewError(model.ErrTransport, "invalid response from relay: unable to parse payload", err)
	}
	if reply.Error != "" {
		return "", model.NewError(model.ErrTransport, fmt.Sprintf("relay_error: %s", reply.Error), model.KindError(reply.Kind))
	}
	if reply.Payload == "" {
		return "", model.NewError(model.ErrTransport, "invalid response from relay: empty payload", nil)
	}
	return reply.Payload, nil
}

func wsError(ctx context.Context, msg string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = errors.Join(ctxErr, err)
		msg = "relay timed out"
	}
	return model.NewError(model.ErrTransport, msg, err)
}

var _ port.RelayTransport = (*WebSocketClient)(nil)
