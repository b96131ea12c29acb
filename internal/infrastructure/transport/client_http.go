package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/haxorport/relay-tunnel/internal/domain/model"
	"github.com/haxorport/relay-tunnel/internal/domain/port"
)

// maxErrorSnippet bounds the non-JSON relay body quoted in an error
const maxErrorSnippet = 200

// HTTPClient posts one transport envelope per exchange to the relay URL
type HTTPClient struct {
	relayURL string
	client   *http.Client
	maxBody  int64
	logger   port.Logger
}

// NewHTTPClient creates a new HTTPClient. The relay is always dialed
// directly; HTTP(S)_PROXY may point at the tunnel itself.
func NewHTTPClient(relayURL string, maxBody int64, logger port.Logger) *HTTPClient {
	transport := &http.Transport{
		Proxy:               nil,
		DialContext:         (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConns:        8,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPClient{
		relayURL: relayURL,
		client:   &http.Client{Transport: transport},
		maxBody:  maxBody,
		logger:   logger,
	}
}

// RoundTrip posts payload to the relay and returns the payload of its reply.
// The deadline comes from ctx.
func (c *HTTPClient) RoundTrip(ctx context.Context, payload string) (string, error) {
	body, err := model.NewEnvelope(payload)
	if err != nil {
		return "", model.NewError(model.ErrConfig, "", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.relayURL, bytes.NewReader(body))
	if err != nil {
		return "", model.NewError(model.ErrConfig, "invalid relay URL", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "HaxorportRelayTunnel/1.0")

	c.logger.Debug("Posting %d byte envelope to relay %s", len(body), c.relayURL)
	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			return "", model.NewError(model.ErrTransport, "relay timed out", err)
		}
		return "", model.NewError(model.ErrTransport, "relay URL error", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody*2+1024))
	if err != nil {
		return "", model.NewError(model.ErrTransport, "reading relay response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", relayHTTPError(resp.Status, data)
	}

	out, err := model.ParseEnvelope(data)
	if err != nil {
		return "", model.NewError(model.ErrTransport, "invalid response from relay: unable to parse payload", err)
	}
	return out, nil
}

// relayHTTPError folds the relay's error body into the message. The kind
// reported by the relay becomes the cause, so a config failure still
// answers 500.
func relayHTTPError(status string, data []byte) error {
	msg := "relay HTTP error: " + status
	var reported error

	var body model.RelayErrorBody
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		msg = fmt.Sprintf("%s | relay_error: %s", msg, body.Error)
		reported = model.KindError(body.Kind)
	} else if snippet := strings.TrimSpace(string(data)); snippet != "" {
		if len(snippet) > maxErrorSnippet {
			snippet = snippet[:maxErrorSnippet]
		}
		msg = fmt.Sprintf("%s | relay_error: %s", msg, snippet)
	}
	return model.NewError(model.ErrTransport, msg, reported)
}

var _ port.RelayTransport = (*HTTPClient)(nil)
