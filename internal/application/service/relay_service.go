package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/haxorport/relay-tunnel/internal/domain/codec"
	"github.com/haxorport/relay-tunnel/internal/domain/model"
	"github.com/haxorport/relay-tunnel/internal/domain/port"
)

// errBadEnvelope marks request bodies that carry no usable envelope
var errBadEnvelope = errors.New("missing or malformed payload")

// RelayService is the relay entrypoint: it opens the envelope, re-issues the
// request upstream and seals the raw response
type RelayService struct {
	sealer   port.Sealer
	executor port.Executor
	logger   port.Logger
	debug    bool
}

// NewRelayService creates a new RelayService instance
func NewRelayService(sealer port.Sealer, executor port.Executor, logger port.Logger, debug bool) *RelayService {
	return &RelayService{
		sealer:   sealer,
		executor: executor,
		logger:   logger,
		debug:    debug,
	}
}

// HandlePayload runs one tunneled exchange and returns the sealed raw response
func (s *RelayService) HandlePayload(ctx context.Context, payload string) (string, error) {
	raw, err := s.sealer.Open(payload)
	if err != nil {
		return "", err
	}

	req, err := codec.ParseRequest(raw)
	if err != nil {
		return "", err
	}
	if s.debug {
		s.logger.Debug("Relay received raw HTTP request (%d bytes):\n%s", len(raw), raw)
	}
	s.logger.Info("Relaying %s %s", req.Method, req.Target)

	resp, err := s.executor.Execute(ctx, req)
	if err != nil {
		s.logger.Warn("Upstream fetch for %s %s failed: %v", req.Method, req.Target, err)
		return "", err
	}

	out := codec.SerializeRawResponse(resp)
	if s.debug {
		s.logger.Debug("Relay returning raw HTTP response (%d bytes):\n%s", len(out), out)
	}
	return s.sealer.Seal(out)
}

// HandleBody serves one entrypoint invocation. body is the request body as
// delivered by the gateway; isBase64 is set when the gateway says so. It
// returns the status code and the JSON body to answer with.
func (s *RelayService) HandleBody(ctx context.Context, body []byte, isBase64 bool) (int, []byte) {
	payload, err := DecodeEnvelopeBody(body, isBase64)
	if err != nil {
		s.logger.Warn("Rejected relay invocation: %v", err)
		return errorResponse(http.StatusBadRequest, err)
	}

	sealed, err := s.HandlePayload(ctx, payload)
	if err != nil {
		return errorResponse(relayStatus(err), err)
	}

	data, err := model.NewEnvelope(sealed)
	if err != nil {
		return errorResponse(http.StatusInternalServerError, err)
	}
	return http.StatusOK, data
}

// DecodeEnvelopeBody extracts the payload from an entrypoint body. The body
// may be the envelope JSON itself, a JSON string holding it, or either of
// those base64 encoded by the gateway.
func DecodeEnvelopeBody(body []byte, isBase64 bool) (string, error) {
	body = bytes.TrimSpace(body)
	if isBase64 {
		decoded, err := base64.StdEncoding.DecodeString(string(body))
		if err != nil {
			return "", fmt.Errorf("%w: body is not valid base64", errBadEnvelope)
		}
		body = bytes.TrimSpace(decoded)
	}
	if len(body) == 0 {
		return "", fmt.Errorf("%w: empty body", errBadEnvelope)
	}

	if payload, ok := envelopePayload(body); ok {
		return payload, nil
	}
	if !isBase64 {
		if decoded, err := base64.StdEncoding.DecodeString(string(body)); err == nil {
			if payload, ok := envelopePayload(bytes.TrimSpace(decoded)); ok {
				return payload, nil
			}
		}
	}
	return "", errBadEnvelope
}

func envelopePayload(body []byte) (string, bool) {
	if len(body) > 0 && body[0] == '"' {
		var inner string
		if err := json.Unmarshal(body, &inner); err != nil {
			return "", false
		}
		body = []byte(inner)
	}
	payload, err := model.ParseEnvelope(body)
	if err != nil {
		return "", false
	}
	return payload, true
}

// relayStatus maps an exchange error to the entrypoint status. Bad payloads
// are the caller's fault; everything else is an internal failure.
func relayStatus(err error) int {
	if errors.Is(err, model.ErrDecrypt) || errors.Is(err, model.ErrParse) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func errorResponse(status int, err error) (int, []byte) {
	body := model.NewRelayError(err)
	if errors.Is(err, errBadEnvelope) {
		body.Kind = model.KindParse
	}
	data, mErr := json.Marshal(body)
	if mErr != nil {
		data = []byte(`{"error":"internal error"}`)
	}
	return status, data
}

var _ port.RelayHandler = (*RelayService)(nil)
