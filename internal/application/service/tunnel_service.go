package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/haxorport/relay-tunnel/internal/domain/codec"
	"github.com/haxorport/relay-tunnel/internal/domain/model"
	"github.com/haxorport/relay-tunnel/internal/domain/port"
)

// TunnelService is the tunnel client. It is driven by an acceptance loop
// through port.RequestInterceptor and never opens an upstream connection:
// the relay round trip is its only network call.
type TunnelService struct {
	config model.TunnelConfig
	sealer port.Sealer
	relay  port.RelayTransport
	logger port.Logger
}

// NewTunnelService creates a new TunnelService instance
func NewTunnelService(config model.TunnelConfig, sealer port.Sealer, relay port.RelayTransport, logger port.Logger) *TunnelService {
	return &TunnelService{
		config: config,
		sealer: sealer,
		relay:  relay,
		logger: logger,
	}
}

// SuppressUpstream always reports true; the relay performs every fetch
func (s *TunnelService) SuppressUpstream(req *model.RawRequest) bool {
	return true
}

// OnRequestCaptured tunnels req through the relay and returns the raw bytes
// to replay. Failures are rendered as a synthesized error response.
func (s *TunnelService) OnRequestCaptured(ctx context.Context, req *model.RawRequest) []byte {
	ex := model.NewExchange(uuid.NewString())
	s.logger.Info("[%s] Intercepted %s %s", ex.ID, req.Method, req.Target)

	out, err := s.exchange(ctx, ex, req)
	if err != nil {
		ex.Fail(err)
		out = ErrorResponse(err)
		s.logger.Error("[%s] %s %s failed after %s: %v", ex.ID, req.Method, req.Target, ex.Elapsed(), err)
	}

	s.transition(ex, model.StateReplay)
	if s.config.Debug {
		s.logger.Debug("[%s] Replaying response (%d bytes):\n%s", ex.ID, len(out), out)
	}
	s.transition(ex, model.StateClose)
	return out
}

// OnCaptureError renders a client request that could not be read
func (s *TunnelService) OnCaptureError(err error) []byte {
	s.logger.Warn("Rejected client request: %v", err)
	return ErrorResponse(err)
}

func (s *TunnelService) exchange(ctx context.Context, ex *model.Exchange, req *model.RawRequest) ([]byte, error) {
	if strings.EqualFold(req.Method, http.MethodConnect) {
		return nil, errConnectUnsupported
	}

	s.transition(ex, model.StateSerialize)
	raw := codec.SerializeRequest(req)
	if s.config.Debug {
		s.logger.Debug("[%s] Serialized raw HTTP request (%d bytes):\n%s", ex.ID, len(raw), raw)
	}
	sealed, err := s.sealer.Seal(raw)
	if err != nil {
		return nil, fmt.Errorf("sealing request: %w", err)
	}

	s.transition(ex, model.StateTransportSend)
	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}
	s.transition(ex, model.StateAwaitRelayResponse)
	reply, err := s.relay.RoundTrip(ctx, sealed)
	if err != nil {
		return nil, err
	}

	s.transition(ex, model.StateTransportReceive)
	plain, err := s.sealer.Open(reply)
	if err != nil {
		return nil, err
	}

	s.transition(ex, model.StateDeserialize)
	resp, err := codec.ParseResponse(plain)
	if err != nil {
		return nil, err
	}
	s.logger.Info("[%s] %s %s -> %d in %s", ex.ID, req.Method, req.Target, resp.StatusCode, ex.Elapsed())
	return plain, nil
}

func (s *TunnelService) transition(ex *model.Exchange, state model.ExchangeState) {
	s.logger.Debug("[%s] %s -> %s", ex.ID, ex.State, state)
	ex.SetState(state)
}

var errConnectUnsupported = errors.New("CONNECT tunneling is not supported; send absolute-form http:// or https:// requests")

// ErrorResponse synthesizes the plaintext response replayed for err
func ErrorResponse(err error) []byte {
	status := model.StatusCode(err)
	if errors.Is(err, errConnectUnsupported) {
		status = http.StatusNotImplemented
	}
	headers := model.Headers{
		{Name: "Content-Type", Value: "text/plain; charset=utf-8"},
		{Name: "Connection", Value: "close"},
	}
	body := []byte(describe(status, err) + "\n")
	return codec.SerializeResponse(status, http.StatusText(status), headers, body)
}

func describe(status int, err error) string {
	switch {
	case errors.Is(err, model.ErrTransport) && status == http.StatusBadGateway:
		return "Bad gateway: " + err.Error()
	case errors.Is(err, model.ErrDecrypt):
		return "Invalid response from relay: " + err.Error()
	case errors.Is(err, model.ErrParse):
		return "Malformed HTTP message: " + err.Error()
	case status == http.StatusBadGateway:
		return "Bad gateway: " + err.Error()
	default:
		return err.Error()
	}
}

var _ port.RequestInterceptor = (*TunnelService)(nil)
