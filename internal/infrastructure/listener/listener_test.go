package listener

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/haxorport/relay-tunnel/internal/application/service"
	"github.com/haxorport/relay-tunnel/internal/domain/model"
	"github.com/haxorport/relay-tunnel/internal/infrastructure/crypto"
	"github.com/haxorport/relay-tunnel/internal/infrastructure/logger"
	"github.com/haxorport/relay-tunnel/internal/infrastructure/transport"
	"github.com/haxorport/relay-tunnel/internal/infrastructure/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const okResponse = "HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nok"

// stubInterceptor replays a fixed response and records what it captured
type stubInterceptor struct {
	mu       sync.Mutex
	reply    []byte
	captured []*model.RawRequest
	errs     []error
}

func (s *stubInterceptor) OnRequestCaptured(ctx context.Context, req *model.RawRequest) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.captured = append(s.captured, req)
	return s.reply
}

func (s *stubInterceptor) OnCaptureError(err error) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
	return service.ErrorResponse(err)
}

func (s *stubInterceptor) SuppressUpstream(req *model.RawRequest) bool {
	return true
}

func (s *stubInterceptor) requests() []*model.RawRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.RawRequest(nil), s.captured...)
}

func testLogger() *logger.Logger {
	return logger.NewLogger(io.Discard, "error")
}

func startEngine(t *testing.T, engine Engine) string {
	t.Helper()
	require.NoError(t, engine.Listen())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- engine.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("engine did not stop")
		}
	})
	return engine.Addr()
}

func rawExchange(t *testing.T, addr, request string) string {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(10 * time.Second))

	_, err = io.WriteString(conn, request)
	require.NoError(t, err)
	data, err := io.ReadAll(conn)
	require.NoError(t, err)
	return string(data)
}

func TestRawListenerReplaysExactBytes(t *testing.T) {
	stub := &stubInterceptor{reply: []byte(okResponse)}
	addr := startEngine(t, NewRawListener("127.0.0.1:0", stub, 1<<20, testLogger()))

	got := rawExchange(t, addr, "GET http://example.com/status HTTP/1.1\r\nHost: example.com\r\nX-B: 2\r\nX-A: 1\r\n\r\n")
	require.Equal(t, okResponse, got)

	reqs := stub.requests()
	require.Len(t, reqs, 1)
	require.Equal(t, "GET", reqs[0].Method)
	require.Equal(t, "http://example.com/status", reqs[0].Target)
	require.Equal(t, model.Headers{
		{Name: "Host", Value: "example.com"},
		{Name: "X-B", Value: "2"},
		{Name: "X-A", Value: "1"},
	}, reqs[0].Headers)
}

func TestRawListenerMalformedRequest(t *testing.T) {
	stub := &stubInterceptor{reply: []byte(okResponse)}
	addr := startEngine(t, NewRawListener("127.0.0.1:0", stub, 1<<20, testLogger()))

	got := rawExchange(t, addr, "GARBAGE\r\n\r\n")
	require.True(t, strings.HasPrefix(got, "HTTP/1.1 502 Bad Gateway\r\n"), got)
	require.Empty(t, stub.requests())
}

func TestRawListenerBodyTooLarge(t *testing.T) {
	stub := &stubInterceptor{reply: []byte(okResponse)}
	addr := startEngine(t, NewRawListener("127.0.0.1:0", stub, 4, testLogger()))

	got := rawExchange(t, addr, "POST http://example.com/ HTTP/1.1\r\nHost: example.com\r\nContent-Length: 10\r\n\r\n")
	require.True(t, strings.HasPrefix(got, "HTTP/1.1 502 "), got)
}

func TestRawListenerIgnoresEmptyConnection(t *testing.T) {
	stub := &stubInterceptor{reply: []byte(okResponse)}
	addr := startEngine(t, NewRawListener("127.0.0.1:0", stub, 1<<20, testLogger()))

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	conn.Close()

	require.Equal(t, okResponse, rawExchange(t, addr, "GET http://example.com/ HTTP/1.1\r\nHost: example.com\r\n\r\n"))
}

func TestRawListenerUnreachableRelay(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	relayURL := "http://" + ln.Addr().String() + "/"
	ln.Close()

	key := []byte("0123456789abcdef")
	sealer, err := crypto.NewSealer(key)
	require.NoError(t, err)
	cfg := model.TunnelConfig{Key: key, RelayURL: relayURL, Transport: model.TransportHTTP, Timeout: 5 * time.Second, MaxBodyBytes: 1 << 20}
	tunnel := service.NewTunnelService(cfg, sealer, transport.NewHTTPClient(relayURL, 1<<20, testLogger()), testLogger())

	addr := startEngine(t, NewRawListener("127.0.0.1:0", tunnel, 1<<20, testLogger()))
	got := rawExchange(t, addr, "GET http://example.com/status HTTP/1.1\r\nHost: example.com\r\n\r\n")
	require.True(t, strings.HasPrefix(got, "HTTP/1.1 502 Bad Gateway\r\n"), got)
	require.Contains(t, got, "Connection: close\r\n")
}

func TestRawListenerConnectRejected(t *testing.T) {
	key := []byte("0123456789abcdef")
	sealer, err := crypto.NewSealer(key)
	require.NoError(t, err)
	cfg := model.TunnelConfig{Key: key, RelayURL: "http://127.0.0.1:1/", Transport: model.TransportHTTP, Timeout: time.Second, MaxBodyBytes: 1 << 20}
	tunnel := service.NewTunnelService(cfg, sealer, transport.NewHTTPClient(cfg.RelayURL, 1<<20, testLogger()), testLogger())

	addr := startEngine(t, NewRawListener("127.0.0.1:0", tunnel, 1<<20, testLogger()))
	got := rawExchange(t, addr, "CONNECT example.com:443 HTTP/1.1\r\nHost: example.com:443\r\n\r\n")
	require.True(t, strings.HasPrefix(got, "HTTP/1.1 501 Not Implemented\r\n"), got)
}

// TestEndToEnd runs client -> raw listener -> tunnel -> relay -> origin
func TestEndToEnd(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/status", r.URL.Path)
		w.Header().Set("X-Origin", "1")
		io.WriteString(w, "ok")
	}))
	defer origin.Close()

	key := []byte("0123456789abcdef0123456789abcdef")
	sealer, err := crypto.NewSealer(key)
	require.NoError(t, err)

	relaySvc := service.NewRelayService(sealer, upstream.NewExecutor(5*time.Second, 1<<20, testLogger()), testLogger(), false)
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		status, out := relaySvc.HandleBody(r.Context(), body, false)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write(out)
	}))
	defer relay.Close()

	cfg := model.TunnelConfig{Key: key, RelayURL: relay.URL, Transport: model.TransportHTTP, Timeout: 5 * time.Second, MaxBodyBytes: 1 << 20}
	client, err := transport.CreateRelayTransport(cfg, testLogger())
	require.NoError(t, err)
	tunnel := service.NewTunnelService(cfg, sealer, client, testLogger())

	addr := startEngine(t, NewRawListener("127.0.0.1:0", tunnel, 1<<20, testLogger()))
	u, _ := url.Parse(origin.URL)
	got := rawExchange(t, addr, "GET "+origin.URL+"/status HTTP/1.1\r\nHost: "+u.Host+"\r\n\r\n")

	require.True(t, strings.HasPrefix(got, "HTTP/1.1 200 OK\r\n"), got)
	require.Contains(t, got, "X-Origin: 1\r\n")
	require.Contains(t, got, "Content-Length: 2\r\n")
	require.True(t, strings.HasSuffix(got, "\r\n\r\nok"), got)
}

func TestGoproxyListener(t *testing.T) {
	stub := &stubInterceptor{reply: []byte(okResponse)}
	addr := startEngine(t, NewGoproxyListener("127.0.0.1:0", stub, 1<<20, testLogger(), false))

	proxyURL, err := url.Parse("http://" + addr)
	require.NoError(t, err)
	client := &http.Client{
		Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
		Timeout:   10 * time.Second,
	}

	resp, err := client.Post("http://example.com/submit", "text/plain", strings.NewReader("hello"))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", string(body))

	reqs := stub.requests()
	require.Len(t, reqs, 1)
	require.Equal(t, "POST", reqs[0].Method)
	require.Equal(t, "http://example.com/submit", reqs[0].Target)
	require.Equal(t, "Host", reqs[0].Headers[0].Name)
	require.Equal(t, "example.com", reqs[0].Headers[0].Value)
	require.Equal(t, "5", reqs[0].Headers.Get("Content-Length"))
	require.Equal(t, []byte("hello"), reqs[0].Body)
}

func TestGoproxyListenerOriginForm(t *testing.T) {
	stub := &stubInterceptor{reply: []byte(okResponse)}
	addr := startEngine(t, NewGoproxyListener("127.0.0.1:0", stub, 1<<20, testLogger(), false))

	resp, err := http.Get("http://" + addr + "/direct")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", string(body))

	reqs := stub.requests()
	require.Len(t, reqs, 1)
	require.Equal(t, "/direct", reqs[0].Target)
	require.Equal(t, addr, reqs[0].Headers.Get("Host"))
}

func TestFromHTTPRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodPut, "http://example.com/a?b=1", strings.NewReader("payload"))
	r.Header.Set("Zeta", "z")
	r.Header.Set("Alpha", "a")

	raw, err := fromHTTPRequest(r, 1<<20)
	require.NoError(t, err)
	require.Equal(t, "PUT", raw.Method)
	require.Equal(t, "http://example.com/a?b=1", raw.Target)
	require.Equal(t, "HTTP/1.1", raw.Version)
	require.Equal(t, model.Headers{
		{Name: "Host", Value: "example.com"},
		{Name: "Alpha", Value: "a"},
		{Name: "Zeta", Value: "z"},
		{Name: "Content-Length", Value: "7"},
	}, raw.Headers)

	_, err = fromHTTPRequest(httptest.NewRequest(http.MethodPost, "http://example.com/", strings.NewReader("too long")), 3)
	require.ErrorIs(t, err, model.ErrParse)
}
