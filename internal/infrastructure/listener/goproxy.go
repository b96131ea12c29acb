package listener

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/elazarl/goproxy"
	"github.com/haxorport/relay-tunnel/internal/domain/model"
	"github.com/haxorport/relay-tunnel/internal/domain/port"
)

// GoproxyListener accepts clients with elazarl/goproxy. net/http parses the
// requests, so header order is canonicalized before the interceptor sees it.
type GoproxyListener struct {
	address     string
	interceptor port.RequestInterceptor
	maxBody     int64
	logger      port.Logger

	proxy    *goproxy.ProxyHttpServer
	server   *http.Server
	listener net.Listener
}

// proxyLogger routes goproxy's verbose output into the debug log
type proxyLogger struct {
	logger port.Logger
}

func (l proxyLogger) Printf(format string, v ...interface{}) {
	l.logger.Debug("goproxy: "+format, v...)
}

// NewGoproxyListener creates a new GoproxyListener instance
func NewGoproxyListener(address string, interceptor port.RequestInterceptor, maxBody int64, logger port.Logger, verbose bool) *GoproxyListener {
	l := &GoproxyListener{
		address:     address,
		interceptor: interceptor,
		maxBody:     maxBody,
		logger:      logger,
	}

	proxy := goproxy.NewProxyHttpServer()
	proxy.Verbose = verbose
	proxy.Logger = proxyLogger{logger: logger}
	// origin-form requests are tunneled too, addressed by their Host header
	proxy.NonproxyHandler = http.HandlerFunc(l.serveDirect)

	proxy.OnRequest().HandleConnectFunc(func(host string, ctx *goproxy.ProxyCtx) (*goproxy.ConnectAction, string) {
		ctx.Resp = l.intercept(ctx.Req)
		return goproxy.RejectConnect, host
	})
	proxy.OnRequest().DoFunc(func(r *http.Request, ctx *goproxy.ProxyCtx) (*http.Request, *http.Response) {
		return r, l.intercept(r)
	})

	l.proxy = proxy
	l.server = &http.Server{
		Handler:           proxy,
		ReadHeaderTimeout: headReadTimeout,
	}
	return l
}

// Listen binds the local address
func (l *GoproxyListener) Listen() error {
	ln, err := net.Listen("tcp", l.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", l.address, err)
	}
	l.listener = ln
	l.logger.Info("Tunnel client (goproxy engine) listening on %s", ln.Addr())
	return nil
}

// Addr returns the bound address
func (l *GoproxyListener) Addr() string {
	if l.listener == nil {
		return l.address
	}
	return l.listener.Addr().String()
}

// Serve accepts clients until ctx is done
func (l *GoproxyListener) Serve(ctx context.Context) error {
	if l.listener == nil {
		if err := l.Listen(); err != nil {
			return err
		}
	}
	l.server.BaseContext = func(net.Listener) context.Context { return ctx }

	errCh := make(chan error, 1)
	go func() {
		errCh <- l.server.Serve(l.listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		l.server.Shutdown(shutdownCtx)
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Close stops accepting clients
func (l *GoproxyListener) Close() error {
	return l.server.Close()
}

func (l *GoproxyListener) serveDirect(w http.ResponseWriter, r *http.Request) {
	resp := l.intercept(r)
	defer resp.Body.Close()
	for name, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

// intercept hands r to the interceptor and turns the replayed bytes back
// into a response goproxy can write. A non-nil response skips goproxy's own
// upstream round trip.
func (l *GoproxyListener) intercept(r *http.Request) *http.Response {
	raw, err := fromHTTPRequest(r, l.maxBody)
	var out []byte
	switch {
	case err != nil:
		out = l.interceptor.OnCaptureError(err)
	case !l.interceptor.SuppressUpstream(raw):
		l.logger.Warn("Interceptor declined %s %s", raw.Method, raw.Target)
		out = l.interceptor.OnCaptureError(model.NewError(model.ErrConfig, "request declined by interceptor", nil))
	default:
		out = l.interceptor.OnRequestCaptured(r.Context(), raw)
	}

	resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(out)), r)
	if err != nil {
		l.logger.Error("Replayed response for %s %s is unreadable: %v", r.Method, r.URL, err)
		return goproxy.NewResponse(r, goproxy.ContentTypeText, http.StatusBadGateway, "Bad gateway: unreadable response\n")
	}
	return resp
}

// fromHTTPRequest rebuilds the raw request from what net/http parsed. Host
// comes first, the remaining headers follow in sorted order.
func fromHTTPRequest(r *http.Request, maxBody int64) (*model.RawRequest, error) {
	target := r.RequestURI
	if target == "" {
		target = r.URL.String()
	}
	if r.Method == http.MethodConnect {
		target = r.Host
	}

	req := &model.RawRequest{
		Method:  r.Method,
		Target:  target,
		Version: r.Proto,
		Body:    []byte{},
	}
	if req.Version == "" {
		req.Version = "HTTP/1.1"
	}
	if r.Host != "" {
		req.Headers.Add("Host", r.Host)
	}

	names := make([]string, 0, len(r.Header))
	for name := range r.Header {
		if http.CanonicalHeaderKey(name) == "Host" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, v := range r.Header[name] {
			req.Headers.Add(name, v)
		}
	}

	if r.Body != nil && r.Body != http.NoBody {
		data, err := io.ReadAll(io.LimitReader(r.Body, maxBody+1))
		if err != nil {
			return nil, model.NewError(model.ErrParse, "reading request body", err)
		}
		if int64(len(data)) > maxBody {
			return nil, model.NewError(model.ErrParse, fmt.Sprintf("body exceeds %d bytes", maxBody), nil)
		}
		req.Body = data
	}
	if len(req.Body) > 0 {
		req.Headers.Set("Content-Length", strconv.Itoa(len(req.Body)))
	}
	return req, nil
}

var _ Engine = (*GoproxyListener)(nil)
