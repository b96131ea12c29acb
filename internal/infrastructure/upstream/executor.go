// Package upstream performs the real HTTP fetch on the relay side.
package upstream

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/haxorport/relay-tunnel/internal/domain/model"
	"github.com/haxorport/relay-tunnel/internal/domain/port"
)

// hopByHopHeaders describe the client-relay hop and are never forwarded
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"TE",
	"Trailer",
	"Trailers",
	"Transfer-Encoding",
	"Upgrade",
}

// Executor issues captured requests upstream with net/http
type Executor struct {
	client  *http.Client
	timeout time.Duration
	maxBody int64
	logger  port.Logger
}

// NewExecutor creates an Executor. Redirects are returned as-is and
// compressed bodies are left untouched.
func NewExecutor(timeout time.Duration, maxBody int64, logger port.Logger) *Executor {
	transport := &http.Transport{
		Proxy:               nil,
		DialContext:         (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
		TLSHandshakeTimeout: 10 * time.Second,
		DisableCompression:  true,
		ForceAttemptHTTP2:   false,
		MaxIdleConns:        32,
		IdleConnTimeout:     90 * time.Second,
	}
	return NewExecutorWithClient(&http.Client{Transport: transport}, timeout, maxBody, logger)
}

// NewExecutorWithClient creates an Executor around an existing client.
// The client's redirect policy is replaced.
func NewExecutorWithClient(client *http.Client, timeout time.Duration, maxBody int64, logger port.Logger) *Executor {
	c := *client
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	c.Timeout = 0
	return &Executor{client: &c, timeout: timeout, maxBody: maxBody, logger: logger}
}

// Execute sends req upstream and buffers the whole response
func (e *Executor) Execute(ctx context.Context, req *model.RawRequest) (*model.RawResponse, error) {
	targetURL, err := TargetURL(req)
	if err != nil {
		return nil, err
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, targetURL, body)
	if err != nil {
		return nil, model.NewError(model.ErrConfig, "invalid request target "+strconv.Quote(targetURL), err)
	}

	headers := StripHopByHop(req.Headers)
	for _, f := range headers {
		switch {
		case strings.EqualFold(f.Name, "Host"):
			httpReq.Host = f.Value
		case strings.EqualFold(f.Name, "Content-Length"):
			// derived from the body
		default:
			httpReq.Header.Add(f.Name, f.Value)
		}
	}
	if _, ok := httpReq.Header["User-Agent"]; !ok {
		// keep net/http from adding its own
		httpReq.Header["User-Agent"] = []string{""}
	}

	e.logger.Debug("Fetching upstream: %s %s", req.Method, targetURL)
	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, classify(ctx, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, e.maxBody+1))
	if err != nil {
		return nil, classify(ctx, err)
	}
	if int64(len(data)) > e.maxBody {
		return nil, model.NewError(model.ErrUpstream, fmt.Sprintf("response body exceeds %d bytes", e.maxBody), nil)
	}

	e.logger.Debug("Upstream answered %s with %d (%d bytes)", targetURL, resp.StatusCode, len(data))
	return &model.RawResponse{
		StatusCode: resp.StatusCode,
		Reason:     reasonPhrase(resp),
		Headers:    flattenHeaders(resp.Header),
		Body:       data,
	}, nil
}

// TargetURL resolves the absolute URL of req. Origin-form targets need a
// Host header; the scheme comes from X-Forwarded-Proto and defaults to http.
func TargetURL(req *model.RawRequest) (string, error) {
	if req.IsAbsolute() {
		return req.Target, nil
	}
	host := req.Headers.Get("Host")
	if host == "" {
		return "", model.NewError(model.ErrConfig, "missing Host", nil)
	}
	scheme := strings.ToLower(strings.TrimSpace(req.Headers.Get("X-Forwarded-Proto")))
	if scheme != "https" {
		scheme = "http"
	}
	path := req.Target
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return scheme + "://" + host + path, nil
}

// StripHopByHop returns a copy of headers without hop-by-hop fields and
// without any field listed in Connection
func StripHopByHop(headers model.Headers) model.Headers {
	out := headers.Clone()
	for _, v := range headers.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				out.Del(name)
			}
		}
	}
	for _, name := range hopByHopHeaders {
		out.Del(name)
	}
	return out
}

func classify(ctx context.Context, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return model.NewError(model.ErrUpstreamTimeout, "", err)
	}
	return model.NewError(model.ErrUpstream, "", err)
}

func reasonPhrase(resp *http.Response) string {
	return strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
}

// flattenHeaders orders header names so the serialized response is stable
func flattenHeaders(h http.Header) model.Headers {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)

	var out model.Headers
	for _, name := range names {
		for _, v := range h[name] {
			out.Add(name, v)
		}
	}
	return out
}

var _ port.Executor = (*Executor)(nil)
