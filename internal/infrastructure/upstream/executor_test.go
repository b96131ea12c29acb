package upstream

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/haxorport/relay-tunnel/internal/domain/model"
	"github.com/haxorport/relay-tunnel/internal/infrastructure/logger"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(timeout time.Duration) *Executor {
	return NewExecutor(timeout, 1<<20, logger.NewLogger(io.Discard, "error"))
}

func TestExecuteStripsHopByHop(t *testing.T) {
	var got http.Header
	var gotHost, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		gotHost = r.Host
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, "created")
	}))
	defer srv.Close()

	req := &model.RawRequest{
		Method:  "POST",
		Target:  srv.URL + "/things",
		Version: "HTTP/1.1",
		Headers: model.Headers{
			{Name: "Host", Value: "origin.test"},
			{Name: "Connection", Value: "keep-alive, X-Private"},
			{Name: "Keep-Alive", Value: "timeout=5"},
			{Name: "Proxy-Authorization", Value: "Basic abc"},
			{Name: "Proxy-Authenticate", Value: "Basic"},
			{Name: "TE", Value: "trailers"},
			{Name: "Trailers", Value: "X-T"},
			{Name: "Upgrade", Value: "websocket"},
			{Name: "X-Private", Value: "drop me"},
			{Name: "X-Keep", Value: "1"},
			{Name: "Content-Length", Value: "4"},
		},
		Body: []byte("data"),
	}

	resp, err := newTestExecutor(5*time.Second).Execute(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 201, resp.StatusCode)
	require.Equal(t, "Created", resp.Reason)
	require.Equal(t, []byte("created"), resp.Body)
	require.Equal(t, "yes", resp.Headers.Get("X-Upstream"))

	for _, h := range []string{"Connection", "Keep-Alive", "Proxy-Authorization", "Proxy-Authenticate", "Te", "Trailers", "Upgrade", "X-Private"} {
		require.Empty(t, got.Values(h), "header %s forwarded", h)
	}
	require.Equal(t, "1", got.Get("X-Keep"))
	require.Equal(t, "origin.test", gotHost)
	require.Equal(t, "data", gotBody)
}

func TestExecuteDoesNotFollowRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/final" {
			io.WriteString(w, "followed")
			return
		}
		http.Redirect(w, r, "/final", http.StatusFound)
	}))
	defer srv.Close()

	resp, err := newTestExecutor(5*time.Second).Execute(context.Background(), &model.RawRequest{
		Method: "GET", Target: srv.URL + "/start", Version: "HTTP/1.1",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "/final", resp.Headers.Get("Location"))
}

func TestExecuteOriginFormUsesHost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, r.URL.Path+"?"+r.URL.RawQuery)
	}))
	defer srv.Close()

	host := strings.TrimPrefix(srv.URL, "http://")
	resp, err := newTestExecutor(5*time.Second).Execute(context.Background(), &model.RawRequest{
		Method:  "GET",
		Target:  "/status?x=1",
		Version: "HTTP/1.1",
		Headers: model.Headers{{Name: "Host", Value: host}},
	})
	require.NoError(t, err)
	require.Equal(t, "/status?x=1", string(resp.Body))
}

func TestExecuteTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := newTestExecutor(50*time.Millisecond).Execute(context.Background(), &model.RawRequest{
		Method: "GET", Target: srv.URL, Version: "HTTP/1.1",
	})
	require.ErrorIs(t, err, model.ErrUpstreamTimeout)
}

func TestExecuteConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := newTestExecutor(time.Second).Execute(context.Background(), &model.RawRequest{
		Method: "GET", Target: addr, Version: "HTTP/1.1",
	})
	require.ErrorIs(t, err, model.ErrUpstream)
}

func TestTargetURL(t *testing.T) {
	u, err := TargetURL(&model.RawRequest{Target: "HTTPS://example.com/x"})
	require.NoError(t, err)
	require.Equal(t, "HTTPS://example.com/x", u)

	u, err = TargetURL(&model.RawRequest{Target: "/p", Headers: model.Headers{{Name: "host", Value: "h.test"}, {Name: "X-Forwarded-Proto", Value: "https"}}})
	require.NoError(t, err)
	require.Equal(t, "https://h.test/p", u)

	u, err = TargetURL(&model.RawRequest{Target: "/p", Headers: model.Headers{{Name: "Host", Value: "h.test"}}})
	require.NoError(t, err)
	require.Equal(t, "http://h.test/p", u)

	_, err = TargetURL(&model.RawRequest{Target: "/p"})
	require.ErrorIs(t, err, model.ErrConfig)
	require.Contains(t, err.Error(), "missing Host")
}

func TestStripHopByHop(t *testing.T) {
	in := model.Headers{
		{Name: "Host", Value: "a"},
		{Name: "connection", Value: "close"},
		{Name: "transfer-encoding", Value: "chunked"},
		{Name: "Accept", Value: "*/*"},
	}
	out := StripHopByHop(in)
	require.Equal(t, model.Headers{{Name: "Host", Value: "a"}, {Name: "Accept", Value: "*/*"}}, out)
	require.Len(t, in, 4)
}
