package listener

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/haxorport/relay-tunnel/internal/domain/codec"
	"github.com/haxorport/relay-tunnel/internal/domain/model"
	"github.com/haxorport/relay-tunnel/internal/domain/port"
)

const (
	headReadTimeout = 30 * time.Second
	replayTimeout   = 30 * time.Second
)

// Engine is a connection-acceptance loop feeding a RequestInterceptor
type Engine interface {
	// Listen binds the local address
	Listen() error

	// Addr returns the bound address
	Addr() string

	// Serve accepts clients until ctx is done
	Serve(ctx context.Context) error

	// Close stops accepting clients
	Close() error
}

// RawListener reads client requests straight off the socket so the request
// line and headers reach the interceptor byte for byte. It serves one
// exchange per connection.
type RawListener struct {
	address     string
	interceptor port.RequestInterceptor
	maxBody     int64
	logger      port.Logger

	listener net.Listener
	wg       sync.WaitGroup
}

// NewRawListener creates a new RawListener instance
func NewRawListener(address string, interceptor port.RequestInterceptor, maxBody int64, logger port.Logger) *RawListener {
	return &RawListener{
		address:     address,
		interceptor: interceptor,
		maxBody:     maxBody,
		logger:      logger,
	}
}

// Listen binds the local address
func (l *RawListener) Listen() error {
	ln, err := net.Listen("tcp", l.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", l.address, err)
	}
	l.listener = ln
	l.logger.Info("Tunnel client listening on %s", ln.Addr())
	return nil
}

// Addr returns the bound address
func (l *RawListener) Addr() string {
	if l.listener == nil {
		return l.address
	}
	return l.listener.Addr().String()
}

// Serve accepts clients until ctx is done, then waits for in-flight exchanges
func (l *RawListener) Serve(ctx context.Context) error {
	if l.listener == nil {
		if err := l.Listen(); err != nil {
			return err
		}
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			l.listener.Close()
		case <-stop:
		}
	}()

	for {
		conn, err := l.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				l.wg.Wait()
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				l.logger.Warn("Accept timed out: %v", err)
				time.Sleep(100 * time.Millisecond)
				continue
			}
			return fmt.Errorf("accept failed: %w", err)
		}

		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			l.handleConnection(ctx, conn)
		}()
	}
}

// Close stops accepting clients
func (l *RawListener) Close() error {
	if l.listener == nil {
		return nil
	}
	return l.listener.Close()
}

func (l *RawListener) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()

	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Panic while serving %s: %v", remote, r)
			l.replay(conn, internalError())
		}
	}()

	br := bufio.NewReader(conn)
	conn.SetReadDeadline(time.Now().Add(headReadTimeout))
	req, err := codec.ReadRequest(br, l.maxBody)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return
		}
		l.replay(conn, l.interceptor.OnCaptureError(err))
		discardUnread(conn, br)
		return
	}
	conn.SetReadDeadline(time.Time{})
	l.logger.Debug("Captured %s %s from %s", req.Method, req.Target, remote)

	if !l.interceptor.SuppressUpstream(req) {
		// nothing else would answer the client
		l.logger.Warn("Interceptor declined %s %s; closing connection", req.Method, req.Target)
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go watchDisconnect(br, cancel)

	l.replay(conn, l.interceptor.OnRequestCaptured(ctx, req))
}

func (l *RawListener) replay(conn net.Conn, data []byte) {
	conn.SetWriteDeadline(time.Now().Add(replayTimeout))
	if _, err := conn.Write(data); err != nil {
		l.logger.Debug("Failed to replay response to %s: %v", conn.RemoteAddr(), err)
		return
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.CloseWrite()
	}
}

// discardUnread drains what the client already sent so closing the socket
// does not reset the connection before the reply is read
func discardUnread(conn net.Conn, br *bufio.Reader) {
	conn.SetReadDeadline(time.Now().Add(time.Second))
	io.Copy(io.Discard, io.LimitReader(br, 1<<20))
}

// watchDisconnect cancels the exchange when the client connection breaks.
// A clean EOF may be a half-close, so the reply is still attempted. Extra
// bytes are ignored since each connection carries one exchange.
func watchDisconnect(br *bufio.Reader, cancel context.CancelFunc) {
	for {
		if _, err := br.ReadByte(); err != nil {
			if !errors.Is(err, io.EOF) {
				cancel()
			}
			return
		}
	}
}

func internalError() []byte {
	headers := model.Headers{
		{Name: "Content-Type", Value: "text/plain; charset=utf-8"},
		{Name: "Connection", Value: "close"},
	}
	return codec.SerializeResponse(http.StatusInternalServerError, "", headers, []byte("internal error\n"))
}

var _ Engine = (*RawListener)(nil)
