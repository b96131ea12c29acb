// Package server exposes the relay entrypoint over HTTP and websocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/haxorport/relay-tunnel/internal/domain/port"
)

// RelayServer is the long-running relay host
type RelayServer struct {
	address  string
	engine   *gin.Engine
	server   *http.Server
	listener net.Listener
	logger   port.Logger
}

// NewRelayServer creates a new RelayServer instance
func NewRelayServer(address string, handler port.RelayHandler, maxBody int64, logger port.Logger, debug bool) *RelayServer {
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(logger))
	setupRoutes(engine, NewRelayController(handler, maxBody, logger))

	return &RelayServer{
		address: address,
		engine:  engine,
		server: &http.Server{
			Handler:           engine,
			ReadHeaderTimeout: 30 * time.Second,
		},
		logger: logger,
	}
}

func setupRoutes(router *gin.Engine, controller *RelayController) {
	router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	router.POST("/", controller.Relay)
	router.POST("/relay", controller.Relay)
	router.GET("/ws", controller.WebSocket)
}

// Handler returns the router, mainly for tests
func (s *RelayServer) Handler() http.Handler {
	return s.engine
}

// Listen binds the relay address
func (s *RelayServer) Listen() error {
	ln, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.address, err)
	}
	s.listener = ln
	s.logger.Info("Relay listening on %s", ln.Addr())
	return nil
}

// Addr returns the bound address
func (s *RelayServer) Addr() string {
	if s.listener == nil {
		return s.address
	}
	return s.listener.Addr().String()
}

// Serve handles relay requests until ctx is done
func (s *RelayServer) Serve(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	s.server.BaseContext = func(net.Listener) context.Context { return ctx }

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("Relay shutdown: %v", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func requestLogger(logger port.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("%s %s -> %d (%s) from %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start), c.ClientIP())
	}
}
