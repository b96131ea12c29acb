package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/haxorport/relay-tunnel/internal/domain/model"
	"github.com/haxorport/relay-tunnel/internal/domain/port"
)

// RelayController adapts HTTP and websocket invocations to a RelayHandler
type RelayController struct {
	handler  port.RelayHandler
	maxBody  int64
	upgrader websocket.Upgrader
	logger   port.Logger
}

// NewRelayController creates a new RelayController instance
func NewRelayController(handler port.RelayHandler, maxBody int64, logger port.Logger) *RelayController {
	return &RelayController{
		handler: handler,
		maxBody: maxBody,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  32 * 1024,
			WriteBufferSize: 32 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// envelopeLimit bounds an encoded envelope: base64 plus IV and JSON framing
func (c *RelayController) envelopeLimit() int64 {
	return c.maxBody*2 + 1024
}

// Relay serves a single POSTed envelope
func (c *RelayController) Relay(ctx *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(ctx.Request.Body, c.envelopeLimit()+1))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body", "kind": model.KindParse})
		return
	}
	if int64(len(body)) > c.envelopeLimit() {
		ctx.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "envelope too large", "kind": model.KindParse})
		return
	}

	isBase64 := strings.EqualFold(ctx.GetHeader("Content-Transfer-Encoding"), "base64") ||
		strings.EqualFold(ctx.GetHeader("X-Body-Encoding"), "base64")
	status, out := c.handler.HandleBody(ctx.Request.Context(), body, isBase64)
	ctx.Data(status, "application/json", out)
}

// WebSocket serves envelopes over a websocket, one reply per text message
func (c *RelayController) WebSocket(ctx *gin.Context) {
	conn, err := c.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		c.logger.Warn("Websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(c.envelopeLimit())

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("Websocket closed: %v", err)
			}
			return
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}

		_, out := c.handler.HandleBody(ctx.Request.Context(), msg, false)
		if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
			c.logger.Debug("Websocket write failed: %v", err)
			return
		}
	}
}
