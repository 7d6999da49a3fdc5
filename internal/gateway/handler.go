package gateway

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/EternisAI/netmeasure/internal/handshake"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type Config struct {
	Key            string        `mapstructure:"key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	ClockSkew      time.Duration `mapstructure:"clock_skew"`
}

// Handler accepts persistent node connections.
type Handler struct {
	verifier       *handshake.Verifier
	registry       *Registry
	upgrader       websocket.Upgrader
	requestTimeout time.Duration
}

func NewHandler(cfg Config, registry *Registry) *Handler {
	return &Handler{
		verifier: handshake.NewVerifier(cfg.Key, cfg.ClockSkew),
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Nodes are not browsers; the signed identifier is the credential.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		requestTimeout: cfg.RequestTimeout,
	}
}

// Serve validates the handshake headers, upgrades the connection and runs
// the receive loop until the node goes away. A failed handshake gets no
// response at all.
func (h *Handler) Serve(c *gin.Context) {
	ident := c.GetHeader(handshake.HeaderIdentifier)
	sig := c.GetHeader(handshake.HeaderSignature)

	id, err := h.verifier.Verify(ident, sig)
	if err != nil {
		slog.Warn("Rejected node handshake",
			"remote_addr", c.Request.RemoteAddr,
			"identifier", ident,
			"error", err)
		abandon(c)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("Failed to upgrade node connection", "remote_addr", c.Request.RemoteAddr, "error", err)
		return
	}

	agent := newAgent(strings.ToUpper(id.Name), conn, h.requestTimeout)
	h.registry.Register(agent)
	slog.Info("Node connection established", "node", agent.name, "remote_addr", agent.remoteAddr)

	defer func() {
		agent.Close()
		h.registry.Deregister(agent)
		slog.Info("Lost connection from node", "node", agent.name)
	}()

	go agent.keepalive()
	h.receiveLoop(agent)
}

func (h *Handler) receiveLoop(a *Agent) {
	_ = a.conn.SetReadDeadline(time.Now().Add(pongWait))
	a.conn.SetPongHandler(func(string) error {
		a.touch()
		return a.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := a.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("Node connection read error", "node", a.name, "error", err)
			}
			return
		}
		_ = a.conn.SetReadDeadline(time.Now().Add(pongWait))

		if messageType != websocket.BinaryMessage {
			continue
		}
		a.deliver(data)
	}
}

// abandon drops the underlying connection without writing a response.
func abandon(c *gin.Context) {
	c.Abort()
	conn, _, err := c.Writer.Hijack()
	if err != nil {
		slog.Debug("Could not hijack rejected connection", "error", err)
		return
	}
	_ = conn.Close()
}
