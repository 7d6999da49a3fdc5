package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/EternisAI/netmeasure/internal/frame"
	"github.com/EternisAI/netmeasure/internal/handshake"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

const (
	sendChannelBuffer = 100
	initialDelay      = 1 * time.Second
	maxDelay          = 30 * time.Second
	backoffFactor     = 2

	writeWait           = 10 * time.Second
	readWait            = 90 * time.Second
	defaultConcurrency  = 8
	defaultProbeTimeout = 5 * time.Minute
)

type Config struct {
	ServerURL   string `mapstructure:"server_url"`
	Name        string `mapstructure:"name"`
	Key         string `mapstructure:"key"`
	Concurrency int    `mapstructure:"concurrency"`
}

// Client keeps a persistent connection to the server, runs the probe
// requests it receives and writes the replies back.
type Client struct {
	cfg      Config
	executor Executor
	dialer   *websocket.Dialer

	sendCh chan []byte
	sem    chan struct{}
	stopCh chan struct{}
	doneCh chan struct{}

	reconnectDelay    time.Duration
	maxReconnectDelay time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.RWMutex
	conn   *websocket.Conn
}

func NewClient(cfg Config, executor Executor) *Client {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		cfg:      cfg,
		executor: executor,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 15 * time.Second,
		},
		sendCh:            make(chan []byte, sendChannelBuffer),
		sem:               make(chan struct{}, cfg.Concurrency),
		stopCh:            make(chan struct{}),
		doneCh:            make(chan struct{}),
		reconnectDelay:    initialDelay,
		maxReconnectDelay: maxDelay,
		ctx:               ctx,
		cancel:            cancel,
	}
}

func (c *Client) Start() error {
	if c.cfg.ServerURL == "" || c.cfg.Name == "" || c.cfg.Key == "" {
		return errors.New("server_url, name and key are required")
	}
	go c.connectionLoop()
	return nil
}

func (c *Client) Stop() error {
	slog.Info("Stopping node client")
	close(c.stopCh)
	c.cancel()
	c.disconnect()
	<-c.doneCh
	slog.Info("Node client stopped")
	return nil
}

// Connected reports whether a server connection is currently open.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

func (c *Client) connectionLoop() {
	defer close(c.doneCh)

	for {
		select {
		case <-c.stopCh:
			return
		default:
		}

		if err := c.connect(); err != nil {
			slog.Error("Connection failed", "error", err, "retry_in", c.reconnectDelay)
			if !c.sleep(c.reconnectDelay) {
				return
			}
			c.increaseReconnectDelay()
			continue
		}

		c.reconnectDelay = initialDelay

		if err := c.handleStream(); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Info("Server closed connection")
			} else {
				slog.Error("Stream error", "error", err)
			}
		}

		c.disconnect()

		slog.Info("Reconnecting", "delay", c.reconnectDelay)
		if !c.sleep(c.reconnectDelay) {
			return
		}
		c.increaseReconnectDelay()
	}
}

func (c *Client) sleep(d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-c.stopCh:
		return false
	}
}

func (c *Client) increaseReconnectDelay() {
	c.reconnectDelay = c.reconnectDelay * backoffFactor
	if c.reconnectDelay > c.maxReconnectDelay {
		c.reconnectDelay = c.maxReconnectDelay
	}
}

func (c *Client) connect() error {
	slog.Info("Connecting to server", "url", c.cfg.ServerURL, "name", c.cfg.Name)

	ident := handshake.NewIdentifier(strings.ToUpper(c.cfg.Name), time.Now())
	header := http.Header{}
	header.Set(handshake.HeaderIdentifier, ident)
	header.Set(handshake.HeaderSignature, handshake.Sign([]byte(c.cfg.Key), []byte(ident)))

	conn, _, err := c.dialer.DialContext(c.ctx, c.cfg.ServerURL, header)
	if err != nil {
		return fmt.Errorf("failed to dial server: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	slog.Info("Connected to server", "url", c.cfg.ServerURL)
	return nil
}

func (c *Client) disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) handleStream() error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return errors.New("connection is nil")
	}

	g, ctx := errgroup.WithContext(c.ctx)
	g.Go(func() error { return c.receiveLoop(ctx, conn) })
	g.Go(func() error { return c.sendLoop(ctx, conn) })
	g.Go(func() error {
		<-ctx.Done()
		_ = conn.Close()
		return nil
	})
	return g.Wait()
}

func (c *Client) receiveLoop(ctx context.Context, conn *websocket.Conn) error {
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readWait))
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(readWait))

		if messageType != websocket.BinaryMessage {
			continue
		}

		req, err := frame.DecodeRequest(data)
		if err != nil {
			slog.Warn("Discarding malformed request frame", "error", err)
			continue
		}
		slog.Debug("Request received", "id", req.ID, "kind", req.Kind)

		select {
		case c.sem <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
		go c.handleRequest(ctx, req)
	}
}

func (c *Client) handleRequest(ctx context.Context, req *frame.Request) {
	defer func() { <-c.sem }()

	probeCtx, cancel := context.WithTimeout(ctx, defaultProbeTimeout)
	defer cancel()

	resp := c.executor.Execute(probeCtx, req.Kind, req.Payload)
	b, err := frame.EncodeReply(req.Kind, req.ID, resp)
	if err != nil {
		slog.Error("Failed to encode reply", "id", req.ID, "error", err)
		return
	}

	select {
	case c.sendCh <- b:
	case <-ctx.Done():
		slog.Debug("Dropping reply for closed connection", "id", req.ID)
	}
}

func (c *Client) sendLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case b := <-c.sendCh:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
				return fmt.Errorf("write reply: %w", err)
			}
		}
	}
}
