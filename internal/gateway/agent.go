package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/EternisAI/netmeasure/internal/correlator"
	"github.com/EternisAI/netmeasure/internal/frame"
	"github.com/EternisAI/netmeasure/internal/probe"
	"github.com/gorilla/websocket"
)

const (
	DefaultRequestTimeout = 300 * time.Second

	writeWait    = 10 * time.Second
	pongWait     = 90 * time.Second
	pingInterval = 30 * time.Second
)

// Agent is a node attached over a persistent connection. Many requests may
// be in flight at once; each is matched to its reply by id.
type Agent struct {
	probe.Prober
	name        string
	conn        *websocket.Conn
	remoteAddr  string
	timeout     time.Duration
	pending     *correlator.Correlator[*probe.Response]
	writeMu     sync.Mutex
	connectedAt time.Time
	lastSeen    atomic.Int64
	closeOnce   sync.Once
	done        chan struct{}
}

func newAgent(name string, conn *websocket.Conn, timeout time.Duration) *Agent {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	now := time.Now()
	a := &Agent{
		name:        name,
		conn:        conn,
		remoteAddr:  conn.RemoteAddr().String(),
		timeout:     timeout,
		pending:     correlator.New[*probe.Response](),
		connectedAt: now,
		done:        make(chan struct{}),
	}
	a.lastSeen.Store(now.UnixNano())
	a.Prober = probe.NewProber(a)
	return a
}

func (a *Agent) Name() string {
	return a.name
}

func (a *Agent) Transport() probe.Transport {
	return probe.TransportPersistent
}

func (a *Agent) Description() string {
	return a.remoteAddr
}

func (a *Agent) String() string {
	return a.name
}

func (a *Agent) ConnectedAt() time.Time {
	return a.connectedAt
}

func (a *Agent) LastSeen() time.Time {
	return time.Unix(0, a.lastSeen.Load())
}

func (a *Agent) touch() {
	a.lastSeen.Store(time.Now().UnixNano())
}

// SendRequest writes one request frame and waits for the matching reply,
// the request timeout, or the connection to go away.
func (a *Agent) SendRequest(ctx context.Context, kind probe.Kind, params any) (*probe.Response, error) {
	id, err := a.pending.Register()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", probe.ErrRequestFailed, err)
	}

	b, err := frame.EncodeRequest(kind, id, params)
	if err != nil {
		a.pending.Forget(id)
		return nil, fmt.Errorf("%w: %v", probe.ErrRequestFailed, err)
	}

	if err := a.write(websocket.BinaryMessage, b); err != nil {
		a.pending.Forget(id)
		slog.Warn("Failed to write request frame", "node", a.name, "request_id", id, "error", err)
		return nil, fmt.Errorf("%w: write frame: %v", probe.ErrRequestFailed, err)
	}

	slog.Debug("Request sent to node", "node", a.name, "request_id", id, "kind", kind.String())

	resp, err := a.pending.Wait(ctx, id, a.timeout)
	if err != nil {
		slog.Warn("Request to node did not complete", "node", a.name, "request_id", id, "kind", kind.String(), "error", err)
		return nil, fmt.Errorf("%w: %v", probe.ErrRequestFailed, err)
	}
	return resp, nil
}

func (a *Agent) write(messageType int, data []byte) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	_ = a.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return a.conn.WriteMessage(messageType, data)
}

// deliver routes one inbound binary message. Frames that do not parse or
// match no pending request are dropped.
func (a *Agent) deliver(data []byte) {
	a.touch()

	reply, err := frame.DecodeReply(data)
	if err != nil {
		slog.Debug("Discarding malformed frame", "node", a.name, "error", err)
		return
	}

	resp := reply.Response
	if !a.pending.Resolve(reply.ID, &resp) {
		slog.Debug("Discarding unmatched reply", "node", a.name, "request_id", reply.ID)
	}
}

func (a *Agent) keepalive() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(writeWait)
			if err := a.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				slog.Debug("Ping to node failed", "node", a.name, "error", err)
				return
			}
		case <-a.done:
			return
		}
	}
}

// Close drops the connection and fails every request still waiting on it.
func (a *Agent) Close() {
	a.closeOnce.Do(func() {
		close(a.done)
		a.pending.Close()
		_ = a.conn.Close()
	})
}

// Done is closed once the agent has been closed.
func (a *Agent) Done() <-chan struct{} {
	return a.done
}

// PendingCount reports how many requests are waiting for a reply.
func (a *Agent) PendingCount() int {
	return a.pending.Len()
}
