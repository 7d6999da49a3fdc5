package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/EternisAI/netmeasure/internal/frame"
	"github.com/EternisAI/netmeasure/internal/handshake"
	"github.com/EternisAI/netmeasure/internal/probe"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "gateway-key"

func init() {
	gin.SetMode(gin.TestMode)
}

func setupGateway(t *testing.T, timeout time.Duration) (*Registry, string) {
	t.Helper()

	registry := NewRegistry()
	h := NewHandler(Config{Key: testKey, RequestTimeout: timeout}, registry)

	engine := gin.New()
	engine.GET("/netmeasure", h.Serve)

	srv := httptest.NewServer(engine)
	t.Cleanup(func() {
		registry.Stop()
		srv.Close()
	})

	return registry, "ws" + strings.TrimPrefix(srv.URL, "http") + "/netmeasure"
}

func dialNode(url, name, key string, at time.Time) (*websocket.Conn, error) {
	ident := handshake.NewIdentifier(name, at)
	header := http.Header{}
	header.Set(handshake.HeaderIdentifier, ident)
	header.Set(handshake.HeaderSignature, handshake.Sign([]byte(key), []byte(ident)))

	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	return conn, err
}

func waitForAgent(t *testing.T, registry *Registry, name string) *Agent {
	t.Helper()

	var agent *Agent
	require.Eventually(t, func() bool {
		a, ok := registry.Get(name)
		agent = a
		return ok
	}, 2*time.Second, 10*time.Millisecond)
	return agent
}

func readRequest(t *testing.T, conn *websocket.Conn) *frame.Request {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	mt, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.BinaryMessage, mt)

	req, err := frame.DecodeRequest(data)
	require.NoError(t, err)
	return req
}

func reply(t *testing.T, conn *websocket.Conn, req *frame.Request, resp *probe.Response) {
	t.Helper()

	b, err := frame.EncodeReply(req.Kind, req.ID, resp)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, b))
}

func TestHandshake_RefusedWithoutKey(t *testing.T) {
	registry := NewRegistry()
	h := NewHandler(Config{}, registry)

	engine := gin.New()
	engine.GET("/netmeasure", h.Serve)
	srv := httptest.NewServer(engine)
	t.Cleanup(func() {
		registry.Stop()
		srv.Close()
	})
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/netmeasure"

	conn, err := dialNode(url, "hk", "", time.Now())
	if conn != nil {
		conn.Close()
	}
	require.Error(t, err)
	assert.NotErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Zero(t, registry.Count())
}

func TestHandshake_RegistersUpperCasedName(t *testing.T) {
	registry, url := setupGateway(t, time.Second)

	conn, err := dialNode(url, "hk", testKey, time.Now())
	require.NoError(t, err)
	defer conn.Close()

	agent := waitForAgent(t, registry, "HK")
	assert.Equal(t, "HK", agent.Name())
	assert.Equal(t, probe.TransportPersistent, agent.Transport())
	assert.Equal(t, 1, registry.Count())
}

func TestHandshake_RejectedWithoutResponse(t *testing.T) {
	tests := []struct {
		name string
		dial func(url string) (*websocket.Conn, error)
	}{
		{"wrong key", func(url string) (*websocket.Conn, error) {
			return dialNode(url, "hk", "not-the-key", time.Now())
		}},
		{"clock skew", func(url string) (*websocket.Conn, error) {
			return dialNode(url, "hk", testKey, time.Now().Add(-4*time.Second))
		}},
		{"no headers", func(url string) (*websocket.Conn, error) {
			conn, _, err := websocket.DefaultDialer.Dial(url, nil)
			return conn, err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry, url := setupGateway(t, time.Second)

			conn, err := tt.dial(url)
			if conn != nil {
				conn.Close()
			}
			require.Error(t, err)
			assert.NotErrorIs(t, err, websocket.ErrBadHandshake, "a rejected node must not receive an HTTP response")
			assert.Zero(t, registry.Count())
		})
	}
}

func TestAgent_RequestResponse(t *testing.T) {
	registry, url := setupGateway(t, 2*time.Second)

	conn, err := dialNode(url, "sg", testKey, time.Now())
	require.NoError(t, err)
	defer conn.Close()

	agent := waitForAgent(t, registry, "SG")

	go func() {
		req := readRequest(t, conn)
		assert.Equal(t, probe.KindPing, req.Kind)
		assert.Contains(t, string(req.Payload), `"address":"1.1.1.1"`)

		reply(t, conn, req, &probe.Response{
			OK:     true,
			Result: &probe.Result{Resolved: "1.1.1.1", Data: []byte(`[{"code":257,"latency":4.2}]`)},
		})
	}()

	resp, err := agent.Ping(context.Background(), probe.PingParams{Address: "1.1.1.1", Times: 1})
	require.NoError(t, err)
	assert.True(t, resp.OK)

	samples, err := resp.PingSamples()
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, 4.2, samples[0].Latency)
	assert.Zero(t, agent.PendingCount())
}

func TestAgent_ConcurrentRequestsResolveIndependently(t *testing.T) {
	registry, url := setupGateway(t, time.Second)

	conn, err := dialNode(url, "jp", testKey, time.Now())
	require.NoError(t, err)
	defer conn.Close()

	agent := waitForAgent(t, registry, "JP")

	type result struct {
		resp *probe.Response
		err  error
	}
	answered := make(chan result, 1)
	ignored := make(chan result, 1)

	go func() {
		resp, err := agent.Resolve(context.Background(), probe.ResolveParams{Address: "answer.example"})
		answered <- result{resp, err}
	}()
	go func() {
		resp, err := agent.Resolve(context.Background(), probe.ResolveParams{Address: "ignore.example"})
		ignored <- result{resp, err}
	}()

	for range 2 {
		req := readRequest(t, conn)
		if strings.Contains(string(req.Payload), "answer.example") {
			reply(t, conn, req, &probe.Response{OK: true, Result: &probe.Result{Data: []byte(`["192.0.2.1"]`)}})
		}
	}

	got := <-answered
	require.NoError(t, got.err)
	addrs, err := got.resp.Addresses()
	require.NoError(t, err)
	assert.Equal(t, []string{"192.0.2.1"}, addrs)
	assert.Equal(t, 1, agent.PendingCount())

	lost := <-ignored
	assert.Nil(t, lost.resp)
	assert.ErrorIs(t, lost.err, probe.ErrRequestFailed)
	assert.Zero(t, agent.PendingCount())
}

func TestAgent_MalformedAndStrayFramesAreDiscarded(t *testing.T) {
	registry, url := setupGateway(t, 2*time.Second)

	conn, err := dialNode(url, "de", testKey, time.Now())
	require.NoError(t, err)
	defer conn.Close()

	agent := waitForAgent(t, registry, "DE")

	go func() {
		req := readRequest(t, conn)
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2})
		_ = conn.WriteMessage(websocket.BinaryMessage, frame.Encode(req.Kind, []byte(`{broken`)))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`hello`))
		reply(t, conn, req, &probe.Response{OK: true})
		b, _ := frame.EncodeReply(req.Kind, req.ID+1, &probe.Response{OK: true})
		_ = conn.WriteMessage(websocket.BinaryMessage, b)
		reply(t, conn, req, &probe.Response{OK: false})
	}()

	resp, err := agent.MTR(context.Background(), probe.MTRParams{Address: "example.com"})
	require.NoError(t, err)
	assert.True(t, resp.OK)

	_, stillRegistered := registry.Get("DE")
	assert.True(t, stillRegistered)
}

func TestAgent_DisconnectFailsPendingRequests(t *testing.T) {
	registry, url := setupGateway(t, time.Minute)

	conn, err := dialNode(url, "us", testKey, time.Now())
	require.NoError(t, err)

	agent := waitForAgent(t, registry, "US")

	done := make(chan error, 1)
	go func() {
		_, err := agent.Speed(context.Background(), probe.SpeedParams{URL: "http://example.com/big"})
		done <- err
	}()

	readRequest(t, conn)
	conn.Close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, probe.ErrRequestFailed)
	case <-time.After(2 * time.Second):
		t.Fatal("pending request not released on disconnect")
	}

	require.Eventually(t, func() bool { return registry.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, agent.PendingCount())
}

func TestRegistry_ReconnectReplacesPrevious(t *testing.T) {
	registry, url := setupGateway(t, time.Second)

	first, err := dialNode(url, "hk", testKey, time.Now())
	require.NoError(t, err)
	defer first.Close()
	old := waitForAgent(t, registry, "HK")

	second, err := dialNode(url, "HK", testKey, time.Now())
	require.NoError(t, err)
	defer second.Close()

	require.Eventually(t, func() bool {
		a, ok := registry.Get("HK")
		return ok && a != old
	}, 2*time.Second, 10*time.Millisecond)

	select {
	case <-old.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("replaced agent was not closed")
	}

	_ = first.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = first.ReadMessage()
	assert.Error(t, err)

	assert.Equal(t, 1, registry.Count())
}

func TestRegistry_Disconnect(t *testing.T) {
	registry, url := setupGateway(t, time.Second)

	conn, err := dialNode(url, "fj", testKey, time.Now())
	require.NoError(t, err)
	defer conn.Close()
	waitForAgent(t, registry, "FJ")

	assert.True(t, registry.Disconnect("FJ"))
	assert.False(t, registry.Disconnect("FJ"))
	assert.Zero(t, registry.Count())
}
