package node

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/EternisAI/netmeasure/internal/probe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, kind probe.Kind, params any) *probe.Response {
	t.Helper()

	payload, err := json.Marshal(params)
	require.NoError(t, err)
	return NewLocalExecutor().Execute(context.Background(), kind, payload)
}

func TestLocalExecutor_Resolve(t *testing.T) {
	resp := execute(t, probe.KindResolve, probe.ResolveParams{Address: "127.0.0.1", Family: probe.FamilyV4})
	require.True(t, resp.OK, resp.Info)

	addrs, err := resp.Addresses()
	require.NoError(t, err)
	assert.Equal(t, []string{"127.0.0.1"}, addrs)
}

func TestLocalExecutor_TCPing(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	resp := execute(t, probe.KindTCPing, probe.TCPingParams{
		Address: "127.0.0.1", Port: port, Times: 3, Interval: 10, Wait: 1000,
	})
	require.True(t, resp.OK, resp.Info)
	assert.Equal(t, "127.0.0.1", resp.Result.Resolved)

	samples, err := resp.TCPingSamples()
	require.NoError(t, err)
	require.Len(t, samples, 3)
	for _, s := range samples {
		assert.True(t, s.Success)
	}
}

func TestLocalExecutor_TCPingClosedPort(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	resp := execute(t, probe.KindTCPing, probe.TCPingParams{Address: "127.0.0.1", Port: port, Times: 1, Wait: 500})
	require.True(t, resp.OK, resp.Info)

	samples, err := resp.TCPingSamples()
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.False(t, samples[0].Success)
}

func TestLocalExecutor_Speed(t *testing.T) {
	body := strings.Repeat("x", 256*1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	resp := execute(t, probe.KindSpeed, probe.SpeedParams{URL: srv.URL, Span: 5000, Interval: 1, Wait: 2000})
	require.True(t, resp.OK, resp.Info)
	assert.Equal(t, "127.0.0.1", resp.Result.Resolved)
	assert.Equal(t, float64(len(body)), resp.Result.Received)
	require.NotNil(t, resp.Result.Latency)

	samples, err := resp.SpeedSamples()
	require.NoError(t, err)
	require.NotEmpty(t, samples)
	assert.Equal(t, float64(len(body)), samples[len(samples)-1].Received)
}

func TestLocalExecutor_SpeedBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	resp := execute(t, probe.KindSpeed, probe.SpeedParams{URL: srv.URL})
	assert.False(t, resp.OK)
	assert.Contains(t, resp.Info, "status 404")
}

func TestLocalExecutor_Unsupported(t *testing.T) {
	for _, kind := range []probe.Kind{probe.KindPing, probe.KindMTR, probe.Kind(42)} {
		resp := execute(t, kind, map[string]any{"address": "127.0.0.1"})
		assert.False(t, resp.OK, kind.String())
		assert.NotEmpty(t, resp.Info)
	}

	resp := NewLocalExecutor().Execute(context.Background(), probe.KindResolve, json.RawMessage(`{bad`))
	assert.False(t, resp.OK)
}
