package node

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptrace"
	"strconv"
	"time"

	"github.com/EternisAI/netmeasure/internal/probe"
)

// Executor runs one probe request and produces the reply sent back to the
// server. It never fails: problems are reported with ok=false.
type Executor interface {
	Execute(ctx context.Context, kind probe.Kind, payload json.RawMessage) *probe.Response
}

const (
	speedReadBuffer = 32 * 1024
	maxProbeTimes   = 100
)

var errNoAddress = errors.New("no address for requested family")

// LocalExecutor answers resolve, tcping and speed requests from this host.
// ping and mtr need raw sockets and are reported as unsupported.
type LocalExecutor struct {
	resolver *net.Resolver
}

func NewLocalExecutor() *LocalExecutor {
	return &LocalExecutor{resolver: net.DefaultResolver}
}

func failed(format string, args ...any) *probe.Response {
	return &probe.Response{OK: false, Info: fmt.Sprintf(format, args...)}
}

func succeeded(resolved string, data any) *probe.Response {
	raw, err := json.Marshal(data)
	if err != nil {
		return failed("encode result: %v", err)
	}
	return &probe.Response{OK: true, Result: &probe.Result{Resolved: resolved, Data: raw}}
}

func (e *LocalExecutor) Execute(ctx context.Context, kind probe.Kind, payload json.RawMessage) *probe.Response {
	switch kind {
	case probe.KindResolve:
		var p probe.ResolveParams
		if err := json.Unmarshal(payload, &p); err != nil {
			return failed("invalid request: %v", err)
		}
		return e.resolve(ctx, p)
	case probe.KindTCPing:
		var p probe.TCPingParams
		if err := json.Unmarshal(payload, &p); err != nil {
			return failed("invalid request: %v", err)
		}
		return e.tcping(ctx, p)
	case probe.KindSpeed:
		var p probe.SpeedParams
		if err := json.Unmarshal(payload, &p); err != nil {
			return failed("invalid request: %v", err)
		}
		return e.speed(ctx, p)
	case probe.KindPing, probe.KindMTR:
		return failed("%s is not supported by this node", kind)
	default:
		return failed("unknown probe kind %d", uint32(kind))
	}
}

func ipNetwork(f probe.Family) string {
	switch f {
	case probe.FamilyV4:
		return "ip4"
	case probe.FamilyV6:
		return "ip6"
	default:
		return "ip"
	}
}

func tcpNetwork(f probe.Family) string {
	switch f {
	case probe.FamilyV4:
		return "tcp4"
	case probe.FamilyV6:
		return "tcp6"
	default:
		return "tcp"
	}
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

func waitDuration(ms int, def time.Duration) time.Duration {
	if ms <= 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

func (e *LocalExecutor) lookup(ctx context.Context, address string, family probe.Family, wait time.Duration) ([]net.IP, error) {
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	ips, err := e.resolver.LookupIP(ctx, ipNetwork(family), address)
	if err != nil {
		return nil, err
	}
	if len(ips) == 0 {
		return nil, errNoAddress
	}
	return ips, nil
}

func (e *LocalExecutor) resolve(ctx context.Context, p probe.ResolveParams) *probe.Response {
	ips, err := e.lookup(ctx, p.Address, p.Family, waitDuration(p.Wait, 2*time.Second))
	if err != nil {
		return failed("resolve %s: %v", p.Address, err)
	}

	addrs := make([]string, 0, len(ips))
	for _, ip := range ips {
		addrs = append(addrs, ip.String())
	}
	return succeeded(addrs[0], addrs)
}

func (e *LocalExecutor) tcping(ctx context.Context, p probe.TCPingParams) *probe.Response {
	if p.Port < 1 || p.Port > 65535 {
		return failed("invalid port %d", p.Port)
	}
	wait := waitDuration(p.Wait, 2*time.Second)

	ips, err := e.lookup(ctx, p.Address, p.Family, wait)
	if err != nil {
		return failed("resolve %s: %v", p.Address, err)
	}
	ip := ips[0].String()
	target := net.JoinHostPort(ip, strconv.Itoa(p.Port))

	times := min(max(p.Times, 1), maxProbeTimes)
	interval := waitDuration(p.Interval, time.Second)
	dialer := &net.Dialer{Timeout: wait}

	samples := make([]probe.TCPingSample, 0, times)
	for i := range times {
		if i > 0 {
			select {
			case <-ctx.Done():
				return failed("cancelled: %v", ctx.Err())
			case <-time.After(interval):
			}
		}

		start := time.Now()
		conn, err := dialer.DialContext(ctx, tcpNetwork(p.Family), target)
		sample := probe.TCPingSample{Address: ip, Latency: millis(time.Since(start))}
		if err == nil {
			sample.Success = true
			_ = conn.Close()
		} else {
			slog.Debug("tcping attempt failed", "target", target, "error", err)
		}
		samples = append(samples, sample)
	}

	return succeeded(ip, samples)
}

func (e *LocalExecutor) speed(ctx context.Context, p probe.SpeedParams) *probe.Response {
	wait := waitDuration(p.Wait, 10*time.Second)
	span := waitDuration(p.Span, 30*time.Second)
	interval := waitDuration(p.Interval, 250*time.Millisecond)

	ctx, cancel := context.WithTimeout(ctx, wait+span)
	defer cancel()

	var remote string
	trace := &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			if host, _, err := net.SplitHostPort(info.Conn.RemoteAddr().String()); err == nil {
				remote = host
			}
		},
	}

	req, err := http.NewRequestWithContext(httptrace.WithClientTrace(ctx, trace), http.MethodGet, p.URL, nil)
	if err != nil {
		return failed("invalid url: %v", err)
	}

	network := tcpNetwork(p.Family)
	dialer := &net.Dialer{Timeout: wait}
	client := &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, addr string) (net.Conn, error) {
				return dialer.DialContext(ctx, network, addr)
			},
			ResponseHeaderTimeout: wait,
			DisableCompression:    true,
		},
	}
	defer client.CloseIdleConnections()

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return failed("download %s: %v", p.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return failed("download %s: status %d", p.URL, resp.StatusCode)
	}
	latency := millis(time.Since(start))

	var (
		received   float64
		samples    []probe.SpeedSample
		lastSample time.Duration
		buf        = make([]byte, speedReadBuffer)
	)
	for {
		n, err := resp.Body.Read(buf)
		received += float64(n)
		elapsed := time.Since(start)

		if elapsed-lastSample >= interval {
			samples = append(samples, probe.SpeedSample{Point: millis(elapsed), Received: received})
			lastSample = elapsed
		}
		if err != nil || elapsed >= span {
			if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, context.DeadlineExceeded) {
				slog.Debug("Speed test read ended", "url", p.URL, "error", err)
			}
			break
		}
	}

	total := time.Since(start)
	if n := len(samples); n == 0 || samples[n-1].Received != received {
		samples = append(samples, probe.SpeedSample{Point: millis(total), Received: received})
	}

	raw, err := json.Marshal(samples)
	if err != nil {
		return failed("encode result: %v", err)
	}
	return &probe.Response{OK: true, Result: &probe.Result{
		Resolved: remote,
		Data:     raw,
		Latency:  &latency,
		Elapsed:  millis(total),
		Received: received,
	}}
}
