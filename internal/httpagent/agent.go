package httpagent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/EternisAI/netmeasure/internal/handshake"
	"github.com/EternisAI/netmeasure/internal/probe"
)

const defaultTimeout = 5 * time.Minute

// Config is the static description of one HTTP node.
type Config struct {
	Name        string `mapstructure:"name"`
	Endpoint    string `mapstructure:"endpoint"`
	Key         string `mapstructure:"key"`
	Description string `mapstructure:"description"`
}

// Agent reaches a node over signed, stateless HTTP calls. It is safe for
// concurrent use.
type Agent struct {
	probe.Prober
	name        string
	endpoint    string
	key         []byte
	description string
	httpClient  *http.Client
}

func New(cfg Config, httpClient *http.Client) *Agent {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	a := &Agent{
		name:        strings.ToUpper(cfg.Name),
		endpoint:    strings.TrimRight(cfg.Endpoint, "/"),
		key:         []byte(cfg.Key),
		description: cfg.Description,
		httpClient:  httpClient,
	}
	a.Prober = probe.NewProber(a)
	return a
}

func (a *Agent) Name() string {
	return a.name
}

func (a *Agent) Transport() probe.Transport {
	return probe.TransportHTTP
}

func (a *Agent) Description() string {
	return a.description
}

func (a *Agent) String() string {
	return fmt.Sprintf("%s = %s", a.description, a.name)
}

// SendRequest makes a single attempt. The signature covers exactly the bytes
// written as the body.
func (a *Agent) SendRequest(ctx context.Context, kind probe.Kind, params any) (*probe.Response, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal %s request: %v", probe.ErrRequestFailed, kind, err)
	}

	url := a.endpoint + kind.Path()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", probe.ErrRequestFailed, err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set(handshake.HeaderSignature, handshake.Sign(a.key, body))

	slog.Debug("Sending probe over HTTP", "node", a.name, "kind", kind.String(), "url", url)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		slog.Warn("HTTP probe failed", "node", a.name, "kind", kind.String(), "error", err)
		return nil, fmt.Errorf("%w: %v", probe.ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		slog.Warn("HTTP probe rejected", "node", a.name, "kind", kind.String(), "status_code", resp.StatusCode)
		return nil, fmt.Errorf("%w: status %d", probe.ErrRequestFailed, resp.StatusCode)
	}

	var out probe.Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		slog.Warn("HTTP probe returned malformed body", "node", a.name, "kind", kind.String(), "error", err)
		return nil, fmt.Errorf("%w: decode body: %v", probe.ErrRequestFailed, err)
	}
	return &out, nil
}
