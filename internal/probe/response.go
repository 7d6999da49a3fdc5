package probe

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrMalformedResult = errors.New("malformed probe result")

// Ping status codes reported by nodes. MTR treats both as an answer.
const (
	CodeEchoReply    = 257
	CodeTimeExceeded = 258
)

// Response is what a node returns for any probe kind, over either transport.
type Response struct {
	OK     bool    `json:"ok"`
	Info   string  `json:"info,omitempty"`
	Result *Result `json:"result,omitempty"`
}

// Result carries the kind-specific payload. Data is kept raw and decoded by
// the typed accessors below.
type Result struct {
	Resolved string          `json:"resolved,omitempty"`
	Data     json.RawMessage `json:"data"`

	// Speed test only.
	Latency  *float64 `json:"latency,omitempty"`
	Elapsed  float64  `json:"elapsed,omitempty"`
	Received float64  `json:"received,omitempty"`
}

type PingSample struct {
	Code    int     `json:"code"`
	Latency float64 `json:"latency"`
	Address string  `json:"address,omitempty"`
	RDNS    string  `json:"rdns,omitempty"`
}

type TCPingSample struct {
	Success bool    `json:"success"`
	Latency float64 `json:"latency"`
	Address string  `json:"address,omitempty"`
}

// HopSample is one answer (or timeout) at a single TTL within one MTR round.
type HopSample struct {
	Code    int     `json:"code"`
	Latency float64 `json:"latency"`
	Address string  `json:"address"`
	RDNS    string  `json:"rdns"`
}

// SpeedSample is a cumulative byte count observed Point milliseconds after
// the transfer started.
type SpeedSample struct {
	Point    float64 `json:"point"`
	Received float64 `json:"received"`
}

func (r *Response) payload() (*Result, error) {
	if r == nil || r.Result == nil {
		return nil, fmt.Errorf("%w: missing result", ErrMalformedResult)
	}
	return r.Result, nil
}

func decodeData[T any](r *Response) (T, error) {
	var out T
	res, err := r.payload()
	if err != nil {
		return out, err
	}
	if len(res.Data) == 0 {
		return out, fmt.Errorf("%w: missing data", ErrMalformedResult)
	}
	if err := json.Unmarshal(res.Data, &out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrMalformedResult, err)
	}
	return out, nil
}

func (r *Response) Addresses() ([]string, error) {
	return decodeData[[]string](r)
}

func (r *Response) PingSamples() ([]PingSample, error) {
	return decodeData[[]PingSample](r)
}

func (r *Response) TCPingSamples() ([]TCPingSample, error) {
	return decodeData[[]TCPingSample](r)
}

// MTRRounds returns one slice per round. A nil entry marks a hop for which
// the node reported nothing.
func (r *Response) MTRRounds() ([][]*HopSample, error) {
	return decodeData[[][]*HopSample](r)
}

func (r *Response) SpeedSamples() ([]SpeedSample, error) {
	return decodeData[[]SpeedSample](r)
}
