// Package frame implements the binary framing used on persistent node
// connections: a 4-byte big-endian kind, a 4-byte big-endian payload length
// and a JSON payload.
package frame

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/EternisAI/netmeasure/internal/probe"
)

const HeaderSize = 8

var (
	ErrShortFrame = errors.New("frame shorter than header")
	ErrMissingID  = errors.New("frame payload has no id")
)

type requestBody struct {
	ID      uint32 `json:"id"`
	Request any    `json:"request"`
}

// Request is a decoded server to node frame.
type Request struct {
	Kind    probe.Kind
	ID      uint32
	Payload json.RawMessage
}

// Reply is a decoded node to server frame. The response fields sit next to
// the id at the top level of the JSON object.
type Reply struct {
	Kind probe.Kind
	ID   uint32
	probe.Response
}

func Encode(kind probe.Kind, payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], uint32(kind))
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(payload)))
	copy(buf[HeaderSize:], payload)
	return buf
}

// EncodeRequest builds a server to node frame carrying params under id.
func EncodeRequest(kind probe.Kind, id uint32, params any) ([]byte, error) {
	payload, err := json.Marshal(requestBody{ID: id, Request: params})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return Encode(kind, payload), nil
}

func EncodeReply(kind probe.Kind, id uint32, resp *probe.Response) ([]byte, error) {
	body := struct {
		ID uint32 `json:"id"`
		*probe.Response
	}{ID: id, Response: resp}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal reply: %w", err)
	}
	return Encode(kind, payload), nil
}

func kindOf(b []byte) probe.Kind {
	return probe.Kind(binary.BigEndian.Uint32(b[0:4]))
}

// DecodeRequest parses a server to node frame.
func DecodeRequest(b []byte) (*Request, error) {
	if len(b) < HeaderSize {
		return nil, ErrShortFrame
	}
	var body struct {
		ID      *uint32         `json:"id"`
		Request json.RawMessage `json:"request"`
	}
	if err := json.Unmarshal(b[HeaderSize:], &body); err != nil {
		return nil, fmt.Errorf("unmarshal request: %w", err)
	}
	if body.ID == nil {
		return nil, ErrMissingID
	}
	return &Request{Kind: kindOf(b), ID: *body.ID, Payload: body.Request}, nil
}

// DecodeReply skips the header and parses the remainder. The declared
// length is not checked against the payload; one websocket message is one
// frame.
func DecodeReply(b []byte) (*Reply, error) {
	if len(b) < HeaderSize {
		return nil, ErrShortFrame
	}
	var body struct {
		ID *uint32 `json:"id"`
		probe.Response
	}
	if err := json.Unmarshal(b[HeaderSize:], &body); err != nil {
		return nil, fmt.Errorf("unmarshal reply: %w", err)
	}
	if body.ID == nil {
		return nil, ErrMissingID
	}
	return &Reply{Kind: kindOf(b), ID: *body.ID, Response: body.Response}, nil
}
