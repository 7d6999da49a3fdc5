package probe

import (
	"context"
	"errors"
	"time"
)

// ErrRequestFailed is the single failure a caller sees from any transport:
// network errors, bad status codes, malformed bodies, timeouts and
// disconnects all collapse into it.
var ErrRequestFailed = errors.New("request failed")

// Sender delivers one probe request over a concrete transport.
type Sender interface {
	SendRequest(ctx context.Context, kind Kind, params any) (*Response, error)
}

// Agent is a remote measurement node. Callers depend only on this
// capability set, never on the transport behind it.
type Agent interface {
	Name() string
	Transport() Transport
	Description() string

	Resolve(ctx context.Context, p ResolveParams) (*Response, error)
	Ping(ctx context.Context, p PingParams) (*Response, error)
	TCPing(ctx context.Context, p TCPingParams) (*Response, error)
	MTR(ctx context.Context, p MTRParams) (*Response, error)
	Speed(ctx context.Context, p SpeedParams) (*Response, error)
}

// Prober implements the probe operations of Agent on top of a Sender. Both
// transports embed it.
type Prober struct {
	sender Sender
	now    func() time.Time
}

func NewProber(sender Sender) Prober {
	return Prober{sender: sender, now: time.Now}
}

func (p Prober) tag() Tag {
	now := time.Now
	if p.now != nil {
		now = p.now
	}
	return NewTag(now())
}

func (p Prober) send(ctx context.Context, kind Kind, params any) (*Response, error) {
	resp, err := p.sender.SendRequest(ctx, kind, params)
	if err != nil {
		if errors.Is(err, ErrRequestFailed) {
			return nil, err
		}
		return nil, errors.Join(ErrRequestFailed, err)
	}
	if resp == nil {
		return nil, ErrRequestFailed
	}
	return resp, nil
}

func (p Prober) Resolve(ctx context.Context, params ResolveParams) (*Response, error) {
	params.Tag = p.tag()
	return p.send(ctx, KindResolve, params)
}

func (p Prober) Ping(ctx context.Context, params PingParams) (*Response, error) {
	params.Tag = p.tag()
	return p.send(ctx, KindPing, params)
}

func (p Prober) TCPing(ctx context.Context, params TCPingParams) (*Response, error) {
	params.Tag = p.tag()
	return p.send(ctx, KindTCPing, params)
}

func (p Prober) MTR(ctx context.Context, params MTRParams) (*Response, error) {
	params.Tag = p.tag()
	return p.send(ctx, KindMTR, params)
}

func (p Prober) Speed(ctx context.Context, params SpeedParams) (*Response, error) {
	params.Tag = p.tag()
	return p.send(ctx, KindSpeed, params)
}
