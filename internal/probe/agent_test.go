package probe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	kind   Kind
	params any
	resp   *Response
	err    error
}

func (s *recordingSender) SendRequest(_ context.Context, kind Kind, params any) (*Response, error) {
	s.kind = kind
	s.params = params
	return s.resp, s.err
}

func TestProber_StampsRequest(t *testing.T) {
	sender := &recordingSender{resp: &Response{OK: true}}
	p := NewProber(sender)
	p.now = func() time.Time { return time.Unix(1700000000, 0) }

	resp, err := p.TCPing(context.Background(), TCPingParams{Address: "example.com", Port: 443, Times: 3})
	require.NoError(t, err)
	assert.True(t, resp.OK)

	assert.Equal(t, KindTCPing, sender.kind)
	params, ok := sender.params.(TCPingParams)
	require.True(t, ok)
	assert.Equal(t, int64(1700000000), params.Stamp)
	assert.Equal(t, 443, params.Port)
}

func TestProber_WrapsTransportErrors(t *testing.T) {
	sender := &recordingSender{err: errors.New("connection refused")}
	p := NewProber(sender)

	resp, err := p.Ping(context.Background(), PingParams{Address: "1.1.1.1"})
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, ErrRequestFailed)
}

func TestProber_NilResponseIsFailure(t *testing.T) {
	p := NewProber(&recordingSender{})

	resp, err := p.Resolve(context.Background(), ResolveParams{Address: "example.com"})
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, ErrRequestFailed)
}

func TestKind(t *testing.T) {
	assert.Equal(t, "/api/mtr", KindMTR.Path())
	assert.Equal(t, uint32(1), uint32(KindPing))

	k, err := ParseKind("TCPing")
	require.NoError(t, err)
	assert.Equal(t, KindTCPing, k)

	_, err = ParseKind("traceroute")
	assert.Error(t, err)
	assert.False(t, Kind(9).Valid())
}

func TestResponse_Decoders(t *testing.T) {
	resp := &Response{OK: true, Result: &Result{
		Resolved: "1.1.1.1",
		Data:     []byte(`[[{"code":258,"latency":1.5,"address":"10.0.0.1","rdns":"gw"}],[null,{"code":257,"latency":9,"address":"1.1.1.1","rdns":""}]]`),
	}}

	rounds, err := resp.MTRRounds()
	require.NoError(t, err)
	require.Len(t, rounds, 2)
	assert.Nil(t, rounds[1][0])
	assert.Equal(t, "1.1.1.1", rounds[1][1].Address)

	_, err = resp.PingSamples()
	assert.ErrorIs(t, err, ErrMalformedResult)

	_, err = (&Response{OK: true}).Addresses()
	assert.ErrorIs(t, err, ErrMalformedResult)
}
