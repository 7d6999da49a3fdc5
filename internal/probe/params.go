package probe

import (
	"math/rand/v2"
	"time"
)

// Family selects the address family a node should use. Zero lets the node
// pick.
type Family int

const (
	FamilyAny Family = 0
	FamilyV4  Family = 4
	FamilyV6  Family = 6
)

func (f Family) Valid() bool {
	return f == FamilyAny || f == FamilyV4 || f == FamilyV6
}

// Tag is stamped onto every outgoing request. The nonce only tags the
// request; it plays no part in handshake replay protection.
type Tag struct {
	Stamp int64  `json:"stamp"`
	Nonce uint32 `json:"nonce"`
}

func NewTag(now time.Time) Tag {
	return Tag{
		Stamp: now.Unix(),
		Nonce: rand.Uint32(),
	}
}

type ResolveParams struct {
	Address string `json:"address"`
	Family  Family `json:"family"`
	Wait    int    `json:"wait"`
	Tag
}

type PingParams struct {
	Address  string `json:"address"`
	Family   Family `json:"family"`
	Wait     int    `json:"wait"`
	Interval int    `json:"interval"`
	Times    int    `json:"times"`
	Tag
}

type TCPingParams struct {
	Address  string `json:"address"`
	Family   Family `json:"family"`
	Port     int    `json:"port"`
	Wait     int    `json:"wait"`
	Interval int    `json:"interval"`
	Times    int    `json:"times"`
	Tag
}

type MTRParams struct {
	Address  string `json:"address"`
	Family   Family `json:"family"`
	Wait     int    `json:"wait"`
	Interval int    `json:"interval"`
	Times    int    `json:"times"`
	MaxHop   int    `json:"max_hop"`
	RDNS     bool   `json:"rdns"`
	Tag
}

// SpeedParams describes a download test. Span and Interval are in
// milliseconds.
type SpeedParams struct {
	URL      string `json:"url"`
	Family   Family `json:"family"`
	Wait     int    `json:"wait"`
	Span     int    `json:"span"`
	Interval int    `json:"interval"`
	Tag
}
