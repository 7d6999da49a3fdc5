package netmeasure

import "github.com/EternisAI/netmeasure/internal/probe"

// Options are what an operator asks for. Zero values take the defaults
// below; out-of-range values are clamped.
type ResolveOptions struct {
	Node    string       `json:"node"`
	Address string       `json:"address" binding:"required"`
	Family  probe.Family `json:"family"`
	Wait    int          `json:"wait"`
}

type PingOptions struct {
	Node     string       `json:"node"`
	Address  string       `json:"address" binding:"required"`
	Family   probe.Family `json:"family"`
	Count    int          `json:"count"`
	Interval int          `json:"interval"`
	Wait     int          `json:"wait"`
}

type TCPingOptions struct {
	Node     string       `json:"node"`
	Address  string       `json:"address" binding:"required"`
	Port     int          `json:"port" binding:"required,min=1,max=65535"`
	Family   probe.Family `json:"family"`
	Count    int          `json:"count"`
	Interval int          `json:"interval"`
	Wait     int          `json:"wait"`
}

// MTROptions.Count is a pointer: an omitted count runs a single round, an
// explicit count goes through the same clamp as ping.
type MTROptions struct {
	Node     string       `json:"node"`
	Address  string       `json:"address" binding:"required"`
	Family   probe.Family `json:"family"`
	Count    *int         `json:"count"`
	Interval int          `json:"interval"`
	Wait     int          `json:"wait"`
	MaxHop   int          `json:"max_hop"`
}

type SpeedOptions struct {
	Node     string       `json:"node"`
	URL      string       `json:"url" binding:"required"`
	Family   probe.Family `json:"family"`
	Span     int          `json:"span"`
	Interval int          `json:"interval"`
	Wait     int          `json:"wait"`
}

const (
	defaultResolveWait = 2000
	maxResolveWait     = 10000

	defaultCount    = 5
	maxCount        = 100
	defaultInterval = 1000
	defaultWait     = 2000
	defaultMaxHop   = 30
	defaultMTRCount = 1

	defaultSpeedSpan     = 30000
	defaultSpeedInterval = 250
	defaultSpeedWait     = 10000
)

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func clampCount(n int) int {
	return min(orDefault(n, defaultCount), maxCount)
}

func (o ResolveOptions) params() probe.ResolveParams {
	return probe.ResolveParams{
		Address: o.Address,
		Family:  o.Family,
		Wait:    min(orDefault(o.Wait, defaultResolveWait), maxResolveWait),
	}
}

func (o PingOptions) params() probe.PingParams {
	return probe.PingParams{
		Address:  o.Address,
		Family:   o.Family,
		Wait:     orDefault(o.Wait, defaultWait),
		Interval: orDefault(o.Interval, defaultInterval),
		Times:    clampCount(o.Count),
	}
}

func (o TCPingOptions) params() probe.TCPingParams {
	return probe.TCPingParams{
		Address:  o.Address,
		Family:   o.Family,
		Port:     o.Port,
		Wait:     orDefault(o.Wait, defaultWait),
		Interval: orDefault(o.Interval, defaultInterval),
		Times:    clampCount(o.Count),
	}
}

func (o MTROptions) params() probe.MTRParams {
	times := defaultMTRCount
	if o.Count != nil {
		times = clampCount(*o.Count)
	}
	return probe.MTRParams{
		Address:  o.Address,
		Family:   o.Family,
		Wait:     orDefault(o.Wait, defaultWait),
		Interval: orDefault(o.Interval, defaultInterval),
		Times:    times,
		MaxHop:   orDefault(o.MaxHop, defaultMaxHop),
		RDNS:     true,
	}
}

func (o SpeedOptions) params() probe.SpeedParams {
	return probe.SpeedParams{
		URL:      o.URL,
		Family:   o.Family,
		Wait:     orDefault(o.Wait, defaultSpeedWait),
		Span:     orDefault(o.Span, defaultSpeedSpan),
		Interval: orDefault(o.Interval, defaultSpeedInterval),
	}
}
