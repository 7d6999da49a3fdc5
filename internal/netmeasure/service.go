package netmeasure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/EternisAI/netmeasure/internal/nodes"
	"github.com/EternisAI/netmeasure/internal/probe"
	"github.com/EternisAI/netmeasure/internal/stats"
)

const DefaultNode = "FJ"

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNodeNotFound    = nodes.ErrNodeNotFound
	ErrRequestFailed   = probe.ErrRequestFailed
)

// ProbeError is returned when the node answered but reported the probe as
// unsuccessful.
type ProbeError struct {
	Node string
	Kind probe.Kind
	Info string
}

func (e *ProbeError) Error() string {
	if e.Info == "" {
		return fmt.Sprintf("%s on %s failed", e.Kind, e.Node)
	}
	return fmt.Sprintf("%s on %s failed: %s", e.Kind, e.Node, e.Info)
}

// Outcome is one finished probe as handed to a Recorder.
type Outcome struct {
	Node      string
	Kind      probe.Kind
	Target    string
	OK        bool
	Summary   any
	CreatedAt time.Time
}

type Recorder interface {
	Record(ctx context.Context, o Outcome) error
}

// Locator annotates a hop address with a short place name.
type Locator interface {
	Locate(addr string) string
}

type NodeLookup interface {
	Lookup(name string) (probe.Agent, error)
	List() []nodes.Info
}

// Served names the node that ran a probe. Every result embeds it.
type Served struct {
	Node string `json:"node"`
}

func (s Served) NodeName() string {
	return s.Node
}

type ResolveResult struct {
	Served
	Addresses []string `json:"addresses"`
}

type MTRResult struct {
	Served
	Resolved string           `json:"resolved"`
	Hops     []stats.HopStats `json:"hops"`
}

type LatencyResult struct {
	Served
	stats.LatencySummary
}

type SpeedResult struct {
	Served
	stats.SpeedSummary
}

type Service struct {
	nodes       NodeLookup
	defaultNode string
	recorder    Recorder
	locator     Locator
	now         func() time.Time
}

// NewService builds the operator service. recorder may be nil.
func NewService(lookup NodeLookup, defaultNode string, recorder Recorder) *Service {
	if defaultNode == "" {
		defaultNode = DefaultNode
	}
	return &Service{
		nodes:       lookup,
		defaultNode: strings.ToUpper(defaultNode),
		recorder:    recorder,
		now:         time.Now,
	}
}

// WithLocator enables hop locations in MTR results.
func (s *Service) WithLocator(l Locator) *Service {
	s.locator = l
	return s
}

func (s *Service) Nodes() []nodes.Info {
	return s.nodes.List()
}

func (s *Service) DefaultNode() string {
	return s.defaultNode
}

func (s *Service) agent(name string) (probe.Agent, error) {
	if strings.TrimSpace(name) == "" {
		name = s.defaultNode
	}
	return s.nodes.Lookup(name)
}

func validate(target string, family probe.Family) error {
	if strings.TrimSpace(target) == "" {
		return fmt.Errorf("%w: target is required", ErrInvalidArgument)
	}
	if !family.Valid() {
		return fmt.Errorf("%w: family must be 0, 4 or 6", ErrInvalidArgument)
	}
	return nil
}

func (s *Service) check(agent probe.Agent, kind probe.Kind, resp *probe.Response, err error) error {
	if err != nil {
		return err
	}
	if resp == nil {
		return ErrRequestFailed
	}
	if !resp.OK {
		return &ProbeError{Node: agent.Name(), Kind: kind, Info: resp.Info}
	}
	return nil
}

// decodeFailed maps a malformed result to the generic failure.
func decodeFailed(agent probe.Agent, kind probe.Kind, err error) error {
	slog.Warn("Malformed probe result", "node", agent.Name(), "kind", kind, "error", err)
	return errors.Join(ErrRequestFailed, err)
}

func (s *Service) record(ctx context.Context, agent probe.Agent, kind probe.Kind, target string, err error, summary any) {
	if s.recorder == nil {
		return
	}

	o := Outcome{
		Node:      agent.Name(),
		Kind:      kind,
		Target:    target,
		OK:        err == nil,
		Summary:   summary,
		CreatedAt: s.now(),
	}
	var pe *ProbeError
	if errors.As(err, &pe) {
		o.Summary = map[string]string{"info": pe.Info}
	} else if err != nil {
		o.Summary = map[string]string{"error": ErrRequestFailed.Error()}
	}

	if recErr := s.recorder.Record(ctx, o); recErr != nil {
		slog.Warn("Failed to record probe outcome", "node", o.Node, "kind", kind, "error", recErr)
	}
}

func (s *Service) Resolve(ctx context.Context, opts ResolveOptions) (*ResolveResult, error) {
	if err := validate(opts.Address, opts.Family); err != nil {
		return nil, err
	}
	agent, err := s.agent(opts.Node)
	if err != nil {
		return nil, err
	}

	resp, err := agent.Resolve(ctx, opts.params())
	result, err := func() (*ResolveResult, error) {
		if err := s.check(agent, probe.KindResolve, resp, err); err != nil {
			return nil, err
		}
		addrs, err := resp.Addresses()
		if err != nil {
			return nil, decodeFailed(agent, probe.KindResolve, err)
		}
		return &ResolveResult{Served: Served{Node: agent.Name()}, Addresses: addrs}, nil
	}()

	s.record(ctx, agent, probe.KindResolve, opts.Address, err, result)
	return result, err
}

func (s *Service) Ping(ctx context.Context, opts PingOptions) (*LatencyResult, error) {
	if err := validate(opts.Address, opts.Family); err != nil {
		return nil, err
	}
	agent, err := s.agent(opts.Node)
	if err != nil {
		return nil, err
	}

	params := opts.params()
	resp, err := agent.Ping(ctx, params)
	summary, err := func() (*LatencyResult, error) {
		if err := s.check(agent, probe.KindPing, resp, err); err != nil {
			return nil, err
		}
		samples, err := resp.PingSamples()
		if err != nil {
			return nil, decodeFailed(agent, probe.KindPing, err)
		}
		return &LatencyResult{
			Served:         Served{Node: agent.Name()},
			LatencySummary: stats.SummarizePing(resp.Result.Resolved, samples, float64(params.Wait)),
		}, nil
	}()

	s.record(ctx, agent, probe.KindPing, opts.Address, err, summary)
	return summary, err
}

func (s *Service) TCPing(ctx context.Context, opts TCPingOptions) (*LatencyResult, error) {
	if err := validate(opts.Address, opts.Family); err != nil {
		return nil, err
	}
	if opts.Port < 1 || opts.Port > 65535 {
		return nil, fmt.Errorf("%w: port must be between 1 and 65535", ErrInvalidArgument)
	}
	agent, err := s.agent(opts.Node)
	if err != nil {
		return nil, err
	}

	params := opts.params()
	target := fmt.Sprintf("%s:%d", opts.Address, opts.Port)
	resp, err := agent.TCPing(ctx, params)
	summary, err := func() (*LatencyResult, error) {
		if err := s.check(agent, probe.KindTCPing, resp, err); err != nil {
			return nil, err
		}
		samples, err := resp.TCPingSamples()
		if err != nil {
			return nil, decodeFailed(agent, probe.KindTCPing, err)
		}
		return &LatencyResult{
			Served:         Served{Node: agent.Name()},
			LatencySummary: stats.SummarizeTCPing(resp.Result.Resolved, samples, float64(params.Wait)),
		}, nil
	}()

	s.record(ctx, agent, probe.KindTCPing, target, err, summary)
	return summary, err
}

func (s *Service) MTR(ctx context.Context, opts MTROptions) (*MTRResult, error) {
	if err := validate(opts.Address, opts.Family); err != nil {
		return nil, err
	}
	agent, err := s.agent(opts.Node)
	if err != nil {
		return nil, err
	}

	resp, err := agent.MTR(ctx, opts.params())
	result, err := func() (*MTRResult, error) {
		if err := s.check(agent, probe.KindMTR, resp, err); err != nil {
			return nil, err
		}
		rounds, err := resp.MTRRounds()
		if err != nil {
			return nil, decodeFailed(agent, probe.KindMTR, err)
		}
		hops := stats.SummarizeMTR(rounds)
		s.locate(hops)
		return &MTRResult{
			Served:   Served{Node: agent.Name()},
			Resolved: resp.Result.Resolved,
			Hops:     hops,
		}, nil
	}()

	s.record(ctx, agent, probe.KindMTR, opts.Address, err, result)
	return result, err
}

func (s *Service) Speed(ctx context.Context, opts SpeedOptions) (*SpeedResult, error) {
	if err := validate(opts.URL, opts.Family); err != nil {
		return nil, err
	}
	agent, err := s.agent(opts.Node)
	if err != nil {
		return nil, err
	}

	resp, err := agent.Speed(ctx, opts.params())
	summary, err := func() (*SpeedResult, error) {
		if err := s.check(agent, probe.KindSpeed, resp, err); err != nil {
			return nil, err
		}
		samples, err := resp.SpeedSamples()
		if err != nil {
			return nil, decodeFailed(agent, probe.KindSpeed, err)
		}
		return &SpeedResult{
			Served:       Served{Node: agent.Name()},
			SpeedSummary: stats.SummarizeSpeed(resp.Result, samples),
		}, nil
	}()

	s.record(ctx, agent, probe.KindSpeed, opts.URL, err, summary)
	return summary, err
}

func (s *Service) locate(hops []stats.HopStats) {
	if s.locator == nil {
		return
	}
	for i := range hops {
		if len(hops[i].Addresses) > 0 && hops[i].Addresses[0] != "" {
			hops[i].Location = s.locator.Locate(hops[i].Addresses[0])
		}
	}
}
