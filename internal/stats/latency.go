package stats

import (
	"math"

	"github.com/EternisAI/netmeasure/internal/probe"
)

// LatencySummary is the result of a ping or tcping run. Latencies are in
// milliseconds, LossPercent in [0, 100].
type LatencySummary struct {
	Resolved    string  `json:"resolved"`
	Total       int     `json:"total"`
	Success     int     `json:"success"`
	LossPercent float64 `json:"loss_percent"`
	Avg         float64 `json:"avg"`
	Max         float64 `json:"max"`
	Min         float64 `json:"min"`
	Jitter      float64 `json:"jitter"`
}

// SummarizePing treats a sample as answered when its code is an echo reply.
// wait is the per-probe timeout the run was issued with; it stands in for
// every latency field when nothing answered.
func SummarizePing(resolved string, samples []probe.PingSample, wait float64) LatencySummary {
	acc := newLatencyAcc(len(samples))
	for _, s := range samples {
		if s.Code == probe.CodeEchoReply {
			acc.add(s.Latency)
		}
	}
	return acc.summary(resolved, wait)
}

func SummarizeTCPing(resolved string, samples []probe.TCPingSample, wait float64) LatencySummary {
	acc := newLatencyAcc(len(samples))
	for _, s := range samples {
		if s.Success {
			acc.add(s.Latency)
		}
	}
	return acc.summary(resolved, wait)
}

type latencyAcc struct {
	total   int
	success int
	sum     float64
	max     float64
	min     float64
}

func newLatencyAcc(total int) *latencyAcc {
	return &latencyAcc{total: total, min: math.Inf(1), max: math.Inf(-1)}
}

func (a *latencyAcc) add(latency float64) {
	a.success++
	a.sum += latency
	a.max = math.Max(a.max, latency)
	a.min = math.Min(a.min, latency)
}

func (a *latencyAcc) summary(resolved string, wait float64) LatencySummary {
	s := LatencySummary{
		Resolved: resolved,
		Total:    a.total,
		Success:  a.success,
	}

	if a.total > 0 {
		s.LossPercent = Round2(float64(a.total-a.success) / float64(a.total) * 100)
	} else {
		s.LossPercent = 100
	}

	if a.success == 0 {
		s.Avg, s.Max, s.Min = wait, wait, wait
		return s
	}

	s.Avg = Round2(a.sum / float64(a.success))
	s.Max = Round2(a.max)
	s.Min = Round2(a.min)
	s.Jitter = Round2(a.max - a.min)
	return s
}

// Round2 rounds half away from zero to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
