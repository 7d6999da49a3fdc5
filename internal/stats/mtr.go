package stats

import (
	"math"
	"slices"

	"github.com/EternisAI/netmeasure/internal/probe"
)

// HopStats aggregates one TTL position across every MTR round. Loss is a
// fraction in [0, 1].
type HopStats struct {
	Hop       int      `json:"hop"`
	Addresses []string `json:"address"`
	RDNS      []string `json:"rdns"`
	Location  string   `json:"location"`
	Received  int      `json:"received"`
	Lost      int      `json:"lossed"`
	Loss      float64  `json:"loss"`
	Avg       float64  `json:"avg"`
	Best      float64  `json:"best"`
	Worst     float64  `json:"worst"`
	StDev     float64  `json:"sdev"`
}

func answered(code int) bool {
	return code == probe.CodeEchoReply || code == probe.CodeTimeExceeded
}

// SummarizeMTR aligns rounds by hop index. Rounds may differ in length;
// missing trailing hops count as no sample at all, not as loss.
func SummarizeMTR(rounds [][]*probe.HopSample) []HopStats {
	hops := 0
	for _, r := range rounds {
		hops = max(hops, len(r))
	}

	result := make([]HopStats, hops)
	for i := range result {
		result[i] = summarizeHop(i, rounds)
	}
	return result
}

func summarizeHop(idx int, rounds [][]*probe.HopSample) HopStats {
	h := HopStats{
		Hop:       idx + 1,
		Addresses: []string{},
		RDNS:      []string{},
	}

	var latencies []float64
	for _, round := range rounds {
		if idx >= len(round) || round[idx] == nil {
			continue
		}
		s := round[idx]

		if answered(s.Code) {
			h.Received++
			latencies = append(latencies, s.Latency)
		} else {
			h.Lost++
		}

		if s.Address != "" && !slices.Contains(h.Addresses, s.Address) {
			h.Addresses = append(h.Addresses, s.Address)
			h.RDNS = append(h.RDNS, s.RDNS)
		}
	}

	if n := h.Received + h.Lost; n > 0 {
		h.Loss = float64(h.Lost) / float64(n)
	} else {
		h.Loss = 1
	}

	if len(latencies) > 0 {
		var sum float64
		h.Best, h.Worst = math.Inf(1), math.Inf(-1)
		for _, l := range latencies {
			sum += l
			h.Best = math.Min(h.Best, l)
			h.Worst = math.Max(h.Worst, l)
		}
		h.Avg = sum / float64(len(latencies))
	}
	h.StDev = sampleStdDev(latencies)

	if len(h.Addresses) == 0 {
		h.Addresses = append(h.Addresses, "")
		h.RDNS = append(h.RDNS, "")
		h.Best = 0
	}
	return h
}

func sampleStdDev(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(n)

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(n-1))
}
