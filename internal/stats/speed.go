package stats

import (
	"fmt"

	"github.com/EternisAI/netmeasure/internal/probe"
)

// SpeedPoint is the throughput of the segment ending at Second.
type SpeedPoint struct {
	Second float64 `json:"point"`
	Mbps   float64 `json:"received"`
}

type SpeedSummary struct {
	Resolved      string       `json:"ip"`
	Latency       *float64     `json:"latency"`
	ReceivedBytes float64      `json:"received_bytes"`
	Received      string       `json:"received"`
	ElapsedMs     float64      `json:"elapsed_ms"`
	AverageMbps   float64      `json:"average"`
	Points        []SpeedPoint `json:"data"`
}

// Throughput converts a byte delta over a millisecond span to Mbps.
func Throughput(bytes, millis float64) float64 {
	if millis <= 0 {
		return 0
	}
	return 8 * bytes / millis / 1000
}

// SpeedSeries computes per-segment throughput from cumulative byte counts.
// The first segment is measured from zero bytes at time zero.
func SpeedSeries(samples []probe.SpeedSample) []SpeedPoint {
	points := make([]SpeedPoint, 0, len(samples))
	var lastPoint, lastReceived float64
	for _, s := range samples {
		points = append(points, SpeedPoint{
			Second: Round2(s.Point / 1000),
			Mbps:   Round2(Throughput(s.Received-lastReceived, s.Point-lastPoint)),
		})
		lastPoint, lastReceived = s.Point, s.Received
	}
	return points
}

// SummarizeSpeed takes the totals from the result when the node reported
// them and from the last sample otherwise.
func SummarizeSpeed(result *probe.Result, samples []probe.SpeedSample) SpeedSummary {
	s := SpeedSummary{Points: SpeedSeries(samples)}
	if result != nil {
		s.Resolved = result.Resolved
		s.Latency = result.Latency
		s.ReceivedBytes = result.Received
		s.ElapsedMs = result.Elapsed
	}
	if n := len(samples); n > 0 {
		if s.ReceivedBytes == 0 {
			s.ReceivedBytes = samples[n-1].Received
		}
		if s.ElapsedMs == 0 {
			s.ElapsedMs = samples[n-1].Point
		}
	}
	s.Received = FormatBytes(s.ReceivedBytes)
	s.AverageMbps = Round2(Throughput(s.ReceivedBytes, s.ElapsedMs))
	return s
}

var byteUnits = []string{"B", "KB", "MB", "GB", "TB", "PB"}

// FormatBytes renders a byte count with binary prefixes, e.g. 1536 as
// "1.50 KB".
func FormatBytes(n float64) string {
	i := 0
	for n >= 1024 && i < len(byteUnits)-1 {
		n /= 1024
		i++
	}
	return fmt.Sprintf("%.2f %s", n, byteUnits[i])
}
