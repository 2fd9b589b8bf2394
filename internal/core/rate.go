package core

import (
	"math"
	"time"
)

const (
	// A window is stable when the rate stddev stays under 15% of the mean
	// and mean jitter under 20% of the expected interval.
	rateStabilityThreshold   = 0.15
	jitterStabilityThreshold = 0.20
)

// RateStats summarizes frame arrival times over one stats window.
type RateStats struct {
	Frames     int
	Window     time.Duration
	FPSMean    float64
	FPSStdDev  float64
	FPSMin     float64
	FPSMax     float64
	JitterMean time.Duration
	JitterMax  time.Duration
	IsStable   bool
}

// MeasureRate computes rate statistics for frames seen at times during window.
func MeasureRate(times []time.Time, window time.Duration) RateStats {
	stats := RateStats{Frames: len(times), Window: window}
	if len(times) == 0 || window <= 0 {
		return stats
	}
	stats.FPSMean = float64(len(times)) / window.Seconds()

	intervals := make([]float64, 0, len(times)-1)
	for i := 1; i < len(times); i++ {
		if d := times[i].Sub(times[i-1]).Seconds(); d > 0 {
			intervals = append(intervals, d)
		}
	}
	if len(intervals) == 0 {
		return stats
	}

	stats.FPSMin, stats.FPSMax = math.Inf(1), 0
	var sumSquares float64
	for _, d := range intervals {
		fps := 1 / d
		stats.FPSMin = math.Min(stats.FPSMin, fps)
		stats.FPSMax = math.Max(stats.FPSMax, fps)
		sumSquares += (fps - stats.FPSMean) * (fps - stats.FPSMean)
	}
	stats.FPSStdDev = math.Sqrt(sumSquares / float64(len(intervals)))

	expected := 1 / stats.FPSMean
	var jitterSum, jitterMax float64
	for _, d := range intervals {
		j := math.Abs(d - expected)
		jitterSum += j
		jitterMax = math.Max(jitterMax, j)
	}
	jitterMean := jitterSum / float64(len(intervals))
	stats.JitterMean = time.Duration(jitterMean * float64(time.Second))
	stats.JitterMax = time.Duration(jitterMax * float64(time.Second))

	stats.IsStable = stats.FPSStdDev < stats.FPSMean*rateStabilityThreshold &&
		jitterMean < expected*jitterStabilityThreshold

	return stats
}
