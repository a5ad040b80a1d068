package ridelab

import "math"

// npWindowSamples is the rolling window length for normalized power.
const npWindowSamples = 30

// PowerCurvePoint is the best average power held for one duration.
type PowerCurvePoint struct {
	DurationS int     `json:"duration_s"`
	AvgPowerW float64 `json:"avg_power_w"`
}

// powerCurveDurations are the standard best-effort windows in seconds.
var powerCurveDurations = []int{5, 10, 30, 60, 300, 600, 1200, 1800, 3600}

// normalizedPower computes the 30-sample rolling fourth-power mean of
// the power samples and takes its fourth root. Fewer than 30 usable
// samples returns 0, meaning unavailable.
func normalizedPower(samples []float64, interval float64) float64 {
	usable := finiteValues(samples)
	window := windowSamples(npWindowSamples, interval)
	if len(usable) < window || window < 1 {
		return 0
	}

	sum := 0.0
	for i := 0; i < window; i++ {
		sum += usable[i]
	}

	fourthTotal := 0.0
	count := 0
	for i := window - 1; i < len(usable); i++ {
		if i >= window {
			sum += usable[i] - usable[i-window]
		}
		rolling := sum / float64(window)
		fourthTotal += math.Pow(rolling, 4)
		count++
	}
	if count == 0 {
		return 0
	}
	return math.Pow(fourthTotal/float64(count), 0.25)
}

// bestRollingPower finds the highest average power over a window of the
// given seconds. Activities shorter than the window return 0.
func bestRollingPower(samples []float64, seconds int, interval float64) float64 {
	usable := finiteValues(samples)
	window := windowSamples(seconds, interval)
	if window < 1 || len(usable) < window {
		return 0
	}

	sum := 0.0
	for i := 0; i < window; i++ {
		sum += usable[i]
	}
	best := sum / float64(window)
	for i := window; i < len(usable); i++ {
		sum += usable[i] - usable[i-window]
		current := sum / float64(window)
		if current > best {
			best = current
		}
	}
	return best
}

// powerCurve computes best average power for each standard duration that
// fits inside the activity.
func powerCurve(samples []float64, interval float64) []PowerCurvePoint {
	curve := make([]PowerCurvePoint, 0, len(powerCurveDurations))
	for _, seconds := range powerCurveDurations {
		best := bestRollingPower(samples, seconds, interval)
		if best <= 0 {
			continue
		}
		curve = append(curve, PowerCurvePoint{DurationS: seconds, AvgPowerW: best})
	}
	return curve
}

// estimateFTP derives functional threshold power as 95% of the best
// 20-minute power. Returns 0 when the activity is shorter than 20
// minutes of usable power data.
func estimateFTP(samples []float64, interval float64) float64 {
	best20 := bestRollingPower(samples, 20*60, interval)
	if best20 <= 0 {
		return 0
	}
	return best20 * 0.95
}

// windowSamples converts a duration in seconds to a sample count on a
// uniformly spaced axis.
func windowSamples(seconds int, interval float64) int {
	if interval <= 0 {
		interval = 1.0
	}
	return int(math.Round(float64(seconds) / interval))
}

// finiteValues returns the in-order subsequence of finite samples.
func finiteValues(samples []float64) []float64 {
	out := make([]float64, 0, len(samples))
	for _, v := range samples {
		if isFinite(v) {
			out = append(out, v)
		}
	}
	return out
}
