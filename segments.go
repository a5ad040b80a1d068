package ridelab

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
)

// SegmentKind tags what a detected segment represents.
type SegmentKind string

const (
	SegmentClimb  SegmentKind = "climb"
	SegmentEffort SegmentKind = "effort"
)

// Segment is one maximal contiguous climb or high-effort range within a
// stream. Index bounds are inclusive positions on the stream's time axis.
type Segment struct {
	Kind           SegmentKind `json:"kind"`
	StartIndex     int         `json:"start_index"`
	EndIndex       int         `json:"end_index"`
	StartOffsetS   float64     `json:"start_offset_s"`
	EndOffsetS     float64     `json:"end_offset_s"`
	DurationS      float64     `json:"duration_s"`
	AvgGradePct    *float64    `json:"avg_grade_pct,omitempty"`
	AvgHeartRate   *float64    `json:"avg_heart_rate_bpm,omitempty"`
	PeakHeartRate  *float64    `json:"peak_heart_rate_bpm,omitempty"`
	AvgPowerW      *float64    `json:"avg_power_w,omitempty"`
	PeakPowerW     *float64    `json:"peak_power_w,omitempty"`
	AvgSpeedMps    *float64    `json:"avg_speed_mps,omitempty"`
	ElevationGainM *float64    `json:"elevation_gain_m,omitempty"`
}

// DetectorConfig carries the smoothing and threshold settings for
// segment detection. Setting an effort threshold to zero disables that
// intensity trigger; the grade trigger is disabled the same way.
type DetectorConfig struct {
	SmoothingWindow   int     // samples in the centered moving average
	GradeThresholdPct float64 // smoothed grade above this counts as climbing
	EffortPowerW      float64 // effort threshold when power drives intensity
	EffortHeartRate   float64 // effort threshold when heart rate drives intensity
	MinDurationS      float64 // runs shorter than this are discarded
	MergeGapS         float64 // same-kind runs separated by less than this merge
}

// Detector finds climb and effort segments in aligned streams. It is
// stateless across Detect calls and safe for concurrent use.
type Detector struct {
	cfg DetectorConfig
	log zerolog.Logger
}

// NewDetector validates the configuration and returns a ready detector.
// Pass zerolog.Nop() to silence invariant-violation reports.
func NewDetector(cfg DetectorConfig, log zerolog.Logger) (*Detector, error) {
	if cfg.SmoothingWindow < 1 {
		return nil, fmt.Errorf("smoothing window must be at least 1 sample, got %d", cfg.SmoothingWindow)
	}
	if cfg.GradeThresholdPct < 0 {
		return nil, fmt.Errorf("grade threshold must not be negative, got %g", cfg.GradeThresholdPct)
	}
	if cfg.EffortPowerW < 0 {
		return nil, fmt.Errorf("effort power threshold must not be negative, got %g", cfg.EffortPowerW)
	}
	if cfg.EffortHeartRate < 0 {
		return nil, fmt.Errorf("effort heart rate threshold must not be negative, got %g", cfg.EffortHeartRate)
	}
	if cfg.MinDurationS < 0 {
		return nil, fmt.Errorf("minimum segment duration must not be negative, got %g", cfg.MinDurationS)
	}
	if cfg.MergeGapS < 0 {
		return nil, fmt.Errorf("merge gap must not be negative, got %g", cfg.MergeGapS)
	}
	return &Detector{cfg: cfg, log: log}, nil
}

// run is a contiguous index range with its provisional classification.
type run struct {
	start int
	end   int
	kind  SegmentKind
}

// Detect runs the full detection pass: smooth, trigger, collapse into
// runs, classify, merge across short gaps, drop short runs, and derive
// per-segment metrics. Output is ordered by start index and segments of
// one kind never overlap. The pass is deterministic: the same stream and
// configuration always produce identical boundaries.
func (d *Detector) Detect(stream *ActivityStream) []Segment {
	n := stream.Len()
	if n == 0 {
		return nil
	}

	climb := make([]bool, n)
	var smoothGrade []float64
	if grade, err := stream.Metric(MetricGrade); err == nil && d.cfg.GradeThresholdPct > 0 {
		smoothGrade = movingAverage(grade, d.cfg.SmoothingWindow)
		for i, v := range smoothGrade {
			climb[i] = isFinite(v) && v > d.cfg.GradeThresholdPct
		}
	}

	effort := make([]bool, n)
	intensity, intensityThreshold := d.intensitySignal(stream)
	var smoothIntensity []float64
	if intensity != nil {
		smoothIntensity = movingAverage(intensity, d.cfg.SmoothingWindow)
		for i, v := range smoothIntensity {
			effort[i] = isFinite(v) && v > intensityThreshold
		}
	}

	runs := collapseRuns(climb, effort)
	for i := range runs {
		runs[i].kind = d.classifyRun(runs[i], climb, effort, smoothGrade, smoothIntensity, intensityThreshold)
	}
	runs = mergeRuns(runs, stream.Time, d.cfg.MergeGapS)
	runs = dropShortRuns(runs, stream.Time, d.cfg.MinDurationS)

	segments := make([]Segment, 0, len(runs))
	for _, r := range runs {
		segments = append(segments, buildSegment(stream, r))
	}
	return d.dropInvalidSegments(stream, segments)
}

// intensitySignal picks the effort signal: power when present and its
// threshold is enabled, otherwise heart rate.
func (d *Detector) intensitySignal(stream *ActivityStream) ([]float64, float64) {
	if d.cfg.EffortPowerW > 0 {
		if power, err := stream.Metric(MetricPower); err == nil {
			return power, d.cfg.EffortPowerW
		}
	}
	if d.cfg.EffortHeartRate > 0 {
		if hr, err := stream.Metric(MetricHeartRate); err == nil {
			return hr, d.cfg.EffortHeartRate
		}
	}
	return nil, 0
}

// collapseRuns turns the per-sample triggers into maximal contiguous
// runs where at least one trigger holds.
func collapseRuns(climb, effort []bool) []run {
	runs := make([]run, 0)
	start := -1
	for i := range climb {
		active := climb[i] || effort[i]
		if active && start < 0 {
			start = i
		}
		if !active && start >= 0 {
			runs = append(runs, run{start: start, end: i - 1})
			start = -1
		}
	}
	if start >= 0 {
		runs = append(runs, run{start: start, end: len(climb) - 1})
	}
	return runs
}

// classifyRun decides climb vs effort for one run. A single dominant
// trigger names the kind directly. When both triggers are active for a
// majority of the run, the kind follows whichever signal's run average
// exceeds its threshold by the larger relative margin; an exact tie
// resolves to climb so the result stays deterministic.
func (d *Detector) classifyRun(r run, climb, effort []bool, smoothGrade, smoothIntensity []float64, intensityThreshold float64) SegmentKind {
	climbCount := 0
	effortCount := 0
	for i := r.start; i <= r.end; i++ {
		if climb[i] {
			climbCount++
		}
		if effort[i] {
			effortCount++
		}
	}

	length := r.end - r.start + 1
	majority := length/2 + 1
	bothDominant := climbCount >= majority && effortCount >= majority
	if !bothDominant && climbCount != effortCount {
		if climbCount > effortCount {
			return SegmentClimb
		}
		return SegmentEffort
	}

	gradeMargin := relativeMargin(avgRange(smoothGrade, r.start, r.end), d.cfg.GradeThresholdPct)
	intensityMargin := relativeMargin(avgRange(smoothIntensity, r.start, r.end), intensityThreshold)
	if gradeMargin >= intensityMargin {
		return SegmentClimb
	}
	return SegmentEffort
}

// relativeMargin measures how far avg sits above threshold, relative to
// the threshold itself.
func relativeMargin(avg *float64, threshold float64) float64 {
	if avg == nil || threshold <= 0 {
		return math.Inf(-1)
	}
	return (*avg - threshold) / threshold
}

// mergeRuns combines adjacent same-kind runs separated by less than the
// merge gap, absorbing brief signal dropouts inside one physical effort.
// A merged run can in turn merge with its successor.
func mergeRuns(runs []run, times []float64, mergeGapS float64) []run {
	if len(runs) < 2 {
		return runs
	}
	merged := make([]run, 0, len(runs))
	current := runs[0]
	for _, next := range runs[1:] {
		gap := times[next.start] - times[current.end]
		if next.kind == current.kind && gap < mergeGapS {
			current.end = next.end
			continue
		}
		merged = append(merged, current)
		current = next
	}
	return append(merged, current)
}

// dropShortRuns removes runs whose time span is below the minimum
// segment duration.
func dropShortRuns(runs []run, times []float64, minDurationS float64) []run {
	kept := runs[:0]
	for _, r := range runs {
		if times[r.end]-times[r.start] >= minDurationS {
			kept = append(kept, r)
		}
	}
	return kept
}

// buildSegment derives the reported metrics for one retained run from
// the raw (unsmoothed) columns.
func buildSegment(stream *ActivityStream, r run) Segment {
	seg := Segment{
		Kind:         r.kind,
		StartIndex:   r.start,
		EndIndex:     r.end,
		StartOffsetS: stream.Time[r.start],
		EndOffsetS:   stream.Time[r.end],
		DurationS:    stream.Time[r.end] - stream.Time[r.start],
	}
	seg.AvgGradePct = avgRange(stream.Grade, r.start, r.end)
	seg.AvgHeartRate = avgRange(stream.HeartRate, r.start, r.end)
	seg.PeakHeartRate = maxRange(stream.HeartRate, r.start, r.end)
	seg.AvgPowerW = avgRange(stream.Power, r.start, r.end)
	seg.PeakPowerW = maxRange(stream.Power, r.start, r.end)
	seg.AvgSpeedMps = avgRange(stream.Speed, r.start, r.end)
	seg.ElevationGainM = elevationGainRange(stream.Altitude, r.start, r.end)
	return seg
}

// dropInvalidSegments enforces the ordering invariants on the final
// list. A violation is a defect in the detector itself, so it is logged
// and the offending segment dropped instead of failing the activity.
func (d *Detector) dropInvalidSegments(stream *ActivityStream, segments []Segment) []Segment {
	kept := segments[:0]
	lastEnd := map[SegmentKind]int{}
	for _, seg := range segments {
		if seg.EndIndex < seg.StartIndex {
			d.log.Error().
				Str("activity_id", stream.ActivityID).
				Str("kind", string(seg.Kind)).
				Int("start_index", seg.StartIndex).
				Int("end_index", seg.EndIndex).
				Msg("dropping segment with end before start")
			continue
		}
		if prev, ok := lastEnd[seg.Kind]; ok && seg.StartIndex <= prev {
			d.log.Error().
				Str("activity_id", stream.ActivityID).
				Str("kind", string(seg.Kind)).
				Int("start_index", seg.StartIndex).
				Int("prev_end_index", prev).
				Msg("dropping segment overlapping previous segment of same kind")
			continue
		}
		lastEnd[seg.Kind] = seg.EndIndex
		kept = append(kept, seg)
	}
	return kept
}

// movingAverage smooths values with a centered moving average of the
// given window. NaN entries are skipped; a window with no finite values
// yields NaN. Even windows extend one sample further forward.
func movingAverage(values []float64, window int) []float64 {
	if window <= 1 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	left := (window - 1) / 2
	right := window / 2
	out := make([]float64, len(values))
	for i := range values {
		lo := i - left
		if lo < 0 {
			lo = 0
		}
		hi := i + right
		if hi > len(values)-1 {
			hi = len(values) - 1
		}
		sum := 0.0
		count := 0
		for j := lo; j <= hi; j++ {
			if isFinite(values[j]) {
				sum += values[j]
				count++
			}
		}
		if count == 0 {
			out[i] = math.NaN()
		} else {
			out[i] = sum / float64(count)
		}
	}
	return out
}
