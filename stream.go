package ridelab

import (
	"math"
	"sort"
	"time"
)

// MetricKind names one scalar sensor field carried by an ActivityStream.
type MetricKind string

const (
	MetricHeartRate   MetricKind = "heart_rate"
	MetricPower       MetricKind = "power"
	MetricCadence     MetricKind = "cadence"
	MetricSpeed       MetricKind = "speed"
	MetricAltitude    MetricKind = "altitude"
	MetricGrade       MetricKind = "grade"
	MetricDistance    MetricKind = "distance"
	MetricTemperature MetricKind = "temperature"
)

// RawStreams holds one activity's per-field sample arrays as the ingest
// layer produced them, before alignment. Time is the canonical axis in
// elapsed seconds. A nil field means the sensor was absent for the whole
// activity; NaN entries mark momentary dropouts inside a present field.
type RawStreams struct {
	ActivityID string
	StartTime  time.Time
	Sport      string

	Time        []float64
	Distance    []float64
	HeartRate   []float64
	Power       []float64
	Cadence     []float64
	Speed       []float64
	Altitude    []float64
	Grade       []float64
	Temperature []float64
	Lat         []float64
	Lng         []float64
}

// ActivityStream is one activity's telemetry resampled onto a single
// strictly increasing time axis. All columns share the axis length.
// Streams are read-only once built; downstream stages never mutate them.
type ActivityStream struct {
	ActivityID string
	StartTime  time.Time
	Sport      string

	Time        []float64
	Distance    []float64
	HeartRate   []float64
	Power       []float64
	Cadence     []float64
	Speed       []float64
	Altitude    []float64
	Grade       []float64
	Temperature []float64
	Lat         []float64
	Lng         []float64

	// DroppedSamples counts raw samples discarded for a non-increasing
	// time value during alignment.
	DroppedSamples int

	interval float64
}

// AlignOptions configures stream alignment.
type AlignOptions struct {
	// MinSamples is the shortest canonical axis worth analyzing.
	MinSamples int
}

// Align normalizes raw per-field arrays onto the canonical time axis.
// Fields shorter than the axis are padded with "not present" samples,
// never zeros, so a silent sensor stays distinguishable from a sensor
// reading zero. Samples whose time value does not strictly increase are
// dropped. Returns InsufficientDataError when the resulting axis is
// shorter than opts.MinSamples.
func Align(raw RawStreams, opts AlignOptions) (*ActivityStream, error) {
	keep := make([]int, 0, len(raw.Time))
	lastTime := math.Inf(-1)
	for i, ts := range raw.Time {
		if !isFinite(ts) || ts <= lastTime {
			continue
		}
		keep = append(keep, i)
		lastTime = ts
	}

	if len(keep) < opts.MinSamples {
		return nil, &InsufficientDataError{Samples: len(keep), Minimum: opts.MinSamples}
	}

	s := &ActivityStream{
		ActivityID:     raw.ActivityID,
		StartTime:      raw.StartTime,
		Sport:          raw.Sport,
		Time:           alignColumn(raw.Time, keep),
		Distance:       alignColumn(raw.Distance, keep),
		HeartRate:      alignColumn(raw.HeartRate, keep),
		Power:          alignColumn(raw.Power, keep),
		Cadence:        alignColumn(raw.Cadence, keep),
		Speed:          alignColumn(raw.Speed, keep),
		Altitude:       alignColumn(raw.Altitude, keep),
		Grade:          alignColumn(raw.Grade, keep),
		Temperature:    alignColumn(raw.Temperature, keep),
		Lat:            alignColumn(raw.Lat, keep),
		Lng:            alignColumn(raw.Lng, keep),
		DroppedSamples: len(raw.Time) - len(keep),
	}
	s.interval = medianInterval(s.Time)
	return s, nil
}

// alignColumn projects one raw field onto the kept canonical indexes.
// Indexes past the raw array's end become NaN; a nil field stays nil.
func alignColumn(field []float64, keep []int) []float64 {
	if field == nil {
		return nil
	}
	out := make([]float64, len(keep))
	for i, idx := range keep {
		if idx < len(field) {
			out[i] = field[idx]
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// medianInterval estimates the inter-sample spacing from the time axis.
func medianInterval(times []float64) float64 {
	if len(times) < 2 {
		return 1.0
	}
	deltas := make([]float64, 0, len(times)-1)
	for i := 1; i < len(times); i++ {
		d := times[i] - times[i-1]
		if isFinite(d) && d > 0 {
			deltas = append(deltas, d)
		}
	}
	if len(deltas) == 0 {
		return 1.0
	}
	sort.Float64s(deltas)
	return deltas[len(deltas)/2]
}

// Len returns the number of samples on the canonical axis.
func (s *ActivityStream) Len() int {
	return len(s.Time)
}

// SampleInterval is the typical spacing between samples in seconds.
func (s *ActivityStream) SampleInterval() float64 {
	if s.interval <= 0 {
		return 1.0
	}
	return s.interval
}

// ElapsedSeconds is the span of the time axis.
func (s *ActivityStream) ElapsedSeconds() float64 {
	if len(s.Time) < 2 {
		return 0
	}
	return s.Time[len(s.Time)-1] - s.Time[0]
}

// Has reports whether the sensor for kind produced any data at all.
func (s *ActivityStream) Has(kind MetricKind) bool {
	col, err := s.Metric(kind)
	return err == nil && col != nil
}

// Metric returns the column for kind, or MissingMetricError when the
// sensor was absent for the whole activity. The returned slice is the
// stream's own storage and must not be modified.
func (s *ActivityStream) Metric(kind MetricKind) ([]float64, error) {
	var col []float64
	switch kind {
	case MetricHeartRate:
		col = s.HeartRate
	case MetricPower:
		col = s.Power
	case MetricCadence:
		col = s.Cadence
	case MetricSpeed:
		col = s.Speed
	case MetricAltitude:
		col = s.Altitude
	case MetricGrade:
		col = s.Grade
	case MetricDistance:
		col = s.Distance
	case MetricTemperature:
		col = s.Temperature
	default:
		return nil, &MissingMetricError{Metric: kind}
	}
	if col == nil {
		return nil, &MissingMetricError{Metric: kind}
	}
	return col, nil
}

// HasRoute reports whether position data is present.
func (s *ActivityStream) HasRoute() bool {
	return s.Lat != nil && s.Lng != nil
}
