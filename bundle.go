package ridelab

import (
	"math"
	"sort"
)

const defaultMaxBundlePoints = 2000

// TimeSeries is one downsampled metric trace for charting. Values are
// nil where the sensor dropped out, keeping the axis aligned.
type TimeSeries struct {
	Metric MetricKind `json:"metric"`
	TimeS  []float64  `json:"time_s"`
	Values []*float64 `json:"values"`
}

// RoutePoint is one map coordinate, optionally annotated with a metric
// value for color grading.
type RoutePoint struct {
	Lat   float64  `json:"lat"`
	Lng   float64  `json:"lng"`
	Value *float64 `json:"value,omitempty"`
}

// HistogramBin is one occupied fixed-width bin: [Lower, Upper) holding
// Seconds of ride time.
type HistogramBin struct {
	Lower   float64 `json:"lower"`
	Upper   float64 `json:"upper"`
	Seconds float64 `json:"seconds"`
}

// Histogram is a fixed-bin-width time distribution of one metric.
type Histogram struct {
	Metric   MetricKind     `json:"metric"`
	BinWidth float64        `json:"bin_width"`
	Bins     []HistogramBin `json:"bins"`
}

// DashboardBundle is the self-contained render payload for one
// activity. It copies everything out of the stream, so mutating the
// stream afterwards never changes a bundle already assembled.
type DashboardBundle struct {
	ActivityID  string             `json:"activity_id"`
	Summary     ActivitySummary    `json:"summary"`
	Series      []TimeSeries       `json:"series"`
	Zones       []ZoneDistribution `json:"zones"`
	Segments    []Segment          `json:"segments"`
	Route       []RoutePoint       `json:"route,omitempty"`
	RouteMetric MetricKind         `json:"route_metric,omitempty"`
	Histograms  []Histogram        `json:"histograms,omitempty"`
}

// AssembleOptions controls bundle density and annotations.
type AssembleOptions struct {
	// MaxPoints caps the samples per series; zero means the default.
	MaxPoints int
	// RouteMetric picks the metric used to annotate route points.
	// Empty means speed.
	RouteMetric MetricKind
	// RouteMetricScale multiplies the annotation value, e.g. 3.6 to
	// render speed in km/h. Zero means 1.
	RouteMetricScale float64
	// HistogramBinWidths maps metric kinds to bin widths. Kinds with a
	// non-positive width or an absent column are skipped.
	HistogramBinWidths map[MetricKind]float64
}

// Assemble builds the dashboard bundle from an aligned stream and its
// computed summary. Series longer than MaxPoints are decimated with a
// fixed stride that always keeps the first and last sample.
func Assemble(stream *ActivityStream, summary ActivitySummary, opts AssembleOptions) DashboardBundle {
	maxPoints := opts.MaxPoints
	if maxPoints <= 0 {
		maxPoints = defaultMaxBundlePoints
	}
	indexes := sampleIndexes(stream.Len(), maxPoints)

	bundle := DashboardBundle{
		ActivityID: stream.ActivityID,
		Summary:    summary,
		Series:     buildSeries(stream, indexes),
		Zones:      summary.Zones,
		Segments:   summary.Segments,
	}

	if stream.HasRoute() {
		metric := opts.RouteMetric
		if metric == "" {
			metric = MetricSpeed
		}
		scale := opts.RouteMetricScale
		if scale == 0 {
			scale = 1
		}
		bundle.Route = buildRoute(stream, indexes, metric, scale)
		bundle.RouteMetric = metric
	}

	bundle.Histograms = buildHistograms(stream, opts.HistogramBinWidths)
	return bundle
}

// sampleIndexes returns the decimated index list for a series of n
// samples: every stride-th index, plus the final one.
func sampleIndexes(n, maxPoints int) []int {
	if n <= 0 {
		return nil
	}
	stride := 1
	if n > maxPoints {
		stride = (n + maxPoints - 1) / maxPoints
	}
	indexes := make([]int, 0, n/stride+2)
	for i := 0; i < n; i += stride {
		indexes = append(indexes, i)
	}
	if last := indexes[len(indexes)-1]; last != n-1 {
		indexes = append(indexes, n-1)
	}
	return indexes
}

func buildSeries(stream *ActivityStream, indexes []int) []TimeSeries {
	kinds := []MetricKind{
		MetricHeartRate,
		MetricPower,
		MetricCadence,
		MetricSpeed,
		MetricAltitude,
		MetricGrade,
		MetricTemperature,
	}
	series := make([]TimeSeries, 0, len(kinds))
	for _, kind := range kinds {
		column, err := stream.Metric(kind)
		if err != nil {
			continue
		}
		ts := TimeSeries{
			Metric: kind,
			TimeS:  make([]float64, 0, len(indexes)),
			Values: make([]*float64, 0, len(indexes)),
		}
		for _, i := range indexes {
			ts.TimeS = append(ts.TimeS, stream.Time[i])
			if isFinite(column[i]) {
				ts.Values = append(ts.Values, floatPtr(column[i]))
			} else {
				ts.Values = append(ts.Values, nil)
			}
		}
		series = append(series, ts)
	}
	return series
}

func buildRoute(stream *ActivityStream, indexes []int, metric MetricKind, scale float64) []RoutePoint {
	column, err := stream.Metric(metric)
	if err != nil {
		column = nil
	}
	route := make([]RoutePoint, 0, len(indexes))
	for _, i := range indexes {
		lat, lng := stream.Lat[i], stream.Lng[i]
		if !isFinite(lat) || !isFinite(lng) {
			continue
		}
		point := RoutePoint{Lat: lat, Lng: lng}
		if column != nil && isFinite(column[i]) {
			point.Value = floatPtr(column[i] * scale)
		}
		route = append(route, point)
	}
	return route
}

// buildHistograms bins every configured metric over the full-resolution
// stream. Only occupied bins are emitted, in ascending order.
func buildHistograms(stream *ActivityStream, widths map[MetricKind]float64) []Histogram {
	if len(widths) == 0 {
		return nil
	}
	kinds := make([]MetricKind, 0, len(widths))
	for kind := range widths {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	interval := stream.SampleInterval()
	histograms := make([]Histogram, 0, len(kinds))
	for _, kind := range kinds {
		width := widths[kind]
		if width <= 0 {
			continue
		}
		column, err := stream.Metric(kind)
		if err != nil {
			continue
		}
		seconds := make(map[int]float64)
		for _, v := range column {
			if !isFinite(v) {
				continue
			}
			seconds[int(math.Floor(v/width))] += interval
		}
		if len(seconds) == 0 {
			continue
		}
		slots := make([]int, 0, len(seconds))
		for slot := range seconds {
			slots = append(slots, slot)
		}
		sort.Ints(slots)
		bins := make([]HistogramBin, 0, len(slots))
		for _, slot := range slots {
			bins = append(bins, HistogramBin{
				Lower:   float64(slot) * width,
				Upper:   float64(slot+1) * width,
				Seconds: seconds[slot],
			})
		}
		histograms = append(histograms, Histogram{Metric: kind, BinWidth: width, Bins: bins})
	}
	return histograms
}
