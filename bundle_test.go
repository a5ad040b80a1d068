package ridelab

import (
	"math"
	"testing"
)

func TestAssembleDownsamples(t *testing.T) {
	n := 5000
	stream := mustAlign(t, RawStreams{
		ActivityID: "big",
		Time:       seconds(n),
		HeartRate:  constant(n, 140),
		Speed:      constant(n, 8),
	})
	bundle := Assemble(stream, ActivitySummary{}, AssembleOptions{MaxPoints: 1000})
	if len(bundle.Series) != 2 {
		t.Fatalf("expected heart rate and speed series, got %d", len(bundle.Series))
	}
	for _, series := range bundle.Series {
		if len(series.TimeS) != 1001 {
			t.Fatalf("series %s: expected 1001 points (stride 5 plus final sample), got %d", series.Metric, len(series.TimeS))
		}
		if series.TimeS[0] != 0 {
			t.Fatalf("series %s: expected first sample kept, got %v", series.Metric, series.TimeS[0])
		}
		if series.TimeS[len(series.TimeS)-1] != 4999 {
			t.Fatalf("series %s: expected last sample kept, got %v", series.Metric, series.TimeS[len(series.TimeS)-1])
		}
	}
}

func TestAssembleKeepsShortSeriesWhole(t *testing.T) {
	stream := mustAlign(t, RawStreams{
		Time:      seconds(100),
		HeartRate: constant(100, 140),
	})
	bundle := Assemble(stream, ActivitySummary{}, AssembleOptions{})
	if len(bundle.Series[0].TimeS) != 100 {
		t.Fatalf("expected all 100 samples below the default cap, got %d", len(bundle.Series[0].TimeS))
	}
}

func TestAssembleDropoutsBecomeNil(t *testing.T) {
	hr := constant(10, 140)
	hr[3] = math.NaN()
	stream := mustAlign(t, RawStreams{Time: seconds(10), HeartRate: hr})
	bundle := Assemble(stream, ActivitySummary{}, AssembleOptions{})
	values := bundle.Series[0].Values
	if values[3] != nil {
		t.Fatalf("expected nil at the dropout, got %v", *values[3])
	}
	if values[2] == nil || *values[2] != 140 {
		t.Fatalf("expected neighbors untouched, got %v", values[2])
	}
}

func TestAssembleRouteAnnotation(t *testing.T) {
	n := 10
	lat := constant(n, 46.5)
	lng := constant(n, 11.3)
	lat[4] = math.NaN()
	stream := mustAlign(t, RawStreams{
		Time:  seconds(n),
		Speed: constant(n, 10),
		Lat:   lat,
		Lng:   lng,
	})
	bundle := Assemble(stream, ActivitySummary{}, AssembleOptions{
		RouteMetric:      MetricSpeed,
		RouteMetricScale: 3.6,
	})
	if bundle.RouteMetric != MetricSpeed {
		t.Fatalf("expected route metric recorded, got %s", bundle.RouteMetric)
	}
	if len(bundle.Route) != n-1 {
		t.Fatalf("expected the unpositioned sample skipped, got %d points", len(bundle.Route))
	}
	first := bundle.Route[0]
	if first.Lat != 46.5 || first.Lng != 11.3 {
		t.Fatalf("unexpected coordinates: %+v", first)
	}
	if first.Value == nil || math.Abs(*first.Value-36) > 1e-9 {
		t.Fatalf("expected speed scaled into km/h, got %v", first.Value)
	}
}

func TestAssembleWithoutRoute(t *testing.T) {
	stream := mustAlign(t, RawStreams{Time: seconds(10), Speed: constant(10, 5)})
	bundle := Assemble(stream, ActivitySummary{}, AssembleOptions{})
	if bundle.Route != nil {
		t.Fatalf("expected no route without position data, got %d points", len(bundle.Route))
	}
	if bundle.RouteMetric != "" {
		t.Fatalf("expected empty route metric, got %s", bundle.RouteMetric)
	}
}

func TestAssembleHistograms(t *testing.T) {
	stream := mustAlign(t, RawStreams{
		Time:  seconds(3),
		Speed: []float64{0.5, 1.5, 1.7},
		Grade: []float64{-3.5, -3.5, 1.0},
	})
	bundle := Assemble(stream, ActivitySummary{}, AssembleOptions{
		HistogramBinWidths: map[MetricKind]float64{
			MetricSpeed: 1,
			MetricGrade: 2,
		},
	})
	if len(bundle.Histograms) != 2 {
		t.Fatalf("expected histograms for grade and speed, got %d", len(bundle.Histograms))
	}

	grade := bundle.Histograms[0]
	if grade.Metric != MetricGrade {
		t.Fatalf("expected grade histogram first by kind order, got %s", grade.Metric)
	}
	if len(grade.Bins) != 2 {
		t.Fatalf("expected 2 occupied grade bins, got %d", len(grade.Bins))
	}
	if grade.Bins[0].Lower != -4 || grade.Bins[0].Upper != -2 || grade.Bins[0].Seconds != 2 {
		t.Fatalf("unexpected negative bin: %+v", grade.Bins[0])
	}

	speed := bundle.Histograms[1]
	if speed.Bins[0].Lower != 0 || speed.Bins[0].Seconds != 1 {
		t.Fatalf("unexpected speed bin: %+v", speed.Bins[0])
	}
	if speed.Bins[1].Lower != 1 || speed.Bins[1].Seconds != 2 {
		t.Fatalf("unexpected speed bin: %+v", speed.Bins[1])
	}
}

func TestAssembleCopiesStreamData(t *testing.T) {
	hr := constant(10, 140)
	stream := mustAlign(t, RawStreams{Time: seconds(10), HeartRate: hr})
	bundle := Assemble(stream, ActivitySummary{}, AssembleOptions{})

	stream.HeartRate[0] = 999
	if got := *bundle.Series[0].Values[0]; got != 140 {
		t.Fatalf("bundle must not alias stream storage, got %v after mutation", got)
	}
}
