package ridelab

import (
	"math"
	"reflect"
	"testing"
	"time"
)

func TestSummarizeTotals(t *testing.T) {
	n := 100
	speed := constant(n, 5.0)
	for i := 90; i < n; i++ {
		speed[i] = 0.2
	}
	distance := make([]float64, n)
	altitude := make([]float64, n)
	for i := range distance {
		distance[i] = float64(i) * 5
		altitude[i] = 100 + math.Min(float64(i), 50)*0.2
	}
	stream := mustAlign(t, RawStreams{
		ActivityID: "ride-1",
		StartTime:  time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC),
		Sport:      "cycling",
		Time:       seconds(n),
		Speed:      speed,
		Distance:   distance,
		Altitude:   altitude,
		HeartRate:  constant(n, 140),
	})

	summary := Summarize(stream, nil, nil, SummaryConfig{MinMovingSpeedMps: 0.5})
	if summary.ActivityID != "ride-1" || summary.Sport != "cycling" {
		t.Fatalf("identity fields not carried: %+v", summary)
	}
	if summary.SampleCount != n {
		t.Fatalf("expected %d samples, got %d", n, summary.SampleCount)
	}
	if summary.ElapsedS != 99 {
		t.Fatalf("expected 99s elapsed, got %v", summary.ElapsedS)
	}
	if summary.MovingS != 90 {
		t.Fatalf("expected 90s moving, got %v", summary.MovingS)
	}
	if summary.DistanceM != 495 {
		t.Fatalf("expected 495m distance, got %v", summary.DistanceM)
	}
	if math.Abs(summary.ElevationGainM-10) > 1e-9 {
		t.Fatalf("expected 10m gain, got %v", summary.ElevationGainM)
	}
	if summary.AvgSpeedMps == nil || math.Abs(*summary.AvgSpeedMps-4.52) > 1e-9 {
		t.Fatalf("expected 4.52 m/s average, got %v", summary.AvgSpeedMps)
	}
	if summary.MaxSpeedMps == nil || *summary.MaxSpeedMps != 5 {
		t.Fatalf("expected 5 m/s max, got %v", summary.MaxSpeedMps)
	}
	if summary.AvgHeartRate == nil || *summary.AvgHeartRate != 140 {
		t.Fatalf("expected 140bpm average, got %v", summary.AvgHeartRate)
	}
}

func TestSummarizeDistanceFallsBackToSpeed(t *testing.T) {
	stream := mustAlign(t, RawStreams{
		Time:  seconds(100),
		Speed: constant(100, 5),
	})
	summary := Summarize(stream, nil, nil, SummaryConfig{MinMovingSpeedMps: 0.5})
	if summary.DistanceM != 500 {
		t.Fatalf("expected speed-integrated distance of 500m, got %v", summary.DistanceM)
	}
}

func TestSummarizeMissingSensors(t *testing.T) {
	stream := mustAlign(t, RawStreams{
		Time:      seconds(100),
		HeartRate: constant(100, 130),
	})
	summary := Summarize(stream, nil, nil, SummaryConfig{MinMovingSpeedMps: 0.5})
	if summary.AvgSpeedMps != nil || summary.MaxSpeedMps != nil {
		t.Fatalf("expected nil speed stats without a speed sensor")
	}
	if summary.MovingS != 0 {
		t.Fatalf("expected zero moving time without speed, got %v", summary.MovingS)
	}
	if summary.AvgPowerW != nil || summary.NormalizedPowerW != nil {
		t.Fatalf("expected nil power stats without a power meter")
	}
	if len(summary.PowerCurve) != 0 {
		t.Fatalf("expected empty power curve, got %d points", len(summary.PowerCurve))
	}
	if summary.FTPSource != "unavailable" {
		t.Fatalf("expected ftp_source unavailable, got %q", summary.FTPSource)
	}
	if summary.DistanceM != 0 {
		t.Fatalf("expected zero distance without distance or speed, got %v", summary.DistanceM)
	}
}

func TestSummarizeFTPFromConfig(t *testing.T) {
	stream := mustAlign(t, RawStreams{
		Time:  seconds(1500),
		Power: constant(1500, 240),
	})
	summary := Summarize(stream, nil, nil, SummaryConfig{FTPWatts: 223})
	if summary.FTPWatts == nil || *summary.FTPWatts != 223 {
		t.Fatalf("expected configured FTP honored, got %v", summary.FTPWatts)
	}
	if summary.FTPSource != "input" {
		t.Fatalf("expected ftp_source input, got %q", summary.FTPSource)
	}
}

func TestSummarizeFTPEstimated(t *testing.T) {
	stream := mustAlign(t, RawStreams{
		Time:  seconds(1500),
		Power: constant(1500, 240),
	})
	summary := Summarize(stream, nil, nil, SummaryConfig{})
	if summary.FTPWatts == nil || math.Abs(*summary.FTPWatts-228) > 1e-9 {
		t.Fatalf("expected estimated FTP of 228, got %v", summary.FTPWatts)
	}
	if summary.FTPSource != "estimated" {
		t.Fatalf("expected ftp_source estimated, got %q", summary.FTPSource)
	}
	if summary.NormalizedPowerW == nil || math.Abs(*summary.NormalizedPowerW-240) > 1e-6 {
		t.Fatalf("expected normalized power 240, got %v", summary.NormalizedPowerW)
	}
	if len(summary.PowerCurve) == 0 {
		t.Fatalf("expected power curve points")
	}
}

func TestSummarizeShortPowerStream(t *testing.T) {
	stream := mustAlign(t, RawStreams{
		Time:  seconds(20),
		Power: constant(20, 250),
	})
	summary := Summarize(stream, nil, nil, SummaryConfig{})
	if summary.AvgPowerW == nil || *summary.AvgPowerW != 250 {
		t.Fatalf("expected plain average still reported, got %v", summary.AvgPowerW)
	}
	if summary.NormalizedPowerW != nil {
		t.Fatalf("expected normalized power unavailable below the rolling window, got %v", *summary.NormalizedPowerW)
	}
	if summary.FTPSource != "unavailable" {
		t.Fatalf("expected ftp_source unavailable, got %q", summary.FTPSource)
	}
}

func TestRollupOrderIndependent(t *testing.T) {
	a := ActivitySummary{
		StartTime: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC),
		ElapsedS:  1800, MovingS: 1700, DistanceM: 20000, ElevationGainM: 150,
		Zones: []ZoneDistribution{hrDist(600, 0)},
	}
	b := ActivitySummary{
		StartTime: time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC),
		ElapsedS:  3600, MovingS: 3500, DistanceM: 40000, ElevationGainM: 300,
		Zones: []ZoneDistribution{hrDist(0, 600)},
	}
	c := ActivitySummary{
		StartTime: time.Date(2024, 3, 6, 11, 0, 0, 0, time.UTC),
		ElapsedS:  900, MovingS: 800, DistanceM: 10000, ElevationGainM: 50,
		Zones: []ZoneDistribution{hrDist(300, 300)},
	}

	forward := Rollup([]ActivitySummary{a, b, c})
	shuffled := Rollup([]ActivitySummary{c, a, b})
	if !reflect.DeepEqual(forward, shuffled) {
		t.Fatalf("rollup must be order independent:\nforward:  %+v\nshuffled: %+v", forward, shuffled)
	}

	if forward.Activities != 3 {
		t.Fatalf("expected 3 activities, got %d", forward.Activities)
	}
	if forward.DistanceM != 70000 || forward.MovingS != 6000 || forward.ElapsedS != 6300 {
		t.Fatalf("unexpected totals: %+v", forward)
	}
	if forward.PeriodStart != a.StartTime {
		t.Fatalf("expected earliest start as period start, got %v", forward.PeriodStart)
	}
	if want := c.StartTime.Add(15 * time.Minute); forward.PeriodEnd != want {
		t.Fatalf("expected latest activity end as period end, got %v want %v", forward.PeriodEnd, want)
	}
}

func TestRollupRecomputesPercentages(t *testing.T) {
	a := ActivitySummary{Zones: []ZoneDistribution{hrDist(600, 0)}}
	b := ActivitySummary{Zones: []ZoneDistribution{hrDist(0, 600)}}
	rollup := Rollup([]ActivitySummary{a, b})
	if len(rollup.Zones) != 1 {
		t.Fatalf("expected one merged heart rate distribution, got %d", len(rollup.Zones))
	}
	merged := rollup.Zones[0]
	if merged.TotalSeconds != 1200 {
		t.Fatalf("expected 1200s combined, got %v", merged.TotalSeconds)
	}
	for i, zt := range merged.Zones {
		if zt.Seconds != 600 {
			t.Fatalf("zone %d: expected 600s, got %v", i, zt.Seconds)
		}
		if math.Abs(zt.Percentage-50) > 1e-9 {
			t.Fatalf("zone %d: expected 50%% after recompute, got %v", i, zt.Percentage)
		}
	}
}

func TestRollupSkipsUnavailableDistributions(t *testing.T) {
	a := ActivitySummary{Zones: []ZoneDistribution{hrDist(600, 0)}}
	b := ActivitySummary{Zones: []ZoneDistribution{{Metric: MetricHeartRate, Available: false}}}
	rollup := Rollup([]ActivitySummary{a, b})
	if len(rollup.Zones) != 1 || rollup.Zones[0].TotalSeconds != 600 {
		t.Fatalf("unavailable distributions must not contribute, got %+v", rollup.Zones)
	}
}

func TestRollupByWeekBuckets(t *testing.T) {
	summaries := []ActivitySummary{
		{StartTime: time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC), DistanceM: 100},
		{StartTime: time.Date(2024, 3, 10, 18, 0, 0, 0, time.UTC), DistanceM: 200},
		{StartTime: time.Date(2024, 3, 11, 7, 0, 0, 0, time.UTC), DistanceM: 400},
	}
	weeks := RollupByWeek(summaries)
	if len(weeks) != 2 {
		t.Fatalf("expected 2 weekly buckets, got %d", len(weeks))
	}
	first := weeks[0]
	if first.PeriodStart != time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC) {
		t.Fatalf("expected Monday start, got %v", first.PeriodStart)
	}
	if first.PeriodEnd != time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC) {
		t.Fatalf("expected 7-day period, got %v", first.PeriodEnd)
	}
	if first.Activities != 2 || first.DistanceM != 300 {
		t.Fatalf("unexpected first week: %+v", first)
	}
	second := weeks[1]
	if second.PeriodStart != time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC) {
		t.Fatalf("expected Monday start for second week, got %v", second.PeriodStart)
	}
	if second.Activities != 1 || second.DistanceM != 400 {
		t.Fatalf("unexpected second week: %+v", second)
	}
}

func TestWeekStart(t *testing.T) {
	sunday := time.Date(2024, 3, 10, 23, 0, 0, 0, time.UTC)
	if got := weekStart(sunday); got != time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC) {
		t.Fatalf("sunday must map to the preceding Monday, got %v", got)
	}
	monday := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	if got := weekStart(monday); got != monday {
		t.Fatalf("monday must map to itself, got %v", got)
	}
	zoned := time.Date(2024, 3, 11, 1, 0, 0, 0, time.FixedZone("plus5", 5*3600))
	if got := weekStart(zoned); got != time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC) {
		t.Fatalf("week bucketing must convert to UTC first, got %v", got)
	}
}

func hrDist(z1, z2 float64) ZoneDistribution {
	return ZoneDistribution{
		Metric:       MetricHeartRate,
		Available:    true,
		TotalSeconds: z1 + z2,
		Zones: []ZoneTime{
			{Zone: "Z1", Min: 0, Max: 120, Seconds: z1},
			{Zone: "Z2", Min: 121, Max: 150, Seconds: z2},
		},
	}
}
