package ridelab

import (
	"math"
	"sort"
	"time"
)

// SummaryConfig carries the aggregation settings for one activity.
type SummaryConfig struct {
	// MinMovingSpeedMps is the minimal-movement threshold: samples at or
	// below it do not count toward moving time.
	MinMovingSpeedMps float64
	// FTPWatts is the athlete's functional threshold power. Zero means
	// estimate it from the ride when possible.
	FTPWatts float64
}

// ActivitySummary is the whole-activity rollup handed to storage and
// rendering. Metric-dependent fields are nil when the sensor was absent.
type ActivitySummary struct {
	ActivityID     string    `json:"activity_id"`
	StartTime      time.Time `json:"start_time"`
	Sport          string    `json:"sport,omitempty"`
	SampleCount    int       `json:"sample_count"`
	ElapsedS       float64   `json:"elapsed_s"`
	MovingS        float64   `json:"moving_s"`
	DistanceM      float64   `json:"distance_m"`
	ElevationGainM float64   `json:"elevation_gain_m"`

	AvgSpeedMps      *float64 `json:"avg_speed_mps,omitempty"`
	MaxSpeedMps      *float64 `json:"max_speed_mps,omitempty"`
	AvgHeartRate     *float64 `json:"avg_heart_rate_bpm,omitempty"`
	MaxHeartRate     *float64 `json:"max_heart_rate_bpm,omitempty"`
	AvgCadenceRPM    *float64 `json:"avg_cadence_rpm,omitempty"`
	AvgPowerW        *float64 `json:"avg_power_w,omitempty"`
	MaxPowerW        *float64 `json:"max_power_w,omitempty"`
	NormalizedPowerW *float64 `json:"normalized_power_w,omitempty"`
	FTPWatts         *float64 `json:"ftp_watts,omitempty"`
	FTPSource        string   `json:"ftp_source"`

	PowerCurve []PowerCurvePoint  `json:"power_curve,omitempty"`
	Zones      []ZoneDistribution `json:"zones"`
	Segments   []Segment          `json:"segments"`
}

// Summarize combines one activity's zone distributions and segments with
// the kinematic totals into an ActivitySummary. Missing sensors become
// nil fields, never zeros.
func Summarize(stream *ActivityStream, zones []ZoneDistribution, segments []Segment, cfg SummaryConfig) ActivitySummary {
	n := stream.Len()
	interval := stream.SampleInterval()

	summary := ActivitySummary{
		ActivityID:  stream.ActivityID,
		StartTime:   stream.StartTime,
		Sport:       stream.Sport,
		SampleCount: n,
		ElapsedS:    stream.ElapsedSeconds(),
		Zones:       zones,
		Segments:    segments,
	}
	if summary.Zones == nil {
		summary.Zones = []ZoneDistribution{}
	}
	if summary.Segments == nil {
		summary.Segments = []Segment{}
	}

	if stream.Speed != nil {
		moving := 0
		for _, v := range stream.Speed {
			if isFinite(v) && v > cfg.MinMovingSpeedMps {
				moving++
			}
		}
		summary.MovingS = float64(moving) * interval
		summary.AvgSpeedMps = avgRange(stream.Speed, 0, n-1)
		summary.MaxSpeedMps = maxRange(stream.Speed, 0, n-1)
	}

	summary.DistanceM = totalDistance(stream, interval)
	if gain := elevationGainRange(stream.Altitude, 0, n-1); gain != nil {
		summary.ElevationGainM = *gain
	}

	summary.AvgHeartRate = avgRange(stream.HeartRate, 0, n-1)
	summary.MaxHeartRate = maxRange(stream.HeartRate, 0, n-1)
	summary.AvgCadenceRPM = avgRange(stream.Cadence, 0, n-1)

	summary.FTPSource = "unavailable"
	if cfg.FTPWatts > 0 {
		summary.FTPWatts = floatPtr(cfg.FTPWatts)
		summary.FTPSource = "input"
	}

	if stream.Power != nil {
		summary.AvgPowerW = avgRange(stream.Power, 0, n-1)
		summary.MaxPowerW = maxRange(stream.Power, 0, n-1)
		if np := normalizedPower(stream.Power, interval); np > 0 {
			summary.NormalizedPowerW = floatPtr(np)
		}
		summary.PowerCurve = powerCurve(stream.Power, interval)
		if summary.FTPWatts == nil {
			if estimated := estimateFTP(stream.Power, interval); estimated > 0 {
				summary.FTPWatts = floatPtr(estimated)
				summary.FTPSource = "estimated"
			}
		}
	}

	return summary
}

// totalDistance reads the cumulative distance column when present and
// falls back to integrating speed over the sample interval.
func totalDistance(stream *ActivityStream, interval float64) float64 {
	if stream.Distance != nil {
		first := math.NaN()
		last := math.NaN()
		for _, v := range stream.Distance {
			if !isFinite(v) {
				continue
			}
			if math.IsNaN(first) {
				first = v
			}
			last = v
		}
		if !math.IsNaN(first) && last >= first {
			return last - first
		}
	}
	if stream.Speed != nil {
		total := 0.0
		for _, v := range stream.Speed {
			if isFinite(v) && v > 0 {
				total += v * interval
			}
		}
		return total
	}
	return 0
}

// PeriodRollup aggregates many activity summaries over a time window.
type PeriodRollup struct {
	PeriodStart    time.Time          `json:"period_start"`
	PeriodEnd      time.Time          `json:"period_end"`
	Activities     int                `json:"activities"`
	DistanceM      float64            `json:"distance_m"`
	MovingS        float64            `json:"moving_s"`
	ElapsedS       float64            `json:"elapsed_s"`
	ElevationGainM float64            `json:"elevation_gain_m"`
	Zones          []ZoneDistribution `json:"zones,omitempty"`
}

// Rollup folds activity summaries into one period rollup: distances,
// times and elevation are summed, and zone durations are merged with
// percentages recomputed over the combined classified time. The fold is
// commutative and associative within floating-point rounding, so the
// order of summaries never changes the result.
func Rollup(summaries []ActivitySummary) PeriodRollup {
	rollup := PeriodRollup{Activities: len(summaries)}
	for _, s := range summaries {
		rollup.DistanceM += s.DistanceM
		rollup.MovingS += s.MovingS
		rollup.ElapsedS += s.ElapsedS
		rollup.ElevationGainM += s.ElevationGainM
		if s.StartTime.IsZero() {
			continue
		}
		if rollup.PeriodStart.IsZero() || s.StartTime.Before(rollup.PeriodStart) {
			rollup.PeriodStart = s.StartTime
		}
		end := s.StartTime.Add(time.Duration(s.ElapsedS * float64(time.Second)))
		if end.After(rollup.PeriodEnd) {
			rollup.PeriodEnd = end
		}
	}
	rollup.Zones = mergeDistributions(summaries)
	return rollup
}

// RollupByWeek buckets summaries by ISO week (Monday start, UTC) and
// rolls each bucket up. Buckets are returned in chronological order.
func RollupByWeek(summaries []ActivitySummary) []PeriodRollup {
	buckets := make(map[time.Time][]ActivitySummary)
	for _, s := range summaries {
		buckets[weekStart(s.StartTime)] = append(buckets[weekStart(s.StartTime)], s)
	}

	weeks := make([]time.Time, 0, len(buckets))
	for week := range buckets {
		weeks = append(weeks, week)
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i].Before(weeks[j]) })

	rollups := make([]PeriodRollup, 0, len(weeks))
	for _, week := range weeks {
		r := Rollup(buckets[week])
		r.PeriodStart = week
		r.PeriodEnd = week.AddDate(0, 0, 7)
		rollups = append(rollups, r)
	}
	return rollups
}

// weekStart truncates a time to the preceding Monday at 00:00 UTC.
func weekStart(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// mergeDistributions adds per-zone durations across summaries, keyed by
// metric kind and zone name, and recomputes percentages over the
// combined classified time. Zone bounds come from the shared definition
// snapshot, so ordering by bound then name is fold-order independent.
func mergeDistributions(summaries []ActivitySummary) []ZoneDistribution {
	type zoneAccum struct {
		zone    Zone
		seconds float64
	}
	type kindAccum struct {
		classified   float64
		unclassified float64
		zones        map[string]*zoneAccum
	}

	byKind := make(map[MetricKind]*kindAccum)
	for _, s := range summaries {
		for _, dist := range s.Zones {
			if !dist.Available {
				continue
			}
			acc, ok := byKind[dist.Metric]
			if !ok {
				acc = &kindAccum{zones: make(map[string]*zoneAccum)}
				byKind[dist.Metric] = acc
			}
			acc.classified += dist.TotalSeconds
			acc.unclassified += dist.UnclassifiedSeconds
			for _, zt := range dist.Zones {
				za, ok := acc.zones[zt.Zone]
				if !ok {
					za = &zoneAccum{zone: Zone{Name: zt.Zone, Min: zt.Min, Max: zt.Max}}
					acc.zones[zt.Zone] = za
				}
				za.seconds += zt.Seconds
			}
		}
	}
	if len(byKind) == 0 {
		return nil
	}

	kinds := make([]MetricKind, 0, len(byKind))
	for kind := range byKind {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	merged := make([]ZoneDistribution, 0, len(kinds))
	for _, kind := range kinds {
		acc := byKind[kind]
		accZones := make([]*zoneAccum, 0, len(acc.zones))
		for _, za := range acc.zones {
			accZones = append(accZones, za)
		}
		sort.Slice(accZones, func(i, j int) bool {
			if accZones[i].zone.Min != accZones[j].zone.Min {
				return accZones[i].zone.Min < accZones[j].zone.Min
			}
			return accZones[i].zone.Name < accZones[j].zone.Name
		})

		dist := ZoneDistribution{
			Metric:              kind,
			Available:           true,
			TotalSeconds:        acc.classified,
			UnclassifiedSeconds: acc.unclassified,
			Zones:               make([]ZoneTime, 0, len(accZones)),
		}
		for _, za := range accZones {
			pct := 0.0
			if acc.classified > 0 {
				pct = za.seconds / acc.classified * 100.0
			}
			dist.Zones = append(dist.Zones, ZoneTime{
				Zone:       za.zone.Name,
				Min:        za.zone.Min,
				Max:        za.zone.Max,
				Seconds:    za.seconds,
				Percentage: pct,
			})
		}
		merged = append(merged, dist)
	}
	return merged
}

func avgRange(values []float64, start, end int) *float64 {
	if values == nil || start < 0 || end >= len(values) {
		return nil
	}
	total := 0.0
	count := 0
	for i := start; i <= end; i++ {
		if !isFinite(values[i]) {
			continue
		}
		total += values[i]
		count++
	}
	if count == 0 {
		return nil
	}
	return floatPtr(total / float64(count))
}

func maxRange(values []float64, start, end int) *float64 {
	if values == nil || start < 0 || end >= len(values) {
		return nil
	}
	best := 0.0
	found := false
	for i := start; i <= end; i++ {
		if !isFinite(values[i]) {
			continue
		}
		if !found || values[i] > best {
			best = values[i]
			found = true
		}
	}
	if !found {
		return nil
	}
	return floatPtr(best)
}

// elevationGainRange sums the positive altitude deltas between
// consecutive finite samples in [start, end].
func elevationGainRange(values []float64, start, end int) *float64 {
	if values == nil || start < 0 || end >= len(values) {
		return nil
	}
	gain := 0.0
	previous := math.NaN()
	deltas := 0
	for i := start; i <= end; i++ {
		v := values[i]
		if !isFinite(v) {
			continue
		}
		if !math.IsNaN(previous) {
			deltas++
			if v > previous {
				gain += v - previous
			}
		}
		previous = v
	}
	if deltas == 0 {
		return nil
	}
	return floatPtr(gain)
}

func floatPtr(v float64) *float64 {
	return &v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
