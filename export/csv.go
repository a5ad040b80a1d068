package export

import (
	"bytes"
	"encoding/csv"
	"math"
	"strconv"

	"github.com/lucasjlepore/ridelab"
)

// marshalSamplesCSV encodes the aligned per-sample table as CSV.
// Absent columns and dropouts become empty cells.
func marshalSamplesCSV(stream *ridelab.ActivityStream) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{
		"elapsed_s", "distance_m", "heart_rate_bpm", "power_w", "cadence_rpm",
		"speed_mps", "altitude_m", "grade_pct", "temperature_c", "lat", "lng",
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for i := range stream.Time {
		row := []string{
			formatFloat(stream.Time[i]),
			formatCell(sampleAt(stream.Distance, i)),
			formatCell(sampleAt(stream.HeartRate, i)),
			formatCell(sampleAt(stream.Power, i)),
			formatCell(sampleAt(stream.Cadence, i)),
			formatCell(sampleAt(stream.Speed, i)),
			formatCell(sampleAt(stream.Altitude, i)),
			formatCell(sampleAt(stream.Grade, i)),
			formatCell(sampleAt(stream.Temperature, i)),
			formatCell(sampleAt(stream.Lat, i)),
			formatCell(sampleAt(stream.Lng, i)),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func marshalSegmentsCSV(segments []ridelab.Segment) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{
		"kind", "start_index", "end_index", "start_offset_s", "end_offset_s", "duration_s",
		"avg_grade_pct", "avg_heart_rate_bpm", "peak_heart_rate_bpm",
		"avg_power_w", "peak_power_w", "avg_speed_mps", "elevation_gain_m",
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, s := range segments {
		row := []string{
			string(s.Kind),
			strconv.Itoa(s.StartIndex),
			strconv.Itoa(s.EndIndex),
			formatFloat(s.StartOffsetS),
			formatFloat(s.EndOffsetS),
			formatFloat(s.DurationS),
			formatFloatPtr(s.AvgGradePct),
			formatFloatPtr(s.AvgHeartRate),
			formatFloatPtr(s.PeakHeartRate),
			formatFloatPtr(s.AvgPowerW),
			formatFloatPtr(s.PeakPowerW),
			formatFloatPtr(s.AvgSpeedMps),
			formatFloatPtr(s.ElevationGainM),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func sampleAt(column []float64, i int) float64 {
	if column == nil {
		return math.NaN()
	}
	return column[i]
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func formatFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func formatCell(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return formatFloat(v)
}
