package ingest

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/tormoder/fit"

	"github.com/lucasjlepore/ridelab"
)

// ReadFile decodes one activity file into raw streams, dispatching on
// the extension: .fit for Garmin FIT, .json for Strava stream payloads.
func ReadFile(path string) (ridelab.RawStreams, error) {
	f, err := os.Open(path)
	if err != nil {
		return ridelab.RawStreams{}, fmt.Errorf("open activity file: %w", err)
	}
	defer f.Close()

	id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	switch strings.ToLower(filepath.Ext(path)) {
	case ".fit":
		return ReadFIT(f, id)
	case ".json":
		return ReadStravaStreams(f, id)
	default:
		return ridelab.RawStreams{}, fmt.Errorf("unsupported activity file type %q", filepath.Ext(path))
	}
}

// ReadFIT decodes an activity FIT file into raw streams. Sensor fields
// holding the FIT invalid sentinel become NaN samples; fields no record
// ever carried stay nil.
func ReadFIT(r io.Reader, activityID string) (ridelab.RawStreams, error) {
	decoded, err := fit.Decode(r)
	if err != nil {
		return ridelab.RawStreams{}, fmt.Errorf("decode FIT file: %w", err)
	}
	activity, err := decoded.Activity()
	if err != nil {
		return ridelab.RawStreams{}, fmt.Errorf("activity FIT expected: %w", err)
	}

	records := make([]*fit.RecordMsg, 0, len(activity.Records))
	for _, rec := range activity.Records {
		if rec != nil {
			records = append(records, rec)
		}
	}
	if len(records) == 0 {
		return ridelab.RawStreams{}, fmt.Errorf("activity file has no record messages")
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})

	start := time.Time{}
	for _, rec := range records {
		if ts := validTimeOrZero(rec.Timestamp); !ts.IsZero() {
			start = ts
			break
		}
	}

	n := len(records)
	raw := ridelab.RawStreams{
		ActivityID: activityID,
		StartTime:  start,
		Time:       make([]float64, n),
	}
	distance := newColumn(n)
	heartRate := newColumn(n)
	power := newColumn(n)
	cadence := newColumn(n)
	speed := newColumn(n)
	altitude := newColumn(n)
	grade := newColumn(n)
	temperature := newColumn(n)
	lat := newColumn(n)
	lng := newColumn(n)

	for i, rec := range records {
		ts := validTimeOrZero(rec.Timestamp)
		if ts.IsZero() || start.IsZero() {
			raw.Time[i] = math.NaN()
		} else {
			raw.Time[i] = ts.Sub(start).Seconds()
		}

		distance.set(i, rec.GetDistanceScaled())
		heartRate.set(i, recordHeartRate(rec))
		power.set(i, recordPower(rec))
		cadence.set(i, recordCadence(rec))
		speed.set(i, recordSpeed(rec))
		altitude.set(i, recordAltitude(rec))
		grade.set(i, rec.GetGradeScaled())
		temperature.set(i, recordTemperature(rec))
		if !rec.PositionLat.Invalid() && !rec.PositionLong.Invalid() {
			lat.set(i, rec.PositionLat.Degrees())
			lng.set(i, rec.PositionLong.Degrees())
		}
	}

	raw.Distance = distance.slice()
	raw.HeartRate = heartRate.slice()
	raw.Power = power.slice()
	raw.Cadence = cadence.slice()
	raw.Speed = speed.slice()
	raw.Altitude = altitude.slice()
	raw.Grade = grade.slice()
	raw.Temperature = temperature.slice()
	raw.Lat = lat.slice()
	raw.Lng = lng.slice()

	if len(activity.Sessions) > 0 {
		session := activity.Sessions[0]
		raw.Sport = fmt.Sprint(session.Sport)
		if ts := validTimeOrZero(session.StartTime); !ts.IsZero() {
			raw.StartTime = ts
		}
	}

	if raw.Grade == nil {
		raw.Grade = deriveGrade(raw.Altitude, raw.Distance)
	}
	return raw, nil
}

func recordHeartRate(rec *fit.RecordMsg) float64 {
	if rec.HeartRate == math.MaxUint8 {
		return math.NaN()
	}
	return float64(rec.HeartRate)
}

func recordPower(rec *fit.RecordMsg) float64 {
	if rec.Power == math.MaxUint16 {
		return math.NaN()
	}
	return float64(rec.Power)
}

func recordCadence(rec *fit.RecordMsg) float64 {
	cad256 := rec.GetCadence256Scaled()
	if isFinite(cad256) && cad256 > 0 {
		return cad256
	}
	if rec.Cadence == math.MaxUint8 {
		return math.NaN()
	}
	return float64(rec.Cadence)
}

func recordSpeed(rec *fit.RecordMsg) float64 {
	speed := rec.GetEnhancedSpeedScaled()
	if isFinite(speed) && speed >= 0 {
		return speed
	}
	speed = rec.GetSpeedScaled()
	if isFinite(speed) && speed >= 0 {
		return speed
	}
	return math.NaN()
}

func recordAltitude(rec *fit.RecordMsg) float64 {
	altitude := rec.GetEnhancedAltitudeScaled()
	if isFinite(altitude) {
		return altitude
	}
	return rec.GetAltitudeScaled()
}

func recordTemperature(rec *fit.RecordMsg) float64 {
	if rec.Temperature == math.MaxInt8 {
		return math.NaN()
	}
	return float64(rec.Temperature)
}

func validTimeOrZero(t time.Time) time.Time {
	if t.IsZero() || fit.IsBaseTime(t) {
		return time.Time{}
	}
	return t
}

// deriveGrade approximates grade from altitude and distance deltas when
// the device recorded no grade field.
func deriveGrade(altitude, distance []float64) []float64 {
	n := len(altitude)
	if len(distance) < n {
		n = len(distance)
	}
	if n < 2 {
		return nil
	}
	grade := make([]float64, len(altitude))
	for i := range grade {
		grade[i] = math.NaN()
	}
	derived := false
	for i := 1; i < n; i++ {
		dAlt := altitude[i] - altitude[i-1]
		dDist := distance[i] - distance[i-1]
		if isFinite(dAlt) && isFinite(dDist) && dDist > 0 {
			grade[i] = dAlt / dDist * 100
			derived = true
		}
	}
	if !derived {
		return nil
	}
	return grade
}

// column accumulates one sensor field and remembers whether any record
// actually carried it.
type column struct {
	values  []float64
	present bool
}

func newColumn(n int) *column {
	values := make([]float64, n)
	for i := range values {
		values[i] = math.NaN()
	}
	return &column{values: values}
}

func (c *column) set(i int, v float64) {
	c.values[i] = v
	if isFinite(v) {
		c.present = true
	}
}

func (c *column) slice() []float64 {
	if !c.present {
		return nil
	}
	return c.values
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
