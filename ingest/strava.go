package ingest

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/goccy/go-json"

	"github.com/lucasjlepore/ridelab"
)

// stravaStream is one entry of a key_by_type streams response.
type stravaStream struct {
	Data json.RawMessage `json:"data"`
}

// ReadStravaStreams decodes a Strava streams payload into raw streams.
// It accepts the bare key_by_type map ({"time": {"data": [...]}, ...})
// or an envelope wrapping it under "streams" alongside identity fields.
// Null entries inside a stream become NaN samples; the "moving" stream
// is ignored because moving time is derived from speed downstream.
func ReadStravaStreams(r io.Reader, activityID string) (ridelab.RawStreams, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return ridelab.RawStreams{}, fmt.Errorf("read streams payload: %w", err)
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return ridelab.RawStreams{}, fmt.Errorf("decode streams payload: %w", err)
	}

	raw := ridelab.RawStreams{ActivityID: activityID}
	streamsRaw := body
	if wrapped, ok := top["streams"]; ok {
		var envelope struct {
			ActivityID string    `json:"activity_id"`
			StartDate  time.Time `json:"start_date"`
			Type       string    `json:"type"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return ridelab.RawStreams{}, fmt.Errorf("decode streams envelope: %w", err)
		}
		if envelope.ActivityID != "" {
			raw.ActivityID = envelope.ActivityID
		}
		raw.StartTime = envelope.StartDate
		raw.Sport = envelope.Type
		streamsRaw = wrapped
	}

	var streams map[string]stravaStream
	if err := json.Unmarshal(streamsRaw, &streams); err != nil {
		return ridelab.RawStreams{}, fmt.Errorf("decode streams map: %w", err)
	}

	if raw.Time, err = scalarStream(streams, "time"); err != nil {
		return ridelab.RawStreams{}, err
	}
	if raw.Time == nil {
		return ridelab.RawStreams{}, fmt.Errorf("streams payload has no time stream")
	}
	if raw.Distance, err = scalarStream(streams, "distance"); err != nil {
		return ridelab.RawStreams{}, err
	}
	if raw.Altitude, err = scalarStream(streams, "altitude"); err != nil {
		return ridelab.RawStreams{}, err
	}
	if raw.Speed, err = scalarStream(streams, "velocity_smooth"); err != nil {
		return ridelab.RawStreams{}, err
	}
	if raw.HeartRate, err = scalarStream(streams, "heartrate"); err != nil {
		return ridelab.RawStreams{}, err
	}
	if raw.Cadence, err = scalarStream(streams, "cadence"); err != nil {
		return ridelab.RawStreams{}, err
	}
	if raw.Power, err = scalarStream(streams, "watts"); err != nil {
		return ridelab.RawStreams{}, err
	}
	if raw.Temperature, err = scalarStream(streams, "temp"); err != nil {
		return ridelab.RawStreams{}, err
	}
	if raw.Grade, err = scalarStream(streams, "grade_smooth"); err != nil {
		return ridelab.RawStreams{}, err
	}
	if raw.Lat, raw.Lng, err = latLngStream(streams); err != nil {
		return ridelab.RawStreams{}, err
	}
	if raw.Grade == nil {
		raw.Grade = deriveGrade(raw.Altitude, raw.Distance)
	}
	return raw, nil
}

func scalarStream(streams map[string]stravaStream, key string) ([]float64, error) {
	s, ok := streams[key]
	if !ok || len(s.Data) == 0 {
		return nil, nil
	}
	var entries []*float64
	if err := json.Unmarshal(s.Data, &entries); err != nil {
		return nil, fmt.Errorf("decode %s stream: %w", key, err)
	}
	if len(entries) == 0 {
		return nil, nil
	}
	out := make([]float64, len(entries))
	for i, e := range entries {
		if e == nil {
			out[i] = math.NaN()
		} else {
			out[i] = *e
		}
	}
	return out, nil
}

func latLngStream(streams map[string]stravaStream) ([]float64, []float64, error) {
	s, ok := streams["latlng"]
	if !ok || len(s.Data) == 0 {
		return nil, nil, nil
	}
	var pairs []*[2]float64
	if err := json.Unmarshal(s.Data, &pairs); err != nil {
		return nil, nil, fmt.Errorf("decode latlng stream: %w", err)
	}
	if len(pairs) == 0 {
		return nil, nil, nil
	}
	lat := make([]float64, len(pairs))
	lng := make([]float64, len(pairs))
	for i, p := range pairs {
		if p == nil {
			lat[i] = math.NaN()
			lng[i] = math.NaN()
			continue
		}
		lat[i] = p[0]
		lng[i] = p[1]
	}
	return lat, lng, nil
}
