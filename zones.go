package ridelab

// Zone is one named closed interval [Min, Max] of a zone definition.
type Zone struct {
	Name string  `json:"name"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// ZoneDefinition is an immutable, validated ordered set of zones for one
// metric kind. Construct it with NewZoneDefinition; the invariants are
// checked once there and never re-checked at classification time.
type ZoneDefinition struct {
	kind  MetricKind
	zones []Zone
}

// NewZoneDefinition validates ordering and overlap and returns the
// definition. Zones must be sorted ascending and non-overlapping;
// adjacent bounds are allowed and resolved by the lower-zone-wins
// tie-break during classification. Violations return
// InvalidZoneConfigError and are never corrected silently.
func NewZoneDefinition(kind MetricKind, zones []Zone) (ZoneDefinition, error) {
	if len(zones) == 0 {
		return ZoneDefinition{}, &InvalidZoneConfigError{Kind: kind, Reason: "no zones defined"}
	}
	for i, z := range zones {
		if z.Name == "" {
			return ZoneDefinition{}, &InvalidZoneConfigError{Kind: kind, Reason: "zone without a name"}
		}
		if !isFinite(z.Min) || !isFinite(z.Max) {
			return ZoneDefinition{}, &InvalidZoneConfigError{Kind: kind, Reason: "zone bound is not a finite number"}
		}
		if z.Max < z.Min {
			return ZoneDefinition{}, &InvalidZoneConfigError{Kind: kind, Reason: "zone " + z.Name + " has max below min"}
		}
		if i == 0 {
			continue
		}
		prev := zones[i-1]
		if z.Min < prev.Min {
			return ZoneDefinition{}, &InvalidZoneConfigError{Kind: kind, Reason: "zones are not sorted ascending"}
		}
		if z.Min < prev.Max {
			return ZoneDefinition{}, &InvalidZoneConfigError{Kind: kind, Reason: "zones " + prev.Name + " and " + z.Name + " overlap"}
		}
	}
	owned := make([]Zone, len(zones))
	copy(owned, zones)
	return ZoneDefinition{kind: kind, zones: owned}, nil
}

// Kind returns the metric kind the definition applies to.
func (d ZoneDefinition) Kind() MetricKind {
	return d.kind
}

// Zones returns a copy of the ordered zone list.
func (d ZoneDefinition) Zones() []Zone {
	out := make([]Zone, len(d.zones))
	copy(out, d.zones)
	return out
}

// ZoneTime is the time share of one zone within a distribution.
type ZoneTime struct {
	Zone       string  `json:"zone"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Seconds    float64 `json:"seconds"`
	Percentage float64 `json:"percentage"`
}

// ZoneDistribution holds the time-weighted zone result for one metric.
// Available is false when the stream carried no data for the metric at
// all, which renders as "not available" rather than an all-zero chart.
type ZoneDistribution struct {
	Metric              MetricKind `json:"metric"`
	Available           bool       `json:"available"`
	TotalSeconds        float64    `json:"total_seconds"`
	UnclassifiedSeconds float64    `json:"unclassified_seconds,omitempty"`
	Zones               []ZoneTime `json:"zones,omitempty"`
}

// ClassifyZones buckets every present sample of the definition's metric
// into the first zone whose closed interval contains it, scanning zones
// ascending, and weights each sample by the stream's sample interval. A
// value exactly on a shared bound lands in the lower zone. A stream with
// no data for the metric yields Available == false.
func ClassifyZones(stream *ActivityStream, def ZoneDefinition) ZoneDistribution {
	dist := ZoneDistribution{Metric: def.kind}

	values, err := stream.Metric(def.kind)
	if err != nil {
		return dist
	}

	interval := stream.SampleInterval()
	counts := make([]int, len(def.zones))
	classified := 0
	unclassified := 0
	for _, v := range values {
		if !isFinite(v) {
			continue
		}
		matched := false
		for i, z := range def.zones {
			if v >= z.Min && v <= z.Max {
				counts[i]++
				classified++
				matched = true
				break
			}
		}
		if !matched {
			unclassified++
		}
	}

	dist.Available = true
	dist.TotalSeconds = float64(classified) * interval
	dist.UnclassifiedSeconds = float64(unclassified) * interval
	dist.Zones = make([]ZoneTime, 0, len(def.zones))
	for i, z := range def.zones {
		seconds := float64(counts[i]) * interval
		pct := 0.0
		if classified > 0 {
			pct = float64(counts[i]) / float64(classified) * 100.0
		}
		dist.Zones = append(dist.Zones, ZoneTime{
			Zone:       z.Name,
			Min:        z.Min,
			Max:        z.Max,
			Seconds:    seconds,
			Percentage: pct,
		})
	}
	return dist
}
