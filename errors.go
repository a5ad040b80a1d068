package ridelab

import "fmt"

// InsufficientDataError reports a stream too short to analyze. Retrying
// will not add samples; callers should skip the activity.
type InsufficientDataError struct {
	Samples int
	Minimum int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("stream has %d samples, minimum is %d", e.Samples, e.Minimum)
}

// MissingMetricError reports a computation that needs a metric the stream
// does not carry. Callers absorb it into a "not available" value instead
// of failing the activity.
type MissingMetricError struct {
	Metric MetricKind
}

func (e *MissingMetricError) Error() string {
	return fmt.Sprintf("metric %s not present in stream", e.Metric)
}

// InvalidZoneConfigError reports an unsorted or overlapping zone
// definition. It is raised before any classification runs and is never
// repaired silently.
type InvalidZoneConfigError struct {
	Kind   MetricKind
	Reason string
}

func (e *InvalidZoneConfigError) Error() string {
	return fmt.Sprintf("invalid %s zone definition: %s", e.Kind, e.Reason)
}
