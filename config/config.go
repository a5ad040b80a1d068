package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/lucasjlepore/ridelab"
)

// EnvPrefix namespaces the environment variables read by Load, e.g.
// RIDELAB_DETECTION_MERGE_GAP_S=20.
const EnvPrefix = "RIDELAB_"

var validate = validator.New()

// Config is the full analysis configuration. Precedence when loading:
// environment > file > defaults.
type Config struct {
	Log       LogConfig       `koanf:"log"`
	Analysis  AnalysisConfig  `koanf:"analysis"`
	Zones     ZonesConfig     `koanf:"zones"`
	Detection DetectionConfig `koanf:"detection"`
	Bundle    BundleConfig    `koanf:"bundle"`
	Export    ExportConfig    `koanf:"export"`
	Batch     BatchConfig     `koanf:"batch"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=trace debug info warn warning error disabled"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
}

type AnalysisConfig struct {
	// MinSamples rejects streams shorter than this after alignment.
	MinSamples int `koanf:"min_samples" validate:"min=0"`
	// MinMovingSpeedMps separates moving time from stopped time.
	MinMovingSpeedMps float64 `koanf:"min_moving_speed_mps" validate:"min=0"`
	// FTPWatts is the athlete's threshold power; zero estimates it per
	// ride and derives power zones only when estimation succeeds.
	FTPWatts float64 `koanf:"ftp_watts" validate:"min=0"`
}

// ZoneSpec is one configured zone with absolute bounds.
type ZoneSpec struct {
	Name string  `koanf:"name" validate:"required"`
	Min  float64 `koanf:"min"`
	Max  float64 `koanf:"max"`
}

type ZonesConfig struct {
	HeartRate []ZoneSpec `koanf:"heart_rate" validate:"omitempty,dive"`
	// Power zones override the FTP-derived defaults when set.
	Power []ZoneSpec `koanf:"power" validate:"omitempty,dive"`
}

type DetectionConfig struct {
	SmoothingWindow   int     `koanf:"smoothing_window" validate:"min=1"`
	GradeThresholdPct float64 `koanf:"grade_threshold_pct" validate:"min=0"`
	EffortPowerW      float64 `koanf:"effort_power_w" validate:"min=0"`
	EffortHeartRate   float64 `koanf:"effort_heart_rate" validate:"min=0"`
	MinDurationS      float64 `koanf:"min_duration_s" validate:"min=0"`
	MergeGapS         float64 `koanf:"merge_gap_s" validate:"min=0"`
}

type BundleConfig struct {
	MaxPoints        int                `koanf:"max_points" validate:"min=0"`
	RouteMetric      string             `koanf:"route_metric"`
	RouteMetricScale float64            `koanf:"route_metric_scale"`
	HistogramBins    map[string]float64 `koanf:"histogram_bins"`
}

type ExportConfig struct {
	// Format selects the samples artifact encoding.
	Format    string `koanf:"format" validate:"omitempty,oneof=csv parquet"`
	Overwrite bool   `koanf:"overwrite"`
}

type BatchConfig struct {
	// Workers bounds concurrent activities; zero means one per CPU.
	Workers int `koanf:"workers" validate:"min=0"`
}

// Default returns the built-in configuration: 1Hz road-riding analysis
// with five heart rate zones and FTP-relative power zones.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info", Format: "json"},
		Analysis: AnalysisConfig{
			MinSamples:        30,
			MinMovingSpeedMps: 0.5,
		},
		Zones: ZonesConfig{
			HeartRate: []ZoneSpec{
				{Name: "Z1", Min: 0, Max: 120},
				{Name: "Z2", Min: 120, Max: 140},
				{Name: "Z3", Min: 140, Max: 160},
				{Name: "Z4", Min: 160, Max: 180},
				{Name: "Z5", Min: 180, Max: 200},
			},
		},
		Detection: DetectionConfig{
			SmoothingWindow:   5,
			GradeThresholdPct: 3,
			EffortHeartRate:   160,
			MinDurationS:      60,
			MergeGapS:         15,
		},
		Bundle: BundleConfig{
			MaxPoints:        2000,
			RouteMetric:      "speed",
			RouteMetricScale: 3.6,
			HistogramBins: map[string]float64{
				"heart_rate": 10,
				"power":      25,
				"speed":      1,
				"grade":      1,
				"cadence":    5,
			},
		},
		Export: ExportConfig{Format: "parquet"},
	}
}

// Load layers the optional YAML file at path and RIDELAB_* environment
// variables over the defaults, then validates. An empty path skips the
// file layer; a non-empty path must exist.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := Default()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKeyToPath), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKeyToPath maps RIDELAB_SECTION_SOME_KEY to section.some_key. Only
// the first underscore after the prefix separates the section, so
// multi-word keys survive.
func envKeyToPath(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	return strings.Replace(key, "_", ".", 1)
}

// Validate checks field constraints and that every configured zone list
// builds a valid definition.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	if _, err := c.ZoneDefinitions(); err != nil {
		return err
	}
	return nil
}

// ZoneDefinitions materializes the configured zones. Power zones fall
// back to FTP-relative bounds when unset and an FTP is configured; with
// neither, no power distribution is produced.
func (c *Config) ZoneDefinitions() ([]ridelab.ZoneDefinition, error) {
	defs := make([]ridelab.ZoneDefinition, 0, 2)

	if len(c.Zones.HeartRate) > 0 {
		def, err := ridelab.NewZoneDefinition(ridelab.MetricHeartRate, toZones(c.Zones.HeartRate))
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}

	power := c.Zones.Power
	if len(power) == 0 && c.Analysis.FTPWatts > 0 {
		power = PowerZonesFromFTP(c.Analysis.FTPWatts)
	}
	if len(power) > 0 {
		def, err := ridelab.NewZoneDefinition(ridelab.MetricPower, toZones(power))
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// PowerZonesFromFTP expands the classic seven training zones, expressed
// as percentages of threshold power, into absolute watt bounds.
func PowerZonesFromFTP(ftp float64) []ZoneSpec {
	type boundary struct {
		name string
		min  float64
		max  float64
	}
	relative := []boundary{
		{name: "Z1 Active Recovery", min: 0, max: 55},
		{name: "Z2 Endurance", min: 55, max: 75},
		{name: "Z3 Tempo", min: 75, max: 90},
		{name: "Z4 Threshold", min: 90, max: 105},
		{name: "Z5 VO2", min: 105, max: 120},
		{name: "Z6 Anaerobic", min: 120, max: 150},
		{name: "Z7 Neuromuscular", min: 150, max: 1000},
	}
	zones := make([]ZoneSpec, 0, len(relative))
	for _, b := range relative {
		zones = append(zones, ZoneSpec{
			Name: b.name,
			Min:  b.min * ftp / 100,
			Max:  b.max * ftp / 100,
		})
	}
	return zones
}

func toZones(specs []ZoneSpec) []ridelab.Zone {
	zones := make([]ridelab.Zone, 0, len(specs))
	for _, s := range specs {
		zones = append(zones, ridelab.Zone{Name: s.Name, Min: s.Min, Max: s.Max})
	}
	return zones
}

// DetectorConfig converts the detection section.
func (c *Config) DetectorConfig() ridelab.DetectorConfig {
	return ridelab.DetectorConfig{
		SmoothingWindow:   c.Detection.SmoothingWindow,
		GradeThresholdPct: c.Detection.GradeThresholdPct,
		EffortPowerW:      c.Detection.EffortPowerW,
		EffortHeartRate:   c.Detection.EffortHeartRate,
		MinDurationS:      c.Detection.MinDurationS,
		MergeGapS:         c.Detection.MergeGapS,
	}
}

// SummaryConfig converts the analysis section.
func (c *Config) SummaryConfig() ridelab.SummaryConfig {
	return ridelab.SummaryConfig{
		MinMovingSpeedMps: c.Analysis.MinMovingSpeedMps,
		FTPWatts:          c.Analysis.FTPWatts,
	}
}

// AssembleOptions converts the bundle section.
func (c *Config) AssembleOptions() ridelab.AssembleOptions {
	bins := make(map[ridelab.MetricKind]float64, len(c.Bundle.HistogramBins))
	for kind, width := range c.Bundle.HistogramBins {
		bins[ridelab.MetricKind(kind)] = width
	}
	return ridelab.AssembleOptions{
		MaxPoints:          c.Bundle.MaxPoints,
		RouteMetric:        ridelab.MetricKind(c.Bundle.RouteMetric),
		RouteMetricScale:   c.Bundle.RouteMetricScale,
		HistogramBinWidths: bins,
	}
}
