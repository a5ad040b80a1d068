package pipeline

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/lucasjlepore/ridelab"
	"github.com/lucasjlepore/ridelab/config"
	"github.com/lucasjlepore/ridelab/export"
)

// EngineVersion stamps artifact manifests and batch reports.
const EngineVersion = "0.1.0"

// Options configures a single-activity run.
type Options struct {
	// InputPath is the activity file (.fit or .json).
	InputPath string
	// OutDir receives the artifact set for this activity.
	OutDir string
	// Config supplies zones, thresholds and export settings. Nil means
	// config.Default().
	Config *config.Config
	// Logger receives progress events. The zero value discards them.
	Logger zerolog.Logger
	// RunID tags artifacts produced by a batch run.
	RunID string
}

// Result returns what a single-activity run produced.
type Result struct {
	ActivityID string
	OutputDir  string
	Summary    ridelab.ActivitySummary
	Export     *export.Result
}

// BatchOptions configures a multi-activity run.
type BatchOptions struct {
	// InputPaths are the activity files to analyze.
	InputPaths []string
	// OutDir receives one subdirectory per activity plus report.json.
	OutDir string
	// Config supplies zones, thresholds, export settings and the worker
	// count. Nil means config.Default().
	Config *config.Config
	// Logger receives progress events. The zero value discards them.
	Logger zerolog.Logger
}

// Activity outcomes within a batch.
const (
	StatusAnalyzed = "analyzed"
	StatusSkipped  = "skipped"
	StatusFailed   = "failed"
)

// ActivityStatus reports one activity's outcome within a batch.
type ActivityStatus struct {
	InputPath  string `json:"input_path"`
	ActivityID string `json:"activity_id,omitempty"`
	OutputDir  string `json:"output_dir,omitempty"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}

// Report is the batch outcome, written as report.json.
type Report struct {
	RunID         string                 `json:"run_id"`
	EngineVersion string                 `json:"engine_version"`
	GeneratedAt   time.Time              `json:"generated_at"`
	Analyzed      int                    `json:"analyzed"`
	Skipped       int                    `json:"skipped"`
	Failed        int                    `json:"failed"`
	Activities    []ActivityStatus       `json:"activities"`
	Rollup        *ridelab.PeriodRollup  `json:"rollup,omitempty"`
	Weekly        []ridelab.PeriodRollup `json:"weekly,omitempty"`
	ReportPath    string                 `json:"-"`
}
