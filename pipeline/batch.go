package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lucasjlepore/ridelab"
	"github.com/lucasjlepore/ridelab/config"
)

// RunBatch analyzes many activity files with bounded concurrency and
// writes per-activity artifact sets plus a batch report with period
// rollups. One failing activity never aborts the others.
func RunBatch(opts BatchOptions) (*Report, error) {
	if len(opts.InputPaths) == 0 {
		return nil, fmt.Errorf("at least one input file is required")
	}
	if strings.TrimSpace(opts.OutDir) == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	cfg := opts.Config
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	runID := uuid.NewString()
	workers := cfg.Batch.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	log := opts.Logger.With().Str("run_id", runID).Logger()
	log.Info().Int("activities", len(opts.InputPaths)).Int("workers", workers).Msg("batch started")

	outDirs := activityOutDirs(opts.OutDir, opts.InputPaths)
	statuses := make([]ActivityStatus, len(opts.InputPaths))
	summaries := make([]*ridelab.ActivitySummary, len(opts.InputPaths))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, path := range opts.InputPaths {
		g.Go(func() error {
			res, err := Run(Options{
				InputPath: path,
				OutDir:    outDirs[i],
				Config:    cfg,
				Logger:    log,
				RunID:     runID,
			})
			switch {
			case err == nil:
				statuses[i] = ActivityStatus{
					InputPath:  path,
					ActivityID: res.ActivityID,
					OutputDir:  res.OutputDir,
					Status:     StatusAnalyzed,
				}
				summaries[i] = &res.Summary
			case isSkippable(err):
				statuses[i] = ActivityStatus{InputPath: path, Status: StatusSkipped, Error: err.Error()}
				log.Warn().Str("input", path).Err(err).Msg("activity skipped")
			default:
				statuses[i] = ActivityStatus{InputPath: path, Status: StatusFailed, Error: err.Error()}
				log.Error().Str("input", path).Err(err).Msg("activity failed")
			}
			return nil
		})
	}
	_ = g.Wait()

	report := &Report{
		RunID:         runID,
		EngineVersion: EngineVersion,
		GeneratedAt:   time.Now().UTC(),
		Activities:    statuses,
	}
	for _, st := range statuses {
		switch st.Status {
		case StatusAnalyzed:
			report.Analyzed++
		case StatusSkipped:
			report.Skipped++
		case StatusFailed:
			report.Failed++
		}
	}

	analyzed := make([]ridelab.ActivitySummary, 0, len(summaries))
	for _, s := range summaries {
		if s != nil {
			analyzed = append(analyzed, *s)
		}
	}
	if len(analyzed) > 0 {
		rollup := ridelab.Rollup(analyzed)
		report.Rollup = &rollup
		report.Weekly = ridelab.RollupByWeek(analyzed)
	}

	report.ReportPath = filepath.Join(opts.OutDir, "report.json")
	if err := writeReport(report.ReportPath, report); err != nil {
		return nil, fmt.Errorf("write report.json: %w", err)
	}

	log.Info().
		Int("analyzed", report.Analyzed).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Msg("batch finished")
	return report, nil
}

// isSkippable separates activities with too little usable data from
// real failures.
func isSkippable(err error) bool {
	var insufficient *ridelab.InsufficientDataError
	return errors.As(err, &insufficient)
}

// activityOutDirs maps each input to a subdirectory named after its
// file stem, disambiguating duplicate stems.
func activityOutDirs(outDir string, paths []string) []string {
	dirs := make([]string, len(paths))
	seen := make(map[string]int)
	for i, p := range paths {
		stem := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		seen[stem]++
		if n := seen[stem]; n > 1 {
			stem = fmt.Sprintf("%s_%d", stem, n)
		}
		dirs[i] = filepath.Join(outDir, stem)
	}
	return dirs
}

func writeReport(path string, report *Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
