package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/lucasjlepore/ridelab"
	"github.com/lucasjlepore/ridelab/config"
	"github.com/lucasjlepore/ridelab/export"
	"github.com/lucasjlepore/ridelab/ingest"
)

// Run analyzes one activity file end to end: ingest, align, classify
// zones, detect segments, summarize, assemble the dashboard bundle and
// write the artifact set.
func Run(opts Options) (*Result, error) {
	if strings.TrimSpace(opts.InputPath) == "" {
		return nil, fmt.Errorf("input path is required")
	}
	if strings.TrimSpace(opts.OutDir) == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	cfg := opts.Config
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}

	log := opts.Logger.With().Str("input", filepath.Base(opts.InputPath)).Logger()

	raw, err := ingest.ReadFile(opts.InputPath)
	if err != nil {
		return nil, fmt.Errorf("ingest %s: %w", filepath.Base(opts.InputPath), err)
	}

	stream, err := ridelab.Align(raw, ridelab.AlignOptions{MinSamples: cfg.Analysis.MinSamples})
	if err != nil {
		return nil, fmt.Errorf("align streams: %w", err)
	}
	log.Debug().
		Str("activity_id", stream.ActivityID).
		Int("samples", stream.Len()).
		Int("dropped", stream.DroppedSamples).
		Msg("aligned streams")

	defs, err := cfg.ZoneDefinitions()
	if err != nil {
		return nil, fmt.Errorf("zone config: %w", err)
	}
	zones := make([]ridelab.ZoneDistribution, 0, len(defs))
	for _, def := range defs {
		zones = append(zones, ridelab.ClassifyZones(stream, def))
	}

	detector, err := ridelab.NewDetector(cfg.DetectorConfig(), log)
	if err != nil {
		return nil, fmt.Errorf("detector config: %w", err)
	}
	segments := detector.Detect(stream)

	summary := ridelab.Summarize(stream, zones, segments, cfg.SummaryConfig())
	bundle := ridelab.Assemble(stream, summary, cfg.AssembleOptions())

	exported, err := export.WriteActivity(opts.OutDir, bundle, stream, export.Options{
		Format:        cfg.Export.Format,
		Overwrite:     cfg.Export.Overwrite,
		RunID:         opts.RunID,
		EngineVersion: EngineVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("write artifacts: %w", err)
	}

	log.Info().
		Str("activity_id", summary.ActivityID).
		Int("segments", len(summary.Segments)).
		Str("out_dir", exported.OutputDir).
		Msg("activity analyzed")

	return &Result{
		ActivityID: summary.ActivityID,
		OutputDir:  exported.OutputDir,
		Summary:    summary,
		Export:     exported,
	}, nil
}
