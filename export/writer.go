package export

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/lucasjlepore/ridelab"
)

// ArtifactFormatVersion identifies the on-disk artifact schema.
const ArtifactFormatVersion = "ridelab_artifacts_v1"

// Options control artifact writing for one activity.
type Options struct {
	// Format selects the samples table encoding, "parquet" or "csv".
	// Empty means parquet.
	Format string
	// Overwrite allows writing into a non-empty output directory.
	Overwrite bool
	// RunID stamps the batch run that produced the artifacts.
	RunID string
	// EngineVersion stamps the producing build.
	EngineVersion string
}

// Artifact describes one written file.
type Artifact struct {
	Name      string `json:"name"`
	SizeBytes int64  `json:"size_bytes"`
	SHA256    string `json:"sha256"`
}

// Manifest indexes the artifacts written for one activity.
type Manifest struct {
	FormatVersion string     `json:"format_version"`
	GeneratedAt   time.Time  `json:"generated_at"`
	RunID         string     `json:"run_id,omitempty"`
	EngineVersion string     `json:"engine_version,omitempty"`
	ActivityID    string     `json:"activity_id"`
	Artifacts     []Artifact `json:"artifacts"`
}

// Result reports where each artifact landed.
type Result struct {
	OutputDir    string
	SummaryPath  string
	BundlePath   string
	SegmentsPath string
	SamplesPath  string
	ManifestPath string
}

// WriteActivity writes the artifact set for one analyzed activity:
// summary.json, bundle.json, segments.csv, the aligned samples table,
// and a manifest.json carrying sizes and sha256 checksums.
func WriteActivity(outDir string, bundle ridelab.DashboardBundle, stream *ridelab.ActivityStream, opts Options) (*Result, error) {
	if strings.TrimSpace(outDir) == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "parquet"
	}
	if format != "parquet" && format != "csv" {
		return nil, fmt.Errorf("unsupported format %q (expected parquet|csv)", format)
	}
	if err := ensureOutputDir(outDir, opts.Overwrite); err != nil {
		return nil, err
	}

	result := &Result{OutputDir: outDir}
	artifacts := make([]Artifact, 0, 5)

	result.SummaryPath = filepath.Join(outDir, "summary.json")
	a, err := writeJSONArtifact(result.SummaryPath, bundle.Summary)
	if err != nil {
		return nil, fmt.Errorf("write summary.json: %w", err)
	}
	artifacts = append(artifacts, a)

	result.BundlePath = filepath.Join(outDir, "bundle.json")
	if a, err = writeJSONArtifact(result.BundlePath, bundle); err != nil {
		return nil, fmt.Errorf("write bundle.json: %w", err)
	}
	artifacts = append(artifacts, a)

	result.SegmentsPath = filepath.Join(outDir, "segments.csv")
	segmentsData, err := marshalSegmentsCSV(bundle.Segments)
	if err != nil {
		return nil, fmt.Errorf("marshal segments csv: %w", err)
	}
	if a, err = writeArtifact(result.SegmentsPath, segmentsData); err != nil {
		return nil, fmt.Errorf("write segments.csv: %w", err)
	}
	artifacts = append(artifacts, a)

	var samplesData []byte
	switch format {
	case "csv":
		samplesData, err = marshalSamplesCSV(stream)
	case "parquet":
		samplesData, err = marshalSamplesParquet(stream)
	}
	if err != nil {
		return nil, fmt.Errorf("marshal samples %s: %w", format, err)
	}
	result.SamplesPath = filepath.Join(outDir, "samples."+format)
	if a, err = writeArtifact(result.SamplesPath, samplesData); err != nil {
		return nil, fmt.Errorf("write samples.%s: %w", format, err)
	}
	artifacts = append(artifacts, a)

	manifest := Manifest{
		FormatVersion: ArtifactFormatVersion,
		GeneratedAt:   time.Now().UTC(),
		RunID:         opts.RunID,
		EngineVersion: opts.EngineVersion,
		ActivityID:    bundle.ActivityID,
		Artifacts:     artifacts,
	}
	result.ManifestPath = filepath.Join(outDir, "manifest.json")
	if _, err := writeJSONArtifact(result.ManifestPath, manifest); err != nil {
		return nil, fmt.Errorf("write manifest.json: %w", err)
	}
	return result, nil
}

func ensureOutputDir(path string, overwrite bool) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("read output directory: %w", err)
	}
	if len(entries) > 0 && !overwrite {
		return fmt.Errorf("output directory is not empty: %s (set overwrite to allow)", path)
	}
	return nil
}

func writeJSONArtifact(path string, v any) (Artifact, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return Artifact{}, err
	}
	data = append(data, '\n')
	return writeArtifact(path, data)
}

func writeArtifact(path string, data []byte) (Artifact, error) {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Artifact{}, err
	}
	sum := sha256.Sum256(data)
	return Artifact{
		Name:      filepath.Base(path),
		SizeBytes: int64(len(data)),
		SHA256:    hex.EncodeToString(sum[:]),
	}, nil
}
