package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lucasjlepore/ridelab/config"
	"github.com/lucasjlepore/ridelab/logging"
	"github.com/lucasjlepore/ridelab/pipeline"
)

func main() {
	var (
		inputPath  = flag.String("input", "", "Path to activity file (.fit or .json)")
		outDir     = flag.String("out", "", "Output directory")
		configPath = flag.String("config", "", "Path to YAML config file")
		ftp        = flag.Float64("ftp", 0, "FTP override in watts")
		format     = flag.String("format", "", "Samples format override: parquet|csv")
		overwrite  = flag.Bool("overwrite", false, "Allow writing into non-empty output directories")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s --input ride.fit --out outdir [--config ridelab.yaml] [--ftp 223] [--format parquet|csv]\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if strings.TrimSpace(*inputPath) == "" || strings.TrimSpace(*outDir) == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ride_analyze: %v\n", err)
		os.Exit(1)
	}
	if *ftp > 0 {
		cfg.Analysis.FTPWatts = *ftp
	}
	if strings.TrimSpace(*format) != "" {
		cfg.Export.Format = *format
	}
	if *overwrite {
		cfg.Export.Overwrite = true
	}

	log := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	result, err := pipeline.Run(pipeline.Options{
		InputPath: *inputPath,
		OutDir:    *outDir,
		Config:    cfg,
		Logger:    log,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ride_analyze failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("ride_analyze complete\n")
	fmt.Printf("Activity:       %s\n", result.ActivityID)
	fmt.Printf("Output dir:     %s\n", result.OutputDir)
	fmt.Printf("summary.json:   %s\n", result.Export.SummaryPath)
	fmt.Printf("bundle.json:    %s\n", result.Export.BundlePath)
	fmt.Printf("segments.csv:   %s\n", result.Export.SegmentsPath)
	fmt.Printf("samples:        %s\n", result.Export.SamplesPath)
	fmt.Printf("manifest.json:  %s\n", result.Export.ManifestPath)
	fmt.Printf("Segments:       %d\n", len(result.Summary.Segments))
}
