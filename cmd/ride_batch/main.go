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
		outDir     = flag.String("out", "", "Output directory (one subdirectory per activity)")
		configPath = flag.String("config", "", "Path to YAML config file")
		format     = flag.String("format", "", "Samples format override: parquet|csv")
		workers    = flag.Int("workers", 0, "Concurrent activities (0 = one per CPU)")
		overwrite  = flag.Bool("overwrite", false, "Allow writing into non-empty output directories")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s --out outdir [--config ridelab.yaml] [--workers 4] ride1.fit ride2.json ...\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	inputs := flag.Args()
	if strings.TrimSpace(*outDir) == "" || len(inputs) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ride_batch: %v\n", err)
		os.Exit(1)
	}
	if strings.TrimSpace(*format) != "" {
		cfg.Export.Format = *format
	}
	if *workers > 0 {
		cfg.Batch.Workers = *workers
	}
	if *overwrite {
		cfg.Export.Overwrite = true
	}

	log := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	report, err := pipeline.RunBatch(pipeline.BatchOptions{
		InputPaths: inputs,
		OutDir:     *outDir,
		Config:     cfg,
		Logger:     log,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ride_batch failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("ride_batch complete\n")
	fmt.Printf("Run ID:      %s\n", report.RunID)
	fmt.Printf("Analyzed:    %d\n", report.Analyzed)
	fmt.Printf("Skipped:     %d\n", report.Skipped)
	fmt.Printf("Failed:      %d\n", report.Failed)
	fmt.Printf("report.json: %s\n", report.ReportPath)
	if report.Failed > 0 {
		os.Exit(1)
	}
}
