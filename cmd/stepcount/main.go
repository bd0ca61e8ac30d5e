package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/lucasjlepore/stepcount"
	"github.com/lucasjlepore/stepcount/internal/monitoring"
	"github.com/lucasjlepore/stepcount/pipeline"
	"github.com/lucasjlepore/stepcount/tuning"
)

func main() {
	var (
		csvPath    = flag.String("csv", "", "Path to accelerometer .csv (timestamp,x,y,z[,annotation])")
		fitPath    = flag.String("fit", "", "Optional FIT activity for heart rate and GPS")
		outDir     = flag.String("out", "", "Output directory")
		format     = flag.String("format", "parquet", "Step events format: parquet|csv")
		tuningPath = flag.String("tuning", "", "Optional tuning .json")
		activity   = flag.String("activity", "", "Activity label copied into the summary")
		age        = flag.Float64("age", 0, "Wearer age in years")
		restingHR  = flag.Float64("resting-hr", 0, "Resting heart rate in bpm")
		weightKG   = flag.Float64("weight", 0, "Wearer weight in kg")
		heightM    = flag.Float64("height", 0, "Wearer height in meters")
		met        = flag.Float64("met", 0, "Metabolic equivalent of the activity for virtual steps")
		zone       = flag.String("zone", "warm_up", "Heart-rate zone required for virtual steps: vo2|anaerobic|aerobic|fat_burn|warm_up")
		window     = flag.Duration("window", 0, "Processing window length (default 5m)")
		overlap    = flag.Duration("overlap", 10*time.Second, "Window overlap; 0 disables it")
		workers    = flag.Int("workers", 0, "Parallel windows (default 4)")
		overwrite  = flag.Bool("overwrite", true, "Allow writing into non-empty output directories")
		logLevel   = flag.String("log-level", "info", "Log level: debug|info|warn|error")
		logJSON    = flag.Bool("log-json", false, "Emit logs as JSON")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s --csv wrist.csv --out outdir [--fit activity.fit] [--tuning tuning.json] [--format parquet|csv]\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if strings.TrimSpace(*csvPath) == "" || strings.TrimSpace(*outDir) == "" {
		flag.Usage()
		os.Exit(2)
	}

	level, err := monitoring.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stepcount: %v\n", err)
		os.Exit(2)
	}
	logger := monitoring.NewLogger(os.Stderr, level, *logJSON)
	slog.SetDefault(logger)

	cfg := stepcount.DefaultConfig()
	if *tuningPath != "" {
		t, err := tuning.Load(*tuningPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "stepcount failed: %v\n", err)
			os.Exit(1)
		}
		if cfg, err = t.Config(); err != nil {
			fmt.Fprintf(os.Stderr, "stepcount failed: %v\n", err)
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	result, err := pipeline.Run(ctx, pipeline.Options{
		Settings: pipeline.Settings{
			Config:   &cfg,
			Activity: *activity,
			Profile: pipeline.Profile{
				AgeYears:     *age,
				RestingHRBPM: *restingHR,
				WeightKG:     *weightKG,
				HeightM:      *heightM,
				MET:          *met,
				TargetZone:   *zone,
			},
			WindowDuration: *window,
			WindowOverlap:  overlap,
			Workers:        *workers,
			Logger:         logger,
		},
		CSVPath:   *csvPath,
		FitPath:   *fitPath,
		OutDir:    *outDir,
		Format:    *format,
		Overwrite: *overwrite,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "stepcount failed: %v\n", err)
		os.Exit(1)
	}

	s := result.Summary
	fmt.Printf("stepcount complete\n")
	fmt.Printf("Output dir:          %s\n", result.OutputDir)
	fmt.Printf("step events:         %s\n", result.EventsPath)
	fmt.Printf("step summary:        %s\n", result.SummaryPath)
	fmt.Printf("step notes:          %s\n", result.NotesPath)
	fmt.Printf("steps:               %d (total %d)\n", s.Steps, s.TotalSteps)
	if s.Evaluation != nil {
		fmt.Printf("precision:           %.3f (%d annotated)\n", s.Evaluation.Precision, s.Evaluation.Expected)
	}
	for _, w := range result.Warnings {
		fmt.Printf("warning:             %s\n", w)
	}
}
