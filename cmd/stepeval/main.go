package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/lucasjlepore/stepcount"
	"github.com/lucasjlepore/stepcount/internal/monitoring"
	"github.com/lucasjlepore/stepcount/pipeline"
	"github.com/lucasjlepore/stepcount/tuning"
	"golang.org/x/sync/errgroup"
)

type reportRecord struct {
	FileName  string
	Expected  int
	Actual    int
	Precision float64
}

func main() {
	var (
		dir        = flag.String("dir", "", "Directory of annotated accelerometer .csv files")
		outPath    = flag.String("out", "steps_report.csv", "Report CSV path")
		tuningPath = flag.String("tuning", "", "Optional tuning .json")
		workers    = flag.Int("workers", 8, "Files evaluated in parallel")
		logLevel   = flag.String("log-level", "warn", "Log level: debug|info|warn|error")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s --dir recordings/ [--out report.csv] [--tuning tuning.json]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if strings.TrimSpace(*dir) == "" {
		flag.Usage()
		os.Exit(2)
	}

	level, err := monitoring.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stepeval: %v\n", err)
		os.Exit(2)
	}
	logger := monitoring.NewLogger(os.Stderr, level, false)
	slog.SetDefault(logger)

	cfg := stepcount.DefaultConfig()
	if *tuningPath != "" {
		t, err := tuning.Load(*tuningPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "stepeval failed: %v\n", err)
			os.Exit(1)
		}
		if cfg, err = t.Config(); err != nil {
			fmt.Fprintf(os.Stderr, "stepeval failed: %v\n", err)
			os.Exit(1)
		}
	}

	paths, err := filepath.Glob(filepath.Join(*dir, "*.csv"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "stepeval failed: %v\n", err)
		os.Exit(1)
	}
	if len(paths) == 0 {
		fmt.Fprintf(os.Stderr, "stepeval: no .csv files in %s\n", *dir)
		os.Exit(1)
	}

	report, err := evaluate(context.Background(), paths, cfg, *workers, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stepeval failed: %v\n", err)
		os.Exit(1)
	}
	if err := writeReport(*outPath, report); err != nil {
		fmt.Fprintf(os.Stderr, "write report: %v\n", err)
		os.Exit(1)
	}

	var sum float64
	for _, r := range report {
		sum += r.Precision
	}
	fmt.Printf("evaluated %d files, mean precision %.3f\n", len(report), sum/float64(max(len(report), 1)))
	fmt.Printf("report: %s\n", *outPath)
}

func evaluate(ctx context.Context, paths []string, cfg stepcount.Config, workers int, logger *slog.Logger) ([]reportRecord, error) {
	counter := stepcount.NewCounter(stepcount.WithLogger(logger))

	var (
		mu     sync.Mutex
		report []reportRecord
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for _, path := range paths {
		g.Go(func() error {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			name := filepath.Base(path)
			res, err := pipeline.RunBytes(ctx, pipeline.BytesOptions{
				Settings: pipeline.Settings{
					Config:  &cfg,
					Counter: counter,
					Workers: 1,
					Logger:  logger,
				},
				SourceFileName: name,
				CSVData:        data,
				Format:         "csv",
			})
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			if res.Summary.Evaluation == nil {
				logger.Warn("no annotation column; skipped", slog.String("file", name))
				return nil
			}
			e := res.Summary.Evaluation
			mu.Lock()
			report = append(report, reportRecord{FileName: name, Expected: e.Expected, Actual: e.Actual, Precision: e.Precision})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(report, func(i, j int) bool { return report[i].FileName < report[j].FileName })
	return report, nil
}

func writeReport(path string, report []reportRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"file_name", "expected", "actual", "precision"}); err != nil {
		return err
	}
	for _, r := range report {
		row := []string{
			r.FileName,
			strconv.Itoa(r.Expected),
			strconv.Itoa(r.Actual),
			strconv.FormatFloat(r.Precision, 'f', 6, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
