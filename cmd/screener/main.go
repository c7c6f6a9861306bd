// Package main is the entry point for the strategy screener. It sweeps a
// parameter grid of one signal rule over a CSV price history, checks the
// result for overfitting and fragility, and grades it GREEN, YELLOW or RED.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aristath/screener/internal/config"
	"github.com/aristath/screener/internal/di"
	"github.com/aristath/screener/internal/modules/marketdata"
	"github.com/aristath/screener/internal/modules/screening"
	"github.com/aristath/screener/internal/modules/validation"
	"github.com/aristath/screener/pkg/logger"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/mem"
)

func main() {
	var (
		pricesPath   = flag.String("prices", "", "CSV file with date,open,high,low,close[,volume] rows (required)")
		runPath      = flag.String("run", "", "YAML run file (required)")
		dbPath       = flag.String("db", "", "sqlite database path (default: $SCREENER_DATA_DIR/screener.db)")
		noDB         = flag.Bool("no-db", false, "do not persist the run")
		snapshotPath = flag.String("snapshot", "", "write the return matrix and validation distributions as msgpack")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	if *pricesPath == "" || *runPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	logMemory(log)

	run, err := config.LoadRun(*runPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *runPath).Msg("Failed to load run file")
	}
	grid, err := run.Grid()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid parameter grid")
	}

	bars, err := marketdata.LoadCSV(*pricesPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *pricesPath).Msg("Failed to load prices")
	}
	log.Info().
		Int("bars", bars.Prices.Len()).
		Str("from", bars.Dates[0].Format(marketdata.DateLayout)).
		Str("to", bars.Dates[len(bars.Dates)-1].Format(marketdata.DateLayout)).
		Msg("Prices loaded")

	database := ""
	if !*noDB {
		database = *dbPath
		if database == "" {
			database = cfg.DatabasePath()
		}
	}

	container, err := di.Wire(cfg, run, database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	container.Sweeper.SetProgressCallback(progressLogger(log, grid.Size()))

	dsr, permutation := run.ExternalInputs()
	report, err := container.ScreeningService.Screen(screening.Request{
		Prices:            bars.Prices,
		Kind:              run.Kind,
		Grid:              grid,
		Validation:        run.Validation,
		Thresholds:        run.Thresholds,
		DSRPValue:         dsr,
		PermutationPValue: permutation,
	})
	if err != nil {
		log.Error().Err(err).Msg("Screen failed")
		container.Close()
		os.Exit(1)
	}

	if *snapshotPath != "" {
		if err := writeSnapshot(*snapshotPath, report); err != nil {
			log.Error().Err(err).Msg("Failed to write snapshot")
		} else {
			log.Info().Str("path", *snapshotPath).Msg("Snapshot written")
		}
	}

	printSummary(os.Stdout, report)
}

// progressLogger logs sweep progress roughly every 10% of the grid
func progressLogger(log zerolog.Logger, total int) func(current, total int, message string) {
	step := total / 10
	if step < 1 {
		step = 1
	}
	return func(current, total int, _ string) {
		if current%step == 0 || current == total {
			log.Debug().Int("current", current).Int("total", total).Msg("Sweep progress")
		}
	}
}

func logMemory(log zerolog.Logger) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		log.Debug().Err(err).Msg("Memory stats unavailable")
		return
	}
	log.Info().
		Uint64("total_mb", vm.Total/1024/1024).
		Uint64("available_mb", vm.Available/1024/1024).
		Float64("used_percent", vm.UsedPercent).
		Msg("System memory")
}

func writeSnapshot(path string, report *screening.Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := validation.WriteSnapshot(f, report.Snapshot()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printSummary(w io.Writer, r *screening.Report) {
	best := r.Best()
	fmt.Fprintf(w, "verdict:     %s\n", r.Verdict.Level)
	for _, reason := range r.Verdict.Reasons {
		fmt.Fprintf(w, "  - %s\n", reason)
	}
	if r.RunID != "" {
		fmt.Fprintf(w, "run id:      %s\n", r.RunID)
	}
	fmt.Fprintf(w, "best params: %v\n", best.Point.Params)
	fmt.Fprintf(w, "sharpe:      %.4f  cagr: %.4f  max dd: %.4f  trades: %d  win rate: %.2f\n",
		best.Report.Sharpe, best.Report.CAGR, best.Report.MaxDrawdown, best.Report.NumTrades, best.Report.WinRate)
	fmt.Fprintf(w, "grid:        %d evaluated, %d skipped\n", len(r.Sweep.Rows), len(r.Sweep.Skipped))
	if r.PBO.Defined {
		fmt.Fprintf(w, "pbo:         %.4f over %d combinations\n", r.PBO.PBO, r.PBO.NumCombinations)
		if r.PBO.Warning != "" {
			fmt.Fprintf(w, "             warning: %s\n", r.PBO.Warning)
		}
	} else {
		fmt.Fprintf(w, "pbo:         undefined (%s)\n", r.PBO.Warning)
	}
	fmt.Fprintf(w, "cpcv sharpe: %.4f  95%% CI [%.4f, %.4f]\n", r.CPCV.Mean, r.CPCV.CILow, r.CPCV.CIHigh)
	for _, s := range r.NDR.Shells {
		fmt.Fprintf(w, "ndr(%d):      %.4f  cv: %.4f  (%d neighbors)\n", s.Distance, s.NDR, s.CV, s.Count)
	}
	if r.Crosscheck != nil {
		status := "agree"
		if !r.Crosscheck.Passed() {
			status = "DIVERGE"
		}
		fmt.Fprintf(w, "crosscheck:  %s\n", status)
		for _, v := range r.Crosscheck.Violations {
			fmt.Fprintf(w, "  - %s\n", v)
		}
	}
}
