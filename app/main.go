package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lysyi3m/agile-merge/app/cfg"
	"github.com/lysyi3m/agile-merge/app/config"
	"github.com/lysyi3m/agile-merge/app/database"
	"github.com/lysyi3m/agile-merge/app/metrics"
	"github.com/lysyi3m/agile-merge/app/pipeline"
)

const (
	exitOK     = 0
	exitFatal  = 1
	exitStrict = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return exitFatal
	}
	if appCfg == nil {
		// Help was shown
		return exitOK
	}

	setupLogger(appCfg.Debug)

	if err := cfg.ApplyTimezone(appCfg.Timezone); err != nil {
		slog.Warn("Invalid timezone, using system default", "timezone", appCfg.Timezone, "error", err)
	}

	slog.Info("Starting agile-merge", "version", appCfg.Version)
	if appCfg.UsesDefaultDirs() {
		slog.Info("Using default directories", "input", appCfg.InputDir, "output", appCfg.OutputDir)
	} else {
		slog.Info("Using directories from arguments", "input", appCfg.InputDir, "output", appCfg.OutputDir)
	}

	taxonomy, err := config.NewLoader(appCfg.TaxonomyFile).Load()
	if err != nil {
		slog.Error("Failed to load taxonomy", "error", err)
		return exitFatal
	}

	opts := pipeline.Options{
		Taxonomy: taxonomy,
		Workers:  appCfg.WorkerCount,
	}

	var runMetrics *metrics.Metrics
	if appCfg.MetricsFile != "" {
		runMetrics = metrics.New()
		opts.Metrics = runMetrics
	}

	if appCfg.LedgerPath != "" {
		db, err := database.Open(appCfg.LedgerPath)
		if err != nil {
			slog.Warn("Run ledger unavailable, continuing without it", "path", appCfg.LedgerPath, "error", err)
		} else {
			defer db.Close()
			opts.Ledger = database.NewRunRepository(db)
			slog.Debug("Run ledger opened", "path", appCfg.LedgerPath)
		}
	}

	p, err := pipeline.New(opts)
	if err != nil {
		slog.Error("Failed to initialize pipeline", "error", err)
		return exitFatal
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := p.Run(ctx, appCfg.InputDir, appCfg.OutputDir)

	if runMetrics != nil {
		if mErr := runMetrics.WriteTextfile(appCfg.MetricsFile); mErr != nil {
			slog.Warn("Failed to write metrics", "path", appCfg.MetricsFile, "error", mErr)
		}
	}

	if err != nil {
		if errors.Is(err, pipeline.ErrFatal) {
			slog.Error("Cannot process input", "error", err)
		} else {
			slog.Error("Error while processing data", "error", err)
		}
	}

	if summary != nil {
		for _, file := range summary.Files {
			if file.Skipped() {
				slog.Warn("Data processing failed for file", "file", file.Name,
					"article", file.Article.Reason, "daily", file.Daily.Reason)
			}
		}
	}

	code := exitCode(summary, err, appCfg.Strict)
	if code == exitStrict {
		slog.Warn("Strict mode: run was not complete", "status", summary.Status())
	}
	return code
}

// exitCode maps a run result to the process exit status. Soft failures exit
// 0 unless strict is set.
func exitCode(summary *pipeline.Summary, err error, strict bool) int {
	if err != nil || summary == nil {
		return exitFatal
	}
	if strict && summary.Status() != "complete" {
		return exitStrict
	}
	return exitOK
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
