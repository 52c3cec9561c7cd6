package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lysyi3m/agile-merge/app/aggregate"
	"github.com/lysyi3m/agile-merge/app/classify"
	"github.com/lysyi3m/agile-merge/app/config"
	"github.com/lysyi3m/agile-merge/app/database"
	"github.com/lysyi3m/agile-merge/app/metrics"
	"github.com/lysyi3m/agile-merge/app/report"
	"github.com/lysyi3m/agile-merge/app/review"
)

// Options wires the pipeline. Metrics and Ledger are optional.
type Options struct {
	Taxonomy *config.Taxonomy
	Workers  int
	Metrics  *metrics.Metrics
	Ledger   database.RunRepository
}

type Pipeline struct {
	source        *review.Source
	classifier    *classify.Classifier
	articleWriter *report.Writer
	dailyWriter   *report.Writer
	workers       int
	metrics       *metrics.Metrics
	ledger        database.RunRepository
}

func New(opts Options) (*Pipeline, error) {
	if opts.Taxonomy == nil {
		return nil, fmt.Errorf("%w: taxonomy is required", ErrFatal)
	}

	articleLayout, err := report.ParseLayout(opts.Taxonomy.Reports.Article)
	if err != nil {
		return nil, fmt.Errorf("%w: article report: %v", ErrFatal, err)
	}
	dailyLayout, err := report.ParseLayout(opts.Taxonomy.Reports.Daily)
	if err != nil {
		return nil, fmt.Errorf("%w: daily report: %v", ErrFatal, err)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}

	slog.Debug("Report layouts", "article", articleLayout.Names(), "daily", dailyLayout.Names())

	return &Pipeline{
		source:        review.NewSource(),
		classifier:    classify.NewClassifier(opts.Taxonomy),
		articleWriter: report.NewWriter(articleLayout),
		dailyWriter:   report.NewWriter(dailyLayout),
		workers:       workers,
		metrics:       opts.Metrics,
		ledger:        opts.Ledger,
	}, nil
}

// Run processes every export in inputDir and writes both reports to outputDir.
// Skipped files and empty reports are recorded in the summary, not returned as
// errors. ErrFatal is returned before any file is read when the directories
// are unusable.
func (p *Pipeline) Run(ctx context.Context, inputDir, outputDir string) (*Summary, error) {
	summary := &Summary{
		RunID:     uuid.NewString(),
		InputDir:  inputDir,
		OutputDir: outputDir,
		StartedAt: time.Now(),
		Article:   Report{Name: string(classify.ReportArticle)},
		Daily:     Report{Name: string(classify.ReportDaily)},
	}

	info, err := os.Stat(inputDir)
	if err != nil {
		return nil, fmt.Errorf("%w: input directory: %v", ErrFatal, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: input path %s is not a directory", ErrFatal, inputDir)
	}

	names, err := Discover(inputDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFatal, err)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: output directory: %v", ErrFatal, err)
	}

	slog.Info("Processing review exports", "run_id", summary.RunID, "input", inputDir, "files", len(names), "workers", p.workers)

	results := make([]FileResult, len(names))
	dispatched := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, name := range names {
		if gctx.Err() != nil {
			break
		}
		dispatched++
		g.Go(func() error {
			results[i] = p.processFile(gctx, filepath.Join(inputDir, name))
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run cancelled after %d/%d files: %w", dispatched, len(names), err)
	}

	summary.Files = results

	// Per-file groups are built by the workers and merged in name order
	article := aggregate.NewAccumulator(aggregate.ByArticle)
	daily := aggregate.NewAccumulator(aggregate.ByDay)

	var inputBytes int64
	for _, result := range results {
		p.merge(&summary.Article, article, result.Name, result.Article)
		p.merge(&summary.Daily, daily, result.Name, result.Daily)
		p.observeRows(result)
		inputBytes += result.Size
	}

	var errs []error
	if err := p.writeReport(&summary.Article, article, p.articleWriter, report.ArticlePrefix, inputDir, outputDir); err != nil {
		errs = append(errs, err)
	}
	if err := p.writeReport(&summary.Daily, daily, p.dailyWriter, report.DailyPrefix, inputDir, outputDir); err != nil {
		errs = append(errs, err)
	}

	summary.FinishedAt = time.Now()

	p.record(ctx, summary)

	if p.metrics != nil {
		success := summary.Article.Status == ReportWritten && summary.Daily.Status == ReportWritten
		p.metrics.ObserveRun(summary.FinishedAt.Sub(summary.StartedAt), success)
	}

	slog.Info("Run finished", "run_id", summary.RunID, "status", summary.Status(),
		"files", len(summary.Files), "skipped", summary.SkippedFiles(),
		"input_size", humanize.Bytes(uint64(inputBytes)),
		"duration", summary.FinishedAt.Sub(summary.StartedAt).String())

	return summary, errors.Join(errs...)
}

func (p *Pipeline) processFile(ctx context.Context, path string) FileResult {
	file, err := p.source.ReadFile(path)
	if err != nil {
		slog.Warn("Failed to read export, skipping", "file", filepath.Base(path), "error", err)
		reason := fmt.Sprintf("decode: %v", err)
		return FileResult{Name: filepath.Base(path), Article: skipped(reason), Daily: skipped(reason)}
	}

	valid := review.Validate(file.Records)
	review.Score(valid)

	result := FileResult{
		Name:         file.Name,
		Checksum:     file.Checksum,
		Size:         file.Size,
		ValidRows:    len(valid),
		InvalidRows:  len(file.Records) - len(valid),
		PreviousRuns: p.previousRuns(ctx, file),
		Article:      p.articleBranch(file, valid),
		Daily:        p.dailyBranch(file, valid),
	}

	slog.Debug("Export processed", "file", file.Name, "size", humanize.Bytes(uint64(file.Size)),
		"valid", result.ValidRows, "invalid", result.InvalidRows,
		"article", result.Article.Status, "daily", result.Daily.Status)

	return result
}

// previousRuns looks the export up in the ledger by checksum. Lookup errors
// are logged and treated as no history.
func (p *Pipeline) previousRuns(ctx context.Context, file *review.File) int {
	if p.ledger == nil {
		return 0
	}

	earlier, err := p.ledger.FindFilesByChecksum(ctx, file.Checksum)
	if err != nil {
		slog.Warn("Failed to look up export in ledger", "file", file.Name, "error", err)
		return 0
	}
	if len(earlier) > 0 {
		slog.Info("Export already ingested in an earlier run", "file", file.Name,
			"previous_runs", len(earlier), "previous_name", earlier[0].FileName)
	}
	return len(earlier)
}

func (p *Pipeline) articleBranch(file *review.File, valid []review.Record) Outcome {
	records, untagged, err := p.classifier.Run(classify.ReportArticle, file, valid)
	return p.branchOutcome(classify.ReportArticle, file, records, untagged, err, aggregate.ByArticle)
}

func (p *Pipeline) dailyBranch(file *review.File, valid []review.Record) Outcome {
	if !file.HasColumn(review.ColumnSubmittedAt) {
		err := fmt.Errorf("%w: %s", review.ErrMissingColumn, review.ColumnSubmittedAt)
		return p.branchOutcome(classify.ReportDaily, file, nil, 0, err, aggregate.ByDay)
	}

	dated := slices.Clone(valid)
	if err := review.AssignDays(dated); err != nil {
		return p.branchOutcome(classify.ReportDaily, file, nil, 0, err, aggregate.ByDay)
	}

	records, untagged, err := p.classifier.Run(classify.ReportDaily, file, dated)
	return p.branchOutcome(classify.ReportDaily, file, records, untagged, err, aggregate.ByDay)
}

// branchOutcome groups the classified records of one branch, or tags why the
// file does not contribute to that report
func (p *Pipeline) branchOutcome(report classify.Report, file *review.File, records []review.Record, untagged int, err error, keyFn aggregate.KeyFunc) Outcome {
	switch {
	case errors.Is(err, classify.ErrUnclassified):
		slog.Info("File not assigned to report", "file", file.Name, "report", report)
		return excluded(err.Error())
	case err != nil:
		slog.Warn("Report processing failed, skipping file", "file", file.Name, "report", report, "error", err)
		return skipped(err.Error())
	}

	groups := aggregate.NewAccumulator(keyFn)
	ungrouped := groups.Add(records)
	slog.Debug("Branch grouped", "file", file.Name, "report", report, "groups", groups.Len())

	return ok(groups, untagged, ungrouped)
}

func (p *Pipeline) merge(rep *Report, acc *aggregate.Accumulator, name string, outcome Outcome) {
	if p.metrics != nil {
		p.metrics.ObserveFile(rep.Name, string(outcome.Status))
	}
	if outcome.Status != StatusOK {
		return
	}

	rep.Files++
	rep.Ungrouped += outcome.Ungrouped
	acc.Merge(outcome.Groups)
	slog.Debug("Merged file groups", "report", rep.Name, "file", name, "groups", acc.Len())

	if p.metrics != nil {
		p.metrics.ObserveRows(rep.Name, "untagged", outcome.Untagged)
	}
}

func (p *Pipeline) observeRows(result FileResult) {
	if p.metrics == nil {
		return
	}
	for _, name := range []string{string(classify.ReportArticle), string(classify.ReportDaily)} {
		p.metrics.ObserveRows(name, "valid", result.ValidRows)
		p.metrics.ObserveRows(name, "invalid", result.InvalidRows)
	}
}

func (p *Pipeline) writeReport(rep *Report, acc *aggregate.Accumulator, writer *report.Writer, prefix, inputDir, outputDir string) error {
	if p.metrics != nil {
		defer func() {
			p.metrics.ObserveRows(rep.Name, "ungrouped", rep.Ungrouped)
			p.metrics.ObserveReport(rep.Name, rep.Rows)
		}()
	}

	if rep.Files == 0 {
		rep.Status = ReportNoInput
		rep.Reason = "no file contributed records"
		slog.Warn("Data processing failed. No output file created.", "report", rep.Name)
		return nil
	}

	rows := acc.Rows()
	path := filepath.Join(outputDir, report.FileName(prefix, inputDir))

	if err := writer.WriteFile(path, rows); err != nil {
		rep.Status = ReportFailed
		rep.Reason = err.Error()
		slog.Error("Failed to write report", "report", rep.Name, "path", path, "error", err)
		return fmt.Errorf("%s report: %w", rep.Name, err)
	}

	rep.Status = ReportWritten
	rep.Path = path
	rep.Rows = len(rows)
	slog.Info("Final output", "report", rep.Name, "path", path,
		"rows", humanize.Comma(int64(rep.Rows)), "files", rep.Files)

	return nil
}

func (p *Pipeline) record(ctx context.Context, summary *Summary) {
	if p.ledger == nil {
		return
	}

	run := database.Run{
		ID:          summary.RunID,
		InputDir:    summary.InputDir,
		OutputDir:   summary.OutputDir,
		Status:      summary.Status(),
		ArticleRows: summary.Article.Rows,
		DailyRows:   summary.Daily.Rows,
		StartedAt:   summary.StartedAt,
		FinishedAt:  summary.FinishedAt,
	}
	for _, file := range summary.Files {
		run.Files = append(run.Files, database.RunFile{
			FileName:      file.Name,
			Checksum:      file.Checksum,
			SizeBytes:     file.Size,
			ValidRows:     file.ValidRows,
			InvalidRows:   file.InvalidRows,
			ArticleStatus: string(file.Article.Status),
			ArticleReason: file.Article.Reason,
			DailyStatus:   string(file.Daily.Status),
			DailyReason:   file.Daily.Reason,
		})
	}

	if err := p.ledger.SaveRun(ctx, run); err != nil {
		slog.Warn("Failed to record run in ledger", "run_id", summary.RunID, "error", err)
		return
	}

	count, err := p.ledger.GetRunCount(ctx)
	if err != nil {
		slog.Warn("Failed to count ledger runs", "error", err)
		return
	}
	slog.Info("Run recorded in ledger", "run_id", summary.RunID, "runs", count)
}
