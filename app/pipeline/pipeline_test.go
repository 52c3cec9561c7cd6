package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/text/encoding/unicode"

	"github.com/lysyi3m/agile-merge/app/config"
	"github.com/lysyi3m/agile-merge/app/database"
	"github.com/lysyi3m/agile-merge/app/metrics"
)

const header = "文章ID\t提交时间\t评分1\t资源类型"

func writeExport(t *testing.T, dir, name string, lines ...string) {
	t.Helper()

	encoder := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	data, err := encoder.Bytes([]byte(strings.Join(lines, "\r\n") + "\r\n"))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
		t.Fatal(err)
	}
}

func newPipeline(t *testing.T, opts Options) *Pipeline {
	t.Helper()

	if opts.Taxonomy == nil {
		opts.Taxonomy = config.Default()
	}
	if opts.Workers == 0 {
		opts.Workers = 2
	}
	p, err := New(opts)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func dirs(t *testing.T) (string, string) {
	t.Helper()
	root := t.TempDir()
	input := filepath.Join(root, "20240101")
	if err := os.Mkdir(input, 0755); err != nil {
		t.Fatal(err)
	}
	return input, filepath.Join(root, "out")
}

func readOutput(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestRun_FeedFile(t *testing.T) {
	input, output := dirs(t)
	writeExport(t, input, "a.xls", header,
		"123\t2024-01-01\t1\tshortVideo",
		"123\t2024-01-01\t2\tshortVideo",
		"--\t2024-01-01\t3\tshortVideo",
	)

	summary, err := newPipeline(t, Options{}).Run(context.Background(), input, output)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if summary.Status() != "complete" {
		t.Errorf("Expected complete run, got %s", summary.Status())
	}
	if summary.Files[0].InvalidRows != 1 || summary.Files[0].ValidRows != 2 {
		t.Errorf("Expected 2 valid and 1 invalid rows, got %+v", summary.Files[0])
	}

	article := readOutput(t, filepath.Join(output, "agile.merge.20240101.txt"))
	if article != "123\tsv\t2\t0.5\n" {
		t.Errorf("Unexpected article report %q", article)
	}

	daily := readOutput(t, filepath.Join(output, "agile.merge.daily.20240101.txt"))
	if daily != "20240101\t2\t0.5\tfeed\n" {
		t.Errorf("Unexpected daily report %q", daily)
	}
}

func TestRun_ImmersiveFile(t *testing.T) {
	input, output := dirs(t)
	writeExport(t, input, "dt.xls", "文章ID\t提交时间\t评分1", "5\t2024-02-02\t3")

	summary, err := newPipeline(t, Options{}).Run(context.Background(), input, output)
	if err != nil {
		t.Fatal(err)
	}

	if summary.Article.Path == "" || summary.Daily.Path == "" {
		t.Fatalf("Expected both reports to be written, got %+v / %+v", summary.Article, summary.Daily)
	}
	if got := readOutput(t, summary.Article.Path); got != "5\tdt_immerse\t1\t0.0\n" {
		t.Errorf("Unexpected article report %q", got)
	}
	if got := readOutput(t, summary.Daily.Path); got != "20240202\t1\t0.0\tdt\n" {
		t.Errorf("Unexpected daily report %q", got)
	}
}

func TestRun_EmptyDirectory(t *testing.T) {
	input, output := dirs(t)
	if err := os.WriteFile(filepath.Join(input, "notes.txt"), []byte("ignored"), 0644); err != nil {
		t.Fatal(err)
	}

	summary, err := newPipeline(t, Options{}).Run(context.Background(), input, output)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if summary.Article.Status != ReportNoInput || summary.Daily.Status != ReportNoInput {
		t.Errorf("Expected no_input for both reports, got %s / %s", summary.Article.Status, summary.Daily.Status)
	}
	if summary.Status() != "no_input" {
		t.Errorf("Expected no_input run, got %s", summary.Status())
	}

	entries, err := os.ReadDir(output)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected no output files, got %d", len(entries))
	}
}

func TestRun_SkipsUnreadableFiles(t *testing.T) {
	input, output := dirs(t)
	writeExport(t, input, "b.XLS", header, "7\t2024-03-01 12:00:00\t1\tminiVideo")
	if err := os.WriteFile(filepath.Join(input, "broken.xls"), []byte("not utf-16 at all"), 0644); err != nil {
		t.Fatal(err)
	}

	summary, err := newPipeline(t, Options{}).Run(context.Background(), input, output)
	if err != nil {
		t.Fatal(err)
	}

	if len(summary.Files) != 2 {
		t.Fatalf("Expected 2 files, got %d", len(summary.Files))
	}
	if summary.SkippedFiles() != 1 {
		t.Errorf("Expected only broken.xls to be skipped, got %d", summary.SkippedFiles())
	}
	if summary.Status() != "partial" {
		t.Errorf("Expected partial run, got %s", summary.Status())
	}

	// b.XLS does not match the case-sensitive b.xls rule, so the fallback keeps the row type
	if got := readOutput(t, summary.Article.Path); got != "7\tmv\t1\t1.0\n" {
		t.Errorf("Unexpected article report %q", got)
	}
	if summary.Daily.Status != ReportNoInput {
		t.Errorf("Expected fallback rows to be left out of the daily report, got %s", summary.Daily.Status)
	}
	if daily := summary.Files[0].Daily; daily.Status != StatusExcluded {
		t.Errorf("Expected b.XLS daily branch to be excluded, got %+v", daily)
	}
}

func TestRun_UnassignedFileKeepsRunComplete(t *testing.T) {
	input, output := dirs(t)
	lines := []string{header, "1\t2024-01-01\t1\tshortVideo"}
	writeExport(t, input, "a.xls", lines...)
	writeExport(t, input, "extra.xls", lines...)

	summary, err := newPipeline(t, Options{}).Run(context.Background(), input, output)
	if err != nil {
		t.Fatal(err)
	}

	if summary.Status() != "complete" {
		t.Errorf("Expected complete run, got %s", summary.Status())
	}
	if summary.SkippedFiles() != 0 {
		t.Errorf("Expected no skipped files, got %d", summary.SkippedFiles())
	}

	extra := summary.Files[1]
	if extra.Name != "extra.xls" || extra.Article.Status != StatusOK || extra.Daily.Status != StatusExcluded {
		t.Errorf("Expected extra.xls to feed only the article report, got %+v", extra)
	}
	if summary.Article.Files != 2 || summary.Daily.Files != 1 {
		t.Errorf("Expected 2 article and 1 daily contributing files, got %d / %d", summary.Article.Files, summary.Daily.Files)
	}

	if got := readOutput(t, summary.Article.Path); got != "1\tsv\t2\t1.0\n" {
		t.Errorf("Unexpected article report %q", got)
	}
	if got := readOutput(t, summary.Daily.Path); got != "20240101\t1\t1.0\tfeed\n" {
		t.Errorf("Unexpected daily report %q", got)
	}
}

func TestRun_BadTimestampSkipsDailyOnly(t *testing.T) {
	input, output := dirs(t)
	writeExport(t, input, "mv.a.xls", header,
		"1\t2024-01-01\t1\t",
		"2\tyesterday-ish\t2\t",
	)
	writeExport(t, input, "mv.b.xls", header, "3\t2024-01-05\t1\t")

	summary, err := newPipeline(t, Options{}).Run(context.Background(), input, output)
	if err != nil {
		t.Fatal(err)
	}

	first := summary.Files[0]
	if first.Name != "mv.a.xls" || first.Article.Status != StatusOK || first.Daily.Status != StatusSkipped {
		t.Errorf("Expected only the daily branch of mv.a.xls to be skipped, got %+v", first)
	}

	if got := readOutput(t, summary.Article.Path); got != "1\tmv\t1\t1.0\n2\tmv\t1\t0.0\n3\tmv\t1\t1.0\n" {
		t.Errorf("Unexpected article report %q", got)
	}
	if got := readOutput(t, summary.Daily.Path); got != "20240105\t1\t1.0\tmv\n" {
		t.Errorf("Unexpected daily report %q", got)
	}
}

func TestRun_MissingTypeColumnSkipsArticleBranch(t *testing.T) {
	input, output := dirs(t)
	writeExport(t, input, "a.xls", "文章ID\t提交时间\t评分1", "1\t2024-01-01\t1")

	summary, err := newPipeline(t, Options{}).Run(context.Background(), input, output)
	if err != nil {
		t.Fatal(err)
	}

	if summary.Article.Status != ReportNoInput {
		t.Errorf("Expected article report to have no input, got %s", summary.Article.Status)
	}
	if summary.Daily.Status != ReportWritten {
		t.Errorf("Expected daily report to be written, got %s", summary.Daily.Status)
	}
	if _, err := os.Stat(filepath.Join(output, "agile.merge.20240101.txt")); !os.IsNotExist(err) {
		t.Error("Expected no article report file")
	}
}

func TestRun_Deterministic(t *testing.T) {
	input, _ := dirs(t)
	writeExport(t, input, "a.xls", header,
		"300\t2024-01-02 10:00:00\t1\tshortVideo",
		"20\t2024-01-01 10:00:00\t3\tminiVideo",
		"20\t2024-01-01 11:00:00\t1\tminiVideo",
	)
	writeExport(t, input, "b.xls", header, "300\t2024-01-02\t2\tnews", "1\t2024-01-03\t9\tnews")
	writeExport(t, input, "mv.a.xls", header, "20\t2024-01-01\t1\t")
	writeExport(t, input, "dt.xls", header, "0020\t2024-01-01\t2\t")

	root := t.TempDir()
	var outputs [2][2]string
	for i := range outputs {
		output := filepath.Join(root, []string{"first", "second"}[i])
		summary, err := newPipeline(t, Options{Workers: 4}).Run(context.Background(), input, output)
		if err != nil {
			t.Fatal(err)
		}
		outputs[i][0] = readOutput(t, summary.Article.Path)
		outputs[i][1] = readOutput(t, summary.Daily.Path)
	}

	if outputs[0] != outputs[1] {
		t.Errorf("Expected byte-identical outputs across runs:\n%q\n%q", outputs[0], outputs[1])
	}

	wantArticle := "0020\tdt_immerse\t1\t0.0\n" +
		"1\tnews\t0\t0.0\n" +
		"20\tmv\t3\t0.6666666666666666\n" +
		"300\tnews\t1\t0.0\n" +
		"300\tsv\t1\t1.0\n"
	if outputs[0][0] != wantArticle {
		t.Errorf("Unexpected article report:\n%s", outputs[0][0])
	}

	wantDaily := "20240101\t1\t0.0\tdt\n" +
		"20240101\t2\t0.5\tfeed\n" +
		"20240101\t1\t1.0\tmv\n" +
		"20240102\t2\t0.5\tfeed\n" +
		"20240103\t0\t0.0\tfeed\n"
	if outputs[0][1] != wantDaily {
		t.Errorf("Unexpected daily report:\n%s", outputs[0][1])
	}
}

func TestRun_FatalInputDirectory(t *testing.T) {
	p := newPipeline(t, Options{})

	_, err := p.Run(context.Background(), filepath.Join(t.TempDir(), "missing"), t.TempDir())
	if !errors.Is(err, ErrFatal) {
		t.Errorf("Expected ErrFatal for missing input directory, got: %v", err)
	}

	file := filepath.Join(t.TempDir(), "a.xls")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Run(context.Background(), file, t.TempDir()); !errors.Is(err, ErrFatal) {
		t.Errorf("Expected ErrFatal for file input path, got: %v", err)
	}
}

func TestRun_Cancelled(t *testing.T) {
	input, output := dirs(t)
	writeExport(t, input, "a.xls", header, "1\t2024-01-01\t1\tsv")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := newPipeline(t, Options{}).Run(ctx, input, output); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got: %v", err)
	}
}

func TestRun_RecordsLedgerAndMetrics(t *testing.T) {
	input, output := dirs(t)
	writeExport(t, input, "a.xls", header, "1\t2024-01-01\t1\tshortVideo", "x\t2024-01-01\t1\tshortVideo")
	writeExport(t, input, "dt.xls", "文章ID\t评分1", "2\t1")

	db, err := database.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	repo := database.NewRunRepository(db)
	m := metrics.New()

	summary, err := newPipeline(t, Options{Ledger: repo, Metrics: m}).Run(context.Background(), input, output)
	if err != nil {
		t.Fatal(err)
	}

	run, err := repo.GetRun(context.Background(), summary.RunID)
	if err != nil {
		t.Fatal(err)
	}
	if run == nil {
		t.Fatal("Expected run to be recorded")
	}
	if run.Status != "partial" || len(run.Files) != 2 {
		t.Errorf("Unexpected run record %+v", run)
	}
	if run.Files[1].FileName != "dt.xls" || run.Files[1].DailyStatus != "skipped" {
		t.Errorf("Expected dt.xls daily branch to be recorded as skipped, got %+v", run.Files[1])
	}
	if run.Files[0].InvalidRows != 1 {
		t.Errorf("Expected 1 invalid row for a.xls, got %d", run.Files[0].InvalidRows)
	}

	if got := testutil.ToFloat64(m.Files.WithLabelValues("daily", "skipped")); got != 1 {
		t.Errorf("Expected 1 skipped daily file, got %v", got)
	}
	if got := testutil.ToFloat64(m.ReportRows.WithLabelValues("article")); got != 2 {
		t.Errorf("Expected 2 article report rows, got %v", got)
	}
}

func TestRun_FlagsPreviouslyIngestedExports(t *testing.T) {
	input, _ := dirs(t)
	writeExport(t, input, "a.xls", header, "1\t2024-01-01\t1\tshortVideo")

	db, err := database.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	p := newPipeline(t, Options{Ledger: database.NewRunRepository(db)})

	first, err := p.Run(context.Background(), input, filepath.Join(t.TempDir(), "first"))
	if err != nil {
		t.Fatal(err)
	}
	if first.Files[0].PreviousRuns != 0 {
		t.Errorf("Expected no history on the first run, got %d", first.Files[0].PreviousRuns)
	}

	second, err := p.Run(context.Background(), input, filepath.Join(t.TempDir(), "second"))
	if err != nil {
		t.Fatal(err)
	}
	if second.Files[0].PreviousRuns != 1 {
		t.Errorf("Expected 1 previous run for an unchanged export, got %d", second.Files[0].PreviousRuns)
	}
}

func TestNew_InvalidLayout(t *testing.T) {
	taxonomy := config.Default()
	taxonomy.Reports.Article = []string{"article_id", "bogus"}

	if _, err := New(Options{Taxonomy: taxonomy}); !errors.Is(err, ErrFatal) {
		t.Errorf("Expected ErrFatal for invalid layout, got: %v", err)
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.xls", "A.XLS", "c.Xls", "d.xlsx", "e.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "dir.xls"), 0755); err != nil {
		t.Fatal(err)
	}

	files, err := Discover(dir)
	if err != nil {
		t.Fatal(err)
	}

	got := strings.Join(files, ",")
	if got != "A.XLS,b.xls,c.Xls" {
		t.Errorf("Unexpected files %s", got)
	}
}

func TestRun_RerunOverwrites(t *testing.T) {
	input, output := dirs(t)
	writeExport(t, input, "a.xls", header, "1\t2024-01-01\t1\tshortVideo")

	p := newPipeline(t, Options{})
	first, err := p.Run(context.Background(), input, output)
	if err != nil {
		t.Fatal(err)
	}
	before := []byte(readOutput(t, first.Article.Path))

	second, err := p.Run(context.Background(), input, output)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, []byte(readOutput(t, second.Article.Path))) {
		t.Error("Expected rerun into the same directory to overwrite with identical content")
	}
}
