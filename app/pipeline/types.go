package pipeline

import (
	"errors"
	"time"

	"github.com/lysyi3m/agile-merge/app/aggregate"
)

// ErrFatal marks misconfiguration that stops a run before any file is read
var ErrFatal = errors.New("fatal misconfiguration")

// Status is the result of one report branch for one file
type Status string

// Excluded branches belong to files the taxonomy leaves out of a report on
// purpose. They are not failures.
const (
	StatusOK       Status = "ok"
	StatusSkipped  Status = "skipped"
	StatusExcluded Status = "excluded"
)

// Outcome carries either the grouped records of a branch or the reason it did
// not contribute
type Outcome struct {
	Status    Status
	Reason    string
	Groups    *aggregate.Accumulator
	Untagged  int
	Ungrouped int
}

func ok(groups *aggregate.Accumulator, untagged, ungrouped int) Outcome {
	return Outcome{Status: StatusOK, Groups: groups, Untagged: untagged, Ungrouped: ungrouped}
}

func skipped(reason string) Outcome {
	return Outcome{Status: StatusSkipped, Reason: reason}
}

func excluded(reason string) Outcome {
	return Outcome{Status: StatusExcluded, Reason: reason}
}

// FileResult is the per-file result of both branches
type FileResult struct {
	Name         string
	Checksum     string
	Size         int64
	ValidRows    int
	InvalidRows  int
	PreviousRuns int // earlier ledger entries for a byte-identical export
	Article      Outcome
	Daily        Outcome
}

// Skipped reports whether any branch of the file was skipped. Excluded
// branches do not count.
func (f FileResult) Skipped() bool {
	return f.Article.Status == StatusSkipped || f.Daily.Status == StatusSkipped
}

// ReportStatus is the final state of an output file
type ReportStatus string

const (
	ReportWritten ReportStatus = "written"
	ReportNoInput ReportStatus = "no_input"
	ReportFailed  ReportStatus = "failed"
)

type Report struct {
	Name      string
	Status    ReportStatus
	Path      string
	Files     int // contributing files
	Rows      int // rows written
	Ungrouped int // records without a complete grouping key
	Reason    string
}

// Summary describes a finished run
type Summary struct {
	RunID      string
	InputDir   string
	OutputDir  string
	StartedAt  time.Time
	FinishedAt time.Time
	Files      []FileResult
	Article    Report
	Daily      Report
}

// SkippedFiles returns the number of files with at least one skipped branch
func (s *Summary) SkippedFiles() int {
	count := 0
	for _, file := range s.Files {
		if file.Skipped() {
			count++
		}
	}
	return count
}

// Status is complete, partial or no_input
func (s *Summary) Status() string {
	switch {
	case s.Article.Status == ReportNoInput && s.Daily.Status == ReportNoInput:
		return "no_input"
	case s.Article.Status == ReportWritten && s.Daily.Status == ReportWritten && s.SkippedFiles() == 0:
		return "complete"
	default:
		return "partial"
	}
}
