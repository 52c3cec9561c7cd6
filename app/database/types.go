package database

import (
	"time"
)

type Run struct {
	ID          string // uuid
	InputDir    string
	OutputDir   string
	Status      string // complete, partial, no_input
	ArticleRows int
	DailyRows   int
	StartedAt   time.Time
	FinishedAt  time.Time
	Files       []RunFile
}

type RunFile struct {
	FileName      string
	Checksum      string // sha256 of the raw export
	SizeBytes     int64
	ValidRows     int
	InvalidRows   int
	ArticleStatus string // ok, skipped
	ArticleReason string
	DailyStatus   string
	DailyReason   string
}
