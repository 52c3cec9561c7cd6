package database

import "context"

type RunRepository interface {
	SaveRun(ctx context.Context, run Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	GetRunCount(ctx context.Context) (int, error)
	FindFilesByChecksum(ctx context.Context, checksum string) ([]RunFile, error)
}
