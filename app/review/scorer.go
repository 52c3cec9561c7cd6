package review

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Rating codes used by the export
const (
	RatingPositive = 1
	RatingNeutral  = 2
	RatingNegative = 3
)

// Score sets the one-hot rating buckets of every record in place
func Score(records []Record) {
	for i := range records {
		ScoreRecord(&records[i])
	}
}

// ScoreRecord derives bucket counts from the raw rating. Unknown codes keep
// the row with zero weight.
func ScoreRecord(record *Record) {
	record.Positive, record.Neutral, record.Negative = 0, 0, 0

	switch parseRating(record.Rating) {
	case RatingPositive:
		record.Positive = 1
	case RatingNeutral:
		record.Neutral = 1
	case RatingNegative:
		record.Negative = 1
	}

	record.Total = record.Positive + record.Neutral + record.Negative
}

func parseRating(raw string) int {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	switch value {
	case RatingPositive, RatingNeutral, RatingNegative:
		return int(value)
	}
	return 0
}

// AssignDays fills Day for every record. A record without a timestamp keeps
// an empty day; an unparseable timestamp fails the whole set.
func AssignDays(records []Record) error {
	for i := range records {
		day, err := DayBucket(records[i].SubmittedAt)
		if err != nil {
			return fmt.Errorf("article %s: %w", records[i].ArticleID, err)
		}
		records[i].Day = day
	}
	return nil
}

// DayBucket truncates a submission timestamp to YYYYMMDD in its own zone.
// Timestamps without a zone are taken as wall-clock values.
func DayBucket(submittedAt string) (string, error) {
	submittedAt = strings.TrimSpace(submittedAt)
	if submittedAt == "" {
		return "", nil
	}

	t, err := dateparse.ParseIn(submittedAt, time.UTC)
	if err != nil {
		return "", fmt.Errorf("invalid submission time %q: %w", submittedAt, err)
	}

	return t.Format("20060102"), nil
}
