package aggregate

import (
	"slices"

	"github.com/lysyi3m/agile-merge/app/review"
)

// KeyFunc extracts the grouping key of a record
type KeyFunc func(review.Record) Key

// ByArticle groups by article id and resource type
func ByArticle(record review.Record) Key {
	return Key{record.ArticleID, record.Tag}
}

// ByDay groups by submission day and resource type
func ByDay(record review.Record) Key {
	return Key{record.Day, record.Tag}
}

// Accumulator sums rating buckets per key
type Accumulator struct {
	keyFn  KeyFunc
	groups map[string]*Row
}

func NewAccumulator(keyFn KeyFunc) *Accumulator {
	return &Accumulator{
		keyFn:  keyFn,
		groups: make(map[string]*Row),
	}
}

// Add folds records into their groups. Records with an empty key component
// have no group and are skipped.
func (a *Accumulator) Add(records []review.Record) int {
	skipped := 0
	for _, record := range records {
		key := a.keyFn(record)
		if slices.Contains(key, "") {
			skipped++
			continue
		}

		row, ok := a.groups[key.String()]
		if !ok {
			row = &Row{Key: key}
			a.groups[key.String()] = row
		}
		row.Positive += record.Positive
		row.Neutral += record.Neutral
		row.Negative += record.Negative
	}
	return skipped
}

// Merge folds the groups of other into a
func (a *Accumulator) Merge(other *Accumulator) {
	for id, src := range other.groups {
		row, ok := a.groups[id]
		if !ok {
			row = &Row{Key: src.Key}
			a.groups[id] = row
		}
		row.Positive += src.Positive
		row.Neutral += src.Neutral
		row.Negative += src.Negative
	}
}

// Len returns the number of groups
func (a *Accumulator) Len() int {
	return len(a.groups)
}

// Rows returns one row per key, sorted by key, with totals and ratios set
func (a *Accumulator) Rows() []Row {
	rows := make([]Row, 0, len(a.groups))
	for _, row := range a.groups {
		out := *row
		out.Total = out.Positive + out.Neutral + out.Negative
		out.Ratio = Ratio(out.Positive, out.Total)
		rows = append(rows, out)
	}

	slices.SortFunc(rows, func(x, y Row) int {
		return x.Key.Compare(y.Key)
	})

	return rows
}

// Aggregate groups records by keyFn and returns the sorted rows
func Aggregate(records []review.Record, keyFn KeyFunc) []Row {
	acc := NewAccumulator(keyFn)
	acc.Add(records)
	return acc.Rows()
}
