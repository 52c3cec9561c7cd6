package aggregate

import "strings"

// Key is the ordered grouping tuple of an aggregate row
type Key []string

func (k Key) String() string {
	return strings.Join(k, "\x00")
}

// Compare orders keys element by element
func (k Key) Compare(other Key) int {
	for i := 0; i < len(k) && i < len(other); i++ {
		if c := strings.Compare(k[i], other[i]); c != 0 {
			return c
		}
	}
	return len(k) - len(other)
}

// Row holds the summed rating buckets of one group
type Row struct {
	Key      Key
	Positive int
	Neutral  int
	Negative int
	Total    int
	Ratio    float64
}

// Ratio returns positive/total, or 0 when there are no ratings
func Ratio(positive, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(positive) / float64(total)
}
