package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lysyi3m/agile-merge/app/aggregate"
)

// Column renders one field of an aggregate row
type Column struct {
	Name   string
	render func(aggregate.Row) string
}

var columns = map[string]func(aggregate.Row) string{
	"article_id":    keyPart(0),
	"date":          keyPart(0),
	"resource_type": keyPart(1),
	"positive":      func(r aggregate.Row) string { return strconv.Itoa(r.Positive) },
	"neutral":       func(r aggregate.Row) string { return strconv.Itoa(r.Neutral) },
	"negative":      func(r aggregate.Row) string { return strconv.Itoa(r.Negative) },
	"total":         func(r aggregate.Row) string { return strconv.Itoa(r.Total) },
	"ratio":         func(r aggregate.Row) string { return FormatRatio(r.Ratio) },
}

func keyPart(i int) func(aggregate.Row) string {
	return func(r aggregate.Row) string {
		if i < len(r.Key) {
			return r.Key[i]
		}
		return ""
	}
}

// Layout is an ordered column projection
type Layout []Column

// ParseLayout resolves column names into a layout
func ParseLayout(names []string) (Layout, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("layout must have at least one column")
	}

	layout := make(Layout, 0, len(names))
	for _, name := range names {
		render, ok := columns[name]
		if !ok {
			return nil, fmt.Errorf("unknown column: %s", name)
		}
		layout = append(layout, Column{Name: name, render: render})
	}
	return layout, nil
}

// Fields projects a row onto the layout
func (l Layout) Fields(row aggregate.Row) []string {
	fields := make([]string, len(l))
	for i, column := range l {
		fields[i] = column.render(row)
	}
	return fields
}

// Names returns the column names of the layout
func (l Layout) Names() []string {
	names := make([]string, len(l))
	for i, column := range l {
		names[i] = column.Name
	}
	return names
}

// FormatRatio writes the shortest round-trip form, keeping a fractional part
// on integral values (1 -> "1.0")
func FormatRatio(ratio float64) string {
	s := strconv.FormatFloat(ratio, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eIN") {
		s += ".0"
	}
	return s
}
