package classify

import (
	"errors"
	"fmt"

	"github.com/lysyi3m/agile-merge/app/config"
	"github.com/lysyi3m/agile-merge/app/review"
)

// ErrUnclassified is returned when a file has no tag assignment for a report
var ErrUnclassified = errors.New("no resource type assigned")

// Report selects which tag vocabulary applies
type Report string

const (
	ReportArticle Report = "article"
	ReportDaily   Report = "daily"
)

// Classifier tags records by the name of the file they came from
type Classifier struct {
	taxonomy *config.Taxonomy
}

func NewClassifier(taxonomy *config.Taxonomy) *Classifier {
	return &Classifier{taxonomy: taxonomy}
}

// Assignment returns the tag assignment for fileName in the given report
func (c *Classifier) Assignment(report Report, fileName string) config.Assignment {
	rule := c.taxonomy.RuleFor(fileName)
	if report == ReportDaily {
		return rule.Daily
	}
	return rule.Article
}

// Run returns tagged copies of the records of file for report. Records left
// without a tag are dropped and counted as untagged.
func (c *Classifier) Run(report Report, file *review.File, records []review.Record) ([]review.Record, int, error) {
	assignment := c.Assignment(report, file.Name)

	if assignment.IsUnset() {
		return nil, 0, fmt.Errorf("%w: %s in %s report", ErrUnclassified, file.Name, report)
	}
	if assignment.Keep && !file.HasColumn(review.ColumnResourceType) {
		return nil, 0, fmt.Errorf("%w: %s", review.ErrMissingColumn, review.ColumnResourceType)
	}

	tagged := make([]review.Record, 0, len(records))
	untagged := 0
	for _, record := range records {
		record.Tag = assignment.Tag
		if assignment.Keep {
			record.Tag = c.Remap(record.ResourceType)
		}

		if record.Tag == "" {
			untagged++
			continue
		}
		tagged = append(tagged, record)
	}

	return tagged, untagged, nil
}

// Remap applies the shorthand table; unknown types pass through unchanged
func (c *Classifier) Remap(resourceType string) string {
	return c.taxonomy.Remap(resourceType)
}
