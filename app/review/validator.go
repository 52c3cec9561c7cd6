package review

import "unicode"

// Validate returns the records whose article id is usable as a grouping key.
// Rejected rows are an expected part of the export and are not reported.
func Validate(records []Record) []Record {
	valid := make([]Record, 0, len(records))
	for _, record := range records {
		if IsValidArticleID(record.ArticleID) {
			valid = append(valid, record)
		}
	}
	return valid
}

// IsValidArticleID reports whether id is present, not the placeholder and all digits
func IsValidArticleID(id string) bool {
	if id == "" || id == InvalidArticleID {
		return false
	}
	for _, r := range id {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
