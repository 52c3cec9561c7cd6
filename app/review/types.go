package review

// Column names as they appear in the export header
const (
	ColumnArticleID    = "文章ID"
	ColumnSubmittedAt  = "提交时间"
	ColumnRating       = "评分1"
	ColumnResourceType = "资源类型"
)

// InvalidArticleID is the placeholder the export writes for missing ids
const InvalidArticleID = "--"

// Record is one review row
type Record struct {
	ArticleID    string
	SubmittedAt  string
	Rating       string
	ResourceType string // row-level type from the export, may be empty

	Positive int
	Neutral  int
	Negative int
	Total    int

	Day string // YYYYMMDD, daily branch only
	Tag string // assigned by the classifier
}

// File is a decoded export file
type File struct {
	Name     string
	Path     string
	Size     int64
	Checksum string
	Columns  map[string]bool
	Records  []Record
}

// HasColumn reports whether the export header contained name
func (f *File) HasColumn(name string) bool {
	return f.Columns[name]
}
