package review

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var ErrMissingColumn = errors.New("missing required column")

// Tokens read as missing values, same set pandas uses by default
var naValues = map[string]bool{
	"": true, "#N/A": true, "#N/A N/A": true, "#NA": true, "-1.#IND": true, "-1.#QNAN": true,
	"-NaN": true, "-nan": true, "1.#IND": true, "1.#QNAN": true, "<NA>": true, "N/A": true,
	"NA": true, "NULL": true, "NaN": true, "None": true, "n/a": true, "nan": true, "null": true,
}

// Source decodes tab-separated UTF-16LE review exports
type Source struct{}

func NewSource() *Source {
	return &Source{}
}

// ReadFile decodes the export at path
func (s *Source) ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	file, err := s.Decode(data)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(data)
	file.Name = filepath.Base(path)
	file.Path = path
	file.Size = int64(len(data))
	file.Checksum = hex.EncodeToString(sum[:])

	return file, nil
}

// Decode parses raw export bytes into records
func (s *Source) Decode(data []byte) (*File, error) {
	decoder := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
	reader := csv.NewReader(transform.NewReader(bytes.NewReader(data), decoder))
	reader.Comma = '\t'
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	index := make(map[string]int, len(header))
	columns := make(map[string]bool, len(header))
	for i, name := range header {
		if _, dup := index[name]; !dup {
			index[name] = i
		}
		columns[name] = true
	}

	for _, required := range []string{ColumnArticleID, ColumnRating} {
		if !columns[required] {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, required)
		}
	}

	field := func(row []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return ""
		}
		if naValues[row[i]] {
			return ""
		}
		return row[i]
	}

	var records []Record
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		records = append(records, Record{
			ArticleID:    field(row, ColumnArticleID),
			SubmittedAt:  field(row, ColumnSubmittedAt),
			Rating:       field(row, ColumnRating),
			ResourceType: field(row, ColumnResourceType),
		})
	}

	return &File{Columns: columns, Records: records}, nil
}
