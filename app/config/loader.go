package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default.yml
var defaultTaxonomy []byte

var (
	DefaultArticleColumns = []string{"article_id", "resource_type", "total", "ratio"}
	DefaultDailyColumns   = []string{"date", "total", "ratio", "resource_type"}
)

// Loader handles loading and validation of the taxonomy file
type Loader struct {
	path string
}

// NewLoader creates a loader; an empty path selects the built-in taxonomy
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Load reads, defaults and validates the taxonomy
func (l *Loader) Load() (*Taxonomy, error) {
	data := defaultTaxonomy
	source := "built-in"

	if l.path != "" {
		raw, err := os.ReadFile(l.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read file: %w", err)
		}
		data = raw
		source = l.path
	}

	taxonomy, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("error loading %s taxonomy: %w", source, err)
	}

	slog.Debug("Taxonomy loaded", "source", source, "rules", len(taxonomy.Rules), "shorthand", len(taxonomy.Shorthand))

	return taxonomy, nil
}

// Parse decodes a YAML taxonomy, applies defaults and validates it
func Parse(data []byte) (*Taxonomy, error) {
	var taxonomy Taxonomy
	if err := yaml.Unmarshal(data, &taxonomy); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	setDefaults(&taxonomy)

	if err := validate(&taxonomy); err != nil {
		return nil, fmt.Errorf("invalid taxonomy: %w", err)
	}

	return &taxonomy, nil
}

// Default returns the built-in taxonomy
func Default() *Taxonomy {
	taxonomy, err := Parse(defaultTaxonomy)
	if err != nil {
		panic(fmt.Sprintf("built-in taxonomy is invalid: %v", err))
	}
	return taxonomy
}

func setDefaults(taxonomy *Taxonomy) {
	if len(taxonomy.Reports.Article) == 0 {
		taxonomy.Reports.Article = append([]string(nil), DefaultArticleColumns...)
	}
	if len(taxonomy.Reports.Daily) == 0 {
		taxonomy.Reports.Daily = append([]string(nil), DefaultDailyColumns...)
	}
}

func validate(taxonomy *Taxonomy) error {
	seen := make(map[string]int)

	for i, rule := range taxonomy.Rules {
		if len(rule.Files) == 0 {
			return fmt.Errorf("rule at index %d must list at least one file", i)
		}
		for _, name := range rule.Files {
			if name == "" {
				return fmt.Errorf("rule at index %d has an empty file name", i)
			}
			if prev, ok := seen[name]; ok {
				return fmt.Errorf("file %s appears in rules %d and %d", name, prev, i)
			}
			seen[name] = i
		}
		if err := validateAssignment(rule.Article); err != nil {
			return fmt.Errorf("rule at index %d, article: %w", i, err)
		}
		if err := validateAssignment(rule.Daily); err != nil {
			return fmt.Errorf("rule at index %d, daily: %w", i, err)
		}
	}

	if len(taxonomy.Fallback.Files) > 0 {
		return fmt.Errorf("fallback must not list files")
	}
	if err := validateAssignment(taxonomy.Fallback.Article); err != nil {
		return fmt.Errorf("fallback, article: %w", err)
	}
	if err := validateAssignment(taxonomy.Fallback.Daily); err != nil {
		return fmt.Errorf("fallback, daily: %w", err)
	}

	for from, to := range taxonomy.Shorthand {
		if from == "" || to == "" {
			return fmt.Errorf("shorthand entries must not be empty")
		}
	}

	if err := validateColumns(taxonomy.Reports.Article, "article_id"); err != nil {
		return fmt.Errorf("article report: %w", err)
	}
	if err := validateColumns(taxonomy.Reports.Daily, "date"); err != nil {
		return fmt.Errorf("daily report: %w", err)
	}

	return nil
}

func validateAssignment(a Assignment) error {
	if a.Tag != "" && a.Keep {
		return fmt.Errorf("tag and keep are mutually exclusive")
	}
	return nil
}

func validateColumns(columns []string, keyColumn string) error {
	validColumns := map[string]bool{
		keyColumn:       true,
		"resource_type": true,
		"positive":      true,
		"neutral":       true,
		"negative":      true,
		"total":         true,
		"ratio":         true,
	}

	used := make(map[string]bool, len(columns))
	for i, column := range columns {
		if !validColumns[column] {
			return fmt.Errorf("invalid column at index %d: %s", i, column)
		}
		if used[column] {
			return fmt.Errorf("duplicate column: %s", column)
		}
		used[column] = true
	}

	return nil
}
