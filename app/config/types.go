package config

// Taxonomy describes how review export files map to resource-type tags and
// how the merged reports are laid out
type Taxonomy struct {
	Shorthand map[string]string `yaml:"shorthand"`
	Rules     []Rule            `yaml:"rules"`
	Fallback  Rule              `yaml:"fallback"`
	Reports   Reports           `yaml:"reports"`
}

// Rule binds a set of file names to a tag assignment for each report
type Rule struct {
	Files   []string   `yaml:"files"`
	Article Assignment `yaml:"article"`
	Daily   Assignment `yaml:"daily"`
}

// Assignment is either a fixed tag, the row-level type (keep) or nothing
type Assignment struct {
	Tag  string `yaml:"tag"`
	Keep bool   `yaml:"keep"`
}

// Reports holds the column projection of each output file
type Reports struct {
	Article []string `yaml:"article"`
	Daily   []string `yaml:"daily"`
}
