package config

// IsUnset reports whether the assignment leaves records without a tag
func (a Assignment) IsUnset() bool {
	return a.Tag == "" && !a.Keep
}

// Remap returns the shorthand for a row-level type, or the type itself
func (t *Taxonomy) Remap(resourceType string) string {
	if short, ok := t.Shorthand[resourceType]; ok {
		return short
	}
	return resourceType
}

// RuleFor returns the rule matching fileName exactly, or the fallback
func (t *Taxonomy) RuleFor(fileName string) Rule {
	for _, rule := range t.Rules {
		for _, name := range rule.Files {
			if name == fileName {
				return rule
			}
		}
	}
	return t.Fallback
}
