package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const exportExt = ".xls"

// Discover lists export files in dir by name; the extension match ignores case
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), exportExt) {
			files = append(files, entry.Name())
		}
	}

	return files, nil
}
