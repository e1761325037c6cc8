package taxonomy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	domtax "github.com/kailas-cloud/partcat/internal/domain/taxonomy"
)

// LoadFile parses a nested {category: {subcategory: [part types]}} YAML or JSON
// file. The snapshot is named after the file unless name is set.
func LoadFile(path, name string) (*domtax.Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy file: %w", err)
	}
	if name == "" {
		base := filepath.Base(path)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	t, err := domtax.ParseNested(name, data)
	if err != nil {
		return nil, fmt.Errorf("taxonomy file %s: %w", path, err)
	}
	return t, nil
}
