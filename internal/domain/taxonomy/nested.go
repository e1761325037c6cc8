package taxonomy

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/partcat/internal/domain"
)

// ParseNested decodes {category: {subcategory: [partTypes]}} from YAML or JSON.
// Document order is kept, which fixes iteration order for every matcher.
func ParseNested(name string, data []byte) (*Taxonomy, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse taxonomy: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("parse taxonomy: %w", domain.ErrEmptyTaxonomy)
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parse taxonomy: top level must be a mapping, got %s", kindName(root))
	}

	b := NewBuilder(name)
	for i := 0; i+1 < len(root.Content); i += 2 {
		cat, err := b.AddCategory(Category{Name: root.Content[i].Value})
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", root.Content[i].Line, err)
		}
		if err := addSubcategories(b, cat.ID, root.Content[i+1]); err != nil {
			return nil, err
		}
	}

	t := b.Build()
	if t.IsEmpty() {
		return nil, fmt.Errorf("parse taxonomy: %w", domain.ErrEmptyTaxonomy)
	}
	return t, nil
}

func addSubcategories(b *Builder, categoryID string, node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		// "Category: ~" declares a category without children.
		if node.Tag == "!!null" {
			return nil
		}
		return fmt.Errorf("line %d: subcategories must be a mapping", node.Line)
	case yaml.MappingNode:
	default:
		return fmt.Errorf("line %d: subcategories must be a mapping, got %s", node.Line, kindName(node))
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		sub, err := b.AddSubcategory(Subcategory{Name: node.Content[i].Value, CategoryID: categoryID})
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Content[i].Line, err)
		}
		parts := node.Content[i+1]
		if parts.Kind == yaml.ScalarNode && parts.Tag == "!!null" {
			continue
		}
		if parts.Kind != yaml.SequenceNode {
			return fmt.Errorf("line %d: part types must be a list, got %s", parts.Line, kindName(parts))
		}
		for _, p := range parts.Content {
			if p.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: part type must be a string", p.Line)
			}
			if _, err := b.AddPartType(PartType{Name: p.Value, SubcategoryID: sub.ID}); err != nil {
				return fmt.Errorf("line %d: %w", p.Line, err)
			}
		}
	}
	return nil
}

func kindName(n *yaml.Node) string {
	switch n.Kind {
	case yaml.MappingNode:
		return "mapping"
	case yaml.SequenceNode:
		return "list"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "document"
	}
}

// ParseEmbedding decodes the bracketed string form "[0.1,0.2,...]" stored in the
// remote tables. An empty or null value yields a nil vector.
func ParseEmbedding(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return nil, nil
	}
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("embedding must be a bracketed list: %w", domain.ErrInvalidEmbedding)
	}
	var v []float32
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("decode embedding: %w", domain.ErrInvalidEmbedding)
	}
	return v, nil
}

// FormatEmbedding encodes a vector in the bracketed string form.
func FormatEmbedding(v []float32) string {
	if len(v) == 0 {
		return ""
	}
	data, _ := json.Marshal(v)
	return string(data)
}
