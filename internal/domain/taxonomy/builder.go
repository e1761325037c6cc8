package taxonomy

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/partcat/internal/domain"
)

// Builder assembles a Taxonomy. Parents must be added before their children.
type Builder struct {
	t *Taxonomy
}

// NewBuilder starts an empty snapshot with the given name.
func NewBuilder(name string) *Builder {
	return &Builder{t: &Taxonomy{
		name:    name,
		catIdx:  make(map[string]int),
		subIdx:  make(map[string]int),
		partIdx: make(map[string]int),
		subsOf:  make(map[string][]int),
		partsOf: make(map[string][]int),
	}}
}

// AddCategory appends a category. An empty ID is generated.
func (b *Builder) AddCategory(c Category) (Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return Category{}, fmt.Errorf("category name is required: %w", domain.ErrInvalidRequest)
	}
	if _, dup := b.t.CategoryByName(c.Name); dup {
		return Category{}, fmt.Errorf("category %q already exists: %w", c.Name, domain.ErrAlreadyExists)
	}
	if c.ID == "" {
		c.ID = fmt.Sprintf("c%d", len(b.t.categories)+1)
	}
	if _, dup := b.t.catIdx[c.ID]; dup {
		return Category{}, fmt.Errorf("category id %q already exists: %w", c.ID, domain.ErrAlreadyExists)
	}
	b.t.catIdx[c.ID] = len(b.t.categories)
	b.t.categories = append(b.t.categories, c)
	return c, nil
}

// AddSubcategory appends a subcategory under an existing category.
func (b *Builder) AddSubcategory(s Subcategory) (Subcategory, error) {
	s.Name = strings.TrimSpace(s.Name)
	if s.Name == "" {
		return Subcategory{}, fmt.Errorf("subcategory name is required: %w", domain.ErrInvalidRequest)
	}
	if _, ok := b.t.catIdx[s.CategoryID]; !ok {
		return Subcategory{}, fmt.Errorf("subcategory %q: category %q: %w", s.Name, s.CategoryID, domain.ErrNotFound)
	}
	if _, dup := b.t.SubcategoryByName(s.CategoryID, s.Name); dup {
		return Subcategory{}, fmt.Errorf("subcategory %q already exists: %w", s.Name, domain.ErrAlreadyExists)
	}
	if s.ID == "" {
		s.ID = fmt.Sprintf("s%d", len(b.t.subcategories)+1)
	}
	if _, dup := b.t.subIdx[s.ID]; dup {
		return Subcategory{}, fmt.Errorf("subcategory id %q already exists: %w", s.ID, domain.ErrAlreadyExists)
	}
	b.t.subIdx[s.ID] = len(b.t.subcategories)
	b.t.subsOf[s.CategoryID] = append(b.t.subsOf[s.CategoryID], len(b.t.subcategories))
	b.t.subcategories = append(b.t.subcategories, s)
	return s, nil
}

// AddPartType appends a part type under an existing subcategory.
func (b *Builder) AddPartType(p PartType) (PartType, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return PartType{}, fmt.Errorf("part type name is required: %w", domain.ErrInvalidRequest)
	}
	if _, ok := b.t.subIdx[p.SubcategoryID]; !ok {
		return PartType{}, fmt.Errorf("part type %q: subcategory %q: %w", p.Name, p.SubcategoryID, domain.ErrNotFound)
	}
	if _, dup := b.t.PartTypeByName(p.SubcategoryID, p.Name); dup {
		return PartType{}, fmt.Errorf("part type %q already exists: %w", p.Name, domain.ErrAlreadyExists)
	}
	if p.ID == "" {
		p.ID = fmt.Sprintf("p%d", len(b.t.partTypes)+1)
	}
	if _, dup := b.t.partIdx[p.ID]; dup {
		return PartType{}, fmt.Errorf("part type id %q already exists: %w", p.ID, domain.ErrAlreadyExists)
	}
	b.t.partIdx[p.ID] = len(b.t.partTypes)
	b.t.partsOf[p.SubcategoryID] = append(b.t.partsOf[p.SubcategoryID], len(b.t.partTypes))
	b.t.partTypes = append(b.t.partTypes, p)
	return p, nil
}

// Build returns the snapshot. The builder must not be used afterwards.
func (b *Builder) Build() *Taxonomy {
	t := b.t
	b.t = nil
	return t
}
