package taxonomy

import "strings"

// Category is a root-level taxonomy node.
type Category struct {
	ID        string
	Name      string
	Embedding []float32
}

// Subcategory is owned by exactly one Category.
type Subcategory struct {
	ID         string
	Name       string
	CategoryID string
	Embedding  []float32
}

// PartType is a leaf owned by exactly one Subcategory.
type PartType struct {
	ID            string
	Name          string
	SubcategoryID string
	Embedding     []float32
}

// Taxonomy is an immutable three-level snapshot (category -> subcategory -> part type).
// All slices keep insertion order; callers must not modify returned slices.
type Taxonomy struct {
	name          string
	categories    []Category
	subcategories []Subcategory
	partTypes     []PartType

	catIdx  map[string]int
	subIdx  map[string]int
	partIdx map[string]int
	subsOf  map[string][]int
	partsOf map[string][]int
}

// Summary is a node count overview of a snapshot.
type Summary struct {
	Name          string `json:"name"`
	Categories    int    `json:"categories"`
	Subcategories int    `json:"subcategories"`
	PartTypes     int    `json:"part_types"`
	Embedded      bool   `json:"embedded"`
}

// Name returns the snapshot name ("aces", "remote", an upload name).
func (t *Taxonomy) Name() string { return t.name }

// Categories returns all categories in insertion order.
func (t *Taxonomy) Categories() []Category { return t.categories }

// Subcategories returns all subcategories in insertion order.
func (t *Taxonomy) Subcategories() []Subcategory { return t.subcategories }

// PartTypes returns all part types in insertion order.
func (t *Taxonomy) PartTypes() []PartType { return t.partTypes }

// IsEmpty reports whether the snapshot has no categories.
func (t *Taxonomy) IsEmpty() bool { return t == nil || len(t.categories) == 0 }

// Category looks up a category by id.
func (t *Taxonomy) Category(id string) (Category, bool) {
	i, ok := t.catIdx[id]
	if !ok {
		return Category{}, false
	}
	return t.categories[i], true
}

// Subcategory looks up a subcategory by id.
func (t *Taxonomy) Subcategory(id string) (Subcategory, bool) {
	i, ok := t.subIdx[id]
	if !ok {
		return Subcategory{}, false
	}
	return t.subcategories[i], true
}

// PartType looks up a part type by id.
func (t *Taxonomy) PartType(id string) (PartType, bool) {
	i, ok := t.partIdx[id]
	if !ok {
		return PartType{}, false
	}
	return t.partTypes[i], true
}

// SubcategoriesOf returns the subcategories owned by a category.
func (t *Taxonomy) SubcategoriesOf(categoryID string) []Subcategory {
	idx := t.subsOf[categoryID]
	out := make([]Subcategory, len(idx))
	for i, j := range idx {
		out[i] = t.subcategories[j]
	}
	return out
}

// PartTypesOf returns the part types owned by a subcategory.
func (t *Taxonomy) PartTypesOf(subcategoryID string) []PartType {
	idx := t.partsOf[subcategoryID]
	out := make([]PartType, len(idx))
	for i, j := range idx {
		out[i] = t.partTypes[j]
	}
	return out
}

// PartTypesInCategory returns every part type under a category, optionally
// skipping one subcategory.
func (t *Taxonomy) PartTypesInCategory(categoryID, excludeSubcategoryID string) []PartType {
	var out []PartType
	for _, si := range t.subsOf[categoryID] {
		sub := t.subcategories[si]
		if sub.ID == excludeSubcategoryID {
			continue
		}
		for _, pi := range t.partsOf[sub.ID] {
			out = append(out, t.partTypes[pi])
		}
	}
	return out
}

// CategoryByName finds a category by case-insensitive name.
func (t *Taxonomy) CategoryByName(name string) (Category, bool) {
	for _, c := range t.categories {
		if strings.EqualFold(c.Name, strings.TrimSpace(name)) {
			return c, true
		}
	}
	return Category{}, false
}

// SubcategoryByName finds a subcategory by case-insensitive name within a category.
func (t *Taxonomy) SubcategoryByName(categoryID, name string) (Subcategory, bool) {
	for _, i := range t.subsOf[categoryID] {
		if strings.EqualFold(t.subcategories[i].Name, strings.TrimSpace(name)) {
			return t.subcategories[i], true
		}
	}
	return Subcategory{}, false
}

// PartTypeByName finds a part type by case-insensitive name within a subcategory.
func (t *Taxonomy) PartTypeByName(subcategoryID, name string) (PartType, bool) {
	for _, i := range t.partsOf[subcategoryID] {
		if strings.EqualFold(t.partTypes[i].Name, strings.TrimSpace(name)) {
			return t.partTypes[i], true
		}
	}
	return PartType{}, false
}

// FindPartType finds the first part type anywhere in the tree with the given name.
func (t *Taxonomy) FindPartType(name string) (PartType, bool) {
	for _, p := range t.partTypes {
		if strings.EqualFold(p.Name, strings.TrimSpace(name)) {
			return p, true
		}
	}
	return PartType{}, false
}

// Path resolves the owning chain of a part type.
func (t *Taxonomy) Path(partTypeID string) (Category, Subcategory, PartType, bool) {
	p, ok := t.PartType(partTypeID)
	if !ok {
		return Category{}, Subcategory{}, PartType{}, false
	}
	s, ok := t.Subcategory(p.SubcategoryID)
	if !ok {
		return Category{}, Subcategory{}, PartType{}, false
	}
	c, ok := t.Category(s.CategoryID)
	if !ok {
		return Category{}, Subcategory{}, PartType{}, false
	}
	return c, s, p, true
}

// Contains reports whether the named triple exists as a consistent chain.
// An empty part type only checks category and subcategory.
func (t *Taxonomy) Contains(category, subcategory, partType string) bool {
	c, ok := t.CategoryByName(category)
	if !ok {
		return false
	}
	s, ok := t.SubcategoryByName(c.ID, subcategory)
	if !ok {
		return false
	}
	if partType == "" {
		return true
	}
	_, ok = t.PartTypeByName(s.ID, partType)
	return ok
}

// HasEmbeddings reports whether at least one node carries an embedding.
func (t *Taxonomy) HasEmbeddings() bool {
	for _, c := range t.categories {
		if len(c.Embedding) > 0 {
			return true
		}
	}
	for _, s := range t.subcategories {
		if len(s.Embedding) > 0 {
			return true
		}
	}
	for _, p := range t.partTypes {
		if len(p.Embedding) > 0 {
			return true
		}
	}
	return false
}

// Summary returns node counts.
func (t *Taxonomy) Summary() Summary {
	return Summary{
		Name:          t.name,
		Categories:    len(t.categories),
		Subcategories: len(t.subcategories),
		PartTypes:     len(t.partTypes),
		Embedded:      t.HasEmbeddings(),
	}
}

// NestedSubcategory is one subcategory with its part type names.
type NestedSubcategory struct {
	Name      string   `json:"name"`
	PartTypes []string `json:"part_types"`
}

// NestedCategory is one category with its subcategories.
type NestedCategory struct {
	Name          string              `json:"name"`
	Subcategories []NestedSubcategory `json:"subcategories"`
}

// Nested returns the tree as ordered names, the shape sent to the LLM.
func (t *Taxonomy) Nested() []NestedCategory {
	out := make([]NestedCategory, 0, len(t.categories))
	for _, c := range t.categories {
		nc := NestedCategory{Name: c.Name}
		for _, si := range t.subsOf[c.ID] {
			s := t.subcategories[si]
			ns := NestedSubcategory{Name: s.Name, PartTypes: []string{}}
			for _, pi := range t.partsOf[s.ID] {
				ns.PartTypes = append(ns.PartTypes, t.partTypes[pi].Name)
			}
			nc.Subcategories = append(nc.Subcategories, ns)
		}
		out = append(out, nc)
	}
	return out
}
