package keyword

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/partcat/internal/domain"
)

//go:embed default_rules.yaml
var defaultRulesYAML []byte

// Rules is the pluggable rule table consumed by the matcher and the LLM validation layer.
type Rules struct {
	Brands     []BrandRule    `yaml:"brands"`
	Categories []CategoryRule `yaml:"categories"`
}

// BrandRule maps a brand plus a text pattern to a fixed taxonomy path.
type BrandRule struct {
	Brand       string `yaml:"brand"`
	Pattern     string `yaml:"pattern"`
	Category    string `yaml:"category"`
	Subcategory string `yaml:"subcategory"`
	PartType    string `yaml:"part_type"`
	Confidence  int    `yaml:"confidence"`
}

// Target is a category/subcategory pair.
type Target struct {
	Category    string `yaml:"category"`
	Subcategory string `yaml:"subcategory"`
}

// SubcategoryHint selects a subcategory when any keyword is present.
type SubcategoryHint struct {
	Subcategory string   `yaml:"subcategory"`
	Keywords    []string `yaml:"keywords"`
}

// CategoryRule is the keyword override table for one category.
// Avoid keywords mean the text does not belong to Category and is sent to Redirect.
type CategoryRule struct {
	Category         string            `yaml:"category"`
	Strong           []string          `yaml:"strong"`
	Medium           []string          `yaml:"medium"`
	Avoid            []string          `yaml:"avoid"`
	Redirect         Target            `yaml:"redirect"`
	SubcategoryHints []SubcategoryHint `yaml:"subcategory_hints"`
}

// LoadRules decodes and validates a YAML rule table.
func LoadRules(data []byte) (Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Rules{}, fmt.Errorf("parse rules: %w: %w", domain.ErrInvalidRules, err)
	}
	if err := r.Validate(); err != nil {
		return Rules{}, err
	}
	return r, nil
}

// LoadRulesFile reads a rule table from disk.
func LoadRulesFile(path string) (Rules, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Rules{}, fmt.Errorf("read rules %s: %w", path, err)
	}
	return LoadRules(data)
}

// DefaultRules returns the built-in rule table.
func DefaultRules() Rules {
	r, err := LoadRules(defaultRulesYAML)
	if err != nil {
		panic(fmt.Sprintf("builtin keyword rules: %v", err))
	}
	return r
}

// Validate checks every rule for required fields and compilable patterns.
func (r Rules) Validate() error {
	for i, b := range r.Brands {
		if strings.TrimSpace(b.Brand) == "" || b.Pattern == "" {
			return fmt.Errorf("brands[%d]: brand and pattern are required: %w", i, domain.ErrInvalidRules)
		}
		if b.Category == "" || b.Subcategory == "" || b.PartType == "" {
			return fmt.Errorf("brands[%d] %s: full taxonomy path is required: %w", i, b.Brand, domain.ErrInvalidRules)
		}
		if b.Confidence < 0 || b.Confidence > 100 {
			return fmt.Errorf("brands[%d] %s: confidence must be 0-100: %w", i, b.Brand, domain.ErrInvalidRules)
		}
		if _, err := regexp.Compile("(?i)" + b.Pattern); err != nil {
			return fmt.Errorf("brands[%d] %s: %w: %w", i, b.Brand, domain.ErrInvalidRules, err)
		}
	}
	for i, c := range r.Categories {
		if strings.TrimSpace(c.Category) == "" {
			return fmt.Errorf("categories[%d]: category is required: %w", i, domain.ErrInvalidRules)
		}
		if len(c.Avoid) > 0 && c.Redirect.Category == "" {
			return fmt.Errorf("categories[%d] %s: avoid keywords need a redirect: %w", i, c.Category, domain.ErrInvalidRules)
		}
	}
	return nil
}
