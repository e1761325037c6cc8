package llm

import (
	"fmt"
	"math"
	"strings"

	"github.com/kailas-cloud/partcat/internal/domain/classification"
	"github.com/kailas-cloud/partcat/internal/domain/product"
	"github.com/kailas-cloud/partcat/internal/domain/taxonomy"
	"github.com/kailas-cloud/partcat/internal/keyword"
)

// ValidationConfig holds the correction thresholds.
type ValidationConfig struct {
	CategoryThreshold float64 // fuzzy match floor for categories and subcategories
	PartTypeThreshold float64 // fuzzy match floor for part types
	RescueBelow       float64 // keyword override only applies to LLM answers below this
	RescueAbove       int     // and only with keyword confidence above this
	BoostTo           float64
	FallbackCap       float64
}

// DefaultValidationConfig returns the production thresholds.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		CategoryThreshold: 0.35,
		PartTypeThreshold: 0.7,
		RescueBelow:       60,
		RescueAbove:       80,
		BoostTo:           80,
		FallbackCap:       50,
	}
}

// Validator corrects raw model answers against the keyword rules and the active taxonomy.
type Validator struct {
	matcher *keyword.Matcher
	cfg     ValidationConfig
}

// NewValidator creates a validator over the given matcher.
func NewValidator(m *keyword.Matcher, cfg ValidationConfig) *Validator {
	return &Validator{matcher: m, cfg: cfg}
}

// Validate applies, in order: keyword override, taxonomy membership correction and
// confidence adjustment. An answer with nothing to salvage yields an empty category.
func (v *Validator) Validate(tax *taxonomy.Taxonomy, p *product.Product, it Item) classification.Result {
	r := classification.Result{ProductID: p.ID, Method: classification.MethodLLM, Reasons: []string{"llm batch"}}
	conf := it.Confidence
	cat, sub, part := it.Category, it.Subcategory, it.PartType
	text := p.Text()

	var (
		notes                      []string
		override, strong, fallback bool
	)

	if target, kw, ok := v.matcher.Avoided(cat, text); ok {
		notes = append(notes, fmt.Sprintf("avoid keyword %q moved %s to %s", kw, cat, target.Category))
		cat, sub, part = target.Category, target.Subcategory, ""
		override = true
	} else if hint, ok := v.matcher.CategoryHint(text); ok && hint.Strong {
		switch {
		case strings.EqualFold(hint.Category, cat):
			strong = true
		case conf < v.cfg.RescueBelow && hint.Confidence > v.cfg.RescueAbove:
			notes = append(notes, fmt.Sprintf("keyword override %s (%d) over llm %q (%.0f)",
				hint.Category, hint.Confidence, cat, conf))
			cat, sub, part = hint.Category, hint.Subcategory, ""
			override = true
		}
	}
	if override {
		sub, part = v.keywordPartType(tax, p, cat, sub)
	}

	if strings.TrimSpace(cat) == "" && strings.TrimSpace(part) == "" {
		r.ValidationReason = "llm returned no category"
		return r
	}

	_, catKnown := tax.CategoryByName(cat)
	c, s, subOK, fixes, fb := v.membership(tax, cat, sub, part)
	notes = append(notes, fixes...)
	fallback = fallback || fb
	r.Category = c.Name

	if subOK {
		r.Subcategory = s.Name
		name, note, fb := v.partType(tax, s, part)
		r.PartType = name
		if note != "" {
			notes = append(notes, note)
		}
		fallback = fallback || fb
	}

	if override || strong {
		conf = math.Max(conf, v.cfg.BoostTo)
	}
	// A keyword override owns the path it picked; first-child defaults below it are not guesses.
	if fallback && !(override && catKnown) {
		conf = math.Min(conf, v.cfg.FallbackCap)
	}
	r.Confidence = classification.ClampConfidence(conf)
	r.ValidationReason = strings.Join(notes, "; ")
	return r
}

// keywordPartType picks the keyword matcher's part type when it lands in the
// overridden category.
func (v *Validator) keywordPartType(tax *taxonomy.Taxonomy, p *product.Product, cat, sub string) (string, string) {
	kw := v.matcher.Suggest(tax, keyword.InputFrom(p))
	if !strings.EqualFold(kw.Category, cat) {
		return sub, ""
	}
	if sub != "" && !strings.EqualFold(kw.Subcategory, sub) {
		return sub, ""
	}
	return kw.Subcategory, kw.PartType
}

func (v *Validator) membership(
	tax *taxonomy.Taxonomy, cat, sub, part string,
) (taxonomy.Category, taxonomy.Subcategory, bool, []string, bool) {
	var (
		notes    []string
		fallback bool
	)

	c, ok := tax.CategoryByName(cat)
	if !ok {
		cats := tax.Categories()
		if pt, found := tax.FindPartType(part); found {
			fc, fs, fp, _ := tax.Path(pt.ID)
			notes = append(notes, fmt.Sprintf("category %q derived from part type %q", cat, fp.Name))
			return fc, fs, true, notes, false
		} else if i, _, ok := closest(cat, categoryNames(cats), v.cfg.CategoryThreshold); ok {
			c = cats[i]
			notes = append(notes, fmt.Sprintf("category %q corrected to %q", cat, c.Name))
		} else {
			c = cats[0]
			fallback = true
			notes = append(notes, fmt.Sprintf("category %q not in taxonomy, defaulted to %q", cat, c.Name))
		}
	}

	subs := tax.SubcategoriesOf(c.ID)
	if len(subs) == 0 {
		return c, taxonomy.Subcategory{}, false, notes, fallback
	}
	if s, ok := tax.SubcategoryByName(c.ID, sub); ok {
		return c, s, true, notes, fallback
	}
	if part != "" {
		for _, pt := range tax.PartTypesInCategory(c.ID, "") {
			if strings.EqualFold(pt.Name, strings.TrimSpace(part)) {
				s, _ := tax.Subcategory(pt.SubcategoryID)
				notes = append(notes, fmt.Sprintf("subcategory %q derived from part type %q", sub, pt.Name))
				return c, s, true, notes, fallback
			}
		}
	}
	if i, _, ok := closest(sub, subcategoryNames(subs), v.cfg.CategoryThreshold); ok {
		notes = append(notes, fmt.Sprintf("subcategory %q corrected to %q", sub, subs[i].Name))
		return c, subs[i], true, notes, fallback
	}
	notes = append(notes, fmt.Sprintf("subcategory %q not in %s, defaulted to %q", sub, c.Name, subs[0].Name))
	return c, subs[0], true, notes, true
}

// partType resolves a part type within s. Names outside the taxonomy are kept
// unless empty.
func (v *Validator) partType(tax *taxonomy.Taxonomy, s taxonomy.Subcategory, part string) (string, string, bool) {
	parts := tax.PartTypesOf(s.ID)
	part = strings.TrimSpace(part)
	if part == "" {
		if len(parts) == 0 {
			return "", "", false
		}
		return parts[0].Name, fmt.Sprintf("empty part type defaulted to %q", parts[0].Name), true
	}
	if pt, ok := tax.PartTypeByName(s.ID, part); ok {
		return pt.Name, "", false
	}
	if i, _, ok := closest(part, partTypeNames(parts), v.cfg.PartTypeThreshold); ok {
		return parts[i].Name, fmt.Sprintf("part type %q corrected to %q", part, parts[i].Name), false
	}
	return part, fmt.Sprintf("part type %q kept outside taxonomy", part), false
}

func categoryNames(cs []taxonomy.Category) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name
	}
	return out
}

func subcategoryNames(ss []taxonomy.Subcategory) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = s.Name
	}
	return out
}

func partTypeNames(ps []taxonomy.PartType) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name
	}
	return out
}
