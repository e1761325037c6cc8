package llm

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/partcat/internal/domain/product"
	"github.com/kailas-cloud/partcat/internal/domain/taxonomy"
	"github.com/kailas-cloud/partcat/internal/keyword"
)

const promptHeader = `You are an automotive parts cataloguer. Classify every product into exactly one
path of the taxonomy below: category > subcategory > part type.

Rules:
- Use category and subcategory names exactly as written in the taxonomy.
- Prefer a listed part type; only invent one when nothing listed fits.
- Confidence is an integer from 0 to 100.
- Answer with a JSON array only, one object per product, in input order:
  [{"index": 1, "category": "...", "subcategory": "...", "partType": "...", "confidence": 85}]
`

// SystemPrompt renders the ordered taxonomy and the heuristics derived from the
// keyword avoid/redirect rules.
func SystemPrompt(tax *taxonomy.Taxonomy, rules keyword.Rules) string {
	var b strings.Builder
	b.WriteString(promptHeader)

	b.WriteString("\nTaxonomy:\n")
	for _, c := range tax.Nested() {
		fmt.Fprintf(&b, "%s\n", c.Name)
		for _, s := range c.Subcategories {
			fmt.Fprintf(&b, "  %s: %s\n", s.Name, strings.Join(s.PartTypes, ", "))
		}
	}

	var heuristics []string
	for _, r := range rules.Categories {
		if len(r.Avoid) == 0 {
			continue
		}
		heuristics = append(heuristics, fmt.Sprintf("- Products mentioning %s are NOT %s; use %s > %s.",
			strings.Join(r.Avoid, ", "), r.Category, r.Redirect.Category, r.Redirect.Subcategory))
	}
	if len(heuristics) > 0 {
		b.WriteString("\nHeuristics:\n")
		b.WriteString(strings.Join(heuristics, "\n"))
		b.WriteString("\n")
	}
	return b.String()
}

// UserPrompt lists one numbered line per product.
func UserPrompt(products []*product.Product, descriptionLimit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Classify these %d products:\n", len(products))
	for i, p := range products {
		fields := []string{"Name: " + oneLine(p.Name)}
		if p.Title != "" {
			fields = append(fields, "Title: "+oneLine(p.Title))
		}
		if p.Description != "" {
			fields = append(fields, "Description: "+truncate(oneLine(p.Description), descriptionLimit))
		}
		if p.Brand != "" {
			fields = append(fields, "Brand: "+oneLine(p.Brand))
		}
		if p.Specs != "" {
			fields = append(fields, "Specs: "+oneLine(p.Specs))
		}
		if p.PartNumber != "" {
			fields = append(fields, "Part number: "+oneLine(p.PartNumber))
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, strings.Join(fields, " | "))
	}
	return b.String()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if limit <= 0 || len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
