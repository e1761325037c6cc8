package keyword

import "strings"

const (
	strongBase = 85
	strongStep = 5
	strongCap  = 95
	mediumBase = 60
	mediumStep = 5
	mediumCap  = 75
)

// Hint is the strongest category indicator found in a product text.
type Hint struct {
	Category    string
	Subcategory string
	Confidence  int
	Strong      bool
	Keywords    []string
}

// CategoryHint scans the category rules against text. Strong keywords score
// 85 plus 5 per extra match (max 95); medium-only matches score 60 plus 5 per
// extra match (max 75). Ties keep the first rule.
func (m *Matcher) CategoryHint(text string) (Hint, bool) {
	text = strings.ToLower(text)

	var (
		best  Hint
		found bool
	)
	for _, r := range m.rules.Categories {
		strong := matchedPhrases(text, r.Strong)
		medium := matchedPhrases(text, r.Medium)

		var h Hint
		switch {
		case len(strong) > 0:
			h = Hint{
				Confidence: min(strongBase+strongStep*(len(strong)-1), strongCap),
				Strong:     true,
				Keywords:   strong,
			}
		case len(medium) > 0:
			h = Hint{
				Confidence: min(mediumBase+mediumStep*(len(medium)-1), mediumCap),
				Keywords:   medium,
			}
		default:
			continue
		}
		if found && h.Confidence <= best.Confidence {
			continue
		}
		h.Category = r.Category
		h.Subcategory = subcategoryHint(text, r.SubcategoryHints)
		best, found = h, true
	}
	return best, found
}

// Avoided reports whether text carries an avoid keyword for category, and where to redirect it.
func (m *Matcher) Avoided(category, text string) (Target, string, bool) {
	text = strings.ToLower(text)
	for _, r := range m.rules.Categories {
		if !strings.EqualFold(r.Category, category) {
			continue
		}
		if hits := matchedPhrases(text, r.Avoid); len(hits) > 0 {
			return r.Redirect, hits[0], true
		}
	}
	return Target{}, "", false
}

func subcategoryHint(text string, hints []SubcategoryHint) string {
	for _, h := range hints {
		if len(matchedPhrases(text, h.Keywords)) > 0 {
			return h.Subcategory
		}
	}
	return ""
}

func matchedPhrases(text string, phrases []string) []string {
	var out []string
	for _, p := range phrases {
		if containsPhrase(text, strings.ToLower(p)) {
			out = append(out, p)
		}
	}
	return out
}
