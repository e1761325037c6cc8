package keyword

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/kailas-cloud/partcat/internal/domain/product"
	"github.com/kailas-cloud/partcat/internal/domain/taxonomy"
)

// A brand match above brandReturnThreshold skips the keyword pass; the best
// part-type score must exceed keywordReturnThreshold.
const (
	brandReturnThreshold   = 75
	keywordReturnThreshold = 40
	exactNameScore         = 80
	maxKeywordConfidence   = 85
	minTokenLen            = 2
)

// Input is the text of one product.
type Input struct {
	Name        string
	Description string
	Brand       string
	Title       string
}

// InputFrom builds matcher input from a product.
func InputFrom(p *product.Product) Input {
	return Input{Name: p.Name, Description: p.Description, Brand: p.Brand, Title: p.Title}
}

// Suggestion is the matcher output. Zero Confidence means no match.
type Suggestion struct {
	Category     string
	Subcategory  string
	PartType     string
	Confidence   int
	MatchReasons []string
}

type compiledBrand struct {
	BrandRule
	brand string
	re    *regexp.Regexp
}

// Matcher is the rule-based keyword and brand classifier. Safe for concurrent use.
type Matcher struct {
	rules  Rules
	brands []compiledBrand
}

// NewMatcher validates and compiles a rule table.
func NewMatcher(rules Rules) (*Matcher, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	m := &Matcher{rules: rules, brands: make([]compiledBrand, 0, len(rules.Brands))}
	for _, b := range rules.Brands {
		m.brands = append(m.brands, compiledBrand{
			BrandRule: b,
			brand:     strings.ToLower(strings.TrimSpace(b.Brand)),
			re:        regexp.MustCompile("(?i)" + b.Pattern),
		})
	}
	return m, nil
}

// Rules returns the rule table the matcher was built with.
func (m *Matcher) Rules() Rules { return m.rules }

// Suggest classifies one product against the taxonomy.
func (m *Matcher) Suggest(tax *taxonomy.Taxonomy, in Input) Suggestion {
	text := strings.TrimSpace(strings.ToLower(strings.Join(
		[]string{in.Name, in.Title, in.Description, in.Brand}, " ")))
	if text == "" || tax.IsEmpty() {
		return Suggestion{}
	}

	brandHit, brandOK := m.matchBrand(tax, strings.ToLower(strings.TrimSpace(in.Brand)), text)
	if brandOK && brandHit.Confidence > brandReturnThreshold {
		return brandHit
	}

	if kw, ok := m.matchKeywords(tax, text); ok {
		return kw
	}
	if brandOK {
		return brandHit
	}
	return Suggestion{}
}

func (m *Matcher) matchBrand(tax *taxonomy.Taxonomy, brand, text string) (Suggestion, bool) {
	for _, b := range m.brands {
		if brand != "" {
			if b.brand != brand {
				continue
			}
		} else if !containsPhrase(text, b.brand) {
			continue
		}
		if !b.re.MatchString(text) {
			continue
		}
		if !tax.Contains(b.Category, b.Subcategory, b.PartType) {
			continue
		}
		return Suggestion{
			Category:     b.Category,
			Subcategory:  b.Subcategory,
			PartType:     b.PartType,
			Confidence:   b.Confidence,
			MatchReasons: []string{fmt.Sprintf("brand rule %s: /%s/", b.Brand, b.Pattern)},
		}, true
	}
	return Suggestion{}, false
}

func (m *Matcher) matchKeywords(tax *taxonomy.Taxonomy, text string) (Suggestion, bool) {
	tokens := tokenSet(text)

	var (
		best      taxonomy.PartType
		bestScore int
		bestWords []string
		found     bool
	)
	for _, pt := range tax.PartTypes() {
		score, words := scorePartType(strings.ToLower(pt.Name), text, tokens)
		if score > bestScore {
			best, bestScore, bestWords, found = pt, score, words, true
		}
	}
	if !found || bestScore <= keywordReturnThreshold {
		return Suggestion{}, false
	}

	cat, sub, pt, ok := tax.Path(best.ID)
	if !ok {
		return Suggestion{}, false
	}
	reason := fmt.Sprintf("part type name %q found in text", pt.Name)
	if bestWords != nil {
		reason = fmt.Sprintf("keywords %s matched part type %q", strings.Join(bestWords, ", "), pt.Name)
	}
	return Suggestion{
		Category:     cat.Name,
		Subcategory:  sub.Name,
		PartType:     pt.Name,
		Confidence:   min(bestScore, maxKeywordConfidence),
		MatchReasons: []string{reason},
	}, true
}

// scorePartType returns the score and, for word matches, the matched words.
func scorePartType(name, text string, tokens map[string]bool) (int, []string) {
	if strings.Contains(text, name) {
		return exactNameScore, nil
	}
	var (
		score   int
		matched []string
	)
	seen := make(map[string]bool)
	for _, w := range tokenize(name) {
		if seen[w] || !tokens[w] {
			continue
		}
		seen[w] = true
		matched = append(matched, w)
		switch {
		case len(w) > 6:
			score += 20
		case len(w) > 4:
			score += 15
		default:
			score += 10
		}
	}
	if len(matched) >= 2 {
		score += 5 * len(matched)
	}
	return score, matched
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) >= minTokenLen {
			out = append(out, f)
		}
	}
	return out
}

// tokenSet also holds the singular form of plural tokens ("pads" -> "pad").
func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range tokenize(text) {
		set[t] = true
		if len(t) > 3 && strings.HasSuffix(t, "s") && !strings.HasSuffix(t, "ss") {
			set[strings.TrimSuffix(t, "s")] = true
		}
	}
	return set
}

// containsPhrase reports whether phrase occurs in text on word boundaries.
func containsPhrase(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	for start := 0; start <= len(text)-len(phrase); {
		i := strings.Index(text[start:], phrase)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(phrase)
		if (i == 0 || !isWordByte(text[i-1])) && (end == len(text) || !isWordByte(text[end])) {
			return true
		}
		start = i + 1
	}
	return false
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}
