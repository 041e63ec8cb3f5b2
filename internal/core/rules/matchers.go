package rules

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/agext/levenshtein"
)

const (
	KindRegex    = "regex"
	KindKeywords = "keywords"
	KindFuzzy    = "fuzzy"
)

var reNumber = regexp.MustCompile(`\d+(?:\.\d+)?`)

// RegexMatcher hits when any pattern matches. With Numeric set and a declared
// value present, the first capture group must equal the number in the
// declared value.
type RegexMatcher struct {
	Patterns []*regexp.Regexp
	Numeric  bool
	Weight   float64
}

func (m *RegexMatcher) Kind() string { return KindRegex }

func (m *RegexMatcher) Evaluate(text, declared string) Hit {
	want, haveWant := 0.0, false
	if m.Numeric && declared != "" {
		n, ok := firstNumber(declared)
		if !ok {
			return Hit{}
		}
		want, haveWant = n, true
	}

	var rejected []string
	for _, re := range m.Patterns {
		for _, sm := range re.FindAllStringSubmatch(text, -1) {
			evidence := strings.TrimSpace(sm[0])
			if !m.Numeric || len(sm) < 2 || sm[1] == "" {
				if haveWant {
					continue
				}
				return Hit{Score: m.weight(), Evidence: evidence, Key: Key(evidence)}
			}
			got, err := strconv.ParseFloat(sm[1], 64)
			if err != nil {
				continue
			}
			key := strconv.FormatFloat(got, 'f', -1, 64)
			if haveWant && math.Abs(got-want) > 1e-9 {
				if !slices.Contains(rejected, key) {
					rejected = append(rejected, key)
				}
				continue
			}
			return Hit{Score: m.weight(), Evidence: evidence, Key: key}
		}
	}
	return Hit{Rejected: rejected}
}

func (m *RegexMatcher) weight() float64 {
	if m.Weight <= 0 {
		return 1
	}
	return math.Min(m.Weight, 1)
}

// NumberKey renders the first number in s the way numeric hits are keyed,
// so "45.0%" becomes "45". s is returned unchanged when it holds no number.
func NumberKey(s string) string {
	n, ok := firstNumber(s)
	if !ok {
		return s
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

func firstNumber(s string) (float64, bool) {
	raw := reNumber.FindString(s)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(raw, 64)
	return n, err == nil
}

// Keyword is one required phrase with OCR-variant spellings.
type Keyword struct {
	Label        string
	Alternatives []string // compacted: lowercase alphanumerics only
}

// ParseKeyword reads "primary|variant|variant".
func ParseKeyword(spec string) Keyword {
	parts := strings.Split(spec, "|")
	kw := Keyword{Label: Normalize(parts[0])}
	for _, p := range parts {
		if c := compact(p); c != "" {
			kw.Alternatives = append(kw.Alternatives, c)
		}
	}
	return kw
}

// KeywordsMatcher scores the share of keywords found in the text. Punctuation
// and spaces are ignored so "governmentwarning" and "government, warning"
// both count. When Anchor is set that keyword must be present.
type KeywordsMatcher struct {
	Keywords    []Keyword
	Anchor      int // index into Keywords, -1 for none
	MinCoverage float64
}

func (m *KeywordsMatcher) Kind() string { return KindKeywords }

func (m *KeywordsMatcher) Evaluate(text, _ string) Hit {
	if len(m.Keywords) == 0 {
		return Hit{}
	}
	clean := compact(text)
	var found []string
	anchored := m.Anchor < 0
	for i, kw := range m.Keywords {
		for _, alt := range kw.Alternatives {
			if strings.Contains(clean, alt) {
				found = append(found, kw.Label)
				if i == m.Anchor {
					anchored = true
				}
				break
			}
		}
	}
	coverage := float64(len(found)) / float64(len(m.Keywords))
	if !anchored || len(found) == 0 || coverage < m.MinCoverage {
		return Hit{}
	}
	evidence := fmt.Sprintf("%d/%d keywords: %s", len(found), len(m.Keywords), strings.Join(found, ", "))
	return Hit{Score: coverage, Evidence: evidence, Key: Key(strings.Join(found, ","))}
}

func compact(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FuzzyMatcher looks for a target phrase (the declared value, or Target when
// nothing was declared) in the text: exact substring first, then coverage of
// the target's significant words, then the best Levenshtein similarity of any
// target-sized window of the text.
type FuzzyMatcher struct {
	Target        string // prepared static target; may be empty
	MinSimilarity float64
}

func (m *FuzzyMatcher) Kind() string { return KindFuzzy }

func (m *FuzzyMatcher) Evaluate(text, declared string) Hit {
	target := declared
	if target == "" {
		target = m.Target
	}
	if target == "" || text == "" {
		return Hit{}
	}
	if strings.Contains(text, target) {
		return Hit{Score: 1, Evidence: target, Key: Key(target)}
	}

	var words, found []string
	for _, w := range strings.Fields(target) {
		if len([]rune(w)) > 2 {
			words = append(words, w)
		}
	}
	for _, w := range words {
		if strings.Contains(text, w) {
			found = append(found, w)
		}
	}
	if len(words) > 0 {
		cov := float64(len(found)) / float64(len(words))
		if cov >= 1 {
			return Hit{Score: 1, Evidence: strings.Join(found, " "), Key: Key(target)}
		}
		if cov >= m.MinSimilarity {
			ev := strings.Join(found, " ")
			return Hit{Score: cov, Evidence: ev, Key: Key(ev)}
		}
	}

	window, sim := bestWindow(text, target)
	if sim >= m.MinSimilarity {
		return Hit{Score: sim, Evidence: window, Key: Key(window)}
	}
	return Hit{}
}

// bestWindow slides a target-length window over text and returns the most
// similar window. Ties keep the leftmost.
func bestWindow(text, target string) (string, float64) {
	tr, pr := []rune(text), []rune(target)
	if len(tr) <= len(pr) {
		return text, levenshtein.Similarity(text, target, nil)
	}
	best, bestSim := "", -1.0
	for i := 0; i+len(pr) <= len(tr); i++ {
		w := string(tr[i : i+len(pr)])
		if s := levenshtein.Similarity(w, target, nil); s > bestSim {
			best, bestSim = w, s
		}
	}
	return strings.TrimSpace(best), bestSim
}
