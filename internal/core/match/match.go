// Package match resolves each field rule of a rule set against the text
// fragments extracted from one label.
package match

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/joseph-ayodele/label-verifier/constants"
	"github.com/joseph-ayodele/label-verifier/internal/core/extract"
	"github.com/joseph-ayodele/label-verifier/internal/core/rules"
	"github.com/joseph-ayodele/label-verifier/internal/core/verdict"
)

const (
	DefaultThreshold = 0.6
	DefaultMargin    = 0.1

	epsilon = 1e-9
)

// Matcher is pure and safe for concurrent use.
type Matcher struct {
	threshold float64
	margin    float64
}

// New returns a matcher. A threshold outside (0,1] or a negative margin falls
// back to the default.
func New(threshold, margin float64) *Matcher {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	if margin < 0 {
		margin = DefaultMargin
	}
	return &Matcher{threshold: threshold, margin: margin}
}

func (m *Matcher) Threshold() float64 { return m.threshold }
func (m *Matcher) Margin() float64    { return m.margin }

// Match returns exactly one result per rule, in rule-set order. declared maps
// field names (or aliases) to the values printed on the application; it may
// be nil.
func (m *Matcher) Match(frags []extract.TextFragment, rs *rules.RuleSet, declared map[string]string) []verdict.FieldResult {
	out := make([]verdict.FieldResult, 0, len(rs.Rules))
	var doc []extract.TextFragment
	for _, rule := range rs.Rules {
		input := frags
		if rule.Scope == rules.ScopeDocument {
			if doc == nil {
				doc = joined(frags)
			}
			input = doc
		}
		out = append(out, m.resolve(rule, input, rule.DeclaredValue(declared)))
	}
	return out
}

func (m *Matcher) resolve(rule rules.FieldRule, frags []extract.TextFragment, declared string) verdict.FieldResult {
	res := verdict.FieldResult{
		Rule:     rule.Name,
		Required: rule.IsRequired(declared),
		Status:   constants.FieldAbsent,
	}

	want := rule.Prepare(declared)
	var cands []verdict.Candidate
	var rejected []string
	for _, f := range frags {
		hit := rule.Matcher.Evaluate(rule.Prepare(f.Text), want)
		if hit.Score <= 0 {
			for _, r := range hit.Rejected {
				if !slices.Contains(rejected, r) {
					rejected = append(rejected, r)
				}
			}
			continue
		}
		conf := extract.ClampConfidence(weigh(rule.Matcher, hit.Score, f.Confidence))
		if conf+epsilon < m.threshold {
			continue
		}
		cands = append(cands, verdict.Candidate{Fragment: f, Confidence: conf, Evidence: hit.Evidence, Key: hit.Key})
	}
	if len(cands) == 0 {
		if len(rejected) > 0 {
			res.Evidence = fmt.Sprintf("expected %s, found: %s", rules.NumberKey(want), strings.Join(rejected, ", "))
		}
		return res
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Confidence != cands[j].Confidence {
			return cands[i].Confidence > cands[j].Confidence
		}
		return cands[i].Fragment.Text < cands[j].Fragment.Text
	})

	best := cands[0]
	frag := best.Fragment
	res.Status = constants.FieldMatched
	res.Confidence = best.Confidence
	res.MatchedFragment = &frag
	res.Evidence = best.Evidence

	for _, c := range cands[1:] {
		if best.Confidence-c.Confidence > m.margin+epsilon {
			break
		}
		if conflictKey(c) != conflictKey(best) {
			res.Conflicts = append(res.Conflicts, c)
		}
	}
	if len(res.Conflicts) > 0 {
		res.Status = constants.FieldAmbiguous
	}
	return res
}

// weigh scales a matcher score by how sure the extractor was of the text.
// Keyword coverage is left as is: the keyword alternatives already absorb
// misreadings and the long warning body reads at lower confidence than the
// short statements around it.
func weigh(m rules.Matcher, score, fragConf float64) float64 {
	if m.Kind() == rules.KindKeywords {
		return score
	}
	return score * fragConf
}

func conflictKey(c verdict.Candidate) string {
	if c.Key != "" {
		return c.Key
	}
	return rules.Key(c.Evidence)
}

// joined concatenates fragments in reading order into a single fragment
// carrying their mean confidence.
func joined(frags []extract.TextFragment) []extract.TextFragment {
	if len(frags) == 0 {
		return []extract.TextFragment{}
	}
	texts := make([]string, 0, len(frags))
	var sum float64
	for _, f := range frags {
		texts = append(texts, f.Text)
		sum += f.Confidence
	}
	return []extract.TextFragment{{
		Text:       strings.Join(texts, " "),
		Confidence: sum / float64(len(frags)),
	}}
}
