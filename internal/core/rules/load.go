package rules

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/joseph-ayodele/label-verifier/internal/common"
)

//go:embed default_rules.json
var defaultRulesJSON []byte

type document struct {
	Default  string        `json:"default"`
	RuleSets []ruleSetSpec `json:"rule_sets"`
}

type ruleSetSpec struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Rules       []ruleSpec `json:"rules"`
}

type ruleSpec struct {
	Name                 string      `json:"name"`
	Description          string      `json:"description"`
	Required             bool        `json:"required"`
	RequiredWhenDeclared bool        `json:"required_when_declared"`
	Aliases              []string    `json:"aliases"`
	Scope                string      `json:"scope"`
	Corrections          string      `json:"corrections"`
	Matcher              matcherSpec `json:"matcher"`
}

type matcherSpec struct {
	Type          string   `json:"type"`
	Patterns      []string `json:"patterns"`
	Numeric       bool     `json:"numeric"`
	Weight        float64  `json:"weight"`
	Keywords      []string `json:"keywords"`
	Anchor        string   `json:"anchor"`
	MinCoverage   float64  `json:"min_coverage"`
	Target        string   `json:"target"`
	MinSimilarity float64  `json:"min_similarity"`
}

const (
	defaultMinCoverage   = 0.66
	defaultMinSimilarity = 0.8
)

// Registry holds the process-wide rule sets. It is immutable once built.
type Registry struct {
	defaultID string
	sets      map[string]*RuleSet
	ids       []string
}

// Default loads the embedded rule document.
func Default() (*Registry, error) {
	return Load(defaultRulesJSON)
}

// LoadFile loads a rule document from disk.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, common.ConfigurationError("read rules file %s: %v", path, err)
	}
	return Load(data)
}

// Load validates a JSON rule document and compiles it. Every failure is a
// configuration error.
func Load(data []byte) (*Registry, error) {
	if err := validateDocument(data); err != nil {
		return nil, common.ConfigurationError("%v", err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, common.ConfigurationError("decode rules: %v", err)
	}

	sets := make([]*RuleSet, 0, len(doc.RuleSets))
	for _, spec := range doc.RuleSets {
		rs, err := compileRuleSet(spec)
		if err != nil {
			return nil, err
		}
		sets = append(sets, rs)
	}
	return NewRegistry(doc.Default, sets...)
}

// NewRegistry builds a registry from compiled rule sets.
func NewRegistry(defaultID string, sets ...*RuleSet) (*Registry, error) {
	r := &Registry{defaultID: defaultID, sets: make(map[string]*RuleSet, len(sets))}
	for _, rs := range sets {
		if err := checkRuleSet(rs); err != nil {
			return nil, err
		}
		if _, dup := r.sets[rs.ID]; dup {
			return nil, common.ConfigurationError("duplicate rule set id %q", rs.ID)
		}
		r.sets[rs.ID] = rs
		r.ids = append(r.ids, rs.ID)
	}
	if _, ok := r.sets[defaultID]; !ok {
		return nil, common.ConfigurationError("default rule set %q is not defined", defaultID)
	}
	return r, nil
}

func checkRuleSet(rs *RuleSet) error {
	if rs == nil || strings.TrimSpace(rs.ID) == "" {
		return common.ConfigurationError("rule set without id")
	}
	if len(rs.Rules) == 0 {
		return common.ConfigurationError("rule set %q has no rules", rs.ID)
	}
	seen := make(map[string]struct{}, len(rs.Rules))
	for _, rule := range rs.Rules {
		if strings.TrimSpace(rule.Name) == "" {
			return common.ConfigurationError("rule set %q: rule without name", rs.ID)
		}
		if _, dup := seen[rule.Name]; dup {
			return common.ConfigurationError("rule set %q: duplicate field name %q", rs.ID, rule.Name)
		}
		seen[rule.Name] = struct{}{}
		if rule.Matcher == nil {
			return common.ConfigurationError("rule set %q: rule %q has no matcher", rs.ID, rule.Name)
		}
	}
	return nil
}

func compileRuleSet(spec ruleSetSpec) (*RuleSet, error) {
	rs := &RuleSet{ID: spec.ID, Description: spec.Description, Rules: make([]FieldRule, 0, len(spec.Rules))}
	for _, r := range spec.Rules {
		corr, err := LookupCorrector(r.Corrections)
		if err != nil {
			return nil, common.ConfigurationError("rule set %q: rule %q: %v", spec.ID, r.Name, err)
		}
		rule := FieldRule{
			Name:                 r.Name,
			Description:          r.Description,
			Required:             r.Required,
			RequiredWhenDeclared: r.RequiredWhenDeclared,
			Aliases:              r.Aliases,
			Scope:                ScopeFragment,
			Corrections:          corr,
		}
		if r.Scope == string(ScopeDocument) {
			rule.Scope = ScopeDocument
		}
		m, err := compileMatcher(rule, r.Matcher)
		if err != nil {
			return nil, common.ConfigurationError("rule set %q: rule %q: %v", spec.ID, r.Name, err)
		}
		rule.Matcher = m
		rs.Rules = append(rs.Rules, rule)
	}
	return rs, nil
}

func compileMatcher(rule FieldRule, spec matcherSpec) (Matcher, error) {
	switch spec.Type {
	case KindRegex:
		m := &RegexMatcher{Numeric: spec.Numeric, Weight: spec.Weight}
		for _, p := range spec.Patterns {
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				return nil, fmt.Errorf("bad pattern %q: %w", p, err)
			}
			if spec.Numeric && re.NumSubexp() < 1 {
				return nil, fmt.Errorf("numeric pattern %q needs a capture group", p)
			}
			m.Patterns = append(m.Patterns, re)
		}
		if len(m.Patterns) == 0 {
			return nil, fmt.Errorf("regex matcher needs at least one pattern")
		}
		return m, nil

	case KindKeywords:
		m := &KeywordsMatcher{Anchor: -1, MinCoverage: spec.MinCoverage}
		if m.MinCoverage <= 0 {
			m.MinCoverage = defaultMinCoverage
		}
		for _, k := range spec.Keywords {
			kw := ParseKeyword(k)
			if len(kw.Alternatives) == 0 {
				return nil, fmt.Errorf("keyword %q has no letters or digits", k)
			}
			m.Keywords = append(m.Keywords, kw)
		}
		if spec.Anchor != "" {
			anchor := Normalize(spec.Anchor)
			for i, kw := range m.Keywords {
				if kw.Label == anchor {
					m.Anchor = i
					break
				}
			}
			if m.Anchor < 0 {
				return nil, fmt.Errorf("anchor %q is not one of the keywords", spec.Anchor)
			}
		}
		return m, nil

	case KindFuzzy:
		m := &FuzzyMatcher{Target: rule.Prepare(spec.Target), MinSimilarity: spec.MinSimilarity}
		if m.MinSimilarity <= 0 {
			m.MinSimilarity = defaultMinSimilarity
		}
		return m, nil
	}
	return nil, fmt.Errorf("unknown matcher type %q", spec.Type)
}

// Get returns the rule set with the given id, or the default set for "".
// Unknown ids are invalid requests, not configuration errors.
func (r *Registry) Get(id string) (*RuleSet, error) {
	if strings.TrimSpace(id) == "" {
		id = r.defaultID
	}
	rs, ok := r.sets[id]
	if !ok {
		return nil, common.InvalidInputError("unknown rule set %q (known: %s)", id, strings.Join(r.IDs(), ", "))
	}
	return rs, nil
}

// WithDefault returns a registry sharing r's rule sets with a different default.
func (r *Registry) WithDefault(id string) (*Registry, error) {
	if _, ok := r.sets[id]; !ok {
		return nil, common.ConfigurationError("default rule set %q is not defined", id)
	}
	return &Registry{defaultID: id, sets: r.sets, ids: r.ids}, nil
}

func (r *Registry) DefaultID() string { return r.defaultID }

// IDs returns the rule set ids sorted.
func (r *Registry) IDs() []string {
	out := append([]string(nil), r.ids...)
	sort.Strings(out)
	return out
}
