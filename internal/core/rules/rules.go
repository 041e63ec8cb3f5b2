// Package rules defines the regulatory field rules a label is checked against.
//
// Rule sets are loaded once from a declarative JSON document, validated, and
// then shared read-only by every verification.
package rules

import (
	"sort"
	"strings"
)

// Scope selects what a rule's matcher is evaluated against.
type Scope string

const (
	// ScopeFragment evaluates the matcher once per extracted fragment.
	ScopeFragment Scope = "fragment"
	// ScopeDocument evaluates the matcher once against all fragments joined in
	// reading order. Used for text that spans many lines, like the health warning.
	ScopeDocument Scope = "document"
)

// Hit is a matcher's verdict on one piece of text.
type Hit struct {
	Score    float64 // 0..1, 0 means no match
	Evidence string  // the span that satisfied the matcher
	Key      string  // identity used to tell conflicting hits apart

	// Rejected holds readings that had the right shape but disagreed with
	// the declared value, canonicalized. Set only when Score is 0.
	Rejected []string
}

// Matcher scores normalized text. declared is the caller-supplied label value
// for the rule, prepared the same way as text, or "" when none was given.
type Matcher interface {
	Kind() string
	Evaluate(text, declared string) Hit
}

// FieldRule is one regulatory field definition.
type FieldRule struct {
	Name                 string
	Description          string
	Required             bool
	RequiredWhenDeclared bool
	Aliases              []string
	Scope                Scope
	Corrections          *Corrector
	Matcher              Matcher
}

// Prepare lowercases and collapses whitespace, then applies the rule's OCR
// corrections.
func (r FieldRule) Prepare(s string) string {
	s = Normalize(s)
	if r.Corrections != nil {
		s = Normalize(r.Corrections.Apply(s))
	}
	return s
}

// DeclaredValue looks up the caller's declared value for this rule by name or
// alias, case-insensitively.
func (r FieldRule) DeclaredValue(declared map[string]string) string {
	if len(declared) == 0 {
		return ""
	}
	dks := make([]string, 0, len(declared))
	for k := range declared {
		dks = append(dks, k)
	}
	sort.Strings(dks)

	for _, name := range append([]string{r.Name}, r.Aliases...) {
		for _, dk := range dks {
			v := strings.TrimSpace(declared[dk])
			if v != "" && strings.EqualFold(strings.TrimSpace(dk), name) {
				return v
			}
		}
	}
	return ""
}

// IsRequired reports whether the rule must be MATCHED for the label to pass,
// given the declared value for it.
func (r FieldRule) IsRequired(declared string) bool {
	return r.Required || (r.RequiredWhenDeclared && declared != "")
}

// RuleSet is an ordered, immutable collection of rules.
type RuleSet struct {
	ID          string
	Description string
	Rules       []FieldRule
}

// Names returns rule names in order.
func (rs *RuleSet) Names() []string {
	out := make([]string, len(rs.Rules))
	for i, r := range rs.Rules {
		out[i] = r.Name
	}
	return out
}

// Normalize lowercases s and collapses runs of whitespace to one space.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Key reduces text to its identity for conflict detection: case and all
// whitespace are ignored.
func Key(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "")
}
