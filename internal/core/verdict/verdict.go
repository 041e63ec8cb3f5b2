// Package verdict folds per-field results into a label verdict and renders it.
package verdict

import (
	"time"

	"github.com/joseph-ayodele/label-verifier/constants"
	"github.com/joseph-ayodele/label-verifier/internal/core/extract"
)

// Candidate is a fragment that cleared the acceptance threshold for a rule.
type Candidate struct {
	Fragment   extract.TextFragment
	Confidence float64
	Evidence   string
	Key        string
}

// FieldResult is the outcome of one rule against one label.
type FieldResult struct {
	Rule            string
	Required        bool
	Status          constants.FieldStatus
	Confidence      float64
	MatchedFragment *extract.TextFragment
	Evidence        string
	Conflicts       []Candidate // set only for AMBIGUOUS
}

// LabelVerdict is the immutable result of verifying one image.
type LabelVerdict struct {
	ImageID     string
	RuleSet     string
	OverallPass bool
	Fields      []FieldResult
	Elapsed     time.Duration
}

// Build aggregates field results. The label passes iff every required field
// is MATCHED; optional fields never affect the outcome.
func Build(imageID, ruleSet string, results []FieldResult, elapsed time.Duration) LabelVerdict {
	fields := make([]FieldResult, len(results))
	copy(fields, results)

	pass := true
	for _, f := range fields {
		if f.Required && f.Status != constants.FieldMatched {
			pass = false
			break
		}
	}
	return LabelVerdict{
		ImageID:     imageID,
		RuleSet:     ruleSet,
		OverallPass: pass,
		Fields:      fields,
		Elapsed:     elapsed,
	}
}

// Field returns the result for the named rule.
func (v LabelVerdict) Field(name string) (FieldResult, bool) {
	for _, f := range v.Fields {
		if f.Rule == name {
			return f, true
		}
	}
	return FieldResult{}, false
}

// Failing returns the names of required fields that did not match.
func (v LabelVerdict) Failing() []string {
	var out []string
	for _, f := range v.Fields {
		if f.Required && f.Status != constants.FieldMatched {
			out = append(out, f.Rule)
		}
	}
	return out
}
