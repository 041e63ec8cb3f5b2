package verdict

import (
	"encoding/json"

	"github.com/joseph-ayodele/label-verifier/constants"
	"github.com/joseph-ayodele/label-verifier/internal/core/extract"
)

// Report is the display shape of a verdict.
type Report struct {
	ImageID     string                 `json:"image_id"`
	RuleSet     string                 `json:"rule_set"`
	OverallPass bool                   `json:"overall_pass"`
	Fields      map[string]FieldReport `json:"fields"`
	FieldOrder  []string               `json:"field_order"`
	Failing     []string               `json:"failing,omitempty"`
	Elapsed     string                 `json:"elapsed"`
	ElapsedMS   int64                  `json:"elapsed_ms"`
}

type FieldReport struct {
	Status     constants.FieldStatus `json:"status"`
	Required   bool                  `json:"required"`
	Confidence float64               `json:"confidence"`
	Evidence   string                `json:"evidence,omitempty"`
	Text       string                `json:"text,omitempty"`
	Position   *extract.Region       `json:"position,omitempty"`
	Conflicts  []ConflictReport      `json:"conflicts,omitempty"`
}

type ConflictReport struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Evidence   string  `json:"evidence"`
}

// NewReport converts a verdict for display. The matched fragment's original
// text is kept as recognized.
func NewReport(v LabelVerdict) Report {
	r := Report{
		ImageID:     v.ImageID,
		RuleSet:     v.RuleSet,
		OverallPass: v.OverallPass,
		Fields:      make(map[string]FieldReport, len(v.Fields)),
		FieldOrder:  make([]string, 0, len(v.Fields)),
		Failing:     v.Failing(),
		Elapsed:     FormatElapsed(v.Elapsed),
		ElapsedMS:   v.Elapsed.Milliseconds(),
	}
	for _, f := range v.Fields {
		fr := FieldReport{
			Status:     f.Status,
			Required:   f.Required,
			Confidence: f.Confidence,
			Evidence:   f.Evidence,
		}
		if f.MatchedFragment != nil {
			fr.Text = f.MatchedFragment.Text
			fr.Position = f.MatchedFragment.Position
		}
		for _, c := range f.Conflicts {
			fr.Conflicts = append(fr.Conflicts, ConflictReport{Text: c.Fragment.Text, Confidence: c.Confidence, Evidence: c.Evidence})
		}
		r.Fields[f.Rule] = fr
		r.FieldOrder = append(r.FieldOrder, f.Rule)
	}
	return r
}

// MarshalJSON renders the verdict as its Report.
func (v LabelVerdict) MarshalJSON() ([]byte, error) {
	return json.Marshal(NewReport(v))
}
