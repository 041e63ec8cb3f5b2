package verdict

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/label-verifier/constants"
	"github.com/joseph-ayodele/label-verifier/internal/core/extract"
)

func results() []FieldResult {
	abv := extract.TextFragment{Text: "12% ABV", Confidence: 0.9}
	return []FieldResult{
		{Rule: "ABV", Required: true, Status: constants.FieldMatched, Confidence: 0.9, MatchedFragment: &abv, Evidence: "12% abv"},
		{Rule: "HEALTH_WARNING", Required: true, Status: constants.FieldMatched, Confidence: 0.8},
		{Rule: "BRAND", Required: false, Status: constants.FieldAbsent},
	}
}

func TestBuild_OverallPass(t *testing.T) {
	v := Build("img-1", "ttb", results(), 1500*time.Millisecond)
	assert.True(t, v.OverallPass)
	assert.Empty(t, v.Failing())
	assert.Len(t, v.Fields, 3)
	assert.Equal(t, "img-1", v.ImageID)
	assert.Equal(t, 1500*time.Millisecond, v.Elapsed)
}

func TestBuild_RequiredFieldFlipsVerdict(t *testing.T) {
	for i, r := range results() {
		if !r.Required {
			continue
		}
		for _, status := range []constants.FieldStatus{constants.FieldAbsent, constants.FieldAmbiguous} {
			in := results()
			in[i].Status = status
			v := Build("x", "ttb", in, 0)
			assert.False(t, v.OverallPass, "%s -> %s", r.Rule, status)
			assert.Equal(t, []string{r.Rule}, v.Failing())
		}
	}
}

func TestBuild_OptionalFieldsNeverMatter(t *testing.T) {
	for _, status := range []constants.FieldStatus{constants.FieldMatched, constants.FieldAmbiguous, constants.FieldAbsent} {
		in := results()
		in[2].Status = status
		assert.True(t, Build("x", "ttb", in, 0).OverallPass)
	}
}

func TestBuild_CopiesResults(t *testing.T) {
	in := results()
	v := Build("x", "ttb", in, 0)
	in[0].Status = constants.FieldAbsent
	assert.Equal(t, constants.FieldMatched, v.Fields[0].Status)
}

func TestBuild_AllAbsent(t *testing.T) {
	in := results()
	for i := range in {
		in[i] = FieldResult{Rule: in[i].Rule, Required: in[i].Required, Status: constants.FieldAbsent}
	}
	v := Build("x", "ttb", in, 0)
	assert.False(t, v.OverallPass)
	assert.Equal(t, []string{"ABV", "HEALTH_WARNING"}, v.Failing())
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{500 * time.Millisecond, "500ms"},
		{0, "0ms"},
		{-time.Second, "0ms"},
		{1400 * time.Microsecond, "1ms"},
		{999600 * time.Microsecond, "1.00s"},
		{2345 * time.Millisecond, "2.35s"},
		{time.Second, "1.00s"},
		{59996 * time.Millisecond, "1m 0.0s"},
		{75400 * time.Millisecond, "1m 15.4s"},
		{2*time.Minute + 3*time.Second, "2m 3.0s"},
		{119990 * time.Millisecond, "2m 0.0s"},
	}
	for _, tc := range tests {
		t.Run(tc.want, func(t *testing.T) {
			assert.Equal(t, tc.want, FormatElapsed(tc.in))
		})
	}
}

func TestReport_JSON(t *testing.T) {
	in := results()
	c1 := extract.TextFragment{Text: "500ml", Confidence: 0.7}
	c2 := extract.TextFragment{Text: "750ml", Confidence: 0.72}
	in = append(in, FieldResult{
		Rule: "VOLUME", Required: false, Status: constants.FieldAmbiguous, Confidence: 0.72,
		MatchedFragment: &c2, Evidence: "750ml",
		Conflicts: []Candidate{{Fragment: c1, Confidence: 0.7, Evidence: "500ml", Key: "500"}},
	})
	v := Build("label.png", "ttb", in, 2345*time.Millisecond)

	b, err := json.Marshal(v)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "label.png", got["image_id"])
	assert.Equal(t, true, got["overall_pass"])
	assert.Equal(t, "2.35s", got["elapsed"])
	assert.Equal(t, float64(2345), got["elapsed_ms"])
	assert.Equal(t, []any{"ABV", "HEALTH_WARNING", "BRAND", "VOLUME"}, got["field_order"])

	fields := got["fields"].(map[string]any)
	abv := fields["ABV"].(map[string]any)
	assert.Equal(t, "MATCHED", abv["status"])
	assert.Equal(t, "12% ABV", abv["text"])
	assert.Equal(t, "12% abv", abv["evidence"])

	vol := fields["VOLUME"].(map[string]any)
	assert.Equal(t, "AMBIGUOUS", vol["status"])
	conflicts := vol["conflicts"].([]any)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "500ml", conflicts[0].(map[string]any)["text"])
}
