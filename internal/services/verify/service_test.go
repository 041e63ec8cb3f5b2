package verify

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/label-verifier/constants"
	"github.com/joseph-ayodele/label-verifier/internal/common"
	"github.com/joseph-ayodele/label-verifier/internal/core"
	"github.com/joseph-ayodele/label-verifier/internal/core/extract"
)

func testConfig() *common.Config {
	return &common.Config{
		Engine: common.EngineConfig{
			DefaultRuleSet:      "ttb",
			AcceptanceThreshold: 0.6,
			AmbiguityMargin:     0.1,
			ItemTimeout:         time.Second,
			MaxConcurrency:      2,
		},
		OCR: common.OCRConfig{
			Backend:        common.BackendTesseractCLI,
			Granularity:    "line",
			MaxImageBytes:  1 << 20,
			MaxImagePixels: 1_000_000,
			MaxDimension:   1000,
		},
	}
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

const healthWarning = "GOVERNMENT WARNING: (1) According to the Surgeon General, women should not drink alcoholic " +
	"beverages during pregnancy because of the risk of birth defects. (2) Consumption of alcoholic " +
	"beverages impairs your ability to drive a car or operate machinery, and may cause health problems."

var sampleLabel = []extract.TextFragment{
	{Text: "SILVER OAK", Confidence: 0.95},
	{Text: "Cabernet Sauvignon", Confidence: 0.9},
	{Text: "ALC. 13.9% BY VOL.", Confidence: 0.9},
	{Text: "750 ML", Confidence: 0.92},
	{Text: healthWarning, Confidence: 0.9},
}

func TestNew_ConfigurationErrors(t *testing.T) {
	ex := &extract.Static{}

	_, err := New(nil, ex, quiet())
	assert.ErrorIs(t, err, common.ErrConfiguration)

	cfg := testConfig()
	cfg.Engine.AcceptanceThreshold = 1.5
	_, err = New(cfg, ex, quiet())
	assert.ErrorIs(t, err, common.ErrConfiguration)

	cfg = testConfig()
	cfg.Engine.DefaultRuleSet = "missing"
	_, err = New(cfg, ex, quiet())
	assert.ErrorIs(t, err, common.ErrConfiguration)

	_, err = New(testConfig(), nil, quiet())
	assert.ErrorIs(t, err, common.ErrConfiguration)

	cfg = testConfig()
	cfg.Engine.RulesFile = filepath.Join(t.TempDir(), "nope.json")
	_, err = New(cfg, ex, quiet())
	assert.ErrorIs(t, err, common.ErrConfiguration)
}

func TestNew_RulesFile(t *testing.T) {
	doc := `{
  "default": "custom",
  "rule_sets": [{
    "id": "custom",
    "rules": [{
      "name": "ALCOHOL_CONTENT",
      "required": true,
      "matcher": {"type": "regex", "patterns": ["(\\d+(?:\\.\\d+)?)\\s*%"], "numeric": true}
    }]
  }]
}`
	path := filepath.Join(t.TempDir(), "rules.json")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg := testConfig()
	cfg.Engine.RulesFile = path
	cfg.Engine.DefaultRuleSet = "custom"
	s, err := New(cfg, &extract.Static{}, quiet())
	require.NoError(t, err)
	assert.Equal(t, []string{"custom"}, s.RuleSets())
	assert.Equal(t, "custom", s.DefaultRuleSet())
}

func TestVerify(t *testing.T) {
	ex := &extract.Static{Fragments: map[string][]extract.TextFragment{"silver-oak.png": sampleLabel}}
	s, err := New(testConfig(), ex, quiet())
	require.NoError(t, err)

	v, err := s.Verify(context.Background(), core.Request{
		Image: extract.Image{ID: "silver-oak.png", Data: []byte{1}},
		Declared: map[string]string{
			"BRAND_NAME":      "Silver Oak",
			"ALCOHOL_CONTENT": "13.9%",
		},
	})
	require.NoError(t, err)
	assert.True(t, v.OverallPass, v.Failing())

	abv, ok := v.Field("ALCOHOL_CONTENT")
	require.True(t, ok)
	assert.Equal(t, constants.FieldMatched, abv.Status)
	require.NotNil(t, abv.MatchedFragment)
	assert.Equal(t, "ALC. 13.9% BY VOL.", abv.MatchedFragment.Text)
}

func TestVerify_DeclaredMismatch(t *testing.T) {
	ex := &extract.Static{Fragments: map[string][]extract.TextFragment{"a.png": sampleLabel}}
	s, err := New(testConfig(), ex, quiet())
	require.NoError(t, err)

	v, err := s.Verify(context.Background(), core.Request{
		Image:    extract.Image{ID: "a.png", Data: []byte{1}},
		Declared: map[string]string{"abv": "12%"},
	})
	require.NoError(t, err)
	assert.False(t, v.OverallPass)
	assert.Equal(t, []string{"ALCOHOL_CONTENT"}, v.Failing())
}

func TestVerify_Errors(t *testing.T) {
	ex := &extract.Static{Errors: map[string]error{"bad.png": common.ExtractionError("corrupt")}}
	s, err := New(testConfig(), ex, quiet())
	require.NoError(t, err)

	_, err = s.Verify(context.Background(), core.Request{Image: extract.Image{ID: "bad.png", Data: []byte{1}}})
	assert.Equal(t, constants.KindExtraction, common.KindOf(err))

	_, err = s.Verify(context.Background(), core.Request{Image: extract.Image{ID: "a.png", Data: []byte{1}}, RuleSet: "nope"})
	assert.Equal(t, constants.KindInvalidRequest, common.KindOf(err))
}

func TestVerifyBatch(t *testing.T) {
	ex := &extract.Static{
		Fragments: map[string][]extract.TextFragment{"a.png": sampleLabel, "b.png": sampleLabel},
		Errors:    map[string]error{"c.png": common.ExtractionError("corrupt")},
	}
	s, err := New(testConfig(), ex, quiet())
	require.NoError(t, err)

	res := s.VerifyBatch(context.Background(), []core.Request{
		{Image: extract.Image{ID: "a.png", Data: []byte{1}}},
		{Image: extract.Image{ID: "missing.png"}},
		{Image: extract.Image{ID: "c.png", Data: []byte{1}}},
		{Image: extract.Image{ID: "b.png", Data: []byte{1}}, Declared: map[string]string{"abv": "40%"}},
	})

	require.Len(t, res.Items, 4)
	assert.True(t, res.Items[0].Verdict.OverallPass)
	assert.Equal(t, constants.KindInvalidRequest, res.Items[1].Error.Kind)
	assert.Equal(t, constants.KindExtraction, res.Items[2].Error.Kind)
	assert.False(t, res.Items[3].Verdict.OverallPass)
	assert.Equal(t, 1, res.Summary.Passed)
	assert.Equal(t, 1, res.Summary.Failed)
	assert.Equal(t, 2, res.Summary.Errors)
}
