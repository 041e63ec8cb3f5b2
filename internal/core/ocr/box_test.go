package ocr

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/label-verifier/internal/core/extract"
)

func TestBoxesToFragments(t *testing.T) {
	frags := BoxesToFragments([]Box{
		{Rect: image.Rect(5, 5, 105, 45), Text: "  STONE   RIDGE \n", Confidence: 0.91},
		{Rect: image.Rectangle{}, Text: "750 mL", Confidence: 1.4},
		{Rect: image.Rect(0, 0, 10, 10), Text: "   ", Confidence: 0.5},
		{Rect: image.Rect(0, 50, 300, 52), Text: "______", Confidence: 0.7},
	})
	require.Len(t, frags, 2)

	assert.Equal(t, "STONE RIDGE", frags[0].Text)
	assert.Equal(t, &extract.Region{X: 5, Y: 5, Width: 100, Height: 40}, frags[0].Position)

	assert.Equal(t, "750 mL", frags[1].Text)
	assert.Equal(t, 1.0, frags[1].Confidence)
	assert.Nil(t, frags[1].Position)
}
