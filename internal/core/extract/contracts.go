package extract

import (
	"context"
	"math"
	"strings"
)

// Image is one caller-submitted label payload. The engine never stores it.
type Image struct {
	ID   string // filename or submission index
	Data []byte
}

// Region describes a rectangular area in pixel coordinates with the origin in
// the upper-left corner of the image.
type Region struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// IsEmpty reports whether the region has non-positive dimensions.
func (r Region) IsEmpty() bool { return r.Width <= 0 || r.Height <= 0 }

// TextFragment is one piece of recognized text.
type TextFragment struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"` // 0..1
	Position   *Region `json:"position,omitempty"`
}

// TextExtractor turns an image into text fragments.
//
// Implementations return an error wrapping common.ErrExtraction when the
// payload cannot be read at all (empty, corrupt, unsupported, too large). A
// readable but poor image yields few or no fragments with low confidence.
type TextExtractor interface {
	Extract(ctx context.Context, img Image) ([]TextFragment, error)
}

// ClampConfidence forces c into [0,1]. NaN becomes 0.
func ClampConfidence(c float64) float64 {
	switch {
	case math.IsNaN(c), c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}

// Fragment builds a fragment with collapsed whitespace and a clamped confidence.
// It returns false for fragments with no visible text.
func Fragment(text string, conf float64, pos *Region) (TextFragment, bool) {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return TextFragment{}, false
	}
	if pos != nil && pos.IsEmpty() {
		pos = nil
	}
	return TextFragment{Text: text, Confidence: ClampConfidence(conf), Position: pos}, true
}
