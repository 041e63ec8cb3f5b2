package ocr

import (
	"image"

	"github.com/joseph-ayodele/label-verifier/internal/core/extract"
)

// Box is one recognized line or paragraph as reported by an in-process engine.
type Box struct {
	Rect       image.Rectangle
	Text       string
	Confidence float64 // 0..1
}

// BoxesToFragments converts engine boxes into fragments, dropping empty text
// and rule-line noise.
func BoxesToFragments(boxes []Box) []extract.TextFragment {
	frags := make([]extract.TextFragment, 0, len(boxes))
	for _, b := range boxes {
		var pos *extract.Region
		if !b.Rect.Empty() {
			pos = &extract.Region{
				X:      float64(b.Rect.Min.X),
				Y:      float64(b.Rect.Min.Y),
				Width:  float64(b.Rect.Dx()),
				Height: float64(b.Rect.Dy()),
			}
		}
		if f, ok := extract.Fragment(b.Text, b.Confidence, pos); ok {
			frags = append(frags, f)
		}
	}
	return DropNoise(frags)
}
