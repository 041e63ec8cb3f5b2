package ocr

import (
	"bytes"
	"image"
	_ "image/jpeg" // register decoders for DecodeConfig
	_ "image/png"
	"regexp"

	"github.com/disintegration/imaging"

	"github.com/joseph-ayodele/label-verifier/constants"
	"github.com/joseph-ayodele/label-verifier/internal/common"
	"github.com/joseph-ayodele/label-verifier/internal/core/extract"
)

// Limits bound what an OCR adapter will accept.
type Limits struct {
	MaxBytes     int64 // encoded payload size
	MaxPixels    int   // width*height of the decoded image
	MaxDimension int   // longer side after normalization; larger images are downscaled
}

// DefaultLimits mirrors the configuration defaults.
var DefaultLimits = Limits{MaxBytes: 20 << 20, MaxPixels: 40_000_000, MaxDimension: 3000}

func (l Limits) withDefaults() Limits {
	if l.MaxBytes <= 0 {
		l.MaxBytes = DefaultLimits.MaxBytes
	}
	if l.MaxPixels <= 0 {
		l.MaxPixels = DefaultLimits.MaxPixels
	}
	if l.MaxDimension <= 0 {
		l.MaxDimension = DefaultLimits.MaxDimension
	}
	return l
}

// NormalizedImage is a PNG re-encoding of a submitted label.
type NormalizedImage struct {
	PNG    []byte
	Format string // format of the original payload
	Width  int
	Height int
	Scaled bool
}

// NormalizeImage validates a payload and re-encodes it as an upright, grayscale
// PNG no larger than Limits.MaxDimension on either side. Every failure wraps
// common.ErrExtraction.
func NormalizeImage(data []byte, lim Limits) (NormalizedImage, error) {
	lim = lim.withDefaults()
	if len(data) == 0 {
		return NormalizedImage{}, common.ExtractionError("empty image payload")
	}
	if int64(len(data)) > lim.MaxBytes {
		return NormalizedImage{}, common.ExtractionError("image is %d bytes, limit is %d", len(data), lim.MaxBytes)
	}

	cfg, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return NormalizedImage{}, common.ExtractionError("unreadable image: %v", err)
	}
	format := constants.MapDecodedFormat(name)
	if format == "" {
		return NormalizedImage{}, common.ExtractionError("unsupported image format %q", name)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return NormalizedImage{}, common.ExtractionError("image has no pixels")
	}
	if cfg.Width*cfg.Height > lim.MaxPixels {
		return NormalizedImage{}, common.ExtractionError("image is %dx%d, limit is %d pixels", cfg.Width, cfg.Height, lim.MaxPixels)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return NormalizedImage{}, common.ExtractionError("corrupt image: %v", err)
	}
	var out image.Image = imaging.Grayscale(img)
	scaled := false
	if b := out.Bounds(); b.Dx() > lim.MaxDimension || b.Dy() > lim.MaxDimension {
		out = imaging.Fit(out, lim.MaxDimension, lim.MaxDimension, imaging.Lanczos)
		scaled = true
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.PNG); err != nil {
		return NormalizedImage{}, common.ExtractionError("re-encode image: %v", err)
	}
	b := out.Bounds()
	return NormalizedImage{PNG: buf.Bytes(), Format: format, Width: b.Dx(), Height: b.Dy(), Scaled: scaled}, nil
}

var reBoxNoise = regexp.MustCompile(`^[_\-=|.~*\s]{3,}$`)

// DropNoise removes fragments that are only rule lines or box borders.
func DropNoise(frags []extract.TextFragment) []extract.TextFragment {
	out := frags[:0]
	for _, f := range frags {
		if reBoxNoise.MatchString(f.Text) {
			continue
		}
		out = append(out, f)
	}
	return out
}
