// Package tesseract runs OCR in-process through libtesseract.
package tesseract

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/otiai10/gosseract/v2"

	"github.com/joseph-ayodele/label-verifier/internal/common"
	"github.com/joseph-ayodele/label-verifier/internal/core/extract"
	"github.com/joseph-ayodele/label-verifier/internal/core/ocr"
)

type Config struct {
	Languages   []string
	TessdataDir string
	PSM         int
	Granularity ocr.Granularity
	Limits      ocr.Limits
}

// Engine implements extract.TextExtractor on top of gosseract. A new client
// is created per call because gosseract clients are not safe for concurrent use.
type Engine struct {
	cfg           Config
	clientFactory func() *gosseract.Client
	logger        *slog.Logger
}

var _ extract.TextExtractor = (*Engine)(nil)

// NewEngine constructs a Tesseract-backed extractor.
func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{"eng"}
	}
	return &Engine{cfg: cfg, clientFactory: gosseract.NewClient, logger: logger}
}

func (e *Engine) Extract(ctx context.Context, img extract.Image) ([]extract.TextFragment, error) {
	norm, err := ocr.NormalizeImage(img.Data, e.cfg.Limits)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := e.clientFactory()
	defer c.Close()

	if e.cfg.TessdataDir != "" {
		if err := c.SetTessdataPrefix(e.cfg.TessdataDir); err != nil {
			return nil, fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if err := c.SetLanguage(e.cfg.Languages...); err != nil {
		return nil, fmt.Errorf("set languages: %w", err)
	}
	if e.cfg.PSM > 0 {
		if err := c.SetPageSegMode(gosseract.PageSegMode(e.cfg.PSM)); err != nil {
			return nil, fmt.Errorf("set page seg mode: %w", err)
		}
	}
	if err := c.SetImageFromBytes(norm.PNG); err != nil {
		return nil, common.ExtractionError("tesseract rejected %q: %v", img.ID, err)
	}

	level := gosseract.RIL_TEXTLINE
	if e.cfg.Granularity == ocr.GranularityParagraph {
		level = gosseract.RIL_PARA
	}
	boxes, err := c.GetBoundingBoxes(level)
	if err != nil {
		return nil, common.ExtractionError("tesseract failed on %q: %v", img.ID, err)
	}

	out := make([]ocr.Box, 0, len(boxes))
	for _, b := range boxes {
		out = append(out, ocr.Box{Rect: b.Box, Text: b.Word, Confidence: b.Confidence / 100.0})
	}
	frags := ocr.BoxesToFragments(out)
	e.logger.Debug("tesseract extraction done", "image_id", img.ID, "fragments", len(frags))
	return frags, nil
}
