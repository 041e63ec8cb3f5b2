package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/label-verifier/internal/common"
	"github.com/joseph-ayodele/label-verifier/internal/core/extract"
)

type Config struct {
	Tesseract string // binary name or absolute path; if empty -> "tesseract"
	Lang      string // default "eng"

	TessdataDir string

	PSM int // page segmentation mode; 0 leaves tesseract's default
	OEM int // 1 = LSTM; leave 0 to use default

	Granularity Granularity
	Limits      Limits
}

// Extractor runs the tesseract binary over a normalized image and returns
// its recognized lines (or paragraphs) as fragments.
type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

var _ extract.TextExtractor = (*Extractor)(nil)

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return newExtractor(cfg, execRunner{logger: logger}, logger)
}

func newExtractor(cfg Config, runner Runner, logger *slog.Logger) *Extractor {
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "eng"
	}
	if cfg.Granularity == "" {
		cfg.Granularity = GranularityLine
	}
	cfg.Limits = cfg.Limits.withDefaults()
	return &Extractor{cfg: cfg, runner: runner, logger: logger}
}

// Extract implements extract.TextExtractor.
func (e *Extractor) Extract(ctx context.Context, img extract.Image) ([]extract.TextFragment, error) {
	start := time.Now()
	norm, err := NormalizeImage(img.Data, e.cfg.Limits)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("starting ocr extraction",
		"image_id", img.ID,
		"format", norm.Format,
		"width", norm.Width,
		"height", norm.Height,
		"scaled", norm.Scaled,
	)

	out, errb, err := e.runner.Run(ctx, norm.PNG, e.cfg.Tesseract, e.args()...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, common.NewAppError("EXTRACTION_ERROR",
			fmt.Sprintf("tesseract failed on %q: %s", img.ID, strings.TrimSpace(truncate(string(errb), 512))),
			fmt.Errorf("%w: %w", common.ErrExtraction, err))
	}

	frags := DropNoise(parseTSV(string(out), e.cfg.Granularity))
	e.logger.Debug("ocr extraction done",
		"image_id", img.ID,
		"fragments", len(frags),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return frags, nil
}

// tesseract stdin stdout -l <lang> [--psm N] [--oem N] [--tessdata-dir D] tsv
func (e *Extractor) args() []string {
	args := []string{"stdin", "stdout", "-l", e.cfg.Lang}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", fmt.Sprintf("%d", e.cfg.PSM))
	}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", fmt.Sprintf("%d", e.cfg.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	return append(args, "tsv")
}
