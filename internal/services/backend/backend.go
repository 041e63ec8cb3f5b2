// Package backend builds the configured OCR engine.
package backend

import (
	"context"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/label-verifier/internal/common"
	"github.com/joseph-ayodele/label-verifier/internal/core/extract"
	"github.com/joseph-ayodele/label-verifier/internal/core/ocr"
	"github.com/joseph-ayodele/label-verifier/internal/core/ocr/tesseract"
	"github.com/joseph-ayodele/label-verifier/internal/core/ocr/vision"
)

// New returns the TextExtractor selected by cfg.Backend and a func releasing
// its resources.
func New(ctx context.Context, cfg common.OCRConfig, logger *slog.Logger) (extract.TextExtractor, func() error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	lim := ocr.Limits{
		MaxBytes:     cfg.MaxImageBytes,
		MaxPixels:    cfg.MaxImagePixels,
		MaxDimension: cfg.MaxDimension,
	}
	g := ocr.ParseGranularity(cfg.Granularity)
	noop := func() error { return nil }

	switch cfg.Backend {
	case common.BackendTesseractCLI, "":
		logger.Info("ocr.backend", "backend", common.BackendTesseractCLI, "binary", cfg.Tesseract, "lang", cfg.Lang)
		return ocr.NewExtractor(ocr.Config{
			Tesseract:   cfg.Tesseract,
			Lang:        cfg.Lang,
			TessdataDir: cfg.TessdataDir,
			PSM:         cfg.PSM,
			OEM:         cfg.OEM,
			Granularity: g,
			Limits:      lim,
		}, logger), noop, nil

	case common.BackendGosseract:
		logger.Info("ocr.backend", "backend", common.BackendGosseract, "lang", cfg.Lang)
		return tesseract.NewEngine(tesseract.Config{
			Languages:   splitLangs(cfg.Lang),
			TessdataDir: cfg.TessdataDir,
			PSM:         cfg.PSM,
			Granularity: g,
			Limits:      lim,
		}, logger), noop, nil

	case common.BackendVision:
		logger.Info("ocr.backend", "backend", common.BackendVision, "lang", cfg.Lang)
		eng, err := vision.NewEngine(ctx, vision.Config{
			LanguageHints: languageHints(cfg.Lang),
			Granularity:   g,
			Limits:        lim,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return eng, eng.Close, nil
	}
	return nil, nil, common.ConfigurationError("unknown OCR backend %q", cfg.Backend)
}

func splitLangs(lang string) []string {
	var out []string
	for _, l := range strings.Split(lang, "+") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// tesseract language codes -> BCP-47 hints understood by Cloud Vision
var visionLangs = map[string]string{
	"eng": "en",
	"fra": "fr",
	"spa": "es",
	"deu": "de",
	"ita": "it",
	"por": "pt",
}

func languageHints(lang string) []string {
	var out []string
	for _, l := range splitLangs(lang) {
		if h, ok := visionLangs[l]; ok {
			out = append(out, h)
		}
	}
	return out
}
