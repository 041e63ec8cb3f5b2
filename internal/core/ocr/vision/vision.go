// Package vision extracts label text with Google Cloud Vision document text detection.
package vision

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math"
	"strings"

	gvision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/label-verifier/internal/common"
	"github.com/joseph-ayodele/label-verifier/internal/core/extract"
	"github.com/joseph-ayodele/label-verifier/internal/core/ocr"
)

// annotator is the subset of *gvision.ImageAnnotatorClient we use.
type annotator interface {
	BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error)
	Close() error
}

type Config struct {
	LanguageHints []string
	Granularity   ocr.Granularity
	Limits        ocr.Limits
}

// Engine implements extract.TextExtractor using the Vision API.
type Engine struct {
	cfg    Config
	client annotator
	logger *slog.Logger
}

var _ extract.TextExtractor = (*Engine)(nil)

// NewEngine creates a Vision client using Application Default Credentials.
func NewEngine(ctx context.Context, cfg Config, logger *slog.Logger) (*Engine, error) {
	client, err := gvision.NewImageAnnotatorClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}
	return newEngine(cfg, client, logger), nil
}

func newEngine(cfg Config, client annotator, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{cfg: cfg, client: client, logger: logger}
}

// Close releases the Vision API client.
func (e *Engine) Close() error {
	return e.client.Close()
}

func (e *Engine) Extract(ctx context.Context, img extract.Image) ([]extract.TextFragment, error) {
	norm, err := ocr.NormalizeImage(img.Data, e.cfg.Limits)
	if err != nil {
		return nil, err
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: norm.PNG},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
				ImageContext: &visionpb.ImageContext{LanguageHints: e.cfg.LanguageHints},
			},
		},
	}

	resp, err := e.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, common.FromRPCError(img.ID, err)
	}
	if len(resp.GetResponses()) == 0 {
		return nil, nil
	}
	r := resp.GetResponses()[0]
	if r.GetError() != nil && r.GetError().GetCode() != 0 {
		return nil, common.FromRPCError(img.ID, status.ErrorProto(r.GetError()))
	}

	boxes := collect(r.GetFullTextAnnotation(), e.cfg.Granularity)
	frags := ocr.BoxesToFragments(boxes)
	e.logger.Debug("vision extraction done", "image_id", img.ID, "fragments", len(frags))
	return frags, nil
}

type lineAcc struct {
	text    strings.Builder
	confSum float64
	n       int
	rect    image.Rectangle
}

func (a *lineAcc) add(w *visionpb.Word) {
	for _, s := range w.GetSymbols() {
		a.text.WriteString(s.GetText())
		switch s.GetProperty().GetDetectedBreak().GetType() {
		case visionpb.TextAnnotation_DetectedBreak_SPACE,
			visionpb.TextAnnotation_DetectedBreak_SURE_SPACE,
			visionpb.TextAnnotation_DetectedBreak_EOL_SURE_SPACE,
			visionpb.TextAnnotation_DetectedBreak_LINE_BREAK:
			a.text.WriteByte(' ')
		}
	}
	a.confSum += float64(w.GetConfidence())
	a.n++
	a.rect = union(a.rect, bounds(w.GetBoundingBox()))
}

func (a *lineAcc) box() ocr.Box {
	b := ocr.Box{Rect: a.rect, Text: a.text.String()}
	if a.n > 0 {
		b.Confidence = a.confSum / float64(a.n)
	}
	return b
}

// collect walks pages, blocks and paragraphs in reading order. In line mode a
// paragraph is split wherever Vision reports a line break after a word.
func collect(doc *visionpb.TextAnnotation, g ocr.Granularity) []ocr.Box {
	var out []ocr.Box
	for _, page := range doc.GetPages() {
		for _, block := range page.GetBlocks() {
			for _, para := range block.GetParagraphs() {
				acc := &lineAcc{}
				for _, w := range para.GetWords() {
					acc.add(w)
					if g == ocr.GranularityParagraph || !endsLine(w) {
						continue
					}
					out = append(out, acc.box())
					acc = &lineAcc{}
				}
				if acc.n > 0 {
					out = append(out, acc.box())
				}
			}
		}
	}
	return out
}

func endsLine(w *visionpb.Word) bool {
	syms := w.GetSymbols()
	if len(syms) == 0 {
		return false
	}
	switch syms[len(syms)-1].GetProperty().GetDetectedBreak().GetType() {
	case visionpb.TextAnnotation_DetectedBreak_LINE_BREAK,
		visionpb.TextAnnotation_DetectedBreak_EOL_SURE_SPACE:
		return true
	}
	return false
}

func bounds(poly *visionpb.BoundingPoly) image.Rectangle {
	vs := poly.GetVertices()
	if len(vs) == 0 {
		return image.Rectangle{}
	}
	minX, minY := int32(math.MaxInt32), int32(math.MaxInt32)
	var maxX, maxY int32
	for _, v := range vs {
		minX = min(minX, v.GetX())
		minY = min(minY, v.GetY())
		maxX = max(maxX, v.GetX())
		maxY = max(maxY, v.GetY())
	}
	return image.Rect(int(minX), int(minY), int(maxX), int(maxY))
}

func union(a, b image.Rectangle) image.Rectangle {
	if a.Empty() {
		return b
	}
	if b.Empty() {
		return a
	}
	return a.Union(b)
}
