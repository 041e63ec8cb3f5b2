package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/label-verifier/constants"
	"github.com/joseph-ayodele/label-verifier/internal/common"
	"github.com/joseph-ayodele/label-verifier/internal/core/extract"
	"github.com/joseph-ayodele/label-verifier/internal/core/match"
	"github.com/joseph-ayodele/label-verifier/internal/core/rules"
	"github.com/joseph-ayodele/label-verifier/internal/core/verdict"
)

// Request is one label to verify.
type Request struct {
	Image    extract.Image
	RuleSet  string            // "" selects the registry default
	Declared map[string]string // field name or alias -> value printed on the application
}

// Validate rejects requests that cannot be verified at all.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Image.ID) == "" {
		return common.InvalidInputError("image id is required")
	}
	if len(r.Image.Data) == 0 {
		return common.InvalidInputError("image %q has no data", r.Image.ID)
	}
	return nil
}

// StateFunc observes item state transitions. It must not block.
type StateFunc func(imageID string, state constants.ItemState)

// Processor runs extraction, matching and verdict building for one image.
// It holds no per-request state and is safe for concurrent use.
type Processor struct {
	logger    *slog.Logger
	extractor extract.TextExtractor
	registry  *rules.Registry
	matcher   *match.Matcher
	timeout   time.Duration
}

func NewProcessor(
	logger *slog.Logger,
	extractor extract.TextExtractor,
	registry *rules.Registry,
	matcher *match.Matcher,
	timeout time.Duration,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if matcher == nil {
		matcher = match.New(match.DefaultThreshold, match.DefaultMargin)
	}
	return &Processor{
		logger:    logger,
		extractor: extractor,
		registry:  registry,
		matcher:   matcher,
		timeout:   timeout,
	}
}

// Timeout is the per-item extraction budget; 0 means none.
func (p *Processor) Timeout() time.Duration { return p.timeout }

// Process verifies one image. It returns either a complete verdict or an
// error classified by common.KindOf; never both.
func (p *Processor) Process(ctx context.Context, req Request, onState StateFunc) (verdict.LabelVerdict, error) {
	if onState == nil {
		onState = func(string, constants.ItemState) {}
	}
	id := req.Image.ID
	log := common.LoggerWith(ctx, p.logger).With("image_id", id)

	if err := ctx.Err(); err != nil {
		onState(id, constants.ItemCancelled)
		return verdict.LabelVerdict{}, common.CancelledError(id, err)
	}
	if err := req.Validate(); err != nil {
		log.Warn("processor.request.invalid", "err", err)
		onState(id, constants.ItemFailed)
		return verdict.LabelVerdict{}, err
	}
	rs, err := p.registry.Get(req.RuleSet)
	if err != nil {
		log.Warn("processor.ruleset.invalid", "rule_set", req.RuleSet, "err", err)
		onState(id, constants.ItemFailed)
		return verdict.LabelVerdict{}, err
	}

	start := time.Now()
	onState(id, constants.ItemExtracting)
	frags, err := p.extract(ctx, req.Image)
	if err != nil {
		kind := common.KindOf(err)
		log.Error("processor.extract.failed",
			"kind", kind,
			"elapsed_ms", time.Since(start).Milliseconds(),
			"err", err,
		)
		if kind == constants.KindCancelled {
			onState(id, constants.ItemCancelled)
		} else {
			onState(id, constants.ItemFailed)
		}
		return verdict.LabelVerdict{}, err
	}
	log.Debug("processor extract stage success", "fragments", len(frags))

	onState(id, constants.ItemMatching)
	results := p.matcher.Match(frags, rs, req.Declared)
	v := verdict.Build(id, rs.ID, results, time.Since(start))
	onState(id, constants.ItemDone)

	log.Info("label verified",
		"rule_set", rs.ID,
		"overall_pass", v.OverallPass,
		"failing", v.Failing(),
		"elapsed", verdict.FormatElapsed(v.Elapsed),
	)
	return v, nil
}

type extraction struct {
	frags []extract.TextFragment
	err   error
}

// extract calls the extractor under the item timeout. If the extractor does
// not return once its context is done, the call is abandoned: the goroutine
// finishes in the background and its result is discarded.
func (p *Processor) extract(ctx context.Context, img extract.Image) ([]extract.TextFragment, error) {
	itemCtx, cancel := ctx, context.CancelFunc(func() {})
	if p.timeout > 0 {
		itemCtx, cancel = context.WithTimeout(ctx, p.timeout)
	}
	defer cancel()

	done := make(chan extraction, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- extraction{err: fmt.Errorf("extractor panicked: %v", r)}
			}
		}()
		frags, err := p.extractor.Extract(itemCtx, img)
		done <- extraction{frags: frags, err: err}
	}()

	select {
	case res := <-done:
		if res.err == nil {
			return res.frags, nil
		}
		return nil, p.classify(ctx, itemCtx, img.ID, res.err)
	case <-itemCtx.Done():
		return nil, p.classify(ctx, itemCtx, img.ID, itemCtx.Err())
	}
}

func (p *Processor) classify(parent, item context.Context, imageID string, err error) error {
	switch {
	case errors.Is(err, common.ErrCancelled), errors.Is(err, common.ErrTimeout), errors.Is(err, common.ErrExtraction):
		return err
	case parent.Err() != nil:
		return common.CancelledError(imageID, err)
	case errors.Is(item.Err(), context.DeadlineExceeded):
		return common.TimeoutError(imageID, err)
	}
	return common.NewAppError(string(constants.KindExtraction),
		fmt.Sprintf("text extraction failed for %q", imageID),
		errors.Join(common.ErrExtraction, err))
}
