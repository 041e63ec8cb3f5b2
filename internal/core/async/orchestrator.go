package async

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/label-verifier/constants"
	"github.com/joseph-ayodele/label-verifier/internal/common"
	"github.com/joseph-ayodele/label-verifier/internal/core"
	"github.com/joseph-ayodele/label-verifier/internal/core/verdict"
)

// Orchestrator verifies many labels concurrently with a bounded worker pool.
// Results are reported in submission order regardless of completion order.
type Orchestrator struct {
	proc    *core.Processor
	logger  *slog.Logger
	workers int
	limiter *rate.Limiter
}

type Option func(*Orchestrator)

func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithRateLimit caps extraction starts per second across all workers. A
// non-positive rate disables the limit.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(o *Orchestrator) {
		if perSecond <= 0 {
			o.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		o.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

func NewOrchestrator(proc *core.Processor, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		proc:    proc,
		logger:  logger,
		workers: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) Workers() int { return o.workers }

type runConfig struct {
	batchID  uuid.UUID
	progress ProgressFunc
}

// RunOption configures a single Run.
type RunOption func(*runConfig)

// WithProgress installs a callback invoked after every item state change.
// Calls are serialized.
func WithProgress(fn ProgressFunc) RunOption {
	return func(c *runConfig) { c.progress = fn }
}

// WithBatchID overrides the generated batch id.
func WithBatchID(id uuid.UUID) RunOption {
	return func(c *runConfig) {
		if id != uuid.Nil {
			c.batchID = id
		}
	}
}

// Run verifies reqs and returns one item per request, in order. It never
// fails as a whole: extraction errors, timeouts and cancellation are recorded
// on the affected items. Items not started before ctx is cancelled are
// recorded as CANCELLED.
func (o *Orchestrator) Run(ctx context.Context, reqs []core.Request, opts ...RunOption) BatchResult {
	cfg := runConfig{batchID: uuid.New()}
	for _, opt := range opts {
		opt(&cfg)
	}
	ctx = common.WithBatchID(ctx, cfg.batchID)
	log := common.LoggerWith(ctx, o.logger)

	n := len(reqs)
	items := make([]Item, n)
	for i, r := range reqs {
		items[i] = Item{Index: i, ImageID: r.Image.ID, State: constants.ItemPending}
	}
	tracker := newTracker(cfg.batchID, n, cfg.progress)

	start := time.Now()
	log.Info("batch.start", "items", n, "workers", o.workers, "timeout", o.proc.Timeout())

	var g errgroup.Group
	g.SetLimit(o.workers)
	for i := range reqs {
		if ctx.Err() != nil {
			for j := i; j < n; j++ {
				items[j] = o.cancelled(ctx, items[j])
				tracker.transition(constants.ItemPending, constants.ItemCancelled)
			}
			break
		}
		g.Go(func() error {
			items[i] = o.runItem(ctx, i, reqs[i], tracker)
			return nil
		})
	}
	_ = g.Wait()

	res := BatchResult{
		ID:           cfg.batchID,
		Items:        items,
		Submitted:    n,
		StartedAt:    start,
		TotalElapsed: time.Since(start),
	}
	res.Summary = summarize(items)
	log.Info("batch.done",
		"items", n,
		"passed", res.Summary.Passed,
		"failed", res.Summary.Failed,
		"errors", res.Summary.Errors,
		"total_elapsed", verdict.FormatElapsed(res.TotalElapsed),
	)
	return res
}

func (o *Orchestrator) runItem(ctx context.Context, idx int, req core.Request, tracker *tracker) Item {
	item := Item{Index: idx, ImageID: req.Image.ID, State: constants.ItemPending}

	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			tracker.transition(constants.ItemPending, constants.ItemCancelled)
			return o.cancelled(ctx, item)
		}
	}

	itemStart := time.Now()
	prev := constants.ItemPending
	v, err := o.proc.Process(ctx, req, func(_ string, st constants.ItemState) {
		tracker.transition(prev, st)
		prev = st
	})
	item.Elapsed = time.Since(itemStart)
	item.State = prev

	if err != nil {
		item.Error = newErrorRecord(req.Image.ID, err)
		o.logger.Debug("batch.item.failed", "index", idx, "image_id", req.Image.ID, "kind", item.Error.Kind)
		return item
	}
	item.Verdict = &v
	o.logger.Debug("batch.item.done", "index", idx, "image_id", req.Image.ID, "overall_pass", v.OverallPass)
	return item
}

func (o *Orchestrator) cancelled(ctx context.Context, item Item) Item {
	cause := ctx.Err()
	if cause == nil {
		cause = context.Canceled
	}
	item.State = constants.ItemCancelled
	item.Error = newErrorRecord(item.ImageID, common.CancelledError(item.ImageID, cause))
	return item
}
