package async

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/label-verifier/constants"
	"github.com/joseph-ayodele/label-verifier/internal/common"
	"github.com/joseph-ayodele/label-verifier/internal/core"
	"github.com/joseph-ayodele/label-verifier/internal/core/extract"
	"github.com/joseph-ayodele/label-verifier/internal/core/match"
	"github.com/joseph-ayodele/label-verifier/internal/core/rules"
)

const healthWarning = "GOVERNMENT WARNING: (1) According to the Surgeon General, women should not drink alcoholic " +
	"beverages during pregnancy because of the risk of birth defects. (2) Consumption of alcoholic " +
	"beverages impairs your ability to drive a car or operate machinery, and may cause health problems."

var label = []extract.TextFragment{
	{Text: "45% ALC./VOL.", Confidence: 0.91},
	{Text: "750 mL", Confidence: 0.9},
	{Text: healthWarning, Confidence: 0.88},
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newOrchestrator(t *testing.T, ex extract.TextExtractor, timeout time.Duration, opts ...Option) *Orchestrator {
	t.Helper()
	reg, err := rules.Default()
	require.NoError(t, err)
	proc := core.NewProcessor(quietLogger(), ex, reg, match.New(0.6, 0.1), timeout)
	return NewOrchestrator(proc, quietLogger(), opts...)
}

func requests(ids ...string) []core.Request {
	out := make([]core.Request, len(ids))
	for i, id := range ids {
		out[i] = core.Request{Image: extract.Image{ID: id, Data: []byte{1}}}
	}
	return out
}

func staticFor(ids ...string) *extract.Static {
	s := &extract.Static{
		Fragments: map[string][]extract.TextFragment{},
		Errors:    map[string]error{},
		Delays:    map[string]time.Duration{},
	}
	for _, id := range ids {
		s.Fragments[id] = label
	}
	return s
}

func TestRun_PreservesSubmissionOrder(t *testing.T) {
	ex := staticFor("a", "b", "c")
	ex.Delays["a"] = 80 * time.Millisecond
	ex.Delays["b"] = 40 * time.Millisecond
	o := newOrchestrator(t, ex, time.Second, WithWorkers(3))

	res := o.Run(context.Background(), requests("a", "b", "c"))

	require.Len(t, res.Items, 3)
	for i, id := range []string{"a", "b", "c"} {
		it := res.Items[i]
		assert.Equal(t, i, it.Index)
		assert.Equal(t, id, it.ImageID)
		assert.Equal(t, constants.ItemDone, it.State)
		require.NotNil(t, it.Verdict)
		assert.Equal(t, id, it.Verdict.ImageID)
		assert.Nil(t, it.Error)
	}
	assert.Equal(t, 3, res.Submitted)
	assert.Equal(t, Summary{Total: 3, Passed: 3}, res.Summary)
	assert.NotEqual(t, uuid.Nil, res.ID)
	assert.GreaterOrEqual(t, res.TotalElapsed, 80*time.Millisecond)
}

func TestRun_PartialFailure(t *testing.T) {
	ex := staticFor("ok1.png", "broken.png", "ok2.png")
	ex.Errors["broken.png"] = common.ExtractionError("corrupt image")
	o := newOrchestrator(t, ex, time.Second, WithWorkers(2))

	res := o.Run(context.Background(), requests("ok1.png", "broken.png", "ok2.png"))

	require.Len(t, res.Items, 3)
	assert.NotNil(t, res.Items[0].Verdict)
	assert.NotNil(t, res.Items[2].Verdict)

	bad := res.Items[1]
	assert.Nil(t, bad.Verdict)
	require.NotNil(t, bad.Error)
	assert.Equal(t, "broken.png", bad.Error.ImageID)
	assert.Equal(t, constants.KindExtraction, bad.Error.Kind)
	assert.Contains(t, bad.Error.Message, "corrupt image")
	assert.Equal(t, constants.ItemFailed, bad.State)

	assert.Equal(t, Summary{Total: 3, Passed: 2, Errors: 1}, res.Summary)
}

func TestRun_FailingVerdictCounted(t *testing.T) {
	ex := staticFor("good")
	ex.Fragments["blank"] = []extract.TextFragment{{Text: "just some words", Confidence: 0.9}}
	o := newOrchestrator(t, ex, time.Second)

	res := o.Run(context.Background(), requests("good", "blank"))

	require.NotNil(t, res.Items[1].Verdict)
	assert.False(t, res.Items[1].Verdict.OverallPass)
	assert.Equal(t, Summary{Total: 2, Passed: 1, Failed: 1}, res.Summary)
}

func TestRun_Timeout(t *testing.T) {
	ex := staticFor("fast", "stuck")
	ex.Delays["stuck"] = 2 * time.Second
	ex.IgnoreContext = true
	o := newOrchestrator(t, ex, 50*time.Millisecond, WithWorkers(2))

	start := time.Now()
	res := o.Run(context.Background(), requests("fast", "stuck"))

	assert.Less(t, time.Since(start), time.Second)
	assert.NotNil(t, res.Items[0].Verdict)
	require.NotNil(t, res.Items[1].Error)
	assert.Equal(t, constants.KindTimeout, res.Items[1].Error.Kind)
	assert.Equal(t, constants.ItemFailed, res.Items[1].State)
}

func TestRun_Cancellation(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}
	ex := staticFor(ids...)
	for _, id := range ids {
		ex.Delays[id] = 500 * time.Millisecond
	}
	o := newOrchestrator(t, ex, 5*time.Second, WithWorkers(1))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)
	res := o.Run(ctx, requests(ids...))

	require.Len(t, res.Items, len(ids))
	for i, it := range res.Items {
		assert.Equal(t, ids[i], it.ImageID)
		assert.Nil(t, it.Verdict, ids[i])
		require.NotNil(t, it.Error, ids[i])
		assert.Equal(t, constants.KindCancelled, it.Error.Kind, ids[i])
		assert.Equal(t, constants.ItemCancelled, it.State, ids[i])
	}
	assert.Equal(t, 1, ex.Calls())
	assert.Equal(t, Summary{Total: 5, Errors: 5, Cancelled: 5}, res.Summary)
}

func TestRun_BoundsConcurrency(t *testing.T) {
	ids := []string{"1", "2", "3", "4", "5", "6", "7", "8"}
	ex := staticFor(ids...)
	for _, id := range ids {
		ex.Delays[id] = 30 * time.Millisecond
	}
	o := newOrchestrator(t, ex, time.Second, WithWorkers(2))
	assert.Equal(t, 2, o.Workers())

	res := o.Run(context.Background(), requests(ids...))

	assert.Equal(t, 8, res.Summary.Passed)
	assert.Equal(t, 8, ex.Calls())
	assert.LessOrEqual(t, ex.PeakConcurrency(), 2)
	assert.GreaterOrEqual(t, ex.PeakConcurrency(), 1)
}

func TestRun_RateLimitHonoursDeadline(t *testing.T) {
	ex := staticFor("a", "b", "c")
	o := newOrchestrator(t, ex, time.Second, WithWorkers(1), WithRateLimit(0.001, 1))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	res := o.Run(ctx, requests("a", "b", "c"))

	assert.NotNil(t, res.Items[0].Verdict)
	for _, it := range res.Items[1:] {
		require.NotNil(t, it.Error, it.ImageID)
		assert.Equal(t, constants.KindCancelled, it.Error.Kind)
	}
	assert.Equal(t, 1, ex.Calls())
}

func TestRun_Progress(t *testing.T) {
	ids := []string{"a", "b", "c", "d"}
	ex := staticFor(ids...)
	ex.Errors["c"] = common.ExtractionError("unreadable")
	o := newOrchestrator(t, ex, time.Second, WithWorkers(2))

	var (
		mu    sync.Mutex
		snaps []Progress
	)
	batchID := uuid.New()
	res := o.Run(context.Background(), requests(ids...),
		WithBatchID(batchID),
		WithProgress(func(p Progress) {
			mu.Lock()
			defer mu.Unlock()
			snaps = append(snaps, p)
		}),
	)
	assert.Equal(t, batchID, res.ID)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, snaps)
	last := snaps[len(snaps)-1]
	assert.Equal(t, batchID, last.BatchID)
	assert.Equal(t, 4, last.Submitted)
	assert.Equal(t, 3, last.Done)
	assert.Equal(t, 1, last.Failed)
	assert.Zero(t, last.InFlight)
	assert.Zero(t, last.Pending)
	assert.Equal(t, 4, last.Completed())

	prev := 0
	for _, p := range snaps {
		assert.Equal(t, 4, p.Pending+p.InFlight+p.Completed())
		assert.GreaterOrEqual(t, p.Completed(), prev)
		prev = p.Completed()
	}
}

func TestRun_Empty(t *testing.T) {
	o := newOrchestrator(t, staticFor(), time.Second)
	res := o.Run(context.Background(), nil)
	assert.Empty(t, res.Items)
	assert.Equal(t, Summary{}, res.Summary)
}

func TestProgress_String(t *testing.T) {
	assert.Equal(t, "Processing 3 images...", Progress{Submitted: 3, Pending: 3}.String())
	assert.Equal(t, "Processed 2/3 images (1 in flight, 1 failed, 0 cancelled)",
		Progress{Submitted: 3, InFlight: 1, Done: 1, Failed: 1}.String())
}

func TestNewBatchReport(t *testing.T) {
	ex := staticFor("a")
	ex.Errors["b"] = common.ExtractionError("bad bytes")
	o := newOrchestrator(t, ex, time.Second)
	res := o.Run(context.Background(), requests("a", "b"))

	raw, err := json.Marshal(NewBatchReport(res))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, res.ID.String(), got["batch_id"])
	assert.EqualValues(t, 2, got["total"])
	assert.EqualValues(t, 1, got["passed"])
	assert.EqualValues(t, 1, got["errors"])
	assert.Contains(t, got, "total_elapsed")

	items := got["items"].([]any)
	require.Len(t, items, 2)
	first := items[0].(map[string]any)
	assert.Equal(t, "DONE", first["state"])
	assert.Contains(t, first, "verdict")
	assert.NotContains(t, first, "error")
	second := items[1].(map[string]any)
	assert.Equal(t, "FAILED", second["state"])
	assert.Equal(t, "EXTRACTION_ERROR", second["error"].(map[string]any)["kind"])
}
