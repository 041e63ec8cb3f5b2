package async

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/label-verifier/constants"
)

// Progress is a snapshot of a running batch.
type Progress struct {
	BatchID   uuid.UUID
	Submitted int
	Pending   int
	InFlight  int // extracting or matching
	Done      int
	Failed    int
	Cancelled int
}

// Completed counts items in a terminal state.
func (p Progress) Completed() int { return p.Done + p.Failed + p.Cancelled }

func (p Progress) String() string {
	if p.Completed() == 0 {
		return fmt.Sprintf("Processing %d images...", p.Submitted)
	}
	return fmt.Sprintf("Processed %d/%d images (%d in flight, %d failed, %d cancelled)",
		p.Completed(), p.Submitted, p.InFlight, p.Failed, p.Cancelled)
}

type ProgressFunc func(Progress)

type tracker struct {
	mu   sync.Mutex
	snap Progress
	fn   ProgressFunc
}

func newTracker(id uuid.UUID, n int, fn ProgressFunc) *tracker {
	return &tracker{snap: Progress{BatchID: id, Submitted: n, Pending: n}, fn: fn}
}

func (t *tracker) transition(from, to constants.ItemState) {
	if from == to {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.adjust(from, -1)
	t.adjust(to, +1)
	if t.fn != nil {
		t.fn(t.snap)
	}
}

func (t *tracker) adjust(st constants.ItemState, d int) {
	switch st {
	case constants.ItemPending:
		t.snap.Pending += d
	case constants.ItemExtracting, constants.ItemMatching:
		t.snap.InFlight += d
	case constants.ItemDone:
		t.snap.Done += d
	case constants.ItemFailed:
		t.snap.Failed += d
	case constants.ItemCancelled:
		t.snap.Cancelled += d
	}
}
