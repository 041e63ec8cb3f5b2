package extract

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Static is a deterministic TextExtractor keyed by image ID. It backs tests
// and dry runs where no OCR engine is available.
type Static struct {
	Fragments map[string][]TextFragment
	Errors    map[string]error
	Delays    map[string]time.Duration
	// IgnoreContext makes delays uninterruptible, imitating engines that do not
	// observe cancellation.
	IgnoreContext bool

	calls    atomic.Int64
	inFlight atomic.Int64
	mu       sync.Mutex
	peak     int64
}

var _ TextExtractor = (*Static)(nil)

// Extract returns a copy of the configured fragments for img.ID.
func (s *Static) Extract(ctx context.Context, img Image) ([]TextFragment, error) {
	s.calls.Add(1)
	cur := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	s.mu.Lock()
	if cur > s.peak {
		s.peak = cur
	}
	s.mu.Unlock()

	if d := s.Delays[img.ID]; d > 0 {
		if s.IgnoreContext {
			time.Sleep(d)
		} else {
			t := time.NewTimer(d)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-t.C:
			}
		}
	}
	if err := s.Errors[img.ID]; err != nil {
		return nil, err
	}
	frags := s.Fragments[img.ID]
	out := make([]TextFragment, len(frags))
	copy(out, frags)
	return out, nil
}

// Calls reports how many times Extract was invoked.
func (s *Static) Calls() int { return int(s.calls.Load()) }

// PeakConcurrency reports the highest number of overlapping Extract calls seen.
func (s *Static) PeakConcurrency() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(s.peak)
}
