package extract

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 0.0, ClampConfidence(-0.2))
	assert.Equal(t, 1.0, ClampConfidence(1.7))
	assert.Equal(t, 0.42, ClampConfidence(0.42))
	assert.Equal(t, 0.0, ClampConfidence(math.NaN()))
}

func TestFragment(t *testing.T) {
	f, ok := Fragment("  45%   ALC./VOL.\n", 1.3, &Region{X: 1, Y: 2, Width: 3, Height: 4})
	require.True(t, ok)
	assert.Equal(t, "45% ALC./VOL.", f.Text)
	assert.Equal(t, 1.0, f.Confidence)
	require.NotNil(t, f.Position)
	assert.Equal(t, 3.0, f.Position.Width)

	f, ok = Fragment("750 ml", 0.9, &Region{Width: 0, Height: 5})
	require.True(t, ok)
	assert.Nil(t, f.Position)

	_, ok = Fragment(" \t\n", 0.9, nil)
	assert.False(t, ok)
}

func TestStatic(t *testing.T) {
	s := &Static{
		Fragments: map[string][]TextFragment{"a": {{Text: "GIN", Confidence: 0.8}}},
		Errors:    map[string]error{"b": errors.New("boom")},
		Delays:    map[string]time.Duration{"slow": time.Second},
	}

	got, err := s.Extract(context.Background(), Image{ID: "a"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	got[0].Text = "mutated"
	again, _ := s.Extract(context.Background(), Image{ID: "a"})
	assert.Equal(t, "GIN", again[0].Text)

	_, err = s.Extract(context.Background(), Image{ID: "b"})
	assert.EqualError(t, err, "boom")

	got, err = s.Extract(context.Background(), Image{ID: "unknown"})
	require.NoError(t, err)
	assert.Empty(t, got)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.Extract(ctx, Image{ID: "slow"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Equal(t, 5, s.Calls())
}

func TestStatic_PeakConcurrency(t *testing.T) {
	s := &Static{Delays: map[string]time.Duration{"x": 30 * time.Millisecond}}
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Extract(context.Background(), Image{ID: "x"})
		}()
	}
	wg.Wait()
	assert.Equal(t, 3, s.Calls())
	assert.GreaterOrEqual(t, s.PeakConcurrency(), 1)
	assert.LessOrEqual(t, s.PeakConcurrency(), 3)
}
