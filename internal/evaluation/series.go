package evaluation

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Series replays a fixed sequence of metric values, one per call, in order.
// It backs fixture replay and the serve-eval command, where calls may arrive
// from concurrent RPCs.
type Series struct {
	mu     sync.Mutex
	values []float64
	next   int
}

// NewSeries returns a Series over a copy of values.
func NewSeries(values []float64) *Series {
	return &Series{values: slices.Clone(values)}
}

// Evaluate returns the next value; epoch is ignored.
func (s *Series) Evaluate(ctx context.Context, epoch int) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.values) {
		return 0, fmt.Errorf("series exhausted after %d values at epoch %d", len(s.values), epoch)
	}
	v := s.values[s.next]
	s.next++
	return v, nil
}

// Remaining returns how many values have not been served yet.
func (s *Series) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values) - s.next
}
