package adapters

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	ports "github.com/ZanzyTHEbar/questforge/qforge/engine/ports"
)

// SemaphoreGate bounds concurrent provider calls with a weighted semaphore.
// One gate serves every session in the process.
type SemaphoreGate struct {
	sem *semaphore.Weighted
}

// NewSemaphoreGate creates a gate admitting up to width concurrent calls.
func NewSemaphoreGate(width int) *SemaphoreGate {
	if width <= 0 {
		width = 1
	}
	return &SemaphoreGate{sem: semaphore.NewWeighted(int64(width))}
}

// Acquire blocks until a slot frees or ctx is done. The returned release is
// idempotent; only its first call frees the slot.
func (g *SemaphoreGate) Acquire(ctx context.Context) (release func(), err error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	var once sync.Once
	return func() {
		once.Do(func() { g.sem.Release(1) })
	}, nil
}

// Ensure SemaphoreGate implements the Gate interface.
var _ ports.Gate = (*SemaphoreGate)(nil)
