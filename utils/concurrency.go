package utils

import (
	"errors"
	"sync"
	"time"
)

// ErrRunInProgress is returned by RunGuard.TryAcquire when a run holds the guard.
var ErrRunInProgress = errors.New("a pipeline run is already in progress")

// RunGuard serialises pipeline runs within one process. It is a semaphore
// of capacity one that refuses instead of queueing.
type RunGuard struct {
	semaphore chan struct{}

	mu        sync.Mutex
	startedAt time.Time
}

// NewRunGuard creates an unlocked RunGuard.
func NewRunGuard() *RunGuard {
	return &RunGuard{semaphore: make(chan struct{}, 1)}
}

// TryAcquire takes the guard or returns ErrRunInProgress. The returned
// release func must be called exactly once.
func (g *RunGuard) TryAcquire() (release func(), err error) {
	select {
	case g.semaphore <- struct{}{}:
	default:
		return nil, ErrRunInProgress
	}

	g.mu.Lock()
	g.startedAt = time.Now()
	g.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			g.startedAt = time.Time{}
			g.mu.Unlock()
			<-g.semaphore
		})
	}, nil
}

// Running reports whether a run holds the guard and since when.
func (g *RunGuard) Running() (bool, time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.startedAt.IsZero(), g.startedAt
}
