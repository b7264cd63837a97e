package backend

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

var holderSeq atomic.Uint64

type holderKey struct {
	guard *Guard
}

// Guard is a reentrant exclusive region owned by one backend instance.
//
// Acquire returns a context carrying the holder identity. Capability calls
// made with that context on the same backend re-enter the region instead of
// blocking on it.
type Guard struct {
	sem *semaphore.Weighted

	mu     sync.Mutex
	holder uint64
	depth  int
}

func NewGuard() *Guard {
	return &Guard{
		sem: semaphore.NewWeighted(1),
	}
}

// Acquire enters the region, waiting until it is free or ctx is done.
// The returned release function must be called exactly once.
func (g *Guard) Acquire(ctx context.Context) (context.Context, func(), error) {
	if g.reenter(ctx) {
		return ctx, g.release, nil
	}

	if err := g.sem.Acquire(ctx, 1); err != nil {
		return ctx, func() {}, err
	}

	id := holderSeq.Add(1)

	g.mu.Lock()
	g.holder = id
	g.depth = 1
	g.mu.Unlock()

	return context.WithValue(ctx, holderKey{guard: g}, id), g.release, nil
}

// Do runs fn inside the region and always releases it afterwards.
func (g *Guard) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, release, err := g.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	return fn(ctx)
}

// Held reports whether ctx belongs to the current holder.
func (g *Guard) Held(ctx context.Context) bool {
	id, ok := ctx.Value(holderKey{guard: g}).(uint64)
	if !ok {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	return g.depth > 0 && g.holder == id
}

func (g *Guard) reenter(ctx context.Context) bool {
	id, ok := ctx.Value(holderKey{guard: g}).(uint64)
	if !ok {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.depth == 0 || g.holder != id {
		return false
	}
	g.depth++
	return true
}

func (g *Guard) release() {
	g.mu.Lock()
	g.depth--
	if g.depth > 0 {
		g.mu.Unlock()
		return
	}
	g.holder = 0
	g.depth = 0
	g.mu.Unlock()

	g.sem.Release(1)
}
