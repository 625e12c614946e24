package attributes

import (
	"context"
	"sync"
)

// tokenLocks hands out one single-slot semaphore per token. Entries are
// reference counted and dropped once nobody holds or waits on them.
type tokenLocks struct {
	mu    sync.Mutex
	slots map[string]*tokenSlot
}

type tokenSlot struct {
	sem  chan struct{}
	refs int
}

func newTokenLocks() *tokenLocks {
	return &tokenLocks{slots: make(map[string]*tokenSlot)}
}

// Acquire blocks until the token is free or ctx is done. The returned
// release func must be called exactly once.
func (l *tokenLocks) Acquire(ctx context.Context, token string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[token]
	if !ok {
		slot = &tokenSlot{sem: make(chan struct{}, 1)}
		l.slots[token] = slot
	}
	slot.refs++
	l.mu.Unlock()

	select {
	case slot.sem <- struct{}{}:
		return func() {
			<-slot.sem
			l.drop(token, slot)
		}, nil
	case <-ctx.Done():
		l.drop(token, slot)
		return nil, ctx.Err()
	}
}

func (l *tokenLocks) drop(token string, slot *tokenSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, token)
	}
}
