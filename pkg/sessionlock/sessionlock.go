// Package sessionlock serialises work on a single session id.
package sessionlock

import (
	"context"
	"fmt"
	"sync"
)

// Locks is a set of per-session mutexes. Entries are dropped once no caller
// holds or waits for them.
type Locks struct {
	entries map[string]*entry
	mu      sync.Mutex
}

type entry struct {
	sem  chan struct{}
	refs int
}

func New() *Locks {
	return &Locks{entries: make(map[string]*entry)}
}

// Lock blocks until the session's lock is free or ctx is done. The returned
// function releases the lock and must be called exactly once.
func (l *Locks) Lock(ctx context.Context, sessionID string) (func(), error) {
	e := l.acquire(sessionID)

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(sessionID, e)
		return nil, fmt.Errorf("waiting for session %s: %w", sessionID, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			l.release(sessionID, e)
		})
	}, nil
}

// Len returns the number of sessions currently held or awaited.
func (l *Locks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Locks) acquire(sessionID string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[sessionID]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		l.entries[sessionID] = e
	}
	e.refs++
	return e
}

func (l *Locks) release(sessionID string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, sessionID)
	}
}
