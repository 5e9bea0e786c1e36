package handler

import (
	"context"
	"errors"
	"sync"
)

var ErrAlreadyBound = errors.New("session already has a bound connection")

// BindingTracker enforces one live connection per session and lets shutdown
// cancel and drain every bound connection.
type BindingTracker struct {
	mu     sync.Mutex
	active map[string]context.CancelFunc
	wg     sync.WaitGroup
}

func NewBindingTracker() *BindingTracker {
	return &BindingTracker{active: make(map[string]context.CancelFunc)}
}

// Acquire registers a binding for sessionID. The returned release func is
// safe to call more than once.
func (t *BindingTracker) Acquire(sessionID string, cancel context.CancelFunc) (func(), error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.active[sessionID]; ok {
		return nil, ErrAlreadyBound
	}
	t.active[sessionID] = cancel
	t.wg.Add(1)

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.active, sessionID)
			t.mu.Unlock()
			t.wg.Done()
		})
	}, nil
}

func (t *BindingTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active)
}

// CloseAll cancels every bound connection.
func (t *BindingTracker) CloseAll() {
	t.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(t.active))
	for _, cancel := range t.active {
		cancels = append(cancels, cancel)
	}
	t.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// Wait blocks until every binding is released or ctx is done.
func (t *BindingTracker) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
